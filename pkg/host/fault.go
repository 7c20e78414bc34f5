package host

import "fmt"

// Fault is an unhandled failure of the running host: a background task that
// returned an error or panicked.
type Fault struct {
	Task  string
	Panic any
	Err   error
}

func (f *Fault) Error() string {
	if f.Panic != nil {
		return fmt.Sprintf("%s panicked: %v", f.Task, f.Panic)
	}
	return fmt.Sprintf("%s failed: %v", f.Task, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}
