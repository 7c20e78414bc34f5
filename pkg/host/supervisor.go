package host

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Supervisor runs background work and turns its failures into a host fault.
// It is the unhandled-fault hook: every goroutine a step starts goes through Go.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	once    sync.Once
	fault   error
	faulted chan struct{}
}

func NewSupervisor() *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		ctx:     ctx,
		cancel:  cancel,
		faulted: make(chan struct{}),
	}
}

// Go runs fn in the background. An error returned before stop is called, or a
// panic, faults the host. stop cancels fn's context and waits for it to return.
func (s *Supervisor) Go(task string, fn func(ctx context.Context) error) (stop func()) {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})

	s.group.Go(func() (err error) {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("background task panicked", "task", task, "panic", r, "stack", string(debug.Stack()))
				s.Fault(&Fault{Task: task, Panic: r, Err: fmt.Errorf("panic: %v", r)})
			}
		}()
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			s.Fault(&Fault{Task: task, Err: err})
		}
		return nil
	})

	return func() {
		cancel()
		<-done
	}
}

// Fault records the first fault and signals Faulted. Later faults are logged only.
func (s *Supervisor) Fault(err error) {
	first := false
	s.once.Do(func() {
		s.fault = err
		first = true
		close(s.faulted)
	})
	if !first {
		log.Warnw("additional fault after host already faulted", "error", err)
	}
}

// Faulted is closed once the first fault is recorded.
func (s *Supervisor) Faulted() <-chan struct{} {
	return s.faulted
}

// Err returns the first fault, nil while the host is healthy.
func (s *Supervisor) Err() error {
	select {
	case <-s.faulted:
		return s.fault
	default:
		return nil
	}
}

// Stop cancels every background task and waits for them until ctx is done.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		_ = s.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background tasks: %w", ctx.Err())
	}
}
