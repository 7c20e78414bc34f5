package config

import (
	"fmt"
	"strings"
)

// SourceError indicates a configuration layer exists but its content could not be read or parsed.
type SourceError struct {
	Source string
	Cause  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("configuration source %s: %v", e.Source, e.Cause)
}

func (e *SourceError) Unwrap() error { return e.Cause }

// ValidationError lists every field of the resolved configuration that failed validation.
type ValidationError struct {
	Fields []FieldError
}

// FieldError is a single failed validation rule.
type FieldError struct {
	// Key is the configuration key path, e.g. "storage.connectionstring"
	Key  string
	Rule string
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, fmt.Sprintf("%s (%s)", f.Key, f.Rule))
	}
	return "invalid configuration: " + strings.Join(msgs, ", ")
}

// HasField reports whether the given key failed validation.
func (e *ValidationError) HasField(key string) bool {
	for _, f := range e.Fields {
		if f.Key == key {
			return true
		}
	}
	return false
}
