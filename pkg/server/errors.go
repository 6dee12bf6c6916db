package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for common server error conditions.
var (
	// ErrNotStarted is returned when an operation needs a bound listener.
	ErrNotStarted = errors.New("server: not started")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("server: already started")

	// ErrComponentExists is returned when a component name is attached twice.
	ErrComponentExists = errors.New("server: component already attached")

	// ErrComponentNotFound is returned when a stream names an unknown component.
	ErrComponentNotFound = errors.New("server: component not found")
)

// ServerError wraps an error with operation context for debugging.
type ServerError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message with operation context.
func (e *ServerError) Error() string {
	return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ServerError) Unwrap() error {
	return e.Err
}
