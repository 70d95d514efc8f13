package interview

import (
	"errors"
	"fmt"
)

var (
	ErrBusy         = errors.New("another request is still in progress")
	ErrInvalidPhase = errors.New("operation is not available in the current phase")
	ErrStaleResult  = errors.New("session was reset while the request was in flight")
)

// ValidationError reports missing or unacceptable user input. No model call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// InferenceError reports a failed or unparseable model call.
type InferenceError struct {
	Op  string
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}
