package middlewares

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// PanicError is the cause Recover attaches to the 500 it records. A panic
// value that is itself an error stays reachable through errors.Is/As.
type PanicError struct {
	Value any
	Stack []byte // nil when stack capture is disabled
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// TimeoutError is the cause Timeout attaches to the 504 it records.
type TimeoutError struct {
	Path     string
	Duration time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded the %s request deadline", e.Path, e.Duration)
}

// Unwrap lets errors.Is(err, context.DeadlineExceeded) match.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// RecoveredPanic returns the panic behind an error recorded by Recover.
func RecoveredPanic(err error) (*PanicError, bool) {
	var pe *PanicError
	ok := errors.As(err, &pe)
	return pe, ok
}

// TimedOut reports whether err was recorded by Timeout.
func TimedOut(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
