package storage

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy shared by every backend. Use errors.Is to test for them.
var (
	// ErrNotFound means the requested object, row, namespace or table is absent.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable means the backend call failed (network, auth, quota,
	// throttling).
	ErrUnavailable = errors.New("storage unavailable")

	// ErrCancelled means the operation stopped because its context was done.
	ErrCancelled = errors.New("cancelled")

	// ErrInvalidName means a namespace or table name failed validation.
	ErrInvalidName = errors.New("invalid name")
)

// OpError records a failed backend operation. Kind is one of the taxonomy
// sentinels and Err is the underlying cause; both are reachable through
// errors.Is and errors.As.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the taxonomy kind and the cause.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NotFound builds an ErrNotFound OpError for op.
func NotFound(op string) error {
	return &OpError{Op: op, Kind: ErrNotFound}
}

// Classify wraps a backend error for op in the taxonomy. Context errors become
// ErrCancelled, errors already classified pass through unchanged, and
// everything else becomes ErrUnavailable. A nil err returns nil.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &OpError{Op: op, Kind: ErrCancelled, Err: err}
	}
	return &OpError{Op: op, Kind: ErrUnavailable, Err: err}
}

// IsNotFound returns true if err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsCancelled returns true if err is (or wraps) ErrCancelled.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
