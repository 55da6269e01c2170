package batches

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches every NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrInvalidOperation matches every InvalidOperationError.
	ErrInvalidOperation = errors.New("invalid operation")
)

// NotFoundError reports an id that does not resolve.
type NotFoundError struct {
	Op string
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: batch %s not found", e.Op, e.ID)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidOperationError reports a validation failure. Nothing was persisted.
type InvalidOperationError struct {
	Op     string
	Reason string
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidOperation) match.
func (e *InvalidOperationError) Is(target error) bool { return target == ErrInvalidOperation }

func notFound(op, id string) error {
	return &NotFoundError{Op: op, ID: id}
}

func invalid(op, format string, args ...any) error {
	return &InvalidOperationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
