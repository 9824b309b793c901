package worker

import (
	"errors"
	"fmt"
)

// Sentinel errors for the worker layer.
var (
	// ErrFatal marks a task failure that must not be retried.
	ErrFatal = errors.New("fatal task error")

	// ErrUnknownTask is reported for a task type with no handler.
	ErrUnknownTask = errors.New("unknown task type")
)

// Fatal wraps err so retry logic gives up on it.
func Fatal(err error) error {
	return fmt.Errorf("%w: %w", ErrFatal, err)
}

// IsFatal reports whether err must not be retried.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}
