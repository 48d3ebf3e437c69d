package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	// ErrStorage marks failures of the backing store as opposed to business
	// rule violations.
	ErrStorage = errors.New("storage failure")
)

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// StorageError wraps a driver error. Errors that already carry a domain
// classification pass through unchanged.
func StorageError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrConflict) || errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

// InUseError reports a deletion blocked by dependent inspections.
type InUseError struct {
	Resource string
	ID       uuid.UUID
	Count    int
}

func (e *InUseError) Error() string {
	plural := "s"
	if e.Count == 1 {
		plural = ""
	}
	return fmt.Sprintf("%s %s can not be deleted: there are %d inspection%s based on it", e.Resource, e.ID, e.Count, plural)
}

func (e *InUseError) Is(target error) bool {
	return target == ErrConflict
}

// Message returns the error text without the sentinel prefix, suitable for
// API responses.
func Message(err error) string {
	for _, sentinel := range []error{ErrNotFound, ErrInvalidArgument, ErrConflict} {
		prefix := sentinel.Error() + ": "
		if msg := err.Error(); len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return err.Error()
}
