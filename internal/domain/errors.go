package domain

import (
	"errors"
	"fmt"

	"example.com/footprint/internal/emissions"
)

// ValidationError mirrors the calculator's error type so callers only
// need one check for rejected input.
type ValidationError = emissions.ValidationError

// ErrUserNotFound is returned when the owning user does not exist.
var ErrUserNotFound = errors.New("user not found")

// StorageError wraps a backing-store failure. The core never retries;
// retry policy belongs to callers or infrastructure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// wrapStorage tags an error as a StorageError unless it already carries
// domain meaning (validation, not-found, or an earlier storage wrap).
func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	var serr *StorageError
	if errors.As(err, &verr) || errors.As(err, &serr) || errors.Is(err, ErrUserNotFound) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
