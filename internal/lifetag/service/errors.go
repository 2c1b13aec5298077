package service

import (
	"errors"
	"fmt"
)

var (
	ErrPasswordRequired = errors.New("password is required")
	ErrTooManyAttempts  = errors.New("too many attempts")
	ErrMalformedHash    = errors.New("stored password hash is malformed")
	ErrMalformedGrant   = errors.New("stored access grant is malformed")
	ErrInvalidPurpose   = errors.New("purpose is required")

	ErrSessionNotFound = errors.New("prompt session not found")
	ErrSessionClosed   = errors.New("prompt session already granted")

	ErrInvalidProfile  = errors.New("invalid profile")
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")

	ErrCleanupRunning = errors.New("cleanup already running")
)

// StorageError marks a failure of the underlying grant, profile or audit
// store.  It is never used for an authentication mismatch.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorage reports whether err is, or wraps, a *StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
