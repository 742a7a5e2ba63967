package storage

import (
	"errors"
	"fmt"
)

// =============================================================================
// Sentinel Errors
// =============================================================================

var (
	// ErrNotFound is returned when the requested key does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrKeyExists is returned when attempting to put an object at a key
	// that already exists without the Overwrite option set.
	ErrKeyExists = errors.New("key already exists")

	// ErrInvalidKey is returned when the key is malformed or contains
	// path traversal sequences.
	ErrInvalidKey = errors.New("invalid key")

	// ErrTooLarge is returned when the object exceeds the configured
	// maximum size.
	ErrTooLarge = errors.New("object too large")

	// ErrAccessDenied is returned when the backend rejects the operation
	// due to insufficient permissions.
	ErrAccessDenied = errors.New("access denied")
)

// =============================================================================
// Error Wrapping
// =============================================================================

// StorageError wraps storage operation failures with contextual information.
type StorageError struct {
	Op  string // Operation that failed: "put", "get", "delete", "url", "exists"
	Key string // Key involved in the operation
	Err error  // Underlying error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// newError constructs a StorageError for the given operation and key.
func newError(op, key string, err error) *StorageError {
	return &StorageError{Op: op, Key: key, Err: err}
}
