package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptFile indicates a namespace file that exists but cannot be
	// decoded. The file is left in place; recovery is a caller decision.
	ErrCorruptFile = errors.New("storage: corrupt namespace file")

	// ErrClosed indicates an operation on a closed manager.
	ErrClosed = errors.New("storage: manager closed")

	// ErrUnknownKind indicates an unsupported backend kind.
	ErrUnknownKind = errors.New("storage: unknown backend kind")
)

// StorageError wraps an irrecoverable backend failure with the namespace
// and operation that hit it. Missing keys are never a StorageError.
type StorageError struct {
	Namespace string
	Op        string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: namespace %q: %v", e.Op, e.Namespace, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// storageErr builds a *StorageError for the given namespace and operation.
func storageErr(namespace, op string, err error) error {
	return &StorageError{Namespace: namespace, Op: op, Err: err}
}
