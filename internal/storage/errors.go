package storage

import "fmt"

// StorageError marks a local read/write failure. These are fatal to the
// triggering action: a write is never silently dropped, the caller sees
// the failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
