package storage

import "fmt"

var (
	// ErrNotFound is returned when the object at the given path does not
	// exist in the underlying store.
	ErrNotFound = fmt.Errorf("file not found")
)
