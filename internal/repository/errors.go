package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrRevisionMismatch is returned when a guarded update finds the
	// row at a different revision than expected.
	ErrRevisionMismatch = errors.New("entity revision mismatch")
)
