package store

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")

	// ErrConflict is returned when a conditional write finds the record in a
	// state other than the one it expects.
	ErrConflict = errors.New("conflicting state")
)
