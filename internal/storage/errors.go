package storage

import "errors"

var (
	// ErrDuplicate is returned when attempting to create a resource that already exists.
	ErrDuplicate = errors.New("resource already exists")

	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidGrant is returned when a grant names neither or both of
	// municipality and state.
	ErrInvalidGrant = errors.New("grant must name exactly one of municipality or state")
)
