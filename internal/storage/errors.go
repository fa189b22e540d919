package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a record whose key already exists.
	// Append-only records (events, executed trades) never allow updates.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrConflict is returned when a versioned update was based on a stale read.
	ErrConflict = errors.New("version conflict: record changed since it was read")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
