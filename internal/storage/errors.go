package storage

import "errors"

var (
	// ErrNotFound is returned when a requested batch does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrEmptyRoundLog is returned when asked to persist a match that played no rounds.
	ErrEmptyRoundLog = errors.New("storage: refusing to write empty round log")
)
