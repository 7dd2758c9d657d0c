package interfaces

import "errors"

var (
	ErrNotFound     = errors.New("document not found")
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrConflict is returned when a guarded write matched no document because
	// the guarded state was changed by someone else first.
	ErrConflict = errors.New("guarded update matched no document")
)
