package index

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by the Find helpers when no bucket exists for a
	// term. Lookup reports the same condition with a false boolean.
	ErrNotFound = errors.New("term not found")
	// ErrCapacity is returned when the index cannot create another bucket.
	ErrCapacity = errors.New("index capacity exhausted")
	// ErrKeyCollision is returned when a value hashes to a key already held by
	// a different value.
	ErrKeyCollision = errors.New("key collision")
	// ErrMissingField is returned when the record has no value for the field.
	ErrMissingField = errors.New("record has no value for field")
	// ErrEmptyGenre is returned for a blank entry in a genre list.
	ErrEmptyGenre = errors.New("empty genre")
	// ErrUnknownField is returned for a Field outside the known set.
	ErrUnknownField = errors.New("unknown field")
	// ErrClosed is returned by mutating calls after Close.
	ErrClosed = errors.New("index closed")
)

// GenreError reports which entry of a record's genre list could not be
// indexed. Genres before Position were already indexed and are not rolled
// back.
type GenreError struct {
	Position int
	Genre    string
	Err      error
}

func (e *GenreError) Error() string {
	return fmt.Sprintf("indexing genre %d (%q): %v", e.Position, e.Genre, e.Err)
}

func (e *GenreError) Unwrap() error {
	return e.Err
}

// FailedGenre returns the 1-based position of the failing genre carried by
// err, or 0 when err is nil or not a GenreError.
func FailedGenre(err error) int {
	var ge *GenreError
	if errors.As(err, &ge) {
		return ge.Position
	}
	return 0
}
