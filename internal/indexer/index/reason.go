package index

import (
	"errors"

	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/indexer/records"
)

// IsCapacity reports whether err came from the index or its record store
// running out of room rather than from the row itself.
func IsCapacity(err error) bool {
	return errors.Is(err, ErrCapacity) || errors.Is(err, records.ErrCapacity)
}

func isCollision(err error) bool {
	return errors.Is(err, ErrKeyCollision)
}

// failureReason maps an indexing error to a short metric label.
func failureReason(err error) string {
	switch {
	case IsCapacity(err):
		return "capacity"
	case errors.Is(err, ErrKeyCollision):
		return "collision"
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrEmptyGenre):
		return "empty_genre"
	case errors.Is(err, ErrClosed), errors.Is(err, records.ErrReleased):
		return "closed"
	default:
		return "other"
	}
}
