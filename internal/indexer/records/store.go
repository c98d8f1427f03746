// Package records provides the arena that owns every movie referenced by the
// field indices. Indices hold integer handles into a Store instead of record
// pointers, so a record shared by many buckets is still released exactly once.
package records

import (
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/movie"
)

var (
	// ErrCapacity is returned when the store cannot take another record.
	ErrCapacity = errors.New("record store capacity exhausted")
	// ErrReleased is returned by Intern after Release.
	ErrReleased = errors.New("record store released")
)

// Handle identifies a record inside one Store.
type Handle uint32

// Store interns movies by identifier. The first movie seen for an identifier
// wins; later movies with the same identifier resolve to the same handle.
type Store struct {
	movies   []*movie.Movie
	byID     map[string]Handle
	capacity int
	released bool
}

// NewStore creates a store. A capacity <= 0 means unbounded.
func NewStore(capacity int) *Store {
	return &Store{
		byID:     make(map[string]Handle),
		capacity: capacity,
	}
}

// Intern returns the handle for m's identifier, adding m when the identifier
// is new. The boolean reports whether m was added.
func (s *Store) Intern(m *movie.Movie) (Handle, bool, error) {
	if s.released {
		return 0, false, ErrReleased
	}
	if h, ok := s.byID[m.ID()]; ok {
		return h, false, nil
	}
	if s.capacity > 0 && len(s.movies) >= s.capacity {
		return 0, false, fmt.Errorf("%w: %d records", ErrCapacity, s.capacity)
	}
	h := Handle(len(s.movies))
	s.movies = append(s.movies, m)
	s.byID[m.ID()] = h
	return h, true, nil
}

// Get resolves a handle. It returns nil for unknown handles or after Release.
func (s *Store) Get(h Handle) *movie.Movie {
	if int(h) >= len(s.movies) {
		return nil
	}
	return s.movies[h]
}

// Lookup returns the handle of the record with the given identifier.
func (s *Store) Lookup(id string) (Handle, bool) {
	h, ok := s.byID[id]
	return h, ok
}

// Len returns the number of records held.
func (s *Store) Len() int {
	return len(s.movies)
}

// Release drops every record and returns how many were released. Calling it
// again releases nothing.
func (s *Store) Release() int {
	if s.released {
		return 0
	}
	n := len(s.movies)
	for i := range s.movies {
		s.movies[i] = nil
	}
	s.movies = nil
	s.byID = nil
	s.released = true
	return n
}

// Released reports whether Release has been called.
func (s *Store) Released() bool {
	return s.released
}
