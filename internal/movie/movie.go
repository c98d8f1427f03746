// Package movie defines the indexed movie record and the row format it is
// parsed from.
package movie

import "fmt"

// Optional holds a value that may be absent. The zero value is absent.
type Optional[T any] struct {
	value T
	set   bool
}

// Some wraps a present value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// None returns an absent value.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether the value is present.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// OrElse returns the value, or fallback when absent.
func (o Optional[T]) OrElse(fallback T) T {
	if !o.set {
		return fallback
	}
	return o.value
}

func (o Optional[T]) String() string {
	if !o.set {
		return "-"
	}
	return fmt.Sprint(o.value)
}

// Movie is a single title record. It is immutable once built; the index keeps
// references to it and never copies it.
type Movie struct {
	id      string
	typ     Optional[string]
	title   Optional[string]
	adult   bool
	year    Optional[int]
	runtime Optional[int]
	genres  []string
}

// Attrs carries the optional attributes of a Movie for New.
type Attrs struct {
	Type    Optional[string]
	Title   Optional[string]
	Adult   bool
	Year    Optional[int]
	Runtime Optional[int]
	Genres  []string
}

// New builds a Movie. The genre slice is copied.
func New(id string, attrs Attrs) (*Movie, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty identifier", ErrMalformedRow)
	}
	genres := make([]string, len(attrs.Genres))
	copy(genres, attrs.Genres)
	return &Movie{
		id:      id,
		typ:     attrs.Type,
		title:   attrs.Title,
		adult:   attrs.Adult,
		year:    attrs.Year,
		runtime: attrs.Runtime,
		genres:  genres,
	}, nil
}

func (m *Movie) ID() string { return m.id }
func (m *Movie) Type() Optional[string] { return m.typ }
func (m *Movie) Title() Optional[string] { return m.title }
func (m *Movie) Adult() bool { return m.adult }
func (m *Movie) Year() Optional[int] { return m.year }
func (m *Movie) Runtime() Optional[int] { return m.runtime }
func (m *Movie) NumGenres() int { return len(m.genres) }
func (m *Movie) Genre(i int) string { return m.genres[i] }

// Genres returns a copy of the ordered genre list.
func (m *Movie) Genres() []string {
	out := make([]string, len(m.genres))
	copy(out, m.genres)
	return out
}

func (m *Movie) String() string {
	return fmt.Sprintf("%s|%s|%s|%d|%s", m.id, m.typ, m.title, m.year.OrElse(-1), m.genres)
}
