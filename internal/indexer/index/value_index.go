package index

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/indexer/keys"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/movie"
)

// Field selects the record attribute a ValueIndex is built over.
type Field int

const (
	FieldType Field = iota
	FieldYear
	FieldID
	FieldGenre
)

func (f Field) String() string {
	switch f {
	case FieldType:
		return "type"
	case FieldYear:
		return "year"
	case FieldID:
		return "id"
	case FieldGenre:
		return "genre"
	default:
		return "field(" + strconv.Itoa(int(f)) + ")"
	}
}

// ParseField maps a field name to a Field.
func ParseField(name string) (Field, error) {
	switch strings.ToLower(name) {
	case "type":
		return FieldType, nil
	case "year":
		return FieldYear, nil
	case "id":
		return FieldID, nil
	case "genre":
		return FieldGenre, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
}

// ValueIndex maps a field value to the set of records carrying it.
type ValueIndex struct {
	fieldIndex[*RecordSet]
}

// NewValueIndex creates an empty value index reporting under name.
func NewValueIndex(name string, opts ...Option) *ValueIndex {
	return &ValueIndex{fieldIndex: newFieldIndex[*RecordSet](name, opts)}
}

// IndexByField adds m to the set for its value of field. Type and identifier
// values are keyed with their case intact; years are keyed as integers.
// FieldGenre is handled by IndexByGenre. On error m is not added to the flat
// record list.
func (v *ValueIndex) IndexByField(m *movie.Movie, field Field) error {
	if field == FieldGenre {
		return v.IndexByGenre(m)
	}
	if v.closed {
		return ErrClosed
	}
	key, src, label, err := fieldKey(m, field)
	if err != nil {
		v.observeFailure(err)
		return fmt.Errorf("indexing %s of %s: %w", field, m.ID(), err)
	}
	if err := v.addTo(key, src, label, m); err != nil {
		return fmt.Errorf("indexing %s %q of %s: %w", field, label, m.ID(), err)
	}
	return v.addToAll(m)
}

// IndexByGenre adds m to the set of every genre in its genre list, in order.
// Genres are keyed case-folded and labelled with their first-seen spelling.
// On failure it returns a *GenreError naming the 1-based position of the
// failing genre; genres before it stay indexed and m is not added to the flat
// record list. A record without genres is only added to the flat list.
func (v *ValueIndex) IndexByGenre(m *movie.Movie) error {
	if v.closed {
		return ErrClosed
	}
	for i := 0; i < m.NumGenres(); i++ {
		genre := m.Genre(i)
		term := tokenizer.Normalize(strings.TrimSpace(genre))
		var err error
		if term == "" {
			err = ErrEmptyGenre
			v.observeFailure(err)
		} else {
			err = v.addTo(keys.ForText(term), textSource(term), genre, m)
		}
		if err != nil {
			return &GenreError{Position: i + 1, Genre: genre, Err: err}
		}
	}
	return v.addToAll(m)
}

// addTo interns m before touching the table so a failed intern never
// leaves an empty bucket behind.
func (v *ValueIndex) addTo(key uint64, src source, label string, m *movie.Movie) error {
	h, _, err := v.store.Intern(m)
	if err != nil {
		v.observeFailure(err)
		return err
	}
	set, err := v.bucketFor(key, src, func() *RecordSet {
		return newRecordSet(label, v.store)
	})
	if err != nil {
		return err
	}
	if !set.addHandle(h) {
		v.observeDuplicate()
	}
	return nil
}

// Lookup case-folds term and returns the set stored under it. Use it for
// genres, and for identifiers and types that are already lower case.
func (v *ValueIndex) Lookup(term string) (*RecordSet, bool) {
	return v.LookupExact(tokenizer.Normalize(term))
}

// LookupExact returns the set stored under value without case folding.
func (v *ValueIndex) LookupExact(value string) (*RecordSet, bool) {
	return v.lookup(keys.ForText(value), textSource(value))
}

// LookupYear returns the set of records released in year.
func (v *ValueIndex) LookupYear(year int) (*RecordSet, bool) {
	return v.lookup(keys.ForInteger(int64(year)), intSource(int64(year)))
}

// LookupField looks value up the way records were keyed for field.
func (v *ValueIndex) LookupField(field Field, value string) (*RecordSet, bool) {
	switch field {
	case FieldYear:
		year, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, false
		}
		return v.LookupYear(year)
	case FieldGenre:
		return v.Lookup(value)
	default:
		return v.LookupExact(value)
	}
}

// Find is Lookup returning ErrNotFound instead of a boolean.
func (v *ValueIndex) Find(term string) (*RecordSet, error) {
	set, ok := v.Lookup(term)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, term)
	}
	return set, nil
}

func fieldKey(m *movie.Movie, field Field) (uint64, source, string, error) {
	switch field {
	case FieldType:
		typ, ok := m.Type().Get()
		if !ok {
			return 0, source{}, "", ErrMissingField
		}
		return keys.ForText(typ), textSource(typ), typ, nil
	case FieldYear:
		year, ok := m.Year().Get()
		if !ok {
			return 0, source{}, "", ErrMissingField
		}
		return keys.ForInteger(int64(year)), intSource(int64(year)), strconv.Itoa(year), nil
	case FieldID:
		return keys.ForText(m.ID()), textSource(m.ID()), m.ID(), nil
	default:
		return 0, source{}, "", fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
}
