package index

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/indexer/records"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/movie"
)

// RecordSet is an insertion-ordered set of records, unique by identifier.
// Records live in a records.Store; the set keeps handles into it plus a
// bitmap for membership checks.
type RecordSet struct {
	label   string
	store   *records.Store
	order   []records.Handle
	members *roaring.Bitmap
}

func newRecordSet(label string, store *records.Store) *RecordSet {
	return &RecordSet{
		label:   label,
		store:   store,
		members: roaring.New(),
	}
}

// Label returns the field value the set was created for, e.g. "Comedy".
func (s *RecordSet) Label() string {
	return s.label
}

// Add inserts m unless a record with the same identifier is already present.
// It reports whether the set grew.
func (s *RecordSet) Add(m *movie.Movie) (bool, error) {
	h, _, err := s.store.Intern(m)
	if err != nil {
		return false, err
	}
	return s.addHandle(h), nil
}

func (s *RecordSet) addHandle(h records.Handle) bool {
	if !s.members.CheckedAdd(uint32(h)) {
		return false
	}
	s.order = append(s.order, h)
	return true
}

// Contains reports whether a record with the given identifier is present.
func (s *RecordSet) Contains(id string) bool {
	h, ok := s.store.Lookup(id)
	return ok && s.members.Contains(uint32(h))
}

// Len returns the number of distinct records.
func (s *RecordSet) Len() int {
	return len(s.order)
}

// Handles returns the record handles in first-seen order.
func (s *RecordSet) Handles() []records.Handle {
	out := make([]records.Handle, len(s.order))
	copy(out, s.order)
	return out
}

// Records resolves the set to records in first-seen order.
func (s *RecordSet) Records() []*movie.Movie {
	out := make([]*movie.Movie, 0, len(s.order))
	for _, h := range s.order {
		if m := s.store.Get(h); m != nil {
			out = append(out, m)
		}
	}
	return out
}

// IDs returns the record identifiers in first-seen order.
func (s *RecordSet) IDs() []string {
	recs := s.Records()
	ids := make([]string, len(recs))
	for i, m := range recs {
		ids[i] = m.ID()
	}
	return ids
}

func (s *RecordSet) release(stats *ReleaseStats) {
	stats.RecordSets++
	stats.SetEntries += len(s.order)
	s.order = nil
	s.members.Clear()
}
