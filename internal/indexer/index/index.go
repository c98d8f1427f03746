// Package index implements the per-field inverted indices over movie records.
//
// A TitleIndex maps each lower-cased title word to a DocPostings (document to
// row offsets). A ValueIndex maps a type, year, identifier or genre value to
// the RecordSet of records carrying it. Both keep a flat list of every
// distinct record indexed, and both are single-threaded: callers sharing an
// index across goroutines must serialise access themselves.
package index

import (
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/indexer/records"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/movie"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/metrics"
)

// ReleaseStats counts what Close released.
type ReleaseStats struct {
	Buckets      int
	RecordSets   int
	SetEntries   int
	DocPostings  int
	PostingLists int
	Offsets      int
	FlatEntries  int
	Records      int
}

// Add accumulates other into s.
func (s *ReleaseStats) Add(other ReleaseStats) {
	s.Buckets += other.Buckets
	s.RecordSets += other.RecordSets
	s.SetEntries += other.SetEntries
	s.DocPostings += other.DocPostings
	s.PostingLists += other.PostingLists
	s.Offsets += other.Offsets
	s.FlatEntries += other.FlatEntries
	s.Records += other.Records
}

type options struct {
	capacity int
	store    *records.Store
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option configures an index.
type Option func(*options)

// WithCapacity caps the number of keys the index may hold. Creating a bucket
// past the cap fails with ErrCapacity.
func WithCapacity(maxKeys int) Option {
	return func(o *options) { o.capacity = maxKeys }
}

// WithStore makes the index reference records in a store owned by the
// caller. Close then leaves the records alone. Without this option the index
// creates and owns a private store.
func WithStore(store *records.Store) Option {
	return func(o *options) { o.store = store }
}

// WithMetrics reports index activity to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// fieldIndex holds what both index variants share.
type fieldIndex[V bucket] struct {
	name      string
	table     *table[V]
	store     *records.Store
	ownsStore bool
	all       *RecordSet
	closed    bool
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func newFieldIndex[V bucket](name string, opts []Option) fieldIndex[V] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	owns := o.store == nil
	if owns {
		o.store = records.NewStore(0)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return fieldIndex[V]{
		name:      name,
		table:     newTable[V](o.capacity),
		store:     o.store,
		ownsStore: owns,
		all:       newRecordSet("all", o.store),
		metrics:   o.metrics,
		logger:    o.logger.With("component", "index", "index", name),
	}
}

// Name returns the name the index reports under.
func (f *fieldIndex[V]) Name() string {
	return f.name
}

// Len returns the number of keys.
func (f *fieldIndex[V]) Len() int {
	return f.table.len()
}

// Records returns every distinct record indexed, in first-seen order.
func (f *fieldIndex[V]) Records() []*movie.Movie {
	return f.all.Records()
}

// NumRecords returns the size of the flat record list.
func (f *fieldIndex[V]) NumRecords() int {
	return f.all.Len()
}

// Closed reports whether Close has been called.
func (f *fieldIndex[V]) Closed() bool {
	return f.closed
}

// Close releases every bucket and the flat record list. The records
// themselves are released only when the index owns its store. Calling Close
// again is a no-op.
func (f *fieldIndex[V]) Close() ReleaseStats {
	var stats ReleaseStats
	if f.closed {
		return stats
	}
	f.table.release(&stats)
	stats.FlatEntries = f.all.Len()
	f.all.order = nil
	f.all.members.Clear()
	if f.ownsStore {
		stats.Records = f.store.Release()
	}
	f.closed = true
	f.logger.Debug("index closed",
		"buckets", stats.Buckets,
		"records_released", stats.Records,
	)
	return stats
}

func (f *fieldIndex[V]) addToAll(m *movie.Movie) error {
	added, err := f.all.Add(m)
	if err != nil {
		return err
	}
	if added && f.metrics != nil {
		f.metrics.RecordsIndexedTotal.WithLabelValues(f.name).Inc()
	}
	return nil
}

func (f *fieldIndex[V]) lookup(key uint64, src source) (V, bool) {
	var zero V
	if f.closed {
		return zero, false
	}
	v, ok, err := f.table.get(key, src)
	if err != nil {
		f.logger.Warn("lookup hit a colliding key", "term", src.String(), "error", err)
		f.observeCollision()
		ok = false
		v = zero
	}
	if f.metrics != nil {
		result := "miss"
		if ok {
			result = "hit"
		}
		f.metrics.LookupsTotal.WithLabelValues(f.name, result).Inc()
	}
	return v, ok
}

func (f *fieldIndex[V]) bucketFor(key uint64, src source, create func() V) (V, error) {
	v, created, err := f.table.getOrCreate(key, src, create)
	if err != nil {
		f.observeFailure(err)
		return v, err
	}
	if created {
		f.logger.Debug("bucket created", "term", src.String(), "key", key)
		if f.metrics != nil {
			f.metrics.BucketsCreatedTotal.WithLabelValues(f.name).Inc()
		}
	}
	return v, nil
}

func (f *fieldIndex[V]) observeFailure(err error) {
	if isCollision(err) {
		f.logger.Warn("key collision", "error", err)
		f.observeCollision()
	}
	if f.metrics != nil {
		f.metrics.IndexFailuresTotal.WithLabelValues(f.name, failureReason(err)).Inc()
	}
}

func (f *fieldIndex[V]) observeCollision() {
	if f.metrics != nil {
		f.metrics.KeyCollisionsTotal.WithLabelValues(f.name).Inc()
	}
}

func (f *fieldIndex[V]) observeDuplicate() {
	if f.metrics != nil {
		f.metrics.DuplicatesIgnoredTotal.WithLabelValues(f.name).Inc()
	}
}
