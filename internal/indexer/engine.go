package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/indexer/records"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/movie"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/metrics"
)

// ErrClosed is returned by Engine calls after Close.
var ErrClosed = errors.New("engine closed")

// Engine builds every field index over one shared record store and guards
// them with a single lock. The engine owns the store; the indices only
// borrow it.
type Engine struct {
	mu      sync.RWMutex
	store   *records.Store
	titles  *index.TitleIndex
	values  map[index.Field]*index.ValueIndex
	cfg     config.IndexerConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
	closed  bool
}

// Stats is a point-in-time summary of the engine's indices.
type Stats struct {
	Records     int            `json:"records"`
	TitleWords  int            `json:"title_words"`
	FieldValues map[string]int `json:"field_values"`
}

// NewEngine creates an empty engine. m may be nil.
func NewEngine(cfg config.IndexerConfig, m *metrics.Metrics) *Engine {
	log := logger.WithComponent("indexer")
	store := records.NewStore(cfg.RecordCapacity)
	opts := []index.Option{
		index.WithStore(store),
		index.WithCapacity(cfg.KeyCapacity),
		index.WithMetrics(m),
		index.WithLogger(log),
	}
	e := &Engine{
		store:   store,
		titles:  index.NewTitleIndex(opts...),
		values:  make(map[index.Field]*index.ValueIndex, 4),
		cfg:     cfg,
		metrics: m,
		logger:  log,
	}
	for _, f := range []index.Field{index.FieldType, index.FieldYear, index.FieldID, index.FieldGenre} {
		e.values[f] = index.NewValueIndex(f.String(), opts...)
	}
	return e
}

// IndexMovie indexes m under its title words (as docID/rowOffset) and under
// its type, year, identifier and genres. Absent optional fields are skipped.
// Indexing stops at the first failure; indices already updated for m are not
// rolled back.
func (e *Engine) IndexMovie(ctx context.Context, m *movie.Movie, docID uint64, rowOffset int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	if err := e.titles.IndexMovieTitle(m, docID, rowOffset); err != nil {
		return fmt.Errorf("indexing title of %s: %w", m.ID(), err)
	}
	for _, f := range []index.Field{index.FieldType, index.FieldYear, index.FieldID} {
		err := e.values[f].IndexByField(m, f)
		if errors.Is(err, index.ErrMissingField) {
			continue
		}
		if err != nil {
			return err
		}
	}
	if err := e.values[index.FieldGenre].IndexByGenre(m); err != nil {
		return fmt.Errorf("indexing genres of %s: %w", m.ID(), err)
	}
	if e.metrics != nil {
		e.metrics.StoredRecords.Set(float64(e.store.Len()))
	}
	e.logger.Debug("movie indexed",
		"id", m.ID(),
		"doc_id", docID,
		"row", rowOffset,
		"records", e.store.Len(),
	)
	return nil
}

// Lookup returns the records whose field equals term, in first-seen order.
// The boolean is false when no record carries the value.
func (e *Engine) Lookup(field index.Field, term string) ([]*movie.Movie, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, false, ErrClosed
	}
	idx, ok := e.values[field]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", index.ErrUnknownField, field)
	}
	set, ok := idx.LookupField(field, term)
	if !ok {
		return nil, false, nil
	}
	return set.Records(), true, nil
}

// LookupTitle returns, for each document containing word, its row offsets.
func (e *Engine) LookupTitle(word string) (map[uint64][]int, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, false, ErrClosed
	}
	dp, ok := e.titles.Lookup(word)
	if !ok {
		return nil, false, nil
	}
	out := make(map[uint64][]int, dp.Len())
	for _, doc := range dp.Docs() {
		pl, _ := dp.Get(doc)
		out[doc] = pl.Offsets()
	}
	return out, true, nil
}

// Stats reports index sizes.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := Stats{FieldValues: make(map[string]int, len(e.values))}
	if e.closed {
		return s
	}
	s.Records = e.store.Len()
	s.TitleWords = e.titles.Len()
	for f, idx := range e.values {
		s.FieldValues[f.String()] = idx.Len()
	}
	return s
}

// Close tears down every index, then releases the records once.
func (e *Engine) Close() index.ReleaseStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	var total index.ReleaseStats
	if e.closed {
		return total
	}
	total.Add(e.titles.Close())
	for _, idx := range e.values {
		total.Add(idx.Close())
	}
	total.Records = e.store.Release()
	e.closed = true
	if e.metrics != nil {
		e.metrics.StoredRecords.Set(0)
	}
	e.logger.Info("engine closed",
		"buckets", total.Buckets,
		"records_released", total.Records,
	)
	return total
}
