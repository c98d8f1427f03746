// Package handler serves the read side of the movie index over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/movie"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/searcher/cache"
	apperrors "github.com/Adithya-Monish-Kumar-K/movieindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/logger"
)

// Engine is the read API of the index engine.
type Engine interface {
	Lookup(field index.Field, term string) ([]*movie.Movie, bool, error)
	LookupTitle(word string) (map[uint64][]int, bool, error)
	Stats() indexer.Stats
}

// Record is the JSON form of a movie.
type Record struct {
	ID      string   `json:"id"`
	Type    string   `json:"type,omitempty"`
	Title   string   `json:"title,omitempty"`
	Adult   bool     `json:"adult"`
	Year    *int     `json:"year,omitempty"`
	Runtime *int     `json:"runtime_minutes,omitempty"`
	Genres  []string `json:"genres"`
}

// LookupResponse answers GET /api/v1/lookup.
type LookupResponse struct {
	Field    string   `json:"field"`
	Term     string   `json:"term"`
	Found    bool     `json:"found"`
	Total    int      `json:"total"`
	Records  []Record `json:"records"`
	CacheHit bool     `json:"cache_hit"`
}

// Posting lists the row offsets of a word in one document.
type Posting struct {
	DocID   uint64 `json:"doc_id"`
	Offsets []int  `json:"offsets"`
}

// TitleResponse answers GET /api/v1/titles.
type TitleResponse struct {
	Word      string    `json:"word"`
	Found     bool      `json:"found"`
	Documents []Posting `json:"documents"`
	CacheHit  bool      `json:"cache_hit"`
}

type Handler struct {
	engine       Engine
	cache        *cache.LookupCache
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New creates a handler. lookupCache may be nil to serve every request from
// the engine.
func New(engine Engine, lookupCache *cache.LookupCache, defaultLimit, maxResults int) *Handler {
	return &Handler{
		engine:       engine,
		cache:        lookupCache,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "lookup-handler"),
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/lookup", h.Lookup)
	mux.HandleFunc("GET /api/v1/titles", h.Titles)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	field, err := index.ParseField(q.Get("field"))
	if err != nil {
		h.writeErr(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"field must be one of type, year, id, genre; got %q", q.Get("field")))
		return
	}
	term := strings.TrimSpace(q.Get("term"))
	if term == "" {
		h.writeErr(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"query parameter 'term' is required"))
		return
	}
	limit, err := h.parseLimit(q.Get("limit"))
	if err != nil {
		h.writeErr(w, err)
		return
	}

	cacheTerm := term
	if field == index.FieldGenre {
		cacheTerm = tokenizer.Normalize(term)
	}
	key := cache.Key("lookup", field.String(), cacheTerm, strconv.Itoa(limit))
	resp, hit, err := cache.GetOrCompute(ctx, h.cache, key, func() (LookupResponse, error) {
		return h.lookup(field, term, limit)
	})
	if err != nil {
		h.fail(ctx, w, "lookup failed", err)
		return
	}
	resp.CacheHit = hit

	logger.FromContext(ctx).Info("lookup completed",
		"field", field.String(),
		"term", term,
		"total", resp.Total,
		"cache_hit", hit,
	)
	if !resp.Found {
		h.writeJSON(w, http.StatusNotFound, resp)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) lookup(field index.Field, term string, limit int) (LookupResponse, error) {
	resp := LookupResponse{Field: field.String(), Term: term, Records: []Record{}}
	recs, ok, err := h.engine.Lookup(field, term)
	if err != nil {
		return resp, err
	}
	resp.Found = ok
	resp.Total = len(recs)
	if len(recs) > limit {
		recs = recs[:limit]
	}
	for _, m := range recs {
		resp.Records = append(resp.Records, toRecord(m))
	}
	return resp, nil
}

func (h *Handler) Titles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	word := tokenizer.Normalize(strings.TrimSpace(r.URL.Query().Get("word")))
	if word == "" || strings.ContainsAny(word, " \t") {
		h.writeErr(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"query parameter 'word' must be a single word"))
		return
	}

	resp, hit, err := cache.GetOrCompute(ctx, h.cache, cache.Key("titles", word), func() (TitleResponse, error) {
		resp := TitleResponse{Word: word, Documents: []Posting{}}
		docs, ok, err := h.engine.LookupTitle(word)
		if err != nil {
			return resp, err
		}
		resp.Found = ok
		for _, id := range sortedDocs(docs) {
			resp.Documents = append(resp.Documents, Posting{DocID: id, Offsets: docs[id]})
		}
		return resp, nil
	})
	if err != nil {
		h.fail(ctx, w, "title lookup failed", err)
		return
	}
	resp.CacheHit = hit
	if !resp.Found {
		h.writeJSON(w, http.StatusNotFound, resp)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Stats())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeErr(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.fail(r.Context(), w, "cache invalidation failed", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
	}
	if limit > h.maxResults {
		limit = h.maxResults
	}
	return limit, nil
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	logger.FromContext(ctx).Error(msg, "error", err)
	if errors.Is(err, indexer.ErrClosed) {
		err = fmt.Errorf("%w: %w", apperrors.ErrUnavailable, err)
	}
	h.writeErr(w, err)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": msg})
}

func toRecord(m *movie.Movie) Record {
	rec := Record{
		ID:     m.ID(),
		Type:   m.Type().OrElse(""),
		Title:  m.Title().OrElse(""),
		Adult:  m.Adult(),
		Genres: m.Genres(),
	}
	if y, ok := m.Year().Get(); ok {
		rec.Year = &y
	}
	if rt, ok := m.Runtime().Get(); ok {
		rec.Runtime = &rt
	}
	return rec
}

func sortedDocs(docs map[uint64][]int) []uint64 {
	ids := make([]uint64, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
