package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/movie"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/config"
)

var rows = []string{
	"tt0070735|movie|The Sting|The Sting|0|1973|-|129|Comedy,Crime,Drama",
	"tt0071562|movie|The Godfather Part II|The Godfather Part II|0|1974|-|202|Crime,Drama",
	"tt0072890|movie|Dog Day Afternoon|Dog Day Afternoon|0|1975|-|125|Biography,Crime,Drama",
}

func newEngine(t *testing.T) *indexer.Engine {
	t.Helper()
	e := indexer.NewEngine(config.IndexerConfig{}, nil)
	t.Cleanup(func() { e.Close() })
	for i, row := range rows {
		m, err := movie.ParseRow(row)
		require.NoError(t, err)
		require.NoError(t, e.IndexMovie(context.Background(), m, 1, i))
	}
	return e
}

type memBackend struct{ data map[string]string }

func (b *memBackend) Get(_ context.Context, key string) (string, error) {
	v, ok := b.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (b *memBackend) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b.data[key] = string(value.([]byte))
	return nil
}

func (b *memBackend) FlushByPattern(context.Context, string) (int64, error) {
	n := int64(len(b.data))
	b.data = map[string]string{}
	return n, nil
}

func serve(h *Handler, method, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Routes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestLookupByGenre(t *testing.T) {
	h := New(newEngine(t), nil, 100, 1000)

	rec := serve(h, http.MethodGet, "/api/v1/lookup?field=genre&term=CRIME")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[LookupResponse](t, rec)
	assert.True(t, resp.Found)
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Records, 3)
	assert.Equal(t, "tt0070735", resp.Records[0].ID)
	assert.Equal(t, "The Sting", resp.Records[0].Title)
	require.NotNil(t, resp.Records[0].Year)
	assert.Equal(t, 1973, *resp.Records[0].Year)
	assert.Equal(t, []string{"Comedy", "Crime", "Drama"}, resp.Records[0].Genres)
}

func TestLookupFields(t *testing.T) {
	h := New(newEngine(t), nil, 100, 1000)
	tests := []struct {
		target string
		status int
		total  int
	}{
		{"/api/v1/lookup?field=year&term=1974", http.StatusOK, 1},
		{"/api/v1/lookup?field=type&term=movie", http.StatusOK, 3},
		{"/api/v1/lookup?field=id&term=tt0072890", http.StatusOK, 1},
		{"/api/v1/lookup?field=genre&term=western", http.StatusNotFound, 0},
		{"/api/v1/lookup?field=year&term=soon", http.StatusNotFound, 0},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := serve(h, http.MethodGet, tt.target)
			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.total, decode[LookupResponse](t, rec).Total)
		})
	}
}

func TestLookupLimit(t *testing.T) {
	h := New(newEngine(t), nil, 100, 2)

	rec := serve(h, http.MethodGet, "/api/v1/lookup?field=genre&term=drama&limit=50")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[LookupResponse](t, rec)
	assert.Equal(t, 3, resp.Total)
	assert.Len(t, resp.Records, 2)
}

func TestLookupBadRequests(t *testing.T) {
	h := New(newEngine(t), nil, 100, 1000)
	for _, target := range []string{
		"/api/v1/lookup?field=director&term=x",
		"/api/v1/lookup?field=genre",
		"/api/v1/lookup?field=genre&term=drama&limit=0",
		"/api/v1/titles?word=",
	} {
		rec := serve(h, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}

	rec := serve(h, http.MethodGet, "/api/v1/lookup?field=director&term=x")
	assert.Equal(t, `field must be one of type, year, id, genre; got "director"`, decode[map[string]string](t, rec)["error"])
}

func TestTitles(t *testing.T) {
	h := New(newEngine(t), nil, 100, 1000)

	rec := serve(h, http.MethodGet, "/api/v1/titles?word=The")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[TitleResponse](t, rec)
	assert.Equal(t, "the", resp.Word)
	assert.Equal(t, []Posting{{DocID: 1, Offsets: []int{0, 1}}}, resp.Documents)

	rec = serve(h, http.MethodGet, "/api/v1/titles?word=heat")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLookupUsesCache(t *testing.T) {
	backend := &memBackend{data: map[string]string{}}
	h := New(newEngine(t), cache.New(backend, time.Minute, nil), 100, 1000)

	first := decode[LookupResponse](t, serve(h, http.MethodGet, "/api/v1/lookup?field=genre&term=Crime"))
	assert.False(t, first.CacheHit)
	second := decode[LookupResponse](t, serve(h, http.MethodGet, "/api/v1/lookup?field=genre&term=crime"))
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Total, second.Total)

	rec := serve(h, http.MethodPost, "/api/v1/cache/invalidate")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, backend.data)

	stats := decode[map[string]any](t, serve(h, http.MethodGet, "/api/v1/cache/stats"))
	assert.Equal(t, 1.0, stats["hits"])
}

func TestCacheInvalidateDisabled(t *testing.T) {
	h := New(newEngine(t), nil, 100, 1000)
	rec := serve(h, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStats(t *testing.T) {
	h := New(newEngine(t), nil, 100, 1000)
	rec := serve(h, http.MethodGet, "/api/v1/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[indexer.Stats](t, rec)
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 4, stats.FieldValues["genre"])
	assert.Equal(t, 3, stats.FieldValues["year"])
}

func TestLookupAfterCloseIsUnavailable(t *testing.T) {
	e := newEngine(t)
	h := New(e, nil, 100, 1000)
	e.Close()

	rec := serve(h, http.MethodGet, "/api/v1/lookup?field=genre&term=crime")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
