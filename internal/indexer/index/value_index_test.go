package index

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/indexer/records"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/movie"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/metrics"
)

func mustMovie(t *testing.T, id string, attrs movie.Attrs) *movie.Movie {
	t.Helper()
	m, err := movie.New(id, attrs)
	require.NoError(t, err)
	return m
}

func TestIndexByTypeGroupsRecordsInOrder(t *testing.T) {
	idx := NewValueIndex("type")
	r1 := mustMovie(t, "tt1", movie.Attrs{Type: movie.Some("movie")})
	r2 := mustMovie(t, "tt2", movie.Attrs{Type: movie.Some("movie")})
	r3 := mustMovie(t, "tt3", movie.Attrs{Type: movie.Some("short")})

	for _, m := range []*movie.Movie{r2, r1, r3} {
		require.NoError(t, idx.IndexByField(m, FieldType))
	}

	set, ok := idx.Lookup("movie")
	require.True(t, ok)
	assert.Equal(t, "movie", set.Label())
	assert.Equal(t, []string{"tt2", "tt1"}, set.IDs())
	assert.Equal(t, []*movie.Movie{r2, r1}, set.Records())
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, 3, idx.NumRecords())
}

func TestIndexByFieldIsIdempotent(t *testing.T) {
	idx := NewValueIndex("type")
	m := mustMovie(t, "tt1", movie.Attrs{Type: movie.Some("movie")})

	require.NoError(t, idx.IndexByField(m, FieldType))
	set, ok := idx.Lookup("movie")
	require.True(t, ok)
	require.Equal(t, 1, set.Len())

	require.NoError(t, idx.IndexByField(m, FieldType))
	// A different object with the same identifier is the same record.
	dup := mustMovie(t, "tt1", movie.Attrs{Type: movie.Some("movie")})
	require.NoError(t, idx.IndexByField(dup, FieldType))

	assert.Equal(t, 1, set.Len())
	assert.Equal(t, 1, idx.NumRecords())
	assert.Same(t, m, set.Records()[0])
}

func TestTypeKeepsCase(t *testing.T) {
	idx := NewValueIndex("type")
	m := mustMovie(t, "tt1", movie.Attrs{Type: movie.Some("tvSeries")})
	require.NoError(t, idx.IndexByField(m, FieldType))

	_, ok := idx.Lookup("tvSeries")
	assert.False(t, ok, "Lookup folds case, the type was keyed as written")

	set, ok := idx.LookupExact("tvSeries")
	require.True(t, ok)
	assert.True(t, set.Contains("tt1"))

	set, ok = idx.LookupField(FieldType, "tvSeries")
	require.True(t, ok)
	assert.Equal(t, 1, set.Len())
}

func TestIndexByYear(t *testing.T) {
	idx := NewValueIndex("year")
	a := mustMovie(t, "tt1", movie.Attrs{Year: movie.Some(2004)})
	b := mustMovie(t, "tt2", movie.Attrs{Year: movie.Some(2004)})
	c := mustMovie(t, "tt3", movie.Attrs{Year: movie.Some(1999)})
	for _, m := range []*movie.Movie{a, b, c} {
		require.NoError(t, idx.IndexByField(m, FieldYear))
	}

	set, ok := idx.LookupYear(2004)
	require.True(t, ok)
	assert.Equal(t, "2004", set.Label())
	assert.Equal(t, []string{"tt1", "tt2"}, set.IDs())

	set, ok = idx.LookupField(FieldYear, " 1999 ")
	require.True(t, ok)
	assert.Equal(t, []string{"tt3"}, set.IDs())

	_, ok = idx.Lookup("2004")
	assert.False(t, ok, "years are keyed as integers, not text")
	_, ok = idx.LookupField(FieldYear, "not-a-year")
	assert.False(t, ok)
}

func TestIndexByID(t *testing.T) {
	idx := NewValueIndex("id")
	m := mustMovie(t, "tt0000001", movie.Attrs{})
	require.NoError(t, idx.IndexByField(m, FieldID))

	set, err := idx.Find("tt0000001")
	require.NoError(t, err)
	assert.Equal(t, "tt0000001", set.Label())
	assert.Same(t, m, set.Records()[0])
}

func TestIndexByFieldMissingValue(t *testing.T) {
	idx := NewValueIndex("year")
	m := mustMovie(t, "tt1", movie.Attrs{})

	err := idx.IndexByField(m, FieldYear)
	assert.ErrorIs(t, err, ErrMissingField)
	assert.Equal(t, 0, idx.NumRecords())
	assert.Equal(t, 0, idx.Len())

	assert.ErrorIs(t, idx.IndexByField(m, Field(42)), ErrUnknownField)
}

func TestIndexByFieldCapacityFailureSkipsFlatList(t *testing.T) {
	idx := NewValueIndex("type", WithCapacity(1))
	require.NoError(t, idx.IndexByField(mustMovie(t, "tt1", movie.Attrs{Type: movie.Some("movie")}), FieldType))

	failed := mustMovie(t, "tt2", movie.Attrs{Type: movie.Some("short")})
	err := idx.IndexByField(failed, FieldType)
	assert.ErrorIs(t, err, ErrCapacity)
	assert.Equal(t, 1, idx.NumRecords())

	// Existing buckets still accept records.
	require.NoError(t, idx.IndexByField(mustMovie(t, "tt3", movie.Attrs{Type: movie.Some("movie")}), FieldType))
	assert.Equal(t, 2, idx.NumRecords())
}

func TestRecordCapacityLeavesNoEmptyBucket(t *testing.T) {
	idx := NewValueIndex("type", WithStore(records.NewStore(1)))
	require.NoError(t, idx.IndexByField(mustMovie(t, "tt1", movie.Attrs{Type: movie.Some("movie")}), FieldType))

	err := idx.IndexByField(mustMovie(t, "tt2", movie.Attrs{Type: movie.Some("short")}), FieldType)
	require.ErrorIs(t, err, records.ErrCapacity)

	_, ok := idx.Lookup("short")
	assert.False(t, ok)
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, 1, idx.NumRecords())
}

func TestGenreRecordCapacityLeavesNoEmptyBucket(t *testing.T) {
	idx := NewValueIndex("genre", WithStore(records.NewStore(1)))
	require.NoError(t, idx.IndexByGenre(mustMovie(t, "tt1", movie.Attrs{Genres: []string{"Drama"}})))

	err := idx.IndexByGenre(mustMovie(t, "tt2", movie.Attrs{Genres: []string{"Comedy", "Drama"}}))
	require.ErrorIs(t, err, records.ErrCapacity)
	assert.Equal(t, 1, FailedGenre(err))

	_, ok := idx.Lookup("comedy")
	assert.False(t, ok)
	set, ok := idx.Lookup("drama")
	require.True(t, ok)
	assert.Equal(t, []string{"tt1"}, set.IDs())
}

func TestIndexByGenre(t *testing.T) {
	idx := NewValueIndex("genre")
	m := mustMovie(t, "tt1", movie.Attrs{Genres: []string{"Comedy", "Drama"}})
	require.NoError(t, idx.IndexByGenre(m))

	comedy, ok := idx.Lookup("Comedy")
	require.True(t, ok)
	assert.True(t, comedy.Contains("tt1"))
	assert.Equal(t, "Comedy", comedy.Label())

	drama, ok := idx.Lookup("Drama")
	require.True(t, ok)
	assert.True(t, drama.Contains("tt1"))

	again, ok := idx.Lookup("comedy")
	require.True(t, ok)
	assert.Same(t, comedy, again)
	assert.Equal(t, 1, idx.NumRecords())
}

func TestIndexByFieldDispatchesGenre(t *testing.T) {
	idx := NewValueIndex("genre")
	m := mustMovie(t, "tt1", movie.Attrs{Genres: []string{"Horror"}})
	require.NoError(t, idx.IndexByField(m, FieldGenre))

	set, ok := idx.LookupField(FieldGenre, "HORROR")
	require.True(t, ok)
	assert.Equal(t, 1, set.Len())
}

func TestIndexByGenreEmptyList(t *testing.T) {
	idx := NewValueIndex("genre")
	m := mustMovie(t, "tt1", movie.Attrs{})

	err := idx.IndexByGenre(m)
	require.NoError(t, err)
	assert.Equal(t, 0, FailedGenre(err))
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, 1, idx.NumRecords())
}

func TestIndexByGenreReportsFailingPosition(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		genres   []string
		position int
		cause    error
		indexed  []string
	}{
		{
			name:     "capacity on second genre",
			opts:     []Option{WithCapacity(1)},
			genres:   []string{"Comedy", "Drama"},
			position: 2,
			cause:    ErrCapacity,
			indexed:  []string{"Comedy"},
		},
		{
			name:     "blank genre",
			genres:   []string{"Comedy", "Drama", " "},
			position: 3,
			cause:    ErrEmptyGenre,
			indexed:  []string{"Comedy", "Drama"},
		},
		{
			name:     "blank first genre",
			genres:   []string{"", "Drama"},
			position: 1,
			cause:    ErrEmptyGenre,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := NewValueIndex("genre", tt.opts...)
			m := mustMovie(t, "tt1", movie.Attrs{Genres: tt.genres})

			err := idx.IndexByGenre(m)
			require.Error(t, err)
			assert.Equal(t, tt.position, FailedGenre(err))
			assert.ErrorIs(t, err, tt.cause)

			var ge *GenreError
			require.True(t, errors.As(err, &ge))
			assert.Equal(t, tt.genres[tt.position-1], ge.Genre)

			assert.Equal(t, 0, idx.NumRecords())
			for _, g := range tt.indexed {
				set, ok := idx.Lookup(g)
				require.True(t, ok, g)
				assert.True(t, set.Contains("tt1"))
			}
		})
	}
}

func TestLookupNeverInserted(t *testing.T) {
	idx := NewValueIndex("genre")
	set, ok := idx.Lookup("Western")
	assert.False(t, ok)
	assert.Nil(t, set)
	assert.Equal(t, 0, idx.Len())

	_, err := idx.Find("Western")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSharedStoreOwnership(t *testing.T) {
	store := records.NewStore(0)
	byType := NewValueIndex("type", WithStore(store))
	byGenre := NewValueIndex("genre", WithStore(store))

	m := mustMovie(t, "tt1", movie.Attrs{Type: movie.Some("movie"), Genres: []string{"Comedy", "Drama"}})
	require.NoError(t, byType.IndexByField(m, FieldType))
	require.NoError(t, byGenre.IndexByGenre(m))
	assert.Equal(t, 1, store.Len())

	stats := byGenre.Close()
	assert.Equal(t, 2, stats.RecordSets)
	assert.Equal(t, 2, stats.SetEntries)
	assert.Equal(t, 1, stats.FlatEntries)
	assert.Equal(t, 0, stats.Records, "borrowed store keeps its records")
	assert.False(t, store.Released())

	set, ok := byType.Lookup("movie")
	require.True(t, ok)
	assert.Same(t, m, set.Records()[0])

	stats = byType.Close()
	assert.Equal(t, 0, stats.Records)
	assert.Equal(t, 1, store.Release())
}

func TestCloseReleasesOwnedRecordsOnce(t *testing.T) {
	idx := NewValueIndex("genre")
	for _, id := range []string{"tt1", "tt2", "tt3"} {
		m := mustMovie(t, id, movie.Attrs{Genres: []string{"Comedy", "Drama", "Romance"}})
		require.NoError(t, idx.IndexByGenre(m))
	}

	stats := idx.Close()
	assert.Equal(t, ReleaseStats{
		Buckets:     3,
		RecordSets:  3,
		SetEntries:  9,
		FlatEntries: 3,
		Records:     3,
	}, stats)
	assert.True(t, idx.Closed())
	assert.Equal(t, ReleaseStats{}, idx.Close())

	_, ok := idx.Lookup("Comedy")
	assert.False(t, ok)
	assert.ErrorIs(t, idx.IndexByGenre(mustMovie(t, "tt4", movie.Attrs{})), ErrClosed)
	assert.ErrorIs(t, idx.IndexByField(mustMovie(t, "tt4", movie.Attrs{}), FieldID), ErrClosed)
}

func TestValueIndexMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	idx := NewValueIndex("genre", WithMetrics(m), WithCapacity(2))

	rec := mustMovie(t, "tt1", movie.Attrs{Genres: []string{"Comedy", "Drama"}})
	require.NoError(t, idx.IndexByGenre(rec))
	require.NoError(t, idx.IndexByGenre(rec))
	require.Error(t, idx.IndexByGenre(mustMovie(t, "tt2", movie.Attrs{Genres: []string{"Horror"}})))
	idx.Lookup("comedy")
	idx.Lookup("western")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsIndexedTotal.WithLabelValues("genre")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BucketsCreatedTotal.WithLabelValues("genre")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DuplicatesIgnoredTotal.WithLabelValues("genre")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexFailuresTotal.WithLabelValues("genre", "capacity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LookupsTotal.WithLabelValues("genre", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LookupsTotal.WithLabelValues("genre", "miss")))
}

func TestParseField(t *testing.T) {
	for _, f := range []Field{FieldType, FieldYear, FieldID, FieldGenre} {
		got, err := ParseField(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseField("runtime")
	assert.ErrorIs(t, err, ErrUnknownField)
}
