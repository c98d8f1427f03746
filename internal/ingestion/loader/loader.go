// Package loader seeds the index engine from batch row sources: a
// pipe-delimited movie file or the movies table in PostgreSQL.
package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/movie"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/metrics"
)

// Indexer is the part of the engine a loader drives.
type Indexer interface {
	IndexMovie(ctx context.Context, m *movie.Movie, docID uint64, rowOffset int) error
}

// Result summarises one load. RowErrors collects every row that was skipped.
type Result struct {
	Indexed   int
	Skipped   int
	RowErrors *multierror.Error
}

// Loader feeds rows into an Indexer.
type Loader struct {
	indexer Indexer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Loader. m may be nil.
func New(indexer Indexer, m *metrics.Metrics) *Loader {
	return &Loader{
		indexer: indexer,
		metrics: m,
		logger:  slog.Default().With("component", "loader"),
	}
}

// FromReader indexes one row per line of r as document docID; the row offset
// is the zero-based line number. Malformed rows and rows the indexer rejects
// are skipped and recorded in the result. Capacity exhaustion, a closed
// index, cancellation or a read error aborts the load.
func (l *Loader) FromReader(ctx context.Context, docID uint64, r io.Reader) (Result, error) {
	var res Result
	err := ingestion.ScanRows(r, func(row int, line string) error {
		rec, err := movie.ParseRow(line)
		if err != nil {
			l.skip(&res, "file", fmt.Errorf("row %d: %w", row, err))
			return nil
		}
		return l.index(ctx, &res, "file", rec, docID, row)
	})
	if err != nil {
		return res, err
	}
	l.logger.Info("rows loaded",
		"source", "file",
		"doc_id", docID,
		"indexed", res.Indexed,
		"skipped", res.Skipped,
	)
	return res, nil
}

const moviesQuery = `SELECT id, title_type, primary_title, is_adult, start_year, runtime_minutes, genres
FROM movies ORDER BY row_num`

// rowScanner is the subset of *sql.Rows the loader reads from.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// Querier runs a query; *sql.DB and *sql.Tx both satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// FromPostgres indexes the movies table as document docID, using the
// position in row_num order as the row offset.
func (l *Loader) FromPostgres(ctx context.Context, db Querier, docID uint64) (Result, error) {
	rows, err := db.QueryContext(ctx, moviesQuery)
	if err != nil {
		return Result{}, fmt.Errorf("querying movies: %w", err)
	}
	defer rows.Close()
	res, err := l.fromRows(ctx, rows, docID)
	if err != nil {
		return res, err
	}
	l.logger.Info("rows loaded",
		"source", "postgres",
		"doc_id", docID,
		"indexed", res.Indexed,
		"skipped", res.Skipped,
	)
	return res, nil
}

func (l *Loader) fromRows(ctx context.Context, rows rowScanner, docID uint64) (Result, error) {
	var res Result
	row := -1
	for rows.Next() {
		row++
		var (
			id                string
			typ, title, genre sql.NullString
			adult             sql.NullBool
			year, runtime     sql.NullInt64
		)
		if err := rows.Scan(&id, &typ, &title, &adult, &year, &runtime, &genre); err != nil {
			return res, fmt.Errorf("scanning movie row %d: %w", row, err)
		}
		rec, err := movie.New(id, movie.Attrs{
			Type:    optString(typ),
			Title:   optString(title),
			Adult:   adult.Valid && adult.Bool,
			Year:    optInt(year),
			Runtime: optInt(runtime),
			Genres:  splitGenres(genre),
		})
		if err != nil {
			l.skip(&res, "postgres", fmt.Errorf("row %d: %w", row, err))
			continue
		}
		if err := l.index(ctx, &res, "postgres", rec, docID, row); err != nil {
			return res, err
		}
	}
	if err := rows.Err(); err != nil {
		return res, fmt.Errorf("iterating movie rows: %w", err)
	}
	return res, nil
}

func (l *Loader) index(ctx context.Context, res *Result, src string, rec *movie.Movie, docID uint64, row int) error {
	err := l.indexer.IndexMovie(ctx, rec, docID, row)
	if err == nil {
		res.Indexed++
		l.observe(src, "indexed")
		return nil
	}
	l.observe(src, "index_error")
	if index.IsCapacity(err) || errors.Is(err, index.ErrClosed) || ctx.Err() != nil {
		return fmt.Errorf("row %d: %w", row, err)
	}
	l.skip(res, "", fmt.Errorf("row %d: %w", row, err))
	return nil
}

func (l *Loader) skip(res *Result, src string, err error) {
	res.Skipped++
	res.RowErrors = multierror.Append(res.RowErrors, err)
	if src != "" {
		l.observe(src, "parse_error")
	}
	l.logger.Debug("row skipped", "error", err)
}

func (l *Loader) observe(src, status string) {
	if l.metrics != nil {
		l.metrics.RowsConsumedTotal.WithLabelValues(src, status).Inc()
	}
}

func optString(v sql.NullString) movie.Optional[string] {
	if !v.Valid || v.String == "" {
		return movie.None[string]()
	}
	return movie.Some(v.String)
}

func optInt(v sql.NullInt64) movie.Optional[int] {
	if !v.Valid {
		return movie.None[int]()
	}
	return movie.Some(int(v.Int64))
}

func splitGenres(v sql.NullString) []string {
	if !v.Valid || v.String == "" {
		return nil
	}
	var out []string
	for _, g := range strings.Split(v.String, ",") {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}
