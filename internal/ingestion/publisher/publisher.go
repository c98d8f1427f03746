// Package publisher turns a movie row file into RowEvents on the movie-rows
// Kafka topic. Rows are checked with the same parser the consumer uses, so
// malformed rows are reported at the source instead of being consumed and
// dropped.
package publisher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/movie"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/kafka"
)

const defaultBatchSize = 500

// BatchPublisher writes events to the topic; *kafka.Producer satisfies it.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Result summarises one publish run.
type Result struct {
	Published int
	Skipped   int
	RowErrors *multierror.Error
}

// Publisher batches row events onto a producer.
type Publisher struct {
	producer  BatchPublisher
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a Publisher. A batchSize of zero or less uses the default.
func New(producer BatchPublisher, batchSize int) *Publisher {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Publisher{
		producer:  producer,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    slog.Default().With("component", "publisher"),
	}
}

// PublishRows publishes every well-formed row of r as document docID. Rows
// keep their line numbers as offsets. A failed batch aborts the run; rows in
// earlier batches stay published.
func (p *Publisher) PublishRows(ctx context.Context, docID uint64, r io.Reader) (Result, error) {
	var res Result
	batch := make([]kafka.Event, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.producer.PublishBatch(ctx, batch); err != nil {
			return fmt.Errorf("publishing rows of document %d: %w", docID, err)
		}
		res.Published += len(batch)
		batch = batch[:0]
		return nil
	}

	err := ingestion.ScanRows(r, func(row int, line string) error {
		if _, err := movie.ParseRow(line); err != nil {
			res.Skipped++
			res.RowErrors = multierror.Append(res.RowErrors, fmt.Errorf("row %d: %w", row, err))
			return nil
		}
		ev := ingestion.RowEvent{DocID: docID, Row: row, Line: line, IngestedAt: p.now()}
		batch = append(batch, kafka.Event{Key: ev.Key(), Value: ev})
		if len(batch) == p.batchSize {
			return flush()
		}
		return ctx.Err()
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return res, err
	}
	p.logger.Info("rows published",
		"doc_id", docID,
		"published", res.Published,
		"skipped", res.Skipped,
	)
	return res, nil
}
