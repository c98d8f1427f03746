// Package consumer reads movie row events from Kafka, parses them and indexes
// the resulting records through the indexer engine.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/movie"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/metrics"
)

// Indexer is the part of the engine the consumer drives.
type Indexer interface {
	IndexMovie(ctx context.Context, m *movie.Movie, docID uint64, rowOffset int) error
}

// Invalidator drops cached lookups after the index changes.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that parses each row event and
// indexes it. Undecodable or unparsable rows are logged and acknowledged so
// they do not block the partition. Capacity exhaustion leaves the index
// unable to take more rows, so it stops the consumer with kafka.ErrStop and
// the message stays uncommitted. inv and m may be nil.
func HandleMessage(engine Indexer, inv Invalidator, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	observe := func(status string) {
		if m != nil {
			m.RowsConsumedTotal.WithLabelValues("kafka", status).Inc()
		}
	}
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.RowEvent](value)
		if err != nil {
			logger.Error("failed to decode row event",
				"error", err,
				"key", string(key),
			)
			observe("parse_error")
			return nil
		}
		rec, err := movie.ParseRow(event.Line)
		if err != nil {
			logger.Warn("skipping malformed row",
				"doc_id", event.DocID,
				"row", event.Row,
				"error", err,
			)
			observe("parse_error")
			return nil
		}
		if err := engine.IndexMovie(ctx, rec, event.DocID, event.Row); err != nil {
			observe("index_error")
			if index.IsCapacity(err) {
				return fmt.Errorf("indexing %s (doc %d row %d): %w: %w", rec.ID(), event.DocID, event.Row, kafka.ErrStop, err)
			}
			logger.Error("failed to index row, skipping",
				"id", rec.ID(),
				"doc_id", event.DocID,
				"row", event.Row,
				"failed_genre", index.FailedGenre(err),
				"error", err,
			)
			return nil
		}
		observe("indexed")
		if inv != nil {
			if err := inv.Invalidate(ctx); err != nil {
				logger.Warn("cache invalidation failed", "error", err)
			}
		}
		logger.Debug("row indexed",
			"id", rec.ID(),
			"doc_id", event.DocID,
			"row", event.Row,
		)
		return nil
	}
}
