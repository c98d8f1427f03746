// Package e2e contains end-to-end tests against a running indexer service
// with real Kafka and Redis: rows are published to the movie-rows topic and
// polled for through the lookup API.
//
// Prerequisites:
//   - Kafka running with the movie-rows topic
//   - Redis running (optional; lookups work uncached without it)
//   - cmd/indexer running
//
// Run with:
//
//	go test -v -timeout=120s ./test/e2e/...
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/kafka"
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

type e2eConfig struct {
	IndexerURL string
	Brokers    []string
	Topic      string
}

func loadE2EConfig() e2eConfig {
	return e2eConfig{
		IndexerURL: envOrDefault("E2E_INDEXER_URL", "http://localhost:8080"),
		Brokers:    strings.Split(envOrDefault("E2E_KAFKA_BROKERS", "localhost:9092"), ","),
		Topic:      envOrDefault("E2E_KAFKA_TOPIC", "movie-rows"),
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestIndexerHealth verifies the service answers its health checks.
func TestIndexerHealth(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		t.Run(path, func(t *testing.T) {
			resp, err := client.Get(cfg.IndexerURL + path)
			if err != nil {
				t.Skipf("indexer unavailable: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("expected 200, got %d: %s", resp.StatusCode, body)
			}
		})
	}
}

// TestPublishAndLookup exercises the full row lifecycle:
// publish → consume → index → lookup.
func TestPublishAndLookup(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 10 * time.Second}

	if _, err := client.Get(cfg.IndexerURL + "/health"); err != nil {
		t.Skipf("indexer unavailable: %v", err)
	}

	// 1. Publish a row with a unique id and title word.
	unique := time.Now().UnixNano()
	id := fmt.Sprintf("tt%d", unique)
	word := fmt.Sprintf("e2eword%d", unique)
	row := fmt.Sprintf("%s|movie|%s Returns|%s Returns|0|2001|-|95|Drama,Thriller", id, word, word)

	producer := kafka.NewProducer(config.KafkaConfig{Brokers: cfg.Brokers}, cfg.Topic)
	defer producer.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	res, err := publisher.New(producer, 1).PublishRows(ctx, 42, strings.NewReader(row+"\n"))
	if err != nil {
		t.Skipf("kafka unavailable: %v", err)
	}
	if res.Published != 1 {
		t.Fatalf("expected 1 row published, got %d", res.Published)
	}

	// 2. Poll until the consumer has indexed it.
	var found bool
	for attempt := 0; attempt < 30; attempt++ {
		time.Sleep(time.Second)

		resp, err := client.Get(cfg.IndexerURL + "/api/v1/lookup?field=id&term=" + id)
		if err != nil {
			t.Logf("attempt %d: lookup failed: %v", attempt, err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			found = true
			t.Logf("row indexed after %d seconds", attempt+1)
			break
		}
	}
	if !found {
		t.Fatalf("row %s not indexed within 30s", id)
	}

	// 3. The title word points back at document 42, row 0.
	resp, err := client.Get(cfg.IndexerURL + "/api/v1/titles?word=" + word)
	if err != nil {
		t.Fatalf("title lookup failed: %v", err)
	}
	defer resp.Body.Close()
	var titles struct {
		Documents []struct {
			DocID   uint64 `json:"doc_id"`
			Offsets []int  `json:"offsets"`
		} `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&titles); err != nil {
		t.Fatalf("decoding title response: %v", err)
	}
	if len(titles.Documents) != 1 || titles.Documents[0].DocID != 42 {
		t.Fatalf("unexpected postings: %+v", titles.Documents)
	}
}

// TestCacheStats verifies that cache statistics are reported.
func TestCacheStats(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(cfg.IndexerURL + "/api/v1/cache/stats")
	if err != nil {
		t.Skipf("indexer unavailable: %v", err)
	}
	defer resp.Body.Close()

	var stats map[string]any
	json.NewDecoder(resp.Body).Decode(&stats)
	if status, ok := stats["status"]; ok && status == "disabled" {
		t.Log("cache is disabled, skipping field check")
		return
	}
	for _, field := range []string{"hits", "misses", "total", "hit_rate"} {
		if _, ok := stats[field]; !ok {
			t.Errorf("missing expected field: %s", field)
		}
	}
}

// ---------------------------------------------------------------------------
// Env helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
