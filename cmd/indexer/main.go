// Command indexer runs the movie index service. It seeds the index from a
// row file and/or the movies table, keeps it current from the movie-rows
// Kafka topic and serves lookups over HTTP.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/ingestion/loader"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/movieindex/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if err := run(cfg); err != nil {
		slog.Error("indexer service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("indexer service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	engine := indexer.NewEngine(cfg.Indexer, m)
	defer func() {
		stats := engine.Close()
		slog.Info("index released",
			"buckets", stats.Buckets,
			"record_sets", stats.RecordSets,
			"doc_postings", stats.DocPostings,
			"records", stats.Records,
		)
	}()

	checker := health.NewChecker(2 * time.Second)
	checker.Register("index_engine", func(ctx context.Context) health.ComponentHealth {
		stats := engine.Stats()
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d records", stats.Records)}
	})

	if err := seed(ctx, cfg, engine, m, checker); err != nil {
		return err
	}

	var lookupCache *cache.LookupCache
	var invalidator consumer.Invalidator
	redisClient, err := pkgredis.NewClient(ctx, cfg.Redis, resilience.RetryConfig{MaxAttempts: 2})
	if err != nil {
		slog.Warn("redis unavailable, lookup caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		breaker := resilience.NewBreaker("redis-cache", resilience.BreakerConfig{
			FailureThreshold: cfg.Redis.BreakerThreshold,
			ResetTimeout:     cfg.Redis.BreakerResetTimeout,
			OnStateChange: func(_, to resilience.State) {
				m.CacheBreakerState.Set(float64(to))
			},
		})
		lookupCache = cache.New(cache.NewGuarded(redisClient, breaker), cfg.Redis.CacheTTL, m)
		invalidator = lookupCache
		checker.Register("redis", health.PingCheck(redisClient.Ping, health.StatusDegraded))
		slog.Info("lookup cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	kafkaConsumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.MovieRows,
		consumer.HandleMessage(engine, invalidator, m),
	)
	indexConsumer := consumer.New(kafkaConsumer)

	h := handler.New(engine, lookupCache, cfg.Search.DefaultLimit, cfg.Search.MaxResults)
	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	var limiter *ratelimit.Limiter
	if cfg.Server.RateLimit > 0 && cfg.Server.RateWindow > 0 {
		limiter = ratelimit.New(cfg.Server.RateLimit, cfg.Server.RateWindow)
		chain = middleware.RateLimit(limiter, int(cfg.Server.RateWindow.Seconds()), m)(chain)
	}
	chain = middleware.CORS(cfg.Server.AllowOrigins)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("consuming movie rows",
			"topic", cfg.Kafka.Topics.MovieRows,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := indexConsumer.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("index consumer: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("lookup API listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if limiter != nil {
		g.Go(func() error {
			return limiter.Run(gctx, 5*time.Minute)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// seed loads the configured data file and the movies table before the
// service starts consuming.
func seed(ctx context.Context, cfg *config.Config, engine *indexer.Engine, m *metrics.Metrics, checker *health.Checker) error {
	l := loader.New(engine, m)
	docID := cfg.Indexer.DocumentID

	if path := cfg.Indexer.DataFile; path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening data file: %w", err)
		}
		res, err := l.FromReader(ctx, docID, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("seeding from %s: %w", path, err)
		}
		logSkipped(path, res)
	}

	if !cfg.Indexer.SeedFromPostgres {
		return nil
	}
	pg, err := postgres.New(ctx, cfg.Postgres, resilience.RetryConfig{MaxAttempts: 5})
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	checker.Register("postgres", health.PingCheck(pg.Ping, health.StatusDegraded))
	// Keep the pool open for the readiness check; it is closed on exit.
	go func() {
		<-ctx.Done()
		pg.Close()
	}()

	var res loader.Result
	err = pg.ReadOnly(ctx, func(tx *sql.Tx) error {
		var err error
		res, err = l.FromPostgres(ctx, tx, docID)
		return err
	})
	if err != nil {
		return fmt.Errorf("seeding from postgres: %w", err)
	}
	logSkipped("postgres", res)
	return nil
}

func logSkipped(source string, res loader.Result) {
	if res.RowErrors == nil {
		return
	}
	for _, err := range res.RowErrors.Errors {
		slog.Debug("row skipped", "source", source, "error", err)
	}
	slog.Warn("rows skipped while seeding", "source", source, "skipped", res.Skipped)
}
