// Command moviectl indexes movie row files locally and publishes them to the
// indexer service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/ingestion/loader"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/movieindex/pkg/logger"
)

const appName = "moviectl"

func main() {
	if err := makeApp().Run(os.Args); err != nil {
		slog.Error("moviectl failed", "error", err)
		os.Exit(1)
	}
}

func makeApp() *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Usage = "index, query and publish movie row files"
	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config",
			Value:  "",
			EnvVar: "MI_CONFIG",
			Usage:  "path to the YAML config file",
		},
		cli.StringFlag{
			Name:   "log-level",
			Value:  "warn",
			EnvVar: "MI_LOG_LEVEL",
			Usage:  "debug, info, warn or error",
		},
	}
	app.Before = func(c *cli.Context) error {
		logger.Setup(c.String("log-level"), "text")
		return nil
	}

	fileFlag := cli.StringFlag{Name: "file, f", Usage: "pipe-delimited movie row file"}
	docFlag := cli.Uint64Flag{Name: "doc", Value: 1, Usage: "document id the rows belong to"}

	app.Commands = []cli.Command{
		{
			Name:   "index",
			Usage:  "index a row file in memory and print index statistics",
			Flags:  []cli.Flag{fileFlag, docFlag},
			Action: runIndex,
		},
		{
			Name:  "lookup",
			Usage: "index a row file in memory and look a value up",
			Flags: []cli.Flag{
				fileFlag,
				docFlag,
				cli.StringFlag{Name: "field", Usage: "type, year, id or genre"},
				cli.StringFlag{Name: "term", Usage: "value to look up in --field"},
				cli.StringFlag{Name: "word", Usage: "title word to look up"},
			},
			Action: runLookup,
		},
		{
			Name:   "publish",
			Usage:  "publish a row file to the movie-rows topic",
			Flags:  []cli.Flag{fileFlag, docFlag, cli.IntFlag{Name: "batch", Value: 500, Usage: "rows per Kafka write"}},
			Action: runPublish,
		},
	}
	return app
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.Load(c.GlobalString("config"))
}

// buildEngine indexes --file into a fresh engine.
func buildEngine(c *cli.Context, cfg *config.Config) (*indexer.Engine, loader.Result, error) {
	path := c.String("file")
	if path == "" {
		return nil, loader.Result{}, fmt.Errorf("--file is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, loader.Result{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	engine := indexer.NewEngine(cfg.Indexer, nil)
	res, err := loader.New(engine, nil).FromReader(context.Background(), c.Uint64("doc"), f)
	if err != nil {
		engine.Close()
		return nil, res, err
	}
	return engine, res, nil
}

func runIndex(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	engine, res, err := buildEngine(c, cfg)
	if err != nil {
		return err
	}
	stats := engine.Stats()
	released := engine.Close()
	return writeJSON(c.App.Writer, map[string]any{
		"indexed":  res.Indexed,
		"skipped":  res.Skipped,
		"stats":    stats,
		"released": released,
	})
}

func runLookup(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	word := c.String("word")
	fieldName, term := c.String("field"), c.String("term")
	if word == "" && (fieldName == "" || term == "") {
		return fmt.Errorf("either --word or both --field and --term are required")
	}
	var field index.Field
	if word == "" {
		if field, err = index.ParseField(fieldName); err != nil {
			return err
		}
	}

	engine, _, err := buildEngine(c, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	if word != "" {
		docs, ok, err := engine.LookupTitle(word)
		if err != nil {
			return err
		}
		if !ok {
			return cli.NewExitError(fmt.Sprintf("no title contains %q", word), 2)
		}
		return writeJSON(c.App.Writer, docs)
	}

	recs, ok, err := engine.Lookup(field, term)
	if err != nil {
		return err
	}
	if !ok {
		return cli.NewExitError(fmt.Sprintf("no record has %s %q", field, term), 2)
	}
	lines := make([]string, 0, len(recs))
	for _, m := range recs {
		lines = append(lines, m.String())
	}
	return writeJSON(c.App.Writer, lines)
}

func runPublish(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	path := c.String("file")
	if path == "" {
		return fmt.Errorf("--file is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.MovieRows)
	defer producer.Close()

	res, err := publisher.New(producer, c.Int("batch")).PublishRows(ctx, c.Uint64("doc"), f)
	if err != nil {
		return err
	}
	if res.RowErrors != nil {
		fmt.Fprintln(c.App.ErrWriter, res.RowErrors.Error())
	}
	return writeJSON(c.App.Writer, map[string]int{
		"published": res.Published,
		"skipped":   res.Skipped,
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
