package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"rightmove-scraper/config"
	"rightmove-scraper/models"
	"rightmove-scraper/scraper/rightmove"
	"rightmove-scraper/services"
	"rightmove-scraper/storage"
	"rightmove-scraper/utils"
)

type urlList []string

func (u *urlList) String() string { return strings.Join(*u, ",") }

func (u *urlList) Set(v string) error {
	*u = append(*u, v)
	return nil
}

func main() {
	var (
		dumpJSON bool
		urls     urlList
	)
	flag.BoolVar(&dumpJSON, "json", false, "also dump search results and records as JSON")
	flag.Var(&urls, "url", "scrape a single listing page (repeatable); skips location search")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <query>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" && len(urls) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger := utils.NewLogger()
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("%v", err)
		os.Exit(2)
	}

	runID := uuid.NewString()
	logger = logger.WithRun(runID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, runID, query, urls, dumpJSON); err != nil {
		logger.Error("Run failed: %v", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *utils.Logger, runID, query string, urls []string, dumpJSON bool) error {
	start := time.Now()
	logger.Info("=== Rightmove scraper starting ===")
	logger.Info("Config: page size %d | max results %d | concurrency %d | fetch mode %s",
		cfg.ResultsPerPage, cfg.MaxResults, cfg.MaxConcurrency, cfg.FetchMode)

	client, err := rightmove.NewClient(rightmove.ClientOptions{
		BaseURL:        cfg.BaseURL,
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: cfg.AcceptLanguage,
		Timeout:        cfg.RequestTimeout,
	})
	if err != nil {
		return err
	}

	var fetcher rightmove.Fetcher
	if cfg.FetchMode == config.FetchModeBrowser {
		bf, err := rightmove.NewBrowserFetcher(cfg.ChromeBin, cfg.UserAgent, cfg.RequestTimeout, logger)
		if err != nil {
			return err
		}
		defer bf.Close()
		fetcher = bf
	}

	projector := services.MustNewProjector(services.PropertyFields)
	sc := rightmove.New(cfg, client, fetcher, projector, logger)

	var records []*models.Record
	if len(urls) > 0 {
		records, err = sc.ScrapeProperties(ctx, urls)
		if err != nil {
			return err
		}
		path := filepath.Join(cfg.OutputDir, "properties.json")
		if err := storage.WriteJSONFile(path, records); err != nil {
			return err
		}
		logger.Info("%d records saved to %s", len(records), path)
	} else {
		result, err := sc.ScrapeLocation(ctx, query)
		if err != nil {
			if errors.Is(err, rightmove.ErrNoLocations) {
				logger.Warn("No location matches %q", query)
			}
			return err
		}
		records = result.Records

		csvPath := storage.OutputPath(cfg.OutputDir, query, "csv")
		w, err := storage.NewCSVWriter(csvPath, projector.Names())
		if err != nil {
			return err
		}
		if err := writeAndClose(w, records); err != nil {
			return err
		}
		logger.Info("%d records saved to %s", len(records), csvPath)

		if dumpJSON {
			if err := storage.WriteJSONFile(filepath.Join(cfg.OutputDir, "search.json"), result.Summaries); err != nil {
				return err
			}
			if err := storage.WriteJSONFile(filepath.Join(cfg.OutputDir, "properties.json"), records); err != nil {
				return err
			}
			logger.Info("JSON dumps written to %s", cfg.OutputDir)
		}
	}

	if cfg.PostgresEnabled {
		if err := persist(ctx, cfg, logger, runID, query, records); err != nil {
			return err
		}
	}

	summary := services.NewSummaryService(logger)
	summary.Print(summary.Generate(records))
	logger.Since("Run", start)
	return nil
}

func writeAndClose(w storage.RecordWriter, records []*models.Record) error {
	if err := w.Write(records); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func persist(ctx context.Context, cfg *config.Config, logger *utils.Logger, runID, query string, records []*models.Record) error {
	db, err := storage.OpenPostgres(ctx, cfg.DSN(), &utils.RetryConfig{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   2 * time.Second,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	pw, err := storage.NewPostgresWriter(db, runID, query)
	if err != nil {
		_ = db.Close()
		return err
	}
	if err := pw.Write(records); err != nil {
		_ = pw.Close()
		return err
	}

	n, err := pw.CountRun()
	if err != nil {
		_ = pw.Close()
		return err
	}
	if err := pw.Close(); err != nil {
		return err
	}
	logger.Info("%d records stored in PostgreSQL (table: listing_records)", n)
	return nil
}
