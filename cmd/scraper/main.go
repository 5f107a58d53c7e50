package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-shelf/config"
	"github.com/aluiziolira/go-scrape-shelf/models"
	"github.com/aluiziolira/go-scrape-shelf/pipeline"
	"github.com/aluiziolira/go-scrape-shelf/runner"
	"github.com/aluiziolira/go-scrape-shelf/scraper"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	defaults, err := configFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}

	maxID := flag.Int("max-id", defaults.MaxID, "Scrape book ids 1..max-id")
	concurrency := flag.Int("concurrency", defaults.Concurrency, "Maximum concurrent page fetches")
	maxRetries := flag.Int("max-retries", defaults.MaxRetries, "Retries per page after the first attempt")
	retryDelay := flag.Duration("retry-delay", defaults.RetryDelay, "Fixed delay between attempts")
	timeout := flag.Duration("timeout", defaults.Timeout, "Per-attempt request timeout")
	jsonFile := flag.String("json", defaults.JSONFile, "JSON output file (also read on start)")
	csvFile := flag.String("csv", defaults.CSVFile, "CSV output file")
	baseURL := flag.String("base-url", defaults.BaseURL, "Catalog base URL")
	metricsAddr := flag.String("metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaults
	cfg.MaxID = *maxID
	cfg.Concurrency = *concurrency
	cfg.MaxRetries = *maxRetries
	cfg.RetryDelay = *retryDelay
	cfg.Timeout = *timeout
	cfg.JSONFile = *jsonFile
	cfg.CSVFile = *csvFile
	cfg.BaseURL = *baseURL
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("max_id", cfg.MaxID),
		slog.Int("concurrency", cfg.Concurrency),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing in-flight pages")
	}()

	metricsServer := startMetricsServer(cfg.MetricsAddr, s.Metrics)

	store := pipeline.NewStore(cfg.JSONFile, cfg.CSVFile)
	summary, err := runner.Run(ctx, s, store, cfg.MaxID)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	if err != nil {
		slog.Error("scraping failed", slog.Any("error", err))
		os.Exit(1)
	}

	printSummary(summary, cfg)
}

func configFromEnv() (*config.Config, error) {
	cfg := config.DefaultConfig()

	ints := []struct {
		key  string
		dest *int
	}{
		{"SCRAPER_MAX_ID", &cfg.MaxID},
		{"SCRAPER_CONCURRENCY", &cfg.Concurrency},
		{"SCRAPER_MAX_RETRIES", &cfg.MaxRetries},
	}
	for _, item := range ints {
		value, ok, err := config.EnvInt(item.key)
		if err != nil {
			return nil, err
		}
		if ok {
			*item.dest = value
		}
	}

	durations := []struct {
		key  string
		dest *time.Duration
	}{
		{"SCRAPER_RETRY_DELAY", &cfg.RetryDelay},
		{"SCRAPER_TIMEOUT", &cfg.Timeout},
	}
	for _, item := range durations {
		value, ok, err := config.EnvDuration(item.key)
		if err != nil {
			return nil, err
		}
		if ok {
			*item.dest = value
		}
	}

	strs := []struct {
		key  string
		dest *string
	}{
		{"SCRAPER_BASE_URL", &cfg.BaseURL},
		{"SCRAPER_JSON", &cfg.JSONFile},
		{"SCRAPER_CSV", &cfg.CSVFile},
		{"SCRAPER_METRICS_ADDR", &cfg.MetricsAddr},
		{"SCRAPER_USER_AGENT", &cfg.Headers.UserAgent},
	}
	for _, item := range strs {
		if value, ok := config.EnvString(item.key); ok {
			*item.dest = value
		}
	}

	return cfg, nil
}

func startMetricsServer(addr string, metrics *scraper.Metrics) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}

	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func printSummary(summary *models.RunSummary, cfg *config.Config) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	batch := summary.Batch
	fmt.Printf("  Existing:      %d\n", summary.Existing)
	fmt.Printf("  Added:         %d\n", summary.Added)
	fmt.Printf("  Total:         %d\n", summary.Total)
	fmt.Printf("  Skipped:       %d\n", batch.Skipped)
	fmt.Printf("  Not found:     %d\n", batch.NotFound)
	fmt.Printf("  Errors:        %d\n", batch.ErrorCount)
	fmt.Printf("  Requests:      %d\n", batch.RequestCount)
	fmt.Printf("  Retries:       %d\n", batch.RetryCount)
	if len(batch.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", batch.ErrorsByType)
	}
	fmt.Printf("  Duration:      %v\n", summary.Duration.Round(time.Millisecond))
	fmt.Printf("  Output files:  %s, %s\n", cfg.JSONFile, cfg.CSVFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
