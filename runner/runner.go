// Package runner wires one batch: load the stored collection, scrape the
// identifiers it does not cover yet, merge and save.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-shelf/models"
	"github.com/aluiziolira/go-scrape-shelf/pipeline"
	"github.com/aluiziolira/go-scrape-shelf/scraper"
)

// Run executes a batch over [1, maxID]. Only an invalid range or a failed save
// is returned as an error; per-book failures are logged by the scraper.
func Run(ctx context.Context, s *scraper.Scraper, store *pipeline.Store, maxID int) (*models.RunSummary, error) {
	start := time.Now()

	existing := store.Load()
	p := pipeline.NewPipeline(existing)

	result, err := s.Run(ctx, maxID, p.Links())
	if err != nil {
		return nil, fmt.Errorf("scrape: %w", err)
	}

	added := p.Process(result.Books...)
	records := p.Records()
	slog.Info("collected books",
		slog.Int("new", added),
		slog.Int("total", len(records)),
		slog.Any("validation", p.GetMetrics()["validation_errors"]),
	)

	if err := store.Save(records); err != nil {
		return nil, fmt.Errorf("save books: %w", err)
	}

	return &models.RunSummary{
		Existing: p.Existing(),
		Added:    added,
		Total:    len(records),
		Duration: time.Since(start),
		Batch:    result,
	}, nil
}
