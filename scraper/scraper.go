package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-shelf/config"
	"github.com/aluiziolira/go-scrape-shelf/models"
	"github.com/aluiziolira/go-scrape-shelf/parser"
	"github.com/aluiziolira/go-scrape-shelf/pipeline"
	"golang.org/x/sync/errgroup"
)

// Scraper fans fetch and extract tasks out over an identifier range.
type Scraper struct {
	cfg     *config.Config
	client  *Fetcher
	fetcher PageFetcher
	Metrics *Metrics
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be positive")
	}

	metrics := NewMetrics()
	client, err := NewFetcher(cfg, metrics)
	if err != nil {
		return nil, err
	}

	return &Scraper{
		cfg:     cfg,
		client:  client,
		fetcher: client,
		Metrics: metrics,
	}, nil
}

// WithTransport routes all fetches through rt.
func (s *Scraper) WithTransport(rt http.RoundTripper) {
	s.client.WithTransport(rt)
}

// Run scrapes identifiers 1..maxID, skipping those whose link is in existing,
// with at most cfg.Concurrency tasks in flight. Per-identifier failures are
// logged and dropped; Run only fails on invalid input. Books come back in no
// particular order.
func (s *Scraper) Run(ctx context.Context, maxID int, existing pipeline.LinkSet) (*models.BatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if maxID <= 0 {
		return nil, fmt.Errorf("max id must be positive, got %d", maxID)
	}

	start := time.Now()
	state := newBatchState()
	requestsBefore, retriesBefore := s.client.Counters()

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)
	slots := make([]*models.Book, maxID)

	for id := 1; id <= maxID; id++ {
		link := BookURL(s.cfg.BaseURL, id)
		if existing.Has(link) {
			state.skipped++
			s.Metrics.IncSkipped("existing")
			slog.Info("skipping known book", slog.Int("id", id))
			continue
		}
		if ctx.Err() != nil {
			slog.Warn("batch cancelled, remaining ids not scheduled", slog.Int("next_id", id))
			break
		}

		state.scheduled++
		g.Go(func() error {
			slots[id-1] = s.scrapeBook(ctx, id, link, state)
			return nil
		})
	}
	_ = g.Wait()

	books := make([]*models.Book, 0, len(slots))
	for _, book := range slots {
		if book != nil {
			books = append(books, book)
		}
	}

	requestsAfter, retriesAfter := s.client.Counters()
	failedURLs, errorsByType := state.snapshot()

	return &models.BatchResult{
		Books:        books,
		StartTime:    start,
		EndTime:      time.Now(),
		Scheduled:    state.scheduled,
		Skipped:      state.skipped,
		NotFound:     int(atomic.LoadInt64(&state.notFound)),
		ErrorCount:   len(failedURLs),
		FailedURLs:   failedURLs,
		ErrorsByType: errorsByType,
		RetryCount:   retriesAfter - retriesBefore,
		RequestCount: requestsAfter - requestsBefore,
	}, nil
}

func (s *Scraper) scrapeBook(ctx context.Context, id int, link string, state *batchState) (book *models.Book) {
	s.Metrics.TaskStarted()
	defer s.Metrics.TaskDone()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scrape task panicked",
				slog.Int("id", id),
				slog.String("url", link),
				slog.Any("panic", r),
			)
			state.fail(link, "panic")
			s.Metrics.IncSkipped("failed")
			book = nil
		}
	}()

	markup, err := s.fetcher.Fetch(ctx, link)
	if err != nil {
		state.fail(link, errorTypeLabel(err))
		s.Metrics.IncSkipped("failed")
		return nil
	}

	book, err = parser.Extract(markup, link)
	switch {
	case errors.Is(err, parser.ErrBookNotFound):
		atomic.AddInt64(&state.notFound, 1)
		s.Metrics.IncSkipped("not_found")
		slog.Info("book not found", slog.Int("id", id), slog.String("url", link))
		return nil
	case err != nil:
		state.fail(link, "parse")
		s.Metrics.IncSkipped("failed")
		slog.Error("parse book page",
			slog.Int("id", id),
			slog.String("url", link),
			slog.Any("error", err),
		)
		return nil
	}

	s.Metrics.IncItems()
	slog.Debug("book extracted", slog.Int("id", id), slog.String("title", book.Title))
	return book
}

// batchState collects per-run counters. scheduled and skipped are only
// touched by the scheduling loop.
type batchState struct {
	scheduled int
	skipped   int
	notFound  int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int
}

func newBatchState() *batchState {
	return &batchState{errorsByType: make(map[string]int)}
}

func (b *batchState) fail(link, category string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failedURLs = append(b.failedURLs, link)
	b.errorsByType[category]++
}

func (b *batchState) snapshot() ([]string, map[string]int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	urls := make([]string, len(b.failedURLs))
	copy(urls, b.failedURLs)
	byType := make(map[string]int, len(b.errorsByType))
	for k, v := range b.errorsByType {
		byType[k] = v
	}
	return urls, byType
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	var netErr net.Error
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return &FetchError{Kind: KindTimeout, Err: err}
	case errors.As(err, &opErr):
		return &FetchError{Kind: KindConnection, Err: err}
	}

	if err == nil {
		err = fmt.Errorf("http status %d", statusCode)
	}
	switch {
	case statusCode == http.StatusForbidden:
		return &FetchError{Kind: KindForbidden, StatusCode: statusCode, Err: err}
	case statusCode == http.StatusNotFound:
		return &FetchError{Kind: KindNotFound, StatusCode: statusCode, Err: err}
	case statusCode == http.StatusTooManyRequests:
		return &FetchError{Kind: KindRateLimited, StatusCode: statusCode, Err: err}
	case statusCode >= http.StatusInternalServerError:
		return &FetchError{Kind: KindServerError, StatusCode: statusCode, Err: err}
	}
	return err
}
