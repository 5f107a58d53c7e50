package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-shelf/config"
	"github.com/gocolly/colly/v2"
)

// PageFetcher retrieves the raw markup behind a link.
type PageFetcher interface {
	Fetch(ctx context.Context, link string) ([]byte, error)
}

// BookURL returns the canonical detail page link for id.
func BookURL(baseURL string, id int) string {
	return strings.TrimRight(baseURL, "/") + "/book/show/" + strconv.Itoa(id)
}

// Fetcher issues GET requests through one shared colly collector and retries
// failed attempts after a fixed delay.
type Fetcher struct {
	collector  *colly.Collector
	headers    config.Headers
	maxRetries int
	retryDelay time.Duration
	metrics    *Metrics

	requestCount int64
	retryCount   int64
}

// NewFetcher configures the collector from cfg. The collector is synchronous;
// callers provide their own concurrency.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(allowedHosts(parsed.Hostname())...),
		colly.UserAgent(cfg.Headers.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: cfg.Concurrency,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Concurrency,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	f := &Fetcher{
		collector:  collector,
		headers:    cfg.Headers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		metrics:    metrics,
	}
	f.configureHandlers()
	return f, nil
}

// WithTransport swaps the HTTP transport of the shared collector.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Fetch returns the body of link. Transport errors, timeouts and non-2xx
// responses are retried up to maxRetries times; the final failure wraps
// ErrRetryExhausted.
func (f *Fetcher) Fetch(ctx context.Context, link string) ([]byte, error) {
	attempts := f.maxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		body, err := f.attempt(link)
		if err == nil {
			return body, nil
		}
		lastErr = err

		category := errorTypeLabel(err)
		f.metrics.IncError(category)
		slog.Warn("fetch attempt failed",
			slog.String("url", link),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.String("category", category),
			slog.Any("error", err),
		)

		if attempt == attempts {
			break
		}

		atomic.AddInt64(&f.retryCount, 1)
		f.metrics.IncRetries()

		select {
		case <-ctx.Done():
			slog.Error("fetch cancelled",
				slog.String("url", link),
				slog.Int("attempt", attempt),
			)
			return nil, fmt.Errorf("fetch %s: %w", link, ctx.Err())
		case <-time.After(f.retryDelay):
		}
	}

	slog.Error("fetch failed",
		slog.String("url", link),
		slog.Int("attempts", attempts),
		slog.Any("error", lastErr),
	)
	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrRetryExhausted, link, attempts, lastErr)
}

// Counters returns the requests issued and retries scheduled so far.
func (f *Fetcher) Counters() (requests, retries int) {
	return int(atomic.LoadInt64(&f.requestCount)), int(atomic.LoadInt64(&f.retryCount))
}

func (f *Fetcher) attempt(link string) ([]byte, error) {
	cctx := colly.NewContext()
	err := f.collector.Request(http.MethodGet, link, nil, cctx, f.headers.HTTPHeader())
	if err != nil {
		status, _ := cctx.GetAny("status").(int)
		f.metrics.IncRequest("error")
		return nil, classifyError(err, status)
	}

	body, _ := cctx.GetAny("body").([]byte)
	f.metrics.IncRequest("ok")
	return body, nil
}

func (f *Fetcher) configureHandlers() {
	f.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		current := atomic.AddInt64(&f.requestCount, 1)
		if current%50 == 0 {
			slog.Debug("scraper request progress",
				slog.Int64("requests", current),
				slog.Int64("retries", atomic.LoadInt64(&f.retryCount)),
				slog.String("url", r.URL.String()),
			)
		}
	})

	f.collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put("body", r.Body)
		f.observe(r)
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Ctx == nil {
			return
		}
		r.Ctx.Put("status", r.StatusCode)
		f.observe(r)
	})
}

func (f *Fetcher) observe(r *colly.Response) {
	if f.metrics == nil {
		return
	}
	if start, ok := r.Ctx.GetAny("start").(time.Time); ok {
		f.metrics.ObserveDuration(time.Since(start))
	}
}

func allowedHosts(host string) []string {
	bare := strings.TrimPrefix(host, "www.")
	return []string{bare, "www." + bare}
}
