// Package models defines data structures for the scraper.
package models

import "time"

// Book represents a book record extracted from a detail page.
type Book struct {
	Title       string `csv:"title" json:"title"`
	Rating      string `csv:"rating" json:"rating"`
	Author      string `csv:"author" json:"author"`
	Evaluations string `csv:"evaluations" json:"evaluations"`
	Pages       string `csv:"pages" json:"pages"`
	Description string `csv:"description" json:"description"`
	Link        string `csv:"link" json:"link"`

	// Published is extracted alongside Pages but is not part of the
	// persisted schema.
	Published string `csv:"-" json:"-"`
}

// BatchResult holds the overall result of one batch over an identifier range.
type BatchResult struct {
	Books        []*Book
	StartTime    time.Time
	EndTime      time.Time
	Scheduled    int
	Skipped      int
	NotFound     int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
}

// RunSummary reports the outcome of a full load, scrape, merge and save run.
type RunSummary struct {
	Existing int
	Added    int
	Total    int
	Duration time.Duration
	Batch    *BatchResult
}
