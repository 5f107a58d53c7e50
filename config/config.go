package config

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Headers is the fixed set of browser-like request headers sent with every fetch.
type Headers struct {
	UserAgent      string
	Accept         string
	AcceptLanguage string
	AcceptEncoding string
}

// DefaultHeaders returns the headers of a desktop Chrome browser.
func DefaultHeaders() Headers {
	return Headers{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		AcceptLanguage: "en-US,en;q=0.5",
		AcceptEncoding: "gzip",
	}
}

// HTTPHeader renders the headers as a fresh http.Header.
func (h Headers) HTTPHeader() http.Header {
	hdr := http.Header{}
	hdr.Set("User-Agent", h.UserAgent)
	hdr.Set("Accept", h.Accept)
	hdr.Set("Accept-Language", h.AcceptLanguage)
	hdr.Set("Accept-Encoding", h.AcceptEncoding)
	hdr.Set("Connection", "keep-alive")
	return hdr
}

// Config holds scraper configuration.
type Config struct {
	BaseURL     string
	MaxID       int
	Concurrency int
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	JSONFile    string
	CSVFile     string
	Headers     Headers
	Verbose     bool
	MetricsAddr string
}

// DefaultConfig returns conservative defaults for the catalog.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://goodreads.com",
		MaxID:       10,
		Concurrency: 10,
		Timeout:     5 * time.Second,
		MaxRetries:  2,
		RetryDelay:  time.Second,
		JSONFile:    "books_data.json",
		CSVFile:     "books_data.csv",
		Headers:     DefaultHeaders(),
		Verbose:     false,
		MetricsAddr: "",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.MaxID <= 0 {
		return fmt.Errorf("max id must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}
	if c.JSONFile == "" {
		return fmt.Errorf("json file cannot be empty")
	}
	if c.CSVFile == "" {
		return fmt.Errorf("csv file cannot be empty")
	}
	if c.JSONFile == c.CSVFile {
		return fmt.Errorf("json file and csv file must differ")
	}
	if c.Headers.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}
