// Package pipeline merges scraped books into the persisted collection and
// writes it out as CSV and JSON.
package pipeline

import (
	"sync"

	"github.com/aluiziolira/go-scrape-shelf/models"
	"github.com/aluiziolira/go-scrape-shelf/parser"
)

// LinkSet is a set of canonical book links.
type LinkSet map[string]struct{}

// NewLinkSet collects the non-empty links of books.
func NewLinkSet(books []*models.Book) LinkSet {
	set := make(LinkSet, len(books))
	for _, book := range books {
		if book != nil && book.Link != "" {
			set[book.Link] = struct{}{}
		}
	}
	return set
}

// Has reports whether link is in the set.
func (s LinkSet) Has(link string) bool {
	_, ok := s[link]
	return ok
}

// Pipeline accumulates new books on top of an existing collection. Existing
// records are never dropped or modified.
type Pipeline struct {
	mu       sync.Mutex
	records  []*models.Book
	existing int

	// known is fixed at construction and shared read-only with the scraper.
	known LinkSet
	seen  LinkSet

	metrics *metrics
}

// NewPipeline seeds a pipeline with previously persisted books.
func NewPipeline(existing []*models.Book) *Pipeline {
	records := make([]*models.Book, len(existing))
	copy(records, existing)

	return &Pipeline{
		records:  records,
		existing: len(existing),
		known:    NewLinkSet(existing),
		seen:     NewLinkSet(existing),
		metrics:  newMetrics(),
	}
}

// Links returns the links present before any Process call.
func (p *Pipeline) Links() LinkSet {
	return p.known
}

// Process validates and de-duplicates books by link, appending the rest.
// It returns the number of books appended.
func (p *Pipeline) Process(books ...*models.Book) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	added := 0
	for _, book := range books {
		if book == nil {
			continue
		}
		if err := parser.ValidateBook(book); err != nil {
			p.metrics.addValidation("invalid_record")
			continue
		}
		if p.seen.Has(book.Link) {
			p.metrics.addValidation("duplicate_url")
			continue
		}
		p.seen[book.Link] = struct{}{}
		p.records = append(p.records, book)
		p.metrics.incrementProcessed()
		added++
	}
	return added
}

// Records returns the merged collection, existing books first.
func (p *Pipeline) Records() []*models.Book {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*models.Book, len(p.records))
	copy(out, p.records)
	return out
}

// Existing returns the number of books the pipeline was seeded with.
func (p *Pipeline) Existing() int {
	return p.existing
}

// Added returns the number of books appended by Process.
func (p *Pipeline) Added() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records) - p.existing
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	validation map[string]int
}

func newMetrics() *metrics {
	return &metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_books":   m.processed,
		"validation_errors": copyValidation,
	}
}
