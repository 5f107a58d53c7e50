package parser

import (
	"errors"
	"testing"

	"github.com/aluiziolira/go-scrape-shelf/models"
)

const testLink = "https://www.goodreads.com/book/show/1"

func fullPage() string {
	return `<html><body>
<h1 class="Text Text__title1" data-testid="bookTitle">  Harry Potter and the Half-Blood Prince </h1>
<div class="ContributorLinksList"><span class="ContributorLink__name">J.K. Rowling</span><span class="ContributorLink__name">Mary GrandPré</span></div>
<div class="RatingStatistics__rating">4.58</div>
<div class="RatingStatistics__meta"><span>3,284,110 ratings</span><span>56,133 reviews</span></div>
<div class="FeaturedDetails"><p>652 pages, Paperback</p><p>First published July 16, 2005</p></div>
<div class="DetailsLayoutRightParagraph"><span class="Formatted">Éste es el sexto año de Harry en Hogwarts.</span></div>
</body></html>`
}

func TestExtractFullPage(t *testing.T) {
	book, err := Extract([]byte(fullPage()), testLink)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	want := models.Book{
		Title:       "Harry Potter and the Half-Blood Prince",
		Author:      "J.K. Rowling",
		Rating:      "4.58",
		Evaluations: "3,284,110",
		Pages:       "652",
		Published:   "July 16, 2005",
		Description: "Éste es el sexto año de Harry en Hogwarts.",
		Link:        testLink,
	}
	if *book != want {
		t.Fatalf("book = %+v\nwant %+v", *book, want)
	}
}

func TestExtractDefaults(t *testing.T) {
	markup := `<html><body><h1 class="Text Text__title1">Untitled Draft</h1></body></html>`

	book, err := Extract([]byte(markup), testLink)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if book.Author != "Not specified" {
		t.Errorf("author = %q, want %q", book.Author, "Not specified")
	}
	if book.Rating != "0" || book.Evaluations != "0" || book.Pages != "0" {
		t.Errorf("numeric defaults = %q/%q/%q, want 0/0/0", book.Rating, book.Evaluations, book.Pages)
	}
	if book.Published != "Not specified" {
		t.Errorf("published = %q", book.Published)
	}
	if book.Description != "No description" {
		t.Errorf("description = %q", book.Description)
	}
	if book.Link != testLink {
		t.Errorf("link = %q", book.Link)
	}
}

func TestExtractNotFound(t *testing.T) {
	tests := []struct {
		name   string
		markup string
	}{
		{name: "no title", markup: `<html><body><h1 class="ErrorPage">Page not found</h1></body></html>`},
		{name: "blank title", markup: `<html><body><h1 class="Text Text__title1">   </h1></body></html>`},
		{name: "empty document", markup: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book, err := Extract([]byte(tt.markup), testLink)
			if !errors.Is(err, ErrBookNotFound) {
				t.Fatalf("err = %v, want ErrBookNotFound", err)
			}
			if book != nil {
				t.Fatalf("book = %+v, want nil", book)
			}
		})
	}
}

func TestNormalizeEvaluations(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "ratings suffix", input: "1,234 ratings", expected: "1,234"},
		{name: "with reviews", input: "  98 ratings · 12 reviews ", expected: "98"},
		{name: "no suffix", input: " 7 ", expected: "7"},
		{name: "only suffix", input: "ratings", expected: "0"},
		{name: "empty string", input: "", expected: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeEvaluations(tt.input); got != tt.expected {
				t.Errorf("NormalizeEvaluations(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSplitFeaturedDetails(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantPages     string
		wantPublished string
	}{
		{name: "simple", input: "352 pages, published 2020", wantPages: "352", wantPublished: "2020"},
		{name: "first published", input: "652 pages, PaperbackFirst published July 16, 2005", wantPages: "652", wantPublished: "July 16, 2005"},
		{name: "leading whitespace", input: "\n  120 pages published 1999 ", wantPages: "120", wantPublished: "1999"},
		{name: "no published word", input: "352 pages, Kindle Edition", wantPages: "0", wantPublished: "Not specified"},
		{name: "nothing before published", input: "published 2001", wantPages: "0", wantPublished: "2001"},
		{name: "nothing after published", input: "200 pages published", wantPages: "200", wantPublished: "Not specified"},
		{name: "split on first occurrence", input: "10 pages published 2001 republished 2010", wantPages: "10", wantPublished: "2001 republished 2010"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, published := SplitFeaturedDetails(tt.input)
			if pages != tt.wantPages || published != tt.wantPublished {
				t.Errorf("SplitFeaturedDetails(%q) = (%q, %q), want (%q, %q)", tt.input, pages, published, tt.wantPages, tt.wantPublished)
			}
		})
	}
}

func TestValidateBook(t *testing.T) {
	tests := []struct {
		name    string
		book    *models.Book
		wantErr bool
	}{
		{
			name:    "valid book",
			book:    &models.Book{Title: "Test Book", Link: testLink},
			wantErr: false,
		},
		{
			name:    "missing title",
			book:    &models.Book{Title: "", Link: testLink},
			wantErr: true,
		},
		{
			name:    "missing link",
			book:    &models.Book{Title: "Test Book"},
			wantErr: true,
		},
		{
			name:    "nil book",
			book:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBook(tt.book)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBook() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
