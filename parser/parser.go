// Package parser extracts book records from catalog detail pages.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-shelf/models"
)

// ErrBookNotFound reports a page that does not describe a book.
var ErrBookNotFound = errors.New("parser: book not found")

// Defaults for optional fields missing from the page.
const (
	DefaultAuthor      = "Not specified"
	DefaultRating      = "0"
	DefaultEvaluations = "0"
	DefaultPages       = "0"
	DefaultPublished   = "Not specified"
	DefaultDescription = "No description"
)

const (
	titleSelector       = "h1.Text__title1"
	authorSelector      = "span.ContributorLink__name"
	ratingSelector      = "div.RatingStatistics__rating"
	evaluationsSelector = "div.RatingStatistics__meta"
	detailsSelector     = "div.FeaturedDetails"
	descriptionSelector = "span.Formatted"
)

// Extract builds a Book from a detail page. It returns ErrBookNotFound when
// the page has no title and a wrapped error for markup it cannot read.
func Extract(markup []byte, link string) (book *models.Book, err error) {
	defer func() {
		if r := recover(); r != nil {
			book = nil
			err = fmt.Errorf("extract %s: %v", link, r)
		}
	}()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title, ok := firstText(doc, titleSelector)
	if !ok {
		return nil, ErrBookNotFound
	}

	book = &models.Book{
		Title:       title,
		Author:      DefaultAuthor,
		Rating:      DefaultRating,
		Evaluations: DefaultEvaluations,
		Pages:       DefaultPages,
		Published:   DefaultPublished,
		Description: DefaultDescription,
		Link:        link,
	}

	if author, ok := firstText(doc, authorSelector); ok {
		book.Author = author
	}
	if rating, ok := firstText(doc, ratingSelector); ok {
		book.Rating = rating
	}
	if meta, ok := firstText(doc, evaluationsSelector); ok {
		book.Evaluations = NormalizeEvaluations(meta)
	}
	if details, ok := firstText(doc, detailsSelector); ok {
		book.Pages, book.Published = SplitFeaturedDetails(details)
	}
	if description, ok := firstText(doc, descriptionSelector); ok {
		book.Description = description
	}

	return book, nil
}

func firstText(doc *goquery.Document, selector string) (string, bool) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	text := NormalizeText(sel.Text())
	return text, text != ""
}

// NormalizeText trims surrounding whitespace.
func NormalizeText(text string) string {
	return strings.TrimSpace(text)
}

// NormalizeEvaluations keeps the part of the rating statistics text that
// precedes the word "ratings", e.g. "1,234 ratings · 56 reviews" -> "1,234".
func NormalizeEvaluations(text string) string {
	before, _, _ := strings.Cut(text, "ratings")
	before = strings.TrimSpace(before)
	if before == "" {
		return DefaultEvaluations
	}
	return before
}

// SplitFeaturedDetails splits a "352 pages, Hardcover First published 2020"
// block on the first "published". Without that word both parts default.
func SplitFeaturedDetails(text string) (pages, published string) {
	head, tail, found := strings.Cut(text, "published")
	if !found {
		return DefaultPages, DefaultPublished
	}

	pages = DefaultPages
	if fields := strings.Fields(head); len(fields) > 0 {
		pages = fields[0]
	}

	published = strings.TrimSpace(tail)
	if published == "" {
		published = DefaultPublished
	}
	return pages, published
}

// ValidateBook ensures the record carries its required fields.
func ValidateBook(b *models.Book) error {
	if b == nil {
		return fmt.Errorf("book is nil")
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("book missing title")
	}
	if strings.TrimSpace(b.Link) == "" {
		return fmt.Errorf("book missing link for %s", b.Title)
	}
	return nil
}
