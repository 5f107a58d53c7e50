package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/aluiziolira/go-scrape-shelf/models"
)

// Store persists the book collection as a JSON array plus a CSV table.
// The JSON file is the source of truth on load.
type Store struct {
	jsonPath string
	csvPath  string
}

// NewStore returns a store backed by the given files.
func NewStore(jsonPath, csvPath string) *Store {
	return &Store{jsonPath: jsonPath, csvPath: csvPath}
}

// Load reads previously saved books. A missing or unreadable file yields an
// empty collection so the run can start from scratch.
func (s *Store) Load() []*models.Book {
	data, err := os.ReadFile(s.jsonPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Info("no existing data, starting empty", slog.String("file", s.jsonPath))
		} else {
			slog.Error("read existing data", slog.String("file", s.jsonPath), slog.Any("error", err))
		}
		return []*models.Book{}
	}

	var decoded []*models.Book
	if err := json.Unmarshal(data, &decoded); err != nil {
		slog.Error("decode existing data", slog.String("file", s.jsonPath), slog.Any("error", err))
		return []*models.Book{}
	}

	books := make([]*models.Book, 0, len(decoded))
	for _, book := range decoded {
		if book != nil {
			books = append(books, book)
		}
	}

	slog.Info("loaded existing books", slog.Int("count", len(books)), slog.String("file", s.jsonPath))
	return books
}

// Save overwrites both files with books.
func (s *Store) Save(books []*models.Book) error {
	slog.Info("saving books",
		slog.Int("count", len(books)),
		slog.String("json", s.jsonPath),
		slog.String("csv", s.csvPath),
	)

	writer, err := NewDualWriter(s.csvPath, s.jsonPath)
	if err != nil {
		return fmt.Errorf("open outputs: %w", err)
	}
	return writeAll(writer, books)
}

func writeAll(writer OutputWriter, books []*models.Book) error {
	if err := writer.Write(books); err != nil {
		writer.Close()
		return fmt.Errorf("write books: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close outputs: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("validate outputs: %w", err)
	}
	return nil
}
