package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"apartment-scraper/models"
)

var csvColumns = []string{
	"listing_id", "title", "price", "size", "rooms", "location", "url",
	"status", "description", "created_at", "processed_at",
}

var _ ListingExporter = (*CSVWriter)(nil)

// CSVWriter exports stored listings as CSV, one row per listing.
type CSVWriter struct {
	out    io.Closer
	writer *csv.Writer
}

// NewCSVWriter exports to the file at path, creating parent directories.
// A path of "-" writes to stdout.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if path == "-" {
		return newCSVWriter(os.Stdout, stdoutCloser{})
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("csv: mkdir %q: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}

	w, err := newCSVWriter(f, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

// stdoutCloser keeps Close from closing the process stdout.
type stdoutCloser struct{}

func (stdoutCloser) Close() error { return nil }

func newCSVWriter(w io.Writer, c io.Closer) (*CSVWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return nil, fmt.Errorf("csv: header: %w", err)
	}
	return &CSVWriter{out: c, writer: cw}, nil
}

// WriteListings appends the listings and flushes.
func (c *CSVWriter) WriteListings(listings []models.PersistedListing) error {
	for i := range listings {
		if err := c.writer.Write(csvRecord(&listings[i])); err != nil {
			return fmt.Errorf("csv: listing %s: %w", listings[i].ListingID, err)
		}
	}
	c.writer.Flush()
	return c.writer.Error()
}

func (c *CSVWriter) Close() error {
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		_ = c.out.Close()
		return err
	}
	return c.out.Close()
}

func csvRecord(l *models.PersistedListing) []string {
	var processed string
	if l.ProcessedAt != nil {
		processed = l.ProcessedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		l.ListingID,
		l.Title,
		formatOptional(l.Price),
		formatOptional(l.Size),
		formatOptional(l.Rooms),
		l.Location,
		l.URL,
		string(l.Status),
		l.Description,
		l.CreatedAt.UTC().Format(time.RFC3339),
		processed,
	}
}

// formatOptional leaves missing numbers empty rather than writing 0.
func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
