package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"rightmove-scraper/models"
)

// CSVWriter writes normalized records as one row each, columns in schema
// order. It is safe for concurrent use.
type CSVWriter struct {
	mu      sync.Mutex
	file    *os.File
	writer  *csv.Writer
	columns []string
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string, columns []string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w, columns: append([]string(nil), columns...)}, nil
}

// Write appends one row per record. Absent fields become empty cells;
// nested values are written as compact JSON.
func (c *CSVWriter) Write(records []*models.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	row := make([]string, len(c.columns))
	for _, r := range records {
		for i, col := range c.columns {
			row[i] = r.String(col)
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		_ = c.file.Close()
		return fmt.Errorf("csv: flush: %w", err)
	}
	return c.file.Close()
}

// OutputPath builds dir/name.ext, replacing path separators in name so a
// query cannot escape dir.
func OutputPath(dir, name, ext string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if safe == "" || safe == "." || safe == ".." {
		safe = "results"
	}
	return filepath.Join(dir, safe+"."+ext)
}
