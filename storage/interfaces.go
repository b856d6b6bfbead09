package storage

import "rightmove-scraper/models"

// RecordWriter is the interface any storage backend must satisfy.
type RecordWriter interface {
	Write(records []*models.Record) error
	Close() error
}

var (
	_ RecordWriter = (*CSVWriter)(nil)
	_ RecordWriter = (*PostgresWriter)(nil)
)
