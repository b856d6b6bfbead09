package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"rightmove-scraper/models"
	"rightmove-scraper/utils"
)

const insertBatchSize = 50

// OpenPostgres connects to PostgreSQL, retrying the initial ping.
func OpenPostgres(ctx context.Context, dsn string, retry *utils.RetryConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	err = retry.Do(ctx, "postgres ping", func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return db, nil
}

// PostgresWriter persists the records of one run as JSONB rows tagged with
// the run ID and query.
type PostgresWriter struct {
	db    *sql.DB
	runID string
	query string
}

// NewPostgresWriter runs schema migrations and returns a writer for one run.
func NewPostgresWriter(db *sql.DB, runID, query string) (*PostgresWriter, error) {
	pw := &PostgresWriter{db: db, runID: runID, query: query}
	if err := pw.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS listing_records (
			run_id      UUID        NOT NULL,
			listing_id  TEXT        NOT NULL,
			query       TEXT        NOT NULL DEFAULT '',
			record      JSONB       NOT NULL,
			scraped_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (run_id, listing_id)
		);

		CREATE INDEX IF NOT EXISTS idx_listing_records_listing ON listing_records(listing_id);
		CREATE INDEX IF NOT EXISTS idx_listing_records_query   ON listing_records(query);
	`)
	return err
}

// Write batch-inserts records. Records without an id cannot be keyed and are
// skipped.
func (pw *PostgresWriter) Write(records []*models.Record) error {
	keyed := make([]*models.Record, 0, len(records))
	for _, r := range records {
		if r.String("id") != "" {
			keyed = append(keyed, r)
		}
	}

	for i := 0; i < len(keyed); i += insertBatchSize {
		end := i + insertBatchSize
		if end > len(keyed) {
			end = len(keyed)
		}
		if err := pw.insertBatch(keyed[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (pw *PostgresWriter) insertBatch(batch []*models.Record) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*4)

	for idx, r := range batch {
		doc, err := r.MarshalJSON()
		if err != nil {
			return fmt.Errorf("postgres: encode record %s: %w", r.String("id"), err)
		}
		base := idx * 4
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d)", base+1, base+2, base+3, base+4))
		valueArgs = append(valueArgs, pw.runID, r.String("id"), pw.query, string(doc))
	}

	query := fmt.Sprintf(`
		INSERT INTO listing_records (run_id, listing_id, query, record)
		VALUES %s
		ON CONFLICT (run_id, listing_id) DO NOTHING
	`, strings.Join(valueStrings, ","))

	if _, err := pw.db.Exec(query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert batch: %w", err)
	}
	return nil
}

// CountRun returns how many rows the current run has stored.
func (pw *PostgresWriter) CountRun() (int, error) {
	var n int
	err := pw.db.QueryRow(`SELECT COUNT(*) FROM listing_records WHERE run_id = $1`, pw.runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count run: %w", err)
	}
	return n, nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
