package storage

import (
	"database/sql/driver"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rightmove-scraper/models"
)

const testRunID = "5f0c6f0e-6a4e-4d55-9a53-0c3f3d1d8e21"

func TestPostgresWriterWrite(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS listing_records").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO listing_records").
		WithArgs(testRunID, "1", "cornwall", sqlmock.AnyArg(), testRunID, "2", "cornwall", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM listing_records WHERE run_id = \$1`).
		WithArgs(testRunID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectClose()

	pw, err := NewPostgresWriter(db, testRunID, "cornwall")
	require.NoError(t, err)

	noID := models.NewRecord(testColumns)
	require.NoError(t, pw.Write([]*models.Record{testRecord("1"), noID, testRecord("2")}))

	n, err := pw.CountRun()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, pw.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWriterBatches(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	records := make([]*models.Record, 120)
	for i := range records {
		records[i] = testRecord(fmt.Sprint(i))
	}

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	for _, size := range []int{50, 50, 20} {
		args := make([]driver.Value, 0, size*4)
		for i := 0; i < size; i++ {
			args = append(args, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg())
		}
		mock.ExpectExec("INSERT INTO listing_records").
			WithArgs(args...).
			WillReturnResult(sqlmock.NewResult(0, int64(size)))
	}

	pw, err := NewPostgresWriter(db, testRunID, "cornwall")
	require.NoError(t, err)
	require.NoError(t, pw.Write(records))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWriterInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO listing_records").WillReturnError(fmt.Errorf("disk full"))

	pw, err := NewPostgresWriter(db, testRunID, "cornwall")
	require.NoError(t, err)

	err = pw.Write([]*models.Record{testRecord("1")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestPostgresWriterMigrationError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnError(fmt.Errorf("permission denied"))

	_, err = NewPostgresWriter(db, testRunID, "cornwall")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate")
}
