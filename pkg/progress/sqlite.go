package progress

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/psantana5/dftd-labeler/pkg/retry"
)

// SQLiteStore keeps progress records in a SQLite database so several jobs
// can be audited from one place
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// - _journal_mode=WAL: readers (status command) do not block the writer
	// - _busy_timeout=10000: wait up to 10 seconds when the database is locked
	// - _synchronous=FULL: a saved index must survive power loss
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=FULL", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS progress (
		job_id TEXT PRIMARY KEY,
		input_path TEXT NOT NULL,
		output_path TEXT NOT NULL,
		last_index INTEGER NOT NULL,
		run_id TEXT,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns a job's record
func (s *SQLiteStore) Load(ctx context.Context, jobID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, input_path, output_path, last_index, COALESCE(run_id, ''), updated_at
		FROM progress WHERE job_id = ?
	`, jobID)
	return scanRecord(row)
}

// Save upserts a job's record
func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	err := retry.Do(ctx, storePolicy(), func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
		INSERT INTO progress (job_id, input_path, output_path, last_index, run_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			input_path = excluded.input_path,
			output_path = excluded.output_path,
			last_index = excluded.last_index,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at
	`, rec.JobID, rec.InputPath, rec.OutputPath, rec.LastIndex, rec.RunID, rec.UpdatedAt.UTC())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// List returns all records
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, input_path, output_path, last_index, COALESCE(run_id, ''), updated_at
		FROM progress ORDER BY job_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Delete removes a job's record
func (s *SQLiteStore) Delete(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM progress WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}

// HealthCheck verifies the database is reachable
func (s *SQLiteStore) HealthCheck() error {
	return s.db.Ping()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.JobID, &rec.InputPath, &rec.OutputPath, &rec.LastIndex, &rec.RunID, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	if rec.LastIndex < 0 {
		return nil, fmt.Errorf("%w: job %s holds a negative index %d", ErrCorrupt, rec.JobID, rec.LastIndex)
	}
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate progress rows: %w", err)
	}
	return records, nil
}
