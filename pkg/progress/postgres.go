package progress

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/psantana5/dftd-labeler/pkg/retry"
)

// PostgresStore keeps progress records in PostgreSQL, for sites that run
// many labelling jobs and want one ledger for all of them
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects using config.DSN
func NewPostgresStore(config Config) (*PostgresStore, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("PostgreSQL DSN is required")
	}

	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(2)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := retry.Do(context.Background(), storePolicy(), db.PingContext); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS dftdlabel_progress (
		job_id TEXT PRIMARY KEY,
		input_path TEXT NOT NULL,
		output_path TEXT NOT NULL,
		last_index INTEGER NOT NULL,
		run_id TEXT,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns a job's record
func (s *PostgresStore) Load(ctx context.Context, jobID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, input_path, output_path, last_index, COALESCE(run_id, ''), updated_at
		FROM dftdlabel_progress WHERE job_id = $1
	`, jobID)
	return scanRecord(row)
}

// Save upserts a job's record
func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	err := retry.Do(ctx, storePolicy(), func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
		INSERT INTO dftdlabel_progress (job_id, input_path, output_path, last_index, run_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (job_id) DO UPDATE SET
			input_path = EXCLUDED.input_path,
			output_path = EXCLUDED.output_path,
			last_index = EXCLUDED.last_index,
			run_id = EXCLUDED.run_id,
			updated_at = EXCLUDED.updated_at
	`, rec.JobID, rec.InputPath, rec.OutputPath, rec.LastIndex, rec.RunID, rec.UpdatedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// List returns all records
func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, input_path, output_path, last_index, COALESCE(run_id, ''), updated_at
		FROM dftdlabel_progress ORDER BY job_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Delete removes a job's record
func (s *PostgresStore) Delete(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM dftdlabel_progress WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}

// HealthCheck verifies the database is reachable
func (s *PostgresStore) HealthCheck() error {
	return s.db.Ping()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
