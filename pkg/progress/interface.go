package progress

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Record is the persisted progress of one job.
// LastIndex always names a structure that was corrected and appended.
type Record struct {
	JobID      string    `json:"job_id" yaml:"job_id"`
	InputPath  string    `json:"input_path" yaml:"input_path"`
	OutputPath string    `json:"output_path" yaml:"output_path"`
	LastIndex  int       `json:"last_index" yaml:"last_index"`
	RunID      string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at"`
}

// NextIndex returns the index a run should start from: 0 without a record
func NextIndex(rec *Record) int {
	if rec == nil {
		return 0
	}
	return rec.LastIndex + 1
}

// Store persists the last completed index per job identity.
// A single writer per job is assumed; no locking is done.
type Store interface {
	// Load returns the record for a job, or nil when none exists.
	// A record that cannot be parsed yields an error wrapping ErrCorrupt.
	Load(ctx context.Context, jobID string) (*Record, error)

	// Save overwrites the record for rec.JobID
	Save(ctx context.Context, rec Record) error

	// List returns every record the store holds, sorted by job ID
	List(ctx context.Context) ([]Record, error)

	// Delete removes a job's record; deleting a missing record is not an error
	Delete(ctx context.Context, jobID string) error

	Close() error
}

// Config holds progress backend configuration
type Config struct {
	Type string // "file", "sqlite" or "postgres"
	Dir  string // file backend directory
	DSN  string // sqlite path or postgres connection string

	// PostgreSQL specific
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// NewStore creates a store based on configuration
func NewStore(config Config) (Store, error) {
	switch config.Type {
	case "file", "":
		dir := config.Dir
		if dir == "" {
			dir = "."
		}
		return NewFileStore(dir)
	case "sqlite", "sqlite3":
		path := config.DSN
		if path == "" {
			path = "dftdlabel-progress.db"
		}
		return NewSQLiteStore(path)
	case "postgres", "postgresql":
		return NewPostgresStore(config)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, config.Type)
	}
}

var (
	// ErrCorrupt marks a progress record that exists but cannot be trusted
	ErrCorrupt = errors.New("corrupt progress record")

	ErrUnsupportedBackend = errors.New("unsupported progress backend")
)

func validate(rec Record) error {
	if rec.JobID == "" {
		return errors.New("progress record has no job ID")
	}
	if rec.LastIndex < 0 {
		return fmt.Errorf("progress index must be non-negative, got %d", rec.LastIndex)
	}
	return nil
}
