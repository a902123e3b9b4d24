package progress

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/psantana5/dftd-labeler/pkg/jobid"
)

const (
	inputPrefix  = "Input: "
	outputPrefix = "Output: "
)

// FileStore keeps one plain-text file per job:
//
//	Input: <input path>
//	Output: <output path>
//	<last completed index>
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir, creating it if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create progress directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the progress file path for a job identity
func (s *FileStore) Path(jobID string) string {
	return filepath.Join(s.dir, jobid.ProgressFileName(jobID))
}

// Load reads a job's progress file
func (s *FileStore) Load(ctx context.Context, jobID string) (*Record, error) {
	path := s.Path(jobID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read progress file %s: %w", path, err)
	}

	rec, err := parseRecord(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	rec.JobID = jobID
	if info, err := os.Stat(path); err == nil {
		rec.UpdatedAt = info.ModTime()
	}
	return rec, nil
}

// Save writes the progress file atomically (temp file, fsync, rename)
func (s *FileStore) Save(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}

	path := s.Path(rec.JobID)
	tmp, err := os.CreateTemp(s.dir, jobid.ProgressFileName(rec.JobID)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp progress file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(formatRecord(rec)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp progress file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp progress file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp progress file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set progress file mode: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp progress file: %w", err)
	}

	syncDir(s.dir)
	return nil
}

// List reads every progress file in the directory
func (s *FileStore) List(ctx context.Context) ([]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress directory %s: %w", s.dir, err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id, ok := jobid.FromProgressFileName(e.Name()); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, nil
}

// Delete removes a job's progress file
func (s *FileStore) Delete(ctx context.Context, jobID string) error {
	if err := os.Remove(s.Path(jobID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove progress file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

func formatRecord(rec Record) string {
	return fmt.Sprintf("%s%s\n%s%s\n%d", inputPrefix, rec.InputPath, outputPrefix, rec.OutputPath, rec.LastIndex)
}

func parseRecord(data string) (*Record, error) {
	lines := strings.Split(strings.ReplaceAll(data, "\r\n", "\n"), "\n")
	if len(lines) < 3 {
		return nil, fmt.Errorf("expected 3 lines, found %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], inputPrefix) {
		return nil, fmt.Errorf("line 1 does not start with %q", inputPrefix)
	}
	if !strings.HasPrefix(lines[1], outputPrefix) {
		return nil, fmt.Errorf("line 2 does not start with %q", outputPrefix)
	}

	idx, err := strconv.Atoi(strings.TrimSpace(lines[2]))
	if err != nil {
		return nil, fmt.Errorf("line 3 is not an index: %q", lines[2])
	}
	if idx < 0 {
		return nil, fmt.Errorf("line 3 holds a negative index: %d", idx)
	}

	return &Record{
		InputPath:  strings.TrimPrefix(lines[0], inputPrefix),
		OutputPath: strings.TrimPrefix(lines[1], outputPrefix),
		LastIndex:  idx,
	}, nil
}

// syncDir makes the rename durable where the platform allows it
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}
