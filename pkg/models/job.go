package models

import (
	"fmt"
	"strings"
	"time"
)

// DefaultMethod is the DFT method used when none is given
const DefaultMethod = "SCAN"

// Job describes one (input, output) labelling job
type Job struct {
	ID         string `json:"id" yaml:"id"`
	InputPath  string `json:"input_path" yaml:"input_path"`
	OutputPath string `json:"output_path" yaml:"output_path"`
	Method     string `json:"method" yaml:"method"`
	Scheme     Scheme `json:"dispersion" yaml:"dispersion"`
}

// Validate rejects a job before any I/O happens
func (j *Job) Validate() error {
	if strings.TrimSpace(j.InputPath) == "" {
		return fmt.Errorf("%w: input dataset path is required", ErrConfig)
	}
	if strings.TrimSpace(j.OutputPath) == "" {
		return fmt.Errorf("%w: output dataset path is required", ErrConfig)
	}
	if strings.TrimSpace(j.Method) == "" {
		return fmt.Errorf("%w: DFT method name is required", ErrConfig)
	}
	if !j.Scheme.Valid() {
		return fmt.Errorf("%w: invalid dispersion scheme %d (choose from 3, 4)", ErrConfig, int(j.Scheme))
	}
	return nil
}

// JobResult summarises one pipeline run
type JobResult struct {
	JobID       string        `json:"job_id" yaml:"job_id"`
	RunID       string        `json:"run_id" yaml:"run_id"`
	State       PipelineState `json:"state" yaml:"state"`
	Total       int           `json:"total" yaml:"total"`
	StartIndex  int           `json:"start_index" yaml:"start_index"`
	LastIndex   int           `json:"last_index" yaml:"last_index"` // -1 when nothing has completed
	Processed   int           `json:"processed" yaml:"processed"`
	Error       string        `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}
