// Package appender writes processed structures to the output dataset one
// frame at a time. The output file is only ever opened for appending.
package appender

import (
	"fmt"
	"os"

	"github.com/psantana5/dftd-labeler/pkg/extxyz"
	"github.com/psantana5/dftd-labeler/pkg/models"
)

// Columns returns the per-atom columns written for a method and scheme:
// symbols, atomic numbers, positions, base forces and corrected forces.
func Columns(method string, scheme models.Scheme) []string {
	fields := models.Fields(method, scheme)
	return []string{
		extxyz.ColumnSymbols,
		extxyz.ColumnNumbers,
		extxyz.ColumnPositions,
		fields.Forces,
		fields.CorrectedForces,
	}
}

// Appender appends frames to one output dataset
type Appender struct {
	path    string
	columns []string
}

// New creates an appender for path writing the column selection of method and scheme
func New(path, method string, scheme models.Scheme) *Appender {
	return &Appender{path: path, columns: Columns(method, scheme)}
}

// Path returns the output dataset path
func (a *Appender) Path() string {
	return a.path
}

// Append writes s as exactly one frame and syncs it to disk before returning.
// The frame is rendered before the file is opened so a structure missing a
// column leaves the output untouched.
func (a *Appender) Append(s *models.Structure) error {
	data, err := extxyz.MarshalFrame(s, a.columns)
	if err != nil {
		return fmt.Errorf("failed to render frame: %w", err)
	}

	f, err := os.OpenFile(a.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output dataset: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync output dataset: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output dataset: %w", err)
	}
	return nil
}
