package dispersion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/psantana5/dftd-labeler/pkg/models"
)

const resultFile = "result.json"

// ExecProvider runs the s-dftd3 or dftd4 command line program in a private
// scratch directory and reads its JSON output
type ExecProvider struct {
	scheme models.Scheme
	binary string
	args   []string
	opts   Options
}

// Scheme returns the dispersion scheme the provider implements
func (p *ExecProvider) Scheme() models.Scheme {
	return p.scheme
}

// Command returns the argument vector used for a geometry file
func (p *ExecProvider) Command(geometry string) []string {
	argv := append([]string{p.binary}, p.args...)
	return append(argv, "--grad", "--json", resultFile, geometry)
}

// output is the subset of the JSON document written with --json
type output struct {
	Energy   *float64  `json:"energy"`
	Gradient []float64 `json:"gradient"`
	Virial   []float64 `json:"virial"`
}

// Calculate evaluates the correction for s
func (p *ExecProvider) Calculate(ctx context.Context, s *models.Structure) (*Result, error) {
	if s.NumAtoms() == 0 {
		return nil, fmt.Errorf("%s: structure has no atoms", p.scheme)
	}
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	scratch, err := os.MkdirTemp(p.opts.WorkDir, "dftdlabel-"+strings.ToLower(p.scheme.String())+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	geometry, err := writeGeometry(scratch, s)
	if err != nil {
		return nil, err
	}

	argv := p.Command(geometry)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = scratch
	cmd.Env = append(os.Environ(), p.opts.Env...)
	var stderr bytes.Buffer
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr

	p.opts.Logger.Debug("Running dispersion provider", map[string]interface{}{
		"command": strings.Join(argv, " "),
		"dir":     scratch,
	})
	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s provider: %w", p.scheme, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s provider exited with code %d: %s", p.scheme, exitErr.ExitCode(), tail(stderr.String(), 512))
		}
		return nil, fmt.Errorf("failed to run %s: %w", p.binary, err)
	}
	p.opts.Logger.Debug("Dispersion provider finished", map[string]interface{}{
		"duration_ms": time.Since(start).Milliseconds(),
	})

	data, err := os.ReadFile(filepath.Join(scratch, resultFile))
	if err != nil {
		return nil, fmt.Errorf("%s provider wrote no result: %w", p.scheme, err)
	}
	return parseOutput(data, s)
}

// writeGeometry writes POSCAR for periodic structures and XYZ otherwise
func writeGeometry(dir string, s *models.Structure) (string, error) {
	name, write := "geometry.xyz", writeXYZ
	if s.Periodic() {
		name, write = "POSCAR", writePOSCAR
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create geometry file: %w", err)
	}
	if err := write(f, s); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write geometry: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write geometry: %w", err)
	}
	return name, nil
}

// parseOutput converts the provider's atomic units to eV and Angstrom
func parseOutput(data []byte, s *models.Structure) (*Result, error) {
	var out output
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("invalid provider output: %w", err)
	}
	if out.Energy == nil {
		return nil, fmt.Errorf("provider output has no energy")
	}

	forces, err := forcesFromGradient(out.Gradient, s.NumAtoms())
	if err != nil {
		return nil, fmt.Errorf("invalid provider output: %w", err)
	}

	volume := 0.0
	if s.Periodic() {
		volume = s.Volume()
	}
	res := &Result{
		Energy: *out.Energy * Hartree,
		Forces: forces,
		Volume: volume,
	}
	if volume > 0 {
		if len(out.Virial) != 9 {
			return nil, fmt.Errorf("invalid provider output: virial has %d components, want 9", len(out.Virial))
		}
		var virial [9]float64
		copy(virial[:], out.Virial)
		res.Stress = stressFromVirial(virial, volume)
	}
	return res, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
