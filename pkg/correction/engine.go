// Package correction adds a dispersion correction to the DFT energy, forces
// and stress already stored on a structure.
package correction

import (
	"context"
	"fmt"

	"github.com/psantana5/dftd-labeler/pkg/dispersion"
	"github.com/psantana5/dftd-labeler/pkg/models"
)

// ErrMissingField is returned when a base energy, forces or stress field is absent
var ErrMissingField = models.ErrMissingField

// Engine applies one provider's correction for a fixed method
type Engine struct {
	provider dispersion.Provider
	method   string
}

// NewEngine creates an engine correcting the method's fields with provider
func NewEngine(provider dispersion.Provider, method string) *Engine {
	return &Engine{provider: provider, method: method}
}

// Scheme returns the dispersion scheme applied
func (e *Engine) Scheme() models.Scheme {
	return e.provider.Scheme()
}

// Method returns the DFT method whose fields are corrected
func (e *Engine) Method() string {
	return e.method
}

// base is the pre-correction data read from a structure
type base struct {
	energy float64
	forces [][3]float64
	stress [9]float64
}

func readBase(s *models.Structure, f models.FieldNames) (*base, error) {
	energy, err := s.Scalar(f.Energy)
	if err != nil {
		return nil, err
	}
	forces, err := s.Vectors(f.Forces)
	if err != nil {
		return nil, err
	}
	stress, err := s.Tensor(f.Stress)
	if err != nil {
		return nil, err
	}
	return &base{energy: energy, forces: forces, stress: stress}, nil
}

// Correct stores energy, forces and stress with the dispersion term added
// under scheme-suffixed names, such as energy_SCAN_d4, and returns s.
// The provider sees a copy; the base fields on s are left untouched.
// Missing base fields fail before the provider is called.
func (e *Engine) Correct(ctx context.Context, s *models.Structure) (*models.Structure, error) {
	fields := models.Fields(e.method, e.provider.Scheme())

	b, err := readBase(s, fields)
	if err != nil {
		return nil, err
	}

	res, err := e.provider.Calculate(ctx, s.Clone())
	if err != nil {
		return nil, fmt.Errorf("dispersion calculation failed: %w", err)
	}
	if len(res.Forces) != len(b.forces) {
		return nil, fmt.Errorf("provider returned forces for %d atoms, structure has %d", len(res.Forces), len(b.forces))
	}

	forces := make([][3]float64, len(b.forces))
	for i := range forces {
		for k := 0; k < 3; k++ {
			forces[i][k] = b.forces[i][k] + res.Forces[i][k]
		}
	}

	// The provider stress is negated and scaled by the cell volume.
	var stress [9]float64
	for i := range stress {
		stress[i] = b.stress[i] + (-res.Stress[i] * res.Volume)
	}

	s.SetScalar(fields.CorrectedEnergy, b.energy+res.Energy)
	s.SetVectors(fields.CorrectedForces, forces)
	s.SetTensor(fields.CorrectedStress, stress)
	return s, nil
}
