package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waterDimer() *Structure {
	s := NewStructure()
	s.Species = []string{"O", "H", "H"}
	s.Positions = [][3]float64{{0, 0, 0}, {0.96, 0, 0}, {-0.24, 0.93, 0}}
	s.SetScalar("energy_SCAN", -14.2)
	s.SetVectors("forces_SCAN", [][3]float64{{0.1, 0, 0}, {-0.05, 0, 0}, {-0.05, 0, 0}})
	s.SetTensor("stress_SCAN", [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	return s
}

func TestCloneIsDeep(t *testing.T) {
	s := waterDimer()
	cell := [3][3]float64{{10, 0, 0}, {0, 10, 0}, {0, 0, 10}}
	s.Cell = &cell

	c := s.Clone()
	c.Positions[0][0] = 99
	c.Cell[0][0] = 99
	c.Arrays["forces_SCAN"].Reals[0] = 99
	c.Info["stress_SCAN"].Reals[0] = 99
	c.SetScalar("energy_SCAN", 0)

	assert.Equal(t, 0.0, s.Positions[0][0])
	assert.Equal(t, 10.0, s.Cell[0][0])
	assert.Equal(t, 0.1, s.Arrays["forces_SCAN"].Reals[0])
	assert.Equal(t, 1.0, s.Info["stress_SCAN"].Reals[0])
	e, err := s.Scalar("energy_SCAN")
	require.NoError(t, err)
	assert.Equal(t, -14.2, e)
}

func TestAccessorsMissingField(t *testing.T) {
	s := waterDimer()

	_, err := s.Scalar("energy_PBE")
	assert.True(t, errors.Is(err, ErrMissingField))
	_, err = s.Vectors("forces_PBE")
	assert.True(t, errors.Is(err, ErrMissingField))
	_, err = s.Tensor("stress_PBE")
	assert.True(t, errors.Is(err, ErrMissingField))
}

func TestAccessorsShape(t *testing.T) {
	s := waterDimer()
	s.Info["energy_SCAN"] = StringValue("oops")
	s.Arrays["forces_SCAN"].Reals = s.Arrays["forces_SCAN"].Reals[:6]
	s.Info["stress_SCAN"] = RealArrayValue([]float64{1, 2, 3})

	_, err := s.Scalar("energy_SCAN")
	assert.True(t, errors.Is(err, ErrFieldShape))
	_, err = s.Vectors("forces_SCAN")
	assert.True(t, errors.Is(err, ErrFieldShape))
	_, err = s.Tensor("stress_SCAN")
	assert.True(t, errors.Is(err, ErrFieldShape))
}

func TestTensorVoigtExpansion(t *testing.T) {
	s := NewStructure()
	s.Info["stress_SCAN"] = RealArrayValue([]float64{1, 2, 3, 4, 5, 6})

	got, err := s.Tensor("stress_SCAN")
	require.NoError(t, err)
	assert.Equal(t, [9]float64{1, 6, 5, 6, 2, 4, 5, 4, 3}, got)
}

func TestNumbers(t *testing.T) {
	s := waterDimer()
	z, err := s.Numbers()
	require.NoError(t, err)
	assert.Equal(t, []int{8, 1, 1}, z)

	s.Species[1] = "Xx"
	_, err = s.Numbers()
	assert.Error(t, err)

	assert.Equal(t, "Og", ChemicalSymbol(118))
	assert.Equal(t, "", ChemicalSymbol(0))
}

func TestVolume(t *testing.T) {
	s := waterDimer()
	assert.Equal(t, 0.0, s.Volume())
	assert.False(t, s.Periodic())

	cell := [3][3]float64{{2, 0, 0}, {1, 3, 0}, {0, 0, 4}}
	s.Cell = &cell
	s.PBC = [3]bool{true, true, true}
	assert.InDelta(t, 24.0, s.Volume(), 1e-12)
	assert.True(t, s.Periodic())
}

func TestJobValidate(t *testing.T) {
	ok := Job{InputPath: "in.xyz", OutputPath: "out.xyz", Method: "SCAN", Scheme: SchemeD4}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.Scheme = Scheme(5)
	assert.True(t, errors.Is(bad.Validate(), ErrConfig))

	bad = ok
	bad.InputPath = " "
	assert.True(t, errors.Is(bad.Validate(), ErrConfig))

	bad = ok
	bad.Method = ""
	assert.True(t, errors.Is(bad.Validate(), ErrConfig))
}
