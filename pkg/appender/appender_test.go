package appender

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/dftd-labeler/pkg/extxyz"
	"github.com/psantana5/dftd-labeler/pkg/models"
)

func labelled(energy float64) *models.Structure {
	s := models.NewStructure()
	s.Species = []string{"H", "H"}
	s.Positions = [][3]float64{{0, 0, 0}, {0, 0, 0.74}}
	s.SetScalar("energy_SCAN", energy)
	s.SetVectors("forces_SCAN", [][3]float64{{0, 0, 1}, {0, 0, -1}})
	s.SetVectors("forces_SCAN_d4", [][3]float64{{0, 0, 1.5}, {0, 0, -1.5}})
	s.SetScalar("energy_SCAN_d4", energy-0.01)
	return s
}

func TestColumns(t *testing.T) {
	tests := []struct {
		scheme models.Scheme
		want   []string
	}{
		{models.SchemeD3, []string{"symbols", "numbers", "positions", "forces_SCAN", "forces_SCAN_d3"}},
		{models.SchemeD4, []string{"symbols", "numbers", "positions", "forces_SCAN", "forces_SCAN_d4"}},
	}
	for _, tt := range tests {
		t.Run(tt.scheme.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Columns("SCAN", tt.scheme))
		})
	}
}

func TestAppendGrowsByOneFramePerCall(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.extxyz")
	a := New(out, "SCAN", models.SchemeD4)
	assert.Equal(t, out, a.Path())

	require.NoError(t, a.Append(labelled(-1.0)))
	require.NoError(t, a.Append(labelled(-2.0)))

	frames, err := extxyz.ReadFile(out)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	e0, err := frames[0].Scalar("energy_SCAN")
	require.NoError(t, err)
	assert.Equal(t, -1.0, e0)
	e1, err := frames[1].Scalar("energy_SCAN")
	require.NoError(t, err)
	assert.Equal(t, -2.0, e1)

	f, err := frames[1].Vectors("forces_SCAN_d4")
	require.NoError(t, err)
	assert.Equal(t, 1.5, f[0][2])
	_, ok := frames[1].Arrays["Z"]
	assert.False(t, ok, "Z is derived from species on read")
}

func TestAppendKeepsExistingContent(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.extxyz")
	existing := "1\nProperties=species:S:1:pos:R:3\nHe 0 0 0\n"
	require.NoError(t, os.WriteFile(out, []byte(existing), 0644))

	require.NoError(t, New(out, "SCAN", models.SchemeD4).Append(labelled(-1.0)))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, existing, string(data[:len(existing)]))

	frames, err := extxyz.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, frames, 2)
}

func TestAppendMissingColumnWritesNothing(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.extxyz")
	s := labelled(-1.0)
	delete(s.Arrays, "forces_SCAN_d4")

	err := New(out, "SCAN", models.SchemeD4).Append(s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrMissingField))

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestAppendUnwritablePath(t *testing.T) {
	out := filepath.Join(t.TempDir(), "missing-dir", "out.extxyz")
	err := New(out, "SCAN", models.SchemeD4).Append(labelled(-1.0))
	assert.Error(t, err)
}
