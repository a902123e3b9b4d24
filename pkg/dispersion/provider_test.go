package dispersion

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/dftd-labeler/pkg/models"
)

func water(periodic bool) *models.Structure {
	s := models.NewStructure()
	s.Species = []string{"H", "O", "H"}
	s.Positions = [][3]float64{{0.76, 0.59, 0}, {0, 0, 0}, {-0.76, 0.59, 0}}
	if periodic {
		s.Cell = &[3][3]float64{{10, 0, 0}, {0, 10, 0}, {0, 0, 10}}
		s.PBC = [3]bool{true, true, true}
	}
	return s
}

func TestNewDispatch(t *testing.T) {
	tests := []struct {
		name    string
		scheme  models.Scheme
		opts    Options
		wantBin string
		wantArg string
		wantErr bool
	}{
		{"d3 default binary", models.SchemeD3, Options{Method: "SCAN"}, "s-dftd3", "--bj", false},
		{"d4 default binary", models.SchemeD4, Options{Method: "SCAN"}, "dftd4", "--func", false},
		{"d4 custom binary", models.SchemeD4, Options{Method: "PBE", D4Binary: "/opt/dftd4"}, "/opt/dftd4", "--func", false},
		{"unknown scheme", models.Scheme(5), Options{Method: "SCAN"}, "", "", true},
		{"missing method", models.SchemeD3, Options{}, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.scheme, tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, models.ErrConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.scheme, p.Scheme())

			argv := p.(*ExecProvider).Command("POSCAR")
			assert.Equal(t, tt.wantBin, argv[0])
			assert.Contains(t, argv, tt.wantArg)
			assert.Contains(t, argv, tt.opts.Method)
			assert.Equal(t, "POSCAR", argv[len(argv)-1])
		})
	}
}

func TestWritePOSCARKeepsAtomOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePOSCAR(&buf, water(true)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 11)
	assert.Equal(t, "H O H", lines[5])
	assert.Equal(t, "1 1 1", lines[6])
	assert.Equal(t, "Cartesian", lines[7])
	assert.Contains(t, lines[9], "0.00000000000000")

	assert.Error(t, writePOSCAR(&buf, water(false)))
}

func TestWritePOSCARGroupsRuns(t *testing.T) {
	s := water(true)
	s.Species = []string{"O", "H", "H"}
	var buf bytes.Buffer
	require.NoError(t, writePOSCAR(&buf, s))
	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, "O H", lines[5])
	assert.Equal(t, "1 2", lines[6])
}

func TestWriteXYZ(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeXYZ(&buf, water(false)))
	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, "3", lines[0])
	assert.Equal(t, "", lines[1])
	assert.True(t, strings.HasPrefix(lines[3], "O "))
}

func TestParseOutputUnits(t *testing.T) {
	doc := []byte(`{
		"energy": -0.002,
		"gradient": [0.001, 0, 0, 0, 0, 0, -0.001, 0, 0],
		"virial": [0.01, 0, 0, 0, 0.02, 0, 0, 0, 0.03]
	}`)

	res, err := parseOutput(doc, water(true))
	require.NoError(t, err)
	assert.InDelta(t, -0.002*Hartree, res.Energy, 1e-12)
	assert.InDelta(t, -0.001*Hartree/Bohr, res.Forces[0][0], 1e-12)
	assert.InDelta(t, 0.001*Hartree/Bohr, res.Forces[2][0], 1e-12)
	assert.InDelta(t, 1000.0, res.Volume, 1e-9)
	assert.InDelta(t, 0.02*Hartree/1000, res.Stress[4], 1e-12)

	mol, err := parseOutput(doc, water(false))
	require.NoError(t, err)
	assert.Zero(t, mol.Volume)
	assert.Equal(t, [9]float64{}, mol.Stress)
}

func TestParseOutputErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", "energy=1"},
		{"no energy", `{"gradient": [0,0,0,0,0,0,0,0,0]}`},
		{"short gradient", `{"energy": 0, "gradient": [0,0,0]}`},
		{"short virial", `{"energy": 0, "gradient": [0,0,0,0,0,0,0,0,0], "virial": [1]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseOutput([]byte(tt.doc), water(true))
			assert.Error(t, err)
		})
	}
}

func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script providers need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-dftd4")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return path
}

func TestExecProviderCalculate(t *testing.T) {
	bin := fakeBinary(t, `echo "$@" > "$ARGS_OUT"
test -f POSCAR || exit 3
cat > result.json <<'EOF'
{"energy": -0.001, "gradient": [0,0,0.002, 0,0,0, 0,0,-0.002], "virial": [0,0,0,0,0,0,0,0,0.004]}
EOF
`)
	argsOut := filepath.Join(t.TempDir(), "args.txt")
	p, err := New(models.SchemeD4, Options{
		Method:   "SCAN",
		D4Binary: bin,
		WorkDir:  t.TempDir(),
		Env:      []string{"ARGS_OUT=" + argsOut},
	})
	require.NoError(t, err)

	s := water(true)
	before := s.Clone()
	res, err := p.Calculate(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, before, s, "input structure is not modified")

	assert.InDelta(t, -0.001*Hartree, res.Energy, 1e-12)
	assert.InDelta(t, -0.002*Hartree/Bohr, res.Forces[0][2], 1e-12)
	assert.InDelta(t, 0.004*Hartree/1000, res.Stress[8], 1e-12)

	args, err := os.ReadFile(argsOut)
	require.NoError(t, err)
	assert.Equal(t, "run --func SCAN --grad --json result.json POSCAR", strings.TrimSpace(string(args)))
}

func TestExecProviderFailure(t *testing.T) {
	bin := fakeBinary(t, "echo 'unknown functional' >&2\nexit 1\n")
	p, err := New(models.SchemeD4, Options{Method: "NOPE", D4Binary: bin, WorkDir: t.TempDir()})
	require.NoError(t, err)

	_, err = p.Calculate(context.Background(), water(false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with code 1")
	assert.Contains(t, err.Error(), "unknown functional")
}

func TestExecProviderTimeout(t *testing.T) {
	bin := fakeBinary(t, "exec sleep 5\n")
	p, err := New(models.SchemeD4, Options{Method: "SCAN", D4Binary: bin, WorkDir: t.TempDir(), Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = p.Calculate(context.Background(), water(false))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestExecProviderMissingBinary(t *testing.T) {
	p, err := New(models.SchemeD3, Options{Method: "SCAN", D3Binary: filepath.Join(t.TempDir(), "absent"), WorkDir: t.TempDir()})
	require.NoError(t, err)
	_, err = p.Calculate(context.Background(), water(false))
	assert.Error(t, err)
}
