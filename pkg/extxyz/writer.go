package extxyz

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/psantana5/dftd-labeler/pkg/models"
)

// Column aliases accepted by WriteFrame
const (
	ColumnSymbols   = "symbols"
	ColumnNumbers   = "numbers"
	ColumnPositions = "positions"
)

// MarshalFrame renders one structure as a single extxyz frame.
// columns selects the per-atom columns; symbols and positions are always
// written first. Every info entry is written in sorted key order.
func MarshalFrame(s *models.Structure, columns []string) ([]byte, error) {
	natoms := s.NumAtoms()
	if len(s.Positions) != natoms {
		return nil, fmt.Errorf("structure has %d species but %d positions", natoms, len(s.Positions))
	}

	var numbers []int
	var props []property
	var extra []*models.Array
	props = append(props,
		property{Name: "species", Type: models.ColumnString, Width: 1},
		property{Name: "pos", Type: models.ColumnReal, Width: 3},
	)
	for _, c := range columns {
		switch c {
		case ColumnSymbols, "species", ColumnPositions, "pos":
			continue
		case ColumnNumbers, "Z":
			z, err := s.Numbers()
			if err != nil {
				return nil, err
			}
			numbers = z
			props = append(props, property{Name: "Z", Type: models.ColumnInt, Width: 1})
		default:
			a, ok := s.Arrays[c]
			if !ok {
				return nil, fmt.Errorf("%w: column %s", models.ErrMissingField, c)
			}
			if a.Width < 1 || a.Rows() != natoms {
				return nil, fmt.Errorf("%w: column %s does not match %d atoms", models.ErrFieldShape, c, natoms)
			}
			props = append(props, property{Name: c, Type: a.Type, Width: a.Width})
			extra = append(extra, a)
		}
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d\n", natoms)
	buf.WriteString(commentLine(s, props))
	buf.WriteByte('\n')

	for i := 0; i < natoms; i++ {
		fmt.Fprintf(&buf, "%-2s", s.Species[i])
		p := s.Positions[i]
		fmt.Fprintf(&buf, " %16.8f %16.8f %16.8f", p[0], p[1], p[2])
		if numbers != nil {
			fmt.Fprintf(&buf, " %4d", numbers[i])
		}
		for _, a := range extra {
			writeRow(&buf, a, i)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// WriteFrame writes one frame to w in a single Write call
func WriteFrame(w io.Writer, s *models.Structure, columns []string) error {
	data, err := MarshalFrame(s, columns)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func commentLine(s *models.Structure, props []property) string {
	var parts []string
	if s.Cell != nil {
		var cell []string
		for _, row := range s.Cell {
			for _, v := range row {
				cell = append(cell, formatReal(v))
			}
		}
		parts = append(parts, `Lattice="`+strings.Join(cell, " ")+`"`)
	}

	spec := make([]string, 0, 3*len(props))
	for _, p := range props {
		spec = append(spec, p.Name, string(rune(p.Type)), strconv.Itoa(p.Width))
	}
	parts = append(parts, "Properties="+strings.Join(spec, ":"))

	keys := make([]string, 0, len(s.Info))
	for k := range s.Info {
		switch strings.ToLower(k) {
		case "lattice", "properties", "pbc":
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+formatValue(s.Info[k]))
	}

	parts = append(parts, fmt.Sprintf(`pbc="%s %s %s"`, flag(s.PBC[0]), flag(s.PBC[1]), flag(s.PBC[2])))
	return strings.Join(parts, " ")
}

func writeRow(buf *bytes.Buffer, a *models.Array, atom int) {
	for k := 0; k < a.Width; k++ {
		idx := atom*a.Width + k
		switch a.Type {
		case models.ColumnReal:
			fmt.Fprintf(buf, " %16.8f", a.Reals[idx])
		case models.ColumnInt:
			fmt.Fprintf(buf, " %d", int64(a.Reals[idx]))
		default:
			fmt.Fprintf(buf, " %s", a.Text[idx])
		}
	}
}

func flag(b bool) string {
	if b {
		return "T"
	}
	return "F"
}
