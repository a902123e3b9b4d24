// Package extxyz reads and writes the extended XYZ format: an XYZ file whose
// comment lines carry key=value metadata (Lattice, Properties, energies,
// stresses) and whose atom lines carry the columns named by Properties.
package extxyz

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/psantana5/dftd-labeler/pkg/models"
)

const defaultProperties = "species:S:1:pos:R:3"

// property is one entry of the Properties key
type property struct {
	Name  string
	Type  models.ColumnType
	Width int
}

// ReadFile reads every frame of an extxyz file in order.
// Errors wrap models.ErrInputRead.
func ReadFile(path string) ([]*models.Structure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInputRead, err)
	}
	defer f.Close()

	frames, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return frames, nil
}

// Read parses every frame from r
func Read(r io.Reader) ([]*models.Structure, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var frames []*models.Structure
	lineNo := 0
	next := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		lineNo++
		return strings.TrimRight(sc.Text(), "\r"), true
	}

	for {
		header, ok := next()
		if !ok {
			break
		}
		if strings.TrimSpace(header) == "" {
			continue
		}

		natoms, err := strconv.Atoi(strings.TrimSpace(header))
		if err != nil || natoms < 0 {
			return nil, fmt.Errorf("%w: line %d: expected atom count, got %q", models.ErrInputRead, lineNo, header)
		}

		comment, ok := next()
		if !ok {
			return nil, fmt.Errorf("%w: frame %d: missing comment line", models.ErrInputRead, len(frames))
		}
		s, props, err := parseComment(comment)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", models.ErrInputRead, lineNo, err)
		}

		atomLines := make([]string, 0, natoms)
		for i := 0; i < natoms; i++ {
			line, ok := next()
			if !ok {
				return nil, fmt.Errorf("%w: frame %d: expected %d atoms, file ended after %d", models.ErrInputRead, len(frames), natoms, i)
			}
			atomLines = append(atomLines, line)
		}
		if err := parseAtoms(s, props, atomLines); err != nil {
			return nil, fmt.Errorf("%w: frame %d: %v", models.ErrInputRead, len(frames), err)
		}
		frames = append(frames, s)
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInputRead, err)
	}
	return frames, nil
}

func parseComment(line string) (*models.Structure, []property, error) {
	pairs, err := splitKeyValues(line)
	if err != nil {
		return nil, nil, err
	}

	s := models.NewStructure()
	propSpec := defaultProperties
	pbcSet := false

	for _, p := range pairs {
		switch strings.ToLower(p.Key) {
		case "lattice":
			reals, ok := parseReals(strings.Fields(strings.Trim(p.Value, "[]{}")))
			if !ok || len(reals) != 9 {
				return nil, nil, fmt.Errorf("Lattice must hold 9 numbers, got %q", p.Value)
			}
			var cell [3][3]float64
			for i := 0; i < 3; i++ {
				cell[i] = [3]float64{reals[3*i], reals[3*i+1], reals[3*i+2]}
			}
			s.Cell = &cell
		case "properties":
			propSpec = p.Value
		case "pbc":
			fields := strings.Fields(p.Value)
			if len(fields) != 3 {
				return nil, nil, fmt.Errorf("pbc must hold 3 flags, got %q", p.Value)
			}
			for i, f := range fields {
				b, ok := parseBool(f)
				if !ok {
					return nil, nil, fmt.Errorf("invalid pbc flag %q", f)
				}
				s.PBC[i] = b
			}
			pbcSet = true
		default:
			s.Info[p.Key] = parseValue(p.Value, p.Bare)
		}
	}

	if s.Cell != nil && !pbcSet {
		s.PBC = [3]bool{true, true, true}
	}

	props, err := parseProperties(propSpec)
	if err != nil {
		return nil, nil, err
	}
	return s, props, nil
}

func parseProperties(spec string) ([]property, error) {
	parts := strings.Split(spec, ":")
	if len(parts)%3 != 0 {
		return nil, fmt.Errorf("Properties must be name:type:count triples, got %q", spec)
	}
	props := make([]property, 0, len(parts)/3)
	hasSpecies, hasPos := false, false
	for i := 0; i < len(parts); i += 3 {
		width, err := strconv.Atoi(parts[i+2])
		if err != nil || width < 1 {
			return nil, fmt.Errorf("invalid column count %q for %s", parts[i+2], parts[i])
		}
		if len(parts[i+1]) != 1 || !strings.Contains("RISL", parts[i+1]) {
			return nil, fmt.Errorf("invalid column type %q for %s", parts[i+1], parts[i])
		}
		p := property{Name: parts[i], Type: models.ColumnType(parts[i+1][0]), Width: width}
		switch p.Name {
		case "species":
			hasSpecies = p.Type == models.ColumnString && p.Width == 1
		case "pos":
			hasPos = p.Type == models.ColumnReal && p.Width == 3
		}
		props = append(props, p)
	}
	if !hasSpecies || !hasPos {
		return nil, fmt.Errorf("Properties must declare species:S:1 and pos:R:3, got %q", spec)
	}
	return props, nil
}

func parseAtoms(s *models.Structure, props []property, lines []string) error {
	natoms := len(lines)
	s.Species = make([]string, natoms)
	s.Positions = make([][3]float64, natoms)

	for _, p := range props {
		if p.Name == "species" || p.Name == "pos" || p.Name == "Z" {
			continue
		}
		a := &models.Array{Type: p.Type, Width: p.Width}
		switch p.Type {
		case models.ColumnReal, models.ColumnInt:
			a.Reals = make([]float64, 0, natoms*p.Width)
		default:
			a.Text = make([]string, 0, natoms*p.Width)
		}
		s.Arrays[p.Name] = a
	}

	width := 0
	for _, p := range props {
		width += p.Width
	}

	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) != width {
			return fmt.Errorf("atom %d: expected %d columns, got %d", i, width, len(fields))
		}
		col := 0
		for _, p := range props {
			vals := fields[col : col+p.Width]
			col += p.Width
			switch p.Name {
			case "species":
				s.Species[i] = vals[0]
				continue
			case "pos":
				for k := 0; k < 3; k++ {
					v, err := strconv.ParseFloat(vals[k], 64)
					if err != nil {
						return fmt.Errorf("atom %d: invalid position %q", i, vals[k])
					}
					s.Positions[i][k] = v
				}
				continue
			case "Z":
				continue
			}

			a := s.Arrays[p.Name]
			for _, v := range vals {
				switch p.Type {
				case models.ColumnReal, models.ColumnInt:
					f, err := strconv.ParseFloat(v, 64)
					if err != nil {
						return fmt.Errorf("atom %d: invalid value %q in column %s", i, v, p.Name)
					}
					a.Reals = append(a.Reals, f)
				case models.ColumnLogical:
					b, ok := parseBool(v)
					if !ok {
						return fmt.Errorf("atom %d: invalid logical %q in column %s", i, v, p.Name)
					}
					if b {
						a.Text = append(a.Text, "T")
					} else {
						a.Text = append(a.Text, "F")
					}
				default:
					a.Text = append(a.Text, v)
				}
			}
		}
	}
	return nil
}
