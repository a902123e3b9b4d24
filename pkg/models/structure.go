package models

import (
	"fmt"
	"math"
)

// ValueKind tags the type held by a Value
type ValueKind int

const (
	KindReal ValueKind = iota
	KindInt
	KindBool
	KindString
	KindRealArray
)

// Value is one per-structure metadata entry (energy, stress, free-form labels)
type Value struct {
	Kind  ValueKind
	Real  float64
	Int   int64
	Bool  bool
	Str   string
	Reals []float64
}

func RealValue(v float64) Value  { return Value{Kind: KindReal, Real: v} }
func IntValue(v int64) Value     { return Value{Kind: KindInt, Int: v} }
func BoolValue(v bool) Value     { return Value{Kind: KindBool, Bool: v} }
func StringValue(v string) Value { return Value{Kind: KindString, Str: v} }
func RealArrayValue(v []float64) Value {
	return Value{Kind: KindRealArray, Reals: append([]float64(nil), v...)}
}

// ColumnType is the extxyz per-atom property type code
type ColumnType byte

const (
	ColumnReal    ColumnType = 'R'
	ColumnInt     ColumnType = 'I'
	ColumnString  ColumnType = 'S'
	ColumnLogical ColumnType = 'L'
)

// Array is a per-atom column with Width entries per atom, stored row-major.
// Numeric columns (R, I) use Reals; S and L columns use Text.
type Array struct {
	Type  ColumnType
	Width int
	Reals []float64
	Text  []string
}

// Structure is one atomic configuration.
// Species and Positions are always present; Info and Arrays carry the
// method- and scheme-suffixed fields such as energy_SCAN or forces_SCAN_d4.
type Structure struct {
	Species   []string
	Positions [][3]float64
	Cell      *[3][3]float64
	PBC       [3]bool
	Info      map[string]Value
	Arrays    map[string]*Array
}

// NewStructure creates an empty structure with initialized field maps
func NewStructure() *Structure {
	return &Structure{
		Info:   make(map[string]Value),
		Arrays: make(map[string]*Array),
	}
}

// NumAtoms returns the number of atoms
func (s *Structure) NumAtoms() int {
	return len(s.Species)
}

// Clone returns a deep copy
func (s *Structure) Clone() *Structure {
	c := &Structure{
		Species:   append([]string(nil), s.Species...),
		Positions: append([][3]float64(nil), s.Positions...),
		PBC:       s.PBC,
		Info:      make(map[string]Value, len(s.Info)),
		Arrays:    make(map[string]*Array, len(s.Arrays)),
	}
	if s.Cell != nil {
		cell := *s.Cell
		c.Cell = &cell
	}
	for k, v := range s.Info {
		if v.Reals != nil {
			v.Reals = append([]float64(nil), v.Reals...)
		}
		c.Info[k] = v
	}
	for k, a := range s.Arrays {
		c.Arrays[k] = &Array{
			Type:  a.Type,
			Width: a.Width,
			Reals: append([]float64(nil), a.Reals...),
			Text:  append([]string(nil), a.Text...),
		}
	}
	return c
}

// Scalar returns a real or integer info entry
func (s *Structure) Scalar(name string) (float64, error) {
	v, ok := s.Info[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	switch v.Kind {
	case KindReal:
		return v.Real, nil
	case KindInt:
		return float64(v.Int), nil
	default:
		return 0, fmt.Errorf("%w: %s is not a scalar", ErrFieldShape, name)
	}
}

// Vectors returns a per-atom 3-vector column such as forces
func (s *Structure) Vectors(name string) ([][3]float64, error) {
	a, ok := s.Arrays[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	n := s.NumAtoms()
	if (a.Type != ColumnReal && a.Type != ColumnInt) || a.Width != 3 || len(a.Reals) != 3*n {
		return nil, fmt.Errorf("%w: %s must be a real column of width 3 for %d atoms", ErrFieldShape, name, n)
	}
	out := make([][3]float64, n)
	for i := range out {
		out[i] = [3]float64{a.Reals[3*i], a.Reals[3*i+1], a.Reals[3*i+2]}
	}
	return out, nil
}

// Tensor returns a 3x3 info entry flattened row-major.
// A 6-component Voigt entry (xx yy zz yz xz xy) is expanded.
func (s *Structure) Tensor(name string) ([9]float64, error) {
	var t [9]float64
	v, ok := s.Info[name]
	if !ok {
		return t, fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	if v.Kind != KindRealArray {
		return t, fmt.Errorf("%w: %s is not an array", ErrFieldShape, name)
	}
	switch len(v.Reals) {
	case 9:
		copy(t[:], v.Reals)
	case 6:
		xx, yy, zz, yz, xz, xy := v.Reals[0], v.Reals[1], v.Reals[2], v.Reals[3], v.Reals[4], v.Reals[5]
		t = [9]float64{xx, xy, xz, xy, yy, yz, xz, yz, zz}
	default:
		return t, fmt.Errorf("%w: %s has %d components, want 9 or 6", ErrFieldShape, name, len(v.Reals))
	}
	return t, nil
}

// SetScalar stores a real info entry
func (s *Structure) SetScalar(name string, v float64) {
	s.Info[name] = RealValue(v)
}

// SetVectors stores a per-atom real column of width 3
func (s *Structure) SetVectors(name string, vs [][3]float64) {
	reals := make([]float64, 0, 3*len(vs))
	for _, v := range vs {
		reals = append(reals, v[0], v[1], v[2])
	}
	s.Arrays[name] = &Array{Type: ColumnReal, Width: 3, Reals: reals}
}

// SetTensor stores a flattened 3x3 info entry
func (s *Structure) SetTensor(name string, t [9]float64) {
	s.Info[name] = RealArrayValue(t[:])
}

// Numbers derives atomic numbers from the species list
func (s *Structure) Numbers() ([]int, error) {
	out := make([]int, len(s.Species))
	for i, sym := range s.Species {
		z := AtomicNumber(sym)
		if z == 0 {
			return nil, fmt.Errorf("unknown chemical symbol %q at atom %d", sym, i)
		}
		out[i] = z
	}
	return out, nil
}

// Volume returns the cell volume, or 0 when the structure has no cell
func (s *Structure) Volume() float64 {
	if s.Cell == nil {
		return 0
	}
	c := s.Cell
	det := c[0][0]*(c[1][1]*c[2][2]-c[1][2]*c[2][1]) -
		c[0][1]*(c[1][0]*c[2][2]-c[1][2]*c[2][0]) +
		c[0][2]*(c[1][0]*c[2][1]-c[1][1]*c[2][0])
	return math.Abs(det)
}

// Periodic reports whether any direction is periodic with a non-degenerate cell
func (s *Structure) Periodic() bool {
	return s.Cell != nil && (s.PBC[0] || s.PBC[1] || s.PBC[2]) && s.Volume() > 0
}

// Rows returns the number of atoms the column covers, or -1 if its data
// does not divide evenly by Width
func (a *Array) Rows() int {
	if a.Width < 1 {
		return -1
	}
	n := len(a.Text)
	if a.Type == ColumnReal || a.Type == ColumnInt {
		n = len(a.Reals)
	}
	if n%a.Width != 0 {
		return -1
	}
	return n / a.Width
}
