package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Scheme identifies a dispersion-correction model family
type Scheme int

const (
	SchemeD3 Scheme = 3 // Grimme D3, rational (Becke-Johnson) damping
	SchemeD4 Scheme = 4 // Grimme D4
)

// Schemes lists every supported scheme in CLI order
var Schemes = []Scheme{SchemeD3, SchemeD4}

// ParseScheme accepts "3", "4", "d3" or "D4"
func ParseScheme(s string) (Scheme, error) {
	v := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "d")
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid dispersion scheme %q (choose from 3, 4)", ErrConfig, s)
	}
	scheme := Scheme(n)
	if !scheme.Valid() {
		return 0, fmt.Errorf("%w: invalid dispersion scheme %d (choose from 3, 4)", ErrConfig, n)
	}
	return scheme, nil
}

// Valid reports whether the scheme belongs to the supported set
func (s Scheme) Valid() bool {
	return s == SchemeD3 || s == SchemeD4
}

// Suffix returns the field-name suffix for corrected quantities, e.g. "_d4"
func (s Scheme) Suffix() string {
	return fmt.Sprintf("_d%d", int(s))
}

func (s Scheme) String() string {
	return fmt.Sprintf("D%d", int(s))
}

// Damping returns the damping function fixed for the scheme.
// D3 always uses rational damping; D4 has a single damping form.
func (s Scheme) Damping() string {
	switch s {
	case SchemeD3:
		return "d3bj"
	case SchemeD4:
		return "d4"
	default:
		return ""
	}
}

// FieldNames holds the base and corrected field names for one method/scheme pair
type FieldNames struct {
	Energy          string
	Forces          string
	Stress          string
	CorrectedEnergy string
	CorrectedForces string
	CorrectedStress string
}

// Fields derives field names such as energy_SCAN and energy_SCAN_d4
func Fields(method string, scheme Scheme) FieldNames {
	suffix := scheme.Suffix()
	f := FieldNames{
		Energy: "energy_" + method,
		Forces: "forces_" + method,
		Stress: "stress_" + method,
	}
	f.CorrectedEnergy = f.Energy + suffix
	f.CorrectedForces = f.Forces + suffix
	f.CorrectedStress = f.Stress + suffix
	return f
}
