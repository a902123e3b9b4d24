package dispersion

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/psantana5/dftd-labeler/pkg/models"
)

// writePOSCAR writes a periodic structure in VASP 5 format with Cartesian
// coordinates. Consecutive atoms of the same species form one group, so atom
// order is preserved even when species repeat.
func writePOSCAR(w io.Writer, s *models.Structure) error {
	if s.Cell == nil {
		return fmt.Errorf("POSCAR requires a cell")
	}
	bw := bufio.NewWriter(w)

	var names []string
	var counts []int
	for i, sym := range s.Species {
		if i > 0 && sym == s.Species[i-1] {
			counts[len(counts)-1]++
			continue
		}
		names = append(names, sym)
		counts = append(counts, 1)
	}

	fmt.Fprintln(bw, strings.Join(names, " "))
	fmt.Fprintln(bw, "1.0")
	for _, row := range s.Cell {
		fmt.Fprintf(bw, "%22.14f %22.14f %22.14f\n", row[0], row[1], row[2])
	}
	fmt.Fprintln(bw, strings.Join(names, " "))
	for i, c := range counts {
		if i > 0 {
			bw.WriteByte(' ')
		}
		fmt.Fprintf(bw, "%d", c)
	}
	bw.WriteByte('\n')
	fmt.Fprintln(bw, "Cartesian")
	for _, p := range s.Positions {
		fmt.Fprintf(bw, "%22.14f %22.14f %22.14f\n", p[0], p[1], p[2])
	}
	return bw.Flush()
}

// writeXYZ writes a molecular structure as plain XYZ in Angstrom
func writeXYZ(w io.Writer, s *models.Structure) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n\n", s.NumAtoms())
	for i, p := range s.Positions {
		fmt.Fprintf(bw, "%-3s %22.14f %22.14f %22.14f\n", s.Species[i], p[0], p[1], p[2])
	}
	return bw.Flush()
}
