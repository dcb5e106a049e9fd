package spectrum

import (
	"fmt"
	"math"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/floats"
)

// Grid is the master wavelength grid. It is shared by every worker and must
// not be modified after construction.
type Grid []float64

// LinearGrid returns evenly spaced points from start to stop inclusive.
func LinearGrid(start, stop, step float64) (Grid, error) {
	if step <= 0 || math.IsNaN(step) {
		return nil, fmt.Errorf("grid step must be positive, got %g", step)
	}
	if !(stop > start) {
		return nil, fmt.Errorf("grid stop %g must exceed start %g", stop, start)
	}
	n := int(math.Floor((stop-start)/step+1e-9)) + 1
	last := start + float64(n-1)*step
	return Grid(floats.Span(make([]float64, n), start, last)), nil
}

// LoadGrid reads a 1-D float64 .npy grid.
func LoadGrid(path string) (Grid, error) {
	values, err := LoadVector(path)
	if err != nil {
		return nil, fmt.Errorf("load grid: %w", err)
	}
	g := Grid(values)
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("load grid %s: %w", path, err)
	}
	return g, nil
}

// Validate reports whether the grid is usable for interpolation.
func (g Grid) Validate() error {
	if len(g) == 0 {
		return fmt.Errorf("grid is empty")
	}
	return checkIncreasing(g)
}

// Save writes the grid as a .npy vector.
func (g Grid) Save(path string) error {
	return SaveVector(path, g)
}

func (g Grid) Len() int { return len(g) }

// openNPY opens an .npy file for npyio.Read.
func openNPY(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := npyio.Read(f, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
