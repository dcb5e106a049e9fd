// Package cleanse drops wavelength columns that too many spectra leave
// undefined.
//
// A batch is the set of interpolated vectors produced by the resampler. A
// column is retained when the number of rows holding a non-finite value in it
// is at most discard_fraction times the row count; retained values are copied
// unchanged and the grid shrinks to match.
package cleanse

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"specgrid/internal/fileutil"
	"specgrid/internal/layout"
	"specgrid/internal/spectrum"
)

const (
	SpectraFile = "spectra.npy"
	WaveFile    = "wave.npy"
)

// Batch holds flux vectors sharing one grid.
type Batch struct {
	Grid []float64
	// Rows holds flux only; Meta holds the matching metadata tail.
	Rows  [][]float64
	Meta  [][]float64
	Names []string
}

// Report summarizes one Filter call.
type Report struct {
	Rows            int
	ColumnsBefore   int
	ColumnsAfter    int
	UndefinedBefore int
	UndefinedAfter  int
}

// Skipped records a vector LoadBatch could not use.
type Skipped struct {
	Name   string
	Reason string
}

// LoadBatch reads every interpolated vector in dir in file name order.
// Vectors whose length does not match grid are skipped and reported.
func LoadBatch(dir string, grid spectrum.Grid) (Batch, []Skipped, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Batch{}, nil, fmt.Errorf("read batch directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && layout.IsInterpolated(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	batch := Batch{Grid: append([]float64(nil), grid...)}
	var skipped []Skipped
	want := len(grid) + spectrum.MetadataWidth
	for _, name := range names {
		vec, err := spectrum.LoadVector(filepath.Join(dir, name))
		if err != nil {
			skipped = append(skipped, Skipped{Name: name, Reason: err.Error()})
			continue
		}
		if len(vec) != want {
			skipped = append(skipped, Skipped{Name: name, Reason: fmt.Sprintf("length %d, expected %d", len(vec), want)})
			continue
		}
		flux, meta, _ := spectrum.SplitMetadata(vec)
		batch.Rows = append(batch.Rows, flux)
		batch.Meta = append(batch.Meta, meta)
		batch.Names = append(batch.Names, name)
	}
	return batch, skipped, nil
}

func undefined(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// maxUndefined is the largest undefined count a column may hold and still be
// kept. The slack absorbs products such as 0.29*100 that round just below
// the exact integer.
func maxUndefined(discardFraction float64, rows int) int {
	return int(math.Floor(discardFraction*float64(rows) + 1e-9))
}

// Filter returns a copy of batch without the columns whose undefined share
// exceeds discardFraction.
func Filter(batch Batch, discardFraction float64) (Batch, Report, error) {
	if discardFraction < 0 || discardFraction > 1 || math.IsNaN(discardFraction) {
		return Batch{}, Report{}, fmt.Errorf("discard fraction %g outside [0, 1]", discardFraction)
	}
	cols := len(batch.Grid)
	for i, row := range batch.Rows {
		if len(row) != cols {
			return Batch{}, Report{}, fmt.Errorf("row %d has %d columns, grid has %d", i, len(row), cols)
		}
	}

	counts := make([]int, cols)
	report := Report{Rows: len(batch.Rows), ColumnsBefore: cols}
	for _, row := range batch.Rows {
		for k, v := range row {
			if undefined(v) {
				counts[k]++
				report.UndefinedBefore++
			}
		}
	}

	limit := maxUndefined(discardFraction, len(batch.Rows))
	keep := make([]int, 0, cols)
	for k, n := range counts {
		if n <= limit {
			keep = append(keep, k)
		}
	}

	out := Batch{
		Grid:  make([]float64, len(keep)),
		Rows:  make([][]float64, len(batch.Rows)),
		Meta:  make([][]float64, len(batch.Meta)),
		Names: append([]string(nil), batch.Names...),
	}
	for j, k := range keep {
		out.Grid[j] = batch.Grid[k]
	}
	for i, row := range batch.Rows {
		kept := make([]float64, len(keep))
		for j, k := range keep {
			kept[j] = row[k]
			if undefined(row[k]) {
				report.UndefinedAfter++
			}
		}
		out.Rows[i] = kept
	}
	for i, meta := range batch.Meta {
		out.Meta[i] = append([]float64(nil), meta...)
	}
	report.ColumnsAfter = len(keep)
	return out, report, nil
}

// Matrix assembles the batch into a rows x (columns+metadata) matrix.
func (b Batch) Matrix() (*mat.Dense, error) {
	if len(b.Rows) == 0 {
		return nil, fmt.Errorf("batch is empty")
	}
	width := len(b.Grid)
	if len(b.Meta) == len(b.Rows) {
		width += spectrum.MetadataWidth
	}
	if width == 0 {
		return nil, fmt.Errorf("batch has no columns")
	}
	m := mat.NewDense(len(b.Rows), width, nil)
	for i, row := range b.Rows {
		vec := row
		if len(b.Meta) == len(b.Rows) {
			vec = append(append(make([]float64, 0, width), row...), b.Meta[i]...)
		}
		if len(vec) != width {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(vec), width)
		}
		m.SetRow(i, vec)
	}
	return m, nil
}

// Save writes spectra.npy and wave.npy into dir.
func Save(dir string, b Batch) error {
	m, err := b.Matrix()
	if err != nil {
		return fmt.Errorf("save batch: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save batch: %w", err)
	}
	if err := fileutil.WriteAtomic(filepath.Join(dir, SpectraFile), func(w io.Writer) error {
		return npyio.Write(w, m)
	}); err != nil {
		return fmt.Errorf("save %s: %w", SpectraFile, err)
	}
	if err := spectrum.SaveVector(filepath.Join(dir, WaveFile), b.Grid); err != nil {
		return fmt.Errorf("save %s: %w", WaveFile, err)
	}
	return nil
}

// Clear removes the files Save writes to dir, reporting whether any existed.
func Clear(dir string) (bool, error) {
	removed := false
	for _, name := range []string{SpectraFile, WaveFile} {
		err := os.Remove(filepath.Join(dir, name))
		switch {
		case err == nil:
			removed = true
		case errors.Is(err, fs.ErrNotExist):
		default:
			return removed, fmt.Errorf("clear %s: %w", name, err)
		}
	}
	return removed, nil
}

// LoadMatrix reads a saved spectra.npy.
func LoadMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var m mat.Dense
	if err := npyio.Read(f, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &m, nil
}
