// Package catalog reads the galaxy catalog CSV and applies the selection that
// decides which spectra the pipeline handles.
package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Key identifies one spectrum in the archive.
type Key struct {
	Plate   int
	MJD     int
	FiberID int
	Run2D   string
}

// Name is the artifact stem shared by every path derived from the key.
func (k Key) Name() string {
	return fmt.Sprintf("spec-%04d-%d-%04d", k.Plate, k.MJD, k.FiberID)
}

func (k Key) String() string {
	return k.Name() + "@" + k.Run2D
}

// Row is one catalog entry.
type Row struct {
	Plate   int
	MJD     int
	FiberID int
	Run2D   string
	Z       float64
	ZNoQSO  float64
	SNR     float64
}

func (r Row) Key() Key {
	return Key{Plate: r.Plate, MJD: r.MJD, FiberID: r.FiberID, Run2D: r.Run2D}
}

func (r Row) Name() string { return r.Key().Name() }

// Redshift prefers the galaxy-template redshift when the catalog provides one.
func (r Row) Redshift() float64 {
	if r.ZNoQSO != 0 {
		return r.ZNoQSO
	}
	return r.Z
}

const (
	ColumnPlate   = "plate"
	ColumnMJD     = "mjd"
	ColumnFiberID = "fiberid"
	ColumnRun2D   = "run2d"
	ColumnZ       = "z"
	ColumnZNoQSO  = "z_noqso"
	ColumnSNR     = "snMedian"
)

// RequiredColumns must appear in the catalog header.
var RequiredColumns = []string{ColumnPlate, ColumnMJD, ColumnFiberID, ColumnRun2D, ColumnZ, ColumnSNR}

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("catalog missing required column")

// Load reads the catalog at path.
func Load(ctx context.Context, path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	rows, err := read(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// Read parses catalog CSV from r.
func Read(r io.Reader) ([]Row, error) {
	return read(context.Background(), r)
}

// ReadHeader returns the column index of the header in r, failing when a
// required column is absent.
func ReadHeader(r io.Reader) (map[string]int, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	return indexHeader(header)
}

func indexHeader(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return index, nil
}

func read(ctx context.Context, r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read header: empty catalog")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	index, err := indexHeader(header)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if blank(record) {
			continue
		}
		p := parser{record: record, index: index, line: line}
		row := Row{
			Plate:   p.intField(ColumnPlate),
			MJD:     p.intField(ColumnMJD),
			FiberID: p.intField(ColumnFiberID),
			Run2D:   p.stringField(ColumnRun2D),
			Z:       p.floatField(ColumnZ),
			ZNoQSO:  p.optionalFloatField(ColumnZNoQSO),
			SNR:     p.floatField(ColumnSNR),
		}
		if p.err != nil {
			return nil, p.err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// parser records the first conversion error for a record.
type parser struct {
	record []string
	index  map[string]int
	line   int
	err    error
}

func (p *parser) cell(column string) (string, bool) {
	i, ok := p.index[column]
	if !ok || i >= len(p.record) {
		return "", false
	}
	return strings.TrimSpace(p.record[i]), true
}

func (p *parser) fail(column, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("line %d column %s: invalid value %q: %w", p.line, column, value, err)
	}
}

func (p *parser) stringField(column string) string {
	value, ok := p.cell(column)
	if !ok || value == "" {
		p.fail(column, value, errors.New("empty"))
	}
	return value
}

func (p *parser) intField(column string) int {
	value, _ := p.cell(column)
	n, err := strconv.Atoi(value)
	if err != nil {
		p.fail(column, value, err)
	}
	return n
}

func (p *parser) floatField(column string) float64 {
	value, _ := p.cell(column)
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		p.fail(column, value, err)
	}
	return f
}

func (p *parser) optionalFloatField(column string) float64 {
	value, ok := p.cell(column)
	if !ok || value == "" {
		return 0
	}
	return p.floatField(column)
}

// Selection controls which rows are handed to the pipeline.
type Selection struct {
	MinRedshift float64
	SortBySNR   bool
	// MaxRows <= 0 keeps every row.
	MaxRows int
}

// Select applies the redshift cut, optional SNR ordering and top-N slice.
// rows is not modified.
func Select(rows []Row, sel Selection) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Redshift() > sel.MinRedshift {
			out = append(out, r)
		}
	}
	if sel.SortBySNR {
		sort.SliceStable(out, func(i, j int) bool { return out[i].SNR > out[j].SNR })
	}
	if sel.MaxRows > 0 && len(out) > sel.MaxRows {
		out = out[:sel.MaxRows]
	}
	return out
}
