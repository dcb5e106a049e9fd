package spectrum

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/astrogo/fitsio"

	"specgrid/internal/fileutil"
	"specgrid/internal/outcome"
)

const (
	columnLogLam = "loglam"
	columnFlux   = "flux"
)

type fitsRow struct {
	LogLam float32 `fits:"loglam"`
	Flux   float32 `fits:"flux"`
}

// ReadFITS loads the spectrum stored in the binary table of HDU 1 of the file
// at path. Wavelengths are converted from log10 to linear units. Every failure
// is tagged outcome.ErrParse except a missing file, which is tagged
// outcome.ErrMissing.
func ReadFITS(path string) (Spectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Spectrum{}, outcome.Wrap(outcome.ErrMissing, "read fits", path, err)
		}
		return Spectrum{}, outcome.Wrap(outcome.ErrIO, "read fits", path, err)
	}
	defer f.Close()

	spec, err := DecodeFITS(f)
	if err != nil {
		return Spectrum{}, outcome.Wrap(outcome.ErrParse, "read fits", path, err)
	}
	return spec, nil
}

// DecodeFITS parses a FITS stream.
func DecodeFITS(r io.Reader) (spec Spectrum, err error) {
	// fitsio panics on some malformed headers.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("decode fits: %v", rec)
		}
	}()

	file, err := fitsio.Open(r)
	if err != nil {
		return Spectrum{}, fmt.Errorf("open fits: %w", err)
	}
	defer file.Close()

	if len(file.HDUs()) < 2 {
		return Spectrum{}, fmt.Errorf("expected a binary table in HDU 1, found %d HDUs", len(file.HDUs()))
	}
	table, ok := file.HDU(1).(*fitsio.Table)
	if !ok {
		return Spectrum{}, fmt.Errorf("HDU 1 is not a table")
	}
	for _, name := range []string{columnLogLam, columnFlux} {
		if table.Index(name) < 0 {
			return Spectrum{}, fmt.Errorf("table has no %q column", name)
		}
	}

	n := table.NumRows()
	rows, err := table.Read(0, n)
	if err != nil {
		return Spectrum{}, fmt.Errorf("read table: %w", err)
	}
	defer rows.Close()

	spec = Spectrum{
		Wave: make([]float64, 0, n),
		Flux: make([]float64, 0, n),
	}
	for rows.Next() {
		var row fitsRow
		if err := rows.Scan(&row); err != nil {
			return Spectrum{}, fmt.Errorf("scan row: %w", err)
		}
		spec.Wave = append(spec.Wave, math.Pow(10, float64(row.LogLam)))
		spec.Flux = append(spec.Flux, float64(row.Flux))
	}
	if err := rows.Err(); err != nil {
		return Spectrum{}, fmt.Errorf("iterate rows: %w", err)
	}
	return spec, nil
}

// WriteFITS stores loglam/flux pairs in the layout ReadFITS expects: an empty
// primary HDU followed by a binary table. The write is atomic.
func WriteFITS(path string, logLam, flux []float64) error {
	if len(logLam) != len(flux) {
		return fmt.Errorf("write fits: %d wavelengths but %d flux values", len(logLam), len(flux))
	}
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		file, err := fitsio.Create(w)
		if err != nil {
			return fmt.Errorf("create fits: %w", err)
		}
		if err := writeTable(file, logLam, flux); err != nil {
			_ = file.Close()
			return err
		}
		return file.Close()
	})
}

func writeTable(file *fitsio.File, logLam, flux []float64) error {
	phdu, err := fitsio.NewPrimaryHDU(nil)
	if err != nil {
		return fmt.Errorf("primary hdu: %w", err)
	}
	if err := file.Write(phdu); err != nil {
		return fmt.Errorf("write primary hdu: %w", err)
	}

	table, err := fitsio.NewTable("COADD", []fitsio.Column{
		{Name: columnFlux, Format: "E"},
		{Name: columnLogLam, Format: "E"},
	}, fitsio.BINARY_TBL)
	if err != nil {
		return fmt.Errorf("new table: %w", err)
	}
	for i := range logLam {
		row := fitsRow{LogLam: float32(logLam[i]), Flux: float32(flux[i])}
		if err := table.Write(&row.Flux, &row.LogLam); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := file.Write(table); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}
