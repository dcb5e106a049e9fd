package testsupport

import (
	"math"
	"os"
	"testing"

	"specgrid/internal/spectrum"
)

// Spectrum describes a synthetic observed-frame spectrum with n samples
// evenly spaced in log10(wavelength) starting at start angstrom.
type Spectrum struct {
	Start float64
	Step  float64
	N     int
}

// DefaultSpectrum covers roughly 3800-9200 angstrom like an SDSS spectrum.
var DefaultSpectrum = Spectrum{Start: 3800, Step: 1e-4, N: 3841}

// Arrays returns the loglam and flux columns. Flux is a smooth positive ramp.
func (s Spectrum) Arrays() (logLam, flux []float64) {
	logLam = make([]float64, s.N)
	flux = make([]float64, s.N)
	base := math.Log10(s.Start)
	for i := range logLam {
		logLam[i] = base + float64(i)*s.Step
		flux[i] = 1 + float64(i%100)/10
	}
	return logLam, flux
}

// WriteSpectrum writes a FITS fixture at path.
func WriteSpectrum(t testing.TB, path string, s Spectrum) {
	t.Helper()

	logLam, flux := s.Arrays()
	if err := spectrum.WriteFITS(path, logLam, flux); err != nil {
		t.Fatalf("write fits fixture: %v", err)
	}
}

// SpectrumBytes returns the encoded FITS fixture.
func SpectrumBytes(t testing.TB, s Spectrum) []byte {
	t.Helper()

	path := t.TempDir() + "/fixture.fits"
	WriteSpectrum(t, path, s)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fits fixture: %v", err)
	}
	return data
}
