package spectrum

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"
)

// Spectrum is a wavelength/flux pair as read from a spectrum file.
type Spectrum struct {
	Wave []float64
	Flux []float64
}

var (
	ErrEmpty          = errors.New("spectrum has no samples")
	ErrLengthMismatch = errors.New("wavelength and flux lengths differ")
	ErrNotIncreasing  = errors.New("wavelengths are not strictly increasing")
)

// Validate checks that the spectrum can be interpolated.
func (s Spectrum) Validate() error {
	if len(s.Wave) != len(s.Flux) {
		return fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(s.Wave), len(s.Flux))
	}
	if len(s.Wave) == 0 {
		return ErrEmpty
	}
	return checkIncreasing(s.Wave)
}

func checkIncreasing(xs []float64) error {
	for i, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: non-finite value at index %d", ErrNotIncreasing, i)
		}
		if i > 0 && x <= xs[i-1] {
			return fmt.Errorf("%w: index %d (%g <= %g)", ErrNotIncreasing, i, x, xs[i-1])
		}
	}
	return nil
}

// RestFrame de-redshifts an observed wavelength axis by 1/(1+z). A positive
// scale factor keeps a strictly increasing axis strictly increasing.
func RestFrame(wave []float64, z float64) ([]float64, error) {
	if !(z > -1) || math.IsInf(z, 0) {
		return nil, fmt.Errorf("redshift %g out of range (must be > -1)", z)
	}
	factor := 1 / (1 + z)
	out := make([]float64, len(wave))
	for i, w := range wave {
		out[i] = w * factor
	}
	return out, nil
}

// Interpolate resamples flux, sampled at wave, onto grid. wave must be
// strictly increasing. Grid points outside [wave[0], wave[n-1]] are NaN.
func Interpolate(grid, wave, flux []float64) ([]float64, error) {
	s := Spectrum{Wave: wave, Flux: flux}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	out := make([]float64, len(grid))
	lo, hi := wave[0], wave[len(wave)-1]

	if len(wave) == 1 {
		for i, g := range grid {
			out[i] = math.NaN()
			if g == lo {
				out[i] = flux[0]
			}
		}
		return out, nil
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(wave, flux); err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	for i, g := range grid {
		if !(g >= lo && g <= hi) {
			out[i] = math.NaN()
			continue
		}
		out[i] = pl.Predict(g)
	}
	return out, nil
}

// Resample de-redshifts s by z and interpolates it onto grid. The rest-frame
// axis is validated by Interpolate.
func Resample(s Spectrum, z float64, grid Grid) ([]float64, error) {
	rest, err := RestFrame(s.Wave, z)
	if err != nil {
		return nil, err
	}
	return Interpolate(grid, rest, s.Flux)
}
