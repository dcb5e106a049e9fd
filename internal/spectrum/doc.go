// Package spectrum holds the numeric core of the pipeline: reading the
// wavelength and flux columns of an SDSS spectrum file, shifting the
// wavelength axis into the rest frame, and resampling flux onto the master
// wavelength grid. Grids and derived vectors are persisted as NumPy .npy
// files.
//
// Interpolation is strictly linear between neighbouring samples. Grid points
// outside the observed wavelength range resolve to NaN; nothing is
// extrapolated.
package spectrum
