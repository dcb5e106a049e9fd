// Package layout maps catalog keys to archive URLs and local artifact paths.
//
// Every path is a pure function of the row identity, so concurrent workers
// handling distinct rows never touch the same file.
package layout

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"specgrid/internal/catalog"
	"specgrid/internal/config"
)

const (
	RawDir          = "raw_spectra"
	InterpolatedDir = "interpolated_spectra"
	ProcessedDir    = "processed_spectra"

	interpolatedSuffix = "_interpolated.npy"
)

// Layout resolves locations under one data root for one data release.
type Layout struct {
	Root    string
	Release int
	BaseURL string
}

// FromConfig builds the layout described by cfg.
func FromConfig(cfg *config.Config) Layout {
	return Layout{
		Root:    cfg.Paths.DataRoot,
		Release: cfg.Archive.Release,
		BaseURL: cfg.Archive.BaseURL,
	}
}

// RemotePath is the slash-separated archive path of the spectrum file.
func (l Layout) RemotePath(k catalog.Key) string {
	return path.Join(
		"sas",
		fmt.Sprintf("dr%d", l.Release),
		"sdss", "spectro", "redux",
		k.Run2D,
		"spectra", "lite",
		fmt.Sprintf("%04d", k.Plate),
		k.Name()+".fits",
	)
}

// RemoteURL is the download location of the spectrum file.
func (l Layout) RemoteURL(k catalog.Key) string {
	return strings.TrimRight(l.BaseURL, "/") + "/" + l.RemotePath(k)
}

// FITSPath mirrors the archive path under the local root.
func (l Layout) FITSPath(k catalog.Key) string {
	return filepath.Join(l.Root, filepath.FromSlash(l.RemotePath(k)))
}

func (l Layout) RawPath(k catalog.Key) string {
	return filepath.Join(l.Root, RawDir, k.Name()+".npy")
}

func (l Layout) InterpolatedPath(k catalog.Key) string {
	return filepath.Join(l.Root, InterpolatedDir, k.Name()+interpolatedSuffix)
}

func (l Layout) InterpolatedDir() string {
	return filepath.Join(l.Root, InterpolatedDir)
}

func (l Layout) ProcessedDir() string {
	return filepath.Join(l.Root, ProcessedDir)
}

// IsInterpolated reports whether a file name follows the interpolated artifact convention.
func IsInterpolated(name string) bool {
	return strings.HasSuffix(name, interpolatedSuffix)
}
