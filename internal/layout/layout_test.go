package layout_test

import (
	"path/filepath"
	"testing"

	"specgrid/internal/catalog"
	"specgrid/internal/config"
	"specgrid/internal/layout"
)

func TestPaths(t *testing.T) {
	l := layout.Layout{Root: "/data", Release: 16, BaseURL: "https://data.sdss.org/"}
	k := catalog.Key{Plate: 266, MJD: 51602, FiberID: 1, Run2D: "26"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"remote path", l.RemotePath(k), "sas/dr16/sdss/spectro/redux/26/spectra/lite/0266/spec-0266-51602-0001.fits"},
		{"remote url", l.RemoteURL(k), "https://data.sdss.org/sas/dr16/sdss/spectro/redux/26/spectra/lite/0266/spec-0266-51602-0001.fits"},
		{"fits", l.FITSPath(k), filepath.FromSlash("/data/sas/dr16/sdss/spectro/redux/26/spectra/lite/0266/spec-0266-51602-0001.fits")},
		{"raw", l.RawPath(k), filepath.FromSlash("/data/raw_spectra/spec-0266-51602-0001.npy")},
		{"interpolated", l.InterpolatedPath(k), filepath.FromSlash("/data/interpolated_spectra/spec-0266-51602-0001_interpolated.npy")},
		{"processed", l.ProcessedDir(), filepath.FromSlash("/data/processed_spectra")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestDistinctKeysNeverSharePaths(t *testing.T) {
	l := layout.Layout{Root: "/data", Release: 16, BaseURL: "https://data.sdss.org"}
	keys := []catalog.Key{
		{Plate: 266, MJD: 51602, FiberID: 1, Run2D: "26"},
		{Plate: 266, MJD: 51602, FiberID: 2, Run2D: "26"},
		{Plate: 266, MJD: 51603, FiberID: 1, Run2D: "26"},
		{Plate: 3586, MJD: 55181, FiberID: 1, Run2D: "v5_13_0"},
	}
	seen := map[string]catalog.Key{}
	for _, k := range keys {
		for _, p := range []string{l.FITSPath(k), l.RawPath(k), l.InterpolatedPath(k)} {
			if prev, ok := seen[p]; ok {
				t.Fatalf("%v and %v share path %s", prev, k, p)
			}
			seen[p] = k
		}
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataRoot = "/srv/spectra"
	l := layout.FromConfig(&cfg)
	if l.Root != "/srv/spectra" || l.Release != 16 || l.BaseURL != "https://data.sdss.org" {
		t.Fatalf("unexpected layout: %+v", l)
	}
	if !layout.IsInterpolated("spec-0266-51602-0001_interpolated.npy") || layout.IsInterpolated("spec.npy") {
		t.Fatal("IsInterpolated mismatch")
	}
}
