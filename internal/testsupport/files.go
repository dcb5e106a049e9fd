package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"specgrid/internal/catalog"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, Payload(size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Payload returns size bytes of filler.
func Payload(size int64) []byte {
	if size < 0 {
		size = 0
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	return buf
}

// WriteCatalog writes rows as a catalog CSV with every supported column.
func WriteCatalog(t testing.TB, path string, rows ...catalog.Row) {
	t.Helper()

	var b strings.Builder
	b.WriteString("plate,mjd,fiberid,run2d,z,z_noqso,snMedian\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%d,%d,%d,%s,%s,%s,%s\n",
			r.Plate, r.MJD, r.FiberID, r.Run2D, ftoa(r.Z), ftoa(r.ZNoQSO), ftoa(r.SNR))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
}

func ftoa(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
