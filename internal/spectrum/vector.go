package spectrum

import (
	"fmt"
	"io"

	"github.com/sbinet/npyio"

	"specgrid/internal/catalog"
	"specgrid/internal/fileutil"
)

// MetadataWidth is the number of trailing values WithMetadata appends.
const MetadataWidth = 5

// WithMetadata appends plate, mjd, fiberid, redshift and SNR to values.
func WithMetadata(values []float64, row catalog.Row) []float64 {
	out := make([]float64, 0, len(values)+MetadataWidth)
	out = append(out, values...)
	return append(out,
		float64(row.Plate),
		float64(row.MJD),
		float64(row.FiberID),
		row.Redshift(),
		row.SNR,
	)
}

// SplitMetadata separates a vector produced by WithMetadata.
func SplitMetadata(vec []float64) (values, meta []float64, err error) {
	if len(vec) < MetadataWidth {
		return nil, nil, fmt.Errorf("vector of length %d has no metadata", len(vec))
	}
	cut := len(vec) - MetadataWidth
	return vec[:cut], vec[cut:], nil
}

// SaveVector writes vec to path as a 1-D float64 .npy array, replacing any
// previous file atomically.
func SaveVector(path string, vec []float64) error {
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		return npyio.Write(w, vec)
	})
}

// LoadVector reads a 1-D float64 .npy array.
func LoadVector(path string) ([]float64, error) {
	var vec []float64
	if err := openNPY(path, &vec); err != nil {
		return nil, err
	}
	return vec, nil
}
