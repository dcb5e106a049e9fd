// Package outcome defines the typed per-row result shared by the fetch and
// resample stages, the sentinel errors that tag each failure kind, and the
// Summary aggregate printed at the end of a run and stored in the ledger.
package outcome

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"specgrid/internal/catalog"
)

// Kind classifies the result of processing one catalog row.
type Kind string

const (
	KindOK         Kind = "ok"
	KindCached     Kind = "cached"
	KindMissing    Kind = "missing"
	KindUndersized Kind = "undersized"
	KindParse      Kind = "parse"
	KindTransport  Kind = "transport"
	KindIO         Kind = "io"
)

// Kinds lists every kind in report order.
var Kinds = []Kind{KindOK, KindCached, KindMissing, KindUndersized, KindParse, KindTransport, KindIO}

var (
	ErrMissing    = errors.New("missing")
	ErrUndersized = errors.New("undersized")
	ErrParse      = errors.New("parse error")
	ErrTransport  = errors.New("transport error")
	ErrIO         = errors.New("io error")
)

// Failed reports whether the kind counts against the failure rate.
func (k Kind) Failed() bool {
	return k != KindOK && k != KindCached && k != ""
}

// ParseKind maps a stored kind string back to a Kind.
func ParseKind(value string) (Kind, bool) {
	value = strings.TrimSpace(strings.ToLower(value))
	for _, k := range Kinds {
		if string(k) == value {
			return k, true
		}
	}
	return "", false
}

// Wrap builds an error that includes operation context while tagging it with
// marker for later classification. The marker should be one of the sentinel
// errors above; nil falls back to ErrIO.
func Wrap(marker error, operation, message string, err error) error {
	detail := buildDetail(operation, message)
	if marker == nil {
		marker = ErrIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify returns the kind an error was tagged with. Untagged errors are
// treated as io failures and a cancelled context as a transport failure.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrMissing):
		return KindMissing
	case errors.Is(err, ErrUndersized):
		return KindUndersized
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrIO):
		return KindIO
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindTransport
	default:
		return KindIO
	}
}

func buildDetail(operation, message string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "row failure"
	}
	return strings.Join(parts, ": ")
}

// Result is the outcome of one row in one stage.
type Result struct {
	Key      catalog.Key
	Kind     Kind
	Err      error
	Attempts int
	Bytes    int64
	Duration time.Duration
}

// Failed reports whether the row failed.
func (r Result) Failed() bool { return r.Kind.Failed() }

// FromError builds a result whose kind is derived from err.
func FromError(key catalog.Key, err error) Result {
	return Result{Key: key, Kind: Classify(err), Err: err}
}

// Message returns the error text, or an empty string for successful rows.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Summary aggregates results for one stage run.
type Summary struct {
	Total   int
	Failed  int
	Bytes   int64
	Counts  map[Kind]int
	Elapsed time.Duration
}

// Summarize folds results into a Summary.
func Summarize(results []Result, elapsed time.Duration) Summary {
	var s Summary
	for _, r := range results {
		s.Add(r)
	}
	s.Elapsed = elapsed
	return s
}

// Add folds one result into the summary.
func (s *Summary) Add(r Result) {
	if s.Counts == nil {
		s.Counts = make(map[Kind]int, len(Kinds))
	}
	kind := r.Kind
	if kind == "" {
		kind = Classify(r.Err)
	}
	s.Total++
	s.Counts[kind]++
	s.Bytes += r.Bytes
	if kind.Failed() {
		s.Failed++
	}
}

// FailureRate is Failed/Total, zero for an empty run.
func (s Summary) FailureRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.Total)
}

// Succeeded counts ok and cached rows.
func (s Summary) Succeeded() int {
	return s.Total - s.Failed
}
