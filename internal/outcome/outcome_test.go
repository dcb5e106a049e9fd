package outcome_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"specgrid/internal/catalog"
	"specgrid/internal/outcome"
)

func TestWrapIncludesDetailAndMarker(t *testing.T) {
	base := errors.New("boom")
	err := outcome.Wrap(outcome.ErrUndersized, "fetch", "1200 bytes", base)
	if !errors.Is(err, outcome.ErrUndersized) {
		t.Fatalf("expected ErrUndersized marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected original error to be wrapped, got %v", err)
	}
	for _, want := range []string{"fetch", "1200 bytes", "boom"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %q", want, err.Error())
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := outcome.Wrap(nil, "", "", nil)
	if !errors.Is(err, outcome.ErrIO) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "row failure") {
		t.Fatalf("expected default detail, got %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want outcome.Kind
	}{
		{nil, outcome.KindOK},
		{outcome.Wrap(outcome.ErrMissing, "fetch", "404", nil), outcome.KindMissing},
		{outcome.Wrap(outcome.ErrUndersized, "fetch", "", nil), outcome.KindUndersized},
		{fmt.Errorf("outer: %w", outcome.Wrap(outcome.ErrParse, "read", "", nil)), outcome.KindParse},
		{outcome.Wrap(outcome.ErrTransport, "get", "", nil), outcome.KindTransport},
		{outcome.Wrap(outcome.ErrIO, "save", "", nil), outcome.KindIO},
		{context.Canceled, outcome.KindTransport},
		{errors.New("plain"), outcome.KindIO},
	}
	for _, tt := range tests {
		if got := outcome.Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestSummaryCountsKinds(t *testing.T) {
	key := catalog.Key{Plate: 266, MJD: 51602, FiberID: 1, Run2D: "26"}
	results := []outcome.Result{
		{Key: key, Kind: outcome.KindOK, Bytes: 100},
		{Key: key, Kind: outcome.KindCached},
		{Key: key, Kind: outcome.KindUndersized},
		outcome.FromError(key, outcome.Wrap(outcome.ErrMissing, "fetch", "", nil)),
	}
	s := outcome.Summarize(results, 2*time.Second)
	if s.Total != 4 || s.Failed != 2 || s.Succeeded() != 2 {
		t.Fatalf("unexpected totals: %+v", s)
	}
	if s.Counts[outcome.KindMissing] != 1 || s.Counts[outcome.KindOK] != 1 {
		t.Fatalf("unexpected counts: %+v", s.Counts)
	}
	if s.Bytes != 100 {
		t.Fatalf("unexpected bytes: %d", s.Bytes)
	}
	if s.FailureRate() != 0.5 {
		t.Fatalf("unexpected failure rate: %v", s.FailureRate())
	}
	if (outcome.Summary{}).FailureRate() != 0 {
		t.Fatal("empty summary should have zero failure rate")
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range outcome.Kinds {
		got, ok := outcome.ParseKind(string(k))
		if !ok || got != k {
			t.Fatalf("ParseKind(%q) = %q, %v", k, got, ok)
		}
	}
	if _, ok := outcome.ParseKind("bogus"); ok {
		t.Fatal("expected unknown kind to fail")
	}
}
