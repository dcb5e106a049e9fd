package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"specgrid/internal/catalog"
)

const sample = `plate,mjd,fiberid,run2d,z,z_noqso,snMedian,class
266,51602,1,26,0.05,0,12.5,GALAXY
266,51602,2,26,0.10,0.12,30.1,GALAXY
266,51602,3,26,0,0,50,GALAXY
`

func TestReadParsesRows(t *testing.T) {
	rows, err := catalog.Read(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	want := []catalog.Row{
		{Plate: 266, MJD: 51602, FiberID: 1, Run2D: "26", Z: 0.05, SNR: 12.5},
		{Plate: 266, MJD: 51602, FiberID: 2, Run2D: "26", Z: 0.10, ZNoQSO: 0.12, SNR: 30.1},
		{Plate: 266, MJD: 51602, FiberID: 3, Run2D: "26", Z: 0, SNR: 50},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestReadAcceptsReorderedColumnsWithoutZNoQSO(t *testing.T) {
	input := "snMedian,z,run2d,fiberid,mjd,plate\n7,0.2,v5_13_0,12,55000,3586\n\n"
	rows, err := catalog.Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	got := rows[0]
	if got.Plate != 3586 || got.FiberID != 12 || got.Run2D != "v5_13_0" || got.ZNoQSO != 0 || got.Redshift() != 0.2 {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestReadRejectsMissingColumn(t *testing.T) {
	_, err := catalog.Read(strings.NewReader("plate,mjd,fiberid,z,snMedian\n1,2,3,0.1,4\n"))
	if !errors.Is(err, catalog.ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
	if !strings.Contains(err.Error(), "run2d") {
		t.Fatalf("expected missing column named, got %v", err)
	}
}

func TestReadReportsLineAndColumn(t *testing.T) {
	input := "plate,mjd,fiberid,run2d,z,snMedian\n1,2,3,26,0.1,4\n1,x,3,26,0.1,4\n"
	_, err := catalog.Read(strings.NewReader(input))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "line 3") || !strings.Contains(err.Error(), "column mjd") {
		t.Fatalf("expected line and column in error, got %v", err)
	}
}

func TestReadEmptyCatalog(t *testing.T) {
	if _, err := catalog.Read(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty catalog")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gals.csv")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	rows, err := catalog.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if _, err := catalog.Load(context.Background(), filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSelectAppliesCutSortAndLimit(t *testing.T) {
	rows, err := catalog.Read(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}

	selected := catalog.Select(rows, catalog.Selection{MinRedshift: 0.01})
	if len(selected) != 2 || selected[0].FiberID != 1 || selected[1].FiberID != 2 {
		t.Fatalf("expected fibers 1 and 2 in input order, got %+v", selected)
	}

	sorted := catalog.Select(rows, catalog.Selection{MinRedshift: 0.01, SortBySNR: true, MaxRows: 1})
	if len(sorted) != 1 || sorted[0].FiberID != 2 {
		t.Fatalf("expected highest-SNR row, got %+v", sorted)
	}
	if rows[0].FiberID != 1 {
		t.Fatal("Select must not reorder its input")
	}
}

func TestSelectCutIsStrict(t *testing.T) {
	rows := []catalog.Row{{FiberID: 1, Z: 0.01}, {FiberID: 2, Z: 0.0100001}}
	got := catalog.Select(rows, catalog.Selection{MinRedshift: 0.01})
	if len(got) != 1 || got[0].FiberID != 2 {
		t.Fatalf("expected only the row above the cut, got %+v", got)
	}
}

func TestRedshiftPrefersZNoQSO(t *testing.T) {
	r := catalog.Row{Z: 0.3, ZNoQSO: 0.1}
	if r.Redshift() != 0.1 {
		t.Fatalf("expected z_noqso, got %v", r.Redshift())
	}
	r.ZNoQSO = 0
	if r.Redshift() != 0.3 {
		t.Fatalf("expected z fallback, got %v", r.Redshift())
	}
}

func TestKeyName(t *testing.T) {
	k := catalog.Key{Plate: 266, MJD: 51602, FiberID: 1, Run2D: "26"}
	if got := k.Name(); got != "spec-0266-51602-0001" {
		t.Fatalf("unexpected name %q", got)
	}
}
