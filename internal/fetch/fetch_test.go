package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"specgrid/internal/catalog"
	"specgrid/internal/fetch"
	"specgrid/internal/layout"
	"specgrid/internal/outcome"
	"specgrid/internal/testsupport"
)

const minSize = 60000

func row(fiber int) catalog.Row {
	return catalog.Row{Plate: 266, MJD: 51602, FiberID: fiber, Run2D: "26", Z: 0.05, SNR: 10}
}

func newFetcher(t *testing.T, archive *testsupport.Archive, opts fetch.Options) (*fetch.Fetcher, layout.Layout) {
	t.Helper()
	l := layout.Layout{Root: t.TempDir(), Release: 16, BaseURL: archive.URL()}
	if opts.MinFileSize == 0 {
		opts.MinFileSize = minSize
	}
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = 10
	}
	return fetch.New(l, archive.Server.Client(), opts), l
}

func TestFetchOneSkipsExistingFile(t *testing.T) {
	archive := testsupport.NewArchive(t)
	f, l := newFetcher(t, archive, fetch.Options{})

	r := row(1)
	testsupport.WriteFile(t, l.FITSPath(r.Key()), 10)

	res := f.FetchOne(context.Background(), r)
	if res.Kind != outcome.KindCached || res.Failed() {
		t.Fatalf("expected cached success, got %+v", res)
	}
	if archive.TotalRequests() != 0 {
		t.Fatalf("expected zero network calls, got %d", archive.TotalRequests())
	}
}

func TestFetchOneDownloadsToLayoutPath(t *testing.T) {
	archive := testsupport.NewArchive(t)
	f, l := newFetcher(t, archive, fetch.Options{UserAgent: "specgrid/test"})

	r := row(1)
	archive.Serve(l.RemotePath(r.Key()), testsupport.Payload(minSize+10))

	res := f.FetchOne(context.Background(), r)
	if res.Kind != outcome.KindOK || res.Attempts != 1 || res.Bytes != minSize+10 {
		t.Fatalf("unexpected result: %+v", res)
	}
	info, err := os.Stat(l.FITSPath(r.Key()))
	if err != nil {
		t.Fatalf("expected file at layout path: %v", err)
	}
	if info.Size() != minSize+10 {
		t.Fatalf("unexpected size %d", info.Size())
	}
}

func TestFetchOneRetriesUndersizedElevenTimes(t *testing.T) {
	archive := testsupport.NewArchive(t)
	f, l := newFetcher(t, archive, fetch.Options{RetryInterval: time.Millisecond})

	r := row(2)
	remote := l.RemotePath(r.Key())
	archive.Serve(remote, testsupport.Payload(512))

	res := f.FetchOne(context.Background(), r)
	if res.Kind != outcome.KindUndersized || !errors.Is(res.Err, outcome.ErrUndersized) {
		t.Fatalf("expected undersized failure, got %+v", res)
	}
	if got := archive.Requests(remote); got != 11 {
		t.Fatalf("expected 11 attempts, got %d", got)
	}
	if res.Attempts != 11 {
		t.Fatalf("expected result to report 11 attempts, got %d", res.Attempts)
	}
	if _, err := os.Stat(l.FITSPath(r.Key())); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected undersized file removed, stat err=%v", err)
	}
	assertNoPartials(t, filepath.Dir(l.FITSPath(r.Key())))
}

func TestFetchOneStopsAtFirstGoodAttempt(t *testing.T) {
	for _, n := range []int{1, 3, 11} {
		archive := testsupport.NewArchive(t)
		f, l := newFetcher(t, archive, fetch.Options{})

		r := row(3)
		remote := l.RemotePath(r.Key())
		payloads := make([][]byte, 0, n)
		for i := 1; i < n; i++ {
			payloads = append(payloads, testsupport.Payload(100))
		}
		payloads = append(payloads, testsupport.Payload(minSize))
		archive.Serve(remote, payloads...)

		res := f.FetchOne(context.Background(), r)
		if res.Kind != outcome.KindOK {
			t.Fatalf("attempt %d: expected success, got %+v", n, res)
		}
		if got := archive.Requests(remote); got != n {
			t.Fatalf("attempt %d: expected %d requests, got %d", n, n, got)
		}
	}
}

func TestFetchOneMissingAndTransportDoNotRetry(t *testing.T) {
	archive := testsupport.NewArchive(t)
	f, l := newFetcher(t, archive, fetch.Options{})

	missing := row(4)
	res := f.FetchOne(context.Background(), missing)
	if res.Kind != outcome.KindMissing {
		t.Fatalf("expected missing, got %+v", res)
	}
	if got := archive.Requests(l.RemotePath(missing.Key())); got != 1 {
		t.Fatalf("expected a single request for 404, got %d", got)
	}

	broken := row(5)
	archive.Fail(l.RemotePath(broken.Key()), http.StatusServiceUnavailable)
	res = f.FetchOne(context.Background(), broken)
	if res.Kind != outcome.KindTransport || !errors.Is(res.Err, outcome.ErrTransport) {
		t.Fatalf("expected transport failure, got %+v", res)
	}
	if got := archive.Requests(l.RemotePath(broken.Key())); got != 1 {
		t.Fatalf("expected a single request for 503, got %d", got)
	}
}

func TestFetchOneRevalidatesUndersizedCache(t *testing.T) {
	archive := testsupport.NewArchive(t)
	f, l := newFetcher(t, archive, fetch.Options{Revalidate: true})

	r := row(6)
	testsupport.WriteFile(t, l.FITSPath(r.Key()), 10)
	archive.Serve(l.RemotePath(r.Key()), testsupport.Payload(minSize))

	res := f.FetchOne(context.Background(), r)
	if res.Kind != outcome.KindOK || res.Bytes != minSize {
		t.Fatalf("expected refetch, got %+v", res)
	}

	res = f.FetchOne(context.Background(), r)
	if res.Kind != outcome.KindCached {
		t.Fatalf("expected valid cache to be kept, got %+v", res)
	}
	if got := archive.TotalRequests(); got != 1 {
		t.Fatalf("expected one request, got %d", got)
	}
}

func TestRunIsolatesFailuresAndSummarizes(t *testing.T) {
	archive := testsupport.NewArchive(t)
	var observed atomic.Int32
	f, l := newFetcher(t, archive, fetch.Options{
		Workers: 3,
		Observe: func(done, total int, _ outcome.Result) {
			observed.Add(1)
			if total != 4 {
				t.Errorf("unexpected total %d", total)
			}
		},
	})

	rows := []catalog.Row{row(1), row(2), row(3), row(4)}
	archive.Serve(l.RemotePath(rows[0].Key()), testsupport.Payload(minSize))
	archive.Serve(l.RemotePath(rows[2].Key()), testsupport.Payload(minSize*2))
	testsupport.WriteFile(t, l.FITSPath(rows[3].Key()), 1)

	summary, results := f.Run(context.Background(), rows)
	if summary.Total != 4 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	wantKinds := []outcome.Kind{outcome.KindOK, outcome.KindMissing, outcome.KindOK, outcome.KindCached}
	for i, want := range wantKinds {
		if results[i].Kind != want || results[i].Key != rows[i].Key() {
			t.Fatalf("result %d = %+v, want kind %s", i, results[i], want)
		}
	}
	if observed.Load() != 4 {
		t.Fatalf("expected 4 observations, got %d", observed.Load())
	}
}

func TestRunAfterCancelMarksRowsNotStarted(t *testing.T) {
	archive := testsupport.NewArchive(t)
	f, _ := newFetcher(t, archive, fetch.Options{Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, results := f.Run(ctx, []catalog.Row{row(1), row(2)})
	if summary.Failed != 2 {
		t.Fatalf("expected both rows failed, got %+v", summary)
	}
	for _, r := range results {
		if r.Kind != outcome.KindTransport || r.Key.Plate != 266 {
			t.Fatalf("unexpected result %+v", r)
		}
	}
	if archive.TotalRequests() != 0 {
		t.Fatalf("expected no requests after cancel, got %d", archive.TotalRequests())
	}
}

func assertNoPartials(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty directory, found %d entries", len(entries))
	}
}
