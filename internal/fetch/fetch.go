package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"specgrid/internal/catalog"
	"specgrid/internal/fileutil"
	"specgrid/internal/layout"
	"specgrid/internal/logging"
	"specgrid/internal/outcome"
	"specgrid/internal/pool"
)

const (
	DefaultWorkers       = 60
	DefaultMinFileSize   = 60000
	DefaultRetryAttempts = 10
	DefaultRetryInterval = time.Second
)

// Doer is the subset of *http.Client the fetcher needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Fetcher.
type Options struct {
	Workers int
	// MinFileSize is the smallest payload accepted as a real spectrum.
	MinFileSize int64
	// RetryAttempts counts retries after the first attempt.
	RetryAttempts int
	RetryInterval time.Duration
	// Timeout bounds a single GET; zero leaves it to the client.
	Timeout   time.Duration
	UserAgent string
	// Revalidate refetches cached files smaller than MinFileSize.
	Revalidate bool
	Logger     *slog.Logger
	Observe    func(done, total int, r outcome.Result)
}

// Fetcher materializes spectrum files under a layout.
type Fetcher struct {
	layout layout.Layout
	client Doer
	opts   Options
	logger *slog.Logger
}

// New constructs a Fetcher. A nil client falls back to http.DefaultClient and
// zero-valued options take the package defaults, except RetryAttempts and
// RetryInterval, where zero is meaningful.
func New(l layout.Layout, client Doer, opts Options) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MinFileSize <= 0 {
		opts.MinFileSize = DefaultMinFileSize
	}
	if opts.RetryAttempts < 0 {
		opts.RetryAttempts = 0
	}
	if opts.RetryInterval < 0 {
		opts.RetryInterval = 0
	}
	return &Fetcher{
		layout: l,
		client: client,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "fetcher"),
	}
}

// Run fetches every row and returns the per-row results in input order with
// their aggregate.
func (f *Fetcher) Run(ctx context.Context, rows []catalog.Row) (outcome.Summary, []outcome.Result) {
	start := time.Now()
	ctx = logging.WithStage(ctx, "fetch")
	logging.WithContext(ctx, f.logger).Info("fetch started",
		logging.Int("rows", len(rows)),
		logging.Int("workers", f.opts.Workers),
		logging.String("destination", f.layout.Root),
	)

	results := pool.Run(ctx, rows, f.opts.Workers, func(ctx context.Context, _ int, row catalog.Row) outcome.Result {
		return f.FetchOne(ctx, row)
	}, f.opts.Observe)

	for i, r := range results {
		if r.Kind == "" {
			results[i] = outcome.Result{
				Key:  rows[i].Key(),
				Kind: outcome.KindTransport,
				Err:  outcome.Wrap(outcome.ErrTransport, "fetch", "not started", context.Cause(ctx)),
			}
		}
	}

	summary := outcome.Summarize(results, time.Since(start))
	logging.WithContext(ctx, f.logger).Info("fetch finished",
		logging.Int("rows", summary.Total),
		logging.Int("failed", summary.Failed),
		logging.Int("cached", summary.Counts[outcome.KindCached]),
		logging.String("downloaded", humanize.IBytes(uint64(summary.Bytes))),
		logging.Duration("elapsed", summary.Elapsed),
	)
	return summary, results
}

// FetchOne materializes the file for a single row.
func (f *Fetcher) FetchOne(ctx context.Context, row catalog.Row) outcome.Result {
	start := time.Now()
	key := row.Key()
	dest := f.layout.FITSPath(key)
	logger := logging.WithContext(logging.WithSpectrum(ctx, key.Name()), f.logger)

	result := f.fetch(ctx, logger, key, dest)
	result.Key = key
	result.Duration = time.Since(start)
	if result.Failed() {
		logging.WarnWithContext(logger, "fetch failed", "fetch_"+string(result.Kind),
			logging.Error(result.Err),
			logging.Int("attempts", result.Attempts),
			logging.String(logging.FieldErrorHint, hint(result.Kind)),
		)
	} else {
		logger.Debug("fetch complete",
			logging.String("kind", string(result.Kind)),
			logging.Int("attempts", result.Attempts),
			logging.Int64("bytes", result.Bytes),
		)
	}
	return result
}

func (f *Fetcher) fetch(ctx context.Context, logger *slog.Logger, key catalog.Key, dest string) outcome.Result {
	size, exists, err := fileutil.Size(dest)
	if err != nil {
		return failure(outcome.Wrap(outcome.ErrIO, "stat", dest, err), 0)
	}
	if exists {
		if !f.opts.Revalidate || size >= f.opts.MinFileSize {
			return outcome.Result{Kind: outcome.KindCached, Bytes: size}
		}
		logger.Info("cached file below minimum size; refetching",
			logging.Int64("bytes", size),
			logging.Int64("min_bytes", f.opts.MinFileSize),
		)
		if err := fileutil.RemoveIfExists(dest); err != nil {
			return failure(outcome.Wrap(outcome.ErrIO, "remove cached", dest, err), 0)
		}
	}

	url := f.layout.RemoteURL(key)
	logger.Debug("fetch started", logging.String("url", url))

	maxAttempts := f.opts.RetryAttempts + 1
	var last int64
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		n, err := f.download(ctx, url, dest)
		if err != nil {
			return failure(err, attempt)
		}
		if n >= f.opts.MinFileSize {
			return outcome.Result{Kind: outcome.KindOK, Attempts: attempt, Bytes: n}
		}
		last = n
		logger.Debug("payload below minimum size",
			logging.Int("attempt", attempt),
			logging.Int64("bytes", n),
		)
		if attempt == maxAttempts {
			break
		}
		if err := sleep(ctx, f.opts.RetryInterval); err != nil {
			return failure(outcome.Wrap(outcome.ErrTransport, "retry wait", "", err), attempt)
		}
	}

	msg := fmt.Sprintf("%d bytes after %d attempts (minimum %d)", last, maxAttempts, f.opts.MinFileSize)
	return failure(outcome.Wrap(outcome.ErrUndersized, "fetch", msg, nil), maxAttempts)
}

func failure(err error, attempts int) outcome.Result {
	return outcome.Result{Kind: outcome.Classify(err), Err: err, Attempts: attempts}
}

// download streams url into a temp file beside dest. The file is renamed onto
// dest only when the payload meets the minimum size; otherwise it is removed
// and only the byte count is reported.
func (f *Fetcher) download(ctx context.Context, url, dest string) (int64, error) {
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, outcome.Wrap(outcome.ErrTransport, "build request", url, err)
	}
	if ua := strings.TrimSpace(f.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, outcome.Wrap(outcome.ErrTransport, "get", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, outcome.Wrap(outcome.ErrMissing, "get", fmt.Sprintf("%s returned 404", url), nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return 0, outcome.Wrap(outcome.ErrTransport, "get", fmt.Sprintf("%s returned %d", url, resp.StatusCode), nil)
	}

	tmp, err := fileutil.CreateSibling(dest)
	if err != nil {
		return 0, outcome.Wrap(outcome.ErrIO, "download", dest, err)
	}
	body := &readTracker{r: resp.Body}
	n, err := io.Copy(tmp, body)
	if err != nil {
		fileutil.Discard(tmp)
		if body.err != nil {
			return n, outcome.Wrap(outcome.ErrTransport, "read body", url, body.err)
		}
		return n, outcome.Wrap(outcome.ErrIO, "write", dest, err)
	}
	if n < f.opts.MinFileSize {
		fileutil.Discard(tmp)
		return n, nil
	}
	if err := fileutil.Commit(tmp, dest); err != nil {
		return n, outcome.Wrap(outcome.ErrIO, "commit", dest, err)
	}
	return n, nil
}

// readTracker remembers the first non-EOF read error so copy failures can be
// attributed to the network or the disk.
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && t.err == nil {
		t.err = err
	}
	return n, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func hint(kind outcome.Kind) string {
	switch kind {
	case outcome.KindMissing:
		return "archive has no file for this row; check run2d and release"
	case outcome.KindUndersized:
		return "archive kept returning an error page; row may be absent from this release"
	case outcome.KindTransport:
		return "check network access to the archive"
	case outcome.KindIO:
		return "check free space and permissions under data_root"
	default:
		return "check logs for details"
	}
}
