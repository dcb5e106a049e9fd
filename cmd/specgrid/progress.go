package main

import (
	"io"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"

	"specgrid/internal/logging"
	"specgrid/internal/outcome"
)

// progressReporter draws a bar on terminals and logs sampled progress lines
// everywhere else. observe is called serially by the worker pool.
type progressReporter struct {
	stage   string
	bar     *progressbar.ProgressBar
	sampler *logging.ProgressSampler
	logger  *slog.Logger
	failed  int
}

func newProgressReporter(out io.Writer, stage string, total int, logger *slog.Logger) *progressReporter {
	p := &progressReporter{stage: stage, logger: logger}
	if total > 0 && isTerminal(out) {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription(stage),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		return p
	}
	p.sampler = logging.NewProgressSampler(5)
	return p
}

func (p *progressReporter) observe(done, total int, r outcome.Result) {
	if r.Failed() {
		p.failed++
	}
	if p.bar != nil {
		_ = p.bar.Add(1)
		return
	}
	if !p.sampler.ShouldLog(done, total) {
		return
	}
	p.logger.Info(p.stage+" progress",
		logging.Stage(p.stage),
		logging.Int("done", done),
		logging.Int("total", total),
		logging.Int("failed", p.failed),
	)
}

func (p *progressReporter) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
