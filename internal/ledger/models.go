package ledger

import (
	"time"

	"specgrid/internal/catalog"
	"specgrid/internal/outcome"
)

// RunStatus tracks the lifecycle of a recorded run.
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunFinished RunStatus = "finished"
)

// Run is one invocation of a stage.
type Run struct {
	ID         string
	Stage      string
	Status     RunStatus
	Total      int
	Failed     int
	Bytes      int64
	Elapsed    time.Duration
	StartedAt  time.Time
	FinishedAt time.Time
}

// FailureRate is Failed/Total for finished runs.
func (r Run) FailureRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Failed) / float64(r.Total)
}

// Outcome is a stored per-row result.
type Outcome struct {
	RunID    string
	Key      catalog.Key
	Kind     outcome.Kind
	Message  string
	Attempts int
	Bytes    int64
	Duration time.Duration
}

// Health reports diagnostic facts about the ledger database.
type Health struct {
	Path          string
	SchemaVersion int
	Runs          int
	Outcomes      int
}
