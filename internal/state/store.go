// Package state persists training run metadata and per-seed test
// metrics in a SQLite database.
package state

import "time"

// RunStatus is the lifecycle state of a training run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusSkipped   RunStatus = "skipped"
)

// Run is one seed of one training configuration.
type Run struct {
	ID          string
	Name        string
	Strategy    string
	Backbone    string
	Tasks       string
	Seed        int64
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// Metric is one recorded test metric for a run.
type Metric struct {
	ID     string
	RunID  string
	Output string
	Metric string
	Value  float64
}
