// Package store persists docking run history.
package store

import (
	"context"
	"time"

	"github.com/me/dockscreen/internal/docking"
)

// RunState is the lifecycle state of a recorded run.
type RunState string

const (
	RunRunning   RunState = "RUNNING"
	RunCompleted RunState = "COMPLETED"
)

// Run is one recorded docking run.
type Run struct {
	ID          string     `json:"id"`
	State       RunState   `json:"state"`
	Workers     int        `json:"workers"`
	Ligands     int        `json:"ligands"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListOptions pages through runs.
type ListOptions struct {
	Limit  int
	Offset int
}

// Clamp bounds the options to sane values.
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 || o.Limit > 100 {
		o.Limit = 20
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// Store defines the run history operations.
type Store interface {
	CreateRun(ctx context.Context, run *Run) error
	CompleteRun(ctx context.Context, id string, completedAt time.Time, succeeded, failed int) error
	AddResults(ctx context.Context, runID string, results []docking.Result) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, opts ListOptions) ([]*Run, int, error)
	ListResults(ctx context.Context, runID string) ([]docking.Result, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
