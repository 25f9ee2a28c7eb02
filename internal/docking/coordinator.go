package docking

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/me/dockscreen/internal/config"
)

// Report is the gathered, globally sorted outcome of one docking run.
type Report struct {
	RunID       string
	StartedAt   time.Time
	CompletedAt time.Time
	Workers     int
	Assignments [][]Task
	Results     []Result
}

// Succeeded counts results with a score.
func (r *Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

// Failed counts results without a score.
func (r *Report) Failed() int {
	return len(r.Results) - r.Succeeded()
}

// Duration is the wall-clock time between scatter and gather.
func (r *Report) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Recorder persists a finished run. *store.SQLiteStore implements it.
type Recorder interface {
	RecordRun(ctx context.Context, rep *Report) error
}

// Coordinator is worker 0: it partitions the ligands, scatters them,
// gathers every worker's results and merges them.
type Coordinator struct {
	cfg       config.DockingConfig
	transport Transport
	recorder  Recorder
	logger    *slog.Logger
}

// NewCoordinator creates a Coordinator. recorder may be nil.
func NewCoordinator(cfg config.DockingConfig, transport Transport, recorder Recorder, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		transport: transport,
		recorder:  recorder,
		logger:    logger.With("component", "coordinator"),
	}
}

// Run docks every ligand path exactly once.
func (c *Coordinator) Run(ctx context.Context, ligandPaths []string) (*Report, error) {
	if err := os.MkdirAll(c.cfg.ResultsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}

	parts, err := Partition(Tasks(ligandPaths), c.cfg.Workers)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		RunID:       "run_" + uuid.New().String(),
		StartedAt:   time.Now().UTC(),
		Workers:     c.cfg.Workers,
		Assignments: parts,
	}
	c.logger.Info("starting docking",
		"run_id", rep.RunID,
		"workers", c.cfg.Workers,
		"tasks", len(ligandPaths),
		"receptor", c.cfg.Receptor,
	)

	gathered, err := c.transport.Gather(ctx, parts)
	if err != nil {
		return nil, fmt.Errorf("gather results: %w", err)
	}
	rep.Results = Merge(gathered)
	rep.CompletedAt = time.Now().UTC()

	if got, want := len(rep.Results), len(ligandPaths); got != want {
		return rep, fmt.Errorf("%w: gathered %d results for %d tasks", ErrWorkerFailed, got, want)
	}

	c.logger.Info("docking finished",
		"run_id", rep.RunID,
		"ok", rep.Succeeded(),
		"failed", rep.Failed(),
		"duration", rep.Duration().Round(time.Millisecond).String(),
	)

	if c.recorder != nil {
		if err := c.recorder.RecordRun(ctx, rep); err != nil {
			return rep, fmt.Errorf("record run: %w", err)
		}
	}
	return rep, nil
}

// Check probes every rank of the configured layout.
func (c *Coordinator) Check(ctx context.Context) ([]WorkerInfo, error) {
	return c.transport.Probe(ctx, c.cfg.Workers)
}
