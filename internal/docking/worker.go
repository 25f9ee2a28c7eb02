package docking

import (
	"context"
	"log/slog"

	"github.com/me/dockscreen/internal/logging"
)

// WorkFunc docks one worker's share of the tasks.
type WorkFunc func(ctx context.Context, rank, size int, tasks []Task) []Result

// RunWorker docks tasks one after another. Workers never parallelize
// internally: the engine already uses the configured CPU threads.
func RunWorker(ctx context.Context, rank, size int, tasks []Task, d *Docker, logger *slog.Logger) []Result {
	log := logging.ForWorker(logger, rank, size)
	log.Info("received tasks", "count", len(tasks))

	results := make([]Result, 0, len(tasks))
	for _, t := range tasks {
		if ctx.Err() != nil {
			break
		}
		r := d.Dock(ctx, t)
		r.Worker = rank
		results = append(results, r)
		if r.OK() {
			log.Info("docked", "ligand", r.Ligand, "score", r.Score, "unit", "kcal/mol")
		} else {
			log.Warn("docking failed", "ligand", r.Ligand, "reason", r.Reason)
		}
	}
	return results
}

// DockerWork binds a Docker to the WorkFunc signature.
func DockerWork(d *Docker, logger *slog.Logger) WorkFunc {
	return func(ctx context.Context, rank, size int, tasks []Task) []Result {
		return RunWorker(ctx, rank, size, tasks, d, logger)
	}
}
