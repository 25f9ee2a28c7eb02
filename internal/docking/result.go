// Package docking distributes prepared ligands across cooperating workers,
// runs the docking engine once per ligand and gathers a globally sorted report.
package docking

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/me/dockscreen/internal/config"
)

// FailedScore is the display value of a failed docking. It never takes part in ordering.
const FailedScore = 999.9

// Sentinel errors.
var (
	ErrNoWorkers    = errors.New("worker count must be at least 1")
	ErrWorkerFailed = errors.New("docking worker failed")
)

// Status tags a docking result.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Task is one structure file assigned to exactly one worker.
type Task struct {
	Index      int    `json:"index"`
	LigandPath string `json:"ligand_path"`
}

// Result is the outcome of docking one ligand.
type Result struct {
	Index   int           `json:"index"`
	Ligand  string        `json:"ligand"`
	Score   float64       `json:"score"` // kcal/mol; FailedScore when Status is failed
	Elapsed time.Duration `json:"elapsed_ns"`
	Status  Status        `json:"status"`
	Reason  string        `json:"reason,omitempty"`
	Worker  int           `json:"worker"`
	OutPath string        `json:"out_path,omitempty"`
}

// OK reports whether the docking produced a score.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// ScoreText renders the score for tables.
func (r Result) ScoreText() string {
	if !r.OK() {
		return fmt.Sprintf("%.1f (failed)", FailedScore)
	}
	return formatFloat(r.Score)
}

func failed(task Task, ligand, reason string, elapsed time.Duration) Result {
	return Result{
		Index:   task.Index,
		Ligand:  ligand,
		Score:   FailedScore,
		Elapsed: elapsed,
		Status:  StatusFailed,
		Reason:  reason,
	}
}

// LigandName returns the ligand name of a structure file: its base name without extension.
func LigandName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ListLigands returns the prepared structure files of dir sorted by name.
func ListLigands(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("ligand dir: %w", err)
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*"+config.StructureExt))
	if err != nil {
		return nil, fmt.Errorf("list ligands: %w", err)
	}
	return paths, nil
}

// Tasks numbers ligand paths in the order given.
func Tasks(paths []string) []Task {
	tasks := make([]Task, len(paths))
	for i, p := range paths {
		tasks[i] = Task{Index: i, LigandPath: p}
	}
	return tasks
}
