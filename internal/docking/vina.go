package docking

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/me/dockscreen/internal/config"
	"github.com/me/dockscreen/internal/invoke"
)

// Docker runs the docking engine for single ligands.
type Docker struct {
	cfg     config.DockingConfig
	engine  string
	invoker invoke.Invoker
	logger  *slog.Logger
}

// NewDocker creates a Docker. The engine path is resolved once here.
func NewDocker(cfg config.DockingConfig, inv invoke.Invoker, logger *slog.Logger) *Docker {
	return &Docker{
		cfg:     cfg,
		engine:  cfg.ResolveEngine(),
		invoker: inv,
		logger:  logger.With("component", "docker"),
	}
}

// OutPath returns the docked-pose output file for a ligand.
func (d *Docker) OutPath(ligand string) string {
	return filepath.Join(d.cfg.ResultsDir, ligand+"_out"+config.StructureExt)
}

// Args returns the engine arguments for one ligand.
func (d *Docker) Args(ligandPath, outPath string) []string {
	c, s := d.cfg.Center, d.cfg.Size
	return []string{
		"--receptor", d.cfg.Receptor,
		"--ligand", ligandPath,
		"--center_x", formatFloat(c[0]), "--center_y", formatFloat(c[1]), "--center_z", formatFloat(c[2]),
		"--size_x", formatFloat(s[0]), "--size_y", formatFloat(s[1]), "--size_z", formatFloat(s[2]),
		"--out", outPath,
		"--cpu", strconv.Itoa(d.cfg.CPU),
		"--exhaustiveness", strconv.Itoa(d.cfg.Exhaustiveness),
	}
}

// Dock runs the engine on one task. It never returns an error: an invocation
// failure yields a failed result with zero elapsed time, an unparsable output
// a failed result with the measured elapsed time.
func (d *Docker) Dock(ctx context.Context, task Task) Result {
	ligand := LigandName(task.LigandPath)
	outPath := d.OutPath(ligand)
	cmd := append([]string{d.engine}, d.Args(task.LigandPath, outPath)...)

	start := time.Now()
	out, err := d.invoker.Invoke(ctx, invoke.Invocation{Command: cmd})
	if err != nil {
		d.logger.Debug("engine invocation failed", "ligand", ligand, "error", err)
		return failed(task, ligand, err.Error(), 0)
	}
	elapsed := time.Since(start)

	score, ok := ParseBestScore(out.Stdout)
	if !ok {
		return failed(task, ligand, fmt.Sprintf("no result line in engine output (exit code %d)", out.ExitCode), elapsed)
	}
	return Result{
		Index:   task.Index,
		Ligand:  ligand,
		Score:   score,
		Elapsed: elapsed,
		Status:  StatusOK,
		OutPath: outPath,
	}
}

// ParseBestScore finds the first line whose first token is "1" (the best
// pose) and returns its second token as the binding score.
func ParseBestScore(stdout string) (float64, bool) {
	for _, line := range strings.Split(stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "1" {
			continue
		}
		score, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0, false
		}
		return score, true
	}
	return 0, false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
