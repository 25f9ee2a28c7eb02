// Package pipeline chains ligand preparation, distributed docking and
// reporting into one screening run.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/me/dockscreen/internal/config"
	"github.com/me/dockscreen/internal/docking"
	"github.com/me/dockscreen/internal/invoke"
	"github.com/me/dockscreen/internal/ligand"
	"github.com/me/dockscreen/internal/metrics"
	"github.com/me/dockscreen/internal/report"
)

// Deps are the collaborators a pipeline run needs.
type Deps struct {
	Converter invoke.Invoker    // runs the ligand converter
	Transport docking.Transport // scatters docking tasks
	Recorder  docking.Recorder  // optional run history
	Metrics   *metrics.Collector
	Stdout    io.Writer // progress and tables; nil discards
	Version   string
}

// Pipeline runs the screening stages against one configuration.
type Pipeline struct {
	cfg    config.Config
	deps   Deps
	out    io.Writer
	logger *slog.Logger
}

// New creates a Pipeline.
func New(cfg config.Config, deps Deps, logger *slog.Logger) *Pipeline {
	out := deps.Stdout
	if out == nil {
		out = io.Discard
	}
	return &Pipeline{cfg: cfg, deps: deps, out: out, logger: logger.With("component", "pipeline")}
}

// Run executes prepare, dock and report in order. The first stage error
// aborts the run; later stages do not start.
func Run(ctx context.Context, cfg config.Config, deps Deps, logger *slog.Logger) error {
	return New(cfg, deps, logger).Run(ctx)
}

// Run implements the package-level Run.
func (p *Pipeline) Run(ctx context.Context) error {
	start := time.Now()
	fmt.Fprintln(p.out, "=== dockscreen pipeline ===")

	steps := []struct {
		stage string
		title string
		run   func(context.Context) error
	}{
		{StagePrepare, "Preparing ligands", func(ctx context.Context) error { _, err := p.Prepare(ctx); return err }},
		{StageDock, "Docking", func(ctx context.Context) error { _, err := p.Dock(ctx); return err }},
		{StageReport, "Generating reports", func(ctx context.Context) error { _, err := p.Report(ctx); return err }},
	}
	for _, s := range steps {
		fmt.Fprintf(p.out, "\n==> %s...\n", s.title)
		if err := s.run(ctx); err != nil {
			p.logger.Error("stage failed", "stage", s.stage, "error", err)
			return err
		}
	}

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, "Pipeline completed successfully.")
	fmt.Fprintf(p.out, "Total time: %.2f seconds\n", time.Since(start).Seconds())
	fmt.Fprintf(p.out, "Reports in: %s\n", p.cfg.Report.ViewsDir)
	fmt.Fprintf(p.out, "Summary table: %s\n", p.cfg.Report.SummaryPath)
	return nil
}

// Prepare converts every descriptor of the input table to a structure file.
func (p *Pipeline) Prepare(ctx context.Context) (sum *ligand.Summary, err error) {
	stageStart := time.Now()
	defer func() { p.recordPrep(stageStart, sum, err) }()

	f, err := os.Open(p.cfg.Prep.InputCSV)
	if err != nil {
		return nil, &StageError{Stage: StagePrepare, Err: fmt.Errorf("input table: %w", err)}
	}
	fmt.Fprintf(p.out, "Reading %s...\n", p.cfg.Prep.InputCSV)
	descs, err := ligand.ReadTable(f)
	f.Close()
	if err != nil {
		return nil, &StageError{Stage: StagePrepare, Err: err}
	}

	fmt.Fprintf(p.out, "Preparing %d molecules on %d workers.\n", len(descs), p.cfg.Prep.PrepWorkers())
	prep := ligand.NewPreparer(p.cfg.Prep, p.deps.Converter, p.logger)
	sum, err = prep.Prepare(ctx, descs, p.out)
	if err != nil {
		return sum, &StageError{Stage: StagePrepare, Err: err}
	}

	fmt.Fprintf(p.out, "\n\nCompleted in %.2f seconds.\n", sum.Duration.Seconds())
	fmt.Fprintf(p.out, "Rate: %.2f molecules/second\n", sum.Rate())
	fmt.Fprintf(p.out, "Structures ready: %d/%d (%d timed out, %d failed)\n",
		sum.Done(), sum.Total, sum.TimedOut, sum.Failed)
	return sum, nil
}

// Dock docks every prepared structure across the configured workers and
// prints the ranked table.
func (p *Pipeline) Dock(ctx context.Context) (rep *docking.Report, err error) {
	stageStart := time.Now()
	defer func() { p.recordDock(stageStart, rep, err) }()

	if _, err := os.Stat(p.cfg.Docking.Receptor); err != nil {
		return nil, &StageError{Stage: StageDock, Err: fmt.Errorf("receptor: %w", err)}
	}
	ligands, err := docking.ListLigands(p.cfg.Docking.LigandDir)
	if err != nil {
		return nil, &StageError{Stage: StageDock, Err: err}
	}
	if len(ligands) == 0 {
		p.logger.Warn("no prepared ligands", "dir", p.cfg.Docking.LigandDir)
	}

	fmt.Fprintf(p.out, "Docking on %d workers.\n", p.cfg.Docking.Workers)
	fmt.Fprintf(p.out, "Target: %s\n", p.cfg.Docking.Receptor)
	fmt.Fprintf(p.out, "Tasks to process: %d\n", len(ligands))

	coord := docking.NewCoordinator(p.cfg.Docking, p.deps.Transport, p.deps.Recorder, p.logger)
	rep, err = coord.Run(ctx, ligands)
	if err != nil {
		return rep, &StageError{Stage: StageDock, Err: err}
	}
	p.deps.Metrics.SetRunID(rep.RunID)

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, "--- FINAL REPORT ---")
	if err := docking.RenderTable(p.out, rep.Results); err != nil {
		return rep, &StageError{Stage: StageDock, Err: err}
	}
	fmt.Fprintf(p.out, "\nResults saved in '%s' (run %s)\n", p.cfg.Docking.ResultsDir, rep.RunID)
	return rep, nil
}

// Report writes the per-ligand views, the manifest and the summary table.
func (p *Pipeline) Report(ctx context.Context) (res *report.Result, err error) {
	stageStart := time.Now()
	defer func() { p.recordReport(stageStart, res, err) }()

	gen := report.NewGenerator(p.cfg.Report, p.cfg.Docking, p.deps.Version, p.logger)
	outputs, err := gen.Outputs()
	if err != nil {
		return nil, &StageError{Stage: StageReport, Err: err}
	}
	fmt.Fprintf(p.out, "Generating %d reports...\n", len(outputs))

	res, err = gen.Generate(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageReport, Err: err}
	}
	fmt.Fprintf(p.out, "Views: %s (%d pages)\n", p.cfg.Report.ViewsDir, len(res.Manifest.Pages))
	fmt.Fprintf(p.out, "Manifest: %s, %s\n", res.ManifestJSON, res.ManifestJS)
	fmt.Fprintf(p.out, "Summary: %s\n", res.SummaryPath)
	return res, nil
}

func stageStatus(err error) (string, string) {
	if err != nil {
		return metrics.StatusFailed, err.Error()
	}
	return metrics.StatusSuccess, ""
}

func (p *Pipeline) recordPrep(start time.Time, sum *ligand.Summary, err error) {
	if !p.deps.Metrics.Enabled() {
		return
	}
	m := metrics.StageMetrics{Stage: StagePrepare, StartTime: start, Duration: time.Since(start)}
	m.Status, m.Error = stageStatus(err)
	if sum != nil {
		for _, r := range sum.Results {
			status := metrics.StatusSuccess
			switch r.Status {
			case ligand.StatusSkipped:
				status = metrics.StatusSkipped
			case ligand.StatusError, ligand.StatusTimeout:
				status = metrics.StatusFailed
			}
			m.Tasks = append(m.Tasks, metrics.TaskMetrics{Name: r.Descriptor.Name, Duration: r.Elapsed, Status: status})
		}
	}
	p.deps.Metrics.RecordStage(m)
}

func (p *Pipeline) recordDock(start time.Time, rep *docking.Report, err error) {
	if !p.deps.Metrics.Enabled() {
		return
	}
	m := metrics.StageMetrics{Stage: StageDock, StartTime: start, Duration: time.Since(start)}
	m.Status, m.Error = stageStatus(err)
	if rep != nil {
		for _, r := range rep.Results {
			status := metrics.StatusSuccess
			if !r.OK() {
				status = metrics.StatusFailed
			}
			m.Tasks = append(m.Tasks, metrics.TaskMetrics{Name: r.Ligand, Duration: r.Elapsed, Status: status})
		}
	}
	p.deps.Metrics.RecordStage(m)
}

func (p *Pipeline) recordReport(start time.Time, res *report.Result, err error) {
	if !p.deps.Metrics.Enabled() {
		return
	}
	m := metrics.StageMetrics{Stage: StageReport, StartTime: start, Duration: time.Since(start)}
	m.Status, m.Error = stageStatus(err)
	if res != nil {
		for _, r := range res.Records {
			status := metrics.StatusSuccess
			if !r.Metrics.HasAffinity {
				status = metrics.StatusFailed
			}
			m.Tasks = append(m.Tasks, metrics.TaskMetrics{Name: r.Name, Status: status})
		}
	}
	p.deps.Metrics.RecordStage(m)
}
