package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/me/dockscreen/internal/config"
)

// OutputSuffix ends every docking output file name.
const OutputSuffix = "_out" + config.StructureExt

// Result describes one reporting run.
type Result struct {
	Records      []Record
	Manifest     *Manifest
	SummaryPath  string
	ManifestJSON string
	ManifestJS   string
}

// Generator builds the reports of one results directory.
type Generator struct {
	cfg     config.ReportConfig
	docking config.DockingConfig
	version string
	logger  *slog.Logger
	now     func() time.Time
}

// NewGenerator creates a Generator. version is shown in the page overlay.
func NewGenerator(cfg config.ReportConfig, docking config.DockingConfig, version string, logger *slog.Logger) *Generator {
	return &Generator{
		cfg:     cfg,
		docking: docking,
		version: version,
		logger:  logger.With("component", "report"),
		now:     time.Now,
	}
}

// Outputs lists the docking outputs sorted by name.
func (g *Generator) Outputs() ([]string, error) {
	return filepath.Glob(filepath.Join(g.docking.ResultsDir, "*"+OutputSuffix))
}

// Generate writes one view per docking output, the manifest and the summary.
// Unreadable metrics degrade to placeholders. Failing to write a page is
// fatal, so the manifest and the summary always list the same ligands.
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	if err := os.MkdirAll(g.cfg.ViewsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create views dir: %w", err)
	}
	receptor, err := os.ReadFile(g.docking.Receptor)
	if err != nil {
		return nil, fmt.Errorf("read receptor: %w", err)
	}
	outputs, err := g.Outputs()
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	g.logger.Info("generating reports", "outputs", len(outputs), "views_dir", g.cfg.ViewsDir)

	res := &Result{
		Records:     make([]Record, 0, len(outputs)),
		Manifest:    NewManifest(g.now()),
		SummaryPath: g.cfg.SummaryPath,
	}
	for _, out := range outputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(out), OutputSuffix)

		var ligand []byte
		m, err := ExtractMetrics(out)
		if err != nil {
			g.logger.Warn("metrics unavailable", "ligand", name, "error", err)
		} else if ligand, err = os.ReadFile(out); err != nil {
			g.logger.Warn("ligand structure unavailable", "ligand", name, "error", err)
		}

		page := filepath.ToSlash(filepath.Join(g.cfg.ViewsDir, name+".html"))
		err = WriteView(page, View{
			Name:           name,
			ViewerScript:   g.cfg.ViewerScript,
			Receptor:       string(receptor),
			Ligand:         string(ligand),
			Target:         g.cfg.Target,
			Metrics:        m,
			Pipeline:       strings.TrimSpace(g.cfg.PipelineName + " " + g.version),
			Engine:         g.cfg.EngineName,
			Exhaustiveness: g.docking.Exhaustiveness,
		})
		if err != nil {
			return nil, err
		}
		res.Manifest.Add(name, page)
		res.Records = append(res.Records, Record{Name: name, Metrics: m})
		g.logger.Debug("view written", "ligand", name, "affinity", m.AffinityText(), "efficiency", m.Efficiency)
	}

	if res.ManifestJSON, res.ManifestJS, err = res.Manifest.Write(g.cfg.ViewsDir); err != nil {
		return nil, err
	}
	if err := WriteSummary(g.cfg.SummaryPath, res.Records); err != nil {
		return nil, err
	}

	g.logger.Info("reports written",
		"pages", len(res.Manifest.Pages),
		"summary", res.SummaryPath,
		"manifest", res.ManifestJSON,
	)
	return res, nil
}
