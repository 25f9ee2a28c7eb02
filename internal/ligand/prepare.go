package ligand

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/me/dockscreen/internal/config"
	"github.com/me/dockscreen/internal/invoke"
	"golang.org/x/sync/errgroup"
)

// Status is the single-character outcome of one preparation task.
type Status byte

const (
	StatusOK      Status = '.'
	StatusTimeout Status = 'T'
	StatusError   Status = 'E'
	StatusSkipped Status = 'S' // output already present
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTimeout:
		return "timeout"
	case StatusError:
		return "error"
	case StatusSkipped:
		return "skipped"
	}
	return "unknown"
}

// TaskResult records what happened to one descriptor.
type TaskResult struct {
	Descriptor Descriptor
	Path       string
	Status     Status
	Err        error
	Elapsed    time.Duration
}

// Summary aggregates a preparation batch.
type Summary struct {
	Total     int
	Succeeded int
	TimedOut  int
	Failed    int
	Skipped   int
	Duration  time.Duration
	Results   []TaskResult
}

// Done returns the number of structure files available after the batch.
func (s *Summary) Done() int {
	return s.Succeeded + s.Skipped
}

// Rate returns processed molecules per second.
func (s *Summary) Rate() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Total) / s.Duration.Seconds()
}

func (s *Summary) add(r TaskResult) {
	s.Results = append(s.Results, r)
	switch r.Status {
	case StatusOK:
		s.Succeeded++
	case StatusTimeout:
		s.TimedOut++
	case StatusError:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
}

// Preparer converts descriptors to structure files with a bounded pool of converter processes.
type Preparer struct {
	cfg     config.PrepConfig
	invoker invoke.Invoker
	logger  *slog.Logger
}

// NewPreparer creates a Preparer.
func NewPreparer(cfg config.PrepConfig, inv invoke.Invoker, logger *slog.Logger) *Preparer {
	return &Preparer{
		cfg:     cfg,
		invoker: inv,
		logger:  logger.With("component", "prep"),
	}
}

// OutputPath returns the structure file path for a descriptor, or "" if the
// sanitized name is empty.
func (p *Preparer) OutputPath(d Descriptor) string {
	stem := SanitizeName(d.Name)
	if stem == "" {
		return ""
	}
	return filepath.Join(p.cfg.OutputDir, stem+config.StructureExt)
}

// Args returns the converter arguments for one descriptor.
func (p *Preparer) Args(smiles, outPath string) []string {
	args := []string{
		"-:" + smiles,
		"-O", outPath,
		"--gen3d",
		"-p", strconv.FormatFloat(p.cfg.PH, 'f', -1, 64),
		"--partialcharge",
	}
	if p.cfg.ChargeModel != "" {
		args = append(args, p.cfg.ChargeModel)
	}
	return args
}

// Prepare converts every descriptor. One status symbol per finished task is
// written to progress as soon as it completes. Individual failures never stop
// the batch; only context cancellation does.
func (p *Preparer) Prepare(ctx context.Context, descs []Descriptor, progress io.Writer) (*Summary, error) {
	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if progress == nil {
		progress = io.Discard
	}
	twins := p.collisions(descs)

	workers := p.cfg.PrepWorkers()
	p.logger.Info("starting preparation", "molecules", len(descs), "workers", workers)

	start := time.Now()
	results := make(chan TaskResult, len(descs))

	summary := &Summary{Total: len(descs)}
	var collect sync.WaitGroup
	collect.Add(1)
	go func() {
		defer collect.Done()
		for r := range results {
			progress.Write([]byte{byte(r.Status)})
			summary.add(r)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, d := range descs {
		if gctx.Err() != nil {
			break
		}
		if first, ok := twins[i]; ok {
			results <- TaskResult{
				Descriptor: d,
				Path:       p.OutputPath(d),
				Status:     StatusError,
				Err:        fmt.Errorf("ligand %q maps to the same file as %q", d.Name, first),
			}
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			r := p.prepareOne(gctx, d)
			r.Elapsed = time.Since(start)
			results <- r
			return nil
		})
	}
	err := g.Wait()
	close(results)
	collect.Wait()

	summary.Duration = time.Since(start)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return summary, fmt.Errorf("preparation interrupted: %w", err)
	}

	p.logger.Info("preparation finished",
		"total", summary.Total,
		"ok", summary.Succeeded,
		"skipped", summary.Skipped,
		"timeout", summary.TimedOut,
		"error", summary.Failed,
		"duration", summary.Duration.Round(time.Millisecond).String(),
	)
	return summary, nil
}

func (p *Preparer) prepareOne(ctx context.Context, d Descriptor) TaskResult {
	res := TaskResult{Descriptor: d, Path: p.OutputPath(d)}
	if res.Path == "" {
		res.Status = StatusError
		res.Err = fmt.Errorf("ligand %q has no usable characters for a file name", d.Name)
		return res
	}

	if info, err := os.Stat(res.Path); err == nil && info.Size() > 0 {
		res.Status = StatusSkipped
		return res
	}

	cmd := append([]string{p.cfg.Converter}, p.Args(d.SMILES, res.Path)...)
	out, err := p.invoker.Invoke(ctx, invoke.Invocation{
		Command:       cmd,
		Timeout:       p.cfg.Timeout,
		DiscardStderr: true,
	})
	switch {
	case invoke.IsTimeout(err):
		res.Status = StatusTimeout
		res.Err = err
	case err != nil:
		res.Status = StatusError
		res.Err = err
	case !out.Succeeded():
		res.Status = StatusError
		res.Err = fmt.Errorf("%s exited with code %d", p.cfg.Converter, out.ExitCode)
	default:
		res.Status = StatusOK
		return res
	}

	// A partial file would be mistaken for a cache hit on the next run.
	os.Remove(res.Path)
	p.logger.Debug("conversion failed", "ligand", d.Name, "status", res.Status.String(), "error", res.Err)
	return res
}

// collisions maps the index of every descriptor whose sanitized name was
// already taken to the name that took it. Only the first of each group is converted.
func (p *Preparer) collisions(descs []Descriptor) map[int]string {
	seen := make(map[string]string, len(descs))
	twins := make(map[int]string)
	for i, d := range descs {
		stem := SanitizeName(d.Name)
		if stem == "" {
			continue
		}
		if prev, ok := seen[stem]; ok {
			p.logger.Warn("ligand names collide after sanitizing, keeping the first", "first", prev, "second", d.Name, "file", stem)
			twins[i] = prev
			continue
		}
		seen[stem] = d.Name
	}
	return twins
}
