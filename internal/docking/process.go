package docking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/me/dockscreen/internal/config"
	"github.com/me/dockscreen/internal/invoke"
	"golang.org/x/sync/errgroup"
)

// Worker modes carried in an Envelope.
const (
	ModeDock  = "dock"
	ModeProbe = "probe"
)

// Envelope is the assignment a coordinator sends to a worker process on stdin.
type Envelope struct {
	Mode    string               `json:"mode"`
	Rank    int                  `json:"rank"`
	Size    int                  `json:"size"`
	Docking config.DockingConfig `json:"docking"`
	Tasks   []Task               `json:"tasks"`
}

// Reply is what a worker process writes to stdout when it is done.
type Reply struct {
	Worker  WorkerInfo `json:"worker"`
	Results []Result   `json:"results"`
}

// ProcessTransport runs rank 0 in the coordinator and ranks 1..size-1 as
// child processes launched with Command.
type ProcessTransport struct {
	Command []string             // worker command, e.g. {"/usr/bin/dockscreen", "dock", "worker"}
	Docking config.DockingConfig // sent to every worker
	Work    WorkFunc             // rank 0
	Invoker invoke.Invoker
	Stderr  io.Writer // worker diagnostics; nil discards them
	logger  *slog.Logger
}

// NewProcessTransport creates a ProcessTransport.
func NewProcessTransport(command []string, cfg config.DockingConfig, work WorkFunc, inv invoke.Invoker, stderr io.Writer, logger *slog.Logger) *ProcessTransport {
	// Children must run the same engine binary the coordinator resolved.
	cfg.Engine = cfg.ResolveEngine()
	return &ProcessTransport{
		Command: command,
		Docking: cfg,
		Work:    work,
		Invoker: inv,
		Stderr:  stderr,
		logger:  logger.With("component", "process-transport"),
	}
}

// Gather implements Transport.
func (t *ProcessTransport) Gather(ctx context.Context, parts [][]Task) ([][]Result, error) {
	size := len(parts)
	out := make([][]Result, size)

	g, gctx := errgroup.WithContext(ctx)
	for rank := range parts {
		g.Go(func() error {
			if rank == 0 {
				out[0] = t.Work(gctx, 0, size, parts[0])
				return gctx.Err()
			}
			reply, err := t.spawn(gctx, Envelope{Mode: ModeDock, Rank: rank, Size: size, Docking: t.Docking, Tasks: parts[rank]})
			if err != nil {
				return err
			}
			for i := range reply.Results {
				reply.Results[i].Worker = rank
			}
			out[rank] = reply.Results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Probe implements Transport.
func (t *ProcessTransport) Probe(ctx context.Context, size int) ([]WorkerInfo, error) {
	if size < 1 {
		return nil, ErrNoWorkers
	}
	infos := make([]WorkerInfo, size)
	infos[0] = localInfo(0, size)

	g, gctx := errgroup.WithContext(ctx)
	for rank := 1; rank < size; rank++ {
		g.Go(func() error {
			reply, err := t.spawn(gctx, Envelope{Mode: ModeProbe, Rank: rank, Size: size, Docking: t.Docking})
			if err != nil {
				return err
			}
			infos[rank] = reply.Worker
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

func (t *ProcessTransport) spawn(ctx context.Context, env Envelope) (*Reply, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope for worker %d: %w", env.Rank, err)
	}
	stderr := t.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	t.logger.Debug("spawning worker", "rank", env.Rank, "tasks", len(env.Tasks))
	outcome, err := t.Invoker.Invoke(ctx, invoke.Invocation{
		Command: t.Command,
		Stdin:   bytes.NewReader(payload),
		Stderr:  stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: rank %d: %w", ErrWorkerFailed, env.Rank, err)
	}
	if !outcome.Succeeded() {
		return nil, fmt.Errorf("%w: rank %d exited with code %d", ErrWorkerFailed, env.Rank, outcome.ExitCode)
	}

	var reply Reply
	if err := json.NewDecoder(strings.NewReader(outcome.Stdout)).Decode(&reply); err != nil {
		return nil, fmt.Errorf("%w: rank %d: decode reply: %w", ErrWorkerFailed, env.Rank, err)
	}
	if reply.Worker.Rank != env.Rank {
		return nil, fmt.Errorf("%w: rank %d replied as rank %d", ErrWorkerFailed, env.Rank, reply.Worker.Rank)
	}
	return &reply, nil
}

// ServeWorker is the child side of ProcessTransport: it reads one Envelope
// from r, does the work and writes one Reply to w. newWork builds the docking
// function from the configuration the coordinator sent.
func ServeWorker(ctx context.Context, r io.Reader, w io.Writer, newWork func(config.DockingConfig) WorkFunc) error {
	var env Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.Size < 1 || env.Rank < 0 || env.Rank >= env.Size {
		return fmt.Errorf("invalid rank %d for size %d", env.Rank, env.Size)
	}

	reply := Reply{Worker: localInfo(env.Rank, env.Size), Results: []Result{}}
	switch env.Mode {
	case ModeProbe:
	case ModeDock:
		reply.Results = newWork(env.Docking)(ctx, env.Rank, env.Size, env.Tasks)
		if err := ctx.Err(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown worker mode %q", env.Mode)
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(reply); err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}
	return nil
}
