package docking

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
)

// Transport scatters partitions to the workers and gathers their result lists.
// Between the two points workers run independently and never talk to each other.
type Transport interface {
	// Gather runs parts[r] on worker r and returns the result lists in rank order.
	// Any worker failure fails the whole gather.
	Gather(ctx context.Context, parts [][]Task) ([][]Result, error)

	// Probe asks every worker of a size-worker layout to report where it runs.
	Probe(ctx context.Context, size int) ([]WorkerInfo, error)
}

// WorkerInfo identifies a running worker.
type WorkerInfo struct {
	Rank int    `json:"rank"`
	Size int    `json:"size"`
	Host string `json:"host"`
	PID  int    `json:"pid"`
}

func (w WorkerInfo) String() string {
	return fmt.Sprintf("worker %d/%d running on %s (pid %d)", w.Rank, w.Size, w.Host, w.PID)
}

func localInfo(rank, size int) WorkerInfo {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return WorkerInfo{Rank: rank, Size: size, Host: host, PID: os.Getpid()}
}

// LocalTransport runs every rank as a goroutine of the current process.
type LocalTransport struct {
	Work WorkFunc
}

// Gather implements Transport.
func (t *LocalTransport) Gather(ctx context.Context, parts [][]Task) ([][]Result, error) {
	size := len(parts)
	out := make([][]Result, size)
	var g errgroup.Group
	for rank := range parts {
		g.Go(func() error {
			out[rank] = t.Work(ctx, rank, size, parts[rank])
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Probe implements Transport.
func (t *LocalTransport) Probe(_ context.Context, size int) ([]WorkerInfo, error) {
	if size < 1 {
		return nil, ErrNoWorkers
	}
	infos := make([]WorkerInfo, size)
	for rank := range infos {
		infos[rank] = localInfo(rank, size)
	}
	return infos, nil
}
