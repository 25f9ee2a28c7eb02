package docking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/me/dockscreen/internal/config"
	"github.com/me/dockscreen/internal/invoke"
	"github.com/me/dockscreen/internal/logging"
)

// scoreByName docks without an engine: the score is derived from the ligand
// name and names starting with "fail" produce failed results.
func scoreByName(_ context.Context, rank, _ int, tasks []Task) []Result {
	out := make([]Result, 0, len(tasks))
	for _, t := range tasks {
		name := LigandName(t.LigandPath)
		if strings.HasPrefix(name, "fail") {
			r := failed(t, name, "no result line in engine output (exit code 1)", 0)
			r.Worker = rank
			out = append(out, r)
			continue
		}
		out = append(out, Result{Index: t.Index, Ligand: name, Score: -float64(len(name)), Status: StatusOK, Worker: rank})
	}
	return out
}

// inProcessChild stands in for a worker process by running ServeWorker on the invocation's stdin.
func inProcessChild(t *testing.T) invoke.Invoker {
	t.Helper()
	return invoke.InvokerFunc(func(ctx context.Context, inv invoke.Invocation) (*invoke.Outcome, error) {
		var stdout bytes.Buffer
		err := ServeWorker(ctx, inv.Stdin, &stdout, func(config.DockingConfig) WorkFunc { return scoreByName })
		if err != nil {
			io.WriteString(inv.Stderr, err.Error())
			return &invoke.Outcome{ExitCode: 1}, nil
		}
		return &invoke.Outcome{Stdout: stdout.String()}, nil
	})
}

func tasksFor(names ...string) []Task {
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = "ligands/" + n + ".pdbqt"
	}
	return Tasks(paths)
}

func TestLocalTransport_Gather(t *testing.T) {
	tr := &LocalTransport{Work: scoreByName}
	parts, _ := Partition(tasksFor("aa", "bbb", "c", "fail1"), 3)

	got, err := tr.Gather(context.Background(), parts)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d result lists, want 3", len(got))
	}
	for rank, list := range got {
		for _, r := range list {
			if r.Worker != rank {
				t.Errorf("result %s from worker %d in list %d", r.Ligand, r.Worker, rank)
			}
		}
	}
	if len(got[0]) != 2 || got[0][1].Ligand != "fail1" {
		t.Errorf("rank 0 results = %+v", got[0])
	}
}

func TestProcessTransport_Gather(t *testing.T) {
	cfg := testDockingConfig(t)
	var mu sync.Mutex
	var spawned []int
	child := inProcessChild(t)
	inv := invoke.InvokerFunc(func(ctx context.Context, inv invoke.Invocation) (*invoke.Outcome, error) {
		if strings.Join(inv.Command, " ") != "dockscreen dock worker" {
			t.Errorf("command = %v", inv.Command)
		}
		mu.Lock()
		spawned = append(spawned, 0)
		mu.Unlock()
		return child.Invoke(ctx, inv)
	})
	tr := NewProcessTransport([]string{"dockscreen", "dock", "worker"}, cfg, scoreByName, inv, io.Discard, logging.Discard())

	parts, _ := Partition(tasksFor("a", "bb", "ccc", "dddd", "fail"), 3)
	got, err := tr.Gather(context.Background(), parts)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(spawned) != 2 {
		t.Errorf("spawned %d children, want 2 (rank 0 runs in the coordinator)", len(spawned))
	}
	merged := Merge(got)
	if names(merged) != "dddd,ccc,bb,a,fail" {
		t.Errorf("merged = %s", names(merged))
	}
	for rank, list := range got {
		for _, r := range list {
			if r.Worker != rank {
				t.Errorf("%s: worker = %d, want %d", r.Ligand, r.Worker, rank)
			}
		}
	}
}

func TestProcessTransport_WorkerCrashFailsGather(t *testing.T) {
	cfg := testDockingConfig(t)
	inv := invoke.InvokerFunc(func(_ context.Context, _ invoke.Invocation) (*invoke.Outcome, error) {
		return &invoke.Outcome{ExitCode: 137}, nil
	})
	tr := NewProcessTransport([]string{"dockscreen", "dock", "worker"}, cfg, scoreByName, inv, nil, logging.Discard())

	parts, _ := Partition(tasksFor("a", "b"), 2)
	_, err := tr.Gather(context.Background(), parts)
	if !errors.Is(err, ErrWorkerFailed) {
		t.Fatalf("err = %v, want ErrWorkerFailed", err)
	}
	if !strings.Contains(err.Error(), "code 137") {
		t.Errorf("err = %v", err)
	}
}

func TestProcessTransport_GarbageReply(t *testing.T) {
	cfg := testDockingConfig(t)
	inv := invoke.InvokerFunc(func(_ context.Context, _ invoke.Invocation) (*invoke.Outcome, error) {
		return &invoke.Outcome{Stdout: "Segmentation fault\n"}, nil
	})
	tr := NewProcessTransport([]string{"w"}, cfg, scoreByName, inv, nil, logging.Discard())

	parts, _ := Partition(tasksFor("a", "b"), 2)
	if _, err := tr.Gather(context.Background(), parts); !errors.Is(err, ErrWorkerFailed) {
		t.Fatalf("err = %v, want ErrWorkerFailed", err)
	}
}

func TestProcessTransport_SendsResolvedEngine(t *testing.T) {
	cfg := testDockingConfig(t)
	cfg.Engine = "/usr/local/bin/vina"
	var env Envelope
	inv := invoke.InvokerFunc(func(ctx context.Context, inv invoke.Invocation) (*invoke.Outcome, error) {
		raw, _ := io.ReadAll(inv.Stdin)
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		return inProcessChild(t).Invoke(ctx, invoke.Invocation{Stdin: bytes.NewReader(raw), Stderr: io.Discard})
	})
	tr := NewProcessTransport([]string{"w"}, cfg, scoreByName, inv, nil, logging.Discard())

	parts, _ := Partition(tasksFor("a", "b", "c"), 2)
	if _, err := tr.Gather(context.Background(), parts); err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if env.Docking.Engine != "/usr/local/bin/vina" || env.Rank != 1 || env.Size != 2 || env.Mode != ModeDock {
		t.Errorf("envelope = %+v", env)
	}
	if len(env.Tasks) != 1 || env.Tasks[0].Index != 1 {
		t.Errorf("rank 1 tasks = %+v", env.Tasks)
	}
}

func TestProcessTransport_Probe(t *testing.T) {
	cfg := testDockingConfig(t)
	tr := NewProcessTransport([]string{"w"}, cfg, scoreByName, inProcessChild(t), nil, logging.Discard())

	infos, err := tr.Probe(context.Background(), 3)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("got %d infos", len(infos))
	}
	for rank, info := range infos {
		if info.Rank != rank || info.Size != 3 || info.PID != os.Getpid() {
			t.Errorf("info %d = %+v", rank, info)
		}
		if !strings.Contains(info.String(), "running on") {
			t.Errorf("String() = %q", info.String())
		}
	}
}

func TestServeWorker_InvalidEnvelope(t *testing.T) {
	newWork := func(config.DockingConfig) WorkFunc { return scoreByName }
	tests := map[string]string{
		"not json":     "hello",
		"rank too big": `{"mode":"dock","rank":2,"size":2}`,
		"no size":      `{"mode":"dock","rank":0,"size":0}`,
		"bad mode":     `{"mode":"sing","rank":0,"size":1}`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			if err := ServeWorker(context.Background(), strings.NewReader(in), &out, newWork); err == nil {
				t.Errorf("expected error, wrote %q", out.String())
			}
		})
	}
}

func TestLocalTransport_Probe(t *testing.T) {
	tr := &LocalTransport{Work: scoreByName}
	if _, err := tr.Probe(context.Background(), 0); !errors.Is(err, ErrNoWorkers) {
		t.Errorf("Probe(0) err = %v", err)
	}
	infos, err := tr.Probe(context.Background(), 2)
	if err != nil || len(infos) != 2 || infos[1].Rank != 1 {
		t.Errorf("Probe(2) = %+v, %v", infos, err)
	}
}
