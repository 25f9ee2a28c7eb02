package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/me/dockscreen/internal/docking"
	"github.com/me/dockscreen/internal/invoke"
	"github.com/me/dockscreen/internal/metrics"
	"github.com/me/dockscreen/internal/store"
)

// newTransport builds the configured docking transport. Rank 0 always docks
// in this process.
func newTransport(stderr io.Writer) (docking.Transport, error) {
	inv := invoke.NewLocalInvoker(logger)
	work := docking.DockerWork(docking.NewDocker(cfg.Docking, inv, logger), logger)

	if cfg.Docking.Transport == "local" {
		return &docking.LocalTransport{Work: work}, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate worker executable: %w", err)
	}
	command := []string{exe, "dock", "worker", "--log-level", flagLogLevel, "--log-format", flagLogFormat}
	return docking.NewProcessTransport(command, cfg.Docking, work, inv, stderr, logger), nil
}

// openStore opens the run history, or returns nil when it is disabled.
func openStore(ctx context.Context) (*store.SQLiteStore, error) {
	if cfg.Store.Path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	st, err := store.NewSQLiteStore(cfg.Store.Path, logger)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return st, nil
}

// recorder converts an optional store to a docking.Recorder without
// producing a non-nil interface around a nil pointer.
func recorder(st *store.SQLiteStore) docking.Recorder {
	if st == nil {
		return nil
	}
	return st
}

func newCollector() *metrics.Collector {
	return metrics.NewCollector(flagMetrics || flagMetricsFile != "")
}

// emitMetrics prints and optionally writes the collected metrics.
func emitMetrics(c *metrics.Collector, stderr io.Writer) error {
	m := c.Finalize()
	if m == nil {
		return nil
	}
	if flagMetrics {
		metrics.PrintSummary(stderr, m)
	}
	if flagMetricsFile == "" {
		return nil
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	if err := os.WriteFile(flagMetricsFile, data, 0o644); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
