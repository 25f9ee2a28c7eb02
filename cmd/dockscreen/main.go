// dockscreen runs a virtual screening pipeline: ligand preparation,
// distributed docking and report generation.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/me/dockscreen/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "0.1.0-dev"

func main() {
	// Cancelling the context kills running converter, engine and worker processes.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(version).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
