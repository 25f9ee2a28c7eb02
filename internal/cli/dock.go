package cli

import (
	"fmt"

	"github.com/me/dockscreen/internal/config"
	"github.com/me/dockscreen/internal/docking"
	"github.com/me/dockscreen/internal/invoke"
	"github.com/spf13/cobra"
)

func newDockCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "dock",
		Short: "Dock every prepared ligand across the configured workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if workers > 0 {
				cfg.Docking.Workers = workers
			}
			p, cleanup, err := newPipeline(cmd, "")
			if err != nil {
				return err
			}
			defer cleanup()

			_, runErr := p.Dock(cmd.Context())
			if err := emitMetrics(collector, cmd.ErrOrStderr()); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Number of workers (overrides docking.workers)")
	cmd.AddCommand(newWorkerCmd())
	return cmd
}

// newWorkerCmd is the child side of the process transport: it reads one
// envelope from stdin and writes one reply to stdout.
func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "Run one docking worker (started by the coordinator)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv := invoke.NewLocalInvoker(logger)
			return docking.ServeWorker(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(),
				func(dc config.DockingConfig) docking.WorkFunc {
					return docking.DockerWork(docking.NewDocker(dc, inv, logger), logger)
				})
		},
	}
}

func newCheckCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Start every worker and report where it runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if workers > 0 {
				cfg.Docking.Workers = workers
			}
			transport, err := newTransport(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			coord := docking.NewCoordinator(cfg.Docking, transport, nil, logger)
			infos, err := coord.Check(cmd.Context())
			if err != nil {
				return err
			}
			for _, info := range infos {
				fmt.Fprintln(cmd.OutOrStdout(), info.String())
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Number of workers (overrides docking.workers)")
	return cmd
}
