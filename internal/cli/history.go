package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/me/dockscreen/internal/docking"
	"github.com/me/dockscreen/internal/store"
	"github.com/spf13/cobra"
)

var errHistoryDisabled = errors.New("run history is disabled (store.path is empty)")

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded docking runs, or show one run's ranked results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			if st == nil {
				return errHistoryDisabled
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				return showRun(cmd, st, out, args[0])
			}

			runs, total, err := st.ListRuns(cmd.Context(), store.ListOptions{Limit: limit})
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tWORKERS\tLIGANDS\tOK\tFAILED\tSTATE")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
					r.ID, humanize.Time(r.StartedAt), r.Workers, r.Ligands, r.Succeeded, r.Failed, r.State)
			}
			tw.Flush()
			if total > len(runs) {
				fmt.Fprintf(out, "(%d of %d runs)\n", len(runs), total)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	return cmd
}

func showRun(cmd *cobra.Command, st store.Store, out io.Writer, id string) error {
	run, err := st.GetRun(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}
	results, err := st.ListResults(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}

	fmt.Fprintf(out, "Run:     %s\n", run.ID)
	fmt.Fprintf(out, "State:   %s\n", run.State)
	fmt.Fprintf(out, "Started: %s (%s)\n", run.StartedAt.Local().Format(time.DateTime), humanize.Time(run.StartedAt))
	if run.CompletedAt != nil {
		fmt.Fprintf(out, "Took:    %s\n", run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(out, "Workers: %d, ligands: %s (%d ok, %d failed)\n\n",
		run.Workers, humanize.Comma(int64(run.Ligands)), run.Succeeded, run.Failed)
	return docking.RenderTable(out, results)
}
