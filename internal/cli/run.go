package cli

import (
	"github.com/me/dockscreen/internal/invoke"
	"github.com/me/dockscreen/internal/pipeline"
	"github.com/spf13/cobra"
)

// newPipeline wires a pipeline to the real converter, the configured
// transport and the run history.
func newPipeline(cmd *cobra.Command, version string) (*pipeline.Pipeline, func(), error) {
	transport, err := newTransport(cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if st != nil {
			st.Close()
		}
	}
	collector = newCollector()
	p := pipeline.New(cfg, pipeline.Deps{
		Converter: invoke.NewLocalInvoker(logger),
		Transport: transport,
		Recorder:  recorder(st),
		Metrics:   collector,
		Stdout:    cmd.OutOrStdout(),
		Version:   version,
	}, logger)
	return p, cleanup, nil
}

func newRunCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run preparation, docking and reporting in order",
		Long:  "Run executes every stage. The first failing stage aborts the run and no later stage starts.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cleanup, err := newPipeline(cmd, version)
			if err != nil {
				return err
			}
			defer cleanup()

			runErr := p.Run(cmd.Context())
			if err := emitMetrics(collector, cmd.ErrOrStderr()); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		},
	}
}

func newPrepareCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Convert the input table to 3D ligand structures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input != "" {
				cfg.Prep.InputCSV = input
			}
			p, cleanup, err := newPipeline(cmd, "")
			if err != nil {
				return err
			}
			defer cleanup()

			_, runErr := p.Prepare(cmd.Context())
			if err := emitMetrics(collector, cmd.ErrOrStderr()); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Input table (overrides prep.input_csv)")
	return cmd
}

func newReportCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Render views, the manifest and the summary table from docking outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cleanup, err := newPipeline(cmd, version)
			if err != nil {
				return err
			}
			defer cleanup()

			_, runErr := p.Report(cmd.Context())
			if err := emitMetrics(collector, cmd.ErrOrStderr()); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		},
	}
}
