// Package cli implements the dockscreen command tree.
package cli

import (
	"log/slog"

	"github.com/me/dockscreen/internal/config"
	"github.com/me/dockscreen/internal/logging"
	"github.com/me/dockscreen/internal/metrics"
	"github.com/spf13/cobra"
)

var (
	flagConfig      string
	flagDebug       bool
	flagQuiet       bool
	flagLogLevel    string
	flagLogFormat   string
	flagMetrics     bool
	flagMetricsFile string

	logger    *slog.Logger
	cfg       config.Config
	collector *metrics.Collector
)

// NewRootCmd creates the root cobra command for the dockscreen CLI.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:     "dockscreen",
		Short:   "Virtual screening pipeline: ligand preparation, distributed docking, reports",
		Version: version,
		Long: `dockscreen converts a table of ligands to 3D structures, docks them against a
receptor across cooperating workers and renders per-ligand reports.

Examples:
  # Full pipeline with the built-in defaults
  dockscreen run

  # Dock already prepared ligands on 4 workers
  dockscreen --config screen.yaml dock

  # Browse the generated views
  dockscreen serve --addr :8080
`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagDebug {
				flagLogLevel = "debug"
			} else if flagQuiet {
				flagLogLevel = "quiet"
			}
			format, err := logging.ParseFormat(flagLogFormat)
			if err != nil {
				return err
			}
			flagLogFormat = format
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(flagLogLevel), format, cmd.ErrOrStderr())

			cfg, err = config.Load(flagConfig)
			return err
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "YAML configuration file (defaults apply when empty)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Only log errors")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")
	root.PersistentFlags().BoolVar(&flagMetrics, "metrics", false, "Print stage metrics (duration, ligands) when done")
	root.PersistentFlags().StringVar(&flagMetricsFile, "metrics-file", "", "Also write stage metrics as JSON to this file")

	root.AddCommand(
		newRunCmd(version),
		newPrepareCmd(),
		newDockCmd(),
		newReportCmd(version),
		newServeCmd(version),
		newHistoryCmd(),
		newCheckCmd(),
	)

	return root
}
