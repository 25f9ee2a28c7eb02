package cli

import (
	"github.com/me/dockscreen/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(version string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the generated views and the run history API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}
			opts := []server.Option{server.WithVersion(version)}
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			if st != nil {
				defer st.Close()
				opts = append(opts, server.WithStore(st))
			}
			return server.New(cfg.Server, cfg.Report.ViewsDir, logger, opts...).ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
