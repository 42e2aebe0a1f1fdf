package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/api"
)

func newServeCommand(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := g.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if addr == "" {
				addr = e.cfg.Server.Addr
			}

			srv := api.NewServer(e.ledger,
				api.WithLogger(g.log),
				api.WithAuditLog(e.audit),
				api.WithDefaultActor(e.cfg.Actor),
				api.WithRequestLog(g.debug),
			)

			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s\n", e.cfg.Business.Name, addr)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from ledger.yaml)")

	return cmd
}
