// File: cmd/serve.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/voidhawk9/autoteller/internal/server"
)

// newServeCommand runs the HTTP command transport until interrupted.
func (a *app) newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the command catalog over HTTP.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dispatcher, auditStore, cleanup, err := a.buildDispatcher(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			// A typed nil inside the interface would enable the listing
			// endpoint against a dead store.
			var audit server.AuditLister
			if auditStore != nil {
				audit = auditStore
			}

			srv := server.New(a.cfg.Server, a.logger, dispatcher, audit)
			return srv.Start(cmd.Context())
		},
	}
}
