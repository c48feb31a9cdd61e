package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

func newServeCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the onboarding HTTP API on OFLOW_SERVER_WEB_PORT until interrupted.
The database is migrated before the server starts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Serve == nil {
				return errors.New("serve is not available without a configured database")
			}
			return app.Serve(cmd.Context())
		},
	}
	cmd.Flags().String("port", "", "HTTP port (overrides OFLOW_SERVER_WEB_PORT)")
	return cmd
}
