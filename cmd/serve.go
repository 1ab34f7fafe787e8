package cmd

import (
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the leaderboard over HTTP",
		Long: `Starts the HTTP server. Every request reads the latest documents, so the
page tracks the aggregation job without a restart.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, appInstance App) error {
			return appInstance.Serve(cmd.Context())
		}),
	}
}
