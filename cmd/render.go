package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRenderCmd() *cobra.Command {
	var week string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the leaderboard page to the output store",
		Long: `Loads the documents once and writes a static page: index.html for the
latest week, or weeks/<week>/index.html when --week is given.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, appInstance App) error {
			res, err := appInstance.RenderSite(cmd.Context(), week)
			if res.URI != "" {
				fmt.Fprintln(cmd.OutOrStdout(), res.URI)
			}
			if err != nil {
				return fmt.Errorf("render: %w", err)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&week, "week", "", "week to render (YYYY-MM-DD); defaults to the latest week")
	return cmd
}
