package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSnapshotCmd(opts *rootOptions) *cobra.Command {
	var url, key string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture the leaderboard page as a PNG",
		Long: `Loads a leaderboard page in headless Chrome, waits for the status line,
and stores a full-page screenshot in the output store.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, appInstance App) error {
			if url == "" {
				url = opts.cfg.Snapshot.URL
			}
			if key == "" {
				key = opts.cfg.Snapshot.Key
			}
			uri, err := appInstance.Snapshot(cmd.Context(), url, key)
			if err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), uri)
			return nil
		}),
	}
	cmd.Flags().StringVar(&url, "url", "", "page to capture; defaults to snapshot.url")
	cmd.Flags().StringVar(&key, "out", "", "output key ending in .png; defaults to snapshot.key")
	return cmd
}
