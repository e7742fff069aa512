package main

import (
	"github.com/danmuck/watchsync/internal/companion"
	"github.com/danmuck/watchsync/internal/logging"
	"github.com/spf13/cobra"
)

func newCompanionCommand(root *rootOptions) *cobra.Command {
	var listen, feed string
	cmd := &cobra.Command{
		Use:   "companion",
		Short: "Serve weather from a YAML feed to one watch face",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Companion.Listen = listen
			}
			if feed != "" {
				cfg.Companion.FeedPath = feed
			}
			logging.ConfigureRuntime()
			return companion.Serve(cmd.Context(), cfg.CompanionService())
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&feed, "feed", "", "weather feed YAML path (overrides config)")
	return cmd
}
