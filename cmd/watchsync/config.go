package main

import (
	"fmt"

	"github.com/danmuck/watchsync/internal/companion"
	"github.com/danmuck/watchsync/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write or validate configuration files",
	}

	var kind string
	var force bool
	initCmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write a config or feed template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteTemplate(args[0], kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s template to %s\n", kind, args[0])
			return nil
		},
	}
	initCmd.Flags().StringVar(&kind, "kind", "config", "template kind: config|feed")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	var feed string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the config (and optionally a feed) and report problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if feed != "" {
				if _, err := companion.LoadFeed(feed); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: capacity=%d refresh_key=%d policy=%s\n",
				cfg.Sync.Capacity, cfg.Sync.RefreshKey, cfg.Sync.PendingPolicy)
			return nil
		},
	}
	validateCmd.Flags().StringVar(&feed, "feed", "", "also validate this feed file")

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
