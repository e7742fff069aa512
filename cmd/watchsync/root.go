package main

import (
	"github.com/danmuck/watchsync/internal/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	ConfigPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "watchsync",
		Short:         "Watch face with companion weather sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to watchsync.toml (defaults when empty)")

	cmd.AddCommand(newFaceCommand(opts))
	cmd.AddCommand(newCompanionCommand(opts))
	cmd.AddCommand(newDemoCommand(opts))
	cmd.AddCommand(newConfigCommand(opts))
	return cmd
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(o.ConfigPath)
}
