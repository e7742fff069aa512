package main

import (
	"context"

	"github.com/danmuck/watchsync/internal/app"
	"github.com/danmuck/watchsync/internal/logging"
	"github.com/danmuck/watchsync/internal/observability"
	"github.com/danmuck/watchsync/internal/protocol/frame"
	"github.com/danmuck/watchsync/internal/transport/ws"
	"github.com/danmuck/watchsync/internal/ui"
	"github.com/spf13/cobra"
)

func newFaceCommand(root *rootOptions) *cobra.Command {
	var (
		url      string
		metrics  string
		headless bool
	)
	cmd := &cobra.Command{
		Use:   "face",
		Short: "Run the watch face and sync with a companion over websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if url != "" {
				cfg.Companion.URL = url
			}
			configureLogging(headless)

			var a *app.App
			tcfg := cfg.Transport(frame.KindRequest)
			tcfg.OnConnect = func() {
				if a != nil {
					_ = a.Refresh()
				}
			}
			client := ws.NewClient(cfg.Companion.URL, tcfg)
			a, err = app.New(app.Options{Config: cfg, Transport: client})
			if err != nil {
				_ = client.Close()
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if metrics != "" {
				go func() {
					if err := observability.Serve(ctx, metrics); err != nil {
						log := logging.For("face")
						log.Warn().Err(err).Str("addr", metrics).Msg("metrics listener stopped")
					}
				}()
			}
			return runFace(ctx, a, headless)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "companion websocket url (overrides config)")
	cmd.Flags().StringVar(&metrics, "metrics-listen", "", "serve device /metrics on this address (off when empty)")
	cmd.Flags().BoolVar(&headless, "headless", false, "log instead of drawing the face")
	return cmd
}

func configureLogging(headless bool) {
	if headless {
		logging.ConfigureRuntime()
		return
	}
	logging.ConfigureInteractive()
}

// runFace drives a until the UI quits or ctx ends.
func runFace(ctx context.Context, a *app.App, headless bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	if headless {
		<-ctx.Done()
		return <-done
	}
	err := ui.Run(ui.Options{Face: a.Face(), Refresh: a.Refresh, Status: a.Status})
	cancel()
	if runErr := <-done; err == nil {
		err = runErr
	}
	return err
}
