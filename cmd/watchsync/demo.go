package main

import (
	"context"
	"time"

	"github.com/danmuck/watchsync/internal/app"
	"github.com/danmuck/watchsync/internal/companion"
	"github.com/danmuck/watchsync/internal/icon"
	"github.com/danmuck/watchsync/internal/logging"
	"github.com/danmuck/watchsync/internal/transport/loopback"
	"github.com/danmuck/watchsync/internal/weather"
	"github.com/spf13/cobra"
)

func newDemoCommand(root *rootOptions) *cobra.Command {
	var (
		feed     string
		every    time.Duration
		latency  time.Duration
		headless bool
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the face against an in-process companion",
		Long: `Run the face and a companion in one process over an in-memory transport.

With --feed the companion watches that YAML file; otherwise it cycles
through the weather conditions on a timer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			configureLogging(headless)
			log := logging.For("demo")

			device, host := loopback.Pair(loopback.Options{Latency: latency})
			defer host.Close()
			initial := cfg.Conditions()
			if feed != "" {
				if initial, err = companion.LoadFeed(feed); err != nil {
					_ = device.Close()
					return err
				}
			}
			peer := companion.NewPeer(companion.PeerConfig{Capacity: cfg.Sync.Capacity, RefreshKey: cfg.Sync.RefreshKey}, host, initial)

			a, err := app.New(app.Options{Config: cfg, Transport: device})
			if err != nil {
				_ = device.Close()
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			publish := func(c weather.Conditions) {
				if _, err := peer.Publish(c); err != nil {
					log.Warn().Err(err).Msg("publish failed")
				}
			}
			if feed != "" {
				go func() {
					if err := companion.Watch(ctx, feed, cfg.Companion.Debounce, publish); err != nil {
						log.Error().Err(err).Msg("feed watcher stopped")
					}
				}()
			} else {
				go cycle(ctx, every, initial, publish)
			}
			return runFace(ctx, a, headless)
		},
	}
	cmd.Flags().StringVar(&feed, "feed", "", "weather feed YAML to watch")
	cmd.Flags().DurationVar(&every, "every", 10*time.Second, "interval between simulated weather changes")
	cmd.Flags().DurationVar(&latency, "latency", 20*time.Millisecond, "simulated transport latency")
	cmd.Flags().BoolVar(&headless, "headless", false, "log instead of drawing the face")
	return cmd
}

var demoTemperatures = []string{"58°F", "61°F", "47°F", "29°F"}

// cycle walks through every icon and a few temperatures.
func cycle(ctx context.Context, every time.Duration, c weather.Conditions, publish func(weather.Conditions)) {
	if every <= 0 {
		return
	}
	table := icon.DefaultTable()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for i := 1; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		c.Icon = icon.Code(i % table.Len())
		c.Temperature = demoTemperatures[i%len(demoTemperatures)]
		publish(c)
	}
}
