package companion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/watchsync/internal/logging"
	"github.com/danmuck/watchsync/internal/observability"
	"github.com/danmuck/watchsync/internal/protocol/dict"
	"github.com/danmuck/watchsync/internal/transport/ws"
	"github.com/danmuck/watchsync/internal/weather"
	"github.com/rs/zerolog"
)

// ServiceConfig wires a websocket companion.
type ServiceConfig struct {
	Listen string
	// Path is where the websocket is served; /metrics is served alongside.
	Path       string
	FeedPath   string
	Debounce   time.Duration
	Capacity   int
	RefreshKey dict.Key
	Transport  ws.Config
}

// Serve loads the feed, serves it to one device and republishes on change
// until ctx ends.
func Serve(ctx context.Context, cfg ServiceConfig) error {
	if cfg.Listen == "" {
		return errors.New("companion: listen address required")
	}
	initial := weather.DefaultConditions()
	if cfg.FeedPath != "" {
		c, err := LoadFeed(cfg.FeedPath)
		if err != nil {
			return err
		}
		initial = c
	}

	if cfg.Transport.Limits.MaxPayloadBytes == 0 && cfg.Capacity > 0 {
		cfg.Transport.Limits.MaxPayloadBytes = cfg.Capacity
	}
	srv := ws.NewServer(cfg.Transport)
	srv.Handle("/metrics", observability.Handler())
	peer := NewPeer(PeerConfig{Capacity: cfg.Capacity, RefreshKey: cfg.RefreshKey}, srv, initial)
	log := loggerFor("service")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if cfg.FeedPath != "" {
		go func() {
			err := Watch(ctx, cfg.FeedPath, cfg.Debounce, func(c weather.Conditions) {
				n, err := peer.Publish(c)
				if err != nil {
					log.Warn().Err(err).Msg("publish failed")
					return
				}
				log.Info().Int("changed", n).Msg("published")
			})
			if err != nil {
				log.Error().Err(err).Msg("feed watcher stopped")
			}
		}()
	}
	if err := srv.ListenAndServe(ctx, cfg.Listen, cfg.Path); err != nil {
		return fmt.Errorf("companion: %w", err)
	}
	return nil
}

func loggerFor(part string) zerolog.Logger {
	return logging.For("companion").With().Str("part", part).Logger()
}
