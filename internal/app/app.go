// Package app owns one running watch face: the shadow store, the sync engine,
// the face and the transport they share. Construct with New, drive with Run,
// release with Close.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/watchsync/internal/appsync"
	"github.com/danmuck/watchsync/internal/config"
	"github.com/danmuck/watchsync/internal/display"
	"github.com/danmuck/watchsync/internal/display/battery"
	"github.com/danmuck/watchsync/internal/icon"
	"github.com/danmuck/watchsync/internal/logging"
	"github.com/danmuck/watchsync/internal/shadow"
	"github.com/danmuck/watchsync/internal/transport"
	"github.com/danmuck/watchsync/internal/weather"
	"github.com/rs/zerolog"
)

// DefaultTickInterval is how often pending requests are checked for timeout.
const DefaultTickInterval = time.Second

type Options struct {
	Config    config.Config
	Transport transport.Transport
	// Loader and Battery override the defaults built from Config.
	Loader       *icon.Loader
	Battery      battery.Source
	TickInterval time.Duration
}

type App struct {
	cfg    config.Config
	tr     transport.Transport
	store  *shadow.Store
	engine *appsync.Engine
	face   *display.Face
	loader *icon.Loader
	tick   time.Duration
	log    zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

func New(opts Options) (*App, error) {
	if opts.Transport == nil {
		return nil, errors.New("app: transport required")
	}
	cfg := opts.Config
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	log := logging.For("app")

	table := icon.DefaultTable()
	store := shadow.New(shadow.Options{
		Capacity:   cfg.Sync.Capacity,
		Validators: weather.Validators(table),
	})
	if err := store.Seed(cfg.Conditions().Entries()); err != nil {
		return nil, fmt.Errorf("app: seed: %w", err)
	}

	loader := opts.Loader
	if loader == nil {
		loader = icon.NewLoader()
	}
	src := opts.Battery
	if src == nil {
		var err error
		if src, err = cfg.BatterySource(); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}
	face := display.NewFace(table, loader, cfg.DisplayClock(), src)
	face.Load(store.Snapshot())

	engCfg := cfg.Engine()
	engCfg.OnChange = face.Apply
	engCfg.OnStateChange = func(from, to appsync.State) {
		log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("sync state")
	}
	engine, err := appsync.NewEngine(engCfg, store, opts.Transport)
	if err != nil {
		face.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	tick := opts.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	return &App{
		cfg:    cfg,
		tr:     opts.Transport,
		store:  store,
		engine: engine,
		face:   face,
		loader: loader,
		tick:   tick,
		log:    log,
	}, nil
}

// Refresh asks the companion for a full dictionary.
func (a *App) Refresh() error {
	return a.engine.Request()
}

// Run refreshes once, then on every RefreshInterval, and expires stale
// requests until ctx ends. Transports that need a run loop are started too.
func (a *App) Run(ctx context.Context) error {
	if r, ok := a.tr.(interface{ Run(context.Context) error }); ok {
		go func() {
			if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn().Err(err).Msg("transport stopped")
			}
		}()
	}

	a.refresh("startup")
	refresh := time.NewTicker(a.cfg.Sync.RefreshInterval)
	defer refresh.Stop()
	tick := time.NewTicker(a.tick)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-refresh.C:
			a.refresh("interval")
		case now := <-tick.C:
			a.engine.Tick(now)
		}
	}
}

func (a *App) refresh(reason string) {
	err := a.engine.Request()
	switch {
	case err == nil:
		a.log.Debug().Str("reason", reason).Msg("refresh requested")
	case errors.Is(err, appsync.ErrRequestPending):
		a.log.Debug().Str("reason", reason).Msg("refresh skipped: already pending")
	default:
		a.log.Info().Str("reason", reason).Err(err).Msg("refresh not sent")
	}
}

func (a *App) Engine() *appsync.Engine { return a.engine }

func (a *App) Face() *display.Face { return a.face }

func (a *App) Store() *shadow.Store { return a.store }

func (a *App) Status() appsync.Status { return a.engine.Status() }

// Close stops the transport and releases the icon resource.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.tr.Close()
		a.face.Close()
		a.log.Info().Int("live_icons", a.loader.Live()).Msg("closed")
	})
	return a.closeErr
}
