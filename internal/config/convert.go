package config

import (
	"net/url"

	"github.com/danmuck/watchsync/internal/appsync"
	"github.com/danmuck/watchsync/internal/companion"
	"github.com/danmuck/watchsync/internal/display"
	"github.com/danmuck/watchsync/internal/display/battery"
	"github.com/danmuck/watchsync/internal/protocol/frame"
	"github.com/danmuck/watchsync/internal/transport/ws"
	"github.com/danmuck/watchsync/internal/weather"
)

func (c Config) Engine() appsync.Config {
	out := appsync.DefaultConfig()
	out.Capacity = c.Sync.Capacity
	out.RefreshKey = c.Sync.RefreshKey
	out.Policy = c.Sync.PendingPolicy
	out.RequestTimeout = c.Sync.RequestTimeout
	return out
}

func (c Config) Conditions() weather.Conditions {
	return weather.Conditions{
		Icon:        c.Seed.Icon,
		Temperature: c.Seed.Temperature,
		Location:    c.Seed.Location,
	}
}

// DisplayClock is the second-zone setup the face renders.
func (c Config) DisplayClock() display.ClockConfig {
	return display.ClockConfig{ZoneOffset: c.Clock.ZoneOffset, ZoneLabel: c.Clock.ZoneLabel}
}

func (c Config) BatterySource() (battery.Source, error) {
	return battery.New(c.Battery.Source, c.Battery.Level, c.Battery.Root)
}

// Transport returns websocket settings sized to the dictionary capacity.
func (c Config) Transport(kind frame.Kind) ws.Config {
	out := ws.DefaultConfig()
	out.Kind = kind
	out.Limits.MaxPayloadBytes = c.Sync.Capacity
	return out
}

func (c Config) CompanionService() companion.ServiceConfig {
	return companion.ServiceConfig{
		Listen:     c.Companion.Listen,
		Path:       c.syncPath(),
		FeedPath:   c.Companion.FeedPath,
		Debounce:   c.Companion.Debounce,
		Capacity:   c.Sync.Capacity,
		RefreshKey: c.Sync.RefreshKey,
		Transport:  c.Transport(frame.KindUpdate),
	}
}

// syncPath serves the websocket where the face dials it.
func (c Config) syncPath() string {
	u, err := url.Parse(c.Companion.URL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
