// Package display is the consumer of weather change events. Face keeps the
// values the watch face renders and owns the currently loaded icon resource.
package display

import (
	"sync"
	"time"

	"github.com/danmuck/watchsync/internal/display/battery"
	"github.com/danmuck/watchsync/internal/icon"
	"github.com/danmuck/watchsync/internal/logging"
	"github.com/danmuck/watchsync/internal/protocol/dict"
	"github.com/danmuck/watchsync/internal/shadow"
	"github.com/danmuck/watchsync/internal/weather"
	"github.com/rs/zerolog"
)

// View is everything the UI needs for one frame.
type View struct {
	Time        string
	AMPM        string
	Date        string
	ZoneLabel   string
	ZoneTime    string
	Battery     string
	Icon        icon.Resource
	HasIcon     bool
	Temperature string
	Location    string
	LastChange  time.Time
}

type Face struct {
	table   icon.Table
	loader  *icon.Loader
	clock   ClockConfig
	battery battery.Source
	log     zerolog.Logger

	mu          sync.RWMutex
	iconHandle  *icon.Handle
	temperature string
	location    string
	lastChange  time.Time
}

func NewFace(table icon.Table, loader *icon.Loader, clock ClockConfig, src battery.Source) *Face {
	if src == nil {
		src = battery.Static(100)
	}
	return &Face{
		table:   table,
		loader:  loader,
		clock:   clock,
		battery: src,
		log:     logging.For("display"),
	}
}

// Load applies every entry as if it had just arrived.
func (f *Face) Load(entries []dict.Entry) {
	for _, e := range entries {
		f.Apply(shadow.ChangeEvent{Key: e.Key, New: e.Value})
	}
}

// Apply consumes one change event. An icon change releases the old resource
// before acquiring the new one so at most one is live.
func (f *Face) Apply(ev shadow.ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch ev.Key {
	case weather.KeyIcon:
		r, err := f.table.ResolveValue(ev.New)
		if err != nil {
			f.log.Warn().Err(err).Msg("icon change ignored")
			return
		}
		f.iconHandle.Release()
		f.iconHandle = f.loader.Acquire(r)
		f.log.Debug().Str("icon", r.Name).Msg("icon loaded")
	case weather.KeyTemperature:
		s, err := dict.AsText(ev.New)
		if err != nil {
			f.log.Warn().Err(err).Msg("temperature change ignored")
			return
		}
		f.temperature = s
	case weather.KeyLocation:
		s, err := dict.AsText(ev.New)
		if err != nil {
			f.log.Warn().Err(err).Msg("location change ignored")
			return
		}
		f.location = s
	default:
		f.log.Debug().Uint32("key", uint32(ev.Key)).Msg("unused key")
		return
	}
	f.lastChange = time.Now()
}

// Snapshot composes the view for now. Battery read failures show "--".
func (f *Face) Snapshot(now time.Time) View {
	v := View{
		Time:      FormatTime(now),
		AMPM:      AMPM(now),
		Date:      FormatDate(now),
		ZoneLabel: f.clock.ZoneLabel,
		ZoneTime:  FormatZoneHour(now, f.clock.ZoneOffset),
		Battery:   "--",
	}
	if level, err := f.battery.Level(); err == nil {
		v.Battery = FormatBattery(level)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.iconHandle != nil {
		v.Icon = f.iconHandle.Resource
		v.HasIcon = true
	}
	v.Temperature = f.temperature
	v.Location = f.location
	v.LastChange = f.lastChange
	return v
}

// Close releases the held icon resource.
func (f *Face) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.iconHandle.Release()
	f.iconHandle = nil
}
