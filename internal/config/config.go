// Package config loads watchsync.toml. Keys present in the file override
// Default(); absent keys keep their defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/watchsync/internal/appsync"
	"github.com/danmuck/watchsync/internal/display/battery"
	"github.com/danmuck/watchsync/internal/icon"
	"github.com/danmuck/watchsync/internal/protocol/dict"
	"github.com/danmuck/watchsync/internal/weather"
)

type Config struct {
	Sync      SyncConfig
	Seed      SeedConfig
	Clock     ClockConfig
	Battery   BatteryConfig
	Companion CompanionConfig
}

type SyncConfig struct {
	Capacity        int
	RefreshKey      dict.Key
	PendingPolicy   appsync.PendingPolicy
	RequestTimeout  time.Duration
	RefreshInterval time.Duration
}

type SeedConfig struct {
	Icon        icon.Code
	Temperature string
	Location    string
}

type ClockConfig struct {
	ZoneOffset time.Duration
	ZoneLabel  string
}

type BatteryConfig struct {
	Source string
	Level  int
	Root   string
}

type CompanionConfig struct {
	URL      string
	Listen   string
	FeedPath string
	Debounce time.Duration
}

func Default() Config {
	seed := weather.DefaultConditions()
	return Config{
		Sync: SyncConfig{
			Capacity:        dict.DefaultCapacity,
			RefreshKey:      appsync.DefaultRefreshKey,
			PendingPolicy:   appsync.PolicyReject,
			RequestTimeout:  30 * time.Second,
			RefreshInterval: 30 * time.Minute,
		},
		Seed: SeedConfig{Icon: seed.Icon, Temperature: seed.Temperature, Location: seed.Location},
		Clock: ClockConfig{
			ZoneOffset: 3 * time.Hour,
			ZoneLabel:  "BH",
		},
		Battery: BatteryConfig{Source: "static", Level: 100, Root: battery.DefaultSysfsRoot},
		Companion: CompanionConfig{
			URL:      "ws://127.0.0.1:7450/sync",
			Listen:   "127.0.0.1:7450",
			Debounce: 200 * time.Millisecond,
		},
	}
}

// watchsync.toml key mapping.
type fileConfig struct {
	Sync struct {
		Capacity        int    `toml:"capacity"`
		RefreshKey      uint32 `toml:"refresh_key"`
		PendingPolicy   string `toml:"pending_policy"`
		RequestTimeout  string `toml:"request_timeout"`
		RefreshInterval string `toml:"refresh_interval"`
	} `toml:"sync"`
	Seed struct {
		Icon        uint32 `toml:"icon"`
		Temperature string `toml:"temperature"`
		Location    string `toml:"location"`
	} `toml:"seed"`
	Clock struct {
		ZoneOffset string `toml:"zone_offset"`
		ZoneLabel  string `toml:"zone_label"`
	} `toml:"clock"`
	Battery struct {
		Source string `toml:"source"`
		Level  int    `toml:"level"`
		Root   string `toml:"root"`
	} `toml:"battery"`
	Companion struct {
		URL      string `toml:"url"`
		Listen   string `toml:"listen"`
		FeedPath string `toml:"feed_path"`
		Debounce string `toml:"debounce"`
	} `toml:"companion"`
}

// Load reads path over Default(). An empty path yields the validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, Validate(cfg)
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	durations := []struct {
		key []string
		raw string
		dst *time.Duration
	}{
		{[]string{"sync", "request_timeout"}, raw.Sync.RequestTimeout, &cfg.Sync.RequestTimeout},
		{[]string{"sync", "refresh_interval"}, raw.Sync.RefreshInterval, &cfg.Sync.RefreshInterval},
		{[]string{"clock", "zone_offset"}, raw.Clock.ZoneOffset, &cfg.Clock.ZoneOffset},
		{[]string{"companion", "debounce"}, raw.Companion.Debounce, &cfg.Companion.Debounce},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key...) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("load config: %s: %w", strings.Join(d.key, "."), err)
		}
		*d.dst = v
	}

	if meta.IsDefined("sync", "capacity") {
		cfg.Sync.Capacity = raw.Sync.Capacity
	}
	if meta.IsDefined("sync", "refresh_key") {
		cfg.Sync.RefreshKey = dict.Key(raw.Sync.RefreshKey)
	}
	if meta.IsDefined("sync", "pending_policy") {
		p, err := appsync.ParsePendingPolicy(raw.Sync.PendingPolicy)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		cfg.Sync.PendingPolicy = p
	}
	if meta.IsDefined("seed", "icon") {
		cfg.Seed.Icon = icon.Code(raw.Seed.Icon)
	}
	if meta.IsDefined("seed", "temperature") {
		cfg.Seed.Temperature = raw.Seed.Temperature
	}
	if meta.IsDefined("seed", "location") {
		cfg.Seed.Location = raw.Seed.Location
	}
	if meta.IsDefined("clock", "zone_label") {
		cfg.Clock.ZoneLabel = strings.TrimSpace(raw.Clock.ZoneLabel)
	}
	if meta.IsDefined("battery", "source") {
		cfg.Battery.Source = strings.ToLower(strings.TrimSpace(raw.Battery.Source))
	}
	if meta.IsDefined("battery", "level") {
		cfg.Battery.Level = raw.Battery.Level
	}
	if meta.IsDefined("battery", "root") {
		cfg.Battery.Root = strings.TrimSpace(raw.Battery.Root)
	}
	if meta.IsDefined("companion", "url") {
		cfg.Companion.URL = strings.TrimSpace(raw.Companion.URL)
	}
	if meta.IsDefined("companion", "listen") {
		cfg.Companion.Listen = strings.TrimSpace(raw.Companion.Listen)
	}
	if meta.IsDefined("companion", "feed_path") {
		cfg.Companion.FeedPath = strings.TrimSpace(raw.Companion.FeedPath)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if cfg.Sync.Capacity <= dict.HeaderLen || cfg.Sync.Capacity > 0xFFFF {
		return fmt.Errorf("sync.capacity %d out of range", cfg.Sync.Capacity)
	}
	switch cfg.Sync.RefreshKey {
	case weather.KeyIcon, weather.KeyTemperature, weather.KeyLocation:
		return fmt.Errorf("sync.refresh_key %d collides with a weather key", cfg.Sync.RefreshKey)
	}
	if cfg.Sync.RequestTimeout < 0 {
		return fmt.Errorf("sync.request_timeout must not be negative")
	}
	if cfg.Sync.RefreshInterval <= 0 {
		return fmt.Errorf("sync.refresh_interval must be positive")
	}
	seed := cfg.Conditions()
	if _, err := icon.DefaultTable().Resolve(seed.Icon); err != nil {
		return fmt.Errorf("seed.icon: %w", err)
	}
	if _, err := dict.NewCodec(cfg.Sync.Capacity).Encode(seed.Entries()); err != nil {
		return fmt.Errorf("seed does not fit sync.capacity: %w", err)
	}
	if cfg.Clock.ZoneOffset < -14*time.Hour || cfg.Clock.ZoneOffset > 14*time.Hour {
		return fmt.Errorf("clock.zone_offset %s out of range", cfg.Clock.ZoneOffset)
	}
	if _, err := battery.New(cfg.Battery.Source, cfg.Battery.Level, cfg.Battery.Root); err != nil {
		return err
	}
	return nil
}
