package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/watchsync/internal/appsync"
	"github.com/danmuck/watchsync/internal/display/battery"
	"github.com/danmuck/watchsync/internal/icon"
	"github.com/danmuck/watchsync/internal/protocol/frame"
	"github.com/danmuck/watchsync/internal/testutil/testlog"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watchsync.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
[sync]
pending_policy = "replace"
request_timeout = "5s"

[seed]
icon = 2
temperature = "58°F"

[clock]
zone_offset = "-5h"
zone_label = "NY"

[battery]
source = "sysfs"
root = "/tmp/power"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	def := Default()
	if cfg.Sync.Capacity != def.Sync.Capacity || cfg.Sync.RefreshKey != appsync.DefaultRefreshKey {
		t.Fatalf("untouched sync keys should keep defaults: %+v", cfg.Sync)
	}
	if cfg.Sync.PendingPolicy != appsync.PolicyReplace || cfg.Sync.RequestTimeout != 5*time.Second {
		t.Fatalf("unexpected sync overrides: %+v", cfg.Sync)
	}
	if cfg.Sync.RefreshInterval != def.Sync.RefreshInterval {
		t.Fatalf("unexpected refresh interval: %s", cfg.Sync.RefreshInterval)
	}
	if cfg.Seed.Icon != icon.CodeRain || cfg.Seed.Temperature != "58°F" || cfg.Seed.Location != "St Pebblesburg" {
		t.Fatalf("unexpected seed: %+v", cfg.Seed)
	}
	if cfg.Clock.ZoneOffset != -5*time.Hour || cfg.Clock.ZoneLabel != "NY" {
		t.Fatalf("unexpected clock: %+v", cfg.Clock)
	}
	src, err := cfg.BatterySource()
	if err != nil {
		t.Fatalf("battery source: %v", err)
	}
	if src != (battery.Sysfs{Root: "/tmp/power"}) {
		t.Fatalf("unexpected battery source: %#v", src)
	}

	eng := cfg.Engine()
	if eng.Policy != appsync.PolicyReplace || eng.RequestTimeout != 5*time.Second || eng.Capacity != 64 {
		t.Fatalf("unexpected engine config: %+v", eng)
	}
	tr := cfg.Transport(frame.KindRequest)
	if tr.Limits.MaxPayloadBytes != 64 || tr.Kind != frame.KindRequest {
		t.Fatalf("unexpected transport config: %+v", tr)
	}
	clock := cfg.DisplayClock()
	if clock.ZoneOffset != -5*time.Hour || clock.ZoneLabel != "NY" {
		t.Fatalf("unexpected display clock: %+v", clock)
	}
	if svc := cfg.CompanionService(); svc.Path != "/sync" || svc.Transport.Kind != frame.KindUpdate {
		t.Fatalf("unexpected companion service: path=%q kind=%s", svc.Path, svc.Transport.Kind)
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"bad policy":       "[sync]\npending_policy = \"queue\"\n",
		"bad duration":     "[sync]\nrequest_timeout = \"soon\"\n",
		"key collision":    "[sync]\nrefresh_key = 1\n",
		"unknown icon":     "[seed]\nicon = 9\n",
		"seed too big":     "[seed]\nlocation = \"" + strings.Repeat("x", 60) + "\"\n",
		"tiny capacity":    "[sync]\ncapacity = 4\n",
		"zone range":       "[clock]\nzone_offset = \"20h\"\n",
		"battery source":   "[battery]\nsource = \"acpi\"\n",
		"unknown key":      "[sync]\ncapacityy = 64\n",
		"zero interval":    "[sync]\nrefresh_interval = \"0s\"\n",
		"malformed toml":   "[sync\n",
		"negative timeout": "[sync]\nrequest_timeout = \"-1s\"\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestTemplateLoads(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "watchsync.toml")
	if err := WriteTemplate(path, "config", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, "config", false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("template should load: %v", err)
	}
	if cfg.Companion.FeedPath != "weather.yaml" {
		t.Fatalf("unexpected feed path: %q", cfg.Companion.FeedPath)
	}
	if _, err := Template("forecast"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
