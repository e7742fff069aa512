package appsync

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/watchsync/internal/protocol/dict"
	"github.com/danmuck/watchsync/internal/shadow"
)

// PendingPolicy decides what Request does while a request is pending.
type PendingPolicy string

const (
	// PolicyReject refuses the new request with ErrRequestPending.
	PolicyReject PendingPolicy = "reject"
	// PolicyReplace submits again and tracks only the newest handle.
	PolicyReplace PendingPolicy = "replace"
)

const DefaultRefreshKey dict.Key = 3

func ParsePendingPolicy(raw string) (PendingPolicy, error) {
	switch PendingPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case PolicyReject, "":
		return PolicyReject, nil
	case PolicyReplace:
		return PolicyReplace, nil
	default:
		return "", fmt.Errorf("appsync: unknown pending policy %q", raw)
	}
}

// Config controls one Engine.
type Config struct {
	Capacity       int
	RefreshKey     dict.Key
	Policy         PendingPolicy
	RequestTimeout time.Duration
	// OnChange is called once per changed key, in message order, outside the
	// engine lock.
	OnChange func(shadow.ChangeEvent)
	// OnStateChange observes every transition. It runs under the engine lock and
	// must not call back into the engine.
	OnStateChange func(from, to State)
	Now           func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Capacity:       dict.DefaultCapacity,
		RefreshKey:     DefaultRefreshKey,
		Policy:         PolicyReject,
		RequestTimeout: 30 * time.Second,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = def.Capacity
	}
	// Key 0 carries the icon code, so zero means unset here.
	if c.RefreshKey == 0 {
		c.RefreshKey = def.RefreshKey
	}
	if c.Policy == "" {
		c.Policy = def.Policy
	}
	if c.RequestTimeout < 0 {
		c.RequestTimeout = 0
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
