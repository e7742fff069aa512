package ws

import (
	"math"
	"math/rand"
	"time"

	"github.com/danmuck/watchsync/internal/protocol/frame"
)

// BackoffConfig defines reconnect backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines websocket transport defaults.
type Config struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Backoff          BackoffConfig
	Limits           frame.Limits
	// Kind tags outbound frames. Devices send requests, companions send updates.
	Kind frame.Kind
	// OnConnect runs after a connection is established and before the first read.
	OnConnect func()
}

func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     5 * time.Second,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
		Limits: frame.DefaultLimits(),
		Kind:   frame.KindRequest,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = def.Backoff
	}
	if c.Limits.MaxPayloadBytes <= 0 {
		c.Limits = def.Limits
	}
	if c.Kind == 0 {
		c.Kind = def.Kind
	}
	return c
}

// Delay returns the wait before reconnect attempt n (1-based). The result never
// exceeds MaxDelay; jitter picks a point in [delay/2, delay].
func (b BackoffConfig) Delay(n int, rng *rand.Rand) time.Duration {
	if b.InitialDelay <= 0 {
		return 0
	}
	delay := b.InitialDelay
	mult := math.Max(b.Multiplier, 1)
	for i := 1; i < n; i++ {
		if b.MaxDelay > 0 && delay >= b.MaxDelay {
			break
		}
		delay = time.Duration(float64(delay) * mult)
	}
	if b.MaxDelay > 0 && delay > b.MaxDelay {
		delay = b.MaxDelay
	}
	if b.Jitter && rng != nil {
		half := delay / 2
		delay = half + time.Duration(rng.Int63n(int64(delay-half)+1))
	}
	return delay
}
