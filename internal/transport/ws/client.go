package ws

import (
	"context"
	"math/rand"
	"time"

	"github.com/gorilla/websocket"
)

// Client is the device side: it dials the companion and keeps reconnecting.
type Client struct {
	*Endpoint
	url    string
	dialer *websocket.Dialer
}

func NewClient(url string, cfg Config) *Client {
	ep := newEndpoint(cfg, "client")
	return &Client{
		Endpoint: ep,
		url:      url,
		dialer:   &websocket.Dialer{HandshakeTimeout: ep.cfg.HandshakeTimeout},
	}
}

// Run dials and serves until ctx ends or the client is closed.
func (c *Client) Run(ctx context.Context) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err == nil {
			attempt = 0
			err = c.serve(ctx, conn)
			if isClosed(err) && c.isShut() {
				return nil
			}
		}
		if c.isShut() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attempt++
		delay := c.cfg.Backoff.Delay(attempt, rng)
		c.log.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).Str("url", c.url).Msg("reconnecting")
		if err := sleepBackoff(ctx, delay); err != nil {
			return err
		}
	}
}

func sleepBackoff(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) isShut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
