// Package companion is the host-side peer. It answers refresh requests with
// the full weather dictionary and pushes partial dictionaries when the feed
// changes.
package companion

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/watchsync/internal/appsync"
	"github.com/danmuck/watchsync/internal/logging"
	"github.com/danmuck/watchsync/internal/observability"
	"github.com/danmuck/watchsync/internal/protocol/dict"
	"github.com/danmuck/watchsync/internal/shadow"
	"github.com/danmuck/watchsync/internal/transport"
	"github.com/danmuck/watchsync/internal/weather"
	"github.com/rs/zerolog"
)

type PeerConfig struct {
	Capacity   int
	RefreshKey dict.Key
}

// Peer tracks what it last sent in its own shadow store so publishes only
// carry changed keys. Entries waiting for the transport slot are merged by key.
type Peer struct {
	codec      dict.Codec
	refreshKey dict.Key
	tr         transport.Transport
	log        zerolog.Logger

	mu       sync.Mutex
	current  weather.Conditions
	sent     *shadow.Store
	backlog  []dict.Entry
	inflight transport.Handle
	stats    PeerStats
}

type PeerStats struct {
	Requests    int
	Published   int
	SendFailure int
}

func NewPeer(cfg PeerConfig, tr transport.Transport, initial weather.Conditions) *Peer {
	if cfg.Capacity <= 0 {
		cfg.Capacity = dict.DefaultCapacity
	}
	if cfg.RefreshKey == 0 {
		cfg.RefreshKey = appsync.DefaultRefreshKey
	}
	p := &Peer{
		codec:      dict.NewCodec(cfg.Capacity),
		refreshKey: cfg.RefreshKey,
		tr:         tr,
		log:        logging.For("companion"),
		current:    initial,
		sent:       shadow.New(shadow.Options{Capacity: cfg.Capacity}),
	}
	tr.Attach(p)
	return p
}

// HandleRequest queues the full dictionary for the current conditions.
func (p *Peer) HandleRequest() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Requests++
	entries := p.current.Entries()
	if _, err := p.sent.Apply(entries); err != nil {
		return fmt.Errorf("companion: full dictionary: %w", err)
	}
	p.queueLocked(entries)
	observability.RecordPublish("full")
	return p.flushLocked()
}

// Publish records c as current and queues the keys that differ from what was
// last sent. It returns how many keys changed.
func (p *Peer) Publish(c weather.Conditions) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = c
	res, err := p.sent.Apply(c.Entries())
	if err != nil {
		return 0, fmt.Errorf("companion: publish: %w", err)
	}
	if len(res.Changes) == 0 {
		p.log.Debug().Msg("publish skipped: nothing changed")
		return 0, nil
	}
	changed := make([]dict.Entry, 0, len(res.Changes))
	for _, ev := range res.Changes {
		changed = append(changed, dict.Entry{Key: ev.Key, Value: ev.New})
	}
	p.queueLocked(changed)
	observability.RecordPublish("partial")
	return len(changed), p.flushLocked()
}

func (p *Peer) Current() weather.Conditions {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Peer) Stats() PeerStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// OutboxSent implements transport.Sink.
func (p *Peer) OutboxSent(h transport.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h != p.inflight {
		return
	}
	p.inflight = transport.Handle{}
	p.stats.Published++
	if err := p.flushLocked(); err != nil {
		p.log.Warn().Err(err).Msg("flush after send failed")
	}
}

// OutboxFailed implements transport.Sink.
func (p *Peer) OutboxFailed(h transport.Handle, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h != p.inflight {
		return
	}
	p.inflight = transport.Handle{}
	p.stats.SendFailure++
	p.log.Warn().Str("handle", h.ID).Err(err).Msg("update not delivered")
	if err := p.flushLocked(); err != nil {
		p.log.Warn().Err(err).Msg("flush after failure failed")
	}
}

// InboxReceived implements transport.Sink. Only refresh requests are expected.
func (p *Peer) InboxReceived(payload []byte) {
	entries, err := p.codec.Decode(payload)
	if err != nil {
		p.log.Warn().Err(err).Int("bytes", len(payload)).Msg("inbound dropped")
		return
	}
	if _, ok := dict.Get(entries, p.refreshKey); !ok {
		p.log.Debug().Int("entries", len(entries)).Msg("inbound without refresh marker ignored")
		return
	}
	if err := p.HandleRequest(); err != nil {
		p.log.Warn().Err(err).Msg("refresh request not answered")
	}
}

func (p *Peer) queueLocked(entries []dict.Entry) {
	for _, e := range entries {
		replaced := false
		for i := range p.backlog {
			if p.backlog[i].Key == e.Key {
				p.backlog[i].Value = e.Value
				replaced = true
				break
			}
		}
		if !replaced {
			p.backlog = append(p.backlog, e)
		}
	}
}

func (p *Peer) flushLocked() error {
	if !p.inflight.IsZero() || len(p.backlog) == 0 {
		return nil
	}
	payload, err := p.codec.Encode(p.backlog)
	if err != nil {
		p.backlog = nil
		return err
	}
	h, err := p.tr.OpenOutbound()
	if errors.Is(err, transport.ErrBusy) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := p.tr.Submit(h, payload); err != nil {
		// The device asks again on its next refresh.
		p.backlog = nil
		return err
	}
	p.log.Debug().Str("handle", h.ID).Int("entries", len(p.backlog)).Msg("update submitted")
	p.inflight = h
	p.backlog = nil
	return nil
}
