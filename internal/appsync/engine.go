package appsync

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/watchsync/internal/logging"
	"github.com/danmuck/watchsync/internal/observability"
	"github.com/danmuck/watchsync/internal/protocol/dict"
	"github.com/danmuck/watchsync/internal/shadow"
	"github.com/danmuck/watchsync/internal/transport"
	"github.com/rs/zerolog"
)

var (
	ErrRequestPending = errors.New("appsync: request already pending")
	ErrRequestTimeout = errors.New("appsync: request timed out")
	ErrStoreRequired  = errors.New("appsync: shadow store required")
	ErrTransportNil   = errors.New("appsync: transport required")
)

// slot tracks the one outbound request the engine cares about. It survives the
// transition back to Idle until the transport reports the outbox completion.
type slot struct {
	handle      transport.Handle
	submittedAt time.Time
	sent        bool
	answered    bool
}

// Engine drives the refresh request state machine and applies inbound
// dictionaries to the shadow store.
type Engine struct {
	cfg    Config
	codec  dict.Codec
	store  *shadow.Store
	tr     transport.Transport
	marker []byte
	log    zerolog.Logger

	// deliverMu serializes decode, apply and notify for inbound payloads.
	deliverMu sync.Mutex

	mu     sync.Mutex
	state  State
	slot   slot
	status Status
}

func NewEngine(cfg Config, store *shadow.Store, tr transport.Transport) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if tr == nil {
		return nil, ErrTransportNil
	}
	cfg = cfg.WithDefaults()
	codec := dict.NewCodec(cfg.Capacity)
	marker, err := codec.Encode([]dict.Entry{{Key: cfg.RefreshKey, Value: dict.U8(1)}})
	if err != nil {
		return nil, fmt.Errorf("appsync: encode refresh marker: %w", err)
	}
	e := &Engine{
		cfg:    cfg,
		codec:  codec,
		store:  store,
		tr:     tr,
		marker: marker,
		log:    logging.For("appsync"),
		state:  StateIdle,
	}
	tr.Attach(e)
	return e, nil
}

// Request asks the companion for a fresh dictionary. It returns once the
// refresh marker has been handed to the transport.
func (e *Engine) Request() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRequestPending && e.cfg.Policy != PolicyReplace {
		e.status.RequestsRejected++
		observability.RecordRequest("rejected")
		e.log.Debug().Str("handle", e.slot.handle.ID).Msg("request rejected: already pending")
		return ErrRequestPending
	}

	h, err := e.tr.OpenOutbound()
	if err != nil {
		e.recordFailureLocked(err)
		e.log.Warn().Err(err).Msg("open outbound failed")
		return fmt.Errorf("appsync: open outbound: %w", err)
	}
	if err := e.tr.Submit(h, e.marker); err != nil {
		e.failLocked(h, err)
		return fmt.Errorf("appsync: submit: %w", err)
	}

	if e.state == StateRequestPending {
		e.log.Info().Str("replaced", e.slot.handle.ID).Str("handle", h.ID).Msg("pending request replaced")
	}
	e.slot = slot{handle: h, submittedAt: e.cfg.Now()}
	e.status.RequestsSent++
	observability.RecordRequest("sent")
	e.setStateLocked(StateRequestPending)
	e.log.Debug().Str("handle", h.ID).Int("bytes", len(e.marker)).Msg("refresh requested")
	return nil
}

// OutboxSent implements transport.Sink.
func (e *Engine) OutboxSent(h transport.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h != e.slot.handle {
		e.log.Debug().Str("handle", h.ID).Msg("stale outbox completion ignored")
		return
	}
	e.slot.sent = true
	if e.slot.answered {
		e.slot = slot{}
	}
	e.log.Debug().Str("handle", h.ID).Msg("outbox sent")
}

// OutboxFailed implements transport.Sink.
func (e *Engine) OutboxFailed(h transport.Handle, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h != e.slot.handle {
		e.log.Debug().Str("handle", h.ID).Err(err).Msg("stale outbox failure ignored")
		return
	}
	if e.slot.answered {
		e.recordFailureLocked(err)
		e.log.Warn().Str("handle", h.ID).Err(err).Msg("outbox failed after reply was applied")
		e.slot = slot{}
		return
	}
	e.failLocked(h, err)
}

// InboxReceived implements transport.Sink.
func (e *Engine) InboxReceived(payload []byte) {
	_, _ = e.Deliver(payload)
}

// Deliver decodes payload, applies it to the shadow store and notifies
// OnChange for every changed key. Malformed or oversized payloads are dropped
// whole and leave the store untouched.
func (e *Engine) Deliver(payload []byte) (shadow.Result, error) {
	e.deliverMu.Lock()
	defer e.deliverMu.Unlock()

	entries, err := e.codec.Decode(payload)
	if err != nil {
		e.dropInbound(len(payload), err)
		return shadow.Result{}, err
	}
	entries = e.withoutMarker(entries)

	res, err := e.store.Apply(entries)
	if err != nil {
		e.dropInbound(len(payload), err)
		return shadow.Result{}, err
	}

	e.mu.Lock()
	e.status.InboundApplied++
	observability.RecordInbound("applied", len(res.Changes))
	e.status.LastUpdate = e.cfg.Now()
	for _, r := range res.Rejected {
		e.status.KeysRejected++
		observability.RecordKeyRejected(uint32(r.Key))
		e.log.Warn().Uint32("key", uint32(r.Key)).Err(r.Err).Msg("inbound key skipped")
	}
	if e.state == StateRequestPending {
		e.slot.answered = true
		if e.slot.sent {
			e.slot = slot{}
		}
		e.setStateLocked(StateIdle)
	}
	e.mu.Unlock()

	e.log.Debug().
		Int("entries", len(entries)).
		Int("changed", len(res.Changes)).
		Int("rejected", len(res.Rejected)).
		Msg("inbound applied")
	if e.cfg.OnChange != nil {
		for _, ev := range res.Changes {
			e.cfg.OnChange(ev)
		}
	}
	return res, nil
}

// Tick expires a pending request older than RequestTimeout.
func (e *Engine) Tick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRequestPending || e.cfg.RequestTimeout <= 0 {
		return
	}
	if now.Sub(e.slot.submittedAt) < e.cfg.RequestTimeout {
		return
	}
	err := transport.Retriable("no reply", fmt.Errorf("%w after %s", ErrRequestTimeout, e.cfg.RequestTimeout))
	e.recordFailureLocked(err)
	e.log.Warn().Str("handle", e.slot.handle.ID).Err(err).Msg("pending request expired")
	// The handle stays tracked so a late completion is still recognized.
	e.slot.answered = true
	if e.slot.sent {
		e.slot = slot{}
	}
	e.setStateLocked(StateIdle)
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.status
	out.State = e.state
	if !e.slot.answered {
		out.PendingHandle = e.slot.handle.ID
	}
	return out
}

// Store exposes the shadow store the engine applies to.
func (e *Engine) Store() *shadow.Store {
	return e.store
}

func (e *Engine) failLocked(h transport.Handle, err error) {
	e.recordFailureLocked(err)
	retriable := transport.IsRetriable(err)
	e.log.Warn().Str("handle", h.ID).Bool("retriable", retriable).Err(err).Msg("outbound failed")
	e.slot = slot{}
	if !retriable {
		e.setStateLocked(StateError)
	}
	e.setStateLocked(StateIdle)
}

func (e *Engine) recordFailureLocked(err error) {
	e.status.SendFailures++
	observability.RecordRequest("failed")
	e.status.LastError = err
}

func (e *Engine) dropInbound(size int, err error) {
	e.mu.Lock()
	e.status.InboundDropped++
	observability.RecordInbound("dropped", 0)
	e.status.LastError = err
	e.mu.Unlock()
	e.log.Warn().Int("bytes", size).Err(err).Msg("inbound dropped")
}

func (e *Engine) withoutMarker(entries []dict.Entry) []dict.Entry {
	out := entries[:0]
	for _, en := range entries {
		if en.Key == e.cfg.RefreshKey {
			e.log.Debug().Msg("inbound refresh marker ignored")
			continue
		}
		out = append(out, en)
	}
	return out
}

func (e *Engine) setStateLocked(to State) {
	from := e.state
	if from == to {
		return
	}
	e.state = to
	e.log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("state")
	if e.cfg.OnStateChange != nil {
		e.cfg.OnStateChange(from, to)
	}
}
