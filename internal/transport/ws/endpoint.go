// Package ws carries framed dictionary payloads over gorilla/websocket.
//
// One binary websocket message holds exactly one frame. Client dials and
// reconnects with backoff; Server accepts one device connection at a time,
// a newer connection replacing the older one.
package ws

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/watchsync/internal/logging"
	"github.com/danmuck/watchsync/internal/observability"
	"github.com/danmuck/watchsync/internal/protocol/frame"
	"github.com/danmuck/watchsync/internal/transport"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Endpoint implements transport.Transport over whichever connection is current.
type Endpoint struct {
	cfg    Config
	outbox *transport.Outbox
	log    zerolog.Logger
	nextID atomic.Uint32

	mu     sync.Mutex
	sink   transport.Sink
	conn   *websocket.Conn
	closed bool

	writeMu sync.Mutex
}

func newEndpoint(cfg Config, role string) *Endpoint {
	return &Endpoint{
		cfg:    cfg.withDefaults(),
		outbox: transport.NewOutbox(),
		log:    logging.For("ws").With().Str("role", role).Logger(),
	}
}

func (e *Endpoint) Attach(sink transport.Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
}

// Connected reports whether a connection is currently up.
func (e *Endpoint) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn != nil
}

func (e *Endpoint) OpenOutbound() (transport.Handle, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return transport.Handle{}, transport.ErrClosed
	}
	return e.outbox.Open()
}

// Submit writes payload in its own goroutine and reports the outcome to the sink.
// It fails synchronously, releasing the slot, when no connection is up.
func (e *Endpoint) Submit(h transport.Handle, payload []byte) error {
	e.mu.Lock()
	conn, closed := e.conn, e.closed
	e.mu.Unlock()
	if closed {
		e.outbox.Release(h)
		return transport.ErrClosed
	}
	if conn == nil {
		e.outbox.Release(h)
		return transport.Retriable("not connected", transport.ErrNotConnected)
	}
	b, err := frame.Marshal(frame.New(e.cfg.Kind, e.nextID.Add(1), payload), e.cfg.Limits)
	if err != nil {
		e.outbox.Release(h)
		return transport.Fatal("encode frame", err)
	}
	if err := e.outbox.MarkSubmitted(h); err != nil {
		return err
	}
	go e.write(conn, h, b)
	return nil
}

func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	conn := e.conn
	e.conn = nil
	e.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (e *Endpoint) write(conn *websocket.Conn, h transport.Handle, b []byte) {
	e.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(e.cfg.WriteTimeout))
	err := conn.WriteMessage(websocket.BinaryMessage, b)
	e.writeMu.Unlock()

	e.outbox.Release(h)
	observability.RecordFrame("out", err == nil)
	sink := e.currentSink()
	if sink == nil {
		return
	}
	if err != nil {
		e.log.Warn().Str("handle", h.ID).Err(err).Msg("write failed")
		sink.OutboxFailed(h, transport.Retriable("write failed", err))
		return
	}
	e.log.Debug().Str("handle", h.ID).Int("bytes", len(b)).Msg("frame written")
	sink.OutboxSent(h)
}

// serve makes conn current and reads frames until it fails or ctx ends.
func (e *Endpoint) serve(ctx context.Context, conn *websocket.Conn) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		_ = conn.Close()
		return transport.ErrClosed
	}
	prev := e.conn
	e.conn = conn
	e.mu.Unlock()
	if prev != nil {
		e.log.Info().Msg("replacing previous connection")
		_ = prev.Close()
	}
	conn.SetReadLimit(int64(frame.HeaderLen + e.cfg.Limits.MaxPayloadBytes))

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer e.drop(conn)

	e.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("connected")
	if e.cfg.OnConnect != nil {
		e.cfg.OnConnect()
	}

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if mt != websocket.BinaryMessage {
			e.log.Debug().Int("type", mt).Msg("non-binary message ignored")
			continue
		}
		f, err := frame.Unmarshal(msg, e.cfg.Limits)
		if err != nil {
			observability.RecordFrame("in", false)
			e.log.Warn().Err(err).Int("bytes", len(msg)).Msg("bad frame dropped")
			continue
		}
		observability.RecordFrame("in", true)
		e.log.Debug().
			Str("kind", f.Header.Kind.String()).
			Uint32("id", f.Header.MessageID).
			Int("bytes", len(f.Payload)).
			Msg("frame received")
		if sink := e.currentSink(); sink != nil {
			sink.InboxReceived(f.Payload)
		}
	}
}

func (e *Endpoint) drop(conn *websocket.Conn) {
	e.mu.Lock()
	if e.conn == conn {
		e.conn = nil
	}
	e.mu.Unlock()
	_ = conn.Close()
	e.log.Info().Msg("disconnected")
}

func (e *Endpoint) currentSink() transport.Sink {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sink
}

func isClosed(err error) bool {
	return errors.Is(err, transport.ErrClosed) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
