// Package loopback is an in-memory transport pair. Each endpoint runs one
// worker goroutine so completions and inbound payloads are delivered
// asynchronously and in arrival order.
package loopback

import (
	"sync"
	"time"

	"github.com/danmuck/watchsync/internal/logging"
	"github.com/danmuck/watchsync/internal/transport"
	"github.com/rs/zerolog"
)

// Options tunes a pair.
type Options struct {
	// Latency delays every outbound completion and delivery.
	Latency time.Duration
}

// Endpoint is one side of a pair.
type Endpoint struct {
	name    string
	opts    Options
	outbox  *transport.Outbox
	log     zerolog.Logger
	peer    *Endpoint
	mailbox chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup

	mu       sync.Mutex
	sink     transport.Sink
	closed   bool
	queue    []func()
	failNext error
	dropNext bool
}

// Pair returns two connected endpoints.
func Pair(opts Options) (*Endpoint, *Endpoint) {
	a := newEndpoint("a", opts)
	b := newEndpoint("b", opts)
	a.peer, b.peer = b, a
	return a, b
}

func newEndpoint(name string, opts Options) *Endpoint {
	e := &Endpoint{
		name:    name,
		opts:    opts,
		outbox:  transport.NewOutbox(),
		log:     logging.For("loopback").With().Str("side", name).Logger(),
		mailbox: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

func (e *Endpoint) Attach(sink transport.Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
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

// Submit queues payload for the peer. The payload is copied.
func (e *Endpoint) Submit(h transport.Handle, payload []byte) error {
	if err := e.outbox.MarkSubmitted(h); err != nil {
		return err
	}
	msg := append([]byte(nil), payload...)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.outbox.Release(h)
		return transport.ErrClosed
	}
	failErr, drop := e.failNext, e.dropNext
	e.failNext, e.dropNext = nil, false
	e.mu.Unlock()

	e.enqueue(func() { e.deliver(h, msg, failErr, drop) })
	return nil
}

// FailNext makes the next submission complete with err instead of reaching the peer.
func (e *Endpoint) FailNext(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failNext = err
}

// DropNext makes the next submission report success without reaching the peer.
func (e *Endpoint) DropNext() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dropNext = true
}

func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	close(e.done)
	e.wg.Wait()
	return nil
}

func (e *Endpoint) deliver(h transport.Handle, msg []byte, failErr error, drop bool) {
	if e.opts.Latency > 0 {
		select {
		case <-time.After(e.opts.Latency):
		case <-e.done:
			return
		}
	}
	var err error
	switch {
	case failErr != nil:
		err = failErr
	case drop:
		e.log.Debug().Str("handle", h.ID).Msg("submission dropped")
	default:
		err = e.peer.receive(msg)
	}

	e.outbox.Release(h)
	sink := e.currentSink()
	if sink == nil {
		return
	}
	if err != nil {
		e.log.Debug().Str("handle", h.ID).Err(err).Msg("submission failed")
		sink.OutboxFailed(h, err)
		return
	}
	sink.OutboxSent(h)
}

func (e *Endpoint) receive(msg []byte) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return transport.Retriable("peer closed", transport.ErrNotConnected)
	}
	e.enqueue(func() {
		if sink := e.currentSink(); sink != nil {
			sink.InboxReceived(msg)
		}
	})
	return nil
}

func (e *Endpoint) currentSink() transport.Sink {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sink
}

func (e *Endpoint) enqueue(job func()) {
	e.mu.Lock()
	e.queue = append(e.queue, job)
	e.mu.Unlock()
	select {
	case e.mailbox <- struct{}{}:
	default:
	}
}

func (e *Endpoint) run() {
	defer e.wg.Done()
	for {
		select {
		case <-e.done:
			return
		case <-e.mailbox:
		}
		for {
			e.mu.Lock()
			if len(e.queue) == 0 {
				e.mu.Unlock()
				break
			}
			job := e.queue[0]
			e.queue = e.queue[1:]
			e.mu.Unlock()
			job()
		}
	}
}
