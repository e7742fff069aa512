// Package observability exposes sync and companion counters for Prometheus.
package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	syncRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "watchsync",
			Subsystem: "sync",
			Name:      "requests_total",
			Help:      "Refresh requests by outcome.",
		},
		[]string{"result"},
	)
	syncInbound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "watchsync",
			Subsystem: "sync",
			Name:      "inbound_total",
			Help:      "Inbound dictionaries by outcome.",
		},
		[]string{"result"},
	)
	syncKeysChanged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "watchsync",
			Subsystem: "sync",
			Name:      "keys_changed_total",
			Help:      "Shadow store keys whose value changed.",
		},
	)
	syncKeysRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "watchsync",
			Subsystem: "sync",
			Name:      "keys_rejected_total",
			Help:      "Inbound keys skipped by a validator.",
		},
		[]string{"key"},
	)
	companionPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "watchsync",
			Subsystem: "companion",
			Name:      "dictionaries_total",
			Help:      "Dictionaries queued by the companion.",
		},
		[]string{"kind"},
	)
	frames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "watchsync",
			Subsystem: "transport",
			Name:      "frames_total",
			Help:      "Websocket frames by direction and outcome.",
		},
		[]string{"direction", "result"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			syncRequests,
			syncInbound,
			syncKeysChanged,
			syncKeysRejected,
			companionPublished,
			frames,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx ends. The face uses it so
// device-side counters can be scraped without a companion.
func Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, ln)
}

func ServeListener(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RecordRequest counts one Request outcome: sent, rejected or failed.
func RecordRequest(result string) {
	RegisterMetrics()
	syncRequests.WithLabelValues(result).Inc()
}

// RecordInbound counts one inbound dictionary: applied or dropped.
func RecordInbound(result string, changed int) {
	RegisterMetrics()
	syncInbound.WithLabelValues(result).Inc()
	if changed > 0 {
		syncKeysChanged.Add(float64(changed))
	}
}

func RecordKeyRejected(key uint32) {
	RegisterMetrics()
	syncKeysRejected.WithLabelValues(strconv.FormatUint(uint64(key), 10)).Inc()
}

// RecordPublish counts a companion dictionary: full or partial.
func RecordPublish(kind string) {
	RegisterMetrics()
	companionPublished.WithLabelValues(kind).Inc()
}

// RecordFrame counts a websocket frame: in or out, ok or error.
func RecordFrame(direction string, ok bool) {
	RegisterMetrics()
	result := "ok"
	if !ok {
		result = "error"
	}
	frames.WithLabelValues(direction, result).Inc()
}
