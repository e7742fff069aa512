package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/watchsync/internal/protocol/frame"
	"github.com/gorilla/websocket"
)

// Server is the companion side. It serves one device connection at a time.
type Server struct {
	*Endpoint
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

func NewServer(cfg Config) *Server {
	if cfg.Kind == 0 {
		cfg.Kind = frame.KindUpdate
	}
	ep := newEndpoint(cfg, "server")
	return &Server{
		Endpoint: ep,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: ep.cfg.HandshakeTimeout,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("upgrade failed")
		return
	}
	if err := s.serve(r.Context(), conn); err != nil && !isClosed(err) {
		s.log.Debug().Err(err).Msg("connection ended")
	}
}

// Handle mounts an extra handler next to the websocket endpoint.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// ListenAndServe serves the websocket on path and any Handle'd routes on addr
// until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr, path string) error {
	if path == "" {
		path = "/"
	}
	s.mux.Handle(path, s)
	srv := &http.Server{Addr: addr, Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Str("path", path).Msg("listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	_ = s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
