package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"gate-snake/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ServerOptions are the optional parts of a Server.
type ServerOptions struct {
	Renderer    FrameRenderer
	CORSOrigins []string
	RateLimit   *RateLimitConfig
	ReadOnly    bool
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	engine      *game.Engine
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer creates a new API server.
//
// Background workers do NOT start until Start() is called, so tests can
// construct the server and use Router() directly.
func NewServer(engine *game.Engine, opts ServerOptions) *Server {
	rateLimitCfg := DefaultRateLimitConfig
	if opts.RateLimit != nil {
		rateLimitCfg = *opts.RateLimit
	}

	s := &Server{
		engine:      engine,
		rateLimiter: NewIPRateLimiter(rateLimitCfg),
		wsHub:       NewWebSocketHub(engine, NewOriginPolicy(opts.CORSOrigins), opts.ReadOnly),
	}

	s.router = NewRouter(RouterConfig{
		Engine:      engine,
		Renderer:    opts.Renderer,
		RateLimiter: s.rateLimiter,
		CORSOrigins: opts.CORSOrigins,
		ReadOnly:    opts.ReadOnly,
	})

	// The WebSocket route needs the hub instance, so it can't be part of
	// the generic NewRouter factory.
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Start starts the broadcast loop and serves HTTP until Shutdown.
// It returns nil after a graceful shutdown.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	go s.wsHub.Run(s.engine)
	log.Info().Str("addr", ln.Addr().String()).Msg("api server starting")

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
//
//	server := api.NewServer(engine, api.ServerOptions{})
//	ts := httptest.NewServer(server.Router())
//	defer ts.Close()
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown stops accepting requests, closes WebSocket clients and stops
// the background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsHub.Stop()
	s.rateLimiter.Stop()
	return s.httpServer.Shutdown(ctx)
}
