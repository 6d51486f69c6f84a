package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hooktide/hooktide/internal/auth"
	"github.com/hooktide/hooktide/internal/config"
	"github.com/hooktide/hooktide/internal/realtime"
	"github.com/hooktide/hooktide/internal/webhook"
)

// Server owns the HTTP listener, the router, and the realtime hub lifecycle.
type Server struct {
	cfg     *config.Config
	service *webhook.Service
	hub     *realtime.Hub
	auth    *auth.Service

	httpServer *http.Server
	router     *Router
	hubCancel  context.CancelFunc
}

// New assembles the server around an already-constructed webhook service.
func New(cfg *config.Config, service *webhook.Service, hub *realtime.Hub) *Server {
	srv := &Server{
		cfg:     cfg,
		service: service,
		hub:     hub,
		auth:    auth.NewService(cfg.Auth),
	}

	srv.router = NewRouter(srv)
	srv.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      srv.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return srv
}

// Start runs the hub heartbeat loop and blocks serving HTTP until shutdown.
func (s *Server) Start(ctx context.Context) error {
	log.Info().
		Str("addr", s.cfg.Server.Address()).
		Msg("Starting server")

	if s.hub != nil && s.cfg.Realtime.Enabled {
		hubCtx, cancel := context.WithCancel(ctx)
		s.hubCancel = cancel
		go s.hub.Run(hubCtx)
		log.Info().
			Dur("heartbeat_interval", s.cfg.Realtime.HeartbeatInterval).
			Msg("Realtime hub started")
	}

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and closes realtime connections.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down server")

	if s.hub != nil {
		if s.hubCancel != nil {
			s.hubCancel()
		}
		s.hub.Stop()
		log.Info().Msg("Realtime hub stopped")
	}

	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the fully-wrapped router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
