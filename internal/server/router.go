package server

import (
	"net/http"

	"github.com/hooktide/hooktide/internal/auth"
	"github.com/hooktide/hooktide/internal/metrics"
	"github.com/hooktide/hooktide/internal/server/handlers"
)

type Router struct {
	server      *Server
	mux         *http.ServeMux
	middlewares []Middleware
}

type Middleware func(http.Handler) http.Handler

func NewRouter(srv *Server) *Router {
	r := &Router{
		server: srv,
		mux:    http.NewServeMux(),
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

func (r *Router) setupMiddleware() {
	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware)

	if r.server.cfg.Server.CORS.Enabled {
		r.Use(CORSMiddleware(r.server.cfg.Server.CORS))
	}

	if r.server.cfg.Server.MaxBodySize > 0 {
		r.Use(MaxBodySizeMiddleware(r.server.cfg.Server.MaxBodySize))
	}
}

func (r *Router) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

func (r *Router) setupRoutes() {
	ingest := handlers.NewIngestHandler(r.server.service, r.server.cfg.Webhook)
	api := handlers.NewWebhookHandlers(r.server.service)
	health := handlers.NewHealthHandlers(r.server.service)
	authHandlers := handlers.NewAuthHandlers(r.server.auth)

	r.mux.HandleFunc("POST /webhook", ingest.Receive)
	r.mux.HandleFunc("GET /webhook/health", ingest.Health)

	r.mux.HandleFunc("GET /health", health.Liveness)
	r.mux.Handle("GET /metrics", metrics.Handler())

	r.mux.HandleFunc("GET /api/webhooks", r.protect(api.List))
	r.mux.HandleFunc("GET /api/webhooks/stats", r.protect(api.Stats))
	r.mux.HandleFunc("GET /api/webhooks/search", r.protect(api.Search))
	r.mux.HandleFunc("GET /api/webhooks/{id}", r.protect(api.Get))
	r.mux.HandleFunc("PUT /api/webhooks/{id}/processed", r.protect(api.MarkProcessed))
	r.mux.HandleFunc("DELETE /api/webhooks/cleanup", r.protect(api.Cleanup))
	r.mux.HandleFunc("DELETE /api/webhooks/{id}", r.protect(api.Delete))

	r.mux.HandleFunc("GET /api/storage/health", r.protect(health.StorageHealth))
	r.mux.HandleFunc("GET /api/queue/stats", r.protect(health.QueueStats))

	r.mux.HandleFunc("POST /api/auth/login", authHandlers.Login)
	r.mux.HandleFunc("GET /api/auth/me", r.protect(authHandlers.Me))

	if r.server.cfg.Realtime.Enabled && r.server.hub != nil {
		rt := handlers.NewRealtimeHandler(r.server.hub)
		r.mux.HandleFunc("GET /api/realtime", rt.HandleWebSocket)
		r.mux.HandleFunc("GET /api/websocket/info", r.protect(rt.Info))
	}
}

// protect wraps a handler with bearer auth. A passthrough when auth is not
// configured.
func (r *Router) protect(fn http.HandlerFunc) http.HandlerFunc {
	handler := auth.RequireAuth(r.server.auth)(fn)
	return handler.ServeHTTP
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	handler := http.Handler(r.mux)

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}

	handler.ServeHTTP(w, req)
}
