package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/hongminglow/carepoint/internal/app"
	"github.com/hongminglow/carepoint/internal/guard"
	"github.com/hongminglow/carepoint/internal/http/handlers"
	"github.com/hongminglow/carepoint/internal/middleware"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// Handler builds the portal's routes behind CORS, request logging and the route guard.
func Handler(core *app.Core, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	handlers.NewHealthHandler(time.Now(), core.Gateway.BaseURL()).Register(mux)
	handlers.NewAuthHandler(core.Session, core.Gateway, logger.With().Str("component", "auth").Logger()).Register(mux)
	handlers.NewPortalHandler(core.Gateway, logger.With().Str("component", "portal").Logger()).Register(mux)

	guarded := middleware.Guard(guard.DefaultRoutes(), core.Session, logger, mux)
	return middleware.CORS(core.Config.CORSOrigins, middleware.Logging(logger, guarded))
}

// New wires up middleware, routes, and returns a ready server.
func New(core *app.Core, logger zerolog.Logger) *Server {
	httpServer := &http.Server{
		Addr:              core.Config.HTTPAddress(),
		Handler:           Handler(core, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      core.Config.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
