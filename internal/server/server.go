package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/noveum/gatebench/internal/errors"
	"github.com/noveum/gatebench/internal/observability"
	"github.com/noveum/gatebench/internal/server/handlers"
	servermw "github.com/noveum/gatebench/internal/server/middleware"
)

// Server is a mock OpenAI-compatible upstream.
type Server struct {
	router      *chi.Mux
	server      *http.Server
	completions *handlers.Completions
	host        string
	port        int
}

// New creates a mock upstream server.
func New(host string, port int, opts handlers.Options) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router:      r,
		completions: handlers.NewCompletions(opts),
		host:        host,
		port:        port,
	}

	handlers.SetHTTPErrorResponder(HandleError)
	s.registerRoutes()

	return s
}

// HandleError central handler for all errors
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

// Start serves until Shutdown is called. Write timeouts are left unset so
// slow streams are not cut off.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger().Info("Starting mock upstream",
		zap.String("host", s.host),
		zap.Int("port", s.port),
		zap.String("addr", addr))

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	logger().Info("Shutting down mock upstream", zap.Uint64("served", s.completions.Served()))
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing
func (s *Server) Handler() http.Handler {
	return s.router
}

// Served returns the number of completion requests received.
func (s *Server) Served() uint64 {
	return s.completions.Served()
}

func logger() *zap.Logger {
	if observability.ServerLogger != nil {
		return observability.ServerLogger
	}
	return zap.NewNop()
}
