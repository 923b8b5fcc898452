// Package webui serves the inpainting session over HTTP: a JSON and PNG API,
// a websocket event stream and the embedded drawing page.
package webui

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"inpaint_backend/logging"
	"inpaint_backend/webui/static"
)

// AuthProvider guards the API. auth.Middleware implements it.
type AuthProvider interface {
	Middleware(next http.Handler) http.Handler
}

// ServerConfig configures the Server.
type ServerConfig struct {
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// InferenceTimeout bounds one POST /api/inpaint, including the wait for
	// a cycle already running.
	InferenceTimeout time.Duration

	// LogSkipPaths are not request-logged.
	LogSkipPaths []string

	Broadcaster BroadcasterConfig
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:             "localhost:3000",
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     150 * time.Second,
		IdleTimeout:      120 * time.Second,
		InferenceTimeout: 120 * time.Second,
		LogSkipPaths:     []string{"/health", "/api/status", "/api/image", "/api/mask"},
		Broadcaster:      DefaultBroadcasterConfig(),
	}
}

// Server is the HTTP front end of one session.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	cfg        ServerConfig
	logger     *logging.Logger
	api        *API
	events     *Broadcaster
	auth       AuthProvider
}

// Deps are the collaborators a Server needs. Session is required; the rest
// may be nil.
type Deps struct {
	Session Session
	History HistoryStore
	Metrics MetricsSource
	Ops     OperationTracker
	Auth    AuthProvider
	Logger  *logging.Logger
}

// NewServer wires routes and middleware.
func NewServer(cfg ServerConfig, deps Deps) (*Server, error) {
	if deps.Session == nil {
		return nil, errors.New("webui: session is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.InferenceTimeout <= 0 {
		cfg.InferenceTimeout = DefaultServerConfig().InferenceTimeout
	}

	events := NewBroadcaster(cfg.Broadcaster, logger)
	s := &Server{
		mux:    http.NewServeMux(),
		cfg:    cfg,
		logger: logger,
		events: events,
		auth:   deps.Auth,
		api: &API{
			session: deps.Session,
			history: deps.History,
			metrics: deps.Metrics,
			ops:     deps.Ops,
			events:  events,
			logger:  logger.Named("api"),
			cfg:     cfg,
		},
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.api.handleHealth)

	protected := http.NewServeMux()
	s.api.RegisterRoutes(protected)
	protected.HandleFunc("GET /ws", s.events.HandleConnection)
	protected.Handle("GET /", http.FileServerFS(static.FS()))

	var h http.Handler = protected
	if s.auth != nil {
		h = s.auth.Middleware(h)
	}
	s.mux.Handle("/", h)
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler {
	return NewLoggingMiddleware(s.logger, s.cfg.LogSkipPaths...).Handler(s.mux)
}

// Events returns the broadcaster.
func (s *Server) Events() *Broadcaster {
	return s.events
}

// Start serves until Shutdown is called. It returns nil after a clean
// shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.events.Start(ctx)

	s.logger.Info("HTTP server listening",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("auth", s.auth != nil))

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}
