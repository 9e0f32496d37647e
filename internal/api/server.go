package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-sentinel/internal/audit"
	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-sentinel/internal/security"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Engine is the subset of the security engine the API uses.
type Engine interface {
	Status() security.Status
	IsLocked() bool
	UnlockWithPrompt(ctx context.Context, method string, prompt security.AuthenticationPrompt) bool
	RecordFailedAttempt(ctx context.Context, kind string)
}

// ChannelStatus reports the dashboard connection for health checks.
type ChannelStatus interface {
	IsConnected() bool
	Attempts() int
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	PINHash string
	Logger  *logging.Logger
	Engine  Engine
	Events  audit.Repository // optional: /events returns 503 without it
	Channel ChannelStatus    // optional
	Version string
}

// Server is the local diagnostics HTTP server.
//
// It is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	pinHash string
	logger  *logging.Logger
	engine  Engine
	events  audit.Repository
	channel ChannelStatus
	version string
	started time.Time
	server  *http.Server
}

// New creates a new API server with the given dependencies.
//
// Parameters:
//   - deps: Required dependencies (config, logger, engine)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("security engine is required")
	}

	return &Server{
		cfg:     deps.Config,
		pinHash: deps.PINHash,
		logger:  deps.Logger.Component("api"),
		engine:  deps.Engine,
		events:  deps.Events,
		channel: deps.Channel,
		version: deps.Version,
		started: time.Now(),
	}, nil
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
