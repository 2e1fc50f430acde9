// Package http implements the REST API of the study-hours service.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/alem-hub/study-hours/internal/application/command"
	"github.com/alem-hub/study-hours/internal/application/query"
	"github.com/alem-hub/study-hours/internal/interface/http/handlers"
	"github.com/alem-hub/study-hours/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Host string
	Port int // 0 picks a free port

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodyBytes   int64

	EnableCORS     bool
	AllowedOrigins []string

	// RateLimitPerMinute is the per-client budget. 0 disables limiting.
	RateLimitPerMinute int

	// TrustProxyHeaders takes the client address from X-Forwarded-For.
	// Enable only behind a proxy that sets it.
	TrustProxyHeaders bool

	// APIKeyHeader carries the key on write endpoints.
	APIKeyHeader string

	// APIKeyHashes are bcrypt hashes of accepted keys. Empty leaves write
	// endpoints open.
	APIKeyHashes []string

	// Version is reported in response metadata.
	Version string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxHeaderBytes:     1 << 20,
		MaxBodyBytes:       64 << 10,
		EnableCORS:         true,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 100,
		APIKeyHeader:       "X-API-Key",
		Version:            "v1",
	}
}

// Address returns "host:port".
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Dependencies are the application handlers the routes call. A nil handler
// makes its route answer 503.
type Dependencies struct {
	GetRequiredHours *query.GetRequiredHoursHandler
	GetCategoryHours *query.GetCategoryHoursHandler
	ListStudents     *query.ListStudentsHandler
	GetCategoryStats *query.GetCategoryStatsHandler

	EnrollStudent  *command.EnrollStudentHandler
	ChangeCategory *command.ChangeCategoryHandler

	Logger        *logger.Logger
	HealthChecker handlers.HealthChecker
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server serves the API.
type Server struct {
	config     Config
	deps       Dependencies
	logger     *logger.Logger
	router     *http.ServeMux
	apiKeys    *handlers.APIKeyAuth
	limiter    *rateLimiter
	httpServer *http.Server

	mu        sync.Mutex
	listener  net.Listener
	startedAt time.Time
	stopOnce  sync.Once
}

// NewServer builds the router and middleware. Nothing listens until Start.
func NewServer(config Config, deps Dependencies) *Server {
	if config.APIKeyHeader == "" {
		config.APIKeyHeader = "X-API-Key"
	}
	if config.Version == "" {
		config.Version = "v1"
	}

	s := &Server{
		config:  config,
		deps:    deps,
		logger:  deps.Logger,
		router:  http.NewServeMux(),
		apiKeys: handlers.NewAPIKeyAuth(config.APIKeyHeader, config.APIKeyHashes, writeJSONError),
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	s.logger = s.logger.With(logger.Component("http"))

	if config.RateLimitPerMinute > 0 {
		s.limiter = newRateLimiter(config.RateLimitPerMinute)
	}

	s.routes()
	s.httpServer = &http.Server{
		Handler:        handlers.Chain(s.middleware()...)(s.router),
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /healthz", s.handleHealth)

	s.router.HandleFunc("GET /api/v1/students", s.handleListStudents)
	s.router.HandleFunc("GET /api/v1/students/{id}/required-hours", s.handleGetRequiredHours)
	s.router.HandleFunc("GET /api/v1/categories/{category}/required-hours", s.handleGetCategoryHours)
	s.router.HandleFunc("GET /api/v1/stats", s.handleGetStats)

	s.router.Handle("POST /api/v1/students", s.apiKeys.Middleware(http.HandlerFunc(s.handleEnrollStudent)))
	s.router.Handle("PUT /api/v1/students/{id}/category", s.apiKeys.Middleware(http.HandlerFunc(s.handleChangeCategory)))
}

// Handler returns the router wrapped in middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Listen binds the configured address. Bind errors surface here rather than
// from a background goroutine.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return errors.New("http: server already listening")
	}

	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("http: listen on %s: %w", s.config.Address(), err)
	}
	s.listener = ln
	s.startedAt = time.Now()
	return nil
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve handles connections on the bound listener until Shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("http: Serve called before Listen")
	}

	s.logger.Info("HTTP server listening", logger.String("address", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http: serve: %w", err)
	}
	return nil
}

// Start binds and serves, blocking until Shutdown.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// StartAsync binds synchronously and serves in a goroutine. The channel
// yields a serve error, if any, and is closed when serving stops.
func (s *Server) StartAsync() (<-chan error, error) {
	if err := s.Listen(); err != nil {
		return nil, err
	}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.Serve(); err != nil {
			errCh <- err
		}
	}()
	return errCh, nil
}

// Shutdown stops accepting connections, drains in-flight requests and stops
// the rate limiter. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
	})

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return nil
	}

	s.logger.Info("shutting down HTTP server")
	err := s.httpServer.Shutdown(ctx)
	_ = ln.Close() // Listen without Serve leaves it open
	return err
}

// Uptime returns the time since Listen, or 0.
func (s *Server) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return 0
	}
	return time.Since(s.startedAt)
}
