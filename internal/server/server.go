package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/wishmail/wishmail/internal/core/ratelimit"
	"github.com/wishmail/wishmail/internal/metrics"
	"github.com/wishmail/wishmail/internal/observability"
	"github.com/wishmail/wishmail/internal/server/handlers"
	servermw "github.com/wishmail/wishmail/internal/server/middleware"
)

// Default HTTP timeouts, used when the matching option is zero.
const (
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 120 * time.Second
)

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	host   string
	port   int

	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration

	health     *handlers.HealthManager
	adminToken string
	limiter    *ratelimit.RateLimiter
	testSender handlers.TestSender
}

// Option configures a Server.
type Option func(*Server)

// WithTimeouts overrides the read, write and idle timeouts.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
		if idle > 0 {
			s.idleTimeout = idle
		}
	}
}

// WithHealthManager serves the health probes from hm.
func WithHealthManager(hm *handlers.HealthManager) Option {
	return func(s *Server) {
		if hm != nil {
			s.health = hm
		}
	}
}

// WithAdmin mounts the /admin routes behind token. An empty token leaves
// them unmounted. sender may be nil.
func WithAdmin(token string, limiter *ratelimit.RateLimiter, sender handlers.TestSender) Option {
	return func(s *Server) {
		s.adminToken = token
		s.limiter = limiter
		s.testSender = sender
	}
}

// New creates a new HTTP server instance
func New(host string, port int, opts ...Option) *Server {
	r := chi.NewRouter()

	// Standard chi middleware
	r.Use(middleware.RealIP)

	// Recovery sits inside RequestMetrics so recovered panics are counted as 500s.
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	s := &Server{
		router:       r,
		host:         host,
		port:         port,
		readTimeout:  DefaultReadTimeout,
		writeTimeout: DefaultWriteTimeout,
		idleTimeout:  DefaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.health == nil {
		s.health = handlers.NewHealthManager(handlers.CurrentVersion().App.Version)
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         net.JoinHostPort(host, fmt.Sprint(port)),
		Handler:      s.router,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}

	return s
}

// Start starts the HTTP server and blocks until it stops. A graceful
// Shutdown makes Start return nil.
func (s *Server) Start() error {
	addr := s.server.Addr

	metrics.SetServerStartTime(time.Now().Unix())
	observability.Logger().Info("Starting HTTP server",
		zap.String("host", s.host),
		zap.Int("port", s.port),
		zap.String("addr", addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	observability.Logger().Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.port
}
