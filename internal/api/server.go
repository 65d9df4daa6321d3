// Package api exposes the run store and reduction pipeline over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sitelens/sitelens/internal/health"
	"github.com/sitelens/sitelens/internal/otel"
	"github.com/sitelens/sitelens/internal/reduce"
	"github.com/sitelens/sitelens/internal/store"
)

type Server struct {
	runStore          *store.RunStore
	reducer           *reduce.Reducer
	metrics           *otel.Metrics
	tracer            *otel.Tracer
	healthMonitor     *health.Monitor
	server            *http.Server
	listener          net.Listener
	mu                sync.Mutex
	running           bool
	addr              string
	rateLimiter       *rateLimiter
	rateLimiterConfig *RateLimiterConfig
}

func NewServer(addr string, rs *store.RunStore, reducer *reduce.Reducer) *Server {
	return &Server{
		runStore:          rs,
		reducer:           reducer,
		addr:              addr,
		rateLimiterConfig: DefaultRateLimiterConfig(),
	}
}

// SetRateLimiterConfig configures the rate limiter.
// Must be called before Start() for changes to take effect.
func (s *Server) SetRateLimiterConfig(config *RateLimiterConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimiterConfig = config
	s.rateLimiter = nil // reset to pick up new config
}

func (s *Server) SetMetrics(m *otel.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

func (s *Server) SetTracer(t *otel.Tracer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracer = t
}

func (s *Server) SetHealthMonitor(m *health.Monitor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthMonitor = m
}

func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/runs", s.rateLimitMiddleware(http.HandlerFunc(s.handleRuns)).ServeHTTP)
	mux.HandleFunc("/runs/", s.rateLimitMiddleware(http.HandlerFunc(s.routeRuns)).ServeHTTP)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/status", s.handleStatus)

	var handler http.Handler = mux
	if s.tracer != nil {
		handler = otel.Middleware(s.tracer)(handler)
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second, // Protect against slowloris attacks
	}

	s.running = true

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Error("server_error", "error", err)
		}
	}()

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) URL() string {
	return fmt.Sprintf("http://%s", s.Addr())
}

func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListRuns(w, r)
	case http.MethodPost:
		s.handleCreateRun(w, r)
	default:
		s.writeMethodNotAllowed(w, r.Method, "GET, POST")
	}
}

func (s *Server) routeRuns(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/runs/")
	if path == "" || path == "/" {
		s.handleRuns(w, r)
		return
	}

	parts := strings.Split(path, "/")
	runID := parts[0]

	if len(parts) == 1 {
		s.handleRun(w, r, runID)
		return
	}

	action := parts[1]
	switch action {
	case "samples":
		s.handleIngestSamples(w, r, runID)
	case "series":
		s.handleSeries(w, r, runID)
	case "distribution":
		s.handleDistribution(w, r, runID)
	default:
		s.writeError(w, http.StatusNotFound, &ErrorResponse{
			ErrorType:    ErrorTypeNotFound,
			ErrorCode:    "ENDPOINT_NOT_FOUND",
			ErrorMessage: "Endpoint not found",
			Retryable:    false,
			Details: map[string]interface{}{
				"path": r.URL.Path,
			},
		})
	}
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Lazy initialize rate limiter
		s.mu.Lock()
		if s.rateLimiter == nil {
			s.rateLimiter = newRateLimiter(s.rateLimiterConfig)
		}
		rl := s.rateLimiter
		config := s.rateLimiterConfig
		s.mu.Unlock()

		if !rl.allowKey(clientKey(r)) {
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", config.BurstSize))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(time.Second).Unix()))
			w.Header().Set("Retry-After", "1")

			s.writeError(w, http.StatusTooManyRequests, &ErrorResponse{
				ErrorType:    ErrorTypeRateLimited,
				ErrorCode:    "RATE_LIMIT_EXCEEDED",
				ErrorMessage: "Too many requests. Please slow down.",
				Retryable:    true,
				Details: map[string]interface{}{
					"retry_after_seconds": 1,
				},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientKey identifies a client for rate limiting purposes.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// StartTestServer creates a test server on an ephemeral port and returns
// it with a cleanup function. Returns an error if the server fails to start.
func StartTestServer(rs *store.RunStore, reducer *reduce.Reducer) (*Server, func(), error) {
	server := NewServer("127.0.0.1:0", rs, reducer)
	if err := server.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start test server: %w", err)
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
	return server, cleanup, nil
}
