// Package server exposes the message decision pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edgard/jaiminho/internal/config"
	"github.com/edgard/jaiminho/internal/domain"
	"github.com/edgard/jaiminho/internal/logger"
	"github.com/edgard/jaiminho/internal/pipeline"
	"github.com/edgard/jaiminho/internal/tenant"
)

// InstanceKeyHeader carries the optional instance credential.
const InstanceKeyHeader = "X-Instance-Key"

// Processor runs one message through the decision pipeline.
type Processor interface {
	Process(ctx context.Context, in pipeline.Input) (*domain.ProcessingResult, error)
}

// TenantGate resolves the caller of a non-message endpoint.
type TenantGate interface {
	Resolve(ctx context.Context, req tenant.GateRequest) (*domain.TenantContext, domain.Rejection)
}

// FeedbackRecorder stores the user verdicts that sender history is built from.
type FeedbackRecorder interface {
	RecordFeedback(ctx context.Context, tenantID, userID string, fb *domain.SenderFeedback) (bool, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the server collaborators. The feedback route is mounted only when
// both Tenants and Feedback are set; Health is optional.
type Deps struct {
	Processor Processor
	Tenants   TenantGate
	Feedback  FeedbackRecorder
	Health    Pinger
}

// Server is the webhook HTTP server.
type Server struct {
	cfg      config.ServerConfig
	deps     Deps
	logger   *slog.Logger
	validate *validator.Validate
	http     *http.Server
}

func New(cfg config.ServerConfig, deps Deps, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		cfg:      cfg,
		deps:     deps,
		logger:   log.With("component", "http_server"),
		validate: validator.New(),
	}
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(logger.Middleware(s.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/instances/{instanceID}", func(r chi.Router) {
		r.Use(s.rateLimit())
		r.Post("/messages", s.handleMessage)
		if s.deps.Tenants != nil && s.deps.Feedback != nil {
			r.Post("/feedback", s.handleFeedback)
		}
	})
	return r
}

// rateLimit limits webhook calls per instance id.
func (s *Server) rateLimit() func(http.Handler) http.Handler {
	limit := s.cfg.RateLimit
	if limit <= 0 {
		limit = 120
	}
	window := s.cfg.RateWindow
	if window <= 0 {
		window = time.Minute
	}
	retryAfter := fmt.Sprintf("%.0f", window.Seconds())

	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return "instance:" + chi.URLParam(r, "instanceID"), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", retryAfter)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		}),
	)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server", "timeout", timeout)
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
