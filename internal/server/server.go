// File: internal/server/server.go

// Package server exposes the command catalog over HTTP. The transport is a
// thin shell: it decodes a parameter object, hands it to the dispatcher and
// maps the typed outcome onto a status code and JSON body.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/voidhawk9/autoteller/api/schemas"
	"github.com/voidhawk9/autoteller/internal/command"
	"github.com/voidhawk9/autoteller/internal/config"
)

// CommandExecutor is the dispatcher surface the transport depends on.
type CommandExecutor interface {
	Dispatch(ctx context.Context, name string, params map[string]interface{}) (*schemas.Result, error)
}

// AuditLister reads back recorded invocations, most recent first. The audit
// store satisfies it when a database is configured.
type AuditLister interface {
	RecentInvocations(ctx context.Context, limit int) ([]command.InvocationRecord, error)
}

// Bounds for the invocation listing endpoint.
const (
	defaultInvocationLimit = 20
	maxInvocationLimit     = 100
)

// Server hosts the HTTP command transport.
type Server struct {
	cfg        config.ServerConfig
	logger     *zap.Logger
	executor   CommandExecutor
	audit      AuditLister
	limiter    *rate.Limiter
	httpServer *http.Server
}

// errorPayload is the JSON body returned for every failed command.
type errorPayload struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

// New builds the server. Rate limiting is disabled when RatePerSecond is 0;
// a nil audit disables the invocation listing endpoint.
func New(cfg config.ServerConfig, logger *zap.Logger, executor CommandExecutor, audit AuditLister) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger.Named("server"),
		executor: executor,
		audit:    audit,
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return s
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	timeout := s.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	r.Use(middleware.Timeout(timeout))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.rateLimit).Post("/commands/{name}", s.handleCommand)
		if s.audit != nil {
			r.Get("/invocations", s.handleInvocations)
		}
	})

	return r
}

// Start runs the HTTP server until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.Router(),
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP command transport listening.", zap.String("addr", s.cfg.ListenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
			return
		}
		errChan <- nil
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP command transport.")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errChan
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleCommand decodes the parameter object and dispatches the named
// command. An empty body is a valid zero-parameter invocation.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	params := map[string]interface{}{}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, schemas.WrapError(schemas.KindValidation, err, "failed to read request body"))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &params); err != nil {
			s.writeError(w, schemas.WrapError(schemas.KindValidation, err, "request body must be a JSON object"))
			return
		}
	}

	result, err := s.executor.Dispatch(r.Context(), name, params)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Warn("Failed to encode command result.", zap.Error(err))
	}
}

// invocationPayload is one row of the invocation listing.
type invocationPayload struct {
	ID         string `json:"id"`
	Command    string `json:"command"`
	Succeeded  bool   `json:"succeeded"`
	ErrorKind  string `json:"error_kind,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	StartedAt  string `json:"started_at"`
}

// handleInvocations lists the newest audit rows. Registered only when an
// audit store is configured.
func (s *Server) handleInvocations(w http.ResponseWriter, r *http.Request) {
	limit := defaultInvocationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, schemas.NewError(schemas.KindValidation,
				"limit must be a positive integer, got %q", raw))
			return
		}
		limit = n
	}
	if limit > maxInvocationLimit {
		limit = maxInvocationLimit
	}

	records, err := s.audit.RecentInvocations(r.Context(), limit)
	if err != nil {
		s.writeError(w, schemas.WrapError(schemas.KindInternal, err, "failed to list invocations"))
		return
	}

	payload := make([]invocationPayload, 0, len(records))
	for _, rec := range records {
		payload = append(payload, invocationPayload{
			ID:         rec.ID,
			Command:    rec.Command,
			Succeeded:  rec.Succeeded,
			ErrorKind:  rec.ErrorKind,
			DurationMS: rec.Duration.Milliseconds(),
			StartedAt:  rec.StartedAt.UTC().Format(time.RFC3339Nano),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("Failed to encode invocation listing.", zap.Error(err))
	}
}

// writeError maps the error taxonomy onto HTTP statuses and emits the
// standard error payload.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var payload errorPayload
	payload.Error.Kind = string(schemas.KindOf(err))
	payload.Error.Message = err.Error()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForKind(schemas.KindOf(err)))
	if encErr := json.NewEncoder(w).Encode(payload); encErr != nil {
		s.logger.Warn("Failed to encode error payload.", zap.Error(encErr))
	}
}

// statusForKind maps error kinds to status codes: the caller's fault is 4xx,
// an unreachable upstream is 502, everything else is 500.
func statusForKind(kind schemas.ErrorKind) int {
	switch kind {
	case schemas.KindValidation, schemas.KindPathViolation, schemas.KindTOTPConfig:
		return http.StatusBadRequest
	case schemas.KindElementNotFound:
		return http.StatusUnprocessableEntity
	case schemas.KindNavigation, schemas.KindRetryExhausted:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// rateLimit rejects invocations above the configured rate with 429. No-op
// when limiting is disabled.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			var payload errorPayload
			payload.Error.Kind = "rate_limited"
			payload.Error.Message = "too many command invocations"
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(payload)
			return
		}
		next.ServeHTTP(w, r)
	})
}
