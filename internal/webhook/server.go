package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/mattjoyce/line-webhook/internal/line"
	applog "github.com/mattjoyce/line-webhook/internal/log"
	"github.com/mattjoyce/line-webhook/internal/message"
	"github.com/mattjoyce/line-webhook/internal/receipts"
)

// Server represents the webhook HTTP server.
type Server struct {
	config   Config
	verifier SignatureVerifier
	store    MessageAppender
	receipts ReceiptRecorder
	logger   *slog.Logger
	metrics  *Metrics
	server   *http.Server
}

// New creates a new webhook server instance. ledger may be nil.
func New(config Config, verifier SignatureVerifier, store MessageAppender, ledger ReceiptRecorder, logger *slog.Logger) *Server {
	// Apply defaults
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if config.SignatureHeader == "" {
		config.SignatureHeader = DefaultSignatureHeader
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		config:   config,
		verifier: verifier,
		store:    store,
		receipts: ledger,
		logger:   logger,
		metrics:  NewMetrics(),
	}
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Start starts the webhook HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("webhook server starting",
		"listen", s.config.Listen,
		"path", s.config.Path,
		"metrics", s.config.MetricsEnabled,
	)

	// Run server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(s.metrics.instrument)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions, http.MethodHead},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post(s.config.Path, s.handleWebhook)
	if s.config.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	return r
}

// loggingMiddleware logs HTTP requests (excludes sensitive payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Log request (no body content for security)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, RootResponse{
		Status:  "LINE Webhook Server is running",
		Version: Version,
		Health:  "OK",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// delivery is what one POST /webhook produced.
type delivery struct {
	event   *line.Event
	dropped int
	outcome receipts.Outcome
	message string
}

// handleWebhook handles incoming LINE webhook POST requests.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())
	logger := applog.WithRequest(s.logger, requestID)
	logger.Info("received webhook request")

	// Enforce body size limit
	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodySize+1))
	if err != nil {
		s.respondFailure(w, r, logger, payloadError(msgReadFailed, err), nil)
		return
	}
	if int64(len(body)) > s.config.MaxBodySize {
		logger.Warn("webhook payload too large", "limit", s.config.MaxBodySize)
		s.respondJSON(w, http.StatusRequestEntityTooLarge, DetailResponse{Detail: msgTooLarge})
		return
	}

	// Verify before any parsing: the signature covers the exact bytes received.
	signature := r.Header.Get(s.config.SignatureHeader)
	if err := s.verifier.VerifySignature(body, signature); err != nil {
		s.respondFailure(w, r, logger, authError(err), nil)
		return
	}

	d, werr := s.process(logger, body)
	if werr != nil {
		s.respondFailure(w, r, logger, werr, d)
		return
	}

	s.record(r.Context(), logger, requestID, d, "")
	s.respondJSON(w, http.StatusOK, StatusResponse{Status: StatusOK, Message: d.message})
}

// process parses the verified body and stores the first event if it is a
// message. The returned delivery is non-nil whenever the envelope parsed.
func (s *Server) process(logger *slog.Logger, body []byte) (*delivery, *Error) {
	env, err := line.ParseEnvelope(body)
	if err != nil {
		return nil, payloadError(msgInvalidJSON, err)
	}

	ev, dropped, err := env.FirstEvent()
	d := &delivery{event: ev, dropped: dropped}
	if err != nil {
		return d, payloadError(fmt.Sprintf(msgWebhookErrFm, err), err)
	}
	if ev == nil {
		d.outcome, d.message = receipts.OutcomeIgnored, msgNoEvents
		return d, nil
	}
	if dropped > 0 {
		// Only the first event of a delivery is processed.
		logger.Debug("dropping additional events in delivery", "dropped", dropped)
	}

	msg, err := message.Normalize(ev)
	switch {
	case errors.Is(err, message.ErrNotMessage):
		d.outcome, d.message = receipts.OutcomeIgnored, fmt.Sprintf(msgNonMessageFm, ev.Type)
		return d, nil
	case err != nil:
		return d, payloadError(fmt.Sprintf(msgWebhookErrFm, err), err)
	}

	if err := s.store.Append(msg); err != nil {
		return d, storageError(err)
	}

	d.outcome, d.message = receipts.OutcomeStored, msgProcessed
	return d, nil
}

// respondFailure maps a classified error to its response. Every kind is
// handled here.
func (s *Server) respondFailure(w http.ResponseWriter, r *http.Request, logger *slog.Logger, e *Error, d *delivery) {
	if d == nil {
		d = &delivery{}
	}

	status := http.StatusOK
	var body any = StatusResponse{Status: StatusError, Message: e.Message}

	switch e.Kind {
	case KindAuthentication:
		logger.Warn("invalid signature", "header", s.config.SignatureHeader, "error", e.Err)
		d.outcome = receipts.OutcomeRejected
		status, body = http.StatusForbidden, DetailResponse{Detail: e.Message}
	case KindPayloadFormat:
		logger.Error("invalid webhook payload", "error", e.Err)
		d.outcome = receipts.OutcomeInvalid
	case KindStorage:
		logger.Error("failed to save message", "error", e.Err)
		d.outcome = receipts.OutcomeFailed
	default:
		logger.Error("unclassified webhook error", "kind", e.Kind.String(), "error", e.Err)
		d.outcome = receipts.OutcomeFailed
		body = StatusResponse{Status: StatusError, Message: fmt.Sprintf(msgWebhookErrFm, e)}
	}

	s.record(r.Context(), logger, middleware.GetReqID(r.Context()), d, e.Kind.String())
	s.respondJSON(w, status, body)
}

// record updates metrics and, when a ledger is configured, writes a receipt.
// Ledger failures never change the response.
func (s *Server) record(ctx context.Context, logger *slog.Logger, requestID string, d *delivery, detail string) {
	s.metrics.observeDelivery(d.outcome, d.dropped)

	if s.receipts == nil {
		return
	}

	rc := receipts.Receipt{
		RequestID:     requestID,
		Outcome:       d.outcome,
		Detail:        detail,
		DroppedEvents: d.dropped,
	}
	if d.event != nil {
		rc.WebhookEventID = d.event.WebhookEventID
		rc.EventType = d.event.Type
		rc.Redelivery = d.event.IsRedelivery()
	}
	if _, err := s.receipts.Record(ctx, rc); err != nil {
		logger.Error("failed to record receipt", "outcome", d.outcome, "error", err)
	}
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}
