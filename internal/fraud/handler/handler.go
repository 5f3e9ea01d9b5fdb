// Package handler exposes the evaluation pipeline over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"payguard/internal/fraud/models"
	"payguard/pkg/platform/circuit"
	"payguard/pkg/platform/httputil"
	"payguard/pkg/requestcontext"
)

const readinessTimeout = 2 * time.Second

// Evaluator runs one evaluation. It never fails.
type Evaluator interface {
	Evaluate(ctx context.Context, req models.TransactionRequest) models.EvaluationResult
}

// BreakerReporter lists the breakers whose state readiness reports.
type BreakerReporter interface {
	Snapshots() []circuit.Snapshot
}

// Check probes one dependency for readiness.
type Check func(ctx context.Context) error

// Handler wires the evaluation endpoints.
type Handler struct {
	evaluator Evaluator
	breakers  BreakerReporter
	checks    map[string]Check
	logger    *slog.Logger
}

type Option func(*Handler)

func WithBreakers(b BreakerReporter) Option {
	return func(h *Handler) { h.breakers = b }
}

// WithCheck adds a named readiness probe.
func WithCheck(name string, check Check) Option {
	return func(h *Handler) {
		if check != nil {
			h.checks[name] = check
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

func New(evaluator Evaluator, opts ...Option) *Handler {
	h := &Handler{
		evaluator: evaluator,
		checks:    make(map[string]Check),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/transactions/evaluate", h.HandleEvaluate)
	r.Get("/healthz", h.HandleHealth)
	r.Get("/readyz", h.HandleReady)
}

// HandleEvaluate handles POST /v1/transactions/evaluate. Only malformed
// requests fail; the evaluation itself always yields a decision.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndValidate[EvaluateRequest](ctx, w, r, h.logger)
	if !ok {
		return
	}

	result := h.evaluator.Evaluate(ctx, req.ToModel(ctx))

	h.logger.InfoContext(ctx, "transaction evaluated",
		"request_id", requestID,
		"transaction_id", result.TransactionID.String(),
		"user_id", result.UserID,
		"decision", string(result.Decision),
		"final_risk_score", result.FinalRiskScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady runs every check concurrently and reports breaker states.
// Open breakers do not fail readiness: the pipeline still answers through
// its fallbacks.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]string, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			if err := h.checks[name](ctx); err != nil {
				h.logger.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
				results[i] = "down"
				return err
			}
			results[i] = "up"
			return nil
		})
	}
	err := g.Wait()

	resp := ReadinessResponse{
		Status:   "ready",
		Checks:   make(map[string]string, len(names)),
		Breakers: []circuit.Snapshot{},
	}
	for i, name := range names {
		resp.Checks[name] = results[i]
	}
	if h.breakers != nil {
		resp.Breakers = h.breakers.Snapshots()
	}

	status := http.StatusOK
	if err != nil {
		resp.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}
