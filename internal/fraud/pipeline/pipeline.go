// Package pipeline orchestrates one fraud evaluation: velocity, features,
// rules and model score in parallel, fusion, decision and detached side
// effects. Evaluate always produces exactly one result.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"payguard/internal/fraud/features"
	"payguard/internal/fraud/fusion"
	"payguard/internal/fraud/metrics"
	"payguard/internal/fraud/models"
	"payguard/pkg/platform/circuit"
)

const (
	DegradedScore    = 0.5
	DegradedDecision = models.DecisionReview
)

// VelocityCounter counts a user's transactions in one window.
type VelocityCounter interface {
	Increment(ctx context.Context, userID string) int64
}

// RuleEvaluator never fails; problems surface as an empty result.
type RuleEvaluator interface {
	Evaluate(ctx context.Context, fv models.FeatureVector) models.RuleResult
}

// RiskScorer never fails; problems surface as a fallback score.
type RiskScorer interface {
	Score(ctx context.Context, fv models.FeatureVector) models.RiskScore
}

// Service is the evaluation pipeline.
type Service struct {
	hourly     VelocityCounter
	daily      VelocityCounter
	rules      RuleEvaluator
	scorer     RiskScorer
	breaker    *circuit.Breaker
	builder    *features.Builder
	dispatcher *Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	now        func() time.Time
	newID      func() uuid.UUID
}

// Option configures a Service.
type Option func(*Service)

// WithDailyVelocity adds the 24h window counter. Without it the 24h feature
// mirrors the hourly count.
func WithDailyVelocity(c VelocityCounter) Option {
	return func(s *Service) { s.daily = c }
}

func WithFeatureBuilder(b *features.Builder) Option {
	return func(s *Service) {
		if b != nil {
			s.builder = b
		}
	}
}

// WithDispatcher enables side effects for completed evaluations.
func WithDispatcher(d *Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New creates the pipeline. breaker guards the whole evaluation and its
// timeout is the outer deadline.
func New(velocity VelocityCounter, rules RuleEvaluator, scorer RiskScorer, breaker *circuit.Breaker, opts ...Option) (*Service, error) {
	if velocity == nil {
		return nil, errors.New("velocity counter is required")
	}
	if rules == nil {
		return nil, errors.New("rule evaluator is required")
	}
	if scorer == nil {
		return nil, errors.New("risk scorer is required")
	}
	if breaker == nil {
		return nil, errors.New("circuit breaker is required")
	}
	s := &Service{
		hourly:  velocity,
		rules:   rules,
		scorer:  scorer,
		breaker: breaker,
		builder: features.NewBuilder(),
		logger:  slog.Default(),
		tracer:  otel.Tracer("payguard/internal/fraud/pipeline"),
		now:     time.Now,
		newID:   uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// evaluation carries what a completed run needs for its side effects.
type evaluation struct {
	request  models.TransactionRequest
	result   models.EvaluationResult
	features models.FeatureVector
	degraded bool
}

// Evaluate returns the decision for req. On deadline, panic or an open
// pipeline breaker it returns REVIEW with score 0.5 and dispatches nothing.
func (s *Service) Evaluate(ctx context.Context, req models.TransactionRequest) models.EvaluationResult {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "pipeline.Evaluate", trace.WithAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("merchant_id", req.MerchantID),
	))
	defer span.End()
	s.stage(ctx, span, "received")

	ev := circuit.Execute(ctx, s.breaker, func(ctx context.Context) (evaluation, error) {
		return s.evaluate(ctx, span, req)
	}, func(err error) evaluation {
		return s.degraded(ctx, span, req, err)
	})

	if !ev.degraded {
		s.dispatch(ctx, span, ev)
	}

	s.metrics.ObserveEvaluateLatency(time.Since(start))
	s.metrics.IncrementDecision(string(ev.result.Decision))
	span.SetAttributes(
		attribute.String("transaction_id", ev.result.TransactionID.String()),
		attribute.String("decision", string(ev.result.Decision)),
		attribute.Float64("final_risk_score", ev.result.FinalRiskScore),
		attribute.Bool("degraded", ev.degraded),
	)
	return ev.result
}

func (s *Service) evaluate(ctx context.Context, span trace.Span, req models.TransactionRequest) (evaluation, error) {
	v1h, v24h := s.velocity(ctx, req.UserID)
	s.stage(ctx, span, "velocity_checked", "velocity_1h", v1h, "velocity_24h", v24h)

	fv := s.builder.Build(req, v1h, v24h)

	var (
		ruleResult models.RuleResult
		risk       models.RiskScore
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		ruleResult = s.rules.Evaluate(gctx, fv)
		s.metrics.ObserveStageLatency("rules", time.Since(start))
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		risk = s.scorer.Score(gctx, fv)
		s.metrics.ObserveStageLatency("scoring", time.Since(start))
		return nil
	})
	_ = g.Wait()
	s.stage(ctx, span, "joined",
		"rule_score", ruleResult.TotalScore,
		"rules_triggered", ruleResult.Triggered(),
		"model_score", risk.Value,
		"model_source", string(risk.Source),
	)

	if err := ctx.Err(); err != nil {
		return evaluation{}, err
	}

	final := fusion.Fuse(risk.Value, ruleResult.TotalScore, v1h)
	s.stage(ctx, span, "fused", "final_risk_score", final)

	decision := fusion.Decide(final, ruleResult)
	s.stage(ctx, span, "decided", "decision", string(decision))

	return evaluation{
		request: req,
		result: models.EvaluationResult{
			TransactionID:  s.newID(),
			UserID:         req.UserID,
			Amount:         req.Amount,
			Decision:       decision,
			FinalRiskScore: final,
			Timestamp:      s.now().UTC(),
		},
		features: fv,
	}, nil
}

// velocity increments both windows concurrently.
func (s *Service) velocity(ctx context.Context, userID string) (int64, int64) {
	start := time.Now()
	defer func() { s.metrics.ObserveStageLatency("velocity", time.Since(start)) }()

	if s.daily == nil {
		v := s.hourly.Increment(ctx, userID)
		return v, v
	}

	var v1h, v24h int64
	var g errgroup.Group
	g.Go(func() error {
		v1h = s.hourly.Increment(ctx, userID)
		return nil
	})
	g.Go(func() error {
		v24h = s.daily.Increment(ctx, userID)
		return nil
	})
	_ = g.Wait()
	return v1h, v24h
}

func (s *Service) degraded(ctx context.Context, span trace.Span, req models.TransactionRequest, err error) evaluation {
	s.metrics.IncrementDegraded()
	s.metrics.IncrementFallback("pipeline")
	span.RecordError(err)
	span.SetStatus(codes.Error, "degraded evaluation")
	s.logger.WarnContext(ctx, "evaluation degraded",
		"user_id", req.UserID,
		"error", err,
	)
	return evaluation{
		result: models.EvaluationResult{
			TransactionID:  s.newID(),
			UserID:         req.UserID,
			Amount:         req.Amount,
			Decision:       DegradedDecision,
			FinalRiskScore: DegradedScore,
			Timestamp:      s.now().UTC(),
		},
		degraded: true,
	}
}

func (s *Service) dispatch(ctx context.Context, span trace.Span, ev evaluation) {
	if s.dispatcher == nil {
		return
	}
	queued := s.dispatcher.Enqueue(Job{Request: ev.request, Result: ev.result, Features: ev.features})
	s.stage(ctx, span, "dispatched", "queued", queued)
}

func (s *Service) stage(ctx context.Context, span trace.Span, name string, attrs ...any) {
	span.AddEvent(name)
	if s.logger.Enabled(ctx, slog.LevelDebug) {
		s.logger.DebugContext(ctx, "evaluation stage", append([]any{"stage", name}, attrs...)...)
	}
}
