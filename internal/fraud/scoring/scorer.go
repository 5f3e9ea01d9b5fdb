// Package scoring obtains the model risk score for a feature vector, falling
// back to a closed-form heuristic when the scoring service is unavailable.
package scoring

import (
	"context"
	"errors"
	"log/slog"

	"payguard/internal/fraud/metrics"
	"payguard/internal/fraud/models"
	"payguard/internal/fraud/ports"
	"payguard/pkg/platform/circuit"
)

// Scorer wraps the scoring service with a circuit breaker.
type Scorer struct {
	service ports.ScoringService
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Scorer.
type Option func(*Scorer)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scorer) {
		s.metrics = m
	}
}

// New creates a scorer. A nil service is allowed: every call then uses the
// fallback, which is how the service runs without a model endpoint.
func New(service ports.ScoringService, breaker *circuit.Breaker, opts ...Option) (*Scorer, error) {
	if breaker == nil {
		return nil, errors.New("circuit breaker is required")
	}
	s := &Scorer{
		service: service,
		breaker: breaker,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Score always returns a value in [0,1].
func (s *Scorer) Score(ctx context.Context, fv models.FeatureVector) models.RiskScore {
	if s.service == nil {
		return models.RiskScore{Value: Fallback(fv), Source: models.RiskSourceFallback}
	}
	return circuit.Execute(ctx, s.breaker,
		func(ctx context.Context) (models.RiskScore, error) {
			v, err := s.service.Score(ctx, fv.Map())
			if err != nil {
				return models.RiskScore{}, err
			}
			if err := validScore(v); err != nil {
				return models.RiskScore{}, err
			}
			return models.RiskScore{Value: v, Source: models.RiskSourceModel}, nil
		},
		func(err error) models.RiskScore {
			s.metrics.IncrementFallback("scoring")
			s.logger.WarnContext(ctx, "scoring fallback", "error", err)
			return models.RiskScore{Value: Fallback(fv), Source: models.RiskSourceFallback}
		},
	)
}
