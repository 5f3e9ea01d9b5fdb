// Package rules evaluates the built-in and stored fraud rules against a
// feature vector.
package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"payguard/internal/fraud/metrics"
	"payguard/internal/fraud/models"
	"payguard/pkg/platform/circuit"
)

// Evaluator is one rule. Implementations must be safe for concurrent use.
type Evaluator interface {
	Name() string
	Evaluate(fv models.FeatureVector) (models.RuleOutcome, error)
}

// Source supplies the stored rules. *Cache implements it.
type Source interface {
	Rules(ctx context.Context) ([]Evaluator, error)
}

// Engine evaluates the unified rule list: built-ins first, then stored rules.
type Engine struct {
	breaker  *circuit.Breaker
	builtins []Evaluator
	source   Source
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithBuiltins replaces the built-in rule list.
func WithBuiltins(evaluators ...Evaluator) Option {
	return func(e *Engine) {
		e.builtins = evaluators
	}
}

// WithSource adds stored rules to every evaluation.
func WithSource(src Source) Option {
	return func(e *Engine) {
		e.source = src
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an engine guarded by breaker. The breaker's timeout bounds
// each evaluation.
func New(breaker *circuit.Breaker, opts ...Option) (*Engine, error) {
	if breaker == nil {
		return nil, errors.New("circuit breaker is required")
	}
	e := &Engine{
		breaker:  breaker,
		builtins: Builtins(DefaultBuiltinConfig()),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Evaluate never fails. When the breaker is open, the deadline passes or the
// rule source is down, the result is empty with a total of 0.
func (e *Engine) Evaluate(ctx context.Context, fv models.FeatureVector) models.RuleResult {
	return circuit.Execute(ctx, e.breaker, func(ctx context.Context) (models.RuleResult, error) {
		return e.evaluate(ctx, fv)
	}, func(err error) models.RuleResult {
		e.metrics.IncrementFallback("rules")
		e.logger.WarnContext(ctx, "rule engine fallback", "error", err)
		return models.RuleResult{}
	})
}

func (e *Engine) evaluate(ctx context.Context, fv models.FeatureVector) (models.RuleResult, error) {
	all := e.builtins
	if e.source != nil {
		stored, err := e.source.Rules(ctx)
		if err != nil {
			return models.RuleResult{}, fmt.Errorf("load rules: %w", err)
		}
		all = append(append(make([]Evaluator, 0, len(e.builtins)+len(stored)), e.builtins...), stored...)
	}

	outcomes := make([]models.RuleOutcome, len(all))
	var g errgroup.Group
	for i, rule := range all {
		g.Go(func() error {
			outcomes[i] = e.run(ctx, rule, fv)
			return nil
		})
	}
	_ = g.Wait()

	var result models.RuleResult
	for _, o := range outcomes {
		if o.Triggered {
			result.Outcomes = append(result.Outcomes, o)
			result.TotalScore += o.Score
		}
	}
	return result, nil
}

// run isolates one rule: a panic or an error means the rule did not fire.
func (e *Engine) run(ctx context.Context, rule Evaluator, fv models.FeatureVector) (out models.RuleOutcome) {
	name := rule.Name()
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "rule panicked", "rule", name, "panic", fmt.Sprint(r))
			out = models.RuleOutcome{Name: name}
		}
	}()

	o, err := rule.Evaluate(fv)
	if err != nil {
		e.logger.DebugContext(ctx, "rule not evaluated", "rule", name, "error", err)
		return models.RuleOutcome{Name: name}
	}
	o.Name = name
	return o
}
