package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"payguard/pkg/platform/circuit"
)

// Metrics provides observability for the fraud evaluation pipeline.
type Metrics struct {
	// Overall evaluation latency, degraded or not
	EvaluateLatency prometheus.Histogram

	// Stage latencies: velocity, rules, scoring
	StageLatency *prometheus.HistogramVec

	// Decisions by outcome
	Decisions *prometheus.CounterVec

	// Evaluations answered by the pipeline fallback
	Degraded prometheus.Counter

	// Fallback values served per component: rules, scoring, velocity
	Fallbacks *prometheus.CounterVec

	// Breaker state per call-site (0 closed, 1 half-open, 2 open)
	BreakerState *prometheus.GaugeVec

	// Side-effect jobs dropped because the queue was full
	DispatchDropped prometheus.Counter

	// Side-effect failures by kind: persist, publish, notify
	SideEffectFailures *prometheus.CounterVec
}

// New registers all pipeline metrics on reg. Passing nil uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		EvaluateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "payguard_evaluate_duration_seconds",
			Help:    "Duration of a full fraud evaluation",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payguard_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"stage"}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payguard_decisions_total",
			Help: "Total decisions by outcome",
		}, []string{"decision"}),
		Degraded: factory.NewCounter(prometheus.CounterOpts{
			Name: "payguard_degraded_evaluations_total",
			Help: "Evaluations answered with the pipeline fallback",
		}),
		Fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payguard_fallbacks_total",
			Help: "Fallback values served by component",
		}, []string{"component"}),
		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "payguard_circuit_breaker_state",
			Help: "Circuit breaker state per call-site (0 closed, 1 half-open, 2 open)",
		}, []string{"name"}),
		DispatchDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "payguard_dispatch_dropped_total",
			Help: "Side-effect jobs dropped because the dispatch queue was full",
		}),
		SideEffectFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payguard_side_effect_failures_total",
			Help: "Failed side effects by kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveStageLatency(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementDecision(decision string) {
	if m != nil {
		m.Decisions.WithLabelValues(decision).Inc()
	}
}

func (m *Metrics) IncrementDegraded() {
	if m != nil {
		m.Degraded.Inc()
	}
}

func (m *Metrics) IncrementFallback(component string) {
	if m != nil {
		m.Fallbacks.WithLabelValues(component).Inc()
	}
}

func (m *Metrics) IncrementDispatchDropped() {
	if m != nil {
		m.DispatchDropped.Inc()
	}
}

func (m *Metrics) IncrementSideEffectFailure(kind string) {
	if m != nil {
		m.SideEffectFailures.WithLabelValues(kind).Inc()
	}
}

// RecordBreakerTransition matches circuit.TransitionFunc so it can be passed
// straight to circuit.WithTransitionHook.
func (m *Metrics) RecordBreakerTransition(name string, _, to circuit.State) {
	if m != nil {
		m.BreakerState.WithLabelValues(name).Set(breakerValue(to))
	}
}

func breakerValue(s circuit.State) float64 {
	switch s {
	case circuit.StateHalfOpen:
		return 1
	case circuit.StateOpen:
		return 2
	default:
		return 0
	}
}
