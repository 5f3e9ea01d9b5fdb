package rules

import (
	"payguard/internal/fraud/models"
	pstrings "payguard/pkg/platform/strings"
)

// Built-in rule names.
const (
	HighAmount    = "HIGH_AMOUNT"
	HighVelocity  = "HIGH_VELOCITY"
	RiskyMerchant = "RISKY_MERCHANT"
	GeoLocation   = "GEO_LOCATION"
)

// BuiltinConfig holds the reference values of the built-in rules.
type BuiltinConfig struct {
	AmountThreshold        float64
	AmountScore            float64
	VelocityThreshold      int64
	DailyVelocityThreshold int64
	RiskyMerchants         []string
	RiskyMerchantScore     float64
	ExternalIPScore        float64
	InternalIPScore        float64
}

// DefaultBuiltinConfig returns the reference values.
func DefaultBuiltinConfig() BuiltinConfig {
	return BuiltinConfig{
		AmountThreshold:        1000,
		AmountScore:            0.4,
		VelocityThreshold:      30,
		DailyVelocityThreshold: 100,
		RiskyMerchants:         []string{"high-risk-merchant", "casino", "crypto-exchange"},
		RiskyMerchantScore:     0.5,
		ExternalIPScore:        0.1,
		InternalIPScore:        -0.1,
	}
}

// Builtins returns the built-in rules in their fixed evaluation order.
func Builtins(cfg BuiltinConfig) []Evaluator {
	return []Evaluator{
		highAmountRule{threshold: cfg.AmountThreshold, score: cfg.AmountScore},
		highVelocityRule{hourly: cfg.VelocityThreshold, daily: cfg.DailyVelocityThreshold},
		riskyMerchantRule{merchants: pstrings.NewSet(cfg.RiskyMerchants...), score: cfg.RiskyMerchantScore},
		geoLocationRule{external: cfg.ExternalIPScore, internal: cfg.InternalIPScore},
	}
}

type highAmountRule struct {
	threshold float64
	score     float64
}

func (r highAmountRule) Name() string { return HighAmount }

func (r highAmountRule) Evaluate(fv models.FeatureVector) (models.RuleOutcome, error) {
	return outcome(HighAmount, fv.Amount > r.threshold, r.score), nil
}

// highVelocityRule has two hourly tiers; the daily window only matters when
// the hourly count is quiet.
type highVelocityRule struct {
	hourly int64
	daily  int64
}

func (r highVelocityRule) Name() string { return HighVelocity }

func (r highVelocityRule) Evaluate(fv models.FeatureVector) (models.RuleOutcome, error) {
	switch {
	case fv.Velocity1h > 2*r.hourly:
		return outcome(HighVelocity, true, 0.6), nil
	case fv.Velocity1h > r.hourly:
		return outcome(HighVelocity, true, 0.3), nil
	case r.daily > 0 && fv.Velocity24h > r.daily:
		return outcome(HighVelocity, true, 0.3), nil
	}
	return outcome(HighVelocity, false, 0), nil
}

type riskyMerchantRule struct {
	merchants pstrings.Set
	score     float64
}

func (r riskyMerchantRule) Name() string { return RiskyMerchant }

func (r riskyMerchantRule) Evaluate(fv models.FeatureVector) (models.RuleOutcome, error) {
	return outcome(RiskyMerchant, r.merchants.Contains(fv.MerchantID), r.score), nil
}

// geoLocationRule always fires: external traffic adds risk, internal traffic
// removes some.
type geoLocationRule struct {
	external float64
	internal float64
}

func (r geoLocationRule) Name() string { return GeoLocation }

func (r geoLocationRule) Evaluate(fv models.FeatureVector) (models.RuleOutcome, error) {
	if fv.InternalIP {
		return outcome(GeoLocation, true, r.internal), nil
	}
	return outcome(GeoLocation, true, r.external), nil
}

func outcome(name string, triggered bool, score float64) models.RuleOutcome {
	if !triggered {
		score = 0
	}
	return models.RuleOutcome{Name: name, Triggered: triggered, Score: score}
}
