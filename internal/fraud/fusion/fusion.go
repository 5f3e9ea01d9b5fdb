// Package fusion combines the model score, the rule total and the velocity
// signal into one risk score, and maps that score to a decision.
package fusion

import (
	"math"

	"payguard/internal/fraud/models"
)

const (
	modelWeight = 0.7
	ruleWeight  = 0.3

	// Rule totals above this force a block regardless of the fused score.
	RuleOverrideThreshold = 0.7
	BlockThreshold        = 0.8
	ReviewThreshold       = 0.5
)

// VelocityBonus adds risk for bursts of activity. Thresholds are strict:
// 10 gives no bonus, 11 gives 0.1, 21 gives 0.2.
func VelocityBonus(velocity int64) float64 {
	switch {
	case velocity > 20:
		return 0.2
	case velocity > 10:
		return 0.1
	default:
		return 0
	}
}

// Fuse returns clamp01(ml*0.7 + ruleTotal*0.3 + bonus). NaN inputs count as 0
// so the result is always finite.
func Fuse(ml, ruleTotal float64, velocity int64) float64 {
	return Clamp01(finite(ml)*modelWeight + finite(ruleTotal)*ruleWeight + VelocityBonus(velocity))
}

// Decide applies the decision policy. The rule override is checked first.
func Decide(final float64, rules models.RuleResult) models.Decision {
	switch {
	case rules.TotalScore > RuleOverrideThreshold:
		return models.DecisionBlock
	case final > BlockThreshold:
		return models.DecisionBlock
	case final > ReviewThreshold:
		return models.DecisionReview
	default:
		return models.DecisionAllow
	}
}

// Clamp01 bounds v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if math.IsInf(v, 1) {
		return 1
	}
	if math.IsInf(v, -1) {
		return 0
	}
	return v
}
