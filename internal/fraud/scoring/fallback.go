package scoring

import (
	"math"

	"payguard/internal/fraud/fusion"
	"payguard/internal/fraud/models"
)

// Fallback is the deterministic heuristic used whenever the scoring service
// cannot answer. Same input, same output.
func Fallback(fv models.FeatureVector) float64 {
	s := 0.4*sigmoid((fv.Amount-1500)/800) +
		0.3*math.Tanh(float64(fv.Velocity1h)/15) +
		0.25*fv.MerchantRisk +
		0.2*fv.IPRisk +
		0.15*fv.DeviceRisk

	if fv.Amount > 5000 && fv.MerchantRisk > 0.6 {
		s += 0.15
	}
	if fv.Amount > 10000 && fv.Velocity1h > 5 {
		s += 0.2
	}
	if fv.DeviceRisk > 0.5 && fv.IPRisk > 0.6 {
		s += 0.1
	}

	if fv.IsWeekend() {
		s += 0.08
	}
	if fv.IsNight() {
		s += 0.12
	}
	if fv.IsRushHour() {
		s -= 0.05
	}

	return fusion.Clamp01(s)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
