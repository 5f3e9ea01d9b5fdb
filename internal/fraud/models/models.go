package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Decision is the terminal outcome of an evaluation.
type Decision string

const (
	DecisionAllow  Decision = "ALLOW"
	DecisionReview Decision = "REVIEW"
	DecisionBlock  Decision = "BLOCK"
)

// IsValid reports whether d is one of the three known outcomes.
func (d Decision) IsValid() bool {
	switch d {
	case DecisionAllow, DecisionReview, DecisionBlock:
		return true
	}
	return false
}

// TransactionRequest is the inbound payment to evaluate. Treat as immutable
// once received.
type TransactionRequest struct {
	UserID     string
	Amount     decimal.Decimal
	Currency   string
	MerchantID string
	IPAddress  string
	DeviceInfo map[string]string
}

// EvaluationResult is the only value that leaves the pipeline.
type EvaluationResult struct {
	TransactionID  uuid.UUID       `json:"transactionId"`
	UserID         string          `json:"userId"`
	Amount         decimal.Decimal `json:"amount"`
	Decision       Decision        `json:"decision"`
	FinalRiskScore float64         `json:"finalRiskScore"`
	Timestamp      time.Time       `json:"timestamp"`
}

// RiskSource records where a risk score came from.
type RiskSource string

const (
	RiskSourceModel    RiskSource = "model"
	RiskSourceFallback RiskSource = "fallback"
)

// RiskScore is the scorer output for one evaluation, always in [0,1].
type RiskScore struct {
	Value  float64
	Source RiskSource
}

// RuleOutcome is the contribution of one triggered rule.
type RuleOutcome struct {
	Name      string
	Triggered bool
	Score     float64
}

// RuleResult holds the triggered outcomes in rule-list order. TotalScore is
// their raw, unclamped sum; the decision policy reads it for rule-only
// overrides.
type RuleResult struct {
	Outcomes   []RuleOutcome
	TotalScore float64
}

// Triggered returns the names of triggered rules in evaluation order.
func (r RuleResult) Triggered() []string {
	names := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Triggered {
			names = append(names, o.Name)
		}
	}
	return names
}
