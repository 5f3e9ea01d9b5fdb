package handler

import (
	"time"

	"payguard/internal/fraud/models"
	"payguard/pkg/platform/circuit"
)

// EvaluateResponse is the body returned for an evaluation.
type EvaluateResponse struct {
	TransactionID  string    `json:"transactionId"`
	UserID         string    `json:"userId"`
	Amount         string    `json:"amount"`
	Decision       string    `json:"decision"`
	FinalRiskScore float64   `json:"finalRiskScore"`
	Timestamp      time.Time `json:"timestamp"`
}

func FromResult(result models.EvaluationResult) *EvaluateResponse {
	return &EvaluateResponse{
		TransactionID:  result.TransactionID.String(),
		UserID:         result.UserID,
		Amount:         result.Amount.String(),
		Decision:       string(result.Decision),
		FinalRiskScore: result.FinalRiskScore,
		Timestamp:      result.Timestamp,
	}
}

// ReadinessResponse reports dependency checks and breaker positions.
type ReadinessResponse struct {
	Status   string             `json:"status"`
	Checks   map[string]string  `json:"checks"`
	Breakers []circuit.Snapshot `json:"breakers"`
}
