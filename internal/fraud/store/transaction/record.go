// Package transaction persists completed evaluations together with the
// feature snapshot they were decided on.
package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payguard/internal/fraud/models"
)

// Record is one saved evaluation.
type Record struct {
	ID             uuid.UUID
	TransactionID  uuid.UUID
	UserID         string
	Amount         decimal.Decimal
	Currency       string
	MerchantID     string
	IPAddress      string
	DeviceInfo     map[string]string
	Features       map[string]any
	Decision       models.Decision
	FinalRiskScore float64
	BucketHour     time.Time
	EvaluatedAt    time.Time
}

// newRecord keeps the request's merchant, address and device info as sent;
// the feature snapshot holds the normalized values the decision used.
func newRecord(req models.TransactionRequest, result models.EvaluationResult, fv models.FeatureVector) Record {
	device := make(map[string]string, len(req.DeviceInfo))
	for k, v := range req.DeviceInfo {
		device[k] = v
	}
	currency := req.Currency
	if currency == "" {
		currency = fv.Currency
	}
	evaluated := result.Timestamp.UTC()
	return Record{
		ID:             uuid.New(),
		TransactionID:  result.TransactionID,
		UserID:         result.UserID,
		Amount:         result.Amount,
		Currency:       currency,
		MerchantID:     req.MerchantID,
		IPAddress:      req.IPAddress,
		DeviceInfo:     device,
		Features:       fv.Map(),
		Decision:       result.Decision,
		FinalRiskScore: result.FinalRiskScore,
		BucketHour:     evaluated.Truncate(time.Hour),
		EvaluatedAt:    evaluated,
	}
}
