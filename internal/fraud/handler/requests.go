package handler

import (
	"context"
	"net/netip"
	"strings"

	"github.com/shopspring/decimal"

	"payguard/internal/fraud/models"
	dErrors "payguard/pkg/domain-errors"
	"payguard/pkg/requestcontext"
)

const (
	maxIDLength     = 128
	maxDeviceFields = 32
)

// EvaluateRequest is the body of POST /v1/transactions/evaluate.
type EvaluateRequest struct {
	UserID     string            `json:"userId"`
	Amount     decimal.Decimal   `json:"amount"`
	Currency   string            `json:"currency"`
	MerchantID string            `json:"merchantId"`
	IPAddress  string            `json:"ipAddress"`
	DeviceInfo map[string]string `json:"deviceInfo"`
}

// Validate trims and checks the request.
func (r *EvaluateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.UserID = strings.TrimSpace(r.UserID)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	r.MerchantID = strings.TrimSpace(r.MerchantID)
	r.IPAddress = strings.TrimSpace(r.IPAddress)

	if len(r.UserID) > maxIDLength || len(r.MerchantID) > maxIDLength {
		return dErrors.New(dErrors.CodeValidation, "identifiers must be at most 128 characters")
	}
	if len(r.DeviceInfo) > maxDeviceFields {
		return dErrors.New(dErrors.CodeValidation, "deviceInfo has too many fields")
	}

	if r.UserID == "" {
		return dErrors.New(dErrors.CodeValidation, "userId is required")
	}
	if !r.Amount.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "amount must be greater than zero")
	}
	if !validCurrency(r.Currency) {
		return dErrors.New(dErrors.CodeValidation, "currency must be a three-letter code")
	}
	if r.MerchantID == "" {
		return dErrors.New(dErrors.CodeValidation, "merchantId is required")
	}
	if r.IPAddress == "" {
		return dErrors.New(dErrors.CodeValidation, "ipAddress is required")
	}
	if _, err := netip.ParseAddr(r.IPAddress); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "ipAddress is not a valid address")
	}
	return nil
}

// ToModel builds the pipeline request. When deviceInfo carries neither a
// browser nor a user agent, the caller's User-Agent header is used.
func (r *EvaluateRequest) ToModel(ctx context.Context) models.TransactionRequest {
	device := make(map[string]string, len(r.DeviceInfo)+1)
	for k, v := range r.DeviceInfo {
		device[k] = v
	}
	if device["browser"] == "" && device["userAgent"] == "" && device["user_agent"] == "" {
		if ua := requestcontext.UserAgent(ctx); ua != "" {
			device["userAgent"] = ua
		}
	}
	return models.TransactionRequest{
		UserID:     r.UserID,
		Amount:     r.Amount,
		Currency:   r.Currency,
		MerchantID: r.MerchantID,
		IPAddress:  r.IPAddress,
		DeviceInfo: device,
	}
}

func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}
