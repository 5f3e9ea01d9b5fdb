package transaction

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"payguard/internal/fraud/models"
	"payguard/pkg/platform/sentinel"
)

// PostgresStore writes evaluations to the transactions table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save inserts the record. Saving the same transaction twice keeps the first
// row and returns its ID, so dispatcher retries are idempotent.
func (s *PostgresStore) Save(ctx context.Context, req models.TransactionRequest, result models.EvaluationResult, fv models.FeatureVector) (string, error) {
	rec := newRecord(req, result, fv)
	device, err := json.Marshal(rec.DeviceInfo)
	if err != nil {
		return "", fmt.Errorf("encode device info: %w", err)
	}
	features, err := json.Marshal(rec.Features)
	if err != nil {
		return "", fmt.Errorf("encode features: %w", err)
	}

	query := `
		INSERT INTO transactions (
			id, transaction_id, user_id, amount, currency, merchant_id, ip_address,
			device_info, features, decision, final_risk_score, bucket_hour, evaluated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (transaction_id) DO UPDATE SET transaction_id = EXCLUDED.transaction_id
		RETURNING id
	`
	var id uuid.UUID
	err = s.db.QueryRowContext(ctx, query,
		rec.ID,
		rec.TransactionID,
		rec.UserID,
		rec.Amount.String(),
		rec.Currency,
		rec.MerchantID,
		rec.IPAddress,
		device,
		features,
		string(rec.Decision),
		rec.FinalRiskScore,
		rec.BucketHour,
		rec.EvaluatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("save transaction %s: %w", rec.TransactionID, err)
	}
	return id.String(), nil
}

// Get loads the record for a transaction ID.
func (s *PostgresStore) Get(ctx context.Context, transactionID uuid.UUID) (*Record, error) {
	query := `
		SELECT id, transaction_id, user_id, amount, currency, merchant_id, ip_address,
			device_info, features, decision, final_risk_score, bucket_hour, evaluated_at
		FROM transactions
		WHERE transaction_id = $1
	`
	var (
		rec              Record
		decision         string
		device, features []byte
	)
	err := s.db.QueryRowContext(ctx, query, transactionID).Scan(
		&rec.ID,
		&rec.TransactionID,
		&rec.UserID,
		&rec.Amount,
		&rec.Currency,
		&rec.MerchantID,
		&rec.IPAddress,
		&device,
		&features,
		&decision,
		&rec.FinalRiskScore,
		&rec.BucketHour,
		&rec.EvaluatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s: %w", transactionID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if err := json.Unmarshal(device, &rec.DeviceInfo); err != nil {
		return nil, fmt.Errorf("decode device info: %w", err)
	}
	if err := json.Unmarshal(features, &rec.Features); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	rec.Decision = models.Decision(decision)
	return &rec, nil
}
