// Package rule holds RuleStore adapters: the fraud_rules table and an
// in-memory list.
package rule

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"payguard/internal/fraud/models"
)

// PostgresStore reads rules from fraud_rules. Conditions are stored as
// columns, one per field of the tagged predicate.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListEnabledRules(ctx context.Context) ([]models.Rule, error) {
	query := `
		SELECT id, name, description, condition_kind, feature, threshold, value, set_values, score, enabled
		FROM fraud_rules
		WHERE enabled
		ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list enabled rules: %w", err)
	}
	defer rows.Close()

	var out []models.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return out, nil
}

// Upsert inserts or replaces a rule by name and returns its ID.
func (s *PostgresStore) Upsert(ctx context.Context, r models.Rule) (string, error) {
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	query := `
		INSERT INTO fraud_rules (id, name, description, condition_kind, feature, threshold, value, set_values, score, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			condition_kind = EXCLUDED.condition_kind,
			feature = EXCLUDED.feature,
			threshold = EXCLUDED.threshold,
			value = EXCLUDED.value,
			set_values = EXCLUDED.set_values,
			score = EXCLUDED.score,
			enabled = EXCLUDED.enabled,
			updated_at = NOW()
		RETURNING id
	`
	values := r.Condition.Values
	if values == nil {
		values = []string{}
	}
	var saved string
	err := s.db.QueryRowContext(ctx, query,
		id,
		r.Name,
		r.Description,
		string(r.Condition.Kind),
		r.Condition.Feature,
		r.Condition.Threshold,
		r.Condition.Value,
		pq.Array(values),
		r.Score,
		r.Enabled,
	).Scan(&saved)
	if err != nil {
		return "", fmt.Errorf("upsert rule %s: %w", r.Name, err)
	}
	return saved, nil
}

func scanRule(rows *sql.Rows) (models.Rule, error) {
	var (
		r       models.Rule
		kindRaw string
		values  []string
	)
	err := rows.Scan(
		&r.ID,
		&r.Name,
		&r.Description,
		&kindRaw,
		&r.Condition.Feature,
		&r.Condition.Threshold,
		&r.Condition.Value,
		pq.Array(&values),
		&r.Score,
		&r.Enabled,
	)
	if err != nil {
		return models.Rule{}, fmt.Errorf("scan rule: %w", err)
	}
	kind, err := models.ParseConditionKind(kindRaw)
	if err != nil {
		// left as stored; the rule cache rejects and logs it
		kind = models.ConditionKind(kindRaw)
	}
	r.Condition.Kind = kind
	r.Condition.Values = values
	return r, nil
}
