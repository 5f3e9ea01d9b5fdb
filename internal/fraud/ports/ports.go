// Package ports declares the collaborators the evaluation pipeline consumes.
// Concrete adapters live under internal/fraud/store, internal/fraud/events,
// internal/fraud/alert and internal/fraud/scoring; the pipeline only sees
// these interfaces.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks RuleStore,CounterStore,ScoringService,Persistence,EventPublisher,Notifier

import (
	"context"
	"time"

	"payguard/internal/fraud/models"
)

// RuleStore lists the rules currently enabled. Read-only from the pipeline's
// perspective; conditions arrive already decoded.
type RuleStore interface {
	ListEnabledRules(ctx context.Context) ([]models.Rule, error)
}

// CounterStore is a shared key/counter store. Increment adds one to key and,
// in the same atomic step, gives the key ttl if it has no expiry yet.
type CounterStore interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// ScoringService is the external risk model. It receives the flat feature map
// and answers with a score in [0,1].
type ScoringService interface {
	Score(ctx context.Context, features map[string]any) (float64, error)
}

// Persistence stores a completed evaluation together with the request it
// answered and its feature snapshot, and returns the saved record ID.
type Persistence interface {
	Save(ctx context.Context, req models.TransactionRequest, result models.EvaluationResult, features models.FeatureVector) (string, error)
}

// EventPublisher publishes evaluation results. Delivery is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// Notifier delivers alerts for high-risk evaluations.
type Notifier interface {
	Notify(ctx context.Context, result models.EvaluationResult) error
}
