// Package audit records security and operational events. The log emitter
// writes one structured line per event for SIEM collection; the in-memory
// store keeps a bounded history for tests and diagnostics.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Category classifies events by their consumer.
type Category string

const (
	// CategorySecurity events feed fraud and security monitoring.
	CategorySecurity Category = "security"
	// CategoryOperations events describe service health changes.
	CategoryOperations Category = "operations"
)

// Action names what happened.
type Action string

const (
	ActionFraudDetected Action = "FRAUD_DETECTED"
	ActionBreakerOpened Action = "BREAKER_OPENED"
	ActionBreakerClosed Action = "BREAKER_CLOSED"
)

// Event is one audit record. Attrs carries action-specific detail.
type Event struct {
	Category  Category
	Action    Action
	Timestamp time.Time
	UserID    string
	Subject   string
	Decision  string
	RequestID string
	Attrs     map[string]any
}

// Emitter accepts events. Emit never fails the caller.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// LogEmitter writes events to a structured logger.
type LogEmitter struct {
	logger *slog.Logger
}

func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	attrs := []any{
		"category", string(event.Category),
		"event", string(event.Action),
		"timestamp", event.Timestamp.UTC(),
	}
	if event.UserID != "" {
		attrs = append(attrs, "user_id", event.UserID)
	}
	if event.Subject != "" {
		attrs = append(attrs, "subject", event.Subject)
	}
	if event.Decision != "" {
		attrs = append(attrs, "decision", event.Decision)
	}
	if event.RequestID != "" {
		attrs = append(attrs, "request_id", event.RequestID)
	}
	for k, v := range event.Attrs {
		attrs = append(attrs, k, v)
	}
	e.logger.InfoContext(ctx, "audit event", attrs...)
}

// Fanout sends each event to every emitter in order.
type Fanout []Emitter

func (f Fanout) Emit(ctx context.Context, event Event) {
	for _, e := range f {
		if e != nil {
			e.Emit(ctx, event)
		}
	}
}
