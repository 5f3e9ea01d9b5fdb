// Package velocity counts transactions per user inside a rolling window.
package velocity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"payguard/internal/fraud/ports"
)

const (
	DefaultWindow    = time.Hour
	DefaultKeyPrefix = "velocity:user:"
)

// Counter increments the per-user counter in the shared store. Atomicity
// comes from the store; the counter holds no in-process state.
type Counter struct {
	store  ports.CounterStore
	window time.Duration
	prefix string
	logger *slog.Logger
}

// Option configures a Counter.
type Option func(*Counter)

// WithWindow sets the window length. The store expires a key one window
// after its first increment.
func WithWindow(d time.Duration) Option {
	return func(c *Counter) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithKeyPrefix sets the store key prefix. Distinct windows need distinct
// prefixes.
func WithKeyPrefix(prefix string) Option {
	return func(c *Counter) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Counter) {
		c.logger = logger
	}
}

func New(store ports.CounterStore, opts ...Option) (*Counter, error) {
	if store == nil {
		return nil, errors.New("counter store is required")
	}
	c := &Counter{
		store:  store,
		window: DefaultWindow,
		prefix: DefaultKeyPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Window returns the configured window.
func (c *Counter) Window() time.Duration { return c.window }

// Key returns the store key for a user.
func (c *Counter) Key(userID string) string {
	return c.prefix + userID
}

// Increment returns the user's count in the current window, including this
// transaction. The store starts the window on the first increment. A store
// failure yields 1 and is only logged, so a broken store never blocks an
// evaluation.
func (c *Counter) Increment(ctx context.Context, userID string) int64 {
	count, err := c.store.Increment(ctx, c.Key(userID), c.window)
	if err != nil {
		c.logger.WarnContext(ctx, "velocity counter unavailable, assuming first transaction",
			"user_id", userID,
			"window", c.window.String(),
			"error", err,
		)
		return 1
	}
	if count < 1 {
		return 1
	}
	return count
}
