package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"payguard/internal/fraud/ports"
)

const (
	DefaultCacheTTL       = 30 * time.Second
	DefaultRefreshTimeout = 5 * time.Second
)

// Cache holds the decoded stored rules for a TTL. Once a set is loaded, an
// expired set keeps being served while one background reload replaces it, so
// store latency stays off the request path. Concurrent cold loads collapse
// into one store read, and the previous set is served if a reload fails.
type Cache struct {
	store          ports.RuleStore
	ttl            time.Duration
	refreshTimeout time.Duration
	now            func() time.Time
	logger         *slog.Logger

	group      singleflight.Group
	refreshing atomic.Bool

	mu       sync.RWMutex
	rules    []Evaluator
	loadedAt time.Time
	loaded   bool
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL sets how long a loaded rule set is served before reloading. Zero
// disables caching.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl >= 0 {
			c.ttl = ttl
		}
	}
}

// WithRefreshTimeout bounds a background reload.
func WithRefreshTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

func NewCache(store ports.RuleStore, opts ...CacheOption) (*Cache, error) {
	if store == nil {
		return nil, errors.New("rule store is required")
	}
	c := &Cache{
		store:          store,
		ttl:            DefaultCacheTTL,
		refreshTimeout: DefaultRefreshTimeout,
		now:            time.Now,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Warm loads the rule set ahead of the first evaluation.
func (c *Cache) Warm(ctx context.Context) error {
	_, err, _ := c.group.Do("rules", func() (any, error) {
		return c.reload(ctx)
	})
	return err
}

// Rules returns the enabled stored rules. An expired set is returned as is
// and refreshed in the background; only a cold cache, or a zero TTL, reads the
// store inline. It fails only when the store fails and nothing was ever
// loaded.
func (c *Cache) Rules(ctx context.Context) ([]Evaluator, error) {
	c.mu.RLock()
	current, loaded, fresh := c.rules, c.loaded, c.loaded && c.ttl > 0 && c.now().Sub(c.loadedAt) < c.ttl
	c.mu.RUnlock()
	if fresh {
		return current, nil
	}
	if loaded && c.ttl > 0 {
		c.refresh(ctx)
		return current, nil
	}

	v, err, _ := c.group.Do("rules", func() (any, error) {
		return c.reload(ctx)
	})
	if err != nil {
		if loaded {
			c.logger.WarnContext(ctx, "rule reload failed, serving cached rules",
				"rules", len(current),
				"error", err,
			)
			return current, nil
		}
		return nil, err
	}
	return v.([]Evaluator), nil
}

// refresh starts a background reload unless one is already running.
func (c *Cache) refresh(ctx context.Context) {
	if !c.refreshing.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.refreshing.Store(false)
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		if _, err := c.reload(rctx); err != nil {
			c.logger.WarnContext(rctx, "background rule reload failed, serving cached rules", "error", err)
		}
	}()
}

// Invalidate marks the loaded set expired; the next Rules call refreshes it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.loadedAt = time.Time{}
	c.mu.Unlock()
}

func (c *Cache) reload(ctx context.Context) ([]Evaluator, error) {
	stored, err := c.store.ListEnabledRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enabled rules: %w", err)
	}

	decoded := make([]Evaluator, 0, len(stored))
	for _, r := range stored {
		if !r.Enabled {
			continue
		}
		ev, err := newConditionRule(r)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping invalid rule",
				"rule_id", r.ID,
				"rule", r.Name,
				"error", err,
			)
			continue
		}
		decoded = append(decoded, ev)
	}

	c.mu.Lock()
	c.rules = decoded
	c.loadedAt = c.now()
	c.loaded = true
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "rules loaded", "count", len(decoded), "skipped", len(stored)-len(decoded))
	return decoded, nil
}
