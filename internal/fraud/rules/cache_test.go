package rules

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payguard/internal/fraud/models"
)

type countingStore struct {
	calls atomic.Int32
	delay time.Duration
	mu    sync.Mutex
	rules []models.Rule
	err   error
}

func (s *countingStore) ListEnabledRules(context.Context) ([]models.Rule, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules, s.err
}

func (s *countingStore) set(rules []models.Rule, err error) {
	s.mu.Lock()
	s.rules, s.err = rules, err
	s.mu.Unlock()
}

func amountRule(name string) models.Rule {
	return models.Rule{
		ID:        name,
		Name:      name,
		Condition: models.Condition{Kind: models.ConditionGreaterThan, Feature: models.FeatureAmount, Threshold: 1},
		Score:     0.1,
		Enabled:   true,
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCacheTTL(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := &countingStore{rules: []models.Rule{amountRule("A")}}
	cache, err := NewCache(store, WithTTL(time.Minute), WithCacheClock(clock.Now))
	require.NoError(t, err)
	ctx := context.Background()

	got, err := cache.Rules(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, _ = cache.Rules(ctx)
	assert.Equal(t, int32(1), store.calls.Load())

	clock.Advance(2 * time.Minute)
	_, _ = cache.Rules(ctx)
	require.Eventually(t, func() bool { return store.calls.Load() == 2 }, time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		cache.Invalidate()
		_, _ = cache.Rules(ctx)
		return store.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestCacheWarm(t *testing.T) {
	store := &countingStore{rules: []models.Rule{amountRule("A")}, delay: 100 * time.Millisecond}
	cache, err := NewCache(store, WithTTL(time.Minute))
	require.NoError(t, err)

	require.NoError(t, cache.Warm(context.Background()))

	start := time.Now()
	got, err := cache.Rules(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, int32(1), store.calls.Load())
}

func TestCacheWarmReportsStoreFailure(t *testing.T) {
	cache, err := NewCache(&countingStore{err: errors.New("db down")})
	require.NoError(t, err)
	assert.Error(t, cache.Warm(context.Background()))
}

func TestCacheRefreshesExpiredSetInBackground(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := &countingStore{rules: []models.Rule{amountRule("A")}}
	cache, err := NewCache(store, WithTTL(time.Minute), WithCacheClock(clock.Now))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, cache.Warm(ctx))

	store.mu.Lock()
	store.rules = []models.Rule{amountRule("A"), amountRule("B")}
	store.delay = 200 * time.Millisecond
	store.mu.Unlock()
	clock.Advance(2 * time.Minute)

	start := time.Now()
	got, err := cache.Rules(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1, "expired set is served while reloading")
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	require.Eventually(t, func() bool {
		got, err := cache.Rules(ctx)
		return err == nil && len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), store.calls.Load())
}

func TestCacheServesStaleOnFailure(t *testing.T) {
	store := &countingStore{rules: []models.Rule{amountRule("A"), amountRule("B")}}
	cache, err := NewCache(store, WithTTL(0))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = cache.Rules(ctx)
	require.NoError(t, err)

	store.set(nil, errors.New("db down"))
	got, err := cache.Rules(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestCacheFailsWithoutPriorLoad(t *testing.T) {
	store := &countingStore{err: errors.New("db down")}
	cache, err := NewCache(store)
	require.NoError(t, err)

	_, err = cache.Rules(context.Background())
	assert.Error(t, err)
}

func TestCacheSkipsInvalidAndDisabled(t *testing.T) {
	disabled := amountRule("OFF")
	disabled.Enabled = false
	broken := models.Rule{Name: "BROKEN", Enabled: true, Condition: models.Condition{Kind: models.ConditionEquals, Feature: models.FeatureCurrency}}
	store := &countingStore{rules: []models.Rule{amountRule("A"), disabled, broken}}
	cache, err := NewCache(store)
	require.NoError(t, err)

	got, err := cache.Rules(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Name())
}

func TestCacheCollapsesConcurrentReloads(t *testing.T) {
	store := &countingStore{rules: []models.Rule{amountRule("A")}, delay: 50 * time.Millisecond}
	cache, err := NewCache(store, WithTTL(time.Minute))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := cache.Rules(context.Background())
			assert.NoError(t, err)
			assert.Len(t, got, 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), store.calls.Load())
}
