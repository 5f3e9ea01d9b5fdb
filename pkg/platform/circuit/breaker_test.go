package circuit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestBreaker_InitialState(t *testing.T) {
	b := New("test")
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "test", b.Name())
	assert.True(t, b.Allow())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New("test", WithFailureThreshold(3))

	// First two failures don't open
	useFallback, change := b.RecordFailure()
	assert.False(t, useFallback)
	assert.False(t, change.Opened)

	useFallback, change = b.RecordFailure()
	assert.False(t, useFallback)
	assert.False(t, change.Opened)

	// Third failure opens the circuit
	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())
	assert.False(t, b.Allow())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New("test", WithFailureThreshold(3))

	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	// Success resets count
	b.RecordSuccess()

	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreaker_OpenCircuitReturnsFallback(t *testing.T) {
	b := New("test", WithFailureThreshold(1))
	b.RecordFailure()

	// Additional failures return fallback without state change
	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened)
}

func TestBreaker_HalfOpenAdmitsSingleTrial(t *testing.T) {
	clock := newFakeClock()
	b := New("test", WithFailureThreshold(1), WithCooldown(time.Minute), WithClock(clock.Now))

	b.RecordFailure()
	require.True(t, b.IsOpen())

	clock.Advance(59 * time.Second)
	assert.False(t, b.Allow(), "cooldown not elapsed")

	clock.Advance(time.Second)
	assert.True(t, b.Allow(), "first caller after cooldown gets the trial")
	assert.Equal(t, StateHalfOpen, b.State())
	assert.False(t, b.Allow(), "second caller is rejected while the trial is in flight")
}

func TestBreaker_ConcurrentCallersShareOneTrial(t *testing.T) {
	clock := newFakeClock()
	b := New("test", WithFailureThreshold(1), WithCooldown(time.Second), WithClock(clock.Now))
	b.RecordFailure()
	clock.Advance(time.Second)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
}

func TestBreaker_TrialOutcome(t *testing.T) {
	t.Run("trial success closes the circuit", func(t *testing.T) {
		clock := newFakeClock()
		b := New("test", WithFailureThreshold(2), WithCooldown(time.Second), WithClock(clock.Now))
		b.RecordFailure()
		b.RecordFailure()
		clock.Advance(time.Second)
		require.True(t, b.Allow())

		usePrimary, change := b.RecordSuccess()
		assert.True(t, usePrimary)
		assert.True(t, change.Closed)
		assert.Equal(t, StateClosed, b.State())
		assert.Equal(t, 0, b.Snapshot().Failures)
	})

	t.Run("trial failure reopens and restarts the cooldown", func(t *testing.T) {
		clock := newFakeClock()
		b := New("test", WithFailureThreshold(2), WithCooldown(time.Second), WithClock(clock.Now))
		b.RecordFailure()
		b.RecordFailure()
		clock.Advance(time.Second)
		require.True(t, b.Allow())

		useFallback, change := b.RecordFailure()
		assert.True(t, useFallback)
		assert.True(t, change.Opened)
		assert.True(t, b.IsOpen())
		assert.False(t, b.Allow())

		clock.Advance(time.Second)
		assert.True(t, b.Allow())
	})
}

func TestBreaker_ReleaseFreesTrialSlot(t *testing.T) {
	clock := newFakeClock()
	b := New("test", WithFailureThreshold(1), WithCooldown(time.Second), WithClock(clock.Now))
	b.RecordFailure()
	clock.Advance(time.Second)
	require.True(t, b.Allow())

	b.release()
	assert.Equal(t, StateHalfOpen, b.State())
	assert.True(t, b.Allow())
}

func TestBreaker_Reset(t *testing.T) {
	b := New("test", WithFailureThreshold(1))
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_TransitionHook(t *testing.T) {
	clock := newFakeClock()
	var (
		mu   sync.Mutex
		seen []string
	)
	hook := func(name string, from, to State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, name+":"+from.String()+"->"+to.String())
	}
	b := New("scoring", WithFailureThreshold(1), WithCooldown(time.Second), WithClock(clock.Now), WithTransitionHook(hook))

	b.RecordFailure()
	clock.Advance(time.Second)
	b.Allow()
	b.RecordSuccess()

	assert.Equal(t, []string{
		"scoring:closed->open",
		"scoring:open->half_open",
		"scoring:half_open->closed",
	}, seen)
}

func TestRegistry_GetReturnsSameBreaker(t *testing.T) {
	r := NewRegistry(WithFailureThreshold(3))
	a := r.Get("rules", WithTimeout(50*time.Millisecond))
	b := r.Get("rules")
	assert.Same(t, a, b)
	assert.Equal(t, 50*time.Millisecond, a.Timeout())

	r.Get("scoring")
	snaps := r.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "rules", snaps[0].Name)
	assert.Equal(t, "scoring", snaps[1].Name)
	assert.Equal(t, 3, snaps[0].FailureThreshold)
	assert.Equal(t, "closed", snaps[1].State)
}
