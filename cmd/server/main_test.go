package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fraudmetrics "payguard/internal/fraud/metrics"
	"payguard/internal/fraud/store/counter"
	"payguard/pkg/platform/audit"
	"payguard/pkg/platform/circuit"
)

func TestBreakerHook(t *testing.T) {
	m := fraudmetrics.New(prometheus.NewRegistry())
	store := audit.NewInMemoryStore(10)
	hook := breakerHook(m, store)

	hook("scoring", circuit.StateClosed, circuit.StateOpen)
	assert.Equal(t, 2.0, promtest.ToFloat64(m.BreakerState.WithLabelValues("scoring")))

	hook("scoring", circuit.StateOpen, circuit.StateHalfOpen)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.BreakerState.WithLabelValues("scoring")))

	hook("scoring", circuit.StateHalfOpen, circuit.StateClosed)
	assert.Equal(t, 0.0, promtest.ToFloat64(m.BreakerState.WithLabelValues("scoring")))

	events := store.ListRecent(0)
	require.Len(t, events, 2, "half-open is not audited")
	assert.Equal(t, audit.ActionBreakerClosed, events[0].Action)
	assert.Equal(t, audit.ActionBreakerOpened, events[1].Action)
	assert.Equal(t, "scoring", events[1].Subject)
	assert.Equal(t, audit.CategoryOperations, events[1].Category)
}

func TestVelocityCounters(t *testing.T) {
	store := counter.NewMemory()
	hourly, daily, err := velocityCounters(store, time.Hour, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, "velocity:user:u1", hourly.Key("u1"))
	assert.Equal(t, time.Hour, hourly.Window())
	assert.Equal(t, "velocity:user:day:u1", daily.Key("u1"))
	assert.Equal(t, 24*time.Hour, daily.Window())

	ctx := context.Background()
	hourly.Increment(ctx, "u1")
	assert.Equal(t, int64(2), hourly.Increment(ctx, "u1"))
	assert.Equal(t, int64(1), daily.Increment(ctx, "u1"), "windows must not share keys")
}
