package velocity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"payguard/internal/fraud/ports/mocks"
	"payguard/internal/fraud/store/counter"
)

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestIncrement(t *testing.T) {
	ctx := context.Background()

	t.Run("increments with the window as ttl", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockCounterStore(ctrl)
		store.EXPECT().Increment(ctx, "velocity:user:u1", time.Hour).Return(int64(7), nil)

		c, err := New(store)
		require.NoError(t, err)
		assert.Equal(t, int64(7), c.Increment(ctx, "u1"))
	})

	t.Run("store outage returns one", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockCounterStore(ctrl)
		store.EXPECT().Increment(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), errors.New("connection refused"))

		c, err := New(store)
		require.NoError(t, err)
		assert.Equal(t, int64(1), c.Increment(ctx, "u1"))
	})

	t.Run("custom window and prefix", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockCounterStore(ctrl)
		store.EXPECT().Increment(ctx, "velocity:user:day:u9", 24*time.Hour).Return(int64(1), nil)

		c, err := New(store, WithWindow(24*time.Hour), WithKeyPrefix("velocity:user:day:"))
		require.NoError(t, err)
		assert.Equal(t, int64(1), c.Increment(ctx, "u9"))
		assert.Equal(t, 24*time.Hour, c.Window())
	})
}

func TestWindowResets(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	store := counter.NewMemory(counter.WithClock(func() time.Time { return now }))

	c, err := New(store)
	require.NoError(t, err)
	for range 3 {
		c.Increment(ctx, "u1")
	}
	assert.Equal(t, int64(4), c.Increment(ctx, "u1"))

	now = now.Add(48 * time.Hour)
	assert.Equal(t, int64(1), c.Increment(ctx, "u1"))
}
