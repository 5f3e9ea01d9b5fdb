package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Run("one breaker per name", func(t *testing.T) {
		r := NewRegistry()
		a := r.Get("scoring", WithTimeout(100*time.Millisecond))
		b := r.Get("scoring", WithTimeout(time.Second))
		assert.Same(t, a, b)
		assert.Equal(t, 100*time.Millisecond, b.Timeout(), "later options are ignored")
	})

	t.Run("defaults apply before per-site options", func(t *testing.T) {
		var transitions []string
		r := NewRegistry(
			WithFailureThreshold(1),
			WithTimeout(time.Second),
			WithTransitionHook(func(name string, _, to State) {
				transitions = append(transitions, name+":"+to.String())
			}),
		)
		b := r.Get("rules", WithTimeout(50*time.Millisecond))
		assert.Equal(t, 50*time.Millisecond, b.Timeout())

		require.True(t, b.Allow())
		b.RecordFailure()
		assert.True(t, b.IsOpen())
		assert.Equal(t, []string{"rules:open"}, transitions)
	})

	t.Run("snapshots are sorted by name", func(t *testing.T) {
		r := NewRegistry()
		r.Get("scoring")
		r.Get("pipeline")
		r.Get("rules")

		snaps := r.Snapshots()
		require.Len(t, snaps, 3)
		assert.Equal(t, []string{"pipeline", "rules", "scoring"},
			[]string{snaps[0].Name, snaps[1].Name, snaps[2].Name})
		assert.Equal(t, "closed", snaps[0].State)
	})
}
