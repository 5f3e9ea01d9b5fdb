package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKafka(t *testing.T) {
	t.Run("brokers required", func(t *testing.T) {
		_, err := NewKafka(nil)
		assert.Error(t, err)
	})

	t.Run("unencodable payload is rejected before produce", func(t *testing.T) {
		p, err := NewKafka([]string{"127.0.0.1:1"})
		require.NoError(t, err)
		defer p.client.Close()

		err = p.Publish(context.Background(), "fraud.transactions", "k", make(chan int))
		assert.ErrorContains(t, err, "encode event")
	})
}
