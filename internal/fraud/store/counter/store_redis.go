// Package counter holds the CounterStore adapters behind the velocity
// windows: Redis for shared deployments and an in-memory map for single
// instances and tests.
package counter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWithTTL increments KEYS[1] and sets a TTL of ARGV[1] milliseconds when
// the key has none, so a key can never be left counting without expiry. A
// non-positive ARGV[1] leaves the TTL alone.
var incrWithTTL = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if tonumber(ARGV[1]) > 0 and redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RedisStore counts with INCR and PEXPIRE inside one script call.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedis(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := incrWithTTL.Run(ctx, s.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return n, nil
}
