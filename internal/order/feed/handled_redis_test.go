package feed

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs a running Redis; skipped otherwise. REDIS_ADDR overrides localhost.
func TestRedisHandledSetIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DialTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("redis not available")
	}

	s := NewRedisHandledSet(client, "test-"+uuid.NewString(), time.Minute)
	t.Cleanup(func() { _ = s.Reset(ctx) })

	added, err := s.Add(ctx, "A")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = s.Add(ctx, "A")
	require.NoError(t, err)
	assert.False(t, added)

	ok, err := s.Contains(ctx, "A")
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := client.TTL(ctx, s.key).Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)

	require.NoError(t, s.Reset(ctx))
	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
