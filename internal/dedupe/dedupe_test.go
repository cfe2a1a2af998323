package dedupe

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

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func exercise(t *testing.T, s Store) {
	ctx := context.Background()
	id := "WH-" + uuid.NewString()

	first, err := s.FirstSeen(ctx, id)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.FirstSeen(ctx, id)
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, s.Forget(ctx, id))

	afterForget, err := s.FirstSeen(ctx, id)
	require.NoError(t, err)
	assert.True(t, afterForget)
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return clock }

	first, err := m.FirstSeen(ctx, "WH-1")
	require.NoError(t, err)
	assert.True(t, first)

	clock = clock.Add(keyTTL - time.Second)
	again, err := m.FirstSeen(ctx, "WH-1")
	require.NoError(t, err)
	assert.False(t, again)

	_, err = m.FirstSeen(ctx, "WH-2")
	require.NoError(t, err)

	clock = clock.Add(2 * time.Second)
	expired, err := m.FirstSeen(ctx, "WH-1")
	require.NoError(t, err)
	assert.True(t, expired, "ids older than the TTL are seen as new")

	clock = clock.Add(keyTTL + time.Minute)
	_, err = m.FirstSeen(ctx, "WH-3")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len(), "expired ids are pruned")
}

func TestRedis(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	exercise(t, NewRedis(client))
}

func TestNewRedisFromURL_BadURL(t *testing.T) {
	_, err := NewRedisFromURL(context.Background(), "http://not-redis")
	assert.Error(t, err)
}
