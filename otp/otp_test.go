package otp

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLengthAndDigits(t *testing.T) {
	for _, n := range []int{4, 6} {
		for i := 0; i < 200; i++ {
			code, err := Generate(n)
			require.NoError(t, err)
			assert.Len(t, code, n)
			for _, r := range code {
				assert.True(t, r >= '0' && r <= '9', "non digit in %q", code)
			}
		}
	}
	_, err := Generate(0)
	assert.Error(t, err)
}

func TestMatch(t *testing.T) {
	assert.True(t, Match("1234", "1234"))
	assert.False(t, Match("1234", "1235"))
	assert.False(t, Match("1234", "12345"))
	assert.False(t, Match("", ""))
}

type pending struct {
	Name string `json:"name"`
}

func TestMemoryStoreOverwriteAndSweep(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore[pending]()
	now := time.Now()

	require.NoError(t, store.Put(ctx, "a@x.io", Entry[pending]{Value: pending{"first"}, Code: "111111", ExpiresAt: now.Add(TTL)}))
	require.NoError(t, store.Put(ctx, "a@x.io", Entry[pending]{Value: pending{"second"}, Code: "222222", ExpiresAt: now.Add(TTL)}))

	e, ok, err := store.Get(ctx, "a@x.io")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", e.Value.Name)
	assert.Equal(t, "222222", e.Code)

	require.NoError(t, store.Put(ctx, "old@x.io", Entry[pending]{Code: "333333", ExpiresAt: now.Add(-time.Minute)}))
	e, ok, _ = store.Get(ctx, "old@x.io")
	assert.True(t, ok, "expired entries are still returned until swept")
	assert.True(t, e.Expired(now))

	n, err := store.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Delete(ctx, "a@x.io"))
	_, ok, _ = store.Get(ctx, "a@x.io")
	assert.False(t, ok)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	store := NewRedisStore[pending](client, "test:registration:")
	key := "redis-" + time.Now().Format("150405.000000") + "@x.io"
	require.NoError(t, store.Put(ctx, key, Entry[pending]{Value: pending{"r"}, Code: "123456", ExpiresAt: time.Now().Add(TTL)}))

	e, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r", e.Value.Name)

	require.NoError(t, store.Delete(ctx, key))
	_, ok, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
