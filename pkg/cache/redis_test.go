package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	var c Cache = Nop{}
	require.NoError(t, c.Set(ctx, SummaryKey("m1"), map[string]string{"a": "b"}, time.Minute))
	var out map[string]string
	assert.ErrorIs(t, c.Get(ctx, SummaryKey("m1"), &out), ErrMiss)
	assert.NoError(t, c.Delete(ctx, SummaryKey("m1")))
}

func TestKeysAreNamespaced(t *testing.T) {
	assert.Equal(t, "sacco:summary:abc", SummaryKey("abc"))
	assert.Equal(t, "sacco:balance:abc", BalanceKey("abc"))
}

func TestRedisCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		t.Skip("REDIS_URL not set")
	}
	c, err := NewRedisCache(addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	key := BalanceKey("cache-test")
	require.NoError(t, c.Set(ctx, key, map[string]string{"current_balance": "779.75"}, time.Minute))

	var got map[string]string
	require.NoError(t, c.Get(ctx, key, &got))
	assert.Equal(t, "779.75", got["current_balance"])

	require.NoError(t, c.Delete(ctx, key))
	assert.ErrorIs(t, c.Get(ctx, key, &got), ErrMiss)
}
