package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduperClaimsOncePerTTL(t *testing.T) {
	clock := newClock()
	d := NewMemoryDeduper().WithClock(clock.Now)
	ctx := context.Background()

	first, err := d.Claim(ctx, "postback:qualified_lead:L1:blog_CLK-abc123", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, _ := d.Claim(ctx, "postback:qualified_lead:L1:blog_CLK-abc123", 24*time.Hour)
	assert.False(t, again)

	other, _ := d.Claim(ctx, "postback:trade_complete:L1:blog_CLK-abc123", 24*time.Hour)
	assert.True(t, other)

	clock.Advance(24 * time.Hour)
	expired, _ := d.Claim(ctx, "postback:qualified_lead:L1:blog_CLK-abc123", 24*time.Hour)
	assert.True(t, expired)
}

func TestMemoryDeduperReleaseAllowsReclaim(t *testing.T) {
	d := NewMemoryDeduper()
	ctx := context.Background()

	first, _ := d.Claim(ctx, "postback:trade_complete:L1:", time.Hour)
	require.True(t, first)
	require.NoError(t, d.Release(ctx, "postback:trade_complete:L1:"))

	again, err := d.Claim(ctx, "postback:trade_complete:L1:", time.Hour)
	require.NoError(t, err)
	assert.True(t, again)
	assert.NoError(t, d.Release(ctx, "never-claimed"))
}

func TestMemoryDeduperSweepsExpiredKeys(t *testing.T) {
	clock := newClock()
	d := NewMemoryDeduper().WithClock(clock.Now)

	for i := 0; i < 1024; i++ {
		d.Claim(context.Background(), uuid.NewString(), time.Minute)
	}
	clock.Advance(time.Hour)
	d.Claim(context.Background(), "fresh", time.Minute)

	assert.Equal(t, 1, d.Len())
}

func TestRedisDeduperIntegration(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := NewRedisClient(addr, os.Getenv("TEST_REDIS_PASSWORD"))
	defer client.Close()

	d := NewRedisDeduper(client)
	require.NoError(t, d.Ping(ctx))

	key := "test:" + uuid.NewString()
	defer client.Del(ctx, keyPrefix+key)

	first, err := d.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, d.Release(ctx, key))
	reclaimed, err := d.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, reclaimed)
}
