package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, "entrevia")
}

func TestCacheRoundTrip(t *testing.T) {
	cache := setupCache(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	}

	require.NoError(t, cache.Set(ctx, "session:1", payload{Name: "Ana", Score: 8}, time.Minute))

	var got payload
	require.NoError(t, cache.Get(ctx, "session:1", &got))
	assert.Equal(t, "Ana", got.Name)
	assert.Equal(t, 8, got.Score)
}

func TestCacheMiss(t *testing.T) {
	cache := setupCache(t)

	var got map[string]any
	err := cache.Get(context.Background(), "absent", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheBytes(t *testing.T) {
	cache := setupCache(t)
	ctx := context.Background()

	audio := []byte{0xff, 0xf3, 0x01, 0x02}
	require.NoError(t, cache.SetBytes(ctx, "tts:abc", audio, time.Hour))

	got, err := cache.GetBytes(ctx, "tts:abc")
	require.NoError(t, err)
	assert.Equal(t, audio, got)
}

func TestCacheSetNX(t *testing.T) {
	cache := setupCache(t)
	ctx := context.Background()

	first, err := cache.SetNX(ctx, "event:1", "seen", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := cache.SetNX(ctx, "event:1", "seen", time.Hour)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestNilClientIsNoop(t *testing.T) {
	cache := NewCache(nil, "entrevia")
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))
	assert.ErrorIs(t, cache.Get(ctx, "k", new(string)), ErrCacheMiss)
}
