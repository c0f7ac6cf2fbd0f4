package cache

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	a := Key([]byte("pdf"), []byte("threshold=103"))
	b := Key([]byte("pdf"), []byte("threshold=110"))
	c := Key([]byte("pdf"), []byte("threshold=103"))

	assert.True(t, strings.HasPrefix(a, KeyPrefix))
	assert.Len(t, strings.TrimPrefix(a, KeyPrefix), 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, c)

	// Part boundaries matter.
	assert.NotEqual(t, Key([]byte("ab"), []byte("c")), Key([]byte("a"), []byte("bc")))
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	value := []byte("result")
	require.NoError(t, c.Set(ctx, "k", value))
	value[0] = 'X'

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "result", string(got))

	now = now.Add(time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_DefaultTTL(t *testing.T) {
	c := NewMemoryCache(0)
	assert.Equal(t, DefaultTTL, c.ttl)
}

func TestNewRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "not-a-url", time.Minute, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redis url")
}

// Runs against a real server when HSBC_TEST_REDIS_URL is set, e.g.
// redis://localhost:6379/15.
func TestRedisCache_RoundTrip(t *testing.T) {
	url := os.Getenv("HSBC_TEST_REDIS_URL")
	if url == "" {
		t.Skip("HSBC_TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	c, err := NewRedisCache(ctx, url, time.Minute, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	key := Key([]byte(t.Name()), []byte(time.Now().String()))
	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, []byte(`{"count":3}`)))
	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"count":3}`, string(got))
}
