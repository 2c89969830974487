package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDenyList_Expiry(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryDenyList()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, "a", now.Add(time.Minute)))
	require.NoError(t, m.Add(ctx, "stale", now.Add(-time.Minute)))

	ok, err := m.Contains(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = m.Contains(ctx, "stale")
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = m.Contains(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryDenyList_Concurrent(t *testing.T) {
	m := NewMemoryDenyList()
	ctx := context.Background()
	until := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			_ = m.Add(ctx, id, until)
			_, _ = m.Contains(ctx, id)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 26, m.Len())
}

func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestRedisDenyList_PastExpirySkipsWrite(t *testing.T) {
	rdb := unreachableRedis()
	defer rdb.Close()

	d := NewRedisDenyList(rdb)
	require.NoError(t, d.Add(context.Background(), "x", time.Now().Add(-time.Second)))
}

func TestRedisDenyList_SurfacesErrors(t *testing.T) {
	rdb := unreachableRedis()
	defer rdb.Close()

	d := NewRedisDenyList(rdb)
	_, err := d.Contains(context.Background(), "x")
	require.Error(t, err)
	require.Error(t, d.Add(context.Background(), "x", time.Now().Add(time.Minute)))
}
