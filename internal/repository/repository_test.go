package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"agendum/internal/interval"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func daySlots(t *testing.T, date string) []interval.Interval {
	t.Helper()
	day, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	return []interval.Interval{
		{Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)},
		{Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)},
	}
}

func TestMemorySlotCache(t *testing.T) {
	ctx := context.Background()
	cache := NewMemorySlotCache(time.Minute)
	date := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	slots := daySlots(t, "2024-01-08")

	_, ok, gen, err := cache.GetSlots(ctx, "pro-1", date)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.SetSlots(ctx, "pro-1", date, gen, slots))

	got, ok, _, err := cache.GetSlots(ctx, "pro-1", date)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, slots, got)

	require.NoError(t, cache.InvalidateSlots(ctx, "pro-1"))
	_, ok, _, err = cache.GetSlots(ctx, "pro-1", date)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySlotCacheInvalidatesAllDates(t *testing.T) {
	ctx := context.Background()
	cache := NewMemorySlotCache(time.Minute)
	monday := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	_, _, gen, err := cache.GetSlots(ctx, "pro-1", monday)
	require.NoError(t, err)
	require.NoError(t, cache.SetSlots(ctx, "pro-1", monday, gen, daySlots(t, "2024-01-08")))
	require.NoError(t, cache.SetSlots(ctx, "pro-1", tuesday, gen, daySlots(t, "2024-01-09")))

	// An appointment spanning midnight touches both days; one invalidation
	// must clear them both.
	require.NoError(t, cache.InvalidateSlots(ctx, "pro-1"))

	_, ok, _, err := cache.GetSlots(ctx, "pro-1", monday)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, _, err = cache.GetSlots(ctx, "pro-1", tuesday)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySlotCacheStaleWriteIsInvisible(t *testing.T) {
	ctx := context.Background()
	cache := NewMemorySlotCache(time.Minute)
	date := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	// A writer observes the generation, then an invalidation lands before
	// its SetSlots does. The late write must not be served.
	_, _, gen, err := cache.GetSlots(ctx, "pro-1", date)
	require.NoError(t, err)
	require.NoError(t, cache.InvalidateSlots(ctx, "pro-1"))
	require.NoError(t, cache.SetSlots(ctx, "pro-1", date, gen, daySlots(t, "2024-01-08")))

	_, ok, _, err := cache.GetSlots(ctx, "pro-1", date)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySlotCacheExpiry(t *testing.T) {
	ctx := context.Background()
	cache := NewMemorySlotCache(time.Millisecond)
	date := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	require.NoError(t, cache.SetSlots(ctx, "pro-1", date, 0, daySlots(t, "2024-01-08")))
	time.Sleep(5 * time.Millisecond)

	_, ok, _, err := cache.GetSlots(ctx, "pro-1", date)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryRateLimit(t *testing.T) {
	ctx := context.Background()
	cache := NewMemorySlotCache(time.Minute)

	for i := 0; i < 3; i++ {
		allowed, err := cache.CheckRateLimit(ctx, "1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should pass", i+1)
	}

	allowed, err := cache.CheckRateLimit(ctx, "1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// a different key has its own window
	allowed, err = cache.CheckRateLimit(ctx, "5.6.7.8", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisSlotCache(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	cache := NewRedisSlotCache(client, time.Minute)
	date := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	slots := daySlots(t, "2024-01-08")

	_, ok, gen, err := cache.GetSlots(ctx, "pro-1", date)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.SetSlots(ctx, "pro-1", date, gen, slots))

	got, ok, _, err := cache.GetSlots(ctx, "pro-1", date)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.True(t, got[0].Start.Equal(slots[0].Start))
	assert.True(t, got[1].End.Equal(slots[1].End))

	require.NoError(t, cache.InvalidateSlots(ctx, "pro-1"))
	_, ok, _, err = cache.GetSlots(ctx, "pro-1", date)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisSlotCacheStaleWriteIsInvisible(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	cache := NewRedisSlotCache(client, time.Minute)
	date := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	_, _, gen, err := cache.GetSlots(ctx, "pro-1", date)
	require.NoError(t, err)
	require.NoError(t, cache.InvalidateSlots(ctx, "pro-1"))
	require.NoError(t, cache.SetSlots(ctx, "pro-1", date, gen, daySlots(t, "2024-01-08")))

	_, ok, _, err := cache.GetSlots(ctx, "pro-1", date)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisRateLimit(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	cache := NewRedisSlotCache(client, time.Minute)

	for i := 0; i < 2; i++ {
		allowed, err := cache.CheckRateLimit(ctx, "client-a", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := cache.CheckRateLimit(ctx, "client-a", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestFailoverSlotCache(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	logger := zerolog.Nop()

	primary := NewRedisSlotCache(client, time.Minute)
	fallback := NewMemorySlotCache(time.Minute)
	cache := NewFailoverSlotCache(primary, fallback, &logger)

	date := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	slots := daySlots(t, "2024-01-08")

	_, _, gen, err := cache.GetSlots(ctx, "pro-1", date)
	require.NoError(t, err)
	require.NoError(t, cache.SetSlots(ctx, "pro-1", date, gen, slots))
	_, ok, _, err := cache.GetSlots(ctx, "pro-1", date)
	require.NoError(t, err)
	assert.True(t, ok)

	// Kill Redis; the cache must degrade without surfacing errors.
	mr.Close()

	_, _, gen, err = cache.GetSlots(ctx, "pro-1", date)
	require.NoError(t, err)
	require.NoError(t, cache.SetSlots(ctx, "pro-1", date, gen, slots))
	got, ok, _, err := cache.GetSlots(ctx, "pro-1", date)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, slots, got)

	allowed, err := cache.CheckRateLimit(ctx, "client-a", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	allowed, err = cache.CheckRateLimit(ctx, "client-a", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRedisSlotCacheNilClient(t *testing.T) {
	cache := NewRedisSlotCache(nil, time.Minute)
	_, _, _, err := cache.GetSlots(context.Background(), "pro-1", time.Now())
	assert.Error(t, err)
	assert.Equal(t, fmt.Errorf("redis client is nil").Error(), err.Error())
}
