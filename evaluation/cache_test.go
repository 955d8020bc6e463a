package evaluation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type brokenStorage struct{}

var errBroken = errors.New("storage disabled")

func (brokenStorage) Get(context.Context, string) (string, bool, error) { return "", false, errBroken }
func (brokenStorage) Set(context.Context, string, string) error         { return errBroken }
func (brokenStorage) Remove(context.Context, string) error              { return errBroken }

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStorage()
	cache := NewCache(store, nil).WithClock(fixedClock(now))

	cache.Save(ctx, map[int]Answer{1: Text("a"), 12: Choices("x")}, true)

	raw, ok, _ := store.Get(ctx, StorageKey)
	require.True(t, ok)
	assert.JSONEq(t, fmt.Sprintf(`{"answers":{"1":"a","12":["x"]},"timestamp":%d,"showResults":true}`,
		now.UnixMilli()), raw)

	got := cache.Load(ctx)
	assert.Equal(t, map[int]Answer{1: Text("a"), 12: Choices("x")}, got.Answers)
	assert.True(t, got.ShowResults)

	cache.Clear(ctx)
	_, ok, _ = store.Get(ctx, StorageKey)
	assert.False(t, ok)
	assert.Equal(t, emptySnapshot(), cache.Load(ctx))
}

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("25 hours old is discarded", func(t *testing.T) {
		store := NewMemoryStorage()
		NewCache(store, nil).WithClock(fixedClock(now.Add(-25*time.Hour))).
			Save(ctx, map[int]Answer{1: Text("a")}, true)

		got := NewCache(store, nil).WithClock(fixedClock(now)).Load(ctx)
		assert.Equal(t, Snapshot{Answers: map[int]Answer{}, ShowResults: false}, got)
		_, ok, _ := store.Get(ctx, StorageKey)
		assert.False(t, ok)
	})

	t.Run("1 hour old is kept", func(t *testing.T) {
		store := NewMemoryStorage()
		NewCache(store, nil).WithClock(fixedClock(now.Add(-time.Hour))).
			Save(ctx, map[int]Answer{1: Text("a")}, true)

		got := NewCache(store, nil).WithClock(fixedClock(now)).Load(ctx)
		assert.Equal(t, map[int]Answer{1: Text("a")}, got.Answers)
		assert.True(t, got.ShowResults)
		_, ok, _ := store.Get(ctx, StorageKey)
		assert.True(t, ok)
	})

	t.Run("exactly 24 hours is kept", func(t *testing.T) {
		store := NewMemoryStorage()
		NewCache(store, nil).WithClock(fixedClock(now.Add(-MaxAge))).
			Save(ctx, map[int]Answer{2: Number(1)}, false)

		got := NewCache(store, nil).WithClock(fixedClock(now)).Load(ctx)
		assert.Equal(t, map[int]Answer{2: Number(1)}, got.Answers)
	})
}

func TestCacheCorruptedData(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	store := NewMemoryStorage()
	require.NoError(t, store.Set(ctx, StorageKey, "{not json"))

	got := NewCache(store, zap.New(core)).Load(ctx)
	assert.Equal(t, emptySnapshot(), got)
	_, ok, _ := store.Get(ctx, StorageKey)
	assert.False(t, ok)
	assert.Equal(t, 1, logs.Len())
}

func TestCacheKeepsUnstampedDraft(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	require.NoError(t, store.Set(ctx, StorageKey, `{"answers":{"1":"Ana"},"showResults":true}`))

	got := NewCache(store, nil).Load(ctx)
	assert.Equal(t, map[int]Answer{1: Text("Ana")}, got.Answers)
	assert.True(t, got.ShowResults)
	_, ok, _ := store.Get(ctx, StorageKey)
	assert.True(t, ok)
}

func TestCacheToleratesStorageFailure(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	cache := NewCache(brokenStorage{}, zap.New(core))

	assert.NotPanics(t, func() {
		cache.Save(ctx, map[int]Answer{1: Text("a")}, false)
		assert.Equal(t, emptySnapshot(), cache.Load(ctx))
		cache.Clear(ctx)
	})
	assert.Equal(t, 3, logs.Len())
}

func TestAutoSave(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	cache := NewCache(store, nil)
	state := NewState()

	stop := AutoSave(ctx, state, cache)
	state.SetAnswer(15, Number(10))
	state.SetShowResults(true)

	got := cache.Load(ctx)
	assert.Equal(t, map[int]Answer{15: Number(10)}, got.Answers)
	assert.True(t, got.ShowResults)

	stop()
	state.SetAnswer(1, Text("late"))
	_, found := cache.Load(ctx).Answers[1]
	assert.False(t, found)
}

func TestRedisStorage(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	store := NewRedisStorage(client, "evaluation:test:"+uuid.NewString()+":", time.Minute)
	_, ok, err := store.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, StorageKey, "v"))
	v, ok, err := store.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, store.Remove(ctx, StorageKey))
	_, ok, err = store.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.False(t, ok)
}
