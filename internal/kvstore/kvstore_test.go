package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore spins up an in-process Redis and returns a Store backed by it.
func newTestStore(t *testing.T) (Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client), mr
}

func TestSetGetDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "k", "v", time.Minute))

	val, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", val)

	require.NoError(t, store.Delete(ctx, "k"))

	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetMissingKey(t *testing.T) {
	store, _ := newTestStore(t)

	val, ok, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, val)
}

func TestDeleteMissingKeyIsNoop(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Delete(context.Background(), "nope"))
}

func TestSetOverwritesAndRearmsTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "k", "one", time.Minute))
	mr.FastForward(30 * time.Second)
	require.NoError(t, store.SetWithTTL(ctx, "k", "two", time.Minute))

	val, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "two", val)

	ttl, err := store.RemainingTTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)
}

func TestIncrementCountsFromZero(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	n, err := store.Increment(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.Increment(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestIncrementPreservesTTL(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetWithTTL(ctx, "counter", "0", time.Minute))

	n, err := store.Increment(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ttl, err := store.RemainingTTL(ctx, "counter")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestExists(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetWithTTL(ctx, "k", "v", time.Minute))

	ok, err = store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRemainingTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	// Missing key reports zero.
	ttl, err := store.RemainingTTL(ctx, "nope")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), ttl)

	require.NoError(t, store.SetWithTTL(ctx, "k", "v", time.Minute))

	ttl, err = store.RemainingTTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	// Key expiry removes it entirely.
	mr.FastForward(2 * time.Minute)
	ok, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
