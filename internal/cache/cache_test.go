package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeUnderTest exercises the Store contract against any backend
func storeUnderTest(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		_, err := store.Get(ctx, "absent")
		require.Error(t, err)
		assert.True(t, IsCacheMiss(err))
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k1", []byte("artifact")))
		value, err := store.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, []byte("artifact"), value)
	})

	t.Run("exists", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k2", []byte("x")))
		ok, err := store.Exists(ctx, "k2")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Exists(ctx, "never")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k3", []byte("x")))
		require.NoError(t, store.Delete(ctx, "k3"))
		_, err := store.Get(ctx, "k3")
		assert.True(t, IsCacheMiss(err))
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "k4", []byte("x")))
		require.NoError(t, store.Clear(ctx))
		_, err := store.Get(ctx, "k4")
		assert.True(t, IsCacheMiss(err))
	})
}

func TestMemoryStore(t *testing.T) {
	storeUnderTest(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	original := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", original))
	original[0] = 'z'

	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), value)
}

func TestLRUStore(t *testing.T) {
	store, err := NewLRUStore(128, NewMemoryStore())
	require.NoError(t, err)
	storeUnderTest(t, store)
}

func TestLRUStoreFallsThroughToBacking(t *testing.T) {
	ctx := context.Background()
	backing := NewMemoryStore()
	require.NoError(t, backing.Set(ctx, "cold", []byte("from backing")))

	store, err := NewLRUStore(2, backing)
	require.NoError(t, err)

	value, err := store.Get(ctx, "cold")
	require.NoError(t, err)
	assert.Equal(t, []byte("from backing"), value)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)

	storeUnderTest(t, store)
}

func TestRedisStoreUsesPrefix(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "output:abc", []byte("x")))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "parcel:")
}

func TestRedisStoreUnreachable(t *testing.T) {
	_, err := NewRedisStore(RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
