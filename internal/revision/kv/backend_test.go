package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendUnderTest interface {
	Backend
	Lister
}

// newBackends returns every implementation configured with the same capacity.
func newBackends(t *testing.T, capacity int64) map[string]backendUnderTest {
	t.Helper()

	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})

	b, err := OpenBadgerBackend(BadgerConfig{InMemory: true, Capacity: capacity})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	return map[string]backendUnderTest{
		"memory": NewMemoryBackend(capacity),
		"redis":  NewRedisBackend(client, "test:", capacity),
		"badger": b,
	}
}

func TestBackend_SetGetRemove(t *testing.T) {
	for name, be := range newBackends(t, Unlimited) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := be.Get(ctx, "missing")
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, be.Set(ctx, "k1", "v1"))
			v, ok, err := be.Get(ctx, "k1")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "v1", v)

			require.NoError(t, be.Set(ctx, "k1", "v2"))
			v, _, err = be.Get(ctx, "k1")
			require.NoError(t, err)
			require.Equal(t, "v2", v)

			require.NoError(t, be.Remove(ctx, "k1"))
			_, ok, err = be.Get(ctx, "k1")
			require.NoError(t, err)
			require.False(t, ok)

			// idempotent
			require.NoError(t, be.Remove(ctx, "k1"))
		})
	}
}

func TestBackend_QuotaExceeded(t *testing.T) {
	// "a"+"12345" = 6 bytes, "b"+"12345" = 6 bytes
	for name, be := range newBackends(t, 12) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, be.Set(ctx, "a", "12345"))
			require.NoError(t, be.Set(ctx, "b", "12345"))

			err := be.Set(ctx, "c", "1")
			require.True(t, errors.Is(err, ErrQuotaExceeded), "got %v", err)
			_, ok, err := be.Get(ctx, "c")
			require.NoError(t, err)
			require.False(t, ok)

			// replacing with a value of the same size still fits
			require.NoError(t, be.Set(ctx, "a", "54321"))

			// removing frees space
			require.NoError(t, be.Remove(ctx, "b"))
			require.NoError(t, be.Set(ctx, "c", "1"))
		})
	}
}

func TestBackend_KeysByPrefix(t *testing.T) {
	for name, be := range newBackends(t, Unlimited) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, be.Set(ctx, "revision-d1-1", "x"))
			require.NoError(t, be.Set(ctx, "revision-d2-1", "x"))
			require.NoError(t, be.Set(ctx, "revision-index", "[]"))

			keys, err := be.Keys(ctx, "revision-d")
			require.NoError(t, err)
			require.ElementsMatch(t, []string{"revision-d1-1", "revision-d2-1"}, keys)
		})
	}
}

func TestRedisBackend_ServerOOMMapsToQuota(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	be := NewRedisBackend(redis.NewClient(&redis.Options{Addr: m.Addr()}), "", Unlimited)
	ctx := context.Background()
	require.NoError(t, be.Set(ctx, "k", "v"))

	m.SetError("OOM command not allowed when used memory > 'maxmemory'.")
	err = be.Set(ctx, "k2", "v")
	require.ErrorIs(t, err, ErrQuotaExceeded)

	m.SetError("")
	v, ok, err := be.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)
}

func TestRedisBackend_SharedNamespaceRespectsCapacity(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	const capacity = 100 // ten 10-byte entries
	replicas := []*RedisBackend{
		NewRedisBackend(redis.NewClient(&redis.Options{Addr: m.Addr()}), "shared:", capacity),
		NewRedisBackend(redis.NewClient(&redis.Options{Addr: m.Addr()}), "shared:", capacity),
	}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%02d", i)
			err := replicas[i%2].Set(ctx, key, "1234567")
			if err != nil {
				assert.True(t, errors.Is(err, ErrQuotaExceeded) || errors.Is(err, redis.TxFailedErr), err)
			}
		}(i)
	}
	wg.Wait()

	keys, err := replicas[0].Keys(ctx, "k")
	require.NoError(t, err)
	require.LessOrEqual(t, len(keys), 10)
	used, err := replicas[0].used(ctx, replicas[0].client)
	require.NoError(t, err)
	require.Equal(t, int64(len(keys)*10), used)

	for _, k := range keys {
		require.NoError(t, replicas[1].Remove(ctx, k))
	}
	used, err = replicas[0].used(ctx, replicas[0].client)
	require.NoError(t, err)
	require.Zero(t, used)
}

func TestBadgerBackend_RecountOnOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := OpenBadgerBackend(BadgerConfig{Path: dir, Capacity: 100})
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, "key", "value"))
	used := b.Used()
	require.Equal(t, int64(8), used)
	require.NoError(t, b.Close())

	b2, err := OpenBadgerBackend(BadgerConfig{Path: dir, Capacity: 100})
	require.NoError(t, err)
	defer b2.Close()
	require.Equal(t, used, b2.Used())
}
