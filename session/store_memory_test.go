package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	require := require.New(t)

	store := NewMemoryStore()
	rec := Record{
		Claims:    testClaims(),
		ExpiresAt: time.Now().Add(time.Hour),
	}

	t.Run("get-missing", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	require.NoError(store.Put(ctx, "s_1", rec))
	got, err := store.Get(ctx, "s_1")
	require.NoError(err)
	assert.Equal(t, rec.Claims, got.Claims)
	assert.WithinDuration(t, rec.ExpiresAt, got.ExpiresAt, 0)

	t.Run("put-replaces", func(t *testing.T) {
		updated := rec
		updated.Claims.Email = "alice@corp.example.com"
		require.NoError(store.Put(ctx, "s_1", updated))
		got, err := store.Get(ctx, "s_1")
		require.NoError(err)
		assert.Equal(t, "alice@corp.example.com", got.Claims.Email)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(store.Delete(ctx, "s_1"))
		_, err := store.Get(ctx, "s_1")
		assert.ErrorIs(t, err, ErrNotFound)
		// deleting an absent id is fine
		require.NoError(store.Delete(ctx, "s_1"))
	})
}

func TestMemoryStore_concurrentAccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	rec := Record{Claims: testClaims(), ExpiresAt: time.Now().Add(time.Hour)}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n))
			_ = store.Put(ctx, id, rec)
			_, _ = store.Get(ctx, id)
			_ = store.Delete(ctx, id)
		}(i)
	}
	wg.Wait()
}

func TestRecord_Expired(t *testing.T) {
	t.Parallel()
	assert.True(t, Record{ExpiresAt: time.Now().Add(-time.Second)}.Expired())
	assert.False(t, Record{ExpiresAt: time.Now().Add(time.Hour)}.Expired())
}
