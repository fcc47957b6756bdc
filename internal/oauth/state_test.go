package oauth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStateStorePeekIsNonDestructive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)

	data := map[string]string{"redirect_uri": "https://client.example/cb", "scope": "openid"}
	require.NoError(t, store.Save(ctx, "abc", data))

	for i := 0; i < 3; i++ {
		got, err := store.Peek(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, data, got)
	}
}

func TestMemoryStateStoreConsume(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)
	require.NoError(t, store.Save(ctx, "abc", map[string]string{"k": "v"}))

	found, err := store.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, found)

	_, err = store.Peek(ctx, "abc")
	assert.ErrorIs(t, err, ErrStateNotFound)

	found, err = store.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStateStoreUnknownState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)

	_, err := store.Peek(ctx, "nope")
	assert.ErrorIs(t, err, ErrStateNotFound)

	found, err := store.Consume(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStateStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(10 * time.Minute)

	current := time.Now()
	store.now = func() time.Time { return current }

	require.NoError(t, store.Save(ctx, "abc", map[string]string{"k": "v"}))

	current = current.Add(9 * time.Minute)
	_, err := store.Peek(ctx, "abc")
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)
	_, err = store.Peek(ctx, "abc")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestMemoryStateStoreSaveSweepsExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)

	current := time.Now()
	store.now = func() time.Time { return current }

	require.NoError(t, store.Save(ctx, "old", map[string]string{"k": "v"}))
	current = current.Add(2 * time.Minute)
	require.NoError(t, store.Save(ctx, "new", map[string]string{"k": "v"}))

	assert.Len(t, store.entries, 1)
	_, ok := store.entries["new"]
	assert.True(t, ok)
}

func TestMemoryStateStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)

	require.NoError(t, store.Save(ctx, "abc", map[string]string{"v": "1"}))
	require.NoError(t, store.Save(ctx, "abc", map[string]string{"v": "2"}))

	got, err := store.Peek(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "2", got["v"])
}

func TestMemoryStateStoreGetIsDestructive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)
	require.NoError(t, store.Save(ctx, "abc", map[string]string{"k": "v"}))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "v", got["k"])

	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestMemoryStateStoreConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)
	require.NoError(t, store.Save(ctx, "abc", map[string]string{"k": "v"}))

	const workers = 16
	var wg sync.WaitGroup
	var hits int64
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			found, err := store.Consume(ctx, "abc")
			assert.NoError(t, err)
			if found {
				mu.Lock()
				hits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), hits, "exactly one caller should win the state")
}

func TestMemoryStateStoreConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			state := fmt.Sprintf("state-%d", n)
			assert.NoError(t, store.Save(ctx, state, map[string]string{"n": state}))
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		state := fmt.Sprintf("state-%d", i)
		got, err := store.Peek(ctx, state)
		require.NoError(t, err)
		assert.Equal(t, state, got["n"])
	}
}
