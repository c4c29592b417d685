package stateguard

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_InsertAndTake(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	entry := StateEntry{
		Token:       "tok-1",
		Provider:    "github",
		CallbackURL: "https://app.example/dashboard",
		CreatedAt:   time.Now(),
	}

	inserted, err := store.Insert(ctx, entry)
	require.NoError(t, err)
	assert.True(t, inserted)

	got, ok, err := store.Take(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry, got)

	_, ok, err = store.Take(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_InsertRejectsDuplicateToken(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	inserted, err := store.Insert(ctx, StateEntry{Token: "dup"})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.Insert(ctx, StateEntry{Token: "dup"})
	require.NoError(t, err)
	assert.False(t, inserted)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStore_SweepExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	old := StateEntry{Token: "old", CreatedAt: now.Add(-11 * time.Minute)}
	fresh := StateEntry{Token: "fresh", CreatedAt: now.Add(-9 * time.Minute)}

	for _, e := range []StateEntry{old, fresh} {
		_, err := store.Insert(ctx, e)
		require.NoError(t, err)
	}

	removed, err := store.SweepExpired(ctx, now, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok, err := store.Take(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok, "expired entry must be gone")

	_, ok, err = store.Take(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok, "sweep must not remove entries younger than the threshold")
}

func TestMemoryStore_ConcurrentTakeSingleWinner(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Insert(ctx, StateEntry{Token: "race", CreatedAt: time.Now()})
	require.NoError(t, err)

	const attempts = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := store.Take(ctx, "race"); ok {
				wins <- struct{}{}
			}
		}()
	}

	wg.Wait()
	close(wins)
	assert.Len(t, wins, 1, "exactly one taker may win")
}

func TestMemoryStore_ConcurrentInsertsNoneLost(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const flows = 64
	var wg sync.WaitGroup

	for i := 0; i < flows; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Insert(ctx, StateEntry{
				Token:     fmt.Sprintf("tok-%d", i),
				CreatedAt: time.Now(),
			})
			assert.NoError(t, err)
		}(i)
	}

	wg.Wait()

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, flows, n)
}
