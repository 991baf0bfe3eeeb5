package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanrally/syncbox/internal/action"
	"github.com/fanrally/syncbox/internal/storage"
)

func setupTestQueue(t *testing.T) (*Queue, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	return New(store, zerolog.Nop()), store
}

func TestEnqueue(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	a, err := q.Enqueue(ctx, action.TypeParticipate, map[string]any{"challengeId": 1})
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, action.TypeParticipate, a.Type)
	assert.Equal(t, 0, a.RetryCount)

	actions, err := q.Actions(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, a.ID, actions[0].ID)
}

func TestEnqueue_Scenario(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, action.TypeParticipate, map[string]any{"challengeId": 1, "displayName": "User1"})
	require.NoError(t, err)
	second, err := q.Enqueue(ctx, action.TypeParticipate, map[string]any{"challengeId": 2, "displayName": "User2"})
	require.NoError(t, err)

	actions, err := q.Actions(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 0, actions[0].RetryCount)
	assert.Equal(t, 0, actions[1].RetryCount)
}

func TestEnqueue_InvalidPayload(t *testing.T) {
	q, _ := setupTestQueue(t)

	_, err := q.Enqueue(context.Background(), action.TypeParticipate, map[string]any{
		"callback": func() {},
	})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	// Nothing was persisted.
	actions, err := q.Actions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestActions_DurabilityRoundTrip(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	q := New(store, zerolog.Nop())
	_, err := q.Enqueue(ctx, action.TypeCreateChallenge, map[string]any{"title": "rally"})
	require.NoError(t, err)

	// A fresh queue over the same store sees the persisted entry.
	reopened := New(store, zerolog.Nop())
	actions, err := reopened.Actions(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, action.TypeCreateChallenge, actions[0].Type)
	assert.Equal(t, "rally", actions[0].Payload["title"])
}

func TestActions_EmptyAndCorrupt(t *testing.T) {
	q, store := setupTestQueue(t)
	ctx := context.Background()

	actions, err := q.Actions(ctx)
	require.NoError(t, err)
	assert.NotNil(t, actions)
	assert.Empty(t, actions)

	// Corrupt persisted state reads as empty, not as an error.
	require.NoError(t, store.Set(ctx, DefaultKey, "{definitely not json"))
	actions, err = q.Actions(ctx)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestRemove(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	a, err := q.Enqueue(ctx, action.TypeParticipate, nil)
	require.NoError(t, err)
	b, err := q.Enqueue(ctx, action.TypeUpdateProfile, nil)
	require.NoError(t, err)

	require.NoError(t, q.Remove(ctx, a.ID))

	actions, err := q.Actions(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, b.ID, actions[0].ID)

	// Removing an absent id is a no-op.
	require.NoError(t, q.Remove(ctx, "nonexistent"))
}

func TestClear_Idempotent(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, action.TypeParticipate, nil)
	require.NoError(t, err)

	require.NoError(t, q.Clear(ctx))
	actions, err := q.Actions(ctx)
	require.NoError(t, err)
	assert.Empty(t, actions)

	require.NoError(t, q.Clear(ctx))
}

func TestIncrementRetry(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	a, err := q.Enqueue(ctx, action.TypeParticipate, nil)
	require.NoError(t, err)

	require.NoError(t, q.IncrementRetry(ctx, a.ID, "connection refused"))
	require.NoError(t, q.IncrementRetry(ctx, a.ID, "connection refused"))

	actions, err := q.Actions(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, 2, actions[0].RetryCount)
	assert.Equal(t, "connection refused", actions[0].LastError)

	require.NoError(t, q.IncrementRetry(ctx, "nonexistent", "x"))
}

func TestResetRetries(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	a, err := q.Enqueue(ctx, action.TypeParticipate, nil)
	require.NoError(t, err)
	b, err := q.Enqueue(ctx, action.TypeUpdateProfile, nil)
	require.NoError(t, err)

	for range 3 {
		require.NoError(t, q.IncrementRetry(ctx, a.ID, "boom"))
	}
	require.NoError(t, q.IncrementRetry(ctx, b.ID, "boom"))

	require.NoError(t, q.ResetRetries(ctx, 3))

	actions, err := q.Actions(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, 0, actions[0].RetryCount, "exhausted entry was reset")
	assert.Empty(t, actions[0].LastError)
	assert.Equal(t, 1, actions[1].RetryCount, "entry below the cap keeps its count")
}

func TestEnqueue_ConcurrentNoLostUpdate(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := q.Enqueue(ctx, action.TypeParticipate, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	actions, err := q.Actions(ctx)
	require.NoError(t, err)
	assert.Len(t, actions, n)

	seen := make(map[string]bool)
	for _, a := range actions {
		assert.False(t, seen[a.ID], "duplicate id %s", a.ID)
		seen[a.ID] = true
	}
}

func TestOnChange(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	var lengths []int
	q.SetOnChange(func(pending int) { lengths = append(lengths, pending) })

	_, err := q.Enqueue(ctx, action.TypeParticipate, nil)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, action.TypeParticipate, nil)
	require.NoError(t, err)
	require.NoError(t, q.Clear(ctx))

	assert.Equal(t, []int{1, 2, 0}, lengths)
}
