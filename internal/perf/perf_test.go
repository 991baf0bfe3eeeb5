package perf

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fanrally/syncbox/internal/storage"
)

func setupTestStore(t *testing.T, opts ...Option) (*Store, *storage.MemoryStore) {
	t.Helper()
	backing := storage.NewMemoryStore()
	return NewStore(backing, zerolog.Nop(), opts...), backing
}

func snapshotAt(i int) Snapshot {
	return Snapshot{
		ID:        fmt.Sprintf("snap-%d", i),
		Timestamp: time.Now().UnixMilli() + int64(i),
		Platform:  "ios",
	}
}

func TestSave_FillsMissingID(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, Snapshot{Timestamp: 1}))

	snaps, err := s.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.NotEmpty(t, snaps[0].ID)
}

func TestSave_NewestFirst(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	for i := range 3 {
		require.NoError(t, s.Save(ctx, snapshotAt(i)))
	}

	snaps, err := s.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, "snap-2", snaps[0].ID)
	assert.Equal(t, "snap-1", snaps[1].ID)
	assert.Equal(t, "snap-0", snaps[2].ID)
}

func TestSave_BoundedRetention(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	for i := range MaxSnapshots + 1 {
		require.NoError(t, s.Save(ctx, snapshotAt(i)))
	}

	snaps, err := s.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, MaxSnapshots)

	// Newest kept at the front, the single oldest evicted.
	assert.Equal(t, fmt.Sprintf("snap-%d", MaxSnapshots), snaps[0].ID)
	assert.Equal(t, "snap-1", snaps[MaxSnapshots-1].ID)
	for _, snap := range snaps {
		assert.NotEqual(t, "snap-0", snap.ID)
	}
}

func TestSnapshots_EmptyAndCorrupt(t *testing.T) {
	s, backing := setupTestStore(t)
	ctx := context.Background()

	snaps, err := s.Snapshots(ctx)
	require.NoError(t, err)
	assert.NotNil(t, snaps)
	assert.Empty(t, snaps)

	require.NoError(t, backing.Set(ctx, DefaultKey, "[broken"))
	snaps, err = s.Snapshots(ctx)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestClear_Idempotent(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, snapshotAt(0)))
	require.NoError(t, s.Clear(ctx))

	snaps, err := s.Snapshots(ctx)
	require.NoError(t, err)
	assert.Empty(t, snaps)

	require.NoError(t, s.Clear(ctx))
}

func TestStats_ZeroState(t *testing.T) {
	s, _ := setupTestStore(t)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.TotalSnapshots)
	assert.Equal(t, StartupStats{}, stats.Startup)
	assert.Empty(t, stats.WebVitals)
}

func TestStats_WebVitals(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, Snapshot{
		WebVitals: []WebVital{{Name: "LCP", Value: 2000, Rating: RatingGood}},
	}))
	require.NoError(t, s.Save(ctx, Snapshot{
		WebVitals: []WebVital{{Name: "LCP", Value: 3000, Rating: RatingNeedsImprovement}},
	}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)

	lcp, ok := stats.WebVitals["lcp"]
	require.True(t, ok)
	assert.Equal(t, 2500.0, lcp.Avg)
	assert.Equal(t, 1, lcp.Good)
	assert.Equal(t, 1, lcp.NeedsImprovement)
	assert.Equal(t, 0, lcp.Poor)
	assert.Equal(t, 2, stats.TotalSnapshots)
}

func TestStats_Startup(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, Snapshot{
		Startup: &StartupMetric{JSLoaded: 100, FirstRender: 200, Interactive: 400},
	}))
	require.NoError(t, s.Save(ctx, Snapshot{
		Startup: &StartupMetric{JSLoaded: 300, FirstRender: 400, Interactive: 800},
	}))
	// Web-vitals-only snapshot must not contribute to startup aggregates.
	require.NoError(t, s.Save(ctx, Snapshot{
		WebVitals: []WebVital{{Name: "FID", Value: 10, Rating: RatingGood}},
	}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 200.0, stats.Startup.AvgJSLoaded)
	assert.Equal(t, 300.0, stats.Startup.AvgFirstRender)
	assert.Equal(t, 600.0, stats.Startup.AvgInteractive)
	assert.Equal(t, 400.0, stats.Startup.MinInteractive)
	assert.Equal(t, 800.0, stats.Startup.MaxInteractive)
	assert.Equal(t, 3, stats.TotalSnapshots)
}

func TestWithMaxSnapshots(t *testing.T) {
	s, _ := setupTestStore(t, WithMaxSnapshots(2))
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, s.Save(ctx, snapshotAt(i)))
	}

	snaps, err := s.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "snap-4", snaps[0].ID)
	assert.Equal(t, "snap-3", snaps[1].ID)
}
