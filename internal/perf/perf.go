// Package perf keeps a bounded, newest-first history of performance
// snapshots (startup timings and web vitals) for the diagnostics surface.
// The persisted list never exceeds MaxSnapshots entries; the oldest are
// evicted on overflow.
package perf

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fanrally/syncbox/internal/metrics"
	"github.com/fanrally/syncbox/internal/storage"
)

const (
	DefaultKey   = "performance_metrics"
	MaxSnapshots = 100
)

type Rating string

const (
	RatingGood             Rating = "good"
	RatingNeedsImprovement Rating = "needs-improvement"
	RatingPoor             Rating = "poor"
)

// StartupMetric carries app startup timings in milliseconds.
type StartupMetric struct {
	JSLoaded    float64 `json:"js_loaded"`
	FirstRender float64 `json:"first_render"`
	Interactive float64 `json:"interactive"`
	Timestamp   int64   `json:"timestamp"`
}

// WebVital is a single web-vitals sample (LCP, FID, CLS, ...).
type WebVital struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Rating    Rating  `json:"rating"`
	Timestamp int64   `json:"timestamp"`
}

// Snapshot is one recorded performance capture. Startup is nil when the
// snapshot carries only web-vitals data.
type Snapshot struct {
	ID        string         `json:"id"`
	Timestamp int64          `json:"timestamp"`
	Startup   *StartupMetric `json:"startup"`
	WebVitals []WebVital     `json:"web_vitals"`
	UserAgent string         `json:"user_agent"`
	Platform  string         `json:"platform"`
}

// Store persists snapshots newest-first under a single storage key.
type Store struct {
	store storage.Store
	key   string
	max   int
	log   zerolog.Logger

	mu chan struct{}
}

type Option func(*Store)

func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithMaxSnapshots overrides the retention cap.
func WithMaxSnapshots(n int) Option {
	return func(s *Store) { s.max = n }
}

func NewStore(store storage.Store, log zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		store: store,
		key:   DefaultKey,
		max:   MaxSnapshots,
		log:   log,
		mu:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) lock(ctx context.Context) error {
	select {
	case s.mu <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) unlock() {
	<-s.mu
}

// Save prepends the snapshot and truncates the list to the retention cap.
// A missing id is filled in.
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}

	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	existing, err := s.load(ctx)
	if err != nil {
		return err
	}

	updated := append([]Snapshot{snap}, existing...)
	evicted := 0
	if len(updated) > s.max {
		evicted = len(updated) - s.max
		updated = updated[:s.max]
	}

	if err := s.save(ctx, updated); err != nil {
		return err
	}

	metrics.RecordSnapshotSaved(evicted)
	s.log.Debug().Str("id", snap.ID).Int("kept", len(updated)).Int("evicted", evicted).Msg("snapshot saved")
	return nil
}

// Snapshots returns the persisted list, newest first. Missing or corrupt
// state yields an empty slice.
func (s *Store) Snapshots(ctx context.Context) ([]Snapshot, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()

	return s.load(ctx)
}

// Clear empties the persisted history.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	return s.store.Remove(ctx, s.key)
}

func (s *Store) load(ctx context.Context) ([]Snapshot, error) {
	raw, ok, err := s.store.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return []Snapshot{}, nil
	}

	var snaps []Snapshot
	if err := json.Unmarshal([]byte(raw), &snaps); err != nil {
		s.log.Warn().Err(err).Msg("corrupt snapshot history, treating as empty")
		return []Snapshot{}, nil
	}
	if snaps == nil {
		snaps = []Snapshot{}
	}

	return snaps, nil
}

func (s *Store) save(ctx context.Context, snaps []Snapshot) error {
	data, err := json.Marshal(snaps)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshots: %w", err)
	}
	return s.store.Set(ctx, s.key, string(data))
}
