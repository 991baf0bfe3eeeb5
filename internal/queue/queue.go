// Package queue implements the durable offline action queue. Actions are
// appended while the device is offline and replayed in FIFO order by the sync
// engine once connectivity returns. The whole queue is persisted as one JSON
// array under a single storage key; every read-modify-write cycle is
// serialized through an in-process mutex because the storage layer has no
// atomic append.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fanrally/syncbox/internal/action"
	"github.com/fanrally/syncbox/internal/storage"
)

const DefaultKey = "offline_sync_queue"

// ErrInvalidPayload marks an enqueue whose payload cannot be serialized to
// JSON. Nothing is persisted in that case.
var ErrInvalidPayload = errors.New("payload is not JSON-serializable")

type Queue struct {
	store storage.Store
	key   string
	log   zerolog.Logger

	mu       chan struct{} // held across read-modify-write cycles
	onChange func(pending int)
}

type Option func(*Queue)

// WithKey overrides the storage key. Multiple queues may share one store as
// long as their keys differ.
func WithKey(key string) Option {
	return func(q *Queue) { q.key = key }
}

// WithOnChange installs a hook invoked with the new queue length after every
// successful mutation. The sync engine uses it to push status updates.
func WithOnChange(fn func(pending int)) Option {
	return func(q *Queue) { q.onChange = fn }
}

func New(store storage.Store, log zerolog.Logger, opts ...Option) *Queue {
	q := &Queue{
		store: store,
		key:   DefaultKey,
		log:   log,
		mu:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// SetOnChange replaces the change hook. The engine installs itself here when
// it takes ownership of a queue; call it before the queue is shared across
// goroutines.
func (q *Queue) SetOnChange(fn func(pending int)) {
	q.onChange = fn
}

func (q *Queue) lock(ctx context.Context) error {
	select {
	case q.mu <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) unlock() {
	<-q.mu
}

// Enqueue appends a new action and persists the queue before returning, so a
// crash immediately after the call cannot lose the action.
func (q *Queue) Enqueue(ctx context.Context, actionType action.ActionType, payload map[string]any) (*action.Action, error) {
	if _, err := json.Marshal(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if err := q.lock(ctx); err != nil {
		return nil, err
	}

	actions, err := q.load(ctx)
	if err != nil {
		q.unlock()
		return nil, err
	}

	a := action.New(actionType, payload)
	actions = append(actions, a)

	if err := q.save(ctx, actions); err != nil {
		q.unlock()
		return nil, err
	}
	pending := len(actions)
	q.unlock()

	q.log.Debug().Str("id", a.ID).Str("type", a.Type).Int("pending", pending).Msg("action enqueued")
	// Notify outside the lock so listeners may call back into the queue.
	q.notify(pending)

	return a, nil
}

// Actions returns the persisted queue in FIFO order. A missing or corrupt
// stored value yields an empty slice, never nil and never an error: a corrupt
// queue must not brick the app, it is logged and dropped.
func (q *Queue) Actions(ctx context.Context) ([]*action.Action, error) {
	if err := q.lock(ctx); err != nil {
		return nil, err
	}
	defer q.unlock()

	return q.load(ctx)
}

// Remove deletes the action with the given id. Removing an id that is not
// queued is a no-op.
func (q *Queue) Remove(ctx context.Context, id string) error {
	if err := q.lock(ctx); err != nil {
		return err
	}

	actions, err := q.load(ctx)
	if err != nil {
		q.unlock()
		return err
	}

	kept := actions[:0]
	for _, a := range actions {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(actions) {
		q.unlock()
		return nil
	}

	if err := q.save(ctx, kept); err != nil {
		q.unlock()
		return err
	}
	pending := len(kept)
	q.unlock()

	q.notify(pending)
	return nil
}

// Clear empties the queue. Safe to call repeatedly.
func (q *Queue) Clear(ctx context.Context) error {
	if err := q.lock(ctx); err != nil {
		return err
	}

	if err := q.store.Remove(ctx, q.key); err != nil {
		q.unlock()
		return err
	}
	q.unlock()

	q.log.Info().Msg("sync queue cleared")
	q.notify(0)
	return nil
}

// IncrementRetry bumps the retry count on the given action and records the
// failure message. Unknown ids are ignored.
func (q *Queue) IncrementRetry(ctx context.Context, id string, lastError string) error {
	if err := q.lock(ctx); err != nil {
		return err
	}
	defer q.unlock()

	actions, err := q.load(ctx)
	if err != nil {
		return err
	}

	found := false
	for _, a := range actions {
		if a.ID == id {
			a.RetryCount++
			a.LastError = lastError
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	return q.save(ctx, actions)
}

// ResetRetries zeroes the retry count of every action whose count reached the
// given cap, making them eligible for the next drain pass again.
func (q *Queue) ResetRetries(ctx context.Context, limit int) error {
	if err := q.lock(ctx); err != nil {
		return err
	}
	defer q.unlock()

	actions, err := q.load(ctx)
	if err != nil {
		return err
	}

	changed := false
	for _, a := range actions {
		if a.RetryCount >= limit {
			a.RetryCount = 0
			a.LastError = ""
			changed = true
		}
	}
	if !changed {
		return nil
	}

	return q.save(ctx, actions)
}

// Len reports the persisted queue length.
func (q *Queue) Len(ctx context.Context) (int, error) {
	actions, err := q.Actions(ctx)
	if err != nil {
		return 0, err
	}
	return len(actions), nil
}

func (q *Queue) load(ctx context.Context) ([]*action.Action, error) {
	raw, ok, err := q.store.Get(ctx, q.key)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return []*action.Action{}, nil
	}

	var actions []*action.Action
	if err := json.Unmarshal([]byte(raw), &actions); err != nil {
		q.log.Warn().Err(err).Msg("corrupt sync queue, treating as empty")
		return []*action.Action{}, nil
	}
	if actions == nil {
		actions = []*action.Action{}
	}

	return actions, nil
}

func (q *Queue) save(ctx context.Context, actions []*action.Action) error {
	data, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("failed to marshal sync queue: %w", err)
	}
	return q.store.Set(ctx, q.key, string(data))
}

func (q *Queue) notify(pending int) {
	if q.onChange != nil {
		q.onChange(pending)
	}
}
