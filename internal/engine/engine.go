// Package engine drains the offline action queue by replaying each entry
// through its registered handler. Drain passes are single-flight, strictly
// FIFO, and stop at the first failure so that dependent actions are never
// replayed out of order. Failures never escape the engine; they surface as
// data on the status object.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fanrally/syncbox/internal/action"
	"github.com/fanrally/syncbox/internal/connectivity"
	"github.com/fanrally/syncbox/internal/metrics"
	"github.com/fanrally/syncbox/internal/queue"
)

const (
	DefaultMaxRetries     = 3
	DefaultHandlerTimeout = 30 * time.Second
)

// Status is the observable state of the engine. PendingCount always reflects
// the persisted queue length at the time of the read.
type Status struct {
	IsSyncing    bool       `json:"is_syncing"`
	PendingCount int        `json:"pending_count"`
	LastSyncAt   *time.Time `json:"last_sync_at"`
	LastError    string     `json:"last_error,omitempty"`
}

// Result summarizes one drain pass.
type Result struct {
	Replayed  int `json:"replayed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Exhausted int `json:"exhausted"`
}

type Engine struct {
	queue    *queue.Queue
	registry *Registry
	oracle   connectivity.Oracle
	log      zerolog.Logger

	maxRetries     int
	handlerTimeout time.Duration

	draining atomic.Bool

	mu         sync.Mutex
	lastSyncAt *time.Time
	lastError  string
	listeners  map[int]func(Status)
	nextID     int
}

type Option func(*Engine)

// WithMaxRetries sets how many failed attempts an action gets before drain
// passes skip it as permanently failed. Retry resets the count.
func WithMaxRetries(n int) Option {
	return func(e *Engine) { e.maxRetries = n }
}

// WithHandlerTimeout bounds each handler invocation. Zero disables the bound.
func WithHandlerTimeout(d time.Duration) Option {
	return func(e *Engine) { e.handlerTimeout = d }
}

func New(q *queue.Queue, r *Registry, oracle connectivity.Oracle, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		queue:          q,
		registry:       r,
		oracle:         oracle,
		log:            log,
		maxRetries:     DefaultMaxRetries,
		handlerTimeout: DefaultHandlerTimeout,
		listeners:      make(map[int]func(Status)),
	}
	for _, opt := range opts {
		opt(e)
	}

	q.SetOnChange(func(pending int) {
		metrics.UpdateQueueDepth(pending)
		e.publish(context.Background())
	})

	return e
}

// Enqueue records a user intent and, when the backend is reachable, kicks off
// an immediate drain in the background. The action is durably persisted before
// Enqueue returns.
func (e *Engine) Enqueue(ctx context.Context, actionType action.ActionType, payload map[string]any) (*action.Action, error) {
	a, err := e.queue.Enqueue(ctx, actionType, payload)
	if err != nil {
		return nil, err
	}

	metrics.RecordActionEnqueued(actionType)

	if e.oracle.Online(ctx) {
		go e.Sync(context.Background())
	}

	return a, nil
}

// Sync runs one drain pass and returns its summary. It is single-flight: a
// call while another pass is draining returns an empty Result immediately;
// callers that care about the outcome observe status instead. Errors inside
// the pass never propagate, they are recorded as LastError.
func (e *Engine) Sync(ctx context.Context) Result {
	if !e.draining.CompareAndSwap(false, true) {
		e.log.Debug().Msg("drain already in flight")
		return Result{}
	}
	defer e.draining.Store(false)

	if !e.oracle.Online(ctx) {
		e.log.Debug().Msg("offline, skipping drain")
		return Result{}
	}

	start := time.Now()
	e.publish(ctx)

	res := e.drain(ctx)

	outcome := "ok"
	if res.Failed > 0 {
		outcome = "failed"
	}
	metrics.RecordDrain(outcome, time.Since(start))

	e.log.Info().
		Int("replayed", res.Replayed).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Int("exhausted", res.Exhausted).
		Msg("drain pass finished")

	e.publish(ctx)
	return res
}

// Retry is the user-initiated recovery path: actions that exhausted their
// retry budget get a fresh one, then a normal drain pass runs.
func (e *Engine) Retry(ctx context.Context) Result {
	if err := e.queue.ResetRetries(ctx, e.maxRetries); err != nil {
		e.setLastError(fmt.Sprintf("failed to reset retries: %v", err))
		e.publish(ctx)
		return Result{}
	}
	return e.Sync(ctx)
}

func (e *Engine) drain(ctx context.Context) Result {
	var res Result

	actions, err := e.queue.Actions(ctx)
	if err != nil {
		e.setLastError(fmt.Sprintf("failed to read sync queue: %v", err))
		return res
	}

	for _, a := range actions {
		if a.RetryCount >= e.maxRetries {
			e.log.Warn().Str("id", a.ID).Str("type", a.Type).Int("retries", a.RetryCount).
				Msg("action exhausted retry budget, skipping")
			metrics.RecordActionExhausted(a.Type)
			res.Exhausted++
			continue
		}

		handler, ok := e.registry.Lookup(a.Type)
		if !ok {
			// Not an error: the owning feature module may simply not have
			// registered yet this process. The action stays queued.
			e.log.Warn().Str("id", a.ID).Str("type", a.Type).Msg("no handler registered, skipping")
			metrics.RecordActionSkipped(a.Type)
			res.Skipped++
			continue
		}

		started := time.Now()
		err := e.invoke(ctx, handler, a)
		took := time.Since(started)

		if err != nil {
			msg := fmt.Sprintf("%s: %v", a.Type, err)
			e.log.Error().Err(err).Str("id", a.ID).Str("type", a.Type).Msg("replay failed, stopping pass")
			metrics.RecordActionFailed(a.Type, took)
			if ierr := e.queue.IncrementRetry(ctx, a.ID, err.Error()); ierr != nil {
				e.log.Error().Err(ierr).Str("id", a.ID).Msg("failed to record retry")
			}
			e.setLastError(msg)
			res.Failed++
			// Later actions may depend on this one; stop the pass.
			return res
		}

		if rerr := e.queue.Remove(ctx, a.ID); rerr != nil {
			// The handler side effect happened but the entry could not be
			// removed; it will be replayed again. At-least-once, not exactly-once.
			e.log.Error().Err(rerr).Str("id", a.ID).Msg("failed to remove replayed action")
			e.setLastError(fmt.Sprintf("failed to remove replayed action: %v", rerr))
			res.Failed++
			return res
		}

		metrics.RecordActionReplayed(a.Type, took)
		e.log.Debug().Str("id", a.ID).Str("type", a.Type).Dur("took", took).Msg("action replayed")
		res.Replayed++
	}

	if res.Failed == 0 {
		now := time.Now()
		e.mu.Lock()
		e.lastSyncAt = &now
		e.lastError = ""
		e.mu.Unlock()
	}

	return res
}

// invoke runs a handler under the configured timeout. The handler executes in
// its own goroutine so a hung handler becomes a recorded failure instead of
// wedging the drain pass; the goroutine itself is abandoned.
func (e *Engine) invoke(ctx context.Context, h Handler, a *action.Action) error {
	if e.handlerTimeout <= 0 {
		return h(ctx, a.Payload)
	}

	ctx, cancel := context.WithTimeout(ctx, e.handlerTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- h(ctx, a.Payload)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("handler timed out after %s: %w", e.handlerTimeout, ctx.Err())
	}
}

// Status reads the current engine state. PendingCount comes from the
// persisted queue, not from a cached counter.
func (e *Engine) Status(ctx context.Context) Status {
	pending, err := e.queue.Len(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to read queue length for status")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return Status{
		IsSyncing:    e.draining.Load(),
		PendingCount: pending,
		LastSyncAt:   e.lastSyncAt,
		LastError:    e.lastError,
	}
}

// OnStatus subscribes to status updates. The listener is invoked immediately
// with the current status, then after every queue mutation and drain
// transition. The returned function removes the subscription.
func (e *Engine) OnStatus(fn func(Status)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.mu.Unlock()

	fn(e.Status(context.Background()))

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// AutoSync arms connectivity-driven draining: every offline-to-online
// transition (including the initial notification when already online)
// triggers a background drain. The returned stop function disposes the
// subscription and must be called on teardown.
func (e *Engine) AutoSync() (stop func()) {
	e.log.Info().Msg("auto sync armed")
	return e.oracle.OnChange(func(online bool) {
		if online {
			go e.Sync(context.Background())
		}
	})
}

func (e *Engine) setLastError(msg string) {
	e.mu.Lock()
	e.lastError = msg
	e.mu.Unlock()
}

func (e *Engine) publish(ctx context.Context) {
	status := e.Status(ctx)

	e.mu.Lock()
	fns := make([]func(Status), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(status)
	}
}
