package engine

import (
	"context"
	"sort"
	"sync"
)

// Handler replays one queued action against the backend. It receives the
// opaque payload recorded at enqueue time; all type-specific validation lives
// here, not in the queue.
type Handler func(ctx context.Context, payload map[string]any) error

// Registry maps action types to replay handlers. It is process-local and
// rebuilt on every start by the feature modules that own each action type.
// It is injected into the engine so tests can supply fakes.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register installs (or overwrites) the handler for an action type.
// Re-registration is an idempotent overwrite, never an error.
func (r *Registry) Register(actionType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[actionType] = h
}

func (r *Registry) Lookup(actionType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[actionType]
	return h, ok
}

// Types lists the registered action types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
