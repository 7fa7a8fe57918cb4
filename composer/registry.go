package composer

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks in-flight executions by id so callers can cancel them
// cooperatively. Each composer owns one; cancellation is observed at loop
// boundaries, never mid-pipeline.
type Registry struct {
	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewRegistry creates an empty execution registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]context.CancelFunc)}
}

// register derives a cancellable context for a new run and returns its
// execution id.
func (r *Registry) register(ctx context.Context) (string, context.Context, context.CancelFunc) {
	id := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.active[id] = cancel
	r.mu.Unlock()

	return id, runCtx, cancel
}

// deregister removes a concluded run.
func (r *Registry) deregister(id string) {
	r.mu.Lock()
	delete(r.active, id)
	r.mu.Unlock()
}

// Cancel requests cooperative cancellation of the given execution.
// Returns false when the id is unknown or already concluded.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	cancel, ok := r.active[id]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Active returns the ids of currently registered executions.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	return ids
}
