package shutdown

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"inpaint_backend/core"
)

type shutdownEntry struct {
	name     string
	fn       core.ShutdownFunc
	priority int // lower runs first
}

// ShutdownRegistry holds cleanup functions and runs them once, in priority
// order. Equal priorities run in registration order.
type ShutdownRegistry struct {
	mu      sync.Mutex
	entries []shutdownEntry
	closed  bool
}

// NewShutdownRegistry returns an empty registry.
func NewShutdownRegistry() *ShutdownRegistry {
	return &ShutdownRegistry{}
}

// Register adds fn. Registrations after Shutdown are dropped.
func (r *ShutdownRegistry) Register(name string, priority int, fn core.ShutdownFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.entries = append(r.entries, shutdownEntry{name: name, fn: fn, priority: priority})
}

func (r *ShutdownRegistry) sorted() []shutdownEntry {
	out := make([]shutdownEntry, len(r.entries))
	copy(out, r.entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].priority < out[j].priority })
	return out
}

// Shutdown runs every function, even after failures, and returns one error
// per failed function prefixed with its name. Later calls return nil.
func (r *ShutdownRegistry) Shutdown(ctx context.Context) []error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	entries := r.sorted()
	r.mu.Unlock()

	var errs []error
	for _, entry := range entries {
		if err := entry.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.name, err))
		}
	}
	return errs
}

// Names returns the handler names in execution order.
func (r *ShutdownRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.sorted()
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.name
	}
	return names
}

// Count returns the number of registered handlers.
func (r *ShutdownRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
