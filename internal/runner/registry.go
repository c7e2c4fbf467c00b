// Package runner maps node type tags to the code that executes them. The
// scheduler never holds a reference to node logic, only to a type tag looked
// up here plus the execution context payload.
package runner

import (
	"fmt"
	"sync"

	"github.com/gridflow/gridflow/internal/activity"
)

// Registry is a name-to-implementation table of node runners. Lookups for
// unregistered types fall back to a default runner, normally the remote
// runner, since node-type semantics live in the execution service.
type Registry struct {
	mu       sync.RWMutex
	runners  map[string]activity.Runner
	fallback activity.Runner
}

// NewRegistry creates a registry with the given fallback runner.
func NewRegistry(fallback activity.Runner) *Registry {
	return &Registry{
		runners:  make(map[string]activity.Runner),
		fallback: fallback,
	}
}

// Register binds a node type to a runner.
func (r *Registry) Register(nodeType string, runner activity.Runner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runners[nodeType]; exists {
		return fmt.Errorf("runner for node type %q already registered", nodeType)
	}
	r.runners[nodeType] = runner
	return nil
}

// Lookup returns the runner for a node type, or the fallback if none is
// registered.
func (r *Registry) Lookup(nodeType string) activity.Runner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if runner, ok := r.runners[nodeType]; ok {
		return runner
	}
	return r.fallback
}
