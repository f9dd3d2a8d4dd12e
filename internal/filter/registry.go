package filter

import (
	"fmt"
	"sort"
	"sync"
)

// Builder constructs stages by name. Implementations live in the builtin
// package; callers can register their own.
type Builder interface {
	// Name returns the identifier used in filter specs and listings.
	Name() string

	// Description returns a human-readable summary for help output.
	Description() string

	// Build creates a fresh stage from the given arguments. Argument
	// validation happens here, before any process is spawned.
	Build(args []string) (*Stage, error)
}

// Registry maps filter names to builders. It is an explicit object with a
// clear init lifecycle — there is no package-level registration state.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds a builder to the registry.
func (r *Registry) Register(b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[b.Name()] = b
}

// Lookup returns a builder by name.
func (r *Registry) Lookup(name string) (Builder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown filter: %q", name)
	}
	return b, nil
}

// All returns all registered builders sorted by name.
func (r *Registry) All() []Builder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	builders := make([]Builder, 0, len(r.builders))
	for _, b := range r.builders {
		builders = append(builders, b)
	}
	sort.Slice(builders, func(i, j int) bool {
		return builders[i].Name() < builders[j].Name()
	})
	return builders
}
