// Registry manages transform registration and lookup.
//
// DESIGN: Thread-safe map of vendor name → Transform. Built-in transforms
// are registered at startup.
package transform

import (
	"sync"
)

// Registry manages transform registration.
type Registry struct {
	transforms map[string]Transform
	mu         sync.RWMutex
}

// NewRegistry creates a registry with all built-in transforms.
func NewRegistry() *Registry {
	r := &Registry{
		transforms: make(map[string]Transform),
	}

	// Register built-in transforms
	r.Register(NewOpenAICompatTransform("openai", ProviderOpenAI, "https://api.openai.com/v1"))
	r.Register(NewGroqTransform())

	return r
}

// Register adds a transform to the registry.
func (r *Registry) Register(t Transform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transforms[t.Name()] = t
}

// Get returns a transform by vendor name, or nil if unknown.
func (r *Registry) Get(name string) Transform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.transforms[name]
}
