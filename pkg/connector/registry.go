package connector

import (
	"fmt"
	"sync"
)

// Registry maps a transport URL scheme (e.g. "ssh", "local") to the
// Factory that builds a Connector for it. Concrete connector packages
// (pkg/connector/ssh, pkg/connector/local) register themselves into a
// Registry built by the composition root (pkg/forge), never here — this
// keeps pkg/connector free of a dependency on any concrete transport.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds scheme -> factory. It is an error to register the same
// scheme twice.
func (r *Registry) Register(scheme string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[scheme]; exists {
		return fmt.Errorf("connector: scheme %q already registered", scheme)
	}
	r.factories[scheme] = factory
	return nil
}

// Build constructs a Connector for scheme, or an error if no factory was
// registered for it.
func (r *Registry) Build(scheme, url string, host HostInfo) (Connector, error) {
	r.mu.RLock()
	factory, ok := r.factories[scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("connector: unknown transport scheme %q", scheme)
	}
	return factory(url, host)
}
