// Package backend manages the pluggable subagent backends the CLI can
// delegate work to.
package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/relayforge/relay/internal/backend/script"
	"github.com/relayforge/relay/internal/core"
	"github.com/relayforge/relay/internal/logging"
)

// Factory creates an unconfigured backend instance.
type Factory func(logger *logging.Logger) core.Backend

// Registry manages available backends. Instances are created lazily on
// first Get, configured from the stored config, and cached.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	backends  map[string]core.Backend
	configs   map[string]core.BackendConfig
	progress  core.ProgressCallback
	logger    *logging.Logger
}

// NewRegistry creates a registry with the built-in backends registered.
func NewRegistry(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Registry{
		factories: make(map[string]Factory),
		backends:  make(map[string]core.Backend),
		configs:   make(map[string]core.BackendConfig),
		logger:    logger,
	}
	r.RegisterFactory(script.BackendName, func(logger *logging.Logger) core.Backend {
		return script.New(logger)
	})
	return r
}

// RegisterFactory registers a factory for a backend type.
func (r *Registry) RegisterFactory(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Configure stores configuration for a backend. Any cached instance is
// dropped so the next Get re-creates it with the new settings.
func (r *Registry) Configure(name string, cfg core.BackendConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[name] = cfg
	delete(r.backends, name)
}

// Get returns a configured backend by name, creating it if necessary.
func (r *Registry) Get(name string) (core.Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.backends[name]; ok {
		return b, nil
	}

	factory, ok := r.factories[name]
	if !ok {
		return nil, core.ErrNotFound("backend", name)
	}

	b := factory(r.logger)
	if cfg, ok := r.configs[name]; ok {
		if err := b.Configure(cfg); err != nil {
			return nil, fmt.Errorf("configuring backend %s: %w", name, err)
		}
	}
	if r.progress != nil {
		b.OnProgress(r.progress)
	}

	r.backends[name] = b
	return b, nil
}

// List returns names of all registered backend types.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// Has checks if a backend type is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// SetProgressCallback subscribes cb on all backends, current and future.
func (r *Registry) SetProgressCallback(cb core.ProgressCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = cb
	for _, b := range r.backends {
		b.OnProgress(cb)
	}
}

// Available returns the configured backends whose probe passes.
func (r *Registry) Available(ctx context.Context) []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	r.mu.RUnlock()

	available := make([]string, 0, len(names))
	for _, name := range names {
		b, err := r.Get(name)
		if err != nil {
			continue
		}
		if b.IsAvailable(ctx) {
			available = append(available, name)
		}
	}
	return available
}
