package provider

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/liuran001/TubeBot-Go/bot"
)

// Settings exposes the "[provider.<name>]" config section of one provider.
type Settings interface {
	GetProviderString(provider, key string) string
	GetProviderBool(provider, key string) bool
}

// Factory builds a provider from its config section.
type Factory func(settings Settings, logger bot.Logger) (Provider, error)

// ErrUnknownProvider is returned by Build for unregistered names.
var ErrUnknownProvider = errors.New("provider: not registered")

// Registry maps provider names to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Empty names, nil factories and duplicates are rejected.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return errors.New("provider name cannot be empty")
	}
	if factory == nil {
		return errors.New("provider factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("provider already registered: %s", name)
	}
	r.factories[name] = factory
	return nil
}

// Build instantiates the named provider.
func (r *Registry) Build(name string, settings Settings, logger bot.Logger) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	p, err := factory(settings, logger)
	if err != nil {
		return nil, fmt.Errorf("init provider %s: %w", name, err)
	}
	return p, nil
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
