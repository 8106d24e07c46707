package provider

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrProviderNotFound          = errors.New("provider not found")
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
	ErrCapabilityNotSupported    = errors.New("capability not supported by provider")
)

// Registry keeps adapters by name and hands them out by capability.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Register(p Provider) error {
	if p == nil {
		return errors.New("provider cannot be nil")
	}
	name := p.Name()
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("%w: %q", ErrProviderAlreadyRegistered, name)
	}
	r.providers[name] = p
	return nil
}

// BackgroundRemover returns the named provider if it supports background removal.
func (r *Registry) BackgroundRemover(name string) (BackgroundRemover, error) {
	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	br, ok := p.(BackgroundRemover)
	if !ok {
		return nil, fmt.Errorf("%w: %q can't remove background", ErrCapabilityNotSupported, name)
	}
	return br, nil
}

// BackgroundRemovers lists names of all providers with background removal, sorted.
func (r *Registry) BackgroundRemovers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name, p := range r.providers {
		if _, ok := p.(BackgroundRemover); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
