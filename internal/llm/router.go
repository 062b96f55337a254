package llm

import (
	"context"
	"fmt"
	"sync"
)

// Router selects a Provider by name, falling back to a configured default
// and finally to whichever provider was registered first. Unlike the richer
// rule-and-classifier routing a multi-tenant agent platform needs, Harbor
// only ever has a handful of locally configured providers, so "explicit
// choice, else default, else first available" is the whole policy.
type Router struct {
	mu              sync.RWMutex
	providers       map[string]Provider
	order           []string
	defaultProvider string
}

// NewRouter creates an empty router. DefaultProvider is used when a request
// names no provider; it need not be registered yet at construction time.
func NewRouter(defaultProvider string) *Router {
	return &Router{
		providers:       make(map[string]Provider),
		defaultProvider: defaultProvider,
	}
}

// Register adds or replaces a provider under its own Name().
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
}

// Resolve picks a provider by name, falling back to the configured default,
// then to the first registered provider. An empty router is an error.
func (r *Router) Resolve(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name != "" {
		if p, ok := r.providers[name]; ok {
			return p, nil
		}
		return nil, fmt.Errorf("llm: provider %q is not registered", name)
	}
	if r.defaultProvider != "" {
		if p, ok := r.providers[r.defaultProvider]; ok {
			return p, nil
		}
	}
	if len(r.order) == 0 {
		return nil, fmt.Errorf("llm: no providers registered")
	}
	return r.providers[r.order[0]], nil
}

// Complete resolves a provider for req.Model's owning provider hint (passed
// separately as providerName, since CompletionRequest.Model is provider-local)
// and streams the completion through it.
func (r *Router) Complete(ctx context.Context, providerName string, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	p, err := r.Resolve(providerName)
	if err != nil {
		return nil, err
	}
	return p.Complete(ctx, req)
}

// Providers lists the names of all registered providers in registration order.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
