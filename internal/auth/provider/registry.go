package provider

import "fmt"

// Registry holds all configured OAuth providers and allows
// lookup by provider name. It performs no auth logic itself.
type Registry struct {
	providers map[string]OAuthProvider
	first     string
}

// NewRegistry registers the given OAuth providers by name.
// Provider names must be unique. The first provider listed becomes
// the default for callbacks that do not name one.
func NewRegistry(list ...OAuthProvider) *Registry {
	m := make(map[string]OAuthProvider)
	first := ""
	for _, p := range list {
		if first == "" {
			first = p.Name()
		}
		m[p.Name()] = p
	}
	return &Registry{providers: m, first: first}
}

// Get returns the OAuth provider by name or an error if not registered.
func (r *Registry) Get(name string) (OAuthProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown oauth provider: %s", name)
	}
	return p, nil
}

// Default returns the first registered provider.
func (r *Registry) Default() (OAuthProvider, error) {
	return r.Get(r.first)
}
