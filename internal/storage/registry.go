package storage

import (
	"fmt"
	"sort"
	"strings"
)

// Registry maps configuration names to provider instances. It is populated
// once at startup and read-only afterwards; resolution of an unknown name
// is a hard error so misconfiguration aborts startup instead of surfacing
// at the first upload.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Register(name string, p Provider) {
	r.providers[strings.ToLower(name)] = p
}

func (r *Registry) Resolve(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("storage provider not configured: %q (available: %s)",
			name, strings.Join(r.names(), ", "))
	}
	return p, nil
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
