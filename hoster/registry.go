package hoster

import (
	"fmt"
	"sort"
	"sync"

	"hostfetch/internal"
)

// Registry maps URLs to the modules that can handle them. Lookup order is
// registration order, so more specific modules should register first.
type Registry struct {
	mu      sync.RWMutex
	modules []Module
	byName  map[string]Module
}

// NewRegistry returns an empty module registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Module)}
}

// Register adds a module. Registering the same name twice is a programming
// error and panics, matching the behavior of database/sql driver registration.
func (r *Registry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := m.Name()
	if _, dup := r.byName[name]; dup {
		panic(fmt.Sprintf("hoster: module %q registered twice", name))
	}
	r.byName[name] = m
	r.modules = append(r.modules, m)
}

// Find returns the first module claiming the URL. A miss is a NO_MODULE
// error, never a silent fallback.
func (r *Registry) Find(rawURL string) (Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.modules {
		if m.CanHandle(rawURL) {
			return m, nil
		}
	}
	return nil, internal.NewHosterError(internal.ErrNoModule,
		fmt.Sprintf("no module handles %s", rawURL))
}

// Lookup returns a module by name.
func (r *Registry) Lookup(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byName[name]
	return m, ok
}

// Names returns the registered module names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
