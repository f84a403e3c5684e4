package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Factory opens a connected Store.
type Factory func(ctx context.Context, opts Options) (Store, error)

// Backend describes a registered storage backend.
type Backend struct {
	// Name is the identifier used on the command line.
	Name string

	// Description is a human-readable summary.
	Description string

	// DefaultOrderCount is the order count of the reference profile.
	DefaultOrderCount int

	// Open creates a connected store.
	Open Factory
}

var (
	registry = make(map[string]Backend)
	mu       sync.RWMutex
)

// Register adds a backend to the registry.
func Register(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	registry[b.Name] = b
}

// Get retrieves a backend by name.
func Get(name string) (Backend, error) {
	mu.RLock()
	defer mu.RUnlock()

	b, ok := registry[name]
	if !ok {
		return Backend{}, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	return b, nil
}

// Open looks up a backend by name and opens it.
func Open(ctx context.Context, name string, opts Options) (Store, error) {
	b, err := Get(name)
	if err != nil {
		return nil, err
	}
	return b.Open(ctx, opts)
}

// List returns all registered backend names in sorted order.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
