// Package inmemory is the default pheromone store backend: a mutex-guarded
// map with no persistence beyond process lifetime.
package inmemory

import (
	"context"
	"sync"

	"github.com/stigmergic-labs/sbp/pkg/pheromone"
	"github.com/stigmergic-labs/sbp/pkg/store"
)

// Driver implements store.Store using an in-memory map.
type Driver struct {
	mu         sync.RWMutex
	pheromones map[string]pheromone.Pheromone
}

// NewDriver creates a new in-memory pheromone store.
func NewDriver() *Driver {
	return &Driver{
		pheromones: make(map[string]pheromone.Pheromone),
	}
}

func (d *Driver) Get(_ context.Context, id string) (pheromone.Pheromone, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.pheromones[id]
	if !ok {
		return pheromone.Pheromone{}, store.NotFoundError{ID: id}
	}
	return p, nil
}

func (d *Driver) Set(_ context.Context, id string, p pheromone.Pheromone) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pheromones[id] = p
	return nil
}

func (d *Driver) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.pheromones, id)
	return nil
}

func (d *Driver) Has(_ context.Context, id string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.pheromones[id]
	return ok, nil
}

func (d *Driver) Values(_ context.Context) ([]pheromone.Pheromone, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	values := make([]pheromone.Pheromone, 0, len(d.pheromones))
	for _, p := range d.pheromones {
		values = append(values, p)
	}
	return values, nil
}

func (d *Driver) Entries(_ context.Context) (map[string]pheromone.Pheromone, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entries := make(map[string]pheromone.Pheromone, len(d.pheromones))
	for id, p := range d.pheromones {
		entries[id] = p
	}
	return entries, nil
}

func (d *Driver) Size(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.pheromones), nil
}

func (d *Driver) Clear(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pheromones = make(map[string]pheromone.Pheromone)
	return nil
}
