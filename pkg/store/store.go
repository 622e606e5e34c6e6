// Package store defines the pheromone store contract. The blackboard core
// depends only on this interface, so alternate backends (e.g. one that
// caches asynchronously from a durable store) can stand in for the default
// in-memory implementation as long as reads are synchronous.
package store

import (
	"context"

	"github.com/stigmergic-labs/sbp/pkg/pheromone"
)

// NotFoundError is returned by Get when no pheromone exists for the given id.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return "pheromone not found: " + e.ID
}

// Store is the minimum contract the blackboard core needs from a pheromone
// container: identity-addressed get/set/delete/has plus full iteration.
type Store interface {
	Get(ctx context.Context, id string) (pheromone.Pheromone, error)
	Set(ctx context.Context, id string, p pheromone.Pheromone) error
	Delete(ctx context.Context, id string) error
	Has(ctx context.Context, id string) (bool, error)

	// Values returns every stored pheromone. Iteration order is unspecified.
	Values(ctx context.Context) ([]pheromone.Pheromone, error)

	// Entries returns every stored pheromone keyed by id.
	Entries(ctx context.Context) (map[string]pheromone.Pheromone, error)

	Size(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}
