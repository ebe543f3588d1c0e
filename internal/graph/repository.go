// Package graph persists unit graphs so that dependents of a unit can be
// queried across builds.
package graph

import (
	"context"
	"errors"

	"github.com/efebarandurmaz/kiln/internal/depgraph"
)

// ErrNotFound is returned when no graph is stored for a project.
var ErrNotFound = errors.New("graph not found")

// Repository provides graph storage for unit graphs.
type Repository interface {
	// StoreGraph replaces the stored graph of a project.
	StoreGraph(ctx context.Context, projectID string, g *depgraph.Graph) error
	// LoadGraph retrieves the full graph for a project.
	LoadGraph(ctx context.Context, projectID string) (*depgraph.Graph, error)
	// QueryDependents returns the IDs of units that import unitID,
	// directly or transitively, sorted.
	QueryDependents(ctx context.Context, projectID, unitID string) ([]string, error)
	// Close releases resources.
	Close(ctx context.Context) error
}
