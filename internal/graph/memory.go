package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/efebarandurmaz/kiln/internal/depgraph"
)

// MemoryRepository keeps graphs in process. It backs `kiln graph` when no
// graph database is configured.
type MemoryRepository struct {
	mu     sync.RWMutex
	graphs map[string]*depgraph.Graph
}

func NewMemory() *MemoryRepository {
	return &MemoryRepository{graphs: make(map[string]*depgraph.Graph)}
}

func (r *MemoryRepository) StoreGraph(ctx context.Context, projectID string, g *depgraph.Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := *g
	cp.Nodes = append([]depgraph.Node(nil), g.Nodes...)
	cp.Edges = append([]depgraph.Edge(nil), g.Edges...)
	r.mu.Lock()
	r.graphs[projectID] = &cp
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) LoadGraph(ctx context.Context, projectID string) (*depgraph.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	g, ok := r.graphs[projectID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	return g, nil
}

func (r *MemoryRepository) QueryDependents(ctx context.Context, projectID, unitID string) ([]string, error) {
	g, err := r.LoadGraph(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return Dependents(g, unitID), nil
}

func (r *MemoryRepository) Close(context.Context) error { return nil }

// Dependents walks import edges backwards from unitID and returns every
// unit that reaches it, sorted.
func Dependents(g *depgraph.Graph, unitID string) []string {
	importers := make(map[string][]string)
	for _, e := range g.Edges {
		if e.Kind == depgraph.EdgeImports {
			importers[e.To] = append(importers[e.To], e.From)
		}
	}
	seen := map[string]bool{unitID: true}
	queue := []string{unitID}
	var out []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, from := range importers[id] {
			if seen[from] {
				continue
			}
			seen[from] = true
			out = append(out, from)
			queue = append(queue, from)
		}
	}
	sort.Strings(out)
	return out
}

var _ Repository = (*MemoryRepository)(nil)
