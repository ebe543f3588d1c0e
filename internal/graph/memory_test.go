package graph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/efebarandurmaz/kiln/internal/depgraph"
)

func chain() *depgraph.Graph {
	g := &depgraph.Graph{
		Root: "unit:app.Main",
		Nodes: []depgraph.Node{
			{ID: "unit:lib.Base", Kind: depgraph.NodeSource},
			{ID: "unit:lib.Util", Kind: depgraph.NodeSource},
			{ID: "unit:app.View", Kind: depgraph.NodeSource},
			{ID: "unit:app.Main", Kind: depgraph.NodeSource},
			{ID: "unit:app.Other", Kind: depgraph.NodeSource},
		},
		Edges: []depgraph.Edge{
			{From: "unit:lib.Util", To: "unit:lib.Base", Kind: depgraph.EdgeImports},
			{From: "unit:app.View", To: "unit:lib.Util", Kind: depgraph.EdgeImports},
			{From: "unit:app.Main", To: "unit:app.View", Kind: depgraph.EdgeImports},
			{From: "unit:app.Main", To: "unit:lib.Base", Kind: depgraph.EdgeImports},
			{From: "pkg:lib", To: "unit:lib.Base", Kind: depgraph.EdgeContains},
		},
	}
	g.ComputeStats()
	return g
}

func TestDependents(t *testing.T) {
	g := chain()
	tests := []struct {
		unit string
		want string
	}{
		{"unit:lib.Base", "[unit:app.Main unit:app.View unit:lib.Util]"},
		{"unit:app.View", "[unit:app.Main]"},
		{"unit:app.Main", "[]"},
		{"unit:missing", "[]"},
	}
	for _, tt := range tests {
		if got := fmt.Sprint(Dependents(g, tt.unit)); got != tt.want {
			t.Errorf("Dependents(%s) = %s, want %s", tt.unit, got, tt.want)
		}
	}
}

func TestDependents_Cycle(t *testing.T) {
	g := &depgraph.Graph{Edges: []depgraph.Edge{
		{From: "a", To: "b", Kind: depgraph.EdgeImports},
		{From: "b", To: "a", Kind: depgraph.EdgeImports},
	}}
	if got := fmt.Sprint(Dependents(g, "a")); got != "[b]" {
		t.Errorf("got %s", got)
	}
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	defer repo.Close(ctx)

	if _, err := repo.LoadGraph(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	g := chain()
	if err := repo.StoreGraph(ctx, "p1", g); err != nil {
		t.Fatal(err)
	}
	g.Nodes = nil // stored copy must not alias the caller's slices

	got, err := repo.LoadGraph(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Nodes) != 5 || got.Root != "unit:app.Main" {
		t.Errorf("loaded graph = %+v", got)
	}

	deps, err := repo.QueryDependents(ctx, "p1", "unit:app.View")
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(deps) != "[unit:app.Main]" {
		t.Errorf("dependents = %v", deps)
	}
	if _, err := repo.QueryDependents(ctx, "p2", "unit:app.View"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown project, got %v", err)
	}
}

func TestMemoryRepository_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewMemory().StoreGraph(ctx, "p", chain()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
