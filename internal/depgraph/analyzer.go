// Package depgraph turns a build plan into a graph of units and packages
// that can be measured and exported.
package depgraph

import (
	"context"
	"sort"
	"strings"

	"github.com/efebarandurmaz/kiln/internal/project"
	"github.com/efebarandurmaz/kiln/internal/target"
	"github.com/efebarandurmaz/kiln/internal/workspace"
)

// DefaultPackage labels units declared outside any package.
const DefaultPackage = "(default)"

// Analyze builds the graph of every unit reachable in plan. Dependency sets
// come from the project, so units already resolved by the build are not
// parsed again.
func Analyze(ctx context.Context, p *project.Project, plan *target.Plan) (*Graph, error) {
	g := &Graph{}
	if plan.Root != nil {
		g.Root = UnitID(plan.Root)
	}

	emitted := make(map[*workspace.Unit]bool, len(plan.Emit))
	for _, u := range plan.Emit {
		emitted[u] = true
	}
	nodeMap := make(map[string]bool)

	// 1. Package and unit nodes, in link order
	for _, u := range plan.Reachable {
		pkg := PackageOf(u)
		pkgID := "pkg:" + pkg
		if !nodeMap[pkgID] {
			g.Nodes = append(g.Nodes, Node{ID: pkgID, Name: pkg, Kind: NodePackage, Package: pkg})
			nodeMap[pkgID] = true
		}
		id := UnitID(u)
		if nodeMap[id] {
			continue
		}
		g.Nodes = append(g.Nodes, Node{
			ID:      id,
			Name:    displayName(u),
			Kind:    unitKind(u),
			Package: pkg,
			Path:    u.Path(),
			Emitted: emitted[u],
		})
		nodeMap[id] = true
		g.Edges = append(g.Edges, Edge{From: pkgID, To: id, Kind: EdgeContains})
	}

	// 2. Import edges
	for _, u := range plan.Reachable {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		deps, _, err := p.Dependencies(ctx, u)
		if err != nil {
			return nil, err
		}
		for _, d := range deps {
			if !nodeMap[UnitID(d)] {
				continue
			}
			g.Edges = append(g.Edges, Edge{From: UnitID(u), To: UnitID(d), Kind: EdgeImports})
		}
	}

	// 3. Package-level dependencies
	g.addPackageDependencies()

	// 4. Stats
	g.ComputeStats()

	return g, nil
}

// UnitID is the node ID of u.
func UnitID(u *workspace.Unit) string {
	if u.Kind() == workspace.Resource || u.Name() == "" {
		return "res:" + u.Path()
	}
	return "unit:" + u.Name()
}

// PackageOf returns the package part of u's qualified name. Resources are
// grouped under their directory.
func PackageOf(u *workspace.Unit) string {
	if u.Kind() == workspace.Resource || u.Name() == "" {
		dir := u.Path()
		if i := strings.LastIndexByte(dir, '/'); i > 0 {
			return dir[:i]
		}
		return DefaultPackage
	}
	if i := strings.LastIndexByte(u.Name(), '.'); i > 0 {
		return u.Name()[:i]
	}
	return DefaultPackage
}

func displayName(u *workspace.Unit) string {
	if u.Kind() == workspace.Resource || u.Name() == "" {
		p := u.Path()
		return p[strings.LastIndexByte(p, '/')+1:]
	}
	n := u.Name()
	return n[strings.LastIndexByte(n, '.')+1:]
}

func unitKind(u *workspace.Unit) NodeKind {
	switch {
	case u.Kind() == workspace.Resource:
		return NodeResource
	case u.Library():
		return NodeLibrary
	case u.Kind() == workspace.DeclarativeMarkup:
		return NodeMarkup
	}
	return NodeSource
}

// addPackageDependencies derives package-to-package edges from imports
func (g *Graph) addPackageDependencies() {
	pkgOf := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		pkgOf[n.ID] = n.Package
	}
	deps := make(map[string]map[string]bool)
	for _, e := range g.Edges {
		if e.Kind != EdgeImports {
			continue
		}
		from, to := pkgOf[e.From], pkgOf[e.To]
		if from == to {
			continue
		}
		if deps[from] == nil {
			deps[from] = make(map[string]bool)
		}
		deps[from][to] = true
	}
	for _, from := range sortedKeys(deps) {
		for _, to := range sortedKeys(deps[from]) {
			g.Edges = append(g.Edges, Edge{From: "pkg:" + from, To: "pkg:" + to, Kind: EdgeDependsOn})
		}
	}
}

// ComputeStats recomputes Stats from Nodes and Edges.
func (g *Graph) ComputeStats() {
	g.Stats = GraphStats{
		TotalNodes:    len(g.Nodes),
		TotalEdges:    len(g.Edges),
		PackageFanOut: make(map[string]int),
	}

	for _, n := range g.Nodes {
		switch n.Kind {
		case NodePackage:
			g.Stats.PackageCount++
		case NodeLibrary:
			g.Stats.UnitCount++
			g.Stats.LibraryCount++
		case NodeResource:
			g.Stats.UnitCount++
			g.Stats.ResourceCount++
		default:
			g.Stats.UnitCount++
		}
		if n.Emitted {
			g.Stats.EmittedCount++
		}
	}

	fanOut := make(map[string]int)
	fanIn := make(map[string]int)
	for _, e := range g.Edges {
		switch e.Kind {
		case EdgeImports:
			fanOut[e.From]++
			fanIn[e.To]++
		case EdgeDependsOn:
			g.Stats.PackageFanOut[strings.TrimPrefix(e.From, "pkg:")]++
		}
	}

	// Ties go to the first node in link order.
	for _, n := range g.Nodes {
		if c := fanOut[n.ID]; c > g.Stats.MaxFanOut {
			g.Stats.MaxFanOut = c
			g.Stats.HotspotNode = n.ID
		}
		if c := fanIn[n.ID]; c > g.Stats.MaxFanIn {
			g.Stats.MaxFanIn = c
		}
	}

	g.Stats.ConnectedComponents = g.countComponents()
	g.Stats.Cycles = g.detectCycles()
}

// countComponents counts connected components of the import graph via
// union-find. Package nodes are not counted.
func (g *Graph) countComponents() int {
	parent := make(map[string]string)
	var find func(string) string
	find = func(x string) string {
		if parent[x] == "" {
			parent[x] = x
		}
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		fa, fb := find(a), find(b)
		if fa != fb {
			parent[fa] = fb
		}
	}

	for _, n := range g.Nodes {
		if n.Kind != NodePackage {
			find(n.ID)
		}
	}
	for _, e := range g.Edges {
		if e.Kind == EdgeImports {
			union(e.From, e.To)
		}
	}

	roots := make(map[string]bool)
	for _, n := range g.Nodes {
		if n.Kind != NodePackage {
			roots[find(n.ID)] = true
		}
	}
	return len(roots)
}

// detectCycles finds import cycles by DFS over unit nodes in link order
func (g *Graph) detectCycles() [][]string {
	adj := make(map[string][]string)
	for _, e := range g.Edges {
		if e.Kind == EdgeImports {
			adj[e.From] = append(adj[e.From], e.To)
		}
	}

	var cycles [][]string
	visited := make(map[string]int) // 0=unvisited, 1=in-progress, 2=done
	path := make([]string, 0)

	var dfs func(node string)
	dfs = func(node string) {
		if visited[node] == 2 {
			return
		}
		if visited[node] == 1 {
			cycle := make([]string, 0)
			for i := len(path) - 1; i >= 0; i-- {
				cycle = append(cycle, path[i])
				if path[i] == node {
					break
				}
			}
			for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
				cycle[i], cycle[j] = cycle[j], cycle[i]
			}
			cycles = append(cycles, cycle)
			return
		}
		visited[node] = 1
		path = append(path, node)
		for _, next := range adj[node] {
			dfs(next)
		}
		path = path[:len(path)-1]
		visited[node] = 2
	}

	for _, n := range g.Nodes {
		if n.Kind != NodePackage && visited[n.ID] == 0 {
			dfs(n.ID)
		}
	}
	return cycles
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
