package depgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/efebarandurmaz/kiln/internal/backend"
	"github.com/efebarandurmaz/kiln/internal/backend/js"
	"github.com/efebarandurmaz/kiln/internal/project"
	"github.com/efebarandurmaz/kiln/internal/target"
	"github.com/efebarandurmaz/kiln/internal/workspace"
)

var widgetTree = map[string]string{
	"/src/com/example/Widget.kn":    "package com.example\nimport com.example.base.Base\nclass Widget extends Base implements IDrawable\nend\n",
	"/src/com/example/base/Base.kn": "package com.example.base\nclass Base\nend\n",
	"/src/com/example/IDrawable.kn": "package com.example\ninterface IDrawable\nend\n",
}

func analyze(t *testing.T, files map[string]string, root string) *Graph {
	t.Helper()
	fs := afero.NewMemMapFs()
	for p, c := range files {
		if err := afero.WriteFile(fs, p, []byte(c), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	ws := workspace.New(workspace.WithFs(fs))
	p := project.New("test", ws, backend.ProjectOptions(js.New())...)
	p.SetSourcePath("/src")
	p.SetLibraries("/lib")

	units := p.Units(root)
	if len(units) == 0 {
		t.Fatalf("%s is not in the project", root)
	}
	ctx := context.Background()
	plan, _, err := target.New(p, nil).Build(ctx, units[0])
	if err != nil {
		t.Fatal(err)
	}
	g, err := Analyze(ctx, p, plan)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func countEdgesByKind(g *Graph, kind EdgeKind) int {
	n := 0
	for _, e := range g.Edges {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func hasEdge(g *Graph, from, to string, kind EdgeKind) bool {
	for _, e := range g.Edges {
		if e.From == from && e.To == to && e.Kind == kind {
			return true
		}
	}
	return false
}

func findNode(g *Graph, id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// Analyzer Tests

func TestAnalyze_EmptyPlan(t *testing.T) {
	g, err := Analyze(context.Background(), nil, &target.Plan{})
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Nodes) != 0 || len(g.Edges) != 0 {
		t.Errorf("expected empty graph, got %d nodes %d edges", len(g.Nodes), len(g.Edges))
	}
	if g.Stats.ConnectedComponents != 0 {
		t.Errorf("expected 0 components, got %d", g.Stats.ConnectedComponents)
	}
}

func TestAnalyze_WidgetTree(t *testing.T) {
	g := analyze(t, widgetTree, "/src/com/example/Widget.kn")

	if g.Root != "unit:com.example.Widget" {
		t.Errorf("root = %s", g.Root)
	}
	if g.Stats.PackageCount != 2 || g.Stats.UnitCount != 3 || g.Stats.EmittedCount != 3 {
		t.Errorf("stats = %+v", g.Stats)
	}
	if g.Stats.TotalEdges != 6 {
		t.Errorf("expected 6 edges, got %d: %+v", g.Stats.TotalEdges, g.Edges)
	}
	if n := countEdgesByKind(g, EdgeContains); n != 3 {
		t.Errorf("expected 3 contains edges, got %d", n)
	}
	if !hasEdge(g, "unit:com.example.Widget", "unit:com.example.base.Base", EdgeImports) {
		t.Error("missing Widget -> Base import")
	}
	if !hasEdge(g, "unit:com.example.Widget", "unit:com.example.IDrawable", EdgeImports) {
		t.Error("missing Widget -> IDrawable import")
	}
	if !hasEdge(g, "pkg:com.example", "pkg:com.example.base", EdgeDependsOn) {
		t.Error("missing package dependency")
	}
	if g.Stats.MaxFanOut != 2 || g.Stats.HotspotNode != "unit:com.example.Widget" {
		t.Errorf("fan-out = %d (%s)", g.Stats.MaxFanOut, g.Stats.HotspotNode)
	}
	if g.Stats.MaxFanIn != 1 {
		t.Errorf("fan-in = %d", g.Stats.MaxFanIn)
	}
	if g.Stats.ConnectedComponents != 1 {
		t.Errorf("components = %d", g.Stats.ConnectedComponents)
	}
	if len(g.Stats.Cycles) != 0 {
		t.Errorf("unexpected cycles %v", g.Stats.Cycles)
	}
	if g.Stats.PackageFanOut["com.example"] != 1 {
		t.Errorf("package fan-out = %v", g.Stats.PackageFanOut)
	}
}

func TestAnalyze_NodesFollowLinkOrder(t *testing.T) {
	g := analyze(t, widgetTree, "/src/com/example/Widget.kn")
	var units []string
	for _, n := range g.Nodes {
		if n.Kind != NodePackage {
			units = append(units, n.Name)
		}
	}
	if fmt.Sprint(units) != "[Base IDrawable Widget]" {
		t.Errorf("units = %v", units)
	}
}

func TestAnalyze_Cycle(t *testing.T) {
	g := analyze(t, map[string]string{
		"/src/p/A.kn": "package p\nimport p.B\nclass A\nend\n",
		"/src/p/B.kn": "package p\nimport p.A\nclass B\nend\n",
	}, "/src/p/A.kn")

	if len(g.Stats.Cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %v", g.Stats.Cycles)
	}
	if got := strings.Join(g.Stats.Cycles[0], " -> "); got != "unit:p.B -> unit:p.A" {
		t.Errorf("cycle = %s", got)
	}
	if n := countEdgesByKind(g, EdgeDependsOn); n != 0 {
		t.Errorf("same-package imports should not add package edges, got %d", n)
	}
}

func TestAnalyze_LibraryUnits(t *testing.T) {
	g := analyze(t, map[string]string{
		"/src/app/Main.kn": "package app\nimport lib.Util\nclass Main extends Util\nend\n",
		"/lib/lib/Util.kn": "package lib\nclass Util\nend\n",
	}, "/src/app/Main.kn")

	n := findNode(g, "unit:lib.Util")
	if n == nil {
		t.Fatal("library node missing")
	}
	if n.Kind != NodeLibrary || n.Emitted {
		t.Errorf("library node = %+v", n)
	}
	if g.Stats.LibraryCount != 1 || g.Stats.EmittedCount != 1 {
		t.Errorf("stats = %+v", g.Stats)
	}
	if m := findNode(g, "unit:app.Main"); m == nil || m.Path != "/src/app/Main.kn" {
		t.Errorf("main node = %+v", m)
	}
}

func TestAnalyze_Disconnected(t *testing.T) {
	g := &Graph{Nodes: []Node{
		{ID: "pkg:a", Kind: NodePackage, Package: "a"},
		{ID: "unit:a.X", Kind: NodeSource, Package: "a"},
		{ID: "unit:a.Y", Kind: NodeSource, Package: "a"},
	}}
	g.ComputeStats()
	if g.Stats.ConnectedComponents != 2 {
		t.Errorf("components = %d, want 2", g.Stats.ConnectedComponents)
	}
}

func TestPackageOf(t *testing.T) {
	g := analyze(t, widgetTree, "/src/com/example/Widget.kn")
	want := map[string]string{
		"unit:com.example.Widget":    "com.example",
		"unit:com.example.base.Base": "com.example.base",
	}
	for id, pkg := range want {
		if n := findNode(g, id); n == nil || n.Package != pkg {
			t.Errorf("%s package = %+v, want %s", id, n, pkg)
		}
	}
}

// Export Tests

func TestExportDOT(t *testing.T) {
	g := analyze(t, widgetTree, "/src/com/example/Widget.kn")
	dot := ExportDOT(g)

	for _, frag := range []string{
		"digraph units {",
		"subgraph cluster_com_example_base {",
		"label=\"com.example\";",
		"\"unit:com.example.Widget\" [label=\"Widget\" shape=box",
		"\"unit:com.example.Widget\" -> \"unit:com.example.base.Base\" [style=solid color=\"#3fb950\"];",
		"\"pkg:com.example\" -> \"pkg:com.example.base\" [style=bold",
	} {
		if !strings.Contains(dot, frag) {
			t.Errorf("DOT missing %q:\n%s", frag, dot)
		}
	}
	if strings.Contains(dot, "contains") || strings.Contains(dot, "#8b949e") {
		t.Error("contains edges should be implied by clusters")
	}
	if dot != ExportDOT(g) {
		t.Error("DOT output is not deterministic")
	}
}

func TestExportMermaid(t *testing.T) {
	g := analyze(t, widgetTree, "/src/com/example/Widget.kn")
	m := ExportMermaid(g)

	if !strings.HasPrefix(m, "graph LR\n") {
		t.Errorf("unexpected header:\n%s", m)
	}
	for _, frag := range []string{
		"  subgraph pkg_com_example_base[\"com.example.base\"]\n",
		"    unit_com_example_Widget[\"Widget\"]\n",
		"  unit_com_example_Widget --> unit_com_example_IDrawable\n",
	} {
		if !strings.Contains(m, frag) {
			t.Errorf("Mermaid missing %q:\n%s", frag, m)
		}
	}
	if strings.Count(m, "-->") != 2 {
		t.Errorf("expected only import edges:\n%s", m)
	}
}

func TestExportMermaid_Shapes(t *testing.T) {
	cases := []struct {
		node Node
		want string
	}{
		{Node{Name: "U", Kind: NodeLibrary}, `[["U"]]`},
		{Node{Name: "M", Kind: NodeMarkup}, `(["M"])`},
		{Node{Name: "r.png", Kind: NodeResource}, `{"r.png"}`},
		{Node{Name: "S", Kind: NodeSource}, `["S"]`},
	}
	for _, c := range cases {
		if got := mermaidNodeShape(c.node); got != c.want {
			t.Errorf("%s: got %s, want %s", c.node.Kind, got, c.want)
		}
	}
}

func TestExportJSON(t *testing.T) {
	g := analyze(t, widgetTree, "/src/com/example/Widget.kn")
	data, err := ExportJSON(g)
	if err != nil {
		t.Fatal(err)
	}
	var back Graph
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Root != g.Root || len(back.Nodes) != len(g.Nodes) || back.Stats.TotalEdges != 6 {
		t.Errorf("round trip lost data: %+v", back.Stats)
	}
	if !strings.Contains(string(data), `"kind": "imports"`) {
		t.Errorf("JSON missing edge kinds:\n%s", data)
	}
}

func TestFormatStats(t *testing.T) {
	g := analyze(t, map[string]string{
		"/src/p/A.kn": "package p\nimport p.B\nclass A\nend\n",
		"/src/p/B.kn": "package p\nimport p.A\nclass B\nend\n",
	}, "/src/p/A.kn")
	out := FormatStats(g)
	for _, frag := range []string{
		"Root:        unit:p.A",
		"  Units:     2 (2 emitted)",
		"Import Cycles: 1",
		"  1: unit:p.B -> unit:p.A",
	} {
		if !strings.Contains(out, frag) {
			t.Errorf("stats missing %q:\n%s", frag, out)
		}
	}
}

func TestSanitizeID(t *testing.T) {
	if got := sanitizeID("unit:com.example/Widget-1"); got != "unit_com_example_Widget_1" {
		t.Errorf("got %s", got)
	}
}
