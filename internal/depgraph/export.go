package depgraph

import (
	"encoding/json"
	"fmt"
	"strings"
)

// packages groups unit nodes by package in first-seen order.
func packages(g *Graph) ([]string, map[string][]Node) {
	var order []string
	groups := make(map[string][]Node)
	for _, n := range g.Nodes {
		if n.Kind == NodePackage {
			continue
		}
		if _, ok := groups[n.Package]; !ok {
			order = append(order, n.Package)
		}
		groups[n.Package] = append(groups[n.Package], n)
	}
	return order, groups
}

// ExportDOT generates a Graphviz DOT representation of the graph.
func ExportDOT(g *Graph) string {
	var b strings.Builder
	b.WriteString("digraph units {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\" fontsize=10];\n\n")

	order, groups := packages(g)
	for _, pkg := range order {
		b.WriteString(fmt.Sprintf("  subgraph cluster_%s {\n", sanitizeID(pkg)))
		b.WriteString(fmt.Sprintf("    label=\"%s\";\n", pkg))
		b.WriteString("    style=dashed;\n")
		b.WriteString("    color=\"#58a6ff\";\n")
		for _, n := range groups[pkg] {
			b.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\" shape=%s style=filled fillcolor=\"%s\"];\n",
				n.ID, n.Name, nodeShape(n), nodeColor(n.Kind)))
		}
		b.WriteString("  }\n\n")
	}

	for _, e := range g.Edges {
		if e.Kind == EdgeContains {
			continue
		}
		label := ""
		if e.Label != "" {
			label = fmt.Sprintf(" label=\"%s\"", e.Label)
		}
		b.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [style=%s color=\"%s\"%s];\n",
			e.From, e.To, edgeStyle(e.Kind), edgeColor(e.Kind), label))
	}

	b.WriteString("}\n")
	return b.String()
}

// ExportMermaid generates a Mermaid diagram of the import graph.
func ExportMermaid(g *Graph) string {
	var b strings.Builder
	b.WriteString("graph LR\n")

	order, groups := packages(g)
	for _, pkg := range order {
		b.WriteString(fmt.Sprintf("  subgraph %s[\"%s\"]\n", sanitizeID("pkg:"+pkg), pkg))
		for _, n := range groups[pkg] {
			b.WriteString(fmt.Sprintf("    %s%s\n", sanitizeID(n.ID), mermaidNodeShape(n)))
		}
		b.WriteString("  end\n")
	}

	for _, e := range g.Edges {
		if e.Kind != EdgeImports {
			continue
		}
		label := ""
		if e.Label != "" {
			label = "|" + e.Label + "|"
		}
		b.WriteString(fmt.Sprintf("  %s -->%s %s\n", sanitizeID(e.From), label, sanitizeID(e.To)))
	}

	return b.String()
}

// ExportJSON serializes the graph to JSON.
func ExportJSON(g *Graph) ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}

// FormatStats returns a human-readable summary of graph statistics.
func FormatStats(g *Graph) string {
	var b strings.Builder
	b.WriteString("Unit Graph Statistics\n")
	b.WriteString("=====================\n\n")
	b.WriteString(fmt.Sprintf("Root:        %s\n", g.Root))
	b.WriteString(fmt.Sprintf("Nodes:       %d total\n", g.Stats.TotalNodes))
	b.WriteString(fmt.Sprintf("  Packages:  %d\n", g.Stats.PackageCount))
	b.WriteString(fmt.Sprintf("  Units:     %d (%d emitted)\n", g.Stats.UnitCount, g.Stats.EmittedCount))
	b.WriteString(fmt.Sprintf("  Libraries: %d\n", g.Stats.LibraryCount))
	b.WriteString(fmt.Sprintf("  Resources: %d\n", g.Stats.ResourceCount))
	b.WriteString(fmt.Sprintf("Edges:       %d total\n", g.Stats.TotalEdges))
	b.WriteString(fmt.Sprintf("Max Fan-Out: %d (%s)\n", g.Stats.MaxFanOut, g.Stats.HotspotNode))
	b.WriteString(fmt.Sprintf("Max Fan-In:  %d\n", g.Stats.MaxFanIn))
	b.WriteString(fmt.Sprintf("Components:  %d\n", g.Stats.ConnectedComponents))

	if len(g.Stats.Cycles) > 0 {
		b.WriteString(fmt.Sprintf("\nImport Cycles: %d\n", len(g.Stats.Cycles)))
		for i, cycle := range g.Stats.Cycles {
			b.WriteString(fmt.Sprintf("  %d: %s\n", i+1, strings.Join(cycle, " -> ")))
		}
	}

	if len(g.Stats.PackageFanOut) > 0 {
		b.WriteString("\nPackage Dependencies:\n")
		for _, pkg := range sortedKeys(g.Stats.PackageFanOut) {
			b.WriteString(fmt.Sprintf("  %s: %d outgoing\n", pkg, g.Stats.PackageFanOut[pkg]))
		}
	}

	return b.String()
}

func sanitizeID(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, s)
}

func nodeShape(n Node) string {
	switch n.Kind {
	case NodeLibrary:
		return "box3d"
	case NodeMarkup:
		return "component"
	case NodeResource:
		return "note"
	}
	if !n.Emitted {
		return "plaintext"
	}
	return "box"
}

func nodeColor(kind NodeKind) string {
	switch kind {
	case NodeSource:
		return "#238636"
	case NodeMarkup:
		return "#1f6feb"
	case NodeLibrary:
		return "#8957e5"
	case NodeResource:
		return "#d29922"
	default:
		return "#30363d"
	}
}

func edgeStyle(kind EdgeKind) string {
	switch kind {
	case EdgeDependsOn:
		return "bold"
	case EdgeContains:
		return "dashed"
	default:
		return "solid"
	}
}

func edgeColor(kind EdgeKind) string {
	switch kind {
	case EdgeImports:
		return "#3fb950"
	case EdgeDependsOn:
		return "#f85149"
	default:
		return "#8b949e"
	}
}

func mermaidNodeShape(n Node) string {
	switch n.Kind {
	case NodeLibrary:
		return fmt.Sprintf("[[\"%s\"]]", n.Name)
	case NodeMarkup:
		return fmt.Sprintf("([\"%s\"])", n.Name)
	case NodeResource:
		return fmt.Sprintf("{\"%s\"}", n.Name)
	default:
		return fmt.Sprintf("[\"%s\"]", n.Name)
	}
}
