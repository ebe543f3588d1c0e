package neo4j

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/efebarandurmaz/kiln/internal/depgraph"
	"github.com/efebarandurmaz/kiln/internal/graph"
)

// Neo4jRepository implements graph.Repository using Neo4j. Every node
// carries the project ID so that several projects share one database.
type Neo4jRepository struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4j creates a Neo4j-backed repository.
func NewNeo4j(ctx context.Context, uri, username, password, database string) (*Neo4jRepository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Neo4jRepository{driver: driver, database: database}, nil
}

func (r *Neo4jRepository) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: r.database})
}

// relType maps an edge kind to a relationship type, e.g. depends_on to
// DEPENDS_ON.
func relType(k depgraph.EdgeKind) string {
	return strings.ToUpper(string(k))
}

func (r *Neo4jRepository) StoreGraph(ctx context.Context, projectID string, g *depgraph.Graph) error {
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx,
			"MATCH (n:KilnNode {project: $project}) DETACH DELETE n",
			map[string]any{"project": projectID}); err != nil {
			return nil, err
		}
		if _, err := tx.Run(ctx,
			"MERGE (p:KilnProject {id: $project}) SET p.root = $root",
			map[string]any{"project": projectID, "root": g.Root}); err != nil {
			return nil, err
		}
		for _, n := range g.Nodes {
			_, err := tx.Run(ctx,
				"CREATE (n:KilnNode {project: $project, id: $id}) "+
					"SET n.name = $name, n.kind = $kind, n.package = $package, n.path = $path, n.emitted = $emitted",
				map[string]any{
					"project": projectID,
					"id":      n.ID,
					"name":    n.Name,
					"kind":    string(n.Kind),
					"package": n.Package,
					"path":    n.Path,
					"emitted": n.Emitted,
				})
			if err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("store nodes of %s: %w", projectID, err)
	}

	// Relationship types cannot be parameters, so edges are grouped by kind.
	byKind := make(map[depgraph.EdgeKind][]map[string]any)
	for _, e := range g.Edges {
		byKind[e.Kind] = append(byKind[e.Kind], map[string]any{"from": e.From, "to": e.To})
	}
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	for _, k := range kinds {
		kind := depgraph.EdgeKind(k)
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx,
				"UNWIND $edges AS e "+
					"MATCH (a:KilnNode {project: $project, id: e.from}) "+
					"MATCH (b:KilnNode {project: $project, id: e.to}) "+
					"MERGE (a)-[:"+relType(kind)+"]->(b)",
				map[string]any{"project": projectID, "edges": byKind[kind]})
			return nil, err
		})
		if err != nil {
			return fmt.Errorf("store %s edges: %w", kind, err)
		}
	}
	return nil
}

func (r *Neo4jRepository) LoadGraph(ctx context.Context, projectID string) (*depgraph.Graph, error) {
	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		g := &depgraph.Graph{}
		records, err := tx.Run(ctx,
			"MATCH (p:KilnProject {id: $project}) RETURN p.root AS root",
			map[string]any{"project": projectID})
		if err != nil {
			return nil, err
		}
		if !records.Next(ctx) {
			return nil, fmt.Errorf("%w: %s", graph.ErrNotFound, projectID)
		}
		g.Root = stringValue(records.Record(), "root")

		records, err = tx.Run(ctx,
			"MATCH (n:KilnNode {project: $project}) "+
				"RETURN n.id AS id, n.name AS name, n.kind AS kind, n.package AS package, n.path AS path, n.emitted AS emitted "+
				"ORDER BY id",
			map[string]any{"project": projectID})
		if err != nil {
			return nil, err
		}
		for records.Next(ctx) {
			rec := records.Record()
			emitted, _ := rec.Get("emitted")
			b, _ := emitted.(bool)
			g.Nodes = append(g.Nodes, depgraph.Node{
				ID:      stringValue(rec, "id"),
				Name:    stringValue(rec, "name"),
				Kind:    depgraph.NodeKind(stringValue(rec, "kind")),
				Package: stringValue(rec, "package"),
				Path:    stringValue(rec, "path"),
				Emitted: b,
			})
		}

		records, err = tx.Run(ctx,
			"MATCH (a:KilnNode {project: $project})-[r]->(b:KilnNode {project: $project}) "+
				"RETURN a.id AS from, b.id AS to, toLower(type(r)) AS kind ORDER BY kind, from, to",
			map[string]any{"project": projectID})
		if err != nil {
			return nil, err
		}
		for records.Next(ctx) {
			rec := records.Record()
			g.Edges = append(g.Edges, depgraph.Edge{
				From: stringValue(rec, "from"),
				To:   stringValue(rec, "to"),
				Kind: depgraph.EdgeKind(stringValue(rec, "kind")),
			})
		}
		return g, records.Err()
	})
	if err != nil {
		return nil, err
	}
	g := result.(*depgraph.Graph)
	g.ComputeStats()
	return g, nil
}

func (r *Neo4jRepository) QueryDependents(ctx context.Context, projectID, unitID string) ([]string, error) {
	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx,
			"MATCH (dep:KilnNode {project: $project})-[:IMPORTS*1..]->(:KilnNode {project: $project, id: $id}) "+
				"WHERE dep.id <> $id "+
				"RETURN DISTINCT dep.id AS id ORDER BY id",
			map[string]any{"project": projectID, "id": unitID})
		if err != nil {
			return nil, err
		}
		var ids []string
		for records.Next(ctx) {
			ids = append(ids, stringValue(records.Record(), "id"))
		}
		return ids, records.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (r *Neo4jRepository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

type getter interface {
	Get(key string) (any, bool)
}

func stringValue(rec getter, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return s
}

var _ graph.Repository = (*Neo4jRepository)(nil)
