package graph

import (
	"fmt"
	"sort"

	"github.com/codeatlas-ai/codeatlas/internal/models"
)

// Graph is an immutable, indexed view over one repository's graph document.
// Readers share a Graph without locking; ingestion builds a new Graph and
// swaps the pointer, never mutating a committed one.
type Graph struct {
	doc      *models.GraphDocument
	entities map[string]*models.Entity
	outgoing map[string][]models.Edge
	incoming map[string][]models.Edge
	byName   map[string][]string // name -> sorted entity ids
}

// New indexes a graph document. The document must not be mutated afterwards.
func New(doc *models.GraphDocument) *Graph {
	g := &Graph{
		doc:      doc,
		entities: make(map[string]*models.Entity, len(doc.Entities)),
		outgoing: make(map[string][]models.Edge),
		incoming: make(map[string][]models.Edge),
		byName:   make(map[string][]string),
	}
	for i := range doc.Entities {
		e := &doc.Entities[i]
		g.entities[e.ID] = e
		g.byName[e.Name] = append(g.byName[e.Name], e.ID)
		if e.Qualified != e.Name {
			g.byName[e.Qualified] = append(g.byName[e.Qualified], e.ID)
		}
	}
	for name := range g.byName {
		sort.Strings(g.byName[name])
	}
	for _, edge := range doc.Edges {
		g.outgoing[edge.SourceID] = append(g.outgoing[edge.SourceID], edge)
		g.incoming[edge.TargetID] = append(g.incoming[edge.TargetID], edge)
	}
	return g
}

// Document returns the underlying persisted form.
func (g *Graph) Document() *models.GraphDocument { return g.doc }

// Entity looks up an entity by its identifier.
func (g *Graph) Entity(id string) (*models.Entity, bool) {
	e, ok := g.entities[id]
	return e, ok
}

// Resolve accepts an entity id, a qualified name, or a bare name and
// returns the matching entity. Name matches resolve in lexical id order and
// the first match wins, so lookups are deterministic.
func (g *Graph) Resolve(nameOrID string) (*models.Entity, error) {
	if e, ok := g.entities[nameOrID]; ok {
		return e, nil
	}
	if ids := g.byName[nameOrID]; len(ids) > 0 {
		return g.entities[ids[0]], nil
	}
	return nil, fmt.Errorf("entity not found: %s", nameOrID)
}

// Outgoing returns the edges leaving an entity.
func (g *Graph) Outgoing(id string) []models.Edge { return g.outgoing[id] }

// Incoming returns the edges arriving at an entity.
func (g *Graph) Incoming(id string) []models.Edge { return g.incoming[id] }

// FanIn is the number of incoming edges across all relation kinds.
func (g *Graph) FanIn(id string) int { return len(g.incoming[id]) }

// Subgraph is the induced subgraph returned by a graph query.
type Subgraph struct {
	Root     string          `json:"root"`
	Entities []models.Entity `json:"entities"`
	Edges    []models.Edge   `json:"edges"`
}

// Query returns the induced subgraph reachable from start under the given
// relation kinds up to maxDepth hops. Traversal is breadth-first with ties
// broken by entity identifier lexical order, so results are deterministic.
// The start entity itself is not part of the result set.
func (g *Graph) Query(startID string, kinds []models.RelationKind, maxDepth int) (*Subgraph, error) {
	if _, ok := g.entities[startID]; !ok {
		return nil, fmt.Errorf("entity not found: %s", startID)
	}
	allowed := make(map[models.RelationKind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}

	visited := map[string]bool{startID: true}
	frontier := []string{startID}
	sub := &Subgraph{Root: startID}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, edge := range g.outgoing[id] {
				if len(allowed) > 0 && !allowed[edge.Kind] {
					continue
				}
				sub.Edges = append(sub.Edges, edge)
				if visited[edge.TargetID] {
					continue
				}
				visited[edge.TargetID] = true
				next = append(next, edge.TargetID)
			}
		}
		sort.Strings(next)
		for _, id := range next {
			if e, ok := g.entities[id]; ok {
				sub.Entities = append(sub.Entities, *e)
			}
		}
		frontier = next
	}

	sort.Slice(sub.Edges, func(i, j int) bool { return lessEdge(sub.Edges[i], sub.Edges[j]) })
	return sub, nil
}

func lessEdge(a, b models.Edge) bool {
	if a.SourceID != b.SourceID {
		return a.SourceID < b.SourceID
	}
	if a.TargetID != b.TargetID {
		return a.TargetID < b.TargetID
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return a.Line < b.Line
}
