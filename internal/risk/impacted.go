package risk

import (
	"sort"

	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/models"
)

// traversalKinds are the relations that propagate impact back to callers:
// something that calls, imports, or inherits from a changed entity is
// affected by the change.
var traversalKinds = map[models.RelationKind]bool{
	models.RelationCalls:    true,
	models.RelationImports:  true,
	models.RelationInherits: true,
}

// impactedSet walks incoming edges from the seed up to maxDepth hops and
// returns every entity that depends on it, keyed by entity id. Distances
// are shortest-path; kinds collect the relation kinds of the edges that
// first reached each entity.
func impactedSet(g *graph.Graph, seedID string, maxDepth int) map[string]*impact {
	impacted := make(map[string]*impact)
	visited := map[string]bool{seedID: true}
	frontier := []string{seedID}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, edge := range g.Incoming(id) {
				if !traversalKinds[edge.Kind] {
					continue
				}
				src := edge.SourceID
				if src == seedID {
					continue
				}
				if existing, ok := impacted[src]; ok {
					if existing.distance == depth {
						existing.kinds[edge.Kind] = true
					}
					continue
				}
				impacted[src] = &impact{
					id:       src,
					distance: depth,
					kinds:    map[models.RelationKind]bool{edge.Kind: true},
				}
				if !visited[src] {
					visited[src] = true
					next = append(next, src)
				}
			}
		}
		sort.Strings(next)
		frontier = next
	}
	return impacted
}
