package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeatlas-ai/codeatlas/internal/models"
)

// subgraphEntity is the wire shape of one entity in a query_graph result.
type subgraphEntity struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	FilePath  string `json:"file_path,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
	Signature string `json:"signature,omitempty"`
}

type subgraphEdge struct {
	Kind   string `json:"kind"`
	Source string `json:"source"`
	Target string `json:"target"`
	Line   int    `json:"line,omitempty"`
}

type subgraphResult struct {
	Root     string           `json:"root"`
	Entities []subgraphEntity `json:"entities"`
	Edges    []subgraphEdge   `json:"edges"`
}

func (r *Registry) queryGraph(_ context.Context, handle models.RepositoryHandle, args map[string]any) (string, error) {
	entity := argString(args, "entity", "")
	maxDepth := argInt(args, "max_depth", 2)
	if maxDepth < 1 {
		maxDepth = 1
	}

	kinds, err := parseRelationKinds(argStrings(args, "relation_kinds"))
	if err != nil {
		return "", err
	}

	g, err := r.graphs.Graph(handle)
	if err != nil {
		return "", fmt.Errorf("load graph for %s: %w", handle.Name, err)
	}

	root, err := g.Resolve(entity)
	if err != nil {
		return "", fmt.Errorf("entity %q: %w", entity, ErrNotFound)
	}

	sub, err := g.Query(root.ID, kinds, maxDepth)
	if err != nil {
		return "", err
	}
	out := subgraphResult{Root: sub.Root}
	for _, e := range sub.Entities {
		out.Entities = append(out.Entities, subgraphEntity{
			ID:        e.ID,
			Name:      e.Name,
			Kind:      string(e.Kind),
			FilePath:  e.FilePath,
			StartLine: e.StartLine,
			EndLine:   e.EndLine,
			Signature: e.Signature,
		})
	}
	for _, e := range sub.Edges {
		out.Edges = append(out.Edges, subgraphEdge{
			Kind:   string(e.Kind),
			Source: e.SourceID,
			Target: e.TargetID,
			Line:   e.Line,
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parseRelationKinds(names []string) ([]models.RelationKind, error) {
	if len(names) == 0 {
		return models.AllRelationKinds(), nil
	}
	kinds := make([]models.RelationKind, 0, len(names))
	for _, name := range names {
		kind := models.RelationKind(name)
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown relation kind %q: %w", name, ErrNotFound)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
