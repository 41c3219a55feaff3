// Package export renders conversations and graph subgraphs into
// shareable artifacts: markdown reports and mermaid diagrams.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/models"
)

var edgeLabels = map[models.RelationKind]string{
	models.RelationImports:    "imports",
	models.RelationCalls:      "calls",
	models.RelationDefines:    "defines",
	models.RelationInherits:   "inherits",
	models.RelationReferences: "references",
}

// Mermaid renders a subgraph as a flowchart. Entities are grouped into
// per-file subgraph blocks; node shape encodes the entity kind (modules
// square, functions rounded, classes hexagonal).
func Mermaid(g *graph.Graph, sub *graph.Subgraph) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	byFile := map[string][]models.Entity{}
	var all []models.Entity
	if root, ok := g.Entity(sub.Root); ok {
		all = append(all, *root)
	}
	all = append(all, sub.Entities...)
	for _, e := range all {
		file := e.FilePath
		if file == "" {
			file = "external"
		}
		byFile[file] = append(byFile[file], e)
	}

	files := make([]string, 0, len(byFile))
	for file := range byFile {
		files = append(files, file)
	}
	sort.Strings(files)

	for i, file := range files {
		fmt.Fprintf(&b, "    subgraph F%d[\"%s\"]\n", i, escapeLabel(file))
		for _, e := range byFile[file] {
			fmt.Fprintf(&b, "        %s\n", mermaidNode(e))
		}
		b.WriteString("    end\n")
	}

	for _, edge := range sub.Edges {
		label := edgeLabels[edge.Kind]
		fmt.Fprintf(&b, "    %s -->|%s| %s\n", nodeID(edge.SourceID), label, nodeID(edge.TargetID))
	}
	return b.String()
}

func mermaidNode(e models.Entity) string {
	id := nodeID(e.ID)
	label := escapeLabel(e.Name)
	switch e.Kind {
	case models.EntityClass:
		return fmt.Sprintf("%s{{\"%s\"}}", id, label)
	case models.EntityFunction:
		return fmt.Sprintf("%s(\"%s\")", id, label)
	default:
		return fmt.Sprintf("%s[\"%s\"]", id, label)
	}
}

// nodeID flattens an entity id into a mermaid-safe identifier.
func nodeID(id string) string {
	var b strings.Builder
	b.WriteString("n_")
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	return strings.ReplaceAll(s, "\n", " ")
}
