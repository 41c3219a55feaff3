package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/codeatlas-ai/codeatlas/internal/export"
	"github.com/codeatlas-ai/codeatlas/internal/models"
	"github.com/spf13/cobra"
)

var (
	queryKinds   []string
	queryDepth   int
	queryMermaid bool
)

var queryCmd = &cobra.Command{
	Use:   "query <path> <entity>",
	Short: "Query a repository's knowledge graph directly",
	Long: `Print the subgraph reachable from <entity> in the repository at <path>.
<entity> may be a bare name, a qualified name, or a full entity id.`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringSliceVar(&queryKinds, "kinds", nil, "relation kinds to traverse (default all)")
	queryCmd.Flags().IntVar(&queryDepth, "depth", 2, "traversal depth bound")
	queryCmd.Flags().BoolVar(&queryMermaid, "mermaid", false, "render as a mermaid diagram instead of JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	handle, err := a.registry.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	g, err := a.registry.Graph(handle)
	if err != nil {
		return fmt.Errorf("repository %s has no graph yet; run 'codeatlas ingest' first", handle.Name)
	}

	root, err := g.Resolve(args[1])
	if err != nil {
		return err
	}

	var kinds []models.RelationKind
	for _, name := range queryKinds {
		kind := models.RelationKind(name)
		if !kind.Valid() {
			return fmt.Errorf("unknown relation kind %q", name)
		}
		kinds = append(kinds, kind)
	}
	if len(kinds) == 0 {
		kinds = models.AllRelationKinds()
	}

	sub, err := g.Query(root.ID, kinds, queryDepth)
	if err != nil {
		return err
	}

	if queryMermaid {
		fmt.Println(export.Mermaid(g, sub))
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sub)
}
