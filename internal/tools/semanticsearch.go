package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeatlas-ai/codeatlas/internal/models"
)

const maxTopK = 20

func (r *Registry) semanticSearch(ctx context.Context, handle models.RepositoryHandle, args map[string]any) (string, error) {
	query := argString(args, "query", "")
	topK := argInt(args, "top_k", 5)
	if topK < 1 {
		topK = 1
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	passages, err := r.searcher.Search(ctx, handle.Collection, query, topK)
	if err != nil {
		return "", fmt.Errorf("search %s: %w", handle.Name, err)
	}
	if len(passages) == 0 {
		return "No matching passages found.", nil
	}

	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		fmt.Fprintf(&b, "[%d] %s (chunk %d)\n%s\n", i+1, p.Path, p.Chunk, p.Content)
	}
	return b.String(), nil
}
