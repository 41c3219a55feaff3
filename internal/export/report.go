package export

import (
	"fmt"
	"strings"

	"github.com/codeatlas-ai/codeatlas/internal/history"
	"github.com/codeatlas-ai/codeatlas/internal/risk"
)

// Report renders one conversation as a markdown document. Incomplete
// answers are flagged so a reader knows the loop halted before
// concluding.
func Report(conv *history.Conversation, turns []history.Turn, ranking *risk.Ranking) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# CodeAtlas Report: %s\n\n", conv.RepoName)
	fmt.Fprintf(&b, "- Conversation: `%s`\n", conv.ID)
	fmt.Fprintf(&b, "- Started: %s\n\n", conv.CreatedAt.Format("2006-01-02 15:04:05 MST"))

	b.WriteString("## Conversation\n\n")
	for _, turn := range turns {
		switch turn.Role {
		case "user":
			fmt.Fprintf(&b, "**Q:** %s\n\n", turn.Content)
		default:
			if turn.Incomplete {
				b.WriteString("**A (incomplete, iteration limit reached):**\n\n")
			} else {
				b.WriteString("**A:**\n\n")
			}
			b.WriteString(turn.Content)
			b.WriteString("\n\n")
		}
	}

	if ranking != nil && len(ranking.Assessments) > 0 {
		b.WriteString("## Criticality\n\n")
		fmt.Fprintf(&b, "Entities affected by changes to `%s`:\n\n", ranking.Seed)
		b.WriteString("| Entity | File | Level | Fan-in | Why |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, a := range ranking.Assessments {
			fmt.Fprintf(&b, "| `%s` | %s | %s | %d | %s |\n",
				a.Name, a.FilePath, a.Level, a.FanIn, a.Justification)
		}
		b.WriteString("\n")
	}
	return b.String()
}
