package main

import (
	"fmt"

	"github.com/codeatlas-ai/codeatlas/internal/risk"
	"github.com/spf13/cobra"
)

var impactCmd = &cobra.Command{
	Use:   "impact <path> <entity>",
	Short: "Rank how critical each dependent of an entity is",
	Long: `Show which entities would be affected by changing <entity>, ranked
HIGH/MEDIUM/LOW. Entities in test code never rank above LOW.`,
	Args: cobra.ExactArgs(2),
	RunE: runImpact,
}

func runImpact(cmd *cobra.Command, args []string) error {
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

	ranker, err := risk.NewRanker(cfg.Risk.FanInThreshold, cfg.Risk.TestPattern, logger)
	if err != nil {
		return err
	}
	ranking, err := ranker.Rank(g, args[1])
	if err != nil {
		return err
	}

	if len(ranking.Assessments) == 0 {
		fmt.Printf("Nothing depends on %s within the traversal bound.\n", ranking.Seed)
		return nil
	}

	fmt.Printf("Impact of changing %s:\n\n", ranking.Seed)
	for _, a := range ranking.Assessments {
		fmt.Printf("%-6s %-40s %s\n", a.Level, a.Name, a.FilePath)
		fmt.Printf("       %s\n", a.Justification)
	}
	return nil
}
