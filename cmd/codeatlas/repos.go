package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Manage registered repositories",
}

var reposListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered repositories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		repos, err := a.registry.Repositories()
		if err != nil {
			return err
		}
		if len(repos) == 0 {
			fmt.Println("No repositories registered. Run 'codeatlas ingest <path>' to add one.")
			return nil
		}
		for _, r := range repos {
			fmt.Printf("%s\n  path: %s\n  hash: %s\n", r.Name, r.Path, r.Hash)
			if !r.LastIngested.IsZero() {
				fmt.Printf("  last ingested: %s\n", r.LastIngested.Format("2006-01-02 15:04:05"))
			}
		}
		return nil
	},
}

var reposRemoveCmd = &cobra.Command{
	Use:   "remove <path>",
	Short: "Remove a repository's graph, search collection, and registration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.registry.Evict(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("Repository removed.")
		return nil
	},
}

func init() {
	reposCmd.AddCommand(reposListCmd)
	reposCmd.AddCommand(reposRemoveCmd)
}
