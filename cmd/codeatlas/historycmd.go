package main

import (
	"fmt"

	"github.com/codeatlas-ai/codeatlas/internal/history"
	"github.com/codeatlas-ai/codeatlas/internal/models"
	"github.com/spf13/cobra"
)

var historyRepo string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := history.Open(cfg.Storage.HistoryPath)
		if err != nil {
			return err
		}
		defer store.Close()

		repoHash := ""
		if historyRepo != "" {
			repoHash = models.RepoHash(historyRepo)
		}
		convs, err := store.Conversations(ctx, repoHash)
		if err != nil {
			return err
		}
		if len(convs) == 0 {
			fmt.Println("No saved conversations.")
			return nil
		}
		for _, c := range convs {
			fmt.Printf("%s  %s  %s\n", c.ID, c.CreatedAt.Format("2006-01-02 15:04"), c.RepoName)
		}
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a saved conversation and its turns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.Open(cfg.Storage.HistoryPath)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted conversation %s\n", args[0])
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyRepo, "repo", "", "only show conversations for this repository path")
	historyCmd.AddCommand(historyDeleteCmd)
}
