package main

import (
	"fmt"
	"os"

	"github.com/codeatlas-ai/codeatlas/internal/export"
	"github.com/codeatlas-ai/codeatlas/internal/history"
	"github.com/spf13/cobra"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <conversation-id>",
	Short: "Export a saved conversation as a markdown report",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := history.Open(cfg.Storage.HistoryPath)
	if err != nil {
		return err
	}
	defer store.Close()

	conv, err := store.Conversation(ctx, args[0])
	if err != nil {
		return err
	}
	turns, err := store.Turns(ctx, conv.ID)
	if err != nil {
		return err
	}

	report := export.Report(conv, turns, nil)
	if exportOutput == "" {
		fmt.Print(report)
		return nil
	}
	if err := os.WriteFile(exportOutput, []byte(report), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Printf("Report written to %s\n", exportOutput)
	return nil
}
