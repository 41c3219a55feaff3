package main

import (
	"github.com/codeatlas-ai/codeatlas/internal/logging"
	"github.com/codeatlas-ai/codeatlas/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp <path>",
	Short: "Serve a repository's tools over the Model Context Protocol",
	Long: `Run an MCP server on stdio exposing list_files, read_file, query_graph,
and semantic_search for the repository at <path>. The server is bound to
that one repository for its whole lifetime.`,
	Args: cobra.ExactArgs(1),
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Stdout carries the protocol; anything we log must stay off it.
	quiet := logging.Quiet()
	a, err := newApp(ctx, quiet)
	if err != nil {
		return err
	}
	defer a.Close()

	handle, err := a.registry.Resolve(ctx, args[0])
	if err != nil {
		return err
	}

	srv := mcp.New(handle, a.tools, quiet)
	return mcp.Run(ctx, srv)
}
