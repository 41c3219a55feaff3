// Package mcp exposes one repository's tool catalog over the Model
// Context Protocol so external agents (editors, assistants) can use the
// same list/read/query/search operations the built-in agent has. The
// server is bound to a single repository at startup; clients cannot
// reach any other repository through it.
package mcp

import (
	"context"
	"fmt"

	"github.com/codeatlas-ai/codeatlas/internal/models"
	"github.com/codeatlas-ai/codeatlas/internal/tools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
)

const serverVersion = "0.2.0"

// Server bridges MCP tool calls to the tool registry.
type Server struct {
	handle   models.RepositoryHandle
	registry *tools.Registry
	logger   *logrus.Logger
}

type listFilesInput struct {
	Path      string `json:"path,omitempty" jsonschema:"Directory to list, relative to the repository root"`
	Recursive *bool  `json:"recursive,omitempty" jsonschema:"Descend into subdirectories (default true)"`
}

type readFileInput struct {
	Path string `json:"path" jsonschema:"File path relative to the repository root"`
}

type queryGraphInput struct {
	Entity        string   `json:"entity" jsonschema:"Entity name or identifier to start from"`
	RelationKinds []string `json:"relation_kinds,omitempty" jsonschema:"Relation kinds to traverse (imports, calls, defines, inherits, references)"`
	MaxDepth      *int     `json:"max_depth,omitempty" jsonschema:"Traversal depth bound (default 2)"`
}

type semanticSearchInput struct {
	Query string `json:"query" jsonschema:"Natural-language search query"`
	TopK  *int   `json:"top_k,omitempty" jsonschema:"Number of passages to return (default 5)"`
}

// New creates an MCP server bound to one repository.
func New(handle models.RepositoryHandle, registry *tools.Registry, logger *logrus.Logger) *mcp.Server {
	s := &Server{handle: handle, registry: registry, logger: logger}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "codeatlas",
		Version: serverVersion,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        string(tools.KindListFiles),
		Description: fmt.Sprintf("List files in the %s repository", handle.Name),
	}, s.listFiles)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        string(tools.KindReadFile),
		Description: fmt.Sprintf("Read a file from the %s repository", handle.Name),
	}, s.readFile)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        string(tools.KindQueryGraph),
		Description: fmt.Sprintf("Query the %s code knowledge graph", handle.Name),
	}, s.queryGraph)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        string(tools.KindSemanticSearch),
		Description: fmt.Sprintf("Search indexed source passages of %s", handle.Name),
	}, s.semanticSearch)

	return srv
}

// Run serves MCP over stdio until the context is cancelled.
func Run(ctx context.Context, srv *mcp.Server) error {
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) listFiles(ctx context.Context, _ *mcp.CallToolRequest, input listFilesInput) (*mcp.CallToolResult, any, error) {
	args := map[string]any{}
	if input.Path != "" {
		args["path"] = input.Path
	}
	if input.Recursive != nil {
		args["recursive"] = *input.Recursive
	}
	return s.execute(ctx, tools.KindListFiles, args)
}

func (s *Server) readFile(ctx context.Context, _ *mcp.CallToolRequest, input readFileInput) (*mcp.CallToolResult, any, error) {
	return s.execute(ctx, tools.KindReadFile, map[string]any{"path": input.Path})
}

func (s *Server) queryGraph(ctx context.Context, _ *mcp.CallToolRequest, input queryGraphInput) (*mcp.CallToolResult, any, error) {
	args := map[string]any{"entity": input.Entity}
	if len(input.RelationKinds) > 0 {
		args["relation_kinds"] = input.RelationKinds
	}
	if input.MaxDepth != nil {
		args["max_depth"] = *input.MaxDepth
	}
	return s.execute(ctx, tools.KindQueryGraph, args)
}

func (s *Server) semanticSearch(ctx context.Context, _ *mcp.CallToolRequest, input semanticSearchInput) (*mcp.CallToolResult, any, error) {
	args := map[string]any{"query": input.Query}
	if input.TopK != nil {
		args["top_k"] = *input.TopK
	}
	return s.execute(ctx, tools.KindSemanticSearch, args)
}

func (s *Server) execute(ctx context.Context, kind tools.Kind, args map[string]any) (*mcp.CallToolResult, any, error) {
	result, err := s.registry.Execute(ctx, s.handle, tools.Request{Tool: kind, Args: args})
	if err != nil {
		s.logger.WithError(err).WithField("tool", kind).Debug("mcp tool call failed")
		return toolError("%v", err), nil, nil
	}
	return toolText(result.Content), nil, nil
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}
