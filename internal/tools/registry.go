// Package tools is the fixed catalog of operations the agent may invoke
// against one repository's resources. Dispatch is a closed set of tool
// kinds mapped to validated handlers; adding a tool means adding a kind and
// a handler, never ad-hoc string dispatch.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/models"
	"github.com/codeatlas-ai/codeatlas/internal/search"
	"github.com/sirupsen/logrus"
)

// Kind identifies one tool in the catalog.
type Kind string

const (
	KindListFiles      Kind = "list_files"
	KindReadFile       Kind = "read_file"
	KindQueryGraph     Kind = "query_graph"
	KindSemanticSearch Kind = "semantic_search"
)

// ErrNotFound marks a path that does not exist or escapes the repository.
var ErrNotFound = errors.New("not found")

// ErrNotAFile marks a read of something that is not a regular file.
var ErrNotAFile = errors.New("not a file")

// ValidationError means the request never reached its tool: unknown tool,
// missing argument, or wrong argument type.
type ValidationError struct {
	Tool   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid call to %s: %s", e.Tool, e.Reason)
}

// ExecutionError means the tool ran and failed.
type ExecutionError struct {
	Tool Kind
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Param describes one argument in a tool's declared input schema.
type Param struct {
	Name        string
	Type        string // "string", "integer", "boolean", "string_array"
	Description string
	Required    bool
}

// Definition is one entry of the catalog: name, description, input schema.
type Definition struct {
	Kind        Kind
	Description string
	Params      []Param
}

// Definitions returns the fixed tool catalog, in stable order.
func Definitions() []Definition {
	return []Definition{
		{
			Kind:        KindListFiles,
			Description: "List files under a directory of the repository, repository-relative.",
			Params: []Param{
				{Name: "path", Type: "string", Description: "Directory to list, relative to the repository root. Defaults to the root."},
				{Name: "recursive", Type: "boolean", Description: "Descend into subdirectories. Defaults to true."},
			},
		},
		{
			Kind:        KindReadFile,
			Description: "Read a file's contents. Large files are truncated with a marker.",
			Params: []Param{
				{Name: "path", Type: "string", Description: "File path relative to the repository root.", Required: true},
			},
		},
		{
			Kind:        KindQueryGraph,
			Description: "Query the code knowledge graph: the subgraph reachable from an entity.",
			Params: []Param{
				{Name: "entity", Type: "string", Description: "Entity name or identifier to start from.", Required: true},
				{Name: "relation_kinds", Type: "string_array", Description: "Relation kinds to traverse (imports, calls, defines, inherits, references). Defaults to all."},
				{Name: "max_depth", Type: "integer", Description: "Traversal depth bound. Defaults to 2."},
			},
		},
		{
			Kind:        KindSemanticSearch,
			Description: "Search the repository's indexed source passages by meaning.",
			Params: []Param{
				{Name: "query", Type: "string", Description: "Natural-language search query.", Required: true},
				{Name: "top_k", Type: "integer", Description: "Number of passages to return. Defaults to 5."},
			},
		},
	}
}

// GraphProvider supplies the committed graph for a repository handle.
// Implemented by registry.Registry.
type GraphProvider interface {
	Graph(handle models.RepositoryHandle) (*graph.Graph, error)
}

// Searcher runs scoped semantic-search queries. Implemented by
// search.Client.
type Searcher interface {
	Search(ctx context.Context, collection, query string, topK int) ([]search.Passage, error)
}

// Request is one tool invocation: a kind plus decoded JSON arguments.
type Request struct {
	Tool Kind
	Args map[string]any
}

// Result is a successful tool execution. Content is what the agent
// observes.
type Result struct {
	Tool    Kind
	Content string
}

type handler func(ctx context.Context, handle models.RepositoryHandle, args map[string]any) (string, error)

// Registry binds the catalog to a repository's resources at invocation
// time. Executions are synchronous and stateless; concurrent sessions for
// different repositories share one Registry.
type Registry struct {
	graphs       GraphProvider
	searcher     Searcher
	maxReadBytes int
	logger       *logrus.Logger
	handlers     map[Kind]handler
	defs         map[Kind]Definition
}

// NewRegistry creates the tool registry. maxReadBytes bounds read_file
// output; zero means the 64KiB default.
func NewRegistry(graphs GraphProvider, searcher Searcher, maxReadBytes int, logger *logrus.Logger) *Registry {
	if maxReadBytes <= 0 {
		maxReadBytes = 64 * 1024
	}
	r := &Registry{
		graphs:       graphs,
		searcher:     searcher,
		maxReadBytes: maxReadBytes,
		logger:       logger,
		defs:         make(map[Kind]Definition),
	}
	r.handlers = map[Kind]handler{
		KindListFiles:      r.listFiles,
		KindReadFile:       r.readFile,
		KindQueryGraph:     r.queryGraph,
		KindSemanticSearch: r.semanticSearch,
	}
	for _, def := range Definitions() {
		r.defs[def.Kind] = def
	}
	return r
}

// Validate checks a request against the declared schema without touching
// any resource. A nil return means the request may be dispatched.
func (r *Registry) Validate(req Request) *ValidationError {
	def, ok := r.defs[req.Tool]
	if !ok {
		return &ValidationError{Tool: string(req.Tool), Reason: "unknown tool"}
	}
	known := make(map[string]Param, len(def.Params))
	for _, p := range def.Params {
		known[p.Name] = p
		if _, present := req.Args[p.Name]; p.Required && !present {
			return &ValidationError{Tool: string(req.Tool), Reason: fmt.Sprintf("missing required argument %q", p.Name)}
		}
	}
	for name, value := range req.Args {
		p, ok := known[name]
		if !ok {
			return &ValidationError{Tool: string(req.Tool), Reason: fmt.Sprintf("unexpected argument %q", name)}
		}
		if reason := checkType(p, value); reason != "" {
			return &ValidationError{Tool: string(req.Tool), Reason: reason}
		}
	}
	return nil
}

// Execute validates and dispatches a tool call bound to one repository
// handle. Failures come back as *ValidationError or *ExecutionError; both
// are recoverable observations for the agent loop.
func (r *Registry) Execute(ctx context.Context, handle models.RepositoryHandle, req Request) (Result, error) {
	if verr := r.Validate(req); verr != nil {
		return Result{}, verr
	}
	r.logger.WithFields(logrus.Fields{
		"tool": req.Tool,
		"repo": handle.Name,
	}).Debug("executing tool")

	content, err := r.handlers[req.Tool](ctx, handle, req.Args)
	if err != nil {
		return Result{}, &ExecutionError{Tool: req.Tool, Err: err}
	}
	return Result{Tool: req.Tool, Content: content}, nil
}

func checkType(p Param, value any) string {
	switch p.Type {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("argument %q must be a string", p.Name)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("argument %q must be a boolean", p.Name)
		}
	case "integer":
		switch v := value.(type) {
		case int:
		case int64:
		case float64:
			if v != float64(int64(v)) {
				return fmt.Sprintf("argument %q must be an integer", p.Name)
			}
		default:
			return fmt.Sprintf("argument %q must be an integer", p.Name)
		}
	case "string_array":
		items, ok := value.([]any)
		if !ok {
			if _, ok := value.([]string); ok {
				return ""
			}
			return fmt.Sprintf("argument %q must be an array of strings", p.Name)
		}
		for _, item := range items {
			if _, ok := item.(string); !ok {
				return fmt.Sprintf("argument %q must be an array of strings", p.Name)
			}
		}
	}
	return ""
}

// argString reads an optional string argument.
func argString(args map[string]any, name, fallback string) string {
	if v, ok := args[name].(string); ok && v != "" {
		return v
	}
	return fallback
}

// argInt reads an optional integer argument; JSON numbers decode as
// float64.
func argInt(args map[string]any, name string, fallback int) int {
	switch v := args[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

// argBool reads an optional boolean argument.
func argBool(args map[string]any, name string, fallback bool) bool {
	if v, ok := args[name].(bool); ok {
		return v
	}
	return fallback
}

// argStrings reads an optional string-array argument.
func argStrings(args map[string]any, name string) []string {
	switch v := args[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
