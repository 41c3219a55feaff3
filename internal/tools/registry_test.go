package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/models"
	"github.com/codeatlas-ai/codeatlas/internal/search"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGraphs struct {
	g   *graph.Graph
	err error
}

func (s *stubGraphs) Graph(models.RepositoryHandle) (*graph.Graph, error) {
	return s.g, s.err
}

type stubSearcher struct {
	passages []search.Passage
	err      error
	lastColl string
}

func (s *stubSearcher) Search(_ context.Context, collection, query string, topK int) ([]search.Passage, error) {
	s.lastColl = collection
	return s.passages, s.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testHandle(t *testing.T, files map[string]string) models.RepositoryHandle {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return models.RepositoryHandle{
		Name:       "test",
		Path:       root,
		Hash:       models.RepoHash(root),
		Collection: "CodeAtlas_test",
	}
}

func testGraph() *graph.Graph {
	return graph.New(&models.GraphDocument{
		Entities: []models.Entity{
			{ID: "app.py::main", Name: "main", Qualified: "main", Kind: models.EntityFunction, FilePath: "app.py"},
			{ID: "lib.py::util", Name: "util", Qualified: "util", Kind: models.EntityFunction, FilePath: "lib.py"},
		},
		Edges: []models.Edge{
			{Kind: models.RelationCalls, SourceID: "app.py::main", TargetID: "lib.py::util", Line: 4},
		},
	})
}

func newTestRegistry(g *graph.Graph, s Searcher, maxRead int) *Registry {
	return NewRegistry(&stubGraphs{g: g}, s, maxRead, quietLogger())
}

func TestValidateUnknownTool(t *testing.T) {
	r := newTestRegistry(testGraph(), &stubSearcher{}, 0)

	verr := r.Validate(Request{Tool: "drop_tables"})
	require.NotNil(t, verr)
	assert.Contains(t, verr.Error(), "unknown tool")
}

func TestValidateMissingRequired(t *testing.T) {
	r := newTestRegistry(testGraph(), &stubSearcher{}, 0)

	verr := r.Validate(Request{Tool: KindReadFile, Args: map[string]any{}})
	require.NotNil(t, verr)
	assert.Contains(t, verr.Reason, "path")
}

func TestValidateWrongType(t *testing.T) {
	r := newTestRegistry(testGraph(), &stubSearcher{}, 0)

	verr := r.Validate(Request{Tool: KindQueryGraph, Args: map[string]any{
		"entity":    "main",
		"max_depth": "two",
	}})
	require.NotNil(t, verr)
	assert.Contains(t, verr.Reason, "integer")
}

func TestValidateUnexpectedArg(t *testing.T) {
	r := newTestRegistry(testGraph(), &stubSearcher{}, 0)

	verr := r.Validate(Request{Tool: KindReadFile, Args: map[string]any{
		"path":  "a.py",
		"force": true,
	}})
	require.NotNil(t, verr)
	assert.Contains(t, verr.Reason, "force")
}

func TestValidateAcceptsJSONNumbers(t *testing.T) {
	r := newTestRegistry(testGraph(), &stubSearcher{}, 0)

	// JSON decoding hands integers over as float64.
	verr := r.Validate(Request{Tool: KindSemanticSearch, Args: map[string]any{
		"query": "auth",
		"top_k": float64(3),
	}})
	assert.Nil(t, verr)

	verr = r.Validate(Request{Tool: KindSemanticSearch, Args: map[string]any{
		"query": "auth",
		"top_k": 2.5,
	}})
	assert.NotNil(t, verr)
}

func TestExecuteValidationErrorType(t *testing.T) {
	r := newTestRegistry(testGraph(), &stubSearcher{}, 0)
	handle := testHandle(t, nil)

	_, err := r.Execute(context.Background(), handle, Request{Tool: KindReadFile})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestListFiles(t *testing.T) {
	handle := testHandle(t, map[string]string{
		"app.py":        "x",
		"pkg/lib.py":    "y",
		"pkg/deep/z.py": "z",
	})
	r := newTestRegistry(testGraph(), &stubSearcher{}, 0)

	result, err := r.Execute(context.Background(), handle, Request{
		Tool: KindListFiles,
		Args: map[string]any{},
	})
	require.NoError(t, err)
	assert.Equal(t, "app.py\npkg/deep/z.py\npkg/lib.py", result.Content)

	// Non-recursive listing marks directories.
	result, err = r.Execute(context.Background(), handle, Request{
		Tool: KindListFiles,
		Args: map[string]any{"path": "pkg", "recursive": false},
	})
	require.NoError(t, err)
	assert.Equal(t, "pkg/deep/\npkg/lib.py", result.Content)
}

func TestListFilesRejectsEscape(t *testing.T) {
	handle := testHandle(t, map[string]string{"app.py": "x"})
	r := newTestRegistry(testGraph(), &stubSearcher{}, 0)

	for _, path := range []string{"..", "../..", "/etc", "a/../../b"} {
		_, err := r.Execute(context.Background(), handle, Request{
			Tool: KindListFiles,
			Args: map[string]any{"path": path},
		})
		assert.ErrorIs(t, err, ErrNotFound, "path %q must be rejected", path)
	}
}

func TestReadFile(t *testing.T) {
	handle := testHandle(t, map[string]string{"app.py": "print('hi')\n"})
	r := newTestRegistry(testGraph(), &stubSearcher{}, 0)

	result, err := r.Execute(context.Background(), handle, Request{
		Tool: KindReadFile,
		Args: map[string]any{"path": "app.py"},
	})
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", result.Content)
}

func TestReadFileTruncation(t *testing.T) {
	big := strings.Repeat("a", 100)
	handle := testHandle(t, map[string]string{"big.txt": big})
	r := newTestRegistry(testGraph(), &stubSearcher{}, 64)

	result, err := r.Execute(context.Background(), handle, Request{
		Tool: KindReadFile,
		Args: map[string]any{"path": "big.txt"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Content, strings.Repeat("a", 64)))
	assert.Contains(t, result.Content, "[truncated")
}

func TestReadFileErrors(t *testing.T) {
	handle := testHandle(t, map[string]string{"dir/inner.py": "x"})
	r := newTestRegistry(testGraph(), &stubSearcher{}, 0)

	_, err := r.Execute(context.Background(), handle, Request{
		Tool: KindReadFile,
		Args: map[string]any{"path": "missing.py"},
	})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Execute(context.Background(), handle, Request{
		Tool: KindReadFile,
		Args: map[string]any{"path": "dir"},
	})
	assert.ErrorIs(t, err, ErrNotAFile)

	_, err = r.Execute(context.Background(), handle, Request{
		Tool: KindReadFile,
		Args: map[string]any{"path": "../secret"},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueryGraphTool(t *testing.T) {
	handle := testHandle(t, nil)
	r := newTestRegistry(testGraph(), &stubSearcher{}, 0)

	result, err := r.Execute(context.Background(), handle, Request{
		Tool: KindQueryGraph,
		Args: map[string]any{"entity": "main"},
	})
	require.NoError(t, err)
	assert.Contains(t, result.Content, `"root": "app.py::main"`)
	assert.Contains(t, result.Content, "lib.py::util")

	_, err = r.Execute(context.Background(), handle, Request{
		Tool: KindQueryGraph,
		Args: map[string]any{"entity": "ghost"},
	})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Execute(context.Background(), handle, Request{
		Tool: KindQueryGraph,
		Args: map[string]any{"entity": "main", "relation_kinds": []any{"explodes"}},
	})
	assert.Error(t, err)
}

func TestSemanticSearchTool(t *testing.T) {
	handle := testHandle(t, nil)
	searcher := &stubSearcher{passages: []search.Passage{
		{Path: "auth.py", Chunk: 0, Content: "def login(): ..."},
	}}
	r := newTestRegistry(testGraph(), searcher, 0)

	result, err := r.Execute(context.Background(), handle, Request{
		Tool: KindSemanticSearch,
		Args: map[string]any{"query": "login"},
	})
	require.NoError(t, err)
	assert.Contains(t, result.Content, "auth.py")
	assert.Equal(t, handle.Collection, searcher.lastColl)
}

func TestSemanticSearchFailure(t *testing.T) {
	handle := testHandle(t, nil)
	searcher := &stubSearcher{err: errors.New("connection refused")}
	r := newTestRegistry(testGraph(), searcher, 0)

	_, err := r.Execute(context.Background(), handle, Request{
		Tool: KindSemanticSearch,
		Args: map[string]any{"query": "login"},
	})
	var eerr *ExecutionError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, KindSemanticSearch, eerr.Tool)
}

func TestDefinitionsStableOrder(t *testing.T) {
	var kinds []string
	for _, def := range Definitions() {
		kinds = append(kinds, string(def.Kind))
	}
	assert.Equal(t, []string{"list_files", "read_file", "query_graph", "semantic_search"}, kinds)
	// Catalog and dispatch must stay in lockstep.
	r := newTestRegistry(testGraph(), &stubSearcher{}, 0)
	for _, def := range Definitions() {
		_, ok := r.handlers[def.Kind]
		assert.True(t, ok, fmt.Sprintf("no handler for %s", def.Kind))
	}
}
