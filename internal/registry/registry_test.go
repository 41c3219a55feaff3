package registry

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvisioner counts collection operations and can be told to fail.
type countingProvisioner struct {
	creates atomic.Int64
	deletes atomic.Int64
	failure error
}

func (p *countingProvisioner) CreateCollection(context.Context, string) error {
	if p.failure != nil {
		return p.failure
	}
	// A little latency widens the race window for concurrent resolves.
	time.Sleep(5 * time.Millisecond)
	p.creates.Add(1)
	return nil
}

func (p *countingProvisioner) DeleteCollection(context.Context, string) error {
	p.deletes.Add(1)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestRegistry(t *testing.T) (*Registry, *countingProvisioner, *graph.Store) {
	t.Helper()
	store, err := graph.OpenStore(filepath.Join(t.TempDir(), "graphs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	provisioner := &countingProvisioner{}
	return New(store, provisioner, quietLogger()), provisioner, store
}

func testDoc(hash, path string) *models.GraphDocument {
	return &models.GraphDocument{
		RepoHash: hash,
		RepoPath: path,
		BuiltAt:  time.Now().UTC(),
		Entities: []models.Entity{
			{ID: "app.py::main", Name: "main", Qualified: "main", Kind: models.EntityFunction, FilePath: "app.py"},
		},
	}
}

func TestResolveProvisionsOnFirstUse(t *testing.T) {
	r, provisioner, store := newTestRegistry(t)
	path := t.TempDir()

	handle, err := r.Resolve(context.Background(), path)
	require.NoError(t, err)

	abs, _ := filepath.Abs(path)
	assert.Equal(t, filepath.Base(abs), handle.Name)
	assert.Equal(t, models.RepoHash(abs), handle.Hash)
	assert.Equal(t, models.CollectionName(handle.Hash), handle.Collection)
	assert.Equal(t, int64(1), provisioner.creates.Load())

	repo, err := store.GetRepository(handle.Hash)
	require.NoError(t, err)
	assert.Equal(t, abs, repo.Path)

	// Steady-state resolve never touches the search service again.
	again, err := r.Resolve(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, handle, again)
	assert.Equal(t, int64(1), provisioner.creates.Load())
}

func TestResolveConcurrentFirstUse(t *testing.T) {
	r, provisioner, _ := newTestRegistry(t)
	path := t.TempDir()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Resolve(context.Background(), path)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(1), provisioner.creates.Load())
}

func TestResolveDistinctPathsIsolated(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	a, err := r.Resolve(context.Background(), t.TempDir())
	require.NoError(t, err)
	b, err := r.Resolve(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.NotEqual(t, a.Hash, b.Hash)
	assert.NotEqual(t, a.Collection, b.Collection)
}

func TestResolveProvisionFailureRegistersNothing(t *testing.T) {
	r, provisioner, store := newTestRegistry(t)
	provisioner.failure = errors.New("weaviate unreachable")
	path := t.TempDir()

	_, err := r.Resolve(context.Background(), path)
	var perr *ProvisioningError
	require.ErrorAs(t, err, &perr)

	abs, _ := filepath.Abs(path)
	_, err = store.GetRepository(models.RepoHash(abs))
	assert.ErrorIs(t, err, graph.ErrRepoNotFound)

	// Once the service recovers the same path registers cleanly.
	provisioner.failure = nil
	_, err = r.Resolve(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int64(1), provisioner.creates.Load())
}

func TestGraphBeforeIngestFails(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	handle, err := r.Resolve(context.Background(), t.TempDir())
	require.NoError(t, err)

	_, err = r.Graph(handle)
	assert.ErrorIs(t, err, graph.ErrGraphNotFound)
}

func TestCommitGraphReplacesWholesale(t *testing.T) {
	r, _, store := newTestRegistry(t)
	handle, err := r.Resolve(context.Background(), t.TempDir())
	require.NoError(t, err)

	doc := testDoc(handle.Hash, handle.Path)
	require.NoError(t, r.CommitGraph(handle, doc))

	first, err := r.Graph(handle)
	require.NoError(t, err)
	_, ok := first.Entity("app.py::main")
	assert.True(t, ok)

	// Commit a rebuilt document; new readers see only the replacement.
	doc2 := testDoc(handle.Hash, handle.Path)
	doc2.Entities = []models.Entity{
		{ID: "lib.py::util", Name: "util", Qualified: "util", Kind: models.EntityFunction, FilePath: "lib.py"},
	}
	require.NoError(t, r.CommitGraph(handle, doc2))

	second, err := r.Graph(handle)
	require.NoError(t, err)
	_, ok = second.Entity("app.py::main")
	assert.False(t, ok)
	_, ok = second.Entity("lib.py::util")
	assert.True(t, ok)

	// The old snapshot stays consistent for readers still holding it.
	_, ok = first.Entity("app.py::main")
	assert.True(t, ok)

	repo, err := store.GetRepository(handle.Hash)
	require.NoError(t, err)
	assert.False(t, repo.LastIngested.IsZero())
}

func TestCommitGraphSurvivesReload(t *testing.T) {
	r, _, store := newTestRegistry(t)
	handle, err := r.Resolve(context.Background(), t.TempDir())
	require.NoError(t, err)
	require.NoError(t, r.CommitGraph(handle, testDoc(handle.Hash, handle.Path)))

	// A fresh registry over the same store loads the committed document.
	fresh := New(store, &countingProvisioner{}, quietLogger())
	g, err := fresh.Graph(handle)
	require.NoError(t, err)
	_, ok := g.Entity("app.py::main")
	assert.True(t, ok)
}

func TestEvict(t *testing.T) {
	r, provisioner, store := newTestRegistry(t)
	path := t.TempDir()
	handle, err := r.Resolve(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, r.CommitGraph(handle, testDoc(handle.Hash, handle.Path)))

	require.NoError(t, r.Evict(context.Background(), path))

	assert.Equal(t, int64(1), provisioner.deletes.Load())
	_, err = store.GetRepository(handle.Hash)
	assert.ErrorIs(t, err, graph.ErrRepoNotFound)
	_, err = store.LoadGraph(handle.Hash)
	assert.ErrorIs(t, err, graph.ErrGraphNotFound)
}

func TestEvictUnregisteredPath(t *testing.T) {
	r, provisioner, _ := newTestRegistry(t)

	err := r.Evict(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, graph.ErrRepoNotFound)

	// Eviction must never provision a collection just to tear it down.
	assert.Equal(t, int64(0), provisioner.creates.Load())
	assert.Equal(t, int64(0), provisioner.deletes.Load())
}
