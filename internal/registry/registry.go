// Package registry maps a repository identity to its isolated knowledge
// graph and semantic-search collection. Two different repository paths
// never share a graph or a collection; identity derives deterministically
// from the normalized absolute path.
package registry

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Provisioner creates and tears down per-repository search collections.
// Implemented by search.Client; faked in tests.
type Provisioner interface {
	CreateCollection(ctx context.Context, name string) error
	DeleteCollection(ctx context.Context, name string) error
}

// ProvisioningError means the external search service could not provision a
// repository's collection. Nothing is registered when this is returned.
type ProvisioningError struct {
	Repo string
	Err  error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning repository %s: %v", e.Repo, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// Registry owns per-repository resources: registration records, committed
// graphs, and search collections.
type Registry struct {
	store  *graph.Store
	search Provisioner
	logger *logrus.Logger

	// provisioning of the same new path is serialized; steady-state
	// resolves hit the store without this group.
	flight singleflight.Group

	mu     sync.RWMutex
	graphs map[string]*graph.Graph // repo hash -> committed graph
}

// New creates a registry over the given store and search service.
func New(store *graph.Store, search Provisioner, logger *logrus.Logger) *Registry {
	return &Registry{
		store:  store,
		search: search,
		logger: logger,
		graphs: make(map[string]*graph.Graph),
	}
}

// Resolve returns the handle for a repository path, creating the search
// collection and registration on first use. Creation is all-or-nothing: a
// failed collection create leaves nothing registered. Concurrent first-use
// resolves of the same path create exactly one collection.
func (r *Registry) Resolve(ctx context.Context, path string) (models.RepositoryHandle, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return models.RepositoryHandle{}, fmt.Errorf("normalize path: %w", err)
	}
	hash := models.RepoHash(abs)
	handle := models.RepositoryHandle{
		Name:       filepath.Base(abs),
		Path:       abs,
		Hash:       hash,
		Collection: models.CollectionName(hash),
	}

	if _, err := r.store.GetRepository(hash); err == nil {
		return handle, nil
	} else if !errors.Is(err, graph.ErrRepoNotFound) {
		return models.RepositoryHandle{}, err
	}

	_, err, _ = r.flight.Do(hash, func() (interface{}, error) {
		// Re-check inside the flight: a racing resolve may have finished.
		if _, err := r.store.GetRepository(hash); err == nil {
			return nil, nil
		} else if !errors.Is(err, graph.ErrRepoNotFound) {
			return nil, err
		}
		if err := r.search.CreateCollection(ctx, handle.Collection); err != nil {
			return nil, &ProvisioningError{Repo: abs, Err: err}
		}
		repo := &models.Repository{
			Name:         handle.Name,
			Path:         abs,
			Hash:         hash,
			RegisteredAt: time.Now().UTC(),
		}
		if err := r.store.SaveRepository(repo); err != nil {
			return nil, err
		}
		r.logger.WithFields(logrus.Fields{
			"repo":       abs,
			"collection": handle.Collection,
		}).Info("repository registered")
		return nil, nil
	})
	if err != nil {
		return models.RepositoryHandle{}, err
	}
	return handle, nil
}

// Evict tears down the repository's search collection and deletes its
// persisted graph and registration. Evicting a path that was never
// registered returns graph.ErrRepoNotFound without provisioning anything.
func (r *Registry) Evict(ctx context.Context, path string) error {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("normalize path: %w", err)
	}
	hash := models.RepoHash(abs)
	if _, err := r.store.GetRepository(hash); err != nil {
		return err
	}
	if err := r.search.DeleteCollection(ctx, models.CollectionName(hash)); err != nil {
		return err
	}
	if err := r.store.DeleteGraph(hash); err != nil {
		return err
	}
	if err := r.store.DeleteRepository(hash); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.graphs, hash)
	r.mu.Unlock()
	r.logger.WithField("repo", abs).Info("repository evicted")
	return nil
}

// Graph returns the committed knowledge graph for a handle, loading and
// indexing it on first access. Concurrent readers share the same Graph.
func (r *Registry) Graph(handle models.RepositoryHandle) (*graph.Graph, error) {
	r.mu.RLock()
	g, ok := r.graphs[handle.Hash]
	r.mu.RUnlock()
	if ok {
		return g, nil
	}

	doc, err := r.store.LoadGraph(handle.Hash)
	if err != nil {
		return nil, err
	}
	g = graph.New(doc)

	r.mu.Lock()
	// Another reader may have loaded it meanwhile; either copy is the same
	// committed document, keep the existing one.
	if cached, ok := r.graphs[handle.Hash]; ok {
		g = cached
	} else {
		r.graphs[handle.Hash] = g
	}
	r.mu.Unlock()
	return g, nil
}

// CommitGraph persists a freshly built document and swaps it in as the
// committed graph. Readers holding the previous graph keep a consistent
// snapshot; new readers observe the replacement.
func (r *Registry) CommitGraph(handle models.RepositoryHandle, doc *models.GraphDocument) error {
	if err := r.store.SaveGraph(doc); err != nil {
		return err
	}
	g := graph.New(doc)
	r.mu.Lock()
	r.graphs[handle.Hash] = g
	r.mu.Unlock()

	if repo, err := r.store.GetRepository(handle.Hash); err == nil {
		repo.LastIngested = time.Now().UTC()
		if err := r.store.SaveRepository(repo); err != nil {
			return err
		}
	}
	return nil
}

// Repositories lists every registration.
func (r *Registry) Repositories() ([]models.Repository, error) {
	return r.store.ListRepositories()
}
