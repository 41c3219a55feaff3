package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/codeatlas-ai/codeatlas/internal/models"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketGraphs = []byte("graphs")
	bucketRepos  = []byte("repositories")

	// ErrGraphNotFound is returned when no graph has been built for a
	// repository hash yet.
	ErrGraphNotFound = errors.New("knowledge graph not found")
	// ErrRepoNotFound is returned when a repository was never registered.
	ErrRepoNotFound = errors.New("repository not registered")
)

// Store persists graph documents and repository registrations in a single
// bbolt database. Each graph is one serialized document keyed by the
// repository hash; commits replace the document in one transaction, so
// readers only ever observe a fully built graph.
type Store struct {
	db *bolt.DB
}

// OpenStore opens (or creates) the database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketGraphs, bucketRepos} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init graph store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// SaveGraph replaces the persisted document for the document's repository
// hash in a single transaction.
func (s *Store) SaveGraph(doc *models.GraphDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("serialize graph: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketGraphs).Put([]byte(doc.RepoHash), data)
	})
}

// LoadGraph reads the persisted document for a repository hash.
func (s *Store) LoadGraph(repoHash string) (*models.GraphDocument, error) {
	var doc models.GraphDocument
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketGraphs).Get([]byte(repoHash))
		if data == nil {
			return ErrGraphNotFound
		}
		return json.Unmarshal(data, &doc)
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteGraph removes the persisted document for a repository hash.
func (s *Store) DeleteGraph(repoHash string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketGraphs).Delete([]byte(repoHash))
	})
}

// SaveRepository upserts a repository registration.
func (s *Store) SaveRepository(repo *models.Repository) error {
	data, err := json.Marshal(repo)
	if err != nil {
		return fmt.Errorf("serialize repository: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRepos).Put([]byte(repo.Hash), data)
	})
}

// GetRepository looks up a registration by hash.
func (s *Store) GetRepository(repoHash string) (*models.Repository, error) {
	var repo models.Repository
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRepos).Get([]byte(repoHash))
		if data == nil {
			return ErrRepoNotFound
		}
		return json.Unmarshal(data, &repo)
	})
	if err != nil {
		return nil, err
	}
	return &repo, nil
}

// ListRepositories returns every registration, ordered by name then path.
func (s *Store) ListRepositories() ([]models.Repository, error) {
	var repos []models.Repository
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRepos).ForEach(func(_, data []byte) error {
			var repo models.Repository
			if err := json.Unmarshal(data, &repo); err != nil {
				return err
			}
			repos = append(repos, repo)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(repos, func(i, j int) bool {
		if repos[i].Name != repos[j].Name {
			return repos[i].Name < repos[j].Name
		}
		return repos[i].Path < repos[j].Path
	})
	return repos, nil
}

// DeleteRepository removes a registration by hash.
func (s *Store) DeleteRepository(repoHash string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRepos).Delete([]byte(repoHash))
	})
}
