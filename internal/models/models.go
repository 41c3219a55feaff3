package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"
)

// EntityKind categorizes a code construct tracked in the knowledge graph
type EntityKind string

const (
	EntityModule   EntityKind = "module"
	EntityClass    EntityKind = "class"
	EntityFunction EntityKind = "function"
	EntityVariable EntityKind = "variable"
)

// RelationKind categorizes a directed edge between two entities
type RelationKind string

const (
	RelationImports    RelationKind = "imports"
	RelationCalls      RelationKind = "calls"
	RelationDefines    RelationKind = "defines"
	RelationInherits   RelationKind = "inherits"
	RelationReferences RelationKind = "references"
)

// AllRelationKinds returns every relation kind, in stable order.
func AllRelationKinds() []RelationKind {
	return []RelationKind{
		RelationImports,
		RelationCalls,
		RelationDefines,
		RelationInherits,
		RelationReferences,
	}
}

// Valid reports whether k is one of the defined relation kinds.
func (k RelationKind) Valid() bool {
	switch k {
	case RelationImports, RelationCalls, RelationDefines, RelationInherits, RelationReferences:
		return true
	}
	return false
}

// ExternalSinkID is the identifier of the synthetic entity that collects
// call edges whose target could not be resolved inside the repository.
// External/library symbols are expected here; they are not errors.
const ExternalSinkID = "external::__sink__"

// Entity is a named code construct: a module, class, function, or
// module-scope variable. The identifier is stable across re-ingestion as
// long as the qualified name and file path are unchanged.
type Entity struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Qualified string     `json:"qualified"`
	Kind      EntityKind `json:"kind"`
	FilePath  string     `json:"file_path"`
	StartLine int        `json:"start_line"`
	EndLine   int        `json:"end_line"`
	Signature string     `json:"signature,omitempty"`
}

// Edge is a directed, typed relationship between two entity identifiers.
// Line is the call-site line number when the relation carries one.
type Edge struct {
	Kind     RelationKind `json:"kind"`
	SourceID string       `json:"source"`
	TargetID string       `json:"target"`
	Line     int          `json:"line,omitempty"`
}

// UnresolvedRef records a reference whose target was not found inside the
// repository. Informational, not an error.
type UnresolvedRef struct {
	SourceID string       `json:"source"`
	Name     string       `json:"name"`
	Kind     RelationKind `json:"kind"`
	Line     int          `json:"line,omitempty"`
}

// ParseFailure records a file the builder skipped. Non-fatal: the rest of
// the repository is still ingested.
type ParseFailure struct {
	FilePath string `json:"file_path"`
	Message  string `json:"message"`
}

// GraphDocument is the persisted form of one repository's knowledge graph.
// It is written and replaced wholesale on each ingestion run and must
// round-trip losslessly through JSON.
type GraphDocument struct {
	RepoHash   string          `json:"repo_hash"`
	RepoPath   string          `json:"repo_path"`
	BuiltAt    time.Time       `json:"built_at"`
	Entities   []Entity        `json:"entities"`
	Edges      []Edge          `json:"edges"`
	Unresolved []UnresolvedRef `json:"unresolved,omitempty"`
	Failures   []ParseFailure  `json:"failures,omitempty"`
}

// Repository is a registered repository: name + absolute path + derived hash.
type Repository struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Hash         string    `json:"hash"`
	RegisteredAt time.Time `json:"registered_at"`
	LastIngested time.Time `json:"last_ingested,omitempty"`
}

// RepositoryHandle is the resolved, isolated resource set for one
// repository: its graph key and its semantic-search collection. Handles are
// threaded explicitly through every call; there is no ambient "active
// repository" state.
type RepositoryHandle struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Hash       string `json:"hash"`
	Collection string `json:"collection"`
}

// EntityID derives the stable identifier for an entity from its declaring
// file path and qualified name.
func EntityID(filePath, qualified string) string {
	return filePath + "::" + qualified
}

// RepoHash derives the stable identity key for a repository from its
// normalized absolute path. Two different paths never share a hash; repeated
// registration of the same path is idempotent.
func RepoHash(path string) string {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		abs = filepath.Clean(path)
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])
}

// CollectionName derives the semantic-search collection identifier for a
// repository hash. Weaviate class names must start with an uppercase letter.
func CollectionName(repoHash string) string {
	n := len(repoHash)
	if n > 12 {
		n = 12
	}
	return fmt.Sprintf("CodeAtlas_%s", repoHash[:n])
}
