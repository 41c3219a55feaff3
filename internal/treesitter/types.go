package treesitter

import (
	"github.com/codeatlas-ai/codeatlas/internal/models"
)

// RawEntity is one declaration extracted from a single file, before
// repository-wide identifier assignment and reference resolution.
type RawEntity struct {
	Name      string
	Qualified string // scope-qualified name within the file, e.g. "Engine.run"
	Kind      models.EntityKind
	StartLine int
	EndLine   int
	Signature string
}

// RawRelation is a relationship whose target is still a textual name.
// The graph builder resolves targets against the repository-wide entity set.
type RawRelation struct {
	FromQualified string // qualified name of the source scope ("" = module)
	TargetName    string
	Kind          models.RelationKind
	Line          int
}

// FileResult holds everything extracted from one source file.
type FileResult struct {
	FilePath  string // repository-relative, forward slashes
	Language  string
	Module    string // dotted module path derived from FilePath
	Entities  []RawEntity
	Relations []RawRelation
}

// Extractor is a language front-end. The graph contract is language
// independent; plugging in a new language means implementing this interface
// and registering it in the parser.
type Extractor interface {
	Language() string
	Extensions() []string
	Extract(filePath string, code []byte) (*FileResult, error)
}
