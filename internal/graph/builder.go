package graph

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codeatlas-ai/codeatlas/internal/models"
	"github.com/codeatlas-ai/codeatlas/internal/treesitter"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultExcludeDirs are directory names skipped during the source walk.
var DefaultExcludeDirs = []string{
	".git", "node_modules", "__pycache__", ".venv", "venv",
	"dist", "build", ".tox", ".mypy_cache",
}

// IsExcludedDir reports whether a directory name is skipped by default.
func IsExcludedDir(name string) bool {
	for _, d := range DefaultExcludeDirs {
		if name == d {
			return true
		}
	}
	return false
}

// BuildOptions control which files the builder ingests.
type BuildOptions struct {
	// Include restricts the walk to paths matching any of these glob
	// patterns (repository-relative). Empty means every supported file.
	Include []string
	// Exclude skips paths matching any of these glob patterns or directory
	// names. DefaultExcludeDirs are always applied.
	Exclude []string
}

// Builder parses a source tree into a knowledge graph. Parse failures on
// individual files are recorded and skipped; building continues.
type Builder struct {
	logger *logrus.Logger
}

// NewBuilder creates a graph builder.
func NewBuilder(logger *logrus.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build produces the complete graph document for a repository. Files parse
// in parallel; the merge happens in sorted file-path order so repeated runs
// over an unchanged tree yield identical entity and edge sets.
func (b *Builder) Build(ctx context.Context, repoPath string, opts BuildOptions) (*models.GraphDocument, error) {
	files, err := listSourceFiles(repoPath, opts)
	if err != nil {
		return nil, fmt.Errorf("scan repository: %w", err)
	}

	b.logger.WithFields(logrus.Fields{
		"repo":  repoPath,
		"files": len(files),
	}).Info("building knowledge graph")

	results := make([]*treesitter.FileResult, len(files))
	failures := make([]models.ParseFailure, 0)
	var mu sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.NumCPU())
	for i, relPath := range files {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			code, err := os.ReadFile(filepath.Join(repoPath, filepath.FromSlash(relPath)))
			if err == nil {
				var res *treesitter.FileResult
				res, err = treesitter.ParseFile(relPath, code)
				if err == nil {
					results[i] = res
					return nil
				}
			}
			mu.Lock()
			failures = append(failures, models.ParseFailure{FilePath: relPath, Message: err.Error()})
			mu.Unlock()
			b.logger.WithField("file", relPath).WithError(err).Warn("skipping file")
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	doc := merge(repoPath, results, failures)
	b.logger.WithFields(logrus.Fields{
		"entities": len(doc.Entities),
		"edges":    len(doc.Edges),
		"failures": len(doc.Failures),
	}).Info("knowledge graph built")
	return doc, nil
}

// merge combines per-file results into one document, assigning final
// identifiers and resolving relations repository-wide.
func merge(repoPath string, results []*treesitter.FileResult, failures []models.ParseFailure) *models.GraphDocument {
	doc := &models.GraphDocument{
		RepoHash: models.RepoHash(repoPath),
		RepoPath: repoPath,
		BuiltAt:  time.Now().UTC(),
		Failures: failures,
	}

	res := newResolver()
	seen := make(map[string]int) // entity id -> index in doc.Entities
	for _, fr := range results {
		if fr == nil {
			continue
		}
		for _, raw := range fr.Entities {
			id := models.EntityID(fr.FilePath, raw.Qualified)
			if at, dup := seen[id]; dup {
				// A name redefined in the same scope (a conditional def,
				// say) stays one entity; widen its span to the last
				// definition so reads cover both.
				if raw.EndLine > doc.Entities[at].EndLine {
					doc.Entities[at].EndLine = raw.EndLine
				}
				continue
			}
			seen[id] = len(doc.Entities)
			doc.Entities = append(doc.Entities, models.Entity{
				ID:        id,
				Name:      raw.Name,
				Qualified: raw.Qualified,
				Kind:      raw.Kind,
				FilePath:  fr.FilePath,
				StartLine: raw.StartLine,
				EndLine:   raw.EndLine,
				Signature: raw.Signature,
			})
			res.index(fr, raw)
		}
	}

	externalUsed := false
	for _, fr := range results {
		if fr == nil {
			continue
		}
		for _, rel := range fr.Relations {
			sourceID := res.scopeID(fr, rel.FromQualified)
			targetID, ok := res.resolve(fr, rel)
			if !ok {
				doc.Unresolved = append(doc.Unresolved, models.UnresolvedRef{
					SourceID: sourceID,
					Name:     rel.TargetName,
					Kind:     rel.Kind,
					Line:     rel.Line,
				})
				// Unresolved calls still matter for impact analysis: they
				// surface as edges to the external sink. Other unresolved
				// relations are dropped with the note above.
				if rel.Kind != models.RelationCalls {
					continue
				}
				targetID = models.ExternalSinkID
				externalUsed = true
			}
			doc.Edges = append(doc.Edges, models.Edge{
				Kind:     rel.Kind,
				SourceID: sourceID,
				TargetID: targetID,
				Line:     rel.Line,
			})
		}
	}

	if externalUsed {
		doc.Entities = append(doc.Entities, models.Entity{
			ID:   models.ExternalSinkID,
			Name: "external",
			Kind: models.EntityModule,
		})
	}

	dedupeEdges(doc)
	sortDocument(doc)
	return doc
}

// resolver implements the call-target lookup policy: same file, then same
// module, then unqualified name across the repository, first match winning
// with ties broken by lexical file-path order.
type resolver struct {
	inFile   map[string]map[string]string // file -> qualified/name -> id
	byModule map[string]string            // dotted module -> module entity id
	byName   map[string][]candidate
}

type candidate struct {
	file string
	id   string
}

func newResolver() *resolver {
	return &resolver{
		inFile:   make(map[string]map[string]string),
		byModule: make(map[string]string),
		byName:   make(map[string][]candidate),
	}
}

func (r *resolver) index(fr *treesitter.FileResult, raw treesitter.RawEntity) {
	id := models.EntityID(fr.FilePath, raw.Qualified)
	if r.inFile[fr.FilePath] == nil {
		r.inFile[fr.FilePath] = make(map[string]string)
	}
	r.inFile[fr.FilePath][raw.Qualified] = id
	if _, taken := r.inFile[fr.FilePath][raw.Name]; !taken || raw.Name == raw.Qualified {
		r.inFile[fr.FilePath][raw.Name] = id
	}
	if raw.Kind == models.EntityModule {
		r.byModule[raw.Qualified] = id
	}
	r.byName[raw.Name] = append(r.byName[raw.Name], candidate{file: fr.FilePath, id: id})
}

// scopeID maps a relation's source scope to an entity id. The empty scope
// is the file's module entity.
func (r *resolver) scopeID(fr *treesitter.FileResult, fromQualified string) string {
	if fromQualified == "" {
		return models.EntityID(fr.FilePath, fr.Module)
	}
	if id, ok := r.inFile[fr.FilePath][fromQualified]; ok {
		return id
	}
	return models.EntityID(fr.FilePath, fromQualified)
}

func (r *resolver) resolve(fr *treesitter.FileResult, rel treesitter.RawRelation) (string, bool) {
	// Imports resolve against module paths only.
	if rel.Kind == models.RelationImports {
		id, ok := r.byModule[rel.TargetName]
		return id, ok
	}
	// Same file first.
	if id, ok := r.inFile[fr.FilePath][rel.TargetName]; ok {
		return id, true
	}
	// Then the same module: a qualified sibling such as Class.method.
	if id, ok := r.inFile[fr.FilePath][fr.Module+"."+rel.TargetName]; ok {
		return id, true
	}
	// Then by unqualified name anywhere in the repository, lexical
	// file-path order for determinism.
	cands := r.byName[rel.TargetName]
	if len(cands) == 0 {
		return "", false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.file < best.file || (c.file == best.file && c.id < best.id) {
			best = c
		}
	}
	return best.id, true
}

// dedupeEdges keeps one edge per (source, target, kind, line) so repeated
// identical ingestion is idempotent.
func dedupeEdges(doc *models.GraphDocument) {
	seen := make(map[models.Edge]bool, len(doc.Edges))
	out := doc.Edges[:0]
	for _, e := range doc.Edges {
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	doc.Edges = out
}

func sortDocument(doc *models.GraphDocument) {
	sort.Slice(doc.Entities, func(i, j int) bool { return doc.Entities[i].ID < doc.Entities[j].ID })
	sort.Slice(doc.Edges, func(i, j int) bool { return lessEdge(doc.Edges[i], doc.Edges[j]) })
	sort.Slice(doc.Unresolved, func(i, j int) bool {
		a, b := doc.Unresolved[i], doc.Unresolved[j]
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Line < b.Line
	})
	sort.Slice(doc.Failures, func(i, j int) bool { return doc.Failures[i].FilePath < doc.Failures[j].FilePath })
}

// listSourceFiles walks the repository and returns sorted repo-relative
// paths of parseable files that pass the include/exclude patterns.
func listSourceFiles(repoPath string, opts BuildOptions) ([]string, error) {
	info, err := os.Stat(repoPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", repoPath)
	}

	excludeDirs := make(map[string]bool)
	for _, d := range DefaultExcludeDirs {
		excludeDirs[d] = true
	}

	var files []string
	err = filepath.WalkDir(repoPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != repoPath && (excludeDirs[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		rel, err := filepath.Rel(repoPath, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if treesitter.ExtractorFor(rel) == nil {
			return nil
		}
		if matchesAny(rel, opts.Exclude) {
			return nil
		}
		if len(opts.Include) > 0 && !matchesAny(rel, opts.Include) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// matchesAny tests a repo-relative path against glob patterns. A pattern
// without a slash matches any single path segment.
func matchesAny(rel string, patterns []string) bool {
	for _, pat := range patterns {
		if ok, _ := filepath.Match(pat, rel); ok {
			return true
		}
		if !strings.Contains(pat, "/") {
			for _, seg := range strings.Split(rel, "/") {
				if ok, _ := filepath.Match(pat, seg); ok {
					return true
				}
			}
		}
	}
	return false
}
