package ingest

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/search"
	"github.com/codeatlas-ai/codeatlas/internal/treesitter"
)

const (
	chunkLines   = 60
	overlapLines = 10
	maxFileBytes = 1 << 20 // skip generated blobs
)

// indexable extensions beyond parsed source: prose that helps semantic
// search answer "where is X documented".
var extraIndexExts = map[string]bool{
	".md":   true,
	".txt":  true,
	".rst":  true,
	".yaml": true,
	".yml":  true,
	".toml": true,
	".json": true,
}

func indexableExt(path string) (lang string, ok bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if e := treesitter.ExtractorFor(path); e != nil {
		return e.Language(), true
	}
	if extraIndexExts[ext] {
		return strings.TrimPrefix(ext, "."), true
	}
	return "", false
}

// collectDocuments walks the repository and chunks indexable files into
// search documents. Paths are repository-relative with forward slashes;
// chunk numbering starts at zero per file.
func collectDocuments(root string) ([]search.Document, error) {
	var docs []search.Document
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if graph.IsExcludedDir(d.Name()) && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := indexableExt(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.Size() > maxFileBytes {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil, err
		}
		rel = filepath.ToSlash(rel)
		lang, _ := indexableExt(path)

		for i, chunk := range chunkText(string(data)) {
			docs = append(docs, search.Document{
				Path:     rel,
				Chunk:    i,
				Content:  chunk,
				Language: lang,
			})
		}
	}
	return docs, nil
}

// chunkText splits text into overlapping line windows so a match near a
// chunk boundary still lands in one retrievable passage.
func chunkText(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) <= chunkLines {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	var chunks []string
	step := chunkLines - overlapLines
	for start := 0; start < len(lines); start += step {
		end := start + chunkLines
		if end > len(lines) {
			end = len(lines)
		}
		chunk := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(lines) {
			break
		}
	}
	return chunks
}
