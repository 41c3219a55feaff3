package tools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codeatlas-ai/codeatlas/internal/graph"
	"github.com/codeatlas-ai/codeatlas/internal/models"
)

// resolveWithin joins a repository-relative path to the root and rejects
// anything that escapes it. Tool callers only ever see repository-relative
// paths.
func resolveWithin(root, rel string) (string, error) {
	if rel == "" {
		rel = "."
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%q: %w", rel, ErrNotFound)
	}
	resolved := filepath.Clean(filepath.Join(root, rel))
	back, err := filepath.Rel(root, resolved)
	if err != nil || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", rel, ErrNotFound)
	}
	return resolved, nil
}

func (r *Registry) listFiles(_ context.Context, handle models.RepositoryHandle, args map[string]any) (string, error) {
	dir := argString(args, "path", ".")
	recursive := argBool(args, "recursive", true)

	resolved, err := resolveWithin(handle.Path, dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%q: %w", dir, ErrNotFound)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%q is not a directory: %w", dir, ErrNotFound)
	}

	var files []string
	if recursive {
		err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if graph.IsExcludedDir(d.Name()) && path != resolved {
					return filepath.SkipDir
				}
				return nil
			}
			rel, err := filepath.Rel(handle.Path, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
			return nil
		})
	} else {
		var entries []fs.DirEntry
		entries, err = os.ReadDir(resolved)
		for _, entry := range entries {
			if entry.IsDir() && graph.IsExcludedDir(entry.Name()) {
				continue
			}
			rel, rerr := filepath.Rel(handle.Path, filepath.Join(resolved, entry.Name()))
			if rerr != nil {
				return "", rerr
			}
			rel = filepath.ToSlash(rel)
			if entry.IsDir() {
				rel += "/"
			}
			files = append(files, rel)
		}
	}
	if err != nil {
		return "", err
	}

	sort.Strings(files)
	if len(files) == 0 {
		return "(empty directory)", nil
	}
	return strings.Join(files, "\n"), nil
}
