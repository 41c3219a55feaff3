package treesitter

import (
	"fmt"
	"path/filepath"
	"strings"
)

var extractors = []Extractor{
	&PythonExtractor{},
	&JavaScriptExtractor{},
}

// ExtractorFor returns the language front-end for a file path, or nil when
// the file type is not parseable.
func ExtractorFor(filePath string) Extractor {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, e := range extractors {
		for _, known := range e.Extensions() {
			if ext == known {
				return e
			}
		}
	}
	return nil
}

// SupportedExtensions lists every extension a registered extractor handles.
func SupportedExtensions() []string {
	var exts []string
	for _, e := range extractors {
		exts = append(exts, e.Extensions()...)
	}
	return exts
}

// ParseFile parses one source file into entities and unresolved relations.
// filePath must be repository-relative with forward slashes; it becomes part
// of every entity identifier.
func ParseFile(filePath string, code []byte) (*FileResult, error) {
	e := ExtractorFor(filePath)
	if e == nil {
		return nil, fmt.Errorf("unsupported file type: %s", filePath)
	}
	return e.Extract(filePath, code)
}

// moduleName derives the dotted module path from a repository-relative file
// path: "pkg/util/io.py" -> "pkg.util.io", "pkg/__init__.py" -> "pkg".
func moduleName(filePath string) string {
	p := strings.TrimSuffix(filePath, filepath.Ext(filePath))
	p = strings.TrimSuffix(p, "/__init__")
	p = strings.TrimSuffix(p, "/index")
	return strings.ReplaceAll(p, "/", ".")
}
