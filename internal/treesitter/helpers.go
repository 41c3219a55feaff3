package treesitter

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// nodeText extracts the source text covered by a node.
func nodeText(node *sitter.Node, code []byte) string {
	if node == nil {
		return ""
	}
	start := int(node.StartByte())
	end := int(node.EndByte())
	if end > len(code) {
		end = len(code)
	}
	if start > end {
		return ""
	}
	return string(code[start:end])
}

// startLine returns the 1-based line a node starts on.
func startLine(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}

// endLine returns the 1-based line a node ends on.
func endLine(node *sitter.Node) int {
	return int(node.EndPoint().Row) + 1
}

// qualify joins a scope and a name with the scope separator.
func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

// calleeName reduces a call target expression to its rightmost name:
// "os.path.join" -> "join", "run" -> "run". Chained or subscripted targets
// resolve best-effort; precision limits here are by contract, the builder
// records what cannot be resolved.
func calleeName(expr string) string {
	name := expr
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexAny(name, "([ "); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

// lastSegment returns the final dotted segment of a qualified name.
func lastSegment(qualified string) string {
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

// firstLine truncates text to its first line.
func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
