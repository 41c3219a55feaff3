package treesitter

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/codeatlas-ai/codeatlas/internal/models"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// JavaScriptExtractor extracts entities and relations from JavaScript
// source using tree-sitter. Safe for concurrent use; each Extract call
// creates its own parser.
type JavaScriptExtractor struct{}

func (e *JavaScriptExtractor) Language() string { return "javascript" }

func (e *JavaScriptExtractor) Extensions() []string { return []string{".js", ".jsx", ".mjs"} }

func (e *JavaScriptExtractor) Extract(filePath string, code []byte) (*FileResult, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, code)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("tree-sitter returned nil root node")
	}

	mod := moduleName(filePath)
	result := &FileResult{
		FilePath: filePath,
		Language: "javascript",
		Module:   mod,
	}
	result.Entities = append(result.Entities, RawEntity{
		Name:      lastSegment(mod),
		Qualified: mod,
		Kind:      models.EntityModule,
		StartLine: 1,
		EndLine:   endLine(root),
	})

	e.walk(root, code, "", filePath, result)
	return result, nil
}

func (e *JavaScriptExtractor) walk(node *sitter.Node, code []byte, scope, filePath string, result *FileResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import_statement":
			e.extractImport(child, code, filePath, result)
		case "export_statement":
			// export wraps the underlying declaration
			e.walk(child, code, scope, filePath, result)
		case "function_declaration":
			e.extractFunction(child, code, scope, result)
		case "class_declaration":
			e.extractClass(child, code, scope, result)
		case "lexical_declaration", "variable_declaration":
			e.extractVariables(child, code, scope, result)
			e.collectCalls(child, code, scope, result)
		case "method_definition":
			e.extractMethod(child, code, scope, result)
		default:
			e.collectCalls(child, code, scope, result)
		}
	}
}

// extractImport records an imports relation. Relative sources resolve to a
// module path within the repository; bare package names stay as-is and are
// expected to be unresolved.
func (e *JavaScriptExtractor) extractImport(node *sitter.Node, code []byte, filePath string, result *FileResult) {
	source := node.ChildByFieldName("source")
	if source == nil {
		return
	}
	target := strings.Trim(nodeText(source, code), `"'`)
	if target == "" {
		return
	}
	if strings.HasPrefix(target, ".") {
		resolved := path.Clean(path.Join(path.Dir(filePath), target))
		target = strings.ReplaceAll(strings.TrimSuffix(resolved, path.Ext(resolved)), "/", ".")
	}
	result.Relations = append(result.Relations, RawRelation{
		FromQualified: "",
		TargetName:    target,
		Kind:          models.RelationImports,
		Line:          startLine(node),
	})
}

func (e *JavaScriptExtractor) extractFunction(node *sitter.Node, code []byte, scope string, result *FileResult) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, code)
	qualified := qualify(scope, name)

	signature := "function " + name
	if params := node.ChildByFieldName("parameters"); params != nil {
		signature += nodeText(params, code)
	}

	result.Entities = append(result.Entities, RawEntity{
		Name:      name,
		Qualified: qualified,
		Kind:      models.EntityFunction,
		StartLine: startLine(node),
		EndLine:   endLine(node),
		Signature: signature,
	})
	result.Relations = append(result.Relations, RawRelation{
		FromQualified: scope,
		TargetName:    qualified,
		Kind:          models.RelationDefines,
		Line:          startLine(node),
	})

	if body := node.ChildByFieldName("body"); body != nil {
		e.walk(body, code, qualified, "", result)
	}
}

func (e *JavaScriptExtractor) extractClass(node *sitter.Node, code []byte, scope string, result *FileResult) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, code)
	qualified := qualify(scope, name)
	signature := "class " + name

	// class_heritage holds "extends Base"
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "class_heritage" {
			continue
		}
		signature += " " + nodeText(child, code)
		for j := 0; j < int(child.ChildCount()); j++ {
			base := child.Child(j)
			switch base.Type() {
			case "identifier", "member_expression":
				result.Relations = append(result.Relations, RawRelation{
					FromQualified: qualified,
					TargetName:    calleeName(nodeText(base, code)),
					Kind:          models.RelationInherits,
					Line:          startLine(node),
				})
			}
		}
	}

	result.Entities = append(result.Entities, RawEntity{
		Name:      name,
		Qualified: qualified,
		Kind:      models.EntityClass,
		StartLine: startLine(node),
		EndLine:   endLine(node),
		Signature: signature,
	})
	result.Relations = append(result.Relations, RawRelation{
		FromQualified: scope,
		TargetName:    qualified,
		Kind:          models.RelationDefines,
		Line:          startLine(node),
	})

	if body := node.ChildByFieldName("body"); body != nil {
		e.walk(body, code, qualified, "", result)
	}
}

func (e *JavaScriptExtractor) extractMethod(node *sitter.Node, code []byte, scope string, result *FileResult) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, code)
	qualified := qualify(scope, name)

	signature := name
	if params := node.ChildByFieldName("parameters"); params != nil {
		signature += nodeText(params, code)
	}

	result.Entities = append(result.Entities, RawEntity{
		Name:      name,
		Qualified: qualified,
		Kind:      models.EntityFunction,
		StartLine: startLine(node),
		EndLine:   endLine(node),
		Signature: signature,
	})
	result.Relations = append(result.Relations, RawRelation{
		FromQualified: scope,
		TargetName:    qualified,
		Kind:          models.RelationDefines,
		Line:          startLine(node),
	})

	if body := node.ChildByFieldName("body"); body != nil {
		e.walk(body, code, qualified, "", result)
	}
}

// extractVariables emits variable entities for module-scope declarations.
// Function-valued declarations (arrow functions) count as functions.
func (e *JavaScriptExtractor) extractVariables(node *sitter.Node, code []byte, scope string, result *FileResult) {
	if scope != "" {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		decl := node.Child(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		nameNode := decl.ChildByFieldName("name")
		if nameNode == nil || nameNode.Type() != "identifier" {
			continue
		}
		name := nodeText(nameNode, code)
		kind := models.EntityVariable
		if value := decl.ChildByFieldName("value"); value != nil {
			if t := value.Type(); t == "arrow_function" || t == "function_expression" || t == "function" {
				kind = models.EntityFunction
			}
		}
		result.Entities = append(result.Entities, RawEntity{
			Name:      name,
			Qualified: name,
			Kind:      kind,
			StartLine: startLine(decl),
			EndLine:   endLine(decl),
			Signature: firstLine(nodeText(decl, code)),
		})
		result.Relations = append(result.Relations, RawRelation{
			FromQualified: "",
			TargetName:    name,
			Kind:          models.RelationDefines,
			Line:          startLine(decl),
		})
		if value := decl.ChildByFieldName("value"); value != nil {
			if t := value.Type(); t == "arrow_function" || t == "function_expression" || t == "function" {
				if body := value.ChildByFieldName("body"); body != nil {
					e.walk(body, code, name, "", result)
				}
			}
		}
	}
}

func (e *JavaScriptExtractor) collectCalls(node *sitter.Node, code []byte, scope string, result *FileResult) {
	switch node.Type() {
	case "function_declaration":
		e.extractFunction(node, code, scope, result)
		return
	case "class_declaration":
		e.extractClass(node, code, scope, result)
		return
	case "method_definition":
		e.extractMethod(node, code, scope, result)
		return
	case "call_expression":
		if fn := node.ChildByFieldName("function"); fn != nil {
			if target := calleeName(nodeText(fn, code)); target != "" {
				result.Relations = append(result.Relations, RawRelation{
					FromQualified: scope,
					TargetName:    target,
					Kind:          models.RelationCalls,
					Line:          startLine(node),
				})
			}
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		e.collectCalls(node.Child(i), code, scope, result)
	}
}
