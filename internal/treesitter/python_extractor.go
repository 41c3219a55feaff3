package treesitter

import (
	"context"
	"fmt"

	"github.com/codeatlas-ai/codeatlas/internal/models"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonExtractor extracts entities and relations from Python source using
// tree-sitter. Each Extract call creates its own parser instance, so a
// single PythonExtractor is safe for concurrent use.
type PythonExtractor struct{}

func (e *PythonExtractor) Language() string { return "python" }

func (e *PythonExtractor) Extensions() []string { return []string{".py", ".pyi"} }

// Extract parses Python source and emits one entity per module, class,
// function, and module-scope variable, plus unresolved relations for
// imports, calls, inheritance, defines, and decorator references.
func (e *PythonExtractor) Extract(filePath string, code []byte) (*FileResult, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

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
		Language: "python",
		Module:   mod,
	}
	result.Entities = append(result.Entities, RawEntity{
		Name:      lastSegment(mod),
		Qualified: mod,
		Kind:      models.EntityModule,
		StartLine: 1,
		EndLine:   endLine(root),
	})

	e.walkBody(root, code, "", result)
	return result, nil
}

// walkBody processes the statements of a module, class, or function body.
// scope is the qualified name of the enclosing declaration ("" = module).
func (e *PythonExtractor) walkBody(node *sitter.Node, code []byte, scope string, result *FileResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import_statement":
			e.extractImport(child, code, result)
		case "import_from_statement":
			e.extractImportFrom(child, code, result)
		case "decorated_definition":
			e.extractDecorated(child, code, scope, result)
		case "class_definition":
			e.extractClass(child, code, scope, result)
		case "function_definition":
			e.extractFunction(child, code, scope, result)
		case "expression_statement":
			if scope == "" {
				e.extractModuleVariable(child, code, result)
			}
			e.collectCalls(child, code, scope, result)
		default:
			// Statements with nested bodies (if/for/while/try/with) still
			// contain calls and nested definitions.
			e.collectCalls(child, code, scope, result)
		}
	}
}

// extractImport handles "import foo" and "import foo.bar as baz".
func (e *PythonExtractor) extractImport(node *sitter.Node, code []byte, result *FileResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			e.addImport(node, nodeText(child, code), result)
		case "aliased_import":
			if name := child.ChildByFieldName("name"); name != nil {
				e.addImport(node, nodeText(name, code), result)
			}
		}
	}
}

// extractImportFrom handles "from foo.bar import baz".
func (e *PythonExtractor) extractImportFrom(node *sitter.Node, code []byte, result *FileResult) {
	if mod := node.ChildByFieldName("module_name"); mod != nil {
		e.addImport(node, nodeText(mod, code), result)
	}
}

func (e *PythonExtractor) addImport(node *sitter.Node, target string, result *FileResult) {
	if target == "" {
		return
	}
	result.Relations = append(result.Relations, RawRelation{
		FromQualified: "",
		TargetName:    target,
		Kind:          models.RelationImports,
		Line:          startLine(node),
	})
}

// extractDecorated peels decorators off a decorated definition, recording
// each decorator as a reference from the decorated declaration's scope.
func (e *PythonExtractor) extractDecorated(node *sitter.Node, code []byte, scope string, result *FileResult) {
	var decorators []string
	var decoratorLines []int
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "decorator":
			decorators = append(decorators, decoratorTarget(child, code))
			decoratorLines = append(decoratorLines, startLine(child))
		case "class_definition":
			qualified := e.extractClass(child, code, scope, result)
			e.addDecoratorRefs(qualified, decorators, decoratorLines, result)
		case "function_definition":
			qualified := e.extractFunction(child, code, scope, result)
			e.addDecoratorRefs(qualified, decorators, decoratorLines, result)
		}
	}
}

func (e *PythonExtractor) addDecoratorRefs(from string, names []string, lines []int, result *FileResult) {
	for i, name := range names {
		if name == "" {
			continue
		}
		result.Relations = append(result.Relations, RawRelation{
			FromQualified: from,
			TargetName:    name,
			Kind:          models.RelationReferences,
			Line:          lines[i],
		})
	}
}

// decoratorTarget extracts the name referenced by a decorator, stripping
// any call arguments: "@app.route(...)" -> "route".
func decoratorTarget(node *sitter.Node, code []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier", "dotted_name":
			return calleeName(nodeText(child, code))
		case "call":
			if fn := child.ChildByFieldName("function"); fn != nil {
				return calleeName(nodeText(fn, code))
			}
		case "attribute":
			if attr := child.ChildByFieldName("attribute"); attr != nil {
				return nodeText(attr, code)
			}
		}
	}
	return ""
}

// extractClass emits a class entity, its inherits relations, and recurses
// into the body. Returns the qualified class name.
func (e *PythonExtractor) extractClass(node *sitter.Node, code []byte, scope string, result *FileResult) string {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	name := nodeText(nameNode, code)
	qualified := qualify(scope, name)

	signature := "class " + name
	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		signature += nodeText(supers, code)
		for i := 0; i < int(supers.ChildCount()); i++ {
			base := supers.Child(i)
			switch base.Type() {
			case "identifier", "attribute", "dotted_name":
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
		e.walkBody(body, code, qualified, result)
	}
	return qualified
}

// extractFunction emits a function entity and collects the calls made in
// its body. Returns the qualified function name.
func (e *PythonExtractor) extractFunction(node *sitter.Node, code []byte, scope string, result *FileResult) string {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	name := nodeText(nameNode, code)
	qualified := qualify(scope, name)

	signature := "def " + name
	if params := node.ChildByFieldName("parameters"); params != nil {
		signature += nodeText(params, code)
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		signature += " -> " + nodeText(ret, code)
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
		e.walkBody(body, code, qualified, result)
	}
	return qualified
}

// extractModuleVariable emits a variable entity for a module-scope
// assignment with a plain identifier target.
func (e *PythonExtractor) extractModuleVariable(stmt *sitter.Node, code []byte, result *FileResult) {
	for i := 0; i < int(stmt.ChildCount()); i++ {
		assign := stmt.Child(i)
		if assign.Type() != "assignment" {
			continue
		}
		left := assign.ChildByFieldName("left")
		if left == nil || left.Type() != "identifier" {
			continue
		}
		name := nodeText(left, code)
		result.Entities = append(result.Entities, RawEntity{
			Name:      name,
			Qualified: name,
			Kind:      models.EntityVariable,
			StartLine: startLine(assign),
			EndLine:   endLine(assign),
			Signature: firstLine(nodeText(assign, code)),
		})
		result.Relations = append(result.Relations, RawRelation{
			FromQualified: "",
			TargetName:    name,
			Kind:          models.RelationDefines,
			Line:          startLine(assign),
		})
	}
}

// collectCalls records a calls relation for every call expression in the
// subtree, attributed to the enclosing scope. Nested definitions are handled
// by walkBody, which re-scopes before descending, so they are skipped here.
func (e *PythonExtractor) collectCalls(node *sitter.Node, code []byte, scope string, result *FileResult) {
	switch node.Type() {
	case "function_definition":
		e.extractFunction(node, code, scope, result)
		return
	case "class_definition":
		e.extractClass(node, code, scope, result)
		return
	case "decorated_definition":
		e.extractDecorated(node, code, scope, result)
		return
	case "call":
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
