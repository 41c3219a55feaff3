package treesitter

import (
	"testing"

	"github.com/codeatlas-ai/codeatlas/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findEntity(t *testing.T, result *FileResult, qualified string) RawEntity {
	t.Helper()
	for _, e := range result.Entities {
		if e.Qualified == qualified {
			return e
		}
	}
	t.Fatalf("entity %q not extracted; have %+v", qualified, result.Entities)
	return RawEntity{}
}

func hasRelation(result *FileResult, from, target string, kind models.RelationKind) bool {
	for _, r := range result.Relations {
		if r.FromQualified == from && r.TargetName == target && r.Kind == kind {
			return true
		}
	}
	return false
}

const pythonSource = `import json
from os import path

VERSION = "1.0"

class Engine(Base):
    def run(self):
        self.step()

@cached
def helper(count: int) -> str:
    return json.dumps({"n": count})
`

func TestPythonExtract(t *testing.T) {
	result, err := ParseFile("pkg/app.py", []byte(pythonSource))
	require.NoError(t, err)

	assert.Equal(t, "python", result.Language)
	assert.Equal(t, "pkg.app", result.Module)

	mod := findEntity(t, result, "pkg.app")
	assert.Equal(t, models.EntityModule, mod.Kind)
	assert.Equal(t, "app", mod.Name)

	version := findEntity(t, result, "VERSION")
	assert.Equal(t, models.EntityVariable, version.Kind)

	engine := findEntity(t, result, "Engine")
	assert.Equal(t, models.EntityClass, engine.Kind)
	assert.Contains(t, engine.Signature, "class Engine")

	run := findEntity(t, result, "Engine.run")
	assert.Equal(t, models.EntityFunction, run.Kind)
	assert.Contains(t, run.Signature, "def run(self)")

	helper := findEntity(t, result, "helper")
	assert.Contains(t, helper.Signature, "-> str")
}

func TestPythonRelations(t *testing.T) {
	result, err := ParseFile("app.py", []byte(pythonSource))
	require.NoError(t, err)

	assert.True(t, hasRelation(result, "", "json", models.RelationImports))
	assert.True(t, hasRelation(result, "", "os", models.RelationImports))
	assert.True(t, hasRelation(result, "Engine", "Base", models.RelationInherits))
	assert.True(t, hasRelation(result, "Engine.run", "step", models.RelationCalls))
	assert.True(t, hasRelation(result, "helper", "dumps", models.RelationCalls))
	assert.True(t, hasRelation(result, "helper", "cached", models.RelationReferences))
	assert.True(t, hasRelation(result, "", "Engine", models.RelationDefines))
	assert.True(t, hasRelation(result, "Engine", "Engine.run", models.RelationDefines))
}

func TestPythonNestedControlFlow(t *testing.T) {
	source := `def main():
    for i in range(3):
        if i:
            process(i)
`
	result, err := ParseFile("loop.py", []byte(source))
	require.NoError(t, err)

	assert.True(t, hasRelation(result, "main", "range", models.RelationCalls))
	assert.True(t, hasRelation(result, "main", "process", models.RelationCalls))
}

func TestPythonAliasedImport(t *testing.T) {
	result, err := ParseFile("a.py", []byte("import numpy as np\n"))
	require.NoError(t, err)
	assert.True(t, hasRelation(result, "", "numpy", models.RelationImports))
}

func TestModuleName(t *testing.T) {
	assert.Equal(t, "pkg.util.io", moduleName("pkg/util/io.py"))
	assert.Equal(t, "pkg", moduleName("pkg/__init__.py"))
	assert.Equal(t, "lib", moduleName("lib/index.js"))
}

func TestExtractorFor(t *testing.T) {
	assert.NotNil(t, ExtractorFor("x.py"))
	assert.NotNil(t, ExtractorFor("x.mjs"))
	assert.Nil(t, ExtractorFor("x.go"))
	assert.Nil(t, ExtractorFor("README.md"))
}
