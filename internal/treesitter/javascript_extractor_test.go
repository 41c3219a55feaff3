package treesitter

import (
	"testing"

	"github.com/codeatlas-ai/codeatlas/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsSource = `import { helper } from './util.js';
import express from 'express';

const VERSION = "1.0";
const add = (a, b) => a + b;

class Engine extends Base {
  run() {
    helper();
  }
}

export function main() {
  return add(1, 2);
}
`

func TestJavaScriptExtract(t *testing.T) {
	result, err := ParseFile("src/app.js", []byte(jsSource))
	require.NoError(t, err)

	assert.Equal(t, "javascript", result.Language)
	assert.Equal(t, "src.app", result.Module)

	version := findEntity(t, result, "VERSION")
	assert.Equal(t, models.EntityVariable, version.Kind)

	// Arrow-function values count as functions, not variables.
	add := findEntity(t, result, "add")
	assert.Equal(t, models.EntityFunction, add.Kind)

	engine := findEntity(t, result, "Engine")
	assert.Equal(t, models.EntityClass, engine.Kind)
	assert.Contains(t, engine.Signature, "extends Base")

	run := findEntity(t, result, "Engine.run")
	assert.Equal(t, models.EntityFunction, run.Kind)

	main := findEntity(t, result, "main")
	assert.Equal(t, models.EntityFunction, main.Kind)
}

func TestJavaScriptRelations(t *testing.T) {
	result, err := ParseFile("src/app.js", []byte(jsSource))
	require.NoError(t, err)

	// Relative imports resolve to repository module paths; bare package
	// names stay as-is.
	assert.True(t, hasRelation(result, "", "src.util", models.RelationImports))
	assert.True(t, hasRelation(result, "", "express", models.RelationImports))

	assert.True(t, hasRelation(result, "Engine", "Base", models.RelationInherits))
	assert.True(t, hasRelation(result, "Engine.run", "helper", models.RelationCalls))
	assert.True(t, hasRelation(result, "main", "add", models.RelationCalls))
	assert.True(t, hasRelation(result, "", "Engine", models.RelationDefines))
	assert.True(t, hasRelation(result, "Engine", "Engine.run", models.RelationDefines))
}

func TestJavaScriptMemberCall(t *testing.T) {
	source := `function save(data) {
  db.users.insert(data);
}
`
	result, err := ParseFile("store.js", []byte(source))
	require.NoError(t, err)
	assert.True(t, hasRelation(result, "save", "insert", models.RelationCalls))
}
