package resolver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptscript-lang/promptscript-go/internal/registry"
	"github.com/promptscript-lang/promptscript-go/pkg/ast"
)

func newTestRegistry(t *testing.T, docs map[string]string) registry.Registry {
	t.Helper()
	root := t.TempDir()
	for rel, src := range docs {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
		require.NoError(t, os.WriteFile(full, []byte(src), 0o600))
	}
	return registry.NewFileSystemRegistry("test", root, "")
}

func resolveOK(t *testing.T, r *Resolver, entry string) *Result {
	t.Helper()
	result, err := r.Resolve(context.Background(), entry)
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.NotNil(t, result.AST)
	return result
}

func TestResolve_InheritChain(t *testing.T) {
	t.Parallel()

	r := New(newTestRegistry(t, map[string]string{
		"a.prs": `
@meta { id: "base", version: "1.0.0" }
@identity """Base identity"""
@standards { tone: "formal" }
`,
		"b.prs": `
@inherit ./a
@standards { style: "terse" }
`,
		"c.prs": `
@inherit ./b
@meta { id: "leaf" }
@identity """Base identity plus specifics"""
`,
	}))

	result := resolveOK(t, r, "c")
	doc := result.AST

	assert.Equal(t, []string{"c.prs", "b.prs", "a.prs"}, result.Sources)
	assert.Nil(t, doc.Inherit, "inherit is consumed during resolution")

	// Child metadata wins per key, ancestor keys survive.
	assert.Equal(t, "leaf", doc.Meta["id"])
	assert.Equal(t, "1.0.0", doc.Meta["version"])

	// Ancestor order is preserved; same-named descendant text merges by
	// containment without duplication.
	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, "identity", doc.Blocks[0].Name)
	assert.Equal(t, ast.TextContent{Value: "Base identity plus specifics"}, doc.Blocks[0].Content)

	standards, ok := doc.Blocks[1].Content.(ast.ObjectContent)
	require.True(t, ok)
	assert.Equal(t, ast.StringValue{Value: "formal"}, standards.Props["tone"])
	assert.Equal(t, ast.StringValue{Value: "terse"}, standards.Props["style"])
}

func TestResolve_InheritedArrayMergesUnique(t *testing.T) {
	t.Parallel()

	r := New(newTestRegistry(t, map[string]string{
		"a.prs": `
@restrictions {
  - Rule A
}
`,
		"b.prs": `
@inherit ./a
@restrictions {
  - Rule B
  - Rule A
}
`,
	}))

	result := resolveOK(t, r, "b")

	restrictions, ok := result.AST.Blocks[0].Content.(ast.ArrayContent)
	require.True(t, ok)
	assert.Equal(t, []ast.Value{
		ast.StringValue{Value: "Rule A"},
		ast.StringValue{Value: "Rule B"},
	}, restrictions.Items, "first occurrence order, duplicates dropped")
}

func TestResolve_BasePathAppliesOnlyToEntry(t *testing.T) {
	t.Parallel()

	// shared.prs sits at the registry root like the entry does; its
	// relative inherit must resolve against its own directory, not the
	// configured base path. Only doc.prs routes through lib/.
	r := New(newTestRegistry(t, map[string]string{
		"doc.prs":      "@inherit ./base\n@identity \"\"\"Leaf\"\"\"\n",
		"lib/base.prs": "@inherit ../shared\n",
		"shared.prs":   "@inherit ./common\n",
		"common.prs":   "@standards { tone: \"formal\" }\n",
	}), WithBasePath("lib"))

	result := resolveOK(t, r, "doc")

	assert.Equal(t, []string{"doc.prs", "lib/base.prs", "shared.prs", "common.prs"}, result.Sources)
	standards := result.AST.Block("standards")
	require.NotNil(t, standards)
	props := standards.Content.(ast.ObjectContent).Props
	assert.Equal(t, ast.StringValue{Value: "formal"}, props["tone"])
}

func TestResolve_SelfCycle(t *testing.T) {
	t.Parallel()

	r := New(newTestRegistry(t, map[string]string{
		"a.prs": "@inherit ./a\n",
	}))

	_, err := r.Resolve(context.Background(), "a")

	var cyc *CircularDependencyError
	require.ErrorAs(t, err, &cyc)
	assert.Equal(t, []string{"a.prs", "a.prs"}, cyc.Chain)
}

func TestResolve_TransitiveCycle(t *testing.T) {
	t.Parallel()

	r := New(newTestRegistry(t, map[string]string{
		"a.prs": "@inherit ./b\n",
		"b.prs": "@inherit ./a\n",
	}))

	_, err := r.Resolve(context.Background(), "a")

	var cyc *CircularDependencyError
	require.ErrorAs(t, err, &cyc)
	assert.Equal(t, []string{"a.prs", "b.prs", "a.prs"}, cyc.Chain)
}

func TestResolve_Caching(t *testing.T) {
	t.Parallel()

	docs := map[string]string{
		"x.prs": `@identity """stable"""`,
	}
	ctx := context.Background()

	t.Run("enabled returns the same result object", func(t *testing.T) {
		t.Parallel()

		r := New(newTestRegistry(t, docs))
		first, err := r.Resolve(ctx, "x")
		require.NoError(t, err)
		second, err := r.Resolve(ctx, "x")
		require.NoError(t, err)

		assert.Same(t, first, second)
	})

	t.Run("ClearCache yields a fresh equal result", func(t *testing.T) {
		t.Parallel()

		r := New(newTestRegistry(t, docs))
		first, err := r.Resolve(ctx, "x")
		require.NoError(t, err)
		r.ClearCache()
		second, err := r.Resolve(ctx, "x")
		require.NoError(t, err)

		assert.NotSame(t, first, second)
		assert.Equal(t, first, second)
	})

	t.Run("disabled yields distinct equal results", func(t *testing.T) {
		t.Parallel()

		r := New(newTestRegistry(t, docs), WithCache(false))
		first, err := r.Resolve(ctx, "x")
		require.NoError(t, err)
		second, err := r.Resolve(ctx, "x")
		require.NoError(t, err)

		assert.NotSame(t, first, second)
		assert.Equal(t, first, second)
	})
}

func TestResolve_ExtendCreatesIntermediates(t *testing.T) {
	t.Parallel()

	r := New(newTestRegistry(t, map[string]string{
		"doc.prs": `
@context { existing: "x" }
@extend context.deep.nested.path { content: "new" }
`,
	}))

	result := resolveOK(t, r, "doc")

	contextBlock, ok := result.AST.Block("context").Content.(ast.ObjectContent)
	require.True(t, ok)
	assert.Equal(t, ast.StringValue{Value: "x"}, contextBlock.Props["existing"])

	deep, ok := contextBlock.Props["deep"].(ast.ObjectValue)
	require.True(t, ok, "missing intermediate created as object")
	nested, ok := deep.Props["nested"].(ast.ObjectValue)
	require.True(t, ok)
	leaf, ok := nested.Props["path"].(ast.ObjectValue)
	require.True(t, ok)
	assert.Equal(t, ast.StringValue{Value: "new"}, leaf.Props["content"])
}

func TestResolve_ExtendMissingBlockIsNoOp(t *testing.T) {
	t.Parallel()

	r := New(newTestRegistry(t, map[string]string{
		"doc.prs": `
@identity """unchanged"""
@extend missing { content: "value" }
`,
	}))

	result := resolveOK(t, r, "doc")

	require.Len(t, result.AST.Blocks, 1)
	assert.Equal(t, ast.TextContent{Value: "unchanged"}, result.AST.Blocks[0].Content)
}

func TestResolve_UseMarkersNeverEscape(t *testing.T) {
	t.Parallel()

	r := New(newTestRegistry(t, map[string]string{
		"lib.prs": `
@standards { tone: "formal" }
@identity """library identity"""
`,
		"main.prs": `
@use ./lib as helpers
@identity """main identity"""
@extend helpers.standards { extra: "y" }
`,
	}))

	result := resolveOK(t, r, "main")

	assert.ElementsMatch(t, []string{"main.prs", "lib.prs"}, result.Sources)
	require.Len(t, result.AST.Blocks, 1, "imported blocks are extend targets only")
	assert.Equal(t, "identity", result.AST.Blocks[0].Name)
	for _, b := range result.AST.Blocks {
		assert.False(t, strings.HasPrefix(b.Name, "__import__"), "marker block %s escaped", b.Name)
	}
}

func TestResolve_DuplicateUseAlias(t *testing.T) {
	t.Parallel()

	r := New(newTestRegistry(t, map[string]string{
		"one.prs":  `@standards { a: "1" }`,
		"two.prs":  `@standards { b: "2" }`,
		"main.prs": "@use ./one as lib\n@use ./two as lib\n",
	}))

	result, err := r.Resolve(context.Background(), "main")

	require.NoError(t, err)
	assert.Nil(t, result.AST)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ast.CodeDuplicateAlias, result.Errors[0].Code)
}

func TestResolve_MissingInheritTarget(t *testing.T) {
	t.Parallel()

	r := New(newTestRegistry(t, map[string]string{
		"doc.prs": "@inherit ./absent\n@identity \"\"\"still parsed\"\"\"\n",
	}))

	result, err := r.Resolve(context.Background(), "doc")

	require.NoError(t, err)
	assert.Nil(t, result.AST, "error diagnostics force a nil document")
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ast.CodeFileNotFound, result.Errors[0].Code)
	assert.Equal(t, []string{"doc.prs"}, result.Sources, "sources still list what was visited")
}

func TestResolve_MissingUseTargetDoesNotBlockSiblings(t *testing.T) {
	t.Parallel()

	r := New(newTestRegistry(t, map[string]string{
		"lib.prs":  `@standards { tone: "formal" }`,
		"main.prs": "@use ./absent as gone\n@use ./lib as lib\n",
	}))

	result, err := r.Resolve(context.Background(), "main")

	require.NoError(t, err)
	assert.Nil(t, result.AST)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ast.CodeFileNotFound, result.Errors[0].Code)
	assert.ElementsMatch(t, []string{"main.prs", "lib.prs"}, result.Sources,
		"the healthy sibling import is still resolved")
}

func TestResolve_ParseErrorsBecomeDiagnostics(t *testing.T) {
	t.Parallel()

	r := New(newTestRegistry(t, map[string]string{
		"doc.prs": "@identity \"\"\"unterminated\n",
	}))

	result, err := r.Resolve(context.Background(), "doc")

	require.NoError(t, err)
	assert.Nil(t, result.AST)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, ast.CodeParseError, result.Errors[0].Code)
}

func TestResolve_NestedRelativeReferences(t *testing.T) {
	t.Parallel()

	r := New(newTestRegistry(t, map[string]string{
		"org/base.prs":     `@identity """org base"""`,
		"org/team/doc.prs": "@inherit ../base\n@standards { style: \"terse\" }\n",
	}))

	result := resolveOK(t, r, "org/team/doc")

	assert.Equal(t, []string{"org/team/doc.prs", "org/base.prs"}, result.Sources)
	require.NotNil(t, result.AST.Block("identity"))
	require.NotNil(t, result.AST.Block("standards"))
}

func TestResolve_AbsoluteReference(t *testing.T) {
	t.Parallel()

	r := New(newTestRegistry(t, map[string]string{
		"acme/base.prs": `@identity """acme base"""`,
		"doc.prs":       "@inherit @acme/base\n",
	}))

	result := resolveOK(t, r, "doc")

	assert.Equal(t, []string{"doc.prs", "acme/base.prs"}, result.Sources)
	assert.Equal(t, ast.TextContent{Value: "acme base"}, result.AST.Block("identity").Content)
}

func TestResolve_ContextCancellation(t *testing.T) {
	t.Parallel()

	r := New(newTestRegistry(t, map[string]string{
		"doc.prs": `@identity """x"""`,
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, "doc")

	require.ErrorIs(t, err, context.Canceled)
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"doc", "doc.prs"},
		{"/doc", "doc.prs"},
		{"doc.prs", "doc.prs"},
		{"org\\team\\doc", "org/team/doc.prs"},
		{"org//team/doc", "org/team/doc.prs"},
		{"acme/pkg@2.0.0", "acme/pkg.prs@2.0.0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.in), "input %q", tt.in)
	}
}
