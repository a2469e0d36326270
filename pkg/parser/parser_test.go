package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptscript-lang/promptscript-go/pkg/ast"
)

func TestParse_FullDocument(t *testing.T) {
	t.Parallel()

	src := `# Assistant definition
@meta {
  id: "acme-assistant"
  version: 1.0.0
  author: "Platform Team"
}

@inherit @acme/base@1.0.0

@use @acme/security as sec
@use ./helpers

@identity """
You are a careful assistant.
"""

@standards {
  style: "strict"
  max_tokens: 4096
  enabled: true
  temperature: null
  level: enum(low, medium, high)
}

@restrictions [
  "never share credentials",
  "never run destructive commands",
]

@extend sec.rules {
  audit: "always"
}
`

	doc, diags := Parse(src, "assistant.prs")

	require.NotNil(t, doc)
	require.Empty(t, diags)

	assert.Equal(t, "acme-assistant", doc.Meta["id"])
	assert.Equal(t, "1.0.0", doc.Meta["version"])
	assert.Equal(t, "Platform Team", doc.Meta["author"])

	require.NotNil(t, doc.Inherit)
	assert.Equal(t, "@acme/base@1.0.0", doc.Inherit.Ref.Raw)
	assert.Equal(t, "1.0.0", doc.Inherit.Ref.Version)

	require.Len(t, doc.Uses, 2)
	assert.Equal(t, "sec", doc.Uses[0].Alias)
	assert.Equal(t, "helpers", doc.Uses[1].Alias, "alias defaults to the last segment")

	identity := doc.Block("identity")
	require.NotNil(t, identity)
	assert.Equal(t, ast.TextContent{Value: "You are a careful assistant."}, identity.Content)

	standards := doc.Block("standards")
	require.NotNil(t, standards)
	props := standards.Content.(ast.ObjectContent).Props
	assert.Equal(t, ast.StringValue{Value: "strict"}, props["style"])
	assert.Equal(t, ast.NumberValue{Value: 4096}, props["max_tokens"])
	assert.Equal(t, ast.BoolValue{Value: true}, props["enabled"])
	assert.Equal(t, ast.NullValue{}, props["temperature"])
	assert.Equal(t, ast.TypeExprValue{Expr: "enum(low, medium, high)"}, props["level"])

	restrictions := doc.Block("restrictions")
	require.NotNil(t, restrictions)
	items := restrictions.Content.(ast.ArrayContent).Items
	require.Len(t, items, 2)
	assert.Equal(t, ast.StringValue{Value: "never share credentials"}, items[0])

	require.Len(t, doc.Extends, 1)
	assert.Equal(t, "sec.rules", doc.Extends[0].Target)
	extendProps := doc.Extends[0].Content.(ast.ObjectContent).Props
	assert.Equal(t, ast.StringValue{Value: "always"}, extendProps["audit"])
}

func TestParse_InlineCommaSeparatedProps(t *testing.T) {
	t.Parallel()

	src := `@meta { id: "base", version: "1.0.0" }
@standards { tone: "formal", limits: { max_tokens: 4096, strict: true }, tags: ["a", "b"], }
`

	doc, diags := Parse(src, "inline.prs")

	require.NotNil(t, doc)
	require.Empty(t, diags)

	assert.Equal(t, "base", doc.Meta["id"])
	assert.Equal(t, "1.0.0", doc.Meta["version"])

	props := doc.Block("standards").Content.(ast.ObjectContent).Props
	assert.Equal(t, ast.StringValue{Value: "formal"}, props["tone"])
	limits, ok := props["limits"].(ast.ObjectValue)
	require.True(t, ok)
	assert.Equal(t, ast.NumberValue{Value: 4096}, limits.Props["max_tokens"])
	assert.Equal(t, ast.BoolValue{Value: true}, limits.Props["strict"])
	tags, ok := props["tags"].(ast.ArrayValue)
	require.True(t, ok)
	assert.Equal(t, []ast.Value{ast.StringValue{Value: "a"}, ast.StringValue{Value: "b"}}, tags.Items)
}

func TestParse_MixedBlock(t *testing.T) {
	t.Parallel()

	src := `@context {
  """
  Project background prose.
  """
  repository: "github.com/acme/app"
}
`

	doc, diags := Parse(src, "mixed.prs")

	require.NotNil(t, doc)
	require.Empty(t, diags)
	block := doc.Block("context")
	require.NotNil(t, block)
	mixed, ok := block.Content.(ast.MixedContent)
	require.True(t, ok)
	assert.Equal(t, "Project background prose.", mixed.Text)
	assert.Equal(t, ast.StringValue{Value: "github.com/acme/app"}, mixed.Props["repository"])
}

func TestParse_DashListBody(t *testing.T) {
	t.Parallel()

	src := `@restrictions {
  - no credentials in output
  - no destructive commands
}
`

	doc, diags := Parse(src, "dash.prs")

	require.NotNil(t, doc)
	require.Empty(t, diags)
	block := doc.Block("restrictions")
	require.NotNil(t, block)
	items := block.Content.(ast.ArrayContent).Items
	require.Len(t, items, 2)
	assert.Equal(t, ast.StringValue{Value: "no credentials in output"}, items[0])
	assert.Equal(t, ast.StringValue{Value: "no destructive commands"}, items[1])
}

func TestParse_NestedValues(t *testing.T) {
	t.Parallel()

	src := `@agents {
  reviewer: {
    model: "gpt"
    tools: ["search", "edit"]
  }
}
`

	doc, diags := Parse(src, "nested.prs")

	require.NotNil(t, doc)
	require.Empty(t, diags)
	props := doc.Block("agents").Content.(ast.ObjectContent).Props
	reviewer, ok := props["reviewer"].(ast.ObjectValue)
	require.True(t, ok)
	assert.Equal(t, ast.StringValue{Value: "gpt"}, reviewer.Props["model"])
	tools, ok := reviewer.Props["tools"].(ast.ArrayValue)
	require.True(t, ok)
	require.Len(t, tools.Items, 2)
}

func TestParse_InterpolationKeptLiteral(t *testing.T) {
	t.Parallel()

	src := `@env {
  home: "${HOME}"
  level: "${LOG_LEVEL:-info}"
}
`

	doc, diags := Parse(src, "env.prs")

	require.NotNil(t, doc)
	require.Empty(t, diags)
	props := doc.Block("env").Content.(ast.ObjectContent).Props
	assert.Equal(t, ast.StringValue{Value: "${HOME}"}, props["home"])
	assert.Equal(t, ast.StringValue{Value: "${LOG_LEVEL:-info}"}, props["level"])
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		src          string
		wantCode     string
		wantContains string
	}{
		{
			name:         "second inherit rejected",
			src:          "@inherit ./a\n@inherit ./b\n",
			wantCode:     ast.CodeParseError,
			wantContains: "at most one @inherit",
		},
		{
			name:         "invalid reference",
			src:          "@inherit nowhere\n",
			wantCode:     ast.CodeInvalidPath,
			wantContains: "invalid path reference",
		},
		{
			name:         "unterminated block",
			src:          "@identity {\n  style: \"x\"\n",
			wantCode:     ast.CodeParseError,
			wantContains: "missing }",
		},
		{
			name:         "unterminated text",
			src:          "@identity \"\"\"\nno end\n",
			wantCode:     ast.CodeParseError,
			wantContains: `missing closing """`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, diags := Parse(tt.src, "bad.prs")

			require.NotEmpty(t, diags)
			assert.Equal(t, tt.wantCode, diags[0].Code)
			assert.Contains(t, diags[0].Message, tt.wantContains)
			require.NotNil(t, diags[0].Location)
			assert.Equal(t, "bad.prs", diags[0].Location.File)
		})
	}
}

func TestParse_RecoversAfterBadDirective(t *testing.T) {
	t.Parallel()

	src := `@broken {
  key value-without-colon
@standards {
  style: "strict"
}
`

	doc, diags := Parse(src, "recover.prs")

	require.NotNil(t, doc)
	require.NotEmpty(t, diags, "the broken block must be reported")
	require.NotNil(t, doc.Block("standards"), "parsing must continue at the next directive")
}

func TestParse_NothingUsable(t *testing.T) {
	t.Parallel()

	doc, diags := Parse("not promptscript at all", "junk.prs")

	assert.Nil(t, doc)
	require.NotEmpty(t, diags)
	assert.True(t, ast.HasErrors(diags))
}
