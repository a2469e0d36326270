package app

import (
	"github.com/promptscript-lang/promptscript-go/pkg/ast"
	"github.com/promptscript-lang/promptscript-go/pkg/resolver"
)

// resolvedOutput is the serialized form of a resolution result, shared
// by the yaml and json renderers.
type resolvedOutput struct {
	Meta    map[string]string `yaml:"meta,omitempty" json:"meta,omitempty"`
	Blocks  []blockOutput     `yaml:"blocks" json:"blocks"`
	Sources []string          `yaml:"sources" json:"sources"`
}

type blockOutput struct {
	Name       string         `yaml:"name" json:"name"`
	Text       string         `yaml:"text,omitempty" json:"text,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty" json:"properties,omitempty"`
	Items      []any          `yaml:"items,omitempty" json:"items,omitempty"`
}

func renderResult(result *resolver.Result) resolvedOutput {
	doc := result.AST
	out := resolvedOutput{
		Meta:    doc.Meta,
		Blocks:  make([]blockOutput, 0, len(doc.Blocks)),
		Sources: result.Sources,
	}
	for _, b := range doc.Blocks {
		out.Blocks = append(out.Blocks, renderBlock(b))
	}
	return out
}

func renderBlock(b ast.Block) blockOutput {
	out := blockOutput{Name: b.Name}
	switch c := b.Content.(type) {
	case ast.TextContent:
		out.Text = c.Value
	case ast.ObjectContent:
		out.Properties = renderProps(c.Props)
	case ast.ArrayContent:
		out.Items = renderItems(c.Items)
	case ast.MixedContent:
		out.Text = c.Text
		out.Properties = renderProps(c.Props)
	}
	return out
}

func renderProps(props map[string]ast.Value) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = renderValue(v)
	}
	return out
}

func renderItems(items []ast.Value) []any {
	out := make([]any, 0, len(items))
	for _, v := range items {
		out = append(out, renderValue(v))
	}
	return out
}

func renderValue(v ast.Value) any {
	switch v := v.(type) {
	case ast.StringValue:
		return v.Value
	case ast.NumberValue:
		return v.Value
	case ast.BoolValue:
		return v.Value
	case ast.NullValue:
		return nil
	case ast.TextValue:
		return v.Value
	case ast.TypeExprValue:
		return v.Expr
	case ast.ArrayValue:
		return renderItems(v.Items)
	case ast.ObjectValue:
		return renderProps(v.Props)
	default:
		return nil
	}
}
