// Package merge combines two content trees by explicit per-kind rules.
// The child side wins on conflict. Merging never mutates its inputs:
// every non-primitive output is a deep clone, so no subtree is aliased
// between parent, child, and result.
package merge

import (
	"strings"

	"github.com/promptscript-lang/promptscript-go/pkg/ast"
)

// ArrayStrategy selects how two arrays combine.
type ArrayStrategy string

const (
	// ArrayUnique concatenates parent then child and drops later
	// structural duplicates, keeping first-occurrence order.
	ArrayUnique ArrayStrategy = "unique"

	// ArrayConcat appends child items after parent items.
	ArrayConcat ArrayStrategy = "concat"

	// ArrayReplace discards the parent array entirely.
	ArrayReplace ArrayStrategy = "replace"
)

// TextStrategy selects how two text bodies combine.
type TextStrategy string

const (
	// TextConcat joins parent then child with the separator, unless one
	// side already contains the other.
	TextConcat TextStrategy = "concat"

	// TextPrepend joins child then parent with the separator, with the
	// same containment rules.
	TextPrepend TextStrategy = "prepend"

	// TextReplace discards the parent text entirely.
	TextReplace TextStrategy = "replace"
)

// DefaultTextSeparator joins concatenated text bodies.
const DefaultTextSeparator = "\n\n"

// Options controls merge behavior. The zero value is not usable; use
// DefaultOptions as a starting point.
type Options struct {
	ArrayStrategy ArrayStrategy
	TextStrategy  TextStrategy
	TextSeparator string
}

// DefaultOptions returns the default strategies: unique arrays, text
// concatenation with a blank-line separator.
func DefaultOptions() Options {
	return Options{
		ArrayStrategy: ArrayUnique,
		TextStrategy:  TextConcat,
		TextSeparator: DefaultTextSeparator,
	}
}

func (o Options) normalized() Options {
	if o.ArrayStrategy == "" {
		o.ArrayStrategy = ArrayUnique
	}
	if o.TextStrategy == "" {
		o.TextStrategy = TextConcat
	}
	if o.TextSeparator == "" {
		o.TextSeparator = DefaultTextSeparator
	}
	return o
}

// Merge combines two block contents. A nil side yields a clone of the
// other. Mismatched kinds follow the per-kind rules: arrays win or lose
// wholesale against non-arrays, text plus object produces mixed
// content, and otherwise the child's shape wins.
func Merge(parent, child ast.Content, opts Options) ast.Content {
	opts = opts.normalized()

	if parent == nil {
		if child == nil {
			return nil
		}
		return child.Clone()
	}
	if child == nil {
		return parent.Clone()
	}

	switch p := parent.(type) {
	case ast.TextContent:
		switch c := child.(type) {
		case ast.TextContent:
			return ast.TextContent{Value: mergeText(p.Value, c.Value, opts)}
		case ast.ObjectContent:
			// Text plus plain object: text from the text side,
			// properties from the object side.
			return ast.MixedContent{Text: p.Value, Props: cloneProps(c.Props)}
		case ast.MixedContent:
			return ast.MixedContent{
				Text:  mergeOptionalText(p.Value, c.Text, opts),
				Props: cloneProps(c.Props),
			}
		case ast.ArrayContent:
			return child.Clone()
		}
	case ast.ObjectContent:
		switch c := child.(type) {
		case ast.ObjectContent:
			return ast.ObjectContent{Props: mergeProps(p.Props, c.Props, opts)}
		case ast.TextContent:
			return ast.MixedContent{Text: c.Value, Props: cloneProps(p.Props)}
		case ast.MixedContent:
			return ast.MixedContent{Text: c.Text, Props: mergeProps(p.Props, c.Props, opts)}
		case ast.ArrayContent:
			return child.Clone()
		}
	case ast.ArrayContent:
		if c, ok := child.(ast.ArrayContent); ok {
			return ast.ArrayContent{Items: mergeArrays(p.Items, c.Items, opts)}
		}
		// Array against any other kind: the child's shape wins outright.
		return child.Clone()
	case ast.MixedContent:
		switch c := child.(type) {
		case ast.MixedContent:
			return ast.MixedContent{
				Text:  mergeOptionalText(p.Text, c.Text, opts),
				Props: mergeProps(p.Props, c.Props, opts),
			}
		case ast.TextContent:
			return ast.MixedContent{
				Text:  mergeOptionalText(p.Text, c.Value, opts),
				Props: cloneProps(p.Props),
			}
		case ast.ObjectContent:
			return ast.MixedContent{Text: p.Text, Props: mergeProps(p.Props, c.Props, opts)}
		case ast.ArrayContent:
			return child.Clone()
		}
	}
	return child.Clone()
}

// MergeValues combines two property values. A nil child means no value
// was supplied and the parent survives; an explicit ast.NullValue
// always overrides.
func MergeValues(parent, child ast.Value, opts Options) ast.Value {
	opts = opts.normalized()

	if child == nil {
		if parent == nil {
			return nil
		}
		return parent.Clone()
	}
	if parent == nil {
		return child.Clone()
	}
	if _, isNull := child.(ast.NullValue); isNull {
		return ast.NullValue{}
	}

	switch p := parent.(type) {
	case ast.ObjectValue:
		if c, ok := child.(ast.ObjectValue); ok {
			return ast.ObjectValue{Props: mergeProps(p.Props, c.Props, opts)}
		}
	case ast.ArrayValue:
		if c, ok := child.(ast.ArrayValue); ok {
			return ast.ArrayValue{Items: mergeArrays(p.Items, c.Items, opts)}
		}
	case ast.TextValue:
		if c, ok := child.(ast.TextValue); ok {
			return ast.TextValue{Value: mergeText(p.Value, c.Value, opts)}
		}
	}

	// Primitives, type expressions, and mismatched kinds: child wins.
	return child.Clone()
}

// mergeProps merges over the union of both key sets. A key present in
// the child map with a nil value counts as "no value supplied" and the
// parent entry survives.
func mergeProps(parent, child map[string]ast.Value, opts Options) map[string]ast.Value {
	if parent == nil && child == nil {
		return nil
	}
	out := make(map[string]ast.Value, len(parent)+len(child))
	for k, pv := range parent {
		cv, present := child[k]
		if !present || cv == nil {
			if pv != nil {
				out[k] = pv.Clone()
			}
			continue
		}
		out[k] = MergeValues(pv, cv, opts)
	}
	for k, cv := range child {
		if _, seen := parent[k]; seen {
			continue
		}
		if cv != nil {
			out[k] = cv.Clone()
		}
	}
	return out
}

func mergeArrays(parent, child []ast.Value, opts Options) []ast.Value {
	switch opts.ArrayStrategy {
	case ArrayReplace:
		return cloneItems(child)
	case ArrayConcat:
		out := make([]ast.Value, 0, len(parent)+len(child))
		out = append(out, cloneItems(parent)...)
		out = append(out, cloneItems(child)...)
		return out
	default: // ArrayUnique
		out := make([]ast.Value, 0, len(parent)+len(child))
		for _, v := range parent {
			if !containsValue(out, v) {
				out = append(out, v.Clone())
			}
		}
		for _, v := range child {
			if !containsValue(out, v) {
				out = append(out, v.Clone())
			}
		}
		return out
	}
}

func containsValue(items []ast.Value, v ast.Value) bool {
	for _, it := range items {
		if ast.Equal(it, v) {
			return true
		}
	}
	return false
}

// mergeText applies the text strategy with containment checks: if one
// side already contains the other, the containing side stands alone, so
// merged text never duplicates a substring.
func mergeText(parent, child string, opts Options) string {
	switch opts.TextStrategy {
	case TextReplace:
		return child
	case TextPrepend:
		if strings.Contains(child, parent) {
			return child
		}
		if strings.Contains(parent, child) {
			return parent
		}
		return child + opts.TextSeparator + parent
	default: // TextConcat
		if strings.Contains(child, parent) {
			return child
		}
		if strings.Contains(parent, child) {
			return parent
		}
		return parent + opts.TextSeparator + child
	}
}

// mergeOptionalText merges two text portions where either side may be
// absent; a missing side's text is used verbatim.
func mergeOptionalText(parent, child string, opts Options) string {
	if parent == "" {
		return child
	}
	if child == "" {
		return parent
	}
	return mergeText(parent, child, opts)
}

func cloneProps(props map[string]ast.Value) map[string]ast.Value {
	if props == nil {
		return nil
	}
	out := make(map[string]ast.Value, len(props))
	for k, v := range props {
		if v != nil {
			out[k] = v.Clone()
		}
	}
	return out
}

func cloneItems(items []ast.Value) []ast.Value {
	out := make([]ast.Value, 0, len(items))
	for _, v := range items {
		if v != nil {
			out = append(out, v.Clone())
		}
	}
	return out
}
