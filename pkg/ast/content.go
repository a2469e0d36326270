package ast

// Content is the body of a block. The set of implementations is closed:
// TextContent, ObjectContent, ArrayContent, and MixedContent. Consumers
// switch over the concrete type; an unknown implementation is a
// programming error.
type Content interface {
	isContent()
	// Clone returns a deep copy sharing no memory with the receiver.
	Clone() Content
}

// TextContent is free-form prose, typically from a triple-quoted body.
type TextContent struct {
	Value string
}

// ObjectContent is a set of named properties.
type ObjectContent struct {
	Props map[string]Value
}

// ArrayContent is an ordered list of values.
type ArrayContent struct {
	Items []Value
}

// MixedContent combines leading prose with named properties, for block
// bodies that open with text and continue with key/value pairs.
type MixedContent struct {
	// Text is the prose portion. Empty means the mixed body carried no
	// text of its own.
	Text string

	Props map[string]Value
}

func (TextContent) isContent()   {}
func (ObjectContent) isContent() {}
func (ArrayContent) isContent()  {}
func (MixedContent) isContent()  {}

// Clone returns a copy of the text content.
func (c TextContent) Clone() Content { return TextContent{Value: c.Value} }

// Clone returns a deep copy of the object content.
func (c ObjectContent) Clone() Content {
	return ObjectContent{Props: cloneProps(c.Props)}
}

// Clone returns a deep copy of the array content.
func (c ArrayContent) Clone() Content {
	return ArrayContent{Items: cloneItems(c.Items)}
}

// Clone returns a deep copy of the mixed content.
func (c MixedContent) Clone() Content {
	return MixedContent{Text: c.Text, Props: cloneProps(c.Props)}
}

// Value is a property or array element. The set of implementations is
// closed: StringValue, NumberValue, BoolValue, NullValue, ArrayValue,
// ObjectValue, TextValue, and TypeExprValue.
type Value interface {
	isValue()
	// Clone returns a deep copy sharing no memory with the receiver.
	Clone() Value
}

// StringValue is a quoted string.
type StringValue struct {
	Value string
}

// NumberValue is a numeric literal.
type NumberValue struct {
	Value float64
}

// BoolValue is a boolean literal.
type BoolValue struct {
	Value bool
}

// NullValue is an explicit null. During merges an explicit null always
// overrides the other side, unlike an absent key which is skipped.
type NullValue struct{}

// ArrayValue is an ordered list.
type ArrayValue struct {
	Items []Value
}

// ObjectValue is a nested set of named properties.
type ObjectValue struct {
	Props map[string]Value
}

// TextValue is a triple-quoted prose value inside a block body.
type TextValue struct {
	Value string
}

// TypeExprValue is a constrained parameter type expression such as
// enum(low, high) or string(max: 80). Type expressions are carried
// verbatim and never merged or mutated.
type TypeExprValue struct {
	Expr string
}

func (StringValue) isValue()   {}
func (NumberValue) isValue()   {}
func (BoolValue) isValue()     {}
func (NullValue) isValue()     {}
func (ArrayValue) isValue()    {}
func (ObjectValue) isValue()   {}
func (TextValue) isValue()     {}
func (TypeExprValue) isValue() {}

// Clone returns a copy of the string value.
func (v StringValue) Clone() Value { return StringValue{Value: v.Value} }

// Clone returns a copy of the number value.
func (v NumberValue) Clone() Value { return NumberValue{Value: v.Value} }

// Clone returns a copy of the bool value.
func (v BoolValue) Clone() Value { return BoolValue{Value: v.Value} }

// Clone returns a null value.
func (NullValue) Clone() Value { return NullValue{} }

// Clone returns a deep copy of the array value.
func (v ArrayValue) Clone() Value { return ArrayValue{Items: cloneItems(v.Items)} }

// Clone returns a deep copy of the object value.
func (v ObjectValue) Clone() Value { return ObjectValue{Props: cloneProps(v.Props)} }

// Clone returns a copy of the text value.
func (v TextValue) Clone() Value { return TextValue{Value: v.Value} }

// Clone returns a copy of the type expression.
func (v TypeExprValue) Clone() Value { return TypeExprValue{Expr: v.Expr} }

func cloneProps(props map[string]Value) map[string]Value {
	if props == nil {
		return nil
	}
	out := make(map[string]Value, len(props))
	for k, v := range props {
		if v != nil {
			out[k] = v.Clone()
		} else {
			out[k] = nil
		}
	}
	return out
}

func cloneItems(items []Value) []Value {
	if items == nil {
		return nil
	}
	out := make([]Value, len(items))
	for i, v := range items {
		if v != nil {
			out[i] = v.Clone()
		}
	}
	return out
}

// Equal reports structural equality of two values. Arrays compare
// element-wise in order; objects compare by key set and per-key value.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case StringValue:
		bv, ok := b.(StringValue)
		return ok && av.Value == bv.Value
	case NumberValue:
		bv, ok := b.(NumberValue)
		return ok && av.Value == bv.Value
	case BoolValue:
		bv, ok := b.(BoolValue)
		return ok && av.Value == bv.Value
	case NullValue:
		_, ok := b.(NullValue)
		return ok
	case TextValue:
		bv, ok := b.(TextValue)
		return ok && av.Value == bv.Value
	case TypeExprValue:
		bv, ok := b.(TypeExprValue)
		return ok && av.Expr == bv.Expr
	case ArrayValue:
		bv, ok := b.(ArrayValue)
		if !ok || len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if !Equal(av.Items[i], bv.Items[i]) {
				return false
			}
		}
		return true
	case ObjectValue:
		bv, ok := b.(ObjectValue)
		if !ok || len(av.Props) != len(bv.Props) {
			return false
		}
		for k, v := range av.Props {
			other, present := bv.Props[k]
			if !present || !Equal(v, other) {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	default:
		return false
	}
}

// EqualContent reports structural equality of two block contents.
func EqualContent(a, b Content) bool {
	switch ac := a.(type) {
	case TextContent:
		bc, ok := b.(TextContent)
		return ok && ac.Value == bc.Value
	case ObjectContent:
		bc, ok := b.(ObjectContent)
		return ok && Equal(ObjectValue{Props: ac.Props}, ObjectValue{Props: bc.Props})
	case ArrayContent:
		bc, ok := b.(ArrayContent)
		return ok && Equal(ArrayValue{Items: ac.Items}, ArrayValue{Items: bc.Items})
	case MixedContent:
		bc, ok := b.(MixedContent)
		return ok && ac.Text == bc.Text &&
			Equal(ObjectValue{Props: ac.Props}, ObjectValue{Props: bc.Props})
	case nil:
		return b == nil
	default:
		return false
	}
}
