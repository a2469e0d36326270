// Package ast defines the document model produced by the PromptScript
// parser and consumed by the merge engine and resolver.
package ast

// Location identifies a position in a source file. Line and Column are
// 1-based; Offset is the byte offset from the start of the file.
type Location struct {
	File   string
	Line   int
	Column int
	Offset int
}

// Document is the parsed representation of one .prs source file.
type Document struct {
	// Meta holds document metadata from the @meta block (id, version,
	// author, ...). Optional.
	Meta map[string]string

	// Inherit is the single-parent composition declaration. At most one
	// per document.
	Inherit *InheritDecl

	// Uses are named imports, in declaration order.
	Uses []UseDecl

	// Blocks are the named content units, in declaration order.
	Blocks []Block

	// Extends are targeted in-place modifications, in declaration order.
	Extends []ExtendDecl

	// Path is the source file this document was parsed from.
	Path string

	Loc Location
}

// Block is a named, typed content unit within a document.
type Block struct {
	Name    string
	Content Content
	Loc     Location
}

// InheritDecl declares the document's single parent.
type InheritDecl struct {
	Ref PathReference
	Loc Location
}

// UseDecl declares a named import. Alias defaults to the last path
// segment when not given explicitly.
type UseDecl struct {
	Ref   PathReference
	Alias string
	Loc   Location
}

// ExtendDecl declares an in-place modification of an existing block or
// nested path. Target is a dot-separated path whose first segment names
// a top-level block or an import alias.
type ExtendDecl struct {
	Target  string
	Content Content
	Loc     Location
}

// PathReference is a parsed inherit/use target. Absolute references
// carry a namespace (@ns/seg...); relative references start from the
// declaring document's directory.
type PathReference struct {
	// Raw is the reference exactly as written in source.
	Raw string

	// Namespace is the registry namespace for absolute references.
	// Empty when Relative is true.
	Namespace string

	// Segments are the path components after the namespace.
	Segments []string

	// Version is the optional semantic version suffix (@1.2.3), empty
	// when absent.
	Version string

	// Relative reports whether the reference was written relative
	// (./ or ../) to the declaring document.
	Relative bool

	Loc Location
}

// Clone returns a deep copy of the document. Declarations and block
// contents share no memory with the receiver.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Path: d.Path,
		Loc:  d.Loc,
	}
	if d.Meta != nil {
		out.Meta = make(map[string]string, len(d.Meta))
		for k, v := range d.Meta {
			out.Meta[k] = v
		}
	}
	if d.Inherit != nil {
		inherit := *d.Inherit
		inherit.Ref = d.Inherit.Ref.Clone()
		out.Inherit = &inherit
	}
	if d.Uses != nil {
		out.Uses = make([]UseDecl, len(d.Uses))
		for i, u := range d.Uses {
			out.Uses[i] = u
			out.Uses[i].Ref = u.Ref.Clone()
		}
	}
	if d.Blocks != nil {
		out.Blocks = make([]Block, len(d.Blocks))
		for i, b := range d.Blocks {
			out.Blocks[i] = Block{Name: b.Name, Loc: b.Loc}
			if b.Content != nil {
				out.Blocks[i].Content = b.Content.Clone()
			}
		}
	}
	if d.Extends != nil {
		out.Extends = make([]ExtendDecl, len(d.Extends))
		for i, e := range d.Extends {
			out.Extends[i] = ExtendDecl{Target: e.Target, Loc: e.Loc}
			if e.Content != nil {
				out.Extends[i].Content = e.Content.Clone()
			}
		}
	}
	return out
}

// Clone returns a deep copy of the path reference.
func (r PathReference) Clone() PathReference {
	out := r
	if r.Segments != nil {
		out.Segments = make([]string, len(r.Segments))
		copy(out.Segments, r.Segments)
	}
	return out
}

// Block returns a pointer to the named block, or nil when absent.
func (d *Document) Block(name string) *Block {
	for i := range d.Blocks {
		if d.Blocks[i].Name == name {
			return &d.Blocks[i]
		}
	}
	return nil
}
