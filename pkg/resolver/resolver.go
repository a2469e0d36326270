// Package resolver flattens PromptScript documents: it loads the
// inherit/use dependency graph through a registry, merges inherited
// content, applies extensions, and returns a single document plus
// provenance and diagnostics.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/promptscript-lang/promptscript-go/internal/config"
	"github.com/promptscript-lang/promptscript-go/internal/pathref"
	"github.com/promptscript-lang/promptscript-go/internal/registry"
	"github.com/promptscript-lang/promptscript-go/pkg/ast"
	"github.com/promptscript-lang/promptscript-go/pkg/merge"
	"github.com/promptscript-lang/promptscript-go/pkg/parser"
)

// reservedPrefix marks internal import marker blocks. They exist only
// as extend targets and are stripped before a document is returned.
const reservedPrefix = "__import__"

// defaultMaxConcurrentUses bounds the use fan-out per document.
const defaultMaxConcurrentUses = 4

// ParseFunc turns source text into a document plus diagnostics. The
// default is parser.Parse.
type ParseFunc func(source, filename string) (*ast.Document, []ast.Diagnostic)

// Result is the outcome of one Resolve call. AST is nil whenever any
// error-severity diagnostic was collected; Sources always lists every
// document successfully visited, in visit order.
type Result struct {
	AST     *ast.Document
	Errors  []ast.Diagnostic
	Sources []string
}

// Resolver drives document resolution against a registry. It is safe
// for concurrent use.
type Resolver struct {
	reg          registry.Registry
	parse        ParseFunc
	mergeOpts    merge.Options
	basePath     string
	cacheEnabled bool
	cache        *gocache.Cache
	maxUses      int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache enables or disables the whole-result cache. Enabled by
// default: identical Resolve calls then return the same *Result.
func WithCache(enabled bool) Option {
	return func(r *Resolver) { r.cacheEnabled = enabled }
}

// WithMergeOptions overrides the merge strategies used for inherited
// blocks and extensions.
func WithMergeOptions(opts merge.Options) Option {
	return func(r *Resolver) { r.mergeOpts = opts }
}

// WithBasePath sets the directory relative references in the entry
// document resolve under. Documents deeper in the graph always resolve
// relative references against their own directory.
func WithBasePath(basePath string) Option {
	return func(r *Resolver) { r.basePath = basePath }
}

// WithParser injects a parse function, for callers that carry their own
// front end.
func WithParser(parse ParseFunc) Option {
	return func(r *Resolver) { r.parse = parse }
}

// WithMaxConcurrentUses bounds how many use imports of one document are
// fetched concurrently.
func WithMaxConcurrentUses(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxUses = n
		}
	}
}

// New creates a resolver reading documents from reg.
func New(reg registry.Registry, opts ...Option) *Resolver {
	r := &Resolver{
		reg:          reg,
		parse:        parser.Parse,
		mergeOpts:    merge.DefaultOptions(),
		cacheEnabled: true,
		cache:        gocache.New(gocache.NoExpiration, 0),
		maxUses:      defaultMaxConcurrentUses,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve loads entryPath and flattens its full dependency graph.
// Missing targets, invalid references, and parse errors become
// diagnostics on the result; a circular dependency or a cancelled
// context aborts the call with an error instead.
func (r *Resolver) Resolve(ctx context.Context, entryPath string) (*Result, error) {
	key := normalizePath(entryPath)
	if r.cacheEnabled {
		if cached, ok := r.cache.Get(key); ok {
			slog.Debug("resolve cache hit", "path", key)
			return cached.(*Result), nil
		}
	}

	res := &resolution{r: r, seen: make(map[string]struct{})}
	doc, err := res.resolveDocument(ctx, entryPath, nil, nil)
	if err != nil {
		return nil, err
	}

	result := &Result{Errors: res.diags, Sources: res.sources}
	if doc != nil && !ast.HasErrors(res.diags) {
		result.AST = doc
	}
	if r.cacheEnabled {
		r.cache.Set(key, result, gocache.NoExpiration)
	}
	return result, nil
}

// ClearCache drops all cached results. Subsequent Resolve calls build
// fresh result objects.
func (r *Resolver) ClearCache() {
	r.cache.Flush()
}

// resolution is the per-call state: collected diagnostics and visited
// sources, shared across the concurrent use fan-out.
type resolution struct {
	r *Resolver

	mu      sync.Mutex
	diags   []ast.Diagnostic
	sources []string
	seen    map[string]struct{}
}

func (res *resolution) report(diags ...ast.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	res.mu.Lock()
	defer res.mu.Unlock()
	res.diags = append(res.diags, diags...)
}

func (res *resolution) addSource(p string) {
	res.mu.Lock()
	defer res.mu.Unlock()
	if _, dup := res.seen[p]; dup {
		return
	}
	res.seen[p] = struct{}{}
	res.sources = append(res.sources, p)
}

// resolveDocument fetches, parses, and flattens one document. A nil
// document with a nil error means the branch failed non-fatally and its
// diagnostics were recorded; only cycles and context cancellation
// return an error.
func (res *resolution) resolveDocument(ctx context.Context, fetchPath string, loc *ast.Location, stack []string) (*ast.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	normalized := normalizePath(fetchPath)
	if slices.Contains(stack, normalized) {
		chain := make([]string, 0, len(stack)+1)
		chain = append(chain, stack...)
		chain = append(chain, normalized)
		return nil, &CircularDependencyError{Chain: chain}
	}

	content, err := res.r.reg.Fetch(ctx, normalized)
	if err != nil {
		var notFound *registry.FileNotFoundError
		if errors.As(err, &notFound) {
			res.report(ast.Errorf(ast.CodeFileNotFound, loc, "document %s not found", normalized))
		} else {
			res.report(ast.Errorf(ast.CodeFetchFailed, loc, "failed to fetch %s: %v", normalized, err))
		}
		return nil, nil
	}
	res.addSource(normalized)

	doc, diags := res.r.parse(content, normalized)
	res.report(diags...)
	if doc == nil {
		return nil, nil
	}
	doc.Path = normalized

	slog.Debug("resolving document", "path", normalized, "depth", len(stack))
	return res.flatten(ctx, doc, push(stack, normalized))
}

// flatten applies the document's directives in order: inherit merge,
// use imports, extensions, marker stripping.
func (res *resolution) flatten(ctx context.Context, doc *ast.Document, stack []string) (*ast.Document, error) {
	entry := len(stack) == 1
	if doc.Inherit != nil {
		target, err := res.r.targetPath(&doc.Inherit.Ref, doc.Path, entry)
		if err != nil {
			res.report(ast.Errorf(ast.CodeInvalidPath, &doc.Inherit.Loc, "%v", err))
		} else {
			parent, err := res.resolveDocument(ctx, target, &doc.Inherit.Loc, stack)
			if err != nil {
				return nil, err
			}
			if parent != nil {
				doc = mergeDocuments(parent, doc, res.r.mergeOpts)
			}
		}
		doc.Inherit = nil
	}

	aliases, err := res.applyUses(ctx, doc, stack)
	if err != nil {
		return nil, err
	}

	for _, ext := range doc.Extends {
		res.r.applyExtend(doc, aliases, ext)
	}
	doc.Uses = nil
	doc.Extends = nil

	stripMarkers(doc)
	return doc, nil
}

// applyUses resolves the document's imports concurrently and splices
// their marker blocks in declaration order. The returned set holds the
// aliases available as extend targets.
func (res *resolution) applyUses(ctx context.Context, doc *ast.Document, stack []string) (map[string]struct{}, error) {
	aliases := make(map[string]struct{}, len(doc.Uses))
	type pendingUse struct {
		use    ast.UseDecl
		target string
	}
	pending := make([]pendingUse, 0, len(doc.Uses))
	entry := len(stack) == 1
	for _, use := range doc.Uses {
		if _, dup := aliases[use.Alias]; dup {
			res.report(ast.Errorf(ast.CodeDuplicateAlias, &use.Loc, "duplicate use alias %q", use.Alias))
			continue
		}
		aliases[use.Alias] = struct{}{}
		target, err := res.r.targetPath(&use.Ref, doc.Path, entry)
		if err != nil {
			res.report(ast.Errorf(ast.CodeInvalidPath, &use.Loc, "%v", err))
			continue
		}
		pending = append(pending, pendingUse{use: use, target: target})
	}

	results := make([]*ast.Document, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(res.r.maxUses)
	for i, p := range pending {
		g.Go(func() error {
			imported, err := res.resolveDocument(gctx, p.target, &p.use.Loc, stack)
			if err != nil {
				return err
			}
			results[i] = imported
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, p := range pending {
		imported := results[i]
		if imported == nil {
			continue
		}
		spliceImport(doc, p.use, imported)
	}
	return aliases, nil
}

// spliceImport records an import as reserved-prefix marker blocks: one
// summary block per import plus one alias-qualified block per imported
// block. They are addressable only through extend targets and never
// survive into the returned document.
func spliceImport(doc *ast.Document, use ast.UseDecl, imported *ast.Document) {
	names := make([]ast.Value, 0, len(imported.Blocks))
	for _, b := range imported.Blocks {
		names = append(names, ast.StringValue{Value: b.Name})
	}
	doc.Blocks = append(doc.Blocks, ast.Block{
		Name: reservedPrefix + use.Alias,
		Content: ast.ObjectContent{Props: map[string]ast.Value{
			"source": ast.StringValue{Value: imported.Path},
			"blocks": ast.ArrayValue{Items: names},
		}},
		Loc: use.Loc,
	})
	for _, b := range imported.Blocks {
		blk := ast.Block{Name: reservedPrefix + use.Alias + "." + b.Name, Loc: use.Loc}
		if b.Content != nil {
			blk.Content = b.Content.Clone()
		}
		doc.Blocks = append(doc.Blocks, blk)
	}
}

// applyExtend merges an extension at its dot-path target. An alias as
// the first segment retargets into that import's blocks; a missing
// top-level target is a silent no-op; missing intermediate segments are
// created as empty objects.
func (r *Resolver) applyExtend(doc *ast.Document, aliases map[string]struct{}, ext ast.ExtendDecl) {
	segs := strings.Split(ext.Target, ".")

	blockName := segs[0]
	rest := segs[1:]
	if _, ok := aliases[segs[0]]; ok {
		if len(segs) == 1 {
			blockName = reservedPrefix + segs[0]
		} else {
			blockName = reservedPrefix + segs[0] + "." + segs[1]
			rest = segs[2:]
		}
	}

	blk := doc.Block(blockName)
	if blk == nil {
		return
	}
	if len(rest) == 0 {
		blk.Content = merge.Merge(blk.Content, ext.Content, r.mergeOpts)
		return
	}

	props, ok := navigableProps(blk)
	if !ok {
		return
	}
	for _, seg := range rest[:len(rest)-1] {
		obj, isObj := props[seg].(ast.ObjectValue)
		if !isObj || obj.Props == nil {
			obj = ast.ObjectValue{Props: make(map[string]ast.Value)}
			props[seg] = obj
		}
		props = obj.Props
	}
	last := rest[len(rest)-1]
	props[last] = merge.MergeValues(props[last], contentValue(ext.Content), r.mergeOpts)
}

// navigableProps returns the block's property map for dot-path walking,
// converting a pure-text block to mixed so a nested extend has
// somewhere to land. Array blocks have no named paths.
func navigableProps(blk *ast.Block) (map[string]ast.Value, bool) {
	switch c := blk.Content.(type) {
	case ast.ObjectContent:
		if c.Props == nil {
			c.Props = make(map[string]ast.Value)
			blk.Content = c
		}
		return c.Props, true
	case ast.MixedContent:
		if c.Props == nil {
			c.Props = make(map[string]ast.Value)
			blk.Content = c
		}
		return c.Props, true
	case ast.TextContent:
		m := ast.MixedContent{Text: c.Value, Props: make(map[string]ast.Value)}
		blk.Content = m
		return m.Props, true
	case nil:
		o := ast.ObjectContent{Props: make(map[string]ast.Value)}
		blk.Content = o
		return o.Props, true
	default:
		return nil, false
	}
}

// contentValue adapts extend content to a property value for nested
// targets. Mixed content with properties degrades to its object side.
func contentValue(c ast.Content) ast.Value {
	switch c := c.(type) {
	case ast.TextContent:
		return ast.TextValue{Value: c.Value}
	case ast.ObjectContent:
		return ast.ObjectValue{Props: c.Props}
	case ast.ArrayContent:
		return ast.ArrayValue{Items: c.Items}
	case ast.MixedContent:
		if len(c.Props) == 0 {
			return ast.TextValue{Value: c.Text}
		}
		return ast.ObjectValue{Props: c.Props}
	default:
		return ast.NullValue{}
	}
}

// mergeDocuments merges a fully resolved parent under the child: parent
// blocks come first, same-named child blocks merge in place with the
// child winning, new child blocks append in order. The child's uses and
// extends carry over for later stages.
func mergeDocuments(parent, child *ast.Document, opts merge.Options) *ast.Document {
	out := parent.Clone()
	out.Path = child.Path
	out.Loc = child.Loc
	out.Inherit = nil
	out.Uses = child.Uses
	out.Extends = child.Extends

	if child.Meta != nil {
		if out.Meta == nil {
			out.Meta = make(map[string]string, len(child.Meta))
		}
		for k, v := range child.Meta {
			out.Meta[k] = v
		}
	}

	index := make(map[string]int, len(out.Blocks))
	for i, b := range out.Blocks {
		index[b.Name] = i
	}
	for _, cb := range child.Blocks {
		if i, ok := index[cb.Name]; ok {
			out.Blocks[i].Content = merge.Merge(out.Blocks[i].Content, cb.Content, opts)
			out.Blocks[i].Loc = cb.Loc
			continue
		}
		nb := ast.Block{Name: cb.Name, Loc: cb.Loc}
		if cb.Content != nil {
			nb.Content = cb.Content.Clone()
		}
		out.Blocks = append(out.Blocks, nb)
		index[cb.Name] = len(out.Blocks) - 1
	}
	return out
}

func stripMarkers(doc *ast.Document) {
	kept := make([]ast.Block, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		if strings.HasPrefix(b.Name, reservedPrefix) {
			continue
		}
		kept = append(kept, b)
	}
	doc.Blocks = kept
}

// targetPath maps a parsed reference to a registry fetch path. Relative
// references resolve against the declaring document's directory, except
// in the entry document where a configured base path takes over;
// absolute references keep their version suffix so version-aware
// registries can honor it.
func (r *Resolver) targetPath(ref *ast.PathReference, docPath string, entry bool) (string, error) {
	if ref.Relative {
		base := path.Dir(docPath)
		if entry && r.basePath != "" {
			base = r.basePath
		}
		return pathref.Resolve(ref, pathref.ResolveOptions{BasePath: base})
	}
	p, err := pathref.Resolve(ref, pathref.ResolveOptions{})
	if err != nil {
		return "", err
	}
	if ref.Version != "" {
		p = fmt.Sprintf("%s@%s", p, ref.Version)
	}
	return p, nil
}

// normalizePath brings a fetch path to canonical form: slash
// separators, no leading slash, default extension, version suffix
// preserved. Cache keys and cycle detection both rely on it.
func normalizePath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	p = strings.TrimPrefix(p, "/")
	base, version := pathref.SplitVersion(p)
	base = path.Clean(base)
	if path.Ext(base) == "" {
		base += config.DefaultExtension
	}
	if version != "" {
		return base + "@" + version
	}
	return base
}

func push(stack []string, p string) []string {
	out := make([]string, 0, len(stack)+1)
	out = append(out, stack...)
	return append(out, p)
}
