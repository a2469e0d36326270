// Package parser turns PromptScript (.prs) source text into the ast
// document model. Parsing is best-effort: errors become diagnostics and
// the parser recovers at the next top-level directive, so one bad block
// does not hide later problems.
package parser

import (
	"strconv"
	"strings"

	"github.com/promptscript-lang/promptscript-go/internal/pathref"
	"github.com/promptscript-lang/promptscript-go/pkg/ast"
)

// Parse parses one source file. The returned document is nil only when
// nothing usable could be parsed; diagnostics carry all recoverable
// errors with their locations.
func Parse(source, filename string) (*ast.Document, []ast.Diagnostic) {
	p := &parser{src: source, file: filename, line: 1, col: 1}
	doc := p.parseDocument()
	if doc != nil && doc.Inherit == nil && len(doc.Uses) == 0 &&
		len(doc.Blocks) == 0 && len(doc.Extends) == 0 && len(doc.Meta) == 0 &&
		ast.HasErrors(p.diags) {
		doc = nil
	}
	return doc, p.diags
}

type parser struct {
	src   string
	file  string
	pos   int
	line  int
	col   int
	diags []ast.Diagnostic
}

func (p *parser) parseDocument() *ast.Document {
	doc := &ast.Document{
		Path: p.file,
		Loc:  p.loc(),
	}

	for {
		p.skipTrivia()
		if p.eof() {
			break
		}
		if p.peek() != '@' {
			p.errorf("expected a directive starting with @, found %q", p.peekRune())
			p.recover()
			continue
		}
		p.parseDirective(doc)
	}
	return doc
}

func (p *parser) parseDirective(doc *ast.Document) {
	start := p.loc()
	p.next() // consume @
	name := p.ident()
	if name == "" {
		p.errorf("expected a directive name after @")
		p.recover()
		return
	}

	switch name {
	case "inherit":
		p.parseInherit(doc, start)
	case "use":
		p.parseUse(doc, start)
	case "extend":
		p.parseExtend(doc, start)
	case "meta":
		p.parseMeta(doc, start)
	default:
		p.parseBlock(doc, name, start)
	}
}

func (p *parser) parseInherit(doc *ast.Document, start ast.Location) {
	p.skipSpaces()
	raw := p.refToken()
	if raw == "" {
		p.errorf("@inherit requires a path reference")
		p.recover()
		return
	}
	ref, err := pathref.Parse(raw)
	if err != nil {
		p.diagAt(start, ast.CodeInvalidPath, err.Error())
		return
	}
	ref.Loc = start
	if doc.Inherit != nil {
		p.diagAt(start, ast.CodeParseError, "a document may declare at most one @inherit")
		return
	}
	doc.Inherit = &ast.InheritDecl{Ref: *ref, Loc: start}
}

func (p *parser) parseUse(doc *ast.Document, start ast.Location) {
	p.skipSpaces()
	raw := p.refToken()
	if raw == "" {
		p.errorf("@use requires a path reference")
		p.recover()
		return
	}
	ref, err := pathref.Parse(raw)
	if err != nil {
		p.diagAt(start, ast.CodeInvalidPath, err.Error())
		return
	}
	ref.Loc = start

	alias := ""
	p.skipSpaces()
	if p.hasKeyword("as") {
		p.skipSpaces()
		alias = p.ident()
		if alias == "" {
			p.errorf("@use ... as requires an alias name")
		}
	}
	if alias == "" {
		alias = defaultAlias(ref)
	}
	doc.Uses = append(doc.Uses, ast.UseDecl{Ref: *ref, Alias: alias, Loc: start})
}

// defaultAlias is the last real path segment of the reference.
func defaultAlias(ref *ast.PathReference) string {
	for i := len(ref.Segments) - 1; i >= 0; i-- {
		seg := ref.Segments[i]
		if seg != "." && seg != ".." {
			return strings.TrimSuffix(seg, ".prs")
		}
	}
	return ref.Namespace
}

func (p *parser) parseExtend(doc *ast.Document, start ast.Location) {
	p.skipSpaces()
	target := p.dotPathToken()
	if target == "" {
		p.errorf("@extend requires a dot-path target")
		p.recover()
		return
	}
	p.skipTrivia()
	content := p.parseContent()
	if content == nil {
		p.recover()
		return
	}
	doc.Extends = append(doc.Extends, ast.ExtendDecl{Target: target, Content: content, Loc: start})
}

func (p *parser) parseMeta(doc *ast.Document, start ast.Location) {
	p.skipTrivia()
	content := p.parseContent()
	if content == nil {
		p.recover()
		return
	}
	obj, ok := content.(ast.ObjectContent)
	if !ok {
		p.diagAt(start, ast.CodeParseError, "@meta body must be a property block")
		return
	}
	if doc.Meta == nil {
		doc.Meta = make(map[string]string, len(obj.Props))
	}
	for k, v := range obj.Props {
		doc.Meta[k] = metaString(v)
	}
}

func metaString(v ast.Value) string {
	switch val := v.(type) {
	case ast.StringValue:
		return val.Value
	case ast.NumberValue:
		return strconv.FormatFloat(val.Value, 'f', -1, 64)
	case ast.BoolValue:
		return strconv.FormatBool(val.Value)
	case ast.TextValue:
		return val.Value
	default:
		return ""
	}
}

func (p *parser) parseBlock(doc *ast.Document, name string, start ast.Location) {
	p.skipTrivia()
	content := p.parseContent()
	if content == nil {
		p.recover()
		return
	}
	doc.Blocks = append(doc.Blocks, ast.Block{Name: name, Content: content, Loc: start})
}

// parseContent parses a block body: a property block, a list, or a
// triple-quoted text body.
func (p *parser) parseContent() ast.Content {
	switch {
	case p.hasPrefix(`"""`):
		text, ok := p.tripleQuoted()
		if !ok {
			return nil
		}
		return ast.TextContent{Value: text}
	case p.peek() == '{':
		return p.objectBody()
	case p.peek() == '[':
		items, ok := p.list()
		if !ok {
			return nil
		}
		return ast.ArrayContent{Items: items}
	default:
		p.errorf("expected a block body ({...}, [...] or triple-quoted text)")
		return nil
	}
}

// objectBody parses {...}. A body that opens with triple-quoted text
// and continues with properties yields mixed content; dash list items
// with no properties yield array content.
func (p *parser) objectBody() ast.Content {
	p.next() // consume {
	text := ""
	var props map[string]ast.Value
	var items []ast.Value

	for {
		p.skipTrivia()
		if p.eof() {
			p.errorf("unterminated block body, missing }")
			return nil
		}
		if p.peek() == '}' {
			p.next()
			break
		}
		switch {
		case p.peek() == ',':
			p.next()
		case p.hasPrefix(`"""`):
			body, ok := p.tripleQuoted()
			if !ok {
				return nil
			}
			if text == "" {
				text = body
			} else {
				text += "\n\n" + body
			}
		case p.peek() == '-' && p.peekAt(1) == ' ':
			p.next()
			p.next()
			item := strings.TrimSpace(p.restOfLine())
			items = append(items, ast.StringValue{Value: item})
		default:
			key := p.ident()
			if key == "" {
				p.errorf("expected a property name, list item or }")
				return nil
			}
			p.skipSpaces()
			if p.peek() != ':' {
				p.errorf("expected : after property name %q", key)
				return nil
			}
			p.next()
			p.skipSpaces()
			val, ok := p.value()
			if !ok {
				return nil
			}
			if props == nil {
				props = make(map[string]ast.Value)
			}
			props[key] = val
		}
	}

	if items != nil {
		if props != nil || text != "" {
			p.errorf("a block body cannot mix list items with properties or text")
			return nil
		}
		return ast.ArrayContent{Items: items}
	}
	if text != "" && props != nil {
		return ast.MixedContent{Text: text, Props: props}
	}
	if text != "" {
		return ast.TextContent{Value: text}
	}
	if props == nil {
		props = map[string]ast.Value{}
	}
	return ast.ObjectContent{Props: props}
}

func (p *parser) value() (ast.Value, bool) {
	switch {
	case p.hasPrefix(`"""`):
		text, ok := p.tripleQuoted()
		if !ok {
			return nil, false
		}
		return ast.TextValue{Value: text}, true
	case p.peek() == '"' || p.peek() == '\'':
		s, ok := p.quoted(p.peek())
		if !ok {
			return nil, false
		}
		return ast.StringValue{Value: s}, true
	case p.peek() == '{':
		content := p.objectBody()
		if content == nil {
			return nil, false
		}
		switch c := content.(type) {
		case ast.ObjectContent:
			return ast.ObjectValue{Props: c.Props}, true
		case ast.ArrayContent:
			return ast.ArrayValue{Items: c.Items}, true
		case ast.TextContent:
			return ast.TextValue{Value: c.Value}, true
		default:
			p.errorf("mixed text and properties are not allowed in a nested value")
			return nil, false
		}
	case p.peek() == '[':
		items, ok := p.list()
		if !ok {
			return nil, false
		}
		return ast.ArrayValue{Items: items}, true
	default:
		return p.scalar()
	}
}

// scalar parses numbers, booleans, null, type expressions, and bare
// words. Semantic versions (1.2.3) stay strings so they round-trip.
func (p *parser) scalar() (ast.Value, bool) {
	word := p.bareToken()
	if word == "" {
		p.errorf("expected a value")
		return nil, false
	}

	// An identifier directly followed by ( is a constrained type
	// expression: enum(low, high), string(max: 80), ...
	if p.peek() == '(' && isIdent(word) {
		args, ok := p.parenGroup()
		if !ok {
			return nil, false
		}
		return ast.TypeExprValue{Expr: word + args}, true
	}

	switch word {
	case "true":
		return ast.BoolValue{Value: true}, true
	case "false":
		return ast.BoolValue{Value: false}, true
	case "null":
		return ast.NullValue{}, true
	}
	if strings.Count(word, ".") >= 2 {
		// Semver-looking token.
		return ast.StringValue{Value: word}, true
	}
	if n, err := strconv.ParseFloat(word, 64); err == nil {
		return ast.NumberValue{Value: n}, true
	}
	return ast.StringValue{Value: word}, true
}

func (p *parser) list() ([]ast.Value, bool) {
	p.next() // consume [
	items := []ast.Value{}
	for {
		p.skipTrivia()
		if p.eof() {
			p.errorf("unterminated list, missing ]")
			return nil, false
		}
		if p.peek() == ']' {
			p.next()
			return items, true
		}
		if p.peek() == ',' {
			p.next()
			continue
		}
		val, ok := p.value()
		if !ok {
			return nil, false
		}
		items = append(items, val)
	}
}

// parenGroup consumes a balanced (...) group and returns it verbatim,
// parentheses included.
func (p *parser) parenGroup() (string, bool) {
	start := p.pos
	depth := 0
	for !p.eof() {
		c := p.peek()
		p.next()
		if c == '(' {
			depth++
		} else if c == ')' {
			depth--
			if depth == 0 {
				return p.src[start:p.pos], true
			}
		}
	}
	p.errorf("unterminated type expression, missing )")
	return "", false
}

func (p *parser) tripleQuoted() (string, bool) {
	p.advance(3)
	start := p.pos
	for !p.eof() {
		if p.hasPrefix(`"""`) {
			raw := p.src[start:p.pos]
			p.advance(3)
			return strings.TrimSpace(raw), true
		}
		p.next()
	}
	p.errorf(`unterminated text body, missing closing """`)
	return "", false
}

func (p *parser) quoted(quote byte) (string, bool) {
	p.next() // opening quote
	var b strings.Builder
	for !p.eof() {
		c := p.peek()
		if c == '\\' && p.peekAt(1) == quote {
			b.WriteByte(quote)
			p.advance(2)
			continue
		}
		if c == quote {
			p.next()
			return b.String(), true
		}
		if c == '\n' {
			break
		}
		b.WriteByte(c)
		p.next()
	}
	p.errorf("unterminated string")
	return "", false
}

// --- low-level scanning ---

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) peekAt(offset int) byte {
	if p.pos+offset >= len(p.src) {
		return 0
	}
	return p.src[p.pos+offset]
}

func (p *parser) peekRune() string {
	if p.eof() {
		return "end of file"
	}
	return string(p.src[p.pos])
}

func (p *parser) next() {
	if p.eof() {
		return
	}
	if p.src[p.pos] == '\n' {
		p.line++
		p.col = 1
	} else {
		p.col++
	}
	p.pos++
}

func (p *parser) advance(n int) {
	for i := 0; i < n; i++ {
		p.next()
	}
}

func (p *parser) hasPrefix(s string) bool {
	return strings.HasPrefix(p.src[p.pos:], s)
}

func (p *parser) hasKeyword(kw string) bool {
	if !p.hasPrefix(kw) {
		return false
	}
	after := p.peekAt(len(kw))
	if isIdentByte(after) {
		return false
	}
	p.advance(len(kw))
	return true
}

func (p *parser) skipSpaces() {
	for !p.eof() && (p.peek() == ' ' || p.peek() == '\t') {
		p.next()
	}
}

// skipTrivia skips whitespace and # comments.
func (p *parser) skipTrivia() {
	for !p.eof() {
		c := p.peek()
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			p.next()
			continue
		}
		if c == '#' {
			for !p.eof() && p.peek() != '\n' {
				p.next()
			}
			continue
		}
		return
	}
}

func (p *parser) ident() string {
	start := p.pos
	for !p.eof() && isIdentByte(p.peek()) {
		p.next()
	}
	return p.src[start:p.pos]
}

// refToken reads a path reference token: everything up to whitespace.
func (p *parser) refToken() string {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '#' {
			break
		}
		p.next()
	}
	return p.src[start:p.pos]
}

// dotPathToken reads an extend target: identifiers joined by dots.
func (p *parser) dotPathToken() string {
	start := p.pos
	for !p.eof() && (isIdentByte(p.peek()) || p.peek() == '.') {
		p.next()
	}
	return p.src[start:p.pos]
}

// bareToken reads an unquoted scalar token.
func (p *parser) bareToken() string {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' ||
			c == ',' || c == ']' || c == '}' || c == '#' || c == '(' {
			break
		}
		p.next()
	}
	return p.src[start:p.pos]
}

func (p *parser) restOfLine() string {
	start := p.pos
	for !p.eof() && p.peek() != '\n' {
		p.next()
	}
	return p.src[start:p.pos]
}

func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' || c == '_' || c == '-'
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}
	return true
}

func (p *parser) loc() ast.Location {
	return ast.Location{File: p.file, Line: p.line, Column: p.col, Offset: p.pos}
}

// recover skips to the next top-level directive: an @ at the start of a
// line.
func (p *parser) recover() {
	for !p.eof() {
		if p.peek() == '\n' {
			p.next()
			p.skipSpaces()
			if p.peek() == '@' {
				return
			}
			continue
		}
		p.next()
	}
}

func (p *parser) errorf(format string, args ...any) {
	loc := p.loc()
	p.diags = append(p.diags, ast.Errorf(ast.CodeParseError, &loc, format, args...))
}

func (p *parser) diagAt(loc ast.Location, code, msg string) {
	p.diags = append(p.diags, ast.Diagnostic{
		Message:  msg,
		Code:     code,
		Severity: ast.SeverityError,
		Location: &loc,
	})
}
