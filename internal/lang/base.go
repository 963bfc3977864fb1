package lang

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
)

// base carries the table-driven parts of a Language. Concrete languages
// embed it and override the extraction methods they need.
type base struct {
	name      string
	key       string
	exts      []string
	grammar   func() *sitter.Language
	kinds     map[Category][]string // missing category means not supported
	mechanism Mechanism
}

func (b *base) Name() string         { return b.name }
func (b *base) Key() string          { return b.key }
func (b *base) Extensions() []string { return b.exts }

func (b *base) Grammar() *sitter.Language { return b.grammar() }

func (b *base) Kinds(c Category) ([]string, error) {
	k, ok := b.kinds[c]
	if !ok {
		return nil, fmt.Errorf("%s: %s kinds: %w", b.name, c, ErrNotSupported)
	}
	return k, nil
}

func (b *base) VisibilityMechanism() Mechanism { return b.mechanism }

func (b *base) ExtractFunction(n *sitter.Node, src []byte, inContainer bool) (Symbol, bool) {
	name, ok := fieldText(n, "name", src)
	if !ok {
		return Symbol{}, false
	}
	params := "()"
	if p := n.ChildByFieldName("parameters"); p != nil {
		params = CollapseWhitespace(NodeText(p, src))
	}
	return newSymbol(n, name, functionKind(inContainer), name+params), true
}

func (b *base) ExtractContainer(*sitter.Node, []byte) (Symbol, bool) { return Symbol{}, false }
func (b *base) ExtractType(*sitter.Node, []byte) (Symbol, bool)      { return Symbol{}, false }
func (b *base) ExtractImports(*sitter.Node, []byte) []Import         { return nil }
func (b *base) ExtractPublicSymbols(*sitter.Node, []byte) []Export   { return nil }
func (b *base) VisibilityOf(*sitter.Node, []byte) Visibility         { return Public }
func (b *base) IsPublic(*sitter.Node, []byte) bool                   { return true }
func (b *base) Resolver() Resolver                                   { return nil }

func (b *base) CalleeName(n *sitter.Node, src []byte) (string, bool) {
	return calleeFromField(n, src, "function")
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	genericRe    = regexp.MustCompile(`<[^<>]*>`)
)

// NodeText returns the source text of a tree-sitter node.
func NodeText(n *sitter.Node, src []byte) string {
	return string(src[n.StartByte():n.EndByte()])
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// StartLine returns the 1-based first line of n.
func StartLine(n *sitter.Node) int { return int(n.StartPoint().Row) + 1 }

// EndLine returns the 1-based last line of n.
func EndLine(n *sitter.Node) int { return int(n.EndPoint().Row) + 1 }

func newSymbol(n *sitter.Node, name string, kind Kind, sig string) Symbol {
	return Symbol{
		Name:       name,
		Kind:       kind,
		Signature:  sig,
		StartLine:  StartLine(n),
		EndLine:    EndLine(n),
		Visibility: Public,
	}
}

func functionKind(inContainer bool) Kind {
	if inContainer {
		return KindMethod
	}
	return KindFunction
}

func fieldText(n *sitter.Node, field string, src []byte) (string, bool) {
	c := n.ChildByFieldName(field)
	if c == nil {
		return "", false
	}
	text := strings.TrimSpace(NodeText(c, src))
	return text, text != ""
}

// headerText returns the collapsed source of n up to the start of its
// body field, or the first line when there is no body.
func headerText(n *sitter.Node, src []byte, bodyField string) string {
	body := n.ChildByFieldName(bodyField)
	if body == nil {
		return firstLine(NodeText(n, src))
	}
	text := string(src[n.StartByte():body.StartByte()])
	return strings.TrimSuffix(CollapseWhitespace(text), ":")
}

// children returns the direct children of n, named and anonymous.
func children(n *sitter.Node) []*sitter.Node {
	out := make([]*sitter.Node, 0, n.ChildCount())
	for i := 0; i < int(n.ChildCount()); i++ {
		out = append(out, n.Child(i))
	}
	return out
}

// childOfType returns the first direct child whose type is one of types.
func childOfType(n *sitter.Node, types ...string) *sitter.Node {
	for _, c := range children(n) {
		for _, t := range types {
			if c.Type() == t {
				return c
			}
		}
	}
	return nil
}

// findIdentifier returns the first identifier-like node under n in
// document order.
func findIdentifier(n *sitter.Node, src []byte) (string, bool) {
	switch n.Type() {
	case "identifier", "field_identifier", "type_identifier", "name", "constant":
		return NodeText(n, src), true
	}
	for _, c := range children(n) {
		if id, ok := findIdentifier(c, src); ok {
			return id, true
		}
	}
	return "", false
}

// firstLine returns text up to the first newline, or up to the body
// opening brace, trimmed.
func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if i := strings.IndexByte(text, '{'); i > 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// precedingComment collects the contiguous comment siblings directly
// above n, stripping the given line prefixes.
func precedingComment(n *sitter.Node, src []byte, prefixes ...string) string {
	var lines []string
	next := n
	for prev := n.PrevNamedSibling(); prev != nil; prev = prev.PrevNamedSibling() {
		if !strings.Contains(prev.Type(), "comment") {
			break
		}
		if EndLine(prev)+1 < StartLine(next) {
			break
		}
		lines = append([]string{cleanComment(NodeText(prev, src), prefixes)}, lines...)
		next = prev
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func cleanComment(text string, prefixes []string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(strings.TrimPrefix(text, "/**"), "*/")
	text = strings.TrimPrefix(text, "/*")
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		for _, p := range prefixes {
			if strings.HasPrefix(line, p) {
				line = strings.TrimSpace(strings.TrimPrefix(line, p))
				break
			}
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "*"))
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// calleeFromField reads the invoked expression from the first of fields
// present on n and reduces it to its innermost identifier.
func calleeFromField(n *sitter.Node, src []byte, fields ...string) (string, bool) {
	for _, f := range fields {
		if c := n.ChildByFieldName(f); c != nil {
			return CalleeFromText(NodeText(c, src))
		}
	}
	return "", false
}

// CalleeFromText reduces an invoked expression like "a.b::c<T>" to "c".
func CalleeFromText(text string) (string, bool) {
	for genericRe.MatchString(text) {
		text = genericRe.ReplaceAllString(text, "")
	}
	text = strings.TrimRight(strings.TrimSpace(text), ":")
	for _, sep := range []string{"::", ".", "->", "\\"} {
		if i := strings.LastIndex(text, sep); i >= 0 {
			text = text[i+len(sep):]
		}
	}
	text = strings.TrimLeft(strings.TrimSpace(text), "&*$@!")
	text = strings.TrimRight(text, "!?")
	if text == "" {
		return "", false
	}
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '$' {
			return "", false
		}
	}
	return text, true
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), "\"'`<>")
}

func isUpper(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}
