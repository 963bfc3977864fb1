package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"
)

func init() {
	Register(&rubyLang{base: base{
		name:    "Ruby",
		key:     "ruby",
		exts:    []string{".rb", ".rake", ".gemspec"},
		grammar: ruby.GetLanguage,
		kinds: map[Category][]string{
			CategoryContainer:    {"class", "module", "singleton_class"},
			CategoryFunction:     {"method", "singleton_method"},
			CategoryType:         {"class", "module"},
			CategoryImport:       {"call"},
			CategoryPublicSymbol: {"class", "module", "method", "singleton_method"},
			CategoryScope:        {"block", "do_block", "lambda", "begin"},
			CategoryControlFlow:  {"if", "unless", "while", "until", "for", "case", "return", "break", "next", "redo", "retry"},
			CategoryComplexity:   {"if", "unless", "elsif", "while", "until", "for", "when", "rescue", "conditional", "binary"},
			CategoryNesting:      {"if", "unless", "while", "until", "for", "case", "begin", "method", "class", "module"},
			CategoryCall:         {"call"},
		},
		mechanism: AccessModifier,
	}})
}

type rubyLang struct {
	base
}

func (r *rubyLang) ExtractFunction(n *sitter.Node, src []byte, inContainer bool) (Symbol, bool) {
	name, ok := fieldText(n, "name", src)
	if !ok {
		return Symbol{}, false
	}
	params := ""
	if p := n.ChildByFieldName("parameters"); p != nil {
		params = CollapseWhitespace(NodeText(p, src))
		if !strings.HasPrefix(params, "(") {
			params = "(" + params + ")"
		}
	}
	prefix := "def "
	if n.Type() == "singleton_method" {
		if obj, ok := fieldText(n, "object", src); ok {
			prefix += obj + "."
		}
	}
	sym := newSymbol(n, name, functionKind(inContainer), prefix+name+params)
	sym.Docstring = precedingComment(n, src, "#")
	sym.Visibility = r.VisibilityOf(n, src)
	return sym, true
}

func (r *rubyLang) ExtractContainer(n *sitter.Node, src []byte) (Symbol, bool) {
	if n.Type() == "singleton_class" {
		// class << self opens no new named scope.
		return Symbol{}, false
	}
	name, ok := fieldText(n, "name", src)
	if !ok {
		return Symbol{}, false
	}
	kind, keyword := KindClass, "class"
	if n.Type() == "module" {
		kind, keyword = KindModule, "module"
	}
	sig := keyword + " " + name
	if sc, ok := fieldText(n, "superclass", src); ok {
		sig += " " + sc
	}
	sym := newSymbol(n, name, kind, sig)
	sym.Docstring = precedingComment(n, src, "#")
	return sym, true
}

func (r *rubyLang) ExtractType(n *sitter.Node, src []byte) (Symbol, bool) {
	return r.ExtractContainer(n, src)
}

var rubyRequires = map[string]bool{"require": true, "require_relative": true, "load": true}

// ExtractImports reads require, require_relative and load calls.
func (r *rubyLang) ExtractImports(n *sitter.Node, src []byte) []Import {
	if n.Type() != "call" || n.ChildByFieldName("receiver") != nil {
		return nil
	}
	method, ok := fieldText(n, "method", src)
	if !ok || !rubyRequires[method] {
		return nil
	}
	args := n.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return nil
	}
	arg := args.NamedChild(0)
	if arg.Type() != "string" {
		return nil
	}
	mod := unquote(NodeText(arg, src))
	return []Import{{
		Module:     mod,
		IsRelative: method == "require_relative" || strings.HasPrefix(mod, "."),
		Line:       StartLine(n),
	}}
}

func (r *rubyLang) ExtractPublicSymbols(n *sitter.Node, src []byte) []Export {
	if r.VisibilityOf(n, src) != Public {
		return nil
	}
	name, ok := fieldText(n, "name", src)
	if !ok {
		return nil
	}
	kind := KindMethod
	switch n.Type() {
	case "class":
		kind = KindClass
	case "module":
		kind = KindModule
	}
	return []Export{{Name: name, Kind: kind, Line: StartLine(n)}}
}

// VisibilityOf applies the nearest bare private/protected/public call
// preceding a method in its class body.
func (r *rubyLang) VisibilityOf(n *sitter.Node, src []byte) Visibility {
	if n.Type() != "method" {
		return Public
	}
	for prev := n.PrevNamedSibling(); prev != nil; prev = prev.PrevNamedSibling() {
		if prev.Type() != "identifier" {
			continue
		}
		switch NodeText(prev, src) {
		case "private":
			return Private
		case "protected":
			return Protected
		case "public":
			return Public
		}
	}
	return Public
}

func (r *rubyLang) IsPublic(n *sitter.Node, src []byte) bool {
	return r.VisibilityOf(n, src) == Public
}

func (r *rubyLang) CalleeName(n *sitter.Node, src []byte) (string, bool) {
	return calleeFromField(n, src, "method")
}
