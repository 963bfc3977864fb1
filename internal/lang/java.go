package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

func init() {
	Register(&javaLang{base: base{
		name:    "Java",
		key:     "java",
		exts:    []string{".java"},
		grammar: java.GetLanguage,
		kinds: map[Category][]string{
			CategoryContainer:    {"class_declaration", "interface_declaration", "enum_declaration", "record_declaration"},
			CategoryFunction:     {"method_declaration", "constructor_declaration"},
			CategoryType:         {"class_declaration", "interface_declaration", "enum_declaration", "record_declaration"},
			CategoryImport:       {"import_declaration"},
			CategoryPublicSymbol: {"class_declaration", "interface_declaration", "enum_declaration", "record_declaration", "method_declaration"},
			CategoryScope:        {"for_statement", "enhanced_for_statement", "while_statement", "do_statement", "try_statement", "catch_clause", "switch_expression", "block", "lambda_expression"},
			CategoryControlFlow:  {"if_statement", "for_statement", "enhanced_for_statement", "while_statement", "do_statement", "switch_expression", "try_statement", "return_statement", "break_statement", "continue_statement", "throw_statement"},
			CategoryComplexity:   {"if_statement", "for_statement", "enhanced_for_statement", "while_statement", "do_statement", "switch_label", "catch_clause", "ternary_expression", "binary_expression"},
			CategoryNesting:      {"if_statement", "for_statement", "enhanced_for_statement", "while_statement", "do_statement", "switch_expression", "try_statement", "method_declaration", "class_declaration"},
			CategoryCall:         {"method_invocation", "object_creation_expression"},
		},
		mechanism: AccessModifier,
	}})
}

type javaLang struct {
	base
}

func (j *javaLang) ExtractFunction(n *sitter.Node, src []byte, _ bool) (Symbol, bool) {
	name, ok := fieldText(n, "name", src)
	if !ok {
		return Symbol{}, false
	}
	params := "()"
	if p := n.ChildByFieldName("parameters"); p != nil {
		params = CollapseWhitespace(NodeText(p, src))
	}
	sig := name + params
	if t, ok := fieldText(n, "type", src); ok {
		sig = t + " " + sig
	}
	sym := newSymbol(n, name, KindMethod, sig)
	sym.Docstring = precedingComment(n, src, "//")
	sym.Visibility = j.VisibilityOf(n, src)
	return sym, true
}

func (j *javaLang) ExtractContainer(n *sitter.Node, src []byte) (Symbol, bool) {
	name, ok := fieldText(n, "name", src)
	if !ok {
		return Symbol{}, false
	}
	kind, keyword := KindClass, "class"
	switch n.Type() {
	case "interface_declaration":
		kind, keyword = KindInterface, "interface"
	case "enum_declaration":
		kind, keyword = KindEnum, "enum"
	case "record_declaration":
		keyword = "record"
	}
	sym := newSymbol(n, name, kind, keyword+" "+name)
	sym.Docstring = precedingComment(n, src, "//")
	sym.Visibility = j.VisibilityOf(n, src)
	return sym, true
}

func (j *javaLang) ExtractType(n *sitter.Node, src []byte) (Symbol, bool) {
	return j.ExtractContainer(n, src)
}

func (j *javaLang) ExtractImports(n *sitter.Node, src []byte) []Import {
	if n.Type() != "import_declaration" {
		return nil
	}
	var path string
	wildcard := false
	for _, c := range children(n) {
		switch c.Type() {
		case "scoped_identifier", "identifier":
			path = NodeText(c, src)
		case "asterisk":
			wildcard = true
		}
	}
	if path == "" {
		return nil
	}
	imp := Import{Module: path, IsWildcard: wildcard, Line: StartLine(n)}
	if !wildcard {
		// import a.b.C names C from module a.b.
		if i := strings.LastIndexByte(path, '.'); i > 0 {
			imp.Module = path[:i]
			imp.Names = []string{path[i+1:]}
		}
	}
	return []Import{imp}
}

func (j *javaLang) ExtractPublicSymbols(n *sitter.Node, src []byte) []Export {
	if j.VisibilityOf(n, src) != Public {
		return nil
	}
	name, ok := fieldText(n, "name", src)
	if !ok {
		return nil
	}
	kind := KindClass
	switch n.Type() {
	case "interface_declaration":
		kind = KindInterface
	case "enum_declaration":
		kind = KindEnum
	case "method_declaration":
		kind = KindMethod
	}
	return []Export{{Name: name, Kind: kind, Line: StartLine(n)}}
}

// VisibilityOf reads the modifiers list; package-private declarations
// count as public.
func (j *javaLang) VisibilityOf(n *sitter.Node, src []byte) Visibility {
	mods := childOfType(n, "modifiers")
	if mods == nil {
		return Public
	}
	text := NodeText(mods, src)
	switch {
	case strings.Contains(text, "private"):
		return Private
	case strings.Contains(text, "protected"):
		return Protected
	}
	return Public
}

func (j *javaLang) IsPublic(n *sitter.Node, src []byte) bool {
	return j.VisibilityOf(n, src) == Public
}

func (j *javaLang) CalleeName(n *sitter.Node, src []byte) (string, bool) {
	return calleeFromField(n, src, "name", "type")
}
