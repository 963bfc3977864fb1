package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/scala"
)

func init() {
	// Scala import, scope, control-flow, complexity and nesting kinds are
	// not classified yet.
	Register(&scalaLang{base: base{
		name:    "Scala",
		key:     "scala",
		exts:    []string{".scala", ".sc"},
		grammar: scala.GetLanguage,
		kinds: map[Category][]string{
			CategoryContainer:    {"class_definition", "object_definition", "trait_definition"},
			CategoryFunction:     {"function_definition", "function_declaration"},
			CategoryType:         {"class_definition", "trait_definition", "type_definition", "enum_definition"},
			CategoryPublicSymbol: {},
			CategoryCall:         {"call_expression"},
		},
		mechanism: AccessModifier,
	}})
}

type scalaLang struct {
	base
}

func (s *scalaLang) ExtractFunction(n *sitter.Node, src []byte, inContainer bool) (Symbol, bool) {
	name, ok := fieldText(n, "name", src)
	if !ok {
		return Symbol{}, false
	}
	params := "()"
	if p := n.ChildByFieldName("parameters"); p != nil {
		params = CollapseWhitespace(NodeText(p, src))
	}
	sig := "def " + name + params
	if rt, ok := fieldText(n, "return_type", src); ok {
		sig += ": " + rt
	}
	sym := newSymbol(n, name, functionKind(inContainer), sig)
	sym.Docstring = precedingComment(n, src, "//")
	sym.Visibility = s.VisibilityOf(n, src)
	return sym, true
}

func (s *scalaLang) ExtractContainer(n *sitter.Node, src []byte) (Symbol, bool) {
	name, ok := fieldText(n, "name", src)
	if !ok {
		return Symbol{}, false
	}
	kind, keyword := KindClass, "class"
	switch n.Type() {
	case "object_definition":
		kind, keyword = KindModule, "object"
	case "trait_definition":
		kind, keyword = KindTrait, "trait"
	}
	sym := newSymbol(n, name, kind, keyword+" "+name)
	sym.Docstring = precedingComment(n, src, "//")
	sym.Visibility = s.VisibilityOf(n, src)
	return sym, true
}

func (s *scalaLang) ExtractType(n *sitter.Node, src []byte) (Symbol, bool) {
	switch n.Type() {
	case "type_definition":
		name, ok := fieldText(n, "name", src)
		if !ok {
			return Symbol{}, false
		}
		return newSymbol(n, name, KindType, "type "+name), true
	case "enum_definition":
		name, ok := fieldText(n, "name", src)
		if !ok {
			return Symbol{}, false
		}
		return newSymbol(n, name, KindEnum, "enum "+name), true
	}
	return s.ExtractContainer(n, src)
}

func (s *scalaLang) VisibilityOf(n *sitter.Node, src []byte) Visibility {
	mods := childOfType(n, "modifiers", "access_modifier")
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

func (s *scalaLang) IsPublic(n *sitter.Node, src []byte) bool {
	return s.VisibilityOf(n, src) == Public
}
