package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
)

func init() {
	Register(&cLang{base: base{
		name:    "C",
		key:     "c",
		exts:    []string{".c", ".h"},
		grammar: c.GetLanguage,
		kinds: map[Category][]string{
			CategoryContainer:    {},
			CategoryFunction:     {"function_definition"},
			CategoryType:         {"struct_specifier", "enum_specifier", "union_specifier", "type_definition"},
			CategoryImport:       {"preproc_include"},
			CategoryPublicSymbol: {"function_definition", "struct_specifier", "enum_specifier", "type_definition"},
			CategoryScope:        {"compound_statement", "for_statement", "while_statement", "do_statement"},
			CategoryControlFlow:  {"if_statement", "for_statement", "while_statement", "do_statement", "switch_statement", "return_statement", "break_statement", "continue_statement", "goto_statement"},
			CategoryComplexity:   {"if_statement", "for_statement", "while_statement", "do_statement", "case_statement", "conditional_expression", "binary_expression"},
			CategoryNesting:      {"if_statement", "for_statement", "while_statement", "do_statement", "switch_statement", "function_definition"},
			CategoryCall:         {"call_expression"},
		},
		mechanism: HeaderBased,
	}})

	// Scope, control-flow, complexity and nesting kinds are not classified
	// for C++ yet.
	Register(&cppLang{cLang{base: base{
		name:    "C++",
		key:     "cpp",
		exts:    []string{".cpp", ".cc", ".cxx", ".hpp", ".hh", ".hxx"},
		grammar: cpp.GetLanguage,
		kinds: map[Category][]string{
			CategoryContainer:    {"class_specifier", "struct_specifier", "namespace_definition"},
			CategoryFunction:     {"function_definition"},
			CategoryType:         {"class_specifier", "struct_specifier", "enum_specifier", "union_specifier", "type_definition", "alias_declaration"},
			CategoryImport:       {"preproc_include", "using_declaration"},
			CategoryPublicSymbol: {"function_definition", "class_specifier", "struct_specifier"},
			CategoryCall:         {"call_expression"},
		},
		mechanism: HeaderBased,
	}}})
}

type cLang struct {
	base
}

func (l *cLang) ExtractFunction(n *sitter.Node, src []byte, inContainer bool) (Symbol, bool) {
	decl := n.ChildByFieldName("declarator")
	if decl == nil {
		return Symbol{}, false
	}
	name, ok := cDeclaratorName(decl, src)
	if !ok {
		return Symbol{}, false
	}
	sym := newSymbol(n, name, functionKind(inContainer), headerText(n, src, "body"))
	sym.Docstring = precedingComment(n, src, "//")
	sym.Visibility = l.VisibilityOf(n, src)
	return sym, true
}

// cDeclaratorName finds the declared name inside a (possibly pointer or
// qualified) declarator.
func cDeclaratorName(decl *sitter.Node, src []byte) (string, bool) {
	if inner := decl.ChildByFieldName("declarator"); inner != nil && decl.Type() != "qualified_identifier" {
		return cDeclaratorName(inner, src)
	}
	if decl.Type() == "qualified_identifier" {
		if name := decl.ChildByFieldName("name"); name != nil {
			return cDeclaratorName(name, src)
		}
	}
	return findIdentifier(decl, src)
}

func (l *cLang) ExtractType(n *sitter.Node, src []byte) (Symbol, bool) {
	switch n.Type() {
	case "type_definition":
		decl := n.ChildByFieldName("declarator")
		if decl == nil {
			return Symbol{}, false
		}
		id, ok := cDeclaratorName(decl, src)
		if !ok {
			return Symbol{}, false
		}
		sym := newSymbol(n, id, KindType, "typedef "+id)
		sym.Docstring = precedingComment(n, src, "//")
		return sym, true
	case "alias_declaration":
		id, ok := fieldText(n, "name", src)
		if !ok {
			return Symbol{}, false
		}
		return newSymbol(n, id, KindType, "using "+id), true
	}

	// A bare "struct foo" reference has no body and declares nothing.
	if n.ChildByFieldName("body") == nil {
		return Symbol{}, false
	}
	name, ok := fieldText(n, "name", src)
	if !ok {
		return Symbol{}, false
	}
	kind, keyword := KindStruct, "struct"
	switch n.Type() {
	case "enum_specifier":
		kind, keyword = KindEnum, "enum"
	case "union_specifier":
		keyword = "union"
	case "class_specifier":
		kind, keyword = KindClass, "class"
	}
	sym := newSymbol(n, name, kind, keyword+" "+name)
	sym.Docstring = precedingComment(n, src, "//")
	return sym, true
}

func (l *cLang) ExtractImports(n *sitter.Node, src []byte) []Import {
	if n.Type() != "preproc_include" {
		return nil
	}
	path, ok := fieldText(n, "path", src)
	if !ok {
		return nil
	}
	return []Import{{
		Module:     unquote(path),
		IsRelative: strings.HasPrefix(path, "\""),
		Line:       StartLine(n),
	}}
}

func (l *cLang) ExtractPublicSymbols(n *sitter.Node, src []byte) []Export {
	if !l.IsPublic(n, src) {
		return nil
	}
	switch n.Type() {
	case "function_definition":
		if sym, ok := l.ExtractFunction(n, src, false); ok {
			return []Export{{Name: sym.Name, Kind: KindFunction, Line: sym.StartLine}}
		}
	default:
		if sym, ok := l.ExtractType(n, src); ok {
			return []Export{{Name: sym.Name, Kind: sym.Kind, Line: sym.StartLine}}
		}
	}
	return nil
}

// VisibilityOf treats file-local static definitions as private.
func (l *cLang) VisibilityOf(n *sitter.Node, src []byte) Visibility {
	for _, ch := range children(n) {
		if ch.Type() == "storage_class_specifier" && NodeText(ch, src) == "static" {
			return Private
		}
	}
	return Public
}

func (l *cLang) IsPublic(n *sitter.Node, src []byte) bool {
	return l.VisibilityOf(n, src) == Public
}

type cppLang struct {
	cLang
}

func (l *cppLang) ExtractFunction(n *sitter.Node, src []byte, inContainer bool) (Symbol, bool) {
	sym, ok := l.cLang.ExtractFunction(n, src, inContainer)
	if !ok {
		return Symbol{}, false
	}
	// Out-of-line definitions like Foo::bar are methods.
	if decl := n.ChildByFieldName("declarator"); decl != nil {
		if inner := decl.ChildByFieldName("declarator"); inner != nil && inner.Type() == "qualified_identifier" {
			sym.Kind = KindMethod
		}
	}
	sym.Visibility = l.VisibilityOf(n, src)
	return sym, true
}

func (l *cppLang) ExtractContainer(n *sitter.Node, src []byte) (Symbol, bool) {
	if n.Type() == "namespace_definition" {
		name, ok := fieldText(n, "name", src)
		if !ok {
			// Anonymous namespace.
			return Symbol{}, false
		}
		return newSymbol(n, name, KindModule, "namespace "+name), true
	}
	sym, ok := l.cLang.ExtractType(n, src)
	if ok {
		sym.Visibility = l.VisibilityOf(n, src)
	}
	return sym, ok
}

func (l *cppLang) ExtractType(n *sitter.Node, src []byte) (Symbol, bool) {
	return l.cLang.ExtractType(n, src)
}

func (l *cppLang) ExtractImports(n *sitter.Node, src []byte) []Import {
	if n.Type() == "using_declaration" {
		// using namespace std; / using std::string;
		text := strings.TrimSuffix(CollapseWhitespace(NodeText(n, src)), ";")
		text = strings.TrimSpace(strings.TrimPrefix(text, "using"))
		if ns, ok := strings.CutPrefix(text, "namespace "); ok {
			return []Import{{Module: strings.TrimSpace(ns), IsWildcard: true, Line: StartLine(n)}}
		}
		imp := Import{Module: text, Line: StartLine(n)}
		if i := strings.LastIndex(text, "::"); i > 0 {
			imp.Module, imp.Names = text[:i], []string{text[i+2:]}
		}
		return []Import{imp}
	}
	return l.cLang.ExtractImports(n, src)
}

func (l *cppLang) ExtractPublicSymbols(n *sitter.Node, src []byte) []Export {
	if !l.IsPublic(n, src) {
		return nil
	}
	return l.cLang.ExtractPublicSymbols(n, src)
}

// VisibilityOf applies the nearest preceding access specifier inside a
// class body; class members default to private and struct members to
// public.
func (l *cppLang) VisibilityOf(n *sitter.Node, src []byte) Visibility {
	if l.cLang.VisibilityOf(n, src) == Private {
		return Private
	}
	list := n.Parent()
	if list == nil || list.Type() != "field_declaration_list" {
		return Public
	}
	for prev := n.PrevSibling(); prev != nil; prev = prev.PrevSibling() {
		if prev.Type() == "access_specifier" {
			switch strings.TrimSuffix(strings.TrimSpace(NodeText(prev, src)), ":") {
			case "private":
				return Private
			case "protected":
				return Protected
			}
			return Public
		}
	}
	if owner := list.Parent(); owner != nil && owner.Type() == "class_specifier" {
		return Private
	}
	return Public
}

func (l *cppLang) IsPublic(n *sitter.Node, src []byte) bool {
	return l.VisibilityOf(n, src) == Public
}
