package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

func init() {
	Register(&goLang{base: base{
		name:    "Go",
		key:     "go",
		exts:    []string{".go"},
		grammar: golang.GetLanguage,
		kinds: map[Category][]string{
			CategoryContainer:    {},
			CategoryFunction:     {"function_declaration", "method_declaration"},
			CategoryType:         {"type_spec", "type_alias"},
			CategoryImport:       {"import_declaration"},
			CategoryPublicSymbol: {"function_declaration", "method_declaration", "type_spec", "const_spec", "var_spec"},
			CategoryScope:        {"for_statement", "if_statement", "expression_switch_statement", "type_switch_statement", "select_statement", "block", "func_literal"},
			CategoryControlFlow:  {"if_statement", "for_statement", "expression_switch_statement", "type_switch_statement", "select_statement", "return_statement", "break_statement", "continue_statement", "goto_statement", "defer_statement"},
			CategoryComplexity:   {"if_statement", "for_statement", "expression_case", "type_case", "communication_case", "binary_expression"},
			CategoryNesting:      {"if_statement", "for_statement", "expression_switch_statement", "type_switch_statement", "select_statement", "function_declaration", "method_declaration", "func_literal"},
			CategoryCall:         {"call_expression"},
		},
		mechanism: NamingConvention,
	}})
}

type goLang struct {
	base
}

func (g *goLang) ExtractFunction(n *sitter.Node, src []byte, _ bool) (Symbol, bool) {
	name, ok := fieldText(n, "name", src)
	if !ok {
		return Symbol{}, false
	}
	kind := KindFunction
	if n.Type() == "method_declaration" {
		kind = KindMethod
	}
	sym := newSymbol(n, name, kind, headerText(n, src, "body"))
	sym.Docstring = precedingComment(n, src, "//")
	sym.Visibility = goVisibility(name)
	return sym, true
}

func (g *goLang) ExtractType(n *sitter.Node, src []byte) (Symbol, bool) {
	name, ok := fieldText(n, "name", src)
	if !ok {
		return Symbol{}, false
	}
	kind := KindType
	if t := n.ChildByFieldName("type"); t != nil {
		switch t.Type() {
		case "struct_type":
			kind = KindStruct
		case "interface_type":
			kind = KindInterface
		}
	}
	sym := newSymbol(n, name, kind, "type "+name)
	// The doc comment sits above the enclosing type_declaration.
	if p := n.Parent(); p != nil && p.Type() == "type_declaration" {
		sym.Docstring = precedingComment(p, src, "//")
	}
	sym.Visibility = goVisibility(name)
	return sym, true
}

func (g *goLang) ExtractImports(n *sitter.Node, src []byte) []Import {
	if n.Type() != "import_declaration" {
		return nil
	}
	line := StartLine(n)
	var out []Import
	for _, c := range children(n) {
		switch c.Type() {
		case "import_spec":
			if imp, ok := goImportSpec(c, src, line); ok {
				out = append(out, imp)
			}
		case "import_spec_list":
			for _, spec := range children(c) {
				if spec.Type() != "import_spec" {
					continue
				}
				// Grouped specs keep their own line.
				if imp, ok := goImportSpec(spec, src, StartLine(spec)); ok {
					out = append(out, imp)
				}
			}
		}
	}
	return out
}

func goImportSpec(n *sitter.Node, src []byte, line int) (Import, bool) {
	path, ok := fieldText(n, "path", src)
	if !ok {
		return Import{}, false
	}
	imp := Import{Module: unquote(path), Line: line}
	if alias, ok := fieldText(n, "name", src); ok {
		imp.Alias = alias
		imp.IsWildcard = alias == "."
	}
	return imp, imp.Module != ""
}

func (g *goLang) ExtractPublicSymbols(n *sitter.Node, src []byte) []Export {
	var kind Kind
	switch n.Type() {
	case "function_declaration":
		kind = KindFunction
	case "method_declaration":
		kind = KindMethod
	case "type_spec":
		kind = KindType
	case "const_spec":
		kind = KindConstant
	case "var_spec":
		kind = KindVariable
	default:
		return nil
	}
	var out []Export
	for _, name := range goDeclaredNames(n, src) {
		if isUpper(name) {
			out = append(out, Export{Name: name, Kind: kind, Line: StartLine(n)})
		}
	}
	return out
}

// goDeclaredNames returns the identifiers a declaration introduces. const
// and var specs may declare several names before the type or "=".
func goDeclaredNames(n *sitter.Node, src []byte) []string {
	switch n.Type() {
	case "const_spec", "var_spec":
		var names []string
		for _, c := range children(n) {
			if c.Type() == "identifier" {
				names = append(names, NodeText(c, src))
				continue
			}
			if c.Type() != "," {
				break
			}
		}
		return names
	}
	if name, ok := fieldText(n, "name", src); ok {
		return []string{name}
	}
	return nil
}

func (g *goLang) VisibilityOf(n *sitter.Node, src []byte) Visibility {
	names := goDeclaredNames(n, src)
	if len(names) == 0 {
		return Private
	}
	return goVisibility(names[0])
}

func (g *goLang) IsPublic(n *sitter.Node, src []byte) bool {
	return g.VisibilityOf(n, src) == Public
}

func (g *goLang) Resolver() Resolver { return goResolver{} }

func goVisibility(name string) Visibility {
	if isUpper(name) {
		return Public
	}
	return Private
}
