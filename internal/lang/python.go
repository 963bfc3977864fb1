package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

func init() {
	Register(&pythonLang{base: base{
		name:    "Python",
		key:     "python",
		exts:    []string{".py", ".pyi"},
		grammar: python.GetLanguage,
		kinds: map[Category][]string{
			CategoryContainer:    {"class_definition"},
			CategoryFunction:     {"function_definition"},
			CategoryType:         {"class_definition"},
			CategoryImport:       {"import_statement", "import_from_statement"},
			CategoryPublicSymbol: {"function_definition", "class_definition"},
			CategoryScope:        {"for_statement", "while_statement", "with_statement", "try_statement", "lambda", "list_comprehension", "dictionary_comprehension", "set_comprehension", "generator_expression"},
			CategoryControlFlow:  {"if_statement", "for_statement", "while_statement", "try_statement", "with_statement", "return_statement", "break_statement", "continue_statement", "raise_statement", "match_statement"},
			CategoryComplexity:   {"if_statement", "elif_clause", "for_statement", "while_statement", "except_clause", "conditional_expression", "boolean_operator", "case_clause"},
			CategoryNesting:      {"if_statement", "for_statement", "while_statement", "try_statement", "with_statement", "function_definition", "class_definition", "match_statement"},
			CategoryCall:         {"call"},
		},
		mechanism: NamingConvention,
	}})
}

type pythonLang struct {
	base
}

func (p *pythonLang) ExtractFunction(n *sitter.Node, src []byte, inContainer bool) (Symbol, bool) {
	name, ok := fieldText(n, "name", src)
	if !ok {
		return Symbol{}, false
	}
	sym := newSymbol(n, name, functionKind(inContainer), headerText(n, src, "body"))
	sym.Docstring = pythonDocstring(n, src)
	sym.Visibility = pythonVisibility(name)
	return sym, true
}

func (p *pythonLang) ExtractContainer(n *sitter.Node, src []byte) (Symbol, bool) {
	name, ok := fieldText(n, "name", src)
	if !ok {
		return Symbol{}, false
	}
	sym := newSymbol(n, name, KindClass, headerText(n, src, "body"))
	sym.Docstring = pythonDocstring(n, src)
	sym.Visibility = pythonVisibility(name)
	return sym, true
}

func (p *pythonLang) ExtractType(n *sitter.Node, src []byte) (Symbol, bool) {
	return p.ExtractContainer(n, src)
}

// pythonDocstring returns the string literal that opens a def or class body.
func pythonDocstring(n *sitter.Node, src []byte) string {
	body := n.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Type() != "string" {
		return ""
	}
	text := NodeText(str, src)
	text = strings.TrimLeft(text, "rRuUbBfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(text, q) && strings.HasSuffix(text, q) && len(text) >= 2*len(q) {
			text = text[len(q) : len(text)-len(q)]
			break
		}
	}
	return strings.TrimSpace(text)
}

func (p *pythonLang) ExtractImports(n *sitter.Node, src []byte) []Import {
	line := StartLine(n)
	switch n.Type() {
	case "import_statement":
		// import a.b, c as d
		var out []Import
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			switch c.Type() {
			case "dotted_name":
				out = append(out, Import{Module: NodeText(c, src), Line: line})
			case "aliased_import":
				mod, _ := fieldText(c, "name", src)
				alias, _ := fieldText(c, "alias", src)
				out = append(out, Import{Module: mod, Alias: alias, Line: line})
			}
		}
		return out
	case "import_from_statement":
		mod, ok := fieldText(n, "module_name", src)
		if !ok {
			return nil
		}
		imp := Import{Module: mod, IsRelative: strings.HasPrefix(mod, "."), Line: line}
		modNode := n.ChildByFieldName("module_name")
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if modNode != nil && c.StartByte() == modNode.StartByte() {
				continue
			}
			switch c.Type() {
			case "wildcard_import":
				imp.IsWildcard = true
			case "dotted_name":
				imp.Names = append(imp.Names, NodeText(c, src))
			case "aliased_import":
				name, _ := fieldText(c, "name", src)
				imp.Names = append(imp.Names, name)
			}
		}
		return []Import{imp}
	}
	return nil
}

func (p *pythonLang) ExtractPublicSymbols(n *sitter.Node, src []byte) []Export {
	if !pythonModuleLevel(n) {
		return nil
	}
	name, ok := fieldText(n, "name", src)
	if !ok || strings.HasPrefix(name, "_") {
		return nil
	}
	kind := KindFunction
	if n.Type() == "class_definition" {
		kind = KindClass
	}
	return []Export{{Name: name, Kind: kind, Line: StartLine(n)}}
}

// pythonModuleLevel reports whether n is declared directly in the module,
// looking through decorators.
func pythonModuleLevel(n *sitter.Node) bool {
	p := n.Parent()
	if p != nil && p.Type() == "decorated_definition" {
		p = p.Parent()
	}
	return p != nil && p.Type() == "module"
}

func (p *pythonLang) VisibilityOf(n *sitter.Node, src []byte) Visibility {
	name, ok := fieldText(n, "name", src)
	if !ok {
		return Public
	}
	return pythonVisibility(name)
}

func (p *pythonLang) IsPublic(n *sitter.Node, src []byte) bool {
	return p.VisibilityOf(n, src) == Public
}

func (p *pythonLang) Resolver() Resolver { return pythonResolver{} }

func pythonVisibility(name string) Visibility {
	switch {
	case strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__"):
		return Public
	case strings.HasPrefix(name, "__"):
		return Private
	case strings.HasPrefix(name, "_"):
		return Protected
	}
	return Public
}
