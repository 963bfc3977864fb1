package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

var (
	esScopeKinds = []string{
		"for_statement", "for_in_statement", "while_statement", "do_statement",
		"try_statement", "catch_clause", "switch_statement", "arrow_function", "statement_block",
	}
	esControlFlowKinds = []string{
		"if_statement", "for_statement", "for_in_statement", "while_statement",
		"do_statement", "switch_statement", "try_statement", "return_statement",
		"break_statement", "continue_statement", "throw_statement",
	}
	esComplexityKinds = []string{
		"if_statement", "for_statement", "for_in_statement", "while_statement",
		"do_statement", "switch_case", "catch_clause", "ternary_expression", "binary_expression",
	}
	esNestingKinds = []string{
		"if_statement", "for_statement", "for_in_statement", "while_statement",
		"do_statement", "switch_statement", "try_statement", "function_declaration",
		"method_definition", "class_declaration",
	}
	esCallKinds = []string{"call_expression", "new_expression"}
)

func init() {
	Register(newESLang("JavaScript", []string{".js", ".jsx", ".mjs", ".cjs"}, javascript.GetLanguage, false))
	Register(newESLang("TypeScript", []string{".ts", ".mts", ".cts"}, typescript.GetLanguage, true))
	Register(newESLang("TSX", []string{".tsx"}, tsx.GetLanguage, true))
}

func newESLang(name string, exts []string, grammar func() *sitter.Language, typed bool) *esLang {
	functions := []string{"function_declaration", "generator_function_declaration", "method_definition", "variable_declarator"}
	types := []string{"class_declaration"}
	containers := []string{"class_declaration", "class"}
	if typed {
		types = append(types, "interface_declaration", "type_alias_declaration", "enum_declaration", "abstract_class_declaration")
		containers = append(containers, "abstract_class_declaration", "interface_declaration")
		functions = append(functions, "function_signature", "method_signature", "abstract_method_signature")
	}
	return &esLang{base: base{
		name:    name,
		key:     "js",
		exts:    exts,
		grammar: grammar,
		kinds: map[Category][]string{
			CategoryContainer:    containers,
			CategoryFunction:     functions,
			CategoryType:         types,
			CategoryImport:       {"import_statement"},
			CategoryPublicSymbol: {"export_statement"},
			CategoryScope:        esScopeKinds,
			CategoryControlFlow:  esControlFlowKinds,
			CategoryComplexity:   esComplexityKinds,
			CategoryNesting:      esNestingKinds,
			CategoryCall:         esCallKinds,
		},
		mechanism: ExplicitExport,
	}}
}

// esLang covers JavaScript, TypeScript and TSX.
type esLang struct {
	base
}

func (e *esLang) ExtractFunction(n *sitter.Node, src []byte, inContainer bool) (Symbol, bool) {
	// const handler = (req) => { ... }
	if n.Type() == "variable_declarator" {
		value := n.ChildByFieldName("value")
		if value == nil {
			return Symbol{}, false
		}
		switch value.Type() {
		case "arrow_function", "function", "function_expression", "generator_function":
		default:
			return Symbol{}, false
		}
		name, ok := fieldText(n, "name", src)
		if !ok || strings.ContainsAny(name, "{[") {
			return Symbol{}, false
		}
		params := "()"
		if p := value.ChildByFieldName("parameters"); p != nil {
			params = CollapseWhitespace(NodeText(p, src))
		} else if p := value.ChildByFieldName("parameter"); p != nil {
			params = "(" + NodeText(p, src) + ")"
		}
		sym := newSymbol(n, name, KindFunction, "const "+name+" = "+params+" =>")
		sym.Docstring = esDocComment(n, src)
		sym.Visibility = e.VisibilityOf(n, src)
		return sym, true
	}

	name, ok := fieldText(n, "name", src)
	if !ok {
		return Symbol{}, false
	}
	params := "()"
	if p := n.ChildByFieldName("parameters"); p != nil {
		params = CollapseWhitespace(NodeText(p, src))
	}
	sig := "function " + name + params
	kind := functionKind(inContainer)
	switch n.Type() {
	case "method_definition", "method_signature", "abstract_method_signature":
		sig = name + params
		kind = KindMethod
	}
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		sig += CollapseWhitespace(NodeText(rt, src))
	}
	sym := newSymbol(n, name, kind, sig)
	sym.Docstring = esDocComment(n, src)
	sym.Visibility = e.VisibilityOf(n, src)
	return sym, true
}

func (e *esLang) ExtractContainer(n *sitter.Node, src []byte) (Symbol, bool) {
	name, ok := fieldText(n, "name", src)
	if !ok {
		// Anonymous class expressions have no symbol.
		return Symbol{}, false
	}
	kind, keyword := KindClass, "class"
	if n.Type() == "interface_declaration" {
		kind, keyword = KindInterface, "interface"
	}
	sym := newSymbol(n, name, kind, keyword+" "+name)
	sym.Docstring = esDocComment(n, src)
	sym.Visibility = e.VisibilityOf(n, src)
	return sym, true
}

func (e *esLang) ExtractType(n *sitter.Node, src []byte) (Symbol, bool) {
	var kind Kind
	var keyword string
	switch n.Type() {
	case "interface_declaration":
		kind, keyword = KindInterface, "interface"
	case "type_alias_declaration":
		kind, keyword = KindType, "type"
	case "enum_declaration":
		kind, keyword = KindEnum, "enum"
	case "class_declaration", "abstract_class_declaration":
		kind, keyword = KindClass, "class"
	default:
		return Symbol{}, false
	}
	name, ok := fieldText(n, "name", src)
	if !ok {
		return Symbol{}, false
	}
	sym := newSymbol(n, name, kind, keyword+" "+name)
	sym.Docstring = esDocComment(n, src)
	sym.Visibility = e.VisibilityOf(n, src)
	return sym, true
}

// esDocComment reads the JSDoc block above a declaration, or above the
// export statement wrapping it.
func esDocComment(n *sitter.Node, src []byte) string {
	target := n
	if n.Type() == "variable_declarator" && n.Parent() != nil {
		target = n.Parent()
	}
	if p := target.Parent(); p != nil && p.Type() == "export_statement" {
		target = p
	}
	return precedingComment(target, src, "//")
}

func (e *esLang) ExtractImports(n *sitter.Node, src []byte) []Import {
	if n.Type() != "import_statement" {
		return nil
	}
	source, ok := fieldText(n, "source", src)
	if !ok {
		return nil
	}
	imp := Import{Module: unquote(source), Line: StartLine(n)}
	imp.IsRelative = strings.HasPrefix(imp.Module, ".")
	if clause := childOfType(n, "import_clause"); clause != nil {
		for _, c := range children(clause) {
			switch c.Type() {
			case "identifier":
				imp.Names = append(imp.Names, NodeText(c, src))
			case "named_imports":
				for _, spec := range children(c) {
					if spec.Type() != "import_specifier" {
						continue
					}
					if name, ok := fieldText(spec, "name", src); ok {
						imp.Names = append(imp.Names, name)
					}
				}
			case "namespace_import":
				if id := childOfType(c, "identifier"); id != nil {
					imp.Alias = NodeText(id, src)
				}
				imp.IsWildcard = true
			}
		}
	}
	return []Import{imp}
}

func (e *esLang) ExtractPublicSymbols(n *sitter.Node, src []byte) []Export {
	if n.Type() != "export_statement" {
		return nil
	}
	line := StartLine(n)
	var out []Export
	if decl := n.ChildByFieldName("declaration"); decl != nil {
		switch decl.Type() {
		case "function_declaration", "generator_function_declaration", "function_signature":
			if name, ok := fieldText(decl, "name", src); ok {
				out = append(out, Export{Name: name, Kind: KindFunction, Line: line})
			}
		case "class_declaration", "abstract_class_declaration":
			if name, ok := fieldText(decl, "name", src); ok {
				out = append(out, Export{Name: name, Kind: KindClass, Line: line})
			}
		case "interface_declaration":
			if name, ok := fieldText(decl, "name", src); ok {
				out = append(out, Export{Name: name, Kind: KindInterface, Line: line})
			}
		case "type_alias_declaration":
			if name, ok := fieldText(decl, "name", src); ok {
				out = append(out, Export{Name: name, Kind: KindType, Line: line})
			}
		case "enum_declaration":
			if name, ok := fieldText(decl, "name", src); ok {
				out = append(out, Export{Name: name, Kind: KindEnum, Line: line})
			}
		case "lexical_declaration", "variable_declaration":
			kind := KindVariable
			if strings.HasPrefix(NodeText(decl, src), "const") {
				kind = KindConstant
			}
			for _, c := range children(decl) {
				if c.Type() != "variable_declarator" {
					continue
				}
				if name, ok := fieldText(c, "name", src); ok {
					out = append(out, Export{Name: name, Kind: kind, Line: line})
				}
			}
		}
		return out
	}
	// export { a, b as c }
	if clause := childOfType(n, "export_clause"); clause != nil {
		for _, spec := range children(clause) {
			if spec.Type() != "export_specifier" {
				continue
			}
			name, ok := fieldText(spec, "alias", src)
			if !ok {
				name, ok = fieldText(spec, "name", src)
			}
			if ok {
				out = append(out, Export{Name: name, Kind: KindVariable, Line: line})
			}
		}
	}
	return out
}

func (e *esLang) VisibilityOf(n *sitter.Node, src []byte) Visibility {
	if mod := childOfType(n, "accessibility_modifier"); mod != nil {
		switch strings.TrimSpace(NodeText(mod, src)) {
		case "private":
			return Private
		case "protected":
			return Protected
		}
		return Public
	}
	if name := n.ChildByFieldName("name"); name != nil && name.Type() == "private_property_identifier" {
		return Private
	}
	switch n.Type() {
	case "method_definition", "method_signature", "abstract_method_signature":
		return Public
	}
	if esExported(n) {
		return Public
	}
	return Private
}

// esExported reports whether n sits directly under an export statement.
func esExported(n *sitter.Node) bool {
	for p, depth := n.Parent(), 0; p != nil && depth < 2; p, depth = p.Parent(), depth+1 {
		if p.Type() == "export_statement" {
			return true
		}
	}
	return false
}

func (e *esLang) IsPublic(n *sitter.Node, src []byte) bool {
	return e.VisibilityOf(n, src) == Public
}

func (e *esLang) CalleeName(n *sitter.Node, src []byte) (string, bool) {
	return calleeFromField(n, src, "function", "constructor")
}

func (e *esLang) Resolver() Resolver { return nodeResolver{} }
