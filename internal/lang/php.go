package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"
)

func init() {
	Register(&phpLang{base: base{
		name:    "PHP",
		key:     "php",
		exts:    []string{".php"},
		grammar: php.GetLanguage,
		kinds: map[Category][]string{
			CategoryContainer:    {"class_declaration", "interface_declaration", "trait_declaration", "enum_declaration"},
			CategoryFunction:     {"function_definition", "method_declaration"},
			CategoryType:         {"class_declaration", "interface_declaration", "trait_declaration", "enum_declaration"},
			CategoryImport:       {"namespace_use_declaration", "include_expression", "include_once_expression", "require_expression", "require_once_expression"},
			CategoryPublicSymbol: {"class_declaration", "interface_declaration", "trait_declaration", "function_definition", "method_declaration"},
			CategoryScope:        {"compound_statement", "for_statement", "foreach_statement", "while_statement", "anonymous_function_creation_expression", "arrow_function"},
			CategoryControlFlow:  {"if_statement", "for_statement", "foreach_statement", "while_statement", "do_statement", "switch_statement", "try_statement", "return_statement", "break_statement", "continue_statement", "throw_expression"},
			CategoryComplexity:   {"if_statement", "else_if_clause", "for_statement", "foreach_statement", "while_statement", "do_statement", "case_statement", "catch_clause", "conditional_expression", "binary_expression"},
			CategoryNesting:      {"if_statement", "for_statement", "foreach_statement", "while_statement", "do_statement", "switch_statement", "try_statement", "function_definition", "method_declaration", "class_declaration"},
			CategoryCall:         {"function_call_expression", "member_call_expression", "scoped_call_expression", "object_creation_expression"},
		},
		mechanism: AccessModifier,
	}})
}

type phpLang struct {
	base
}

func (p *phpLang) ExtractFunction(n *sitter.Node, src []byte, inContainer bool) (Symbol, bool) {
	name, ok := fieldText(n, "name", src)
	if !ok {
		return Symbol{}, false
	}
	params := "()"
	if ps := n.ChildByFieldName("parameters"); ps != nil {
		params = CollapseWhitespace(NodeText(ps, src))
	}
	kind := functionKind(inContainer)
	if n.Type() == "method_declaration" {
		kind = KindMethod
	}
	sym := newSymbol(n, name, kind, "function "+name+params)
	sym.Docstring = precedingComment(n, src, "//", "#")
	sym.Visibility = p.VisibilityOf(n, src)
	return sym, true
}

func (p *phpLang) ExtractContainer(n *sitter.Node, src []byte) (Symbol, bool) {
	name, ok := fieldText(n, "name", src)
	if !ok {
		return Symbol{}, false
	}
	kind, keyword := KindClass, "class"
	switch n.Type() {
	case "interface_declaration":
		kind, keyword = KindInterface, "interface"
	case "trait_declaration":
		kind, keyword = KindTrait, "trait"
	case "enum_declaration":
		kind, keyword = KindEnum, "enum"
	}
	sym := newSymbol(n, name, kind, keyword+" "+name)
	sym.Docstring = precedingComment(n, src, "//", "#")
	return sym, true
}

func (p *phpLang) ExtractType(n *sitter.Node, src []byte) (Symbol, bool) {
	return p.ExtractContainer(n, src)
}

func (p *phpLang) ExtractImports(n *sitter.Node, src []byte) []Import {
	line := StartLine(n)
	if n.Type() != "namespace_use_declaration" {
		// include/require: the argument is the path expression.
		if n.NamedChildCount() == 0 {
			return nil
		}
		arg := n.NamedChild(0)
		if arg.Type() != "string" && arg.Type() != "encapsed_string" {
			return nil
		}
		mod := unquote(NodeText(arg, src))
		return []Import{{Module: mod, IsRelative: !strings.HasPrefix(mod, "/"), Line: line}}
	}

	// use A\B\C, D\E as F;
	text := strings.TrimSuffix(CollapseWhitespace(NodeText(n, src)), ";")
	text = strings.TrimSpace(strings.TrimPrefix(text, "use"))
	for _, kw := range []string{"function ", "const "} {
		text = strings.TrimPrefix(text, kw)
	}
	var out []Import
	for _, clause := range splitTopLevel(text) {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		var alias string
		if path, a, found := strings.Cut(clause, " as "); found {
			clause, alias = strings.TrimSpace(path), strings.TrimSpace(a)
		}
		clause = strings.TrimPrefix(clause, "\\")
		imp := Import{Module: clause, Alias: alias, Line: line}
		if i := strings.LastIndexByte(clause, '\\'); i > 0 {
			imp.Module, imp.Names = clause[:i], []string{clause[i+1:]}
		}
		out = append(out, imp)
	}
	return out
}

func (p *phpLang) ExtractPublicSymbols(n *sitter.Node, src []byte) []Export {
	if p.VisibilityOf(n, src) != Public {
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
	case "trait_declaration":
		kind = KindTrait
	case "function_definition":
		kind = KindFunction
	case "method_declaration":
		kind = KindMethod
	}
	return []Export{{Name: name, Kind: kind, Line: StartLine(n)}}
}

func (p *phpLang) VisibilityOf(n *sitter.Node, src []byte) Visibility {
	if mod := childOfType(n, "visibility_modifier"); mod != nil {
		switch strings.TrimSpace(NodeText(mod, src)) {
		case "private":
			return Private
		case "protected":
			return Protected
		}
	}
	return Public
}

func (p *phpLang) IsPublic(n *sitter.Node, src []byte) bool {
	return p.VisibilityOf(n, src) == Public
}

func (p *phpLang) CalleeName(n *sitter.Node, src []byte) (string, bool) {
	if n.Type() == "object_creation_expression" {
		for _, c := range children(n) {
			switch c.Type() {
			case "name", "qualified_name":
				return CalleeFromText(NodeText(c, src))
			}
		}
		return "", false
	}
	return calleeFromField(n, src, "name", "function")
}
