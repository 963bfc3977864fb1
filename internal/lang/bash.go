package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
)

func init() {
	Register(&bashLang{base: base{
		name:    "Bash",
		key:     "bash",
		exts:    []string{".sh", ".bash"},
		grammar: bash.GetLanguage,
		kinds: map[Category][]string{
			CategoryContainer:    {},
			CategoryFunction:     {"function_definition"},
			CategoryType:         {},
			CategoryImport:       {"command"},
			CategoryPublicSymbol: {"function_definition"},
			CategoryScope:        {"subshell", "compound_statement"},
			CategoryControlFlow:  {"if_statement", "for_statement", "c_style_for_statement", "while_statement", "case_statement"},
			CategoryComplexity:   {"if_statement", "elif_clause", "for_statement", "c_style_for_statement", "while_statement", "case_item", "list"},
			CategoryNesting:      {"if_statement", "for_statement", "c_style_for_statement", "while_statement", "case_statement", "function_definition"},
			CategoryCall:         {"command"},
		},
		mechanism: NotApplicable,
	}})
}

type bashLang struct {
	base
}

func (b *bashLang) ExtractFunction(n *sitter.Node, src []byte, _ bool) (Symbol, bool) {
	name, ok := fieldText(n, "name", src)
	if !ok {
		return Symbol{}, false
	}
	sym := newSymbol(n, name, KindFunction, name+"()")
	sym.Docstring = precedingComment(n, src, "#")
	return sym, true
}

// ExtractImports reads "source file" and ". file" commands.
func (b *bashLang) ExtractImports(n *sitter.Node, src []byte) []Import {
	name, ok := fieldText(n, "name", src)
	if !ok || (name != "source" && name != ".") {
		return nil
	}
	arg := n.ChildByFieldName("argument")
	if arg == nil {
		return nil
	}
	return []Import{{Module: unquote(NodeText(arg, src)), IsRelative: true, Line: StartLine(n)}}
}

func (b *bashLang) ExtractPublicSymbols(n *sitter.Node, src []byte) []Export {
	if sym, ok := b.ExtractFunction(n, src, false); ok {
		return []Export{{Name: sym.Name, Kind: KindFunction, Line: sym.StartLine}}
	}
	return nil
}

func (b *bashLang) CalleeName(n *sitter.Node, src []byte) (string, bool) {
	name, ok := fieldText(n, "name", src)
	if !ok {
		return "", false
	}
	return CalleeFromText(name)
}
