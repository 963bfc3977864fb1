package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

func init() {
	Register(&rustLang{base: base{
		name:    "Rust",
		key:     "rust",
		exts:    []string{".rs"},
		grammar: rust.GetLanguage,
		kinds: map[Category][]string{
			CategoryContainer:    {"impl_item", "trait_item", "mod_item"},
			CategoryFunction:     {"function_item", "function_signature_item"},
			CategoryType:         {"struct_item", "enum_item", "type_item", "union_item", "trait_item"},
			CategoryImport:       {"use_declaration"},
			CategoryPublicSymbol: {"function_item", "struct_item", "enum_item", "type_item", "trait_item", "const_item", "static_item", "mod_item"},
			CategoryScope:        {"block", "for_expression", "while_expression", "loop_expression", "closure_expression", "match_arm"},
			CategoryControlFlow:  {"if_expression", "match_expression", "for_expression", "while_expression", "loop_expression", "return_expression", "break_expression", "continue_expression"},
			CategoryComplexity:   {"if_expression", "match_arm", "for_expression", "while_expression", "loop_expression", "binary_expression", "try_expression"},
			CategoryNesting:      {"if_expression", "match_expression", "for_expression", "while_expression", "loop_expression", "function_item", "impl_item", "closure_expression"},
			CategoryCall:         {"call_expression"},
		},
		mechanism: AccessModifier,
	}})
}

type rustLang struct {
	base
}

func (r *rustLang) ExtractFunction(n *sitter.Node, src []byte, inContainer bool) (Symbol, bool) {
	name, ok := fieldText(n, "name", src)
	if !ok {
		return Symbol{}, false
	}
	sym := newSymbol(n, name, functionKind(inContainer), strings.TrimSuffix(headerText(n, src, "body"), ";"))
	sym.Docstring = precedingComment(n, src, "///", "//!", "//")
	sym.Visibility = r.VisibilityOf(n, src)
	return sym, true
}

func (r *rustLang) ExtractContainer(n *sitter.Node, src []byte) (Symbol, bool) {
	switch n.Type() {
	case "impl_item":
		typ, ok := fieldText(n, "type", src)
		if !ok {
			return Symbol{}, false
		}
		sig := "impl " + typ
		if tr, ok := fieldText(n, "trait", src); ok {
			sig = "impl " + tr + " for " + typ
		}
		sym := newSymbol(n, typ, KindType, sig)
		// impl blocks take the visibility of their methods, not their own.
		sym.Visibility = Public
		return sym, true
	case "trait_item":
		return r.ExtractType(n, src)
	case "mod_item":
		name, ok := fieldText(n, "name", src)
		if !ok {
			return Symbol{}, false
		}
		sym := newSymbol(n, name, KindModule, "mod "+name)
		sym.Visibility = r.VisibilityOf(n, src)
		sym.Docstring = precedingComment(n, src, "///", "//")
		return sym, true
	}
	return Symbol{}, false
}

func (r *rustLang) ExtractType(n *sitter.Node, src []byte) (Symbol, bool) {
	name, ok := fieldText(n, "name", src)
	if !ok {
		return Symbol{}, false
	}
	var kind Kind
	var keyword string
	switch n.Type() {
	case "struct_item":
		kind, keyword = KindStruct, "struct"
	case "enum_item":
		kind, keyword = KindEnum, "enum"
	case "trait_item":
		kind, keyword = KindTrait, "trait"
	case "union_item":
		kind, keyword = KindStruct, "union"
	default:
		kind, keyword = KindType, "type"
	}
	sym := newSymbol(n, name, kind, keyword+" "+name)
	sym.Docstring = precedingComment(n, src, "///", "//")
	sym.Visibility = r.VisibilityOf(n, src)
	return sym, true
}

func (r *rustLang) ExtractImports(n *sitter.Node, src []byte) []Import {
	if n.Type() != "use_declaration" {
		return nil
	}
	arg := n.ChildByFieldName("argument")
	if arg == nil {
		return nil
	}
	return parseRustUse(CollapseWhitespace(NodeText(arg, src)), StartLine(n))
}

// parseRustUse splits a use tree like "a::b::{C, d::E as F}" into one
// Import per leaf path.
func parseRustUse(text string, line int) []Import {
	text = strings.TrimSpace(text)
	if open := strings.Index(text, "{"); open >= 0 && strings.HasSuffix(text, "}") {
		prefix := strings.TrimSuffix(strings.TrimSpace(text[:open]), "::")
		var out []Import
		var names []string
		for _, item := range splitTopLevel(text[open+1 : len(text)-1]) {
			item = strings.TrimSpace(item)
			switch {
			case item == "":
			case item == "self":
				out = append(out, rustImport(prefix, line))
			case strings.Contains(item, "{") || strings.Contains(item, "::") || strings.Contains(item, " as "):
				sub := item
				if prefix != "" {
					sub = prefix + "::" + item
				}
				out = append(out, parseRustUse(sub, line)...)
			default:
				names = append(names, item)
			}
		}
		if len(names) > 0 {
			imp := rustImport(prefix, line)
			imp.Names = names
			out = append([]Import{imp}, out...)
		}
		return out
	}

	var alias string
	if path, a, found := strings.Cut(text, " as "); found {
		text, alias = strings.TrimSpace(path), strings.TrimSpace(a)
	}
	text = strings.ReplaceAll(text, " ", "")
	if strings.HasSuffix(text, "::*") {
		imp := rustImport(strings.TrimSuffix(text, "::*"), line)
		imp.IsWildcard = true
		return []Import{imp}
	}
	imp := rustImport(text, line)
	imp.Alias = alias
	return []Import{imp}
}

func rustImport(path string, line int) Import {
	return Import{
		Module: path,
		IsRelative: strings.HasPrefix(path, "crate") || strings.HasPrefix(path, "self") ||
			strings.HasPrefix(path, "super"),
		Line: line,
	}
}

// splitTopLevel splits s on commas not nested inside braces.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

func (r *rustLang) ExtractPublicSymbols(n *sitter.Node, src []byte) []Export {
	if r.VisibilityOf(n, src) != Public {
		return nil
	}
	name, ok := fieldText(n, "name", src)
	if !ok {
		return nil
	}
	var kind Kind
	switch n.Type() {
	case "function_item":
		kind = KindFunction
	case "struct_item":
		kind = KindStruct
	case "enum_item":
		kind = KindEnum
	case "trait_item":
		kind = KindTrait
	case "const_item", "static_item":
		kind = KindConstant
	case "mod_item":
		kind = KindModule
	default:
		kind = KindType
	}
	return []Export{{Name: name, Kind: kind, Line: StartLine(n)}}
}

func (r *rustLang) VisibilityOf(n *sitter.Node, src []byte) Visibility {
	mod := childOfType(n, "visibility_modifier")
	if mod == nil {
		return Private
	}
	if text := NodeText(mod, src); text == "pub" {
		return Public
	}
	// pub(crate), pub(super), pub(in path)
	return Internal
}

func (r *rustLang) IsPublic(n *sitter.Node, src []byte) bool {
	return r.VisibilityOf(n, src) == Public
}

func (r *rustLang) Resolver() Resolver { return rustResolver{} }
