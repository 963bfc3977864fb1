package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/css"
	"github.com/smacker/go-tree-sitter/html"
	markdown "github.com/smacker/go-tree-sitter/markdown/tree-sitter-markdown"
	"github.com/smacker/go-tree-sitter/toml"
	"github.com/smacker/go-tree-sitter/yaml"
)

// dataKinds is the kind table shared by markup and data languages: no
// functions, types, control flow or calls.
func dataKinds(containers []string, imports []string) map[Category][]string {
	return map[Category][]string{
		CategoryContainer:    containers,
		CategoryFunction:     {},
		CategoryType:         {},
		CategoryImport:       imports,
		CategoryPublicSymbol: {},
		CategoryScope:        {},
		CategoryControlFlow:  {},
		CategoryComplexity:   {},
		CategoryNesting:      {},
		CategoryCall:         {},
	}
}

func init() {
	Register(&markdownLang{base{
		name:      "Markdown",
		key:       "markdown",
		exts:      []string{".md", ".markdown"},
		grammar:   markdown.GetLanguage,
		kinds:     dataKinds([]string{"section"}, []string{}),
		mechanism: NotApplicable,
	}})
	Register(&yamlLang{base{
		name:      "YAML",
		key:       "yaml",
		exts:      []string{".yaml", ".yml"},
		grammar:   yaml.GetLanguage,
		kinds:     dataKinds([]string{"block_mapping_pair", "flow_pair"}, []string{}),
		mechanism: NotApplicable,
	}})
	Register(&tomlLang{base{
		name:      "TOML",
		key:       "toml",
		exts:      []string{".toml"},
		grammar:   toml.GetLanguage,
		kinds:     dataKinds([]string{"table", "table_array_element", "pair"}, []string{}),
		mechanism: NotApplicable,
	}})
	Register(&htmlLang{base{
		name:      "HTML",
		key:       "html",
		exts:      []string{".html", ".htm"},
		grammar:   html.GetLanguage,
		kinds:     dataKinds([]string{"element"}, []string{"script_element", "element"}),
		mechanism: NotApplicable,
	}})
	Register(&cssLang{base{
		name:      "CSS",
		key:       "css",
		exts:      []string{".css"},
		grammar:   css.GetLanguage,
		kinds:     dataKinds([]string{}, []string{"import_statement"}),
		mechanism: NotApplicable,
	}})
}

// markdownLang turns each section into a heading symbol; nested sections
// become children.
type markdownLang struct{ base }

func (m *markdownLang) ExtractFunction(*sitter.Node, []byte, bool) (Symbol, bool) {
	return Symbol{}, false
}

func (m *markdownLang) ExtractContainer(n *sitter.Node, src []byte) (Symbol, bool) {
	h := childOfType(n, "atx_heading", "setext_heading")
	if h == nil {
		return Symbol{}, false
	}
	var text string
	if c := childOfType(h, "inline", "heading_content", "paragraph"); c != nil {
		text = CollapseWhitespace(NodeText(c, src))
	}
	if text == "" {
		return Symbol{}, false
	}
	level := 1
	for _, c := range children(h) {
		t := c.Type()
		switch {
		case strings.HasPrefix(t, "atx_h") && strings.HasSuffix(t, "_marker"):
			level = int(t[len("atx_h")] - '0')
		case t == "setext_h2_underline":
			level = 2
		}
	}
	sym := newSymbol(n, text, KindHeading, strings.Repeat("#", level)+" "+text)
	return sym, true
}

type yamlLang struct{ base }

func (y *yamlLang) ExtractFunction(*sitter.Node, []byte, bool) (Symbol, bool) {
	return Symbol{}, false
}

func (y *yamlLang) ExtractContainer(n *sitter.Node, src []byte) (Symbol, bool) {
	key, ok := fieldText(n, "key", src)
	if !ok {
		return Symbol{}, false
	}
	key = unquote(key)
	return newSymbol(n, key, KindVariable, key), true
}

type tomlLang struct{ base }

func (t *tomlLang) ExtractFunction(*sitter.Node, []byte, bool) (Symbol, bool) {
	return Symbol{}, false
}

func (t *tomlLang) ExtractContainer(n *sitter.Node, src []byte) (Symbol, bool) {
	key := childOfType(n, "bare_key", "dotted_key", "quoted_key")
	if key == nil {
		return Symbol{}, false
	}
	name := unquote(NodeText(key, src))
	switch n.Type() {
	case "pair":
		return newSymbol(n, name, KindVariable, name), true
	case "table_array_element":
		return newSymbol(n, name, KindModule, "[["+name+"]]"), true
	}
	return newSymbol(n, name, KindModule, "["+name+"]"), true
}

// htmlLang names elements carrying an id attribute and reads script and
// stylesheet references as imports.
type htmlLang struct{ base }

func (h *htmlLang) ExtractFunction(*sitter.Node, []byte, bool) (Symbol, bool) {
	return Symbol{}, false
}

func (h *htmlLang) ExtractContainer(n *sitter.Node, src []byte) (Symbol, bool) {
	start := childOfType(n, "start_tag", "self_closing_tag")
	if start == nil {
		return Symbol{}, false
	}
	id, ok := htmlAttr(start, "id", src)
	if !ok || id == "" {
		return Symbol{}, false
	}
	tag := ""
	if t := childOfType(start, "tag_name"); t != nil {
		tag = NodeText(t, src)
	}
	return newSymbol(n, id, KindVariable, tag+"#"+id), true
}

func (h *htmlLang) ExtractImports(n *sitter.Node, src []byte) []Import {
	start := childOfType(n, "start_tag", "self_closing_tag")
	if start == nil {
		return nil
	}
	tag := ""
	if t := childOfType(start, "tag_name"); t != nil {
		tag = strings.ToLower(NodeText(t, src))
	}
	var ref string
	switch {
	case n.Type() == "script_element":
		ref, _ = htmlAttr(start, "src", src)
	case tag == "link":
		if rel, _ := htmlAttr(start, "rel", src); strings.EqualFold(rel, "stylesheet") {
			ref, _ = htmlAttr(start, "href", src)
		}
	}
	if ref == "" {
		return nil
	}
	return []Import{{Module: ref, IsRelative: !strings.Contains(ref, "://"), Line: StartLine(n)}}
}

func htmlAttr(tag *sitter.Node, name string, src []byte) (string, bool) {
	for _, a := range children(tag) {
		if a.Type() != "attribute" {
			continue
		}
		n := childOfType(a, "attribute_name")
		if n == nil || !strings.EqualFold(NodeText(n, src), name) {
			continue
		}
		if v := childOfType(a, "quoted_attribute_value", "attribute_value"); v != nil {
			return unquote(NodeText(v, src)), true
		}
		return "", true
	}
	return "", false
}

type cssLang struct{ base }

func (c *cssLang) ExtractFunction(*sitter.Node, []byte, bool) (Symbol, bool) {
	return Symbol{}, false
}

// ExtractImports reads @import "x.css" and @import url(x.css).
func (c *cssLang) ExtractImports(n *sitter.Node, src []byte) []Import {
	if n.Type() != "import_statement" || n.NamedChildCount() == 0 {
		return nil
	}
	text := NodeText(n.NamedChild(0), src)
	text = strings.TrimSuffix(strings.TrimPrefix(text, "url("), ")")
	mod := unquote(text)
	if mod == "" {
		return nil
	}
	return []Import{{Module: mod, IsRelative: !strings.Contains(mod, "://"), Line: StartLine(n)}}
}
