// Package lang defines the per-language capability set used by the
// extraction engine and a registry that dispatches source files to the
// right implementation by extension.
//
// Each supported language is one type implementing [Language]. The
// extraction engine only ever talks to that interface: it asks a language
// which node kinds are functions, containers, types, imports, exports and
// calls, then hands matching nodes back to the language to turn into
// [Symbol], [Import] and [Export] values.
package lang

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// ErrNotSupported is returned by [Language.Kinds] for node-kind categories a
// language does not classify yet.
var ErrNotSupported = errors.New("not supported")

// Kind is the classification of an extracted symbol.
type Kind string

const (
	KindFunction  Kind = "function"
	KindMethod    Kind = "method"
	KindClass     Kind = "class"
	KindStruct    Kind = "struct"
	KindInterface Kind = "interface"
	KindEnum      Kind = "enum"
	KindType      Kind = "type"
	KindVariable  Kind = "variable"
	KindConstant  Kind = "constant"
	KindModule    Kind = "module"
	KindTrait     Kind = "trait"
	KindHeading   Kind = "heading"
)

// Visibility is the access level of a symbol.
type Visibility string

const (
	Public    Visibility = "public"
	Private   Visibility = "private"
	Protected Visibility = "protected"
	Internal  Visibility = "internal"
)

// Mechanism describes how a language signals that a symbol is public.
type Mechanism int

const (
	// ExplicitExport: public only when named in an export statement (JS/TS).
	ExplicitExport Mechanism = iota
	// AccessModifier: public/private/protected keywords (Java, Scala, PHP).
	AccessModifier
	// NamingConvention: derived from the identifier itself (Go, Python).
	NamingConvention
	// HeaderBased: declarations in headers are public (C, C++).
	HeaderBased
	// NotApplicable: data and markup languages.
	NotApplicable
)

func (m Mechanism) String() string {
	switch m {
	case ExplicitExport:
		return "explicit-export"
	case AccessModifier:
		return "access-modifier"
	case NamingConvention:
		return "naming-convention"
	case HeaderBased:
		return "header-based"
	case NotApplicable:
		return "not-applicable"
	}
	return fmt.Sprintf("Mechanism(%d)", int(m))
}

// Category names a group of syntax node kinds a language classifies.
type Category int

const (
	CategoryContainer Category = iota
	CategoryFunction
	CategoryType
	CategoryImport
	CategoryPublicSymbol
	CategoryScope
	CategoryControlFlow
	CategoryComplexity
	CategoryNesting
	CategoryCall
)

var categoryNames = [...]string{
	CategoryContainer:    "container",
	CategoryFunction:     "function",
	CategoryType:         "type",
	CategoryImport:       "import",
	CategoryPublicSymbol: "public-symbol",
	CategoryScope:        "scope",
	CategoryControlFlow:  "control-flow",
	CategoryComplexity:   "complexity",
	CategoryNesting:      "nesting",
	CategoryCall:         "call",
}

func (c Category) String() string {
	if int(c) >= 0 && int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Symbol is a named declaration extracted from a syntax tree. Lines are
// 1-based and inclusive.
type Symbol struct {
	Name       string     `json:"name"`
	Kind       Kind       `json:"kind"`
	Signature  string     `json:"signature"`
	Docstring  string     `json:"docstring,omitempty"`
	StartLine  int        `json:"start_line"`
	EndLine    int        `json:"end_line"`
	Visibility Visibility `json:"visibility"`
	Children   []Symbol   `json:"children,omitempty"`
}

// Import is one import/include/use statement.
type Import struct {
	Module     string   `json:"module"`
	Names      []string `json:"names,omitempty"`
	Alias      string   `json:"alias,omitempty"`
	IsWildcard bool     `json:"is_wildcard"`
	IsRelative bool     `json:"is_relative"`
	Line       int      `json:"line"`
}

// Export is a symbol made visible outside its file.
type Export struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	Line int    `json:"line"`
}

// Language is the capability set of one source language.
type Language interface {
	// Name is the human-readable language name.
	Name() string
	// Key groups languages that share one package ecosystem in the
	// package index (TypeScript and JavaScript both use "js").
	Key() string
	// Extensions lists handled file extensions, lowercase with leading dot.
	Extensions() []string
	Grammar() *sitter.Language

	// Kinds returns the node kinds in category c, or an error wrapping
	// ErrNotSupported when the language does not classify c.
	Kinds(c Category) ([]string, error)
	VisibilityMechanism() Mechanism

	ExtractFunction(n *sitter.Node, src []byte, inContainer bool) (Symbol, bool)
	ExtractContainer(n *sitter.Node, src []byte) (Symbol, bool)
	ExtractType(n *sitter.Node, src []byte) (Symbol, bool)
	ExtractImports(n *sitter.Node, src []byte) []Import
	ExtractPublicSymbols(n *sitter.Node, src []byte) []Export
	VisibilityOf(n *sitter.Node, src []byte) Visibility
	IsPublic(n *sitter.Node, src []byte) bool

	// CalleeName returns the innermost identifier of the expression a call
	// node invokes, e.g. "method" for obj.method().
	CalleeName(n *sitter.Node, src []byte) (string, bool)

	// Resolver returns the external-package hooks, or nil when the language
	// has no package ecosystem.
	Resolver() Resolver
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Language{} // by Name
	byExt      = map[string]Language{}
)

// Register adds l to the registry. Called from init in each language file.
func Register(l Language) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[l.Name()] = l
	for _, ext := range l.Extensions() {
		byExt[ext] = l
	}
}

// ForPath returns the language handling path's extension.
func ForPath(path string) (Language, bool) {
	return ForExtension(filepath.Ext(path))
}

// ForExtension returns the language for ext (".go", "go" or ".GO").
func ForExtension(ext string) (Language, bool) {
	ext = strings.ToLower(ext)
	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	l, ok := byExt[ext]
	return l, ok
}

// ByName returns the language registered under name, case-insensitively.
func ByName(name string) (Language, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	for n, l := range registry {
		if strings.EqualFold(n, name) {
			return l, true
		}
	}
	return nil, false
}

// All returns every registered language sorted by name.
func All() []Language {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Language, 0, len(registry))
	for _, l := range registry {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Keys returns the distinct package-index keys of languages with a
// resolver, in sorted order.
func Keys() []string {
	seen := map[string]bool{}
	var keys []string
	for _, l := range All() {
		if l.Resolver() == nil || seen[l.Key()] {
			continue
		}
		seen[l.Key()] = true
		keys = append(keys, l.Key())
	}
	sort.Strings(keys)
	return keys
}

// ForKey returns the first language (by name) registered under key that has a
// resolver.
func ForKey(key string) (Language, bool) {
	for _, l := range All() {
		if l.Key() == key && l.Resolver() != nil {
			return l, true
		}
	}
	return nil, false
}
