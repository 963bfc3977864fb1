package extract

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/thicket/internal/lang"
)

type walker struct {
	lang  lang.Language
	src   []byte
	kinds *kindSet
}

// symbols collects the symbol trees declared under n, in document order.
func (w *walker) symbols(n *sitter.Node, inContainer bool) []lang.Symbol {
	var out []lang.Symbol
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, w.visit(n.NamedChild(i), inContainer)...)
	}
	return out
}

// visit returns the symbols rooted at n: one symbol with its children when
// n declares something, otherwise whatever its descendants declare.
// Containers are tried before types so a class is not extracted twice.
// Functions directly inside a module or namespace stay free functions.
func (w *walker) visit(n *sitter.Node, inContainer bool) []lang.Symbol {
	kind := n.Type()
	if w.kinds.containers[kind] {
		if sym, ok := w.lang.ExtractContainer(n, w.src); ok {
			sym.Children = w.symbols(n, sym.Kind != lang.KindModule)
			return []lang.Symbol{sym}
		}
	}
	if w.kinds.functions[kind] {
		if sym, ok := w.lang.ExtractFunction(n, w.src, inContainer); ok {
			sym.Children = w.symbols(n, false)
			return []lang.Symbol{sym}
		}
	}
	if w.kinds.types[kind] {
		if sym, ok := w.lang.ExtractType(n, w.src); ok {
			sym.Children = w.symbols(n, inContainer)
			return []lang.Symbol{sym}
		}
	}
	return w.symbols(n, inContainer)
}

// preorder visits every named node under root depth-first in document
// order using an explicit stack.
func preorder(root *sitter.Node, fn func(*sitter.Node)) {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(n)
		for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, n.NamedChild(i))
		}
	}
}

func (w *walker) imports(root *sitter.Node) []lang.Import {
	var out []lang.Import
	preorder(root, func(n *sitter.Node) {
		if w.kinds.imports[n.Type()] {
			out = append(out, w.lang.ExtractImports(n, w.src)...)
		}
	})
	return out
}

func (w *walker) exports(root *sitter.Node) []lang.Export {
	var out []lang.Export
	preorder(root, func(n *sitter.Node) {
		if w.kinds.public[n.Type()] {
			out = append(out, w.lang.ExtractPublicSymbols(n, w.src)...)
		}
	})
	return out
}

// calls records every call site with the name of the nearest enclosing
// function. Each stack frame carries the caller in effect for its node.
func (w *walker) calls(root *sitter.Node) []Call {
	type frame struct {
		node   *sitter.Node
		caller string
	}
	var out []Call
	stack := []frame{{node: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n, caller := f.node, f.caller
		kind := n.Type()
		if w.kinds.functions[kind] {
			if sym, ok := w.lang.ExtractFunction(n, w.src, false); ok {
				caller = sym.Name
			}
		}
		if w.kinds.calls[kind] {
			if callee, ok := w.lang.CalleeName(n, w.src); ok {
				out = append(out, Call{Caller: f.caller, Callee: callee, Line: lang.StartLine(n)})
			}
		}
		for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: n.NamedChild(i), caller: caller})
		}
	}
	return out
}
