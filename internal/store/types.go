package store

import "github.com/jward/thicket/internal/lang"

// File inventory

// File is one row of the inventory. Path is root-relative with forward
// slashes; Mtime is unix seconds.
type File struct {
	Path  string
	IsDir bool
	Mtime int64
}

// Call graph

// GraphFile is the per-file bookkeeping row of the call graph.
type GraphFile struct {
	Path     string
	Language string
	Mtime    int64
	Hash     string
}

// Call is one call site inside a file. Caller is empty at file scope.
type Call struct {
	Caller string
	Callee string
	Line   int
}

// FileGraph is everything stored for one extracted file. A file that
// failed extraction is stored with empty slices so it is not retried until
// it changes.
type FileGraph struct {
	GraphFile
	Symbols []lang.Symbol
	Imports []lang.Import
	Exports []lang.Export
	Calls   []Call
}

// Symbol is a stored symbol row. Parent is the name of the enclosing
// symbol; ParentID links to its row.
type Symbol struct {
	ID         int64
	File       string
	Name       string
	Kind       string
	Signature  string
	Docstring  string
	StartLine  int
	EndLine    int
	Visibility string
	Parent     string
	ParentID   *int64
}

// CallSite is a caller of some callee, located by file and line.
type CallSite struct {
	File   string
	Symbol string
	Line   int
}

// ImportRow is a stored import.
type ImportRow struct {
	File string
	lang.Import
}

// ExportRow is a stored export.
type ExportRow struct {
	File string
	lang.Export
}

// GraphStats are aggregate row counts of the call graph.
type GraphStats struct {
	Files   int
	Symbols int
	Calls   int
	Imports int
	Exports int
}
