package main

import (
	"github.com/jward/thicket"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLICallSite is a JSON-friendly caller location.
type CLICallSite struct {
	File   string `json:"file"`
	Symbol string `json:"symbol,omitempty"`
	Line   int    `json:"line"`
}

// CLIFile is a JSON-friendly inventory entry.
type CLIFile struct {
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir,omitempty"`
	Mtime int64  `json:"mtime"`
}

// CLIImport is a JSON-friendly import representation.
type CLIImport struct {
	File       string   `json:"file"`
	Module     string   `json:"module"`
	Names      []string `json:"names,omitempty"`
	Alias      string   `json:"alias,omitempty"`
	IsWildcard bool     `json:"is_wildcard,omitempty"`
	IsRelative bool     `json:"is_relative,omitempty"`
	Line       int      `json:"line"`
}

// CLIGraphStats is a JSON-friendly call graph row count.
type CLIGraphStats struct {
	Files   int `json:"files"`
	Symbols int `json:"symbols"`
	Calls   int `json:"calls"`
	Imports int `json:"imports"`
	Exports int `json:"exports"`
}

// CLIStats is the stats command result.
type CLIStats struct {
	Files       int                      `json:"files"`
	Dirs        int                      `json:"dirs"`
	Extensions  []thicket.ExtensionCount `json:"extensions"`
	DBBytes     int64                    `json:"db_bytes"`
	LastIndexed string                   `json:"last_indexed"`
	CallGraph   *CLIGraphStats           `json:"call_graph,omitempty"`
}

func callSitesToCLI(sites []thicket.CallSite) []CLICallSite {
	out := make([]CLICallSite, len(sites))
	for i, s := range sites {
		out[i] = CLICallSite{File: s.File, Symbol: s.Symbol, Line: s.Line}
	}
	return out
}

func filesToCLI(files []thicket.File) []CLIFile {
	out := make([]CLIFile, len(files))
	for i, f := range files {
		out[i] = CLIFile{Path: f.Path, IsDir: f.IsDir, Mtime: f.Mtime}
	}
	return out
}

func importsToCLI(rows []thicket.ImportRow) []CLIImport {
	out := make([]CLIImport, len(rows))
	for i, r := range rows {
		out[i] = CLIImport{
			File:       r.File,
			Module:     r.Module,
			Names:      r.Names,
			Alias:      r.Alias,
			IsWildcard: r.IsWildcard,
			IsRelative: r.IsRelative,
			Line:       r.Line,
		}
	}
	return out
}

func graphStatsToCLI(st thicket.GraphStats) CLIGraphStats {
	return CLIGraphStats{
		Files:   st.Files,
		Symbols: st.Symbols,
		Calls:   st.Calls,
		Imports: st.Imports,
		Exports: st.Exports,
	}
}

func statsToCLI(st thicket.IndexStats) CLIStats {
	out := CLIStats{
		Files:      st.Files,
		Dirs:       st.Dirs,
		Extensions: st.Extensions,
		DBBytes:    st.DBBytes,
	}
	if !st.LastIndexed.IsZero() {
		out.LastIndexed = st.LastIndexed.UTC().Format("2006-01-02T15:04:05Z")
	}
	if st.CallGraph != nil {
		g := graphStatsToCLI(*st.CallGraph)
		out.CallGraph = &g
	}
	return out
}
