package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jward/thicket"
)

// formatCallSitesText formats callers as "file:line symbol" lines.
func formatCallSitesText(w io.Writer, sites []CLICallSite) {
	for _, s := range sites {
		fmt.Fprintf(w, "%s:%d\t%s\n", s.File, s.Line, s.Symbol)
	}
}

// formatCalleesText lists each call with its definitions indented below.
func formatCalleesText(w io.Writer, callees []thicket.Callee) {
	for _, c := range callees {
		fmt.Fprintf(w, "%d\t%s\n", c.Line, c.Name)
		for _, d := range c.Definitions {
			fmt.Fprintf(w, "\t-> %s:%d (%s)\n", d.File, d.StartLine, d.Kind)
		}
	}
}

// formatSymbolMatchesText formats symbol lookups as aligned columns.
func formatSymbolMatchesText(w io.Writer, matches []thicket.SymbolMatch) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tFILE\tLINE\tPARENT\tSCORE")
	for _, m := range matches {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%d\n",
			m.Name, m.Kind, m.File, m.StartLine, m.Parent, m.Score)
	}
	tw.Flush()
}

// formatOutlineText prints a symbol tree, two spaces per level.
func formatOutlineText(w io.Writer, syms []thicket.Symbol, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, s := range syms {
		fmt.Fprintf(w, "%s%s %s [%d-%d]\n", indent, s.Kind, s.Name, s.StartLine, s.EndLine)
		formatOutlineText(w, s.Children, depth+1)
	}
}

// formatImportsText formats CLIImport results as aligned columns.
func formatImportsText(w io.Writer, imports []CLIImport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tMODULE\tNAMES\tALIAS")
	for _, imp := range imports {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", imp.Line, imp.Module, strings.Join(imp.Names, ","), imp.Alias)
	}
	tw.Flush()
}

// formatPathMatchesText prints one resolved path per line with its symbol
// location when one was requested.
func formatPathMatchesText(w io.Writer, matches []thicket.PathMatch) {
	for _, m := range matches {
		switch {
		case m.Line > 0:
			fmt.Fprintf(w, "%s:%d\n", m.Path, m.Line)
		case m.IsDir:
			fmt.Fprintf(w, "%s/\n", m.Path)
		default:
			fmt.Fprintln(w, m.Path)
		}
	}
}

// formatFilesText lists paths, directories with a trailing slash.
func formatFilesText(w io.Writer, files []CLIFile) {
	for _, f := range files {
		if f.IsDir {
			fmt.Fprintf(w, "%s/\n", f.Path)
			continue
		}
		fmt.Fprintln(w, f.Path)
	}
}

// formatStatsText formats CLIStats as readable text.
func formatStatsText(w io.Writer, st CLIStats) {
	fmt.Fprintln(w, "Index Statistics")
	fmt.Fprintln(w, "================")
	fmt.Fprintf(w, "Files: %d\n", st.Files)
	fmt.Fprintf(w, "Directories: %d\n", st.Dirs)
	fmt.Fprintf(w, "Database: %s\n", humanBytes(st.DBBytes))
	if st.LastIndexed != "" {
		fmt.Fprintf(w, "Last indexed: %s\n", st.LastIndexed)
	}
	if len(st.Extensions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Extensions:")
		for _, ext := range st.Extensions {
			fmt.Fprintf(w, "  %s: %d\n", ext.Extension, ext.Files)
		}
	}
	if g := st.CallGraph; g != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Call graph:")
		fmt.Fprintf(w, "  files: %d, symbols: %d, calls: %d, imports: %d, exports: %d\n",
			g.Files, g.Symbols, g.Calls, g.Imports, g.Exports)
	}
}

// formatIndexText summarises an index run.
func formatIndexText(w io.Writer, sum indexSummary) {
	switch {
	case sum.Changes != nil:
		fmt.Fprintf(w, "Inventory: %d added, %d updated, %d removed\n",
			sum.Changes.Added, sum.Changes.Updated, sum.Changes.Removed)
	default:
		fmt.Fprintf(w, "Inventory: %d entries\n", sum.Files)
	}
	if st := sum.CallGraph; st != nil {
		fmt.Fprintf(w, "Call graph: %d extracted, %d unchanged, %d removed, %d failed\n",
			st.Extracted, st.Unchanged, st.Removed, st.Failed)
	}
	fmt.Fprintf(w, "Indexed %s in %s\n", sum.Root, sum.Duration)
	fmt.Fprintf(w, "Database: %s\n", sum.Database)
}

// formatPackageReportsText formats package indexing results as columns.
func formatPackageReportsText(w io.Writer, reports []thicket.PackageReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LANGUAGE\tVERSION\tSOURCES\tINDEXED\tSKIPPED\tFAILED\tSYMBOLS")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			r.Language, r.Version, r.Sources, r.Indexed, r.Skipped, r.Failed, r.Symbols)
	}
	tw.Flush()
}

// formatPackageMatchesText formats package symbol lookups as columns.
func formatPackageMatchesText(w io.Writer, matches []thicket.PackageMatch) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LANGUAGE\tPACKAGE\tVERSIONS\tSYMBOL\tKIND\tLINE")
	for _, m := range matches {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			m.Package.Language, m.Package.Name, versionRange(m.Package),
			m.Symbol.Name, m.Symbol.Kind, m.Symbol.Line)
	}
	tw.Flush()
}

func versionRange(p thicket.Package) string {
	if p.Max == nil {
		return p.Min.String() + "+"
	}
	if *p.Max == p.Min {
		return p.Min.String()
	}
	return p.Min.String() + "-" + p.Max.String()
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case indexSummary:
		formatIndexText(w, v)
	case []CLICallSite:
		formatCallSitesText(w, v)
	case []thicket.Callee:
		formatCalleesText(w, v)
	case []thicket.SymbolMatch:
		formatSymbolMatchesText(w, v)
	case []thicket.Symbol:
		formatOutlineText(w, v, 0)
	case []CLIImport:
		formatImportsText(w, v)
	case []thicket.PathMatch:
		formatPathMatchesText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case CLIStats:
		formatStatsText(w, v)
	case []thicket.PackageReport:
		formatPackageReportsText(w, v)
	case []thicket.PackageMatch:
		formatPackageMatchesText(w, v)
	case thicket.PackageStats:
		fmt.Fprintf(w, "Packages: %d\nSymbols: %d\n", v.Packages, v.Symbols)
	case thicket.Package:
		fmt.Fprintf(w, "%s %s %s %s\n", v.Language, v.Name, versionRange(v), v.Path)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
