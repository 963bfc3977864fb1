// Package thicket maintains a persisted, incrementally updated index of a
// codebase: its files, the symbols they define, the calls between them and
// the exported symbols of the external packages they depend on. Eighteen
// languages are parsed with tree-sitter; consumers query the index instead
// of re-scanning the tree.
//
// # Pipeline
//
// Indexing flows inventory, extraction, store:
//
//  1. Inventory: [Engine.Refresh] walks the project the way git sees it
//     (.gitignore files, .git/info/exclude, the global excludes file) and
//     records every file and directory with its mtime.
//
//  2. Call graph: [Engine.RefreshCallGraph] parses every supported file and
//     stores its symbol tree, imports, exports and call sites. Parsing runs
//     on a bounded worker pool; everything commits in one transaction.
//
// Both steps have incremental forms. [Engine.IncrementalRefresh] applies
// only inventory differences; [Engine.IncrementalCallGraphRefresh]
// re-extracts files whose mtime moved and whose content hash changed.
// [Engine.EnsureFresh] picks the cheapest refresh that brings both up to
// date and shares it between concurrent callers.
//
// # Usage
//
//	e, err := thicket.New("path/to/project")
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	if _, err := e.EnsureFresh(ctx); err != nil { ... }
//
//	q := e.Query()
//	callers, err := q.FindCallers("parseConfig")
//
// The index lives in <root>/.thicket/index.db next to an optional
// config.toml.
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] provides:
//
//   - [QueryBuilder.FindCallers]: call sites invoking a name.
//   - [QueryBuilder.FindCallees]: calls made from one symbol, with the
//     project definitions of each callee.
//   - [QueryBuilder.FindSymbols]: exact or fuzzy symbol lookup.
//   - [QueryBuilder.Symbols]: the symbol tree of one file.
//   - [QueryBuilder.ResolvePath]: loose path and "file:symbol" queries.
//   - [QueryBuilder.FindByName], [QueryBuilder.FindByStem],
//     [QueryBuilder.AllFiles]: inventory lookups.
//   - [QueryBuilder.IndexStats], [QueryBuilder.CallGraphStats]: counts.
//
// Queries against an index that was never built return [ErrEmptyIndex].
//
// # Packages
//
// External package symbols live in one database per user cache directory,
// shared by every project. [PackageIndexer.Index] probes each toolchain's
// version, discovers installed packages and records their symbols with the
// range of versions they apply to.
package thicket
