package thicket

import (
	"github.com/jward/thicket/internal/config"
	"github.com/jward/thicket/internal/lang"
	"github.com/jward/thicket/internal/pkgindex"
	"github.com/jward/thicket/internal/store"
)

// Public type aliases for internal types used in the Engine and
// QueryBuilder APIs. External consumers use these names; no conversion is
// needed.

type Store = store.Store
type Config = config.Config
type File = store.File
type Symbol = lang.Symbol
type SymbolRow = store.Symbol
type CallSite = store.CallSite
type GraphStats = store.GraphStats
type ImportRow = store.ImportRow
type ExportRow = store.ExportRow

type PackageIndex = pkgindex.Index
type Package = pkgindex.Package
type PackageMatch = pkgindex.Match
type Version = pkgindex.Version
type PackageStats = pkgindex.Stats
