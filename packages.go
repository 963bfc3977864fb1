package thicket

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jward/thicket/internal/extract"
	"github.com/jward/thicket/internal/lang"
	"github.com/jward/thicket/internal/pkgindex"
)

// OpenPackageIndex opens the shared package index under cacheDir.
func OpenPackageIndex(cacheDir string) (*PackageIndex, error) {
	ix, err := pkgindex.Open(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("thicket: %w", err)
	}
	return ix, nil
}

// PackageIndexer fills the shared package index from the toolchains and
// dependency directories visible from one project.
type PackageIndexer struct {
	index     *pkgindex.Index
	root      string
	extractor *extract.Extractor
	logger    *slog.Logger
}

// PackageOption configures a PackageIndexer.
type PackageOption func(*PackageIndexer)

// WithPackageLogger sets the logger. A nil logger means slog.Default().
func WithPackageLogger(l *slog.Logger) PackageOption {
	return func(p *PackageIndexer) { p.logger = l }
}

// WithPackageExtractor replaces the default lenient extractor.
func WithPackageExtractor(x *extract.Extractor) PackageOption {
	return func(p *PackageIndexer) { p.extractor = x }
}

// NewPackageIndexer returns an indexer writing to ix for the project at
// root.
func NewPackageIndexer(ix *PackageIndex, root string, opts ...PackageOption) *PackageIndexer {
	p := &PackageIndexer{index: ix, root: root}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.extractor == nil {
		p.extractor = extract.New()
	}
	return p
}

// PackageReport is what Index did for one language key.
type PackageReport struct {
	Language string `json:"language"`
	Version  string `json:"version,omitempty"`
	Sources  int    `json:"sources"`
	Indexed  int    `json:"indexed"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	Symbols  int    `json:"symbols"`
}

// Index indexes the packages of every language key with a resolver, or
// only those in languages (keys or language names) when it is non-empty. Packages already recorded
// for their (language, name) are skipped; each new package's entry file is
// extracted once and all of its symbols, nested ones included, are stored
// under the package.
//
// Packages from version-specific sources (a stdlib tree, a virtualenv) are
// recorded for exactly the probed version; the rest are unbounded above.
func (p *PackageIndexer) Index(ctx context.Context, languages []string) ([]PackageReport, error) {
	languages = packageKeys(languages)
	var reports []PackageReport
	for _, key := range lang.Keys() {
		if len(languages) > 0 && !slices.Contains(languages, key) {
			continue
		}
		l, ok := lang.ForKey(key)
		if !ok {
			continue
		}
		rep, err := p.indexLanguage(ctx, key, l.Resolver())
		if err != nil {
			return reports, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// packageKeys maps language names ("TypeScript", "python") to their
// package keys. Entries that name no language pass through unchanged.
func packageKeys(languages []string) []string {
	out := make([]string, 0, len(languages))
	for _, s := range languages {
		if l, ok := lang.ByName(s); ok {
			s = l.Key()
		}
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func (p *PackageIndexer) indexLanguage(ctx context.Context, key string, r lang.Resolver) (PackageReport, error) {
	rep := PackageReport{Language: key}

	var current pkgindex.Version
	probed := false
	if raw, ok := r.Version(ctx, p.root); ok {
		current, probed = pkgindex.ParseVersion(raw)
	}
	if probed {
		rep.Version = current.String()
	} else {
		p.logger.Debug("toolchain version unknown", "language", key)
	}

	sources := r.PackageSources(p.root)
	rep.Sources = len(sources)
	for _, src := range sources {
		var hi *pkgindex.Version
		if src.VersionSpecific && probed {
			v := current
			hi = &v
		}
		for _, pkg := range r.DiscoverPackages(src) {
			if err := ctx.Err(); err != nil {
				return rep, fmt.Errorf("thicket: index packages: %w", err)
			}
			done, err := p.index.IsIndexed(key, pkg.Name)
			if err != nil {
				return rep, fmt.Errorf("thicket: index packages: %w", err)
			}
			if done {
				rep.Skipped++
				continue
			}
			entry, ok := r.PackageEntry(pkg.Path)
			if !ok {
				rep.Skipped++
				continue
			}
			res, err := p.extractor.ExtractFile(ctx, entry)
			if err != nil {
				rep.Failed++
				p.logger.Warn("package extraction failed", "language", key, "package", pkg.Name, "path", entry, "error", err)
				continue
			}
			syms := flattenSymbols(res.Symbols, nil)
			if _, err := p.index.AddPackage(pkgindex.Package{
				Language: key,
				Name:     pkg.Name,
				Path:     pkg.Path,
				Min:      current,
				Max:      hi,
			}, syms); err != nil {
				return rep, fmt.Errorf("thicket: index packages: %w", err)
			}
			rep.Indexed++
			rep.Symbols += len(syms)
		}
	}
	p.logger.Info("packages indexed",
		"language", key, "version", rep.Version, "sources", rep.Sources,
		"indexed", rep.Indexed, "skipped", rep.Skipped, "failed", rep.Failed)
	return rep, nil
}

func flattenSymbols(syms []lang.Symbol, out []pkgindex.Symbol) []pkgindex.Symbol {
	for _, s := range syms {
		out = append(out, pkgindex.Symbol{
			Name:      s.Name,
			Kind:      string(s.Kind),
			Signature: s.Signature,
			Line:      s.StartLine,
		})
		out = flattenSymbols(s.Children, out)
	}
	return out
}

// Lookup returns the package recorded for language key and name whose
// version range contains v, or nil.
func (p *PackageIndexer) Lookup(key, name string, v *Version) (*Package, error) {
	pkg, err := p.index.FindPackage(key, name, v)
	if err != nil {
		return nil, fmt.Errorf("thicket: lookup package: %w", err)
	}
	return pkg, nil
}

// FindSymbol returns package symbols called name, optionally limited to
// one language key.
func (p *PackageIndexer) FindSymbol(name, key string, limit int) ([]PackageMatch, error) {
	matches, err := p.index.FindSymbol(name, key, limit)
	if err != nil {
		return nil, fmt.Errorf("thicket: find package symbol: %w", err)
	}
	return matches, nil
}

// Stats counts the packages and symbols in the shared index.
func (p *PackageIndexer) Stats() (PackageStats, error) {
	st, err := p.index.Stats()
	if err != nil {
		return st, fmt.Errorf("thicket: package stats: %w", err)
	}
	return st, nil
}

// Clear removes every package and symbol from the shared index.
func (p *PackageIndexer) Clear() error {
	if err := p.index.Clear(); err != nil {
		return fmt.Errorf("thicket: clear packages: %w", err)
	}
	p.logger.Info("package index cleared", "path", p.index.Path())
	return nil
}

// ParseVersion reads the first "major.minor" in s.
func ParseVersion(s string) (Version, bool) {
	return pkgindex.ParseVersion(s)
}
