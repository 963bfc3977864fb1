package thicket

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/thicket/internal/lang"
	"github.com/jward/thicket/internal/pkgindex"
)

// fakeResolver serves packages from one directory per source.
type fakeResolver struct {
	version string
	sources []lang.PackageSource
	entries map[string]string
}

func (f *fakeResolver) IsStdlibImport(string, string) bool { return false }
func (f *fakeResolver) ResolveExternalImport(string, string) (lang.ResolvedPackage, bool) {
	return lang.ResolvedPackage{}, false
}
func (f *fakeResolver) Version(context.Context, string) (string, bool) {
	return f.version, f.version != ""
}
func (f *fakeResolver) PackageCache(string) (string, bool)         { return "", false }
func (f *fakeResolver) PackageSources(string) []lang.PackageSource { return f.sources }

func (f *fakeResolver) DiscoverPackages(src lang.PackageSource) []lang.DiscoveredPackage {
	entries, err := os.ReadDir(src.Path)
	if err != nil {
		return nil
	}
	var out []lang.DiscoveredPackage
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, lang.DiscoveredPackage{Name: e.Name(), Path: filepath.Join(src.Path, e.Name())})
		}
	}
	return out
}

func (f *fakeResolver) PackageEntry(path string) (string, bool) {
	entry, ok := f.entries[filepath.Base(path)]
	if !ok {
		return "", false
	}
	return filepath.Join(path, entry), true
}

func newTestPackageIndexer(t *testing.T) (*PackageIndexer, string) {
	t.Helper()
	ix, err := OpenPackageIndex(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })

	dir := t.TempDir()
	return NewPackageIndexer(ix, dir, WithPackageLogger(discardLogger())), dir
}

func TestFlattenSymbols(t *testing.T) {
	syms := []lang.Symbol{
		{Name: "Client", Kind: lang.KindClass, StartLine: 1, Children: []lang.Symbol{
			{Name: "get", Kind: lang.KindMethod, StartLine: 2, Signature: "def get(self)"},
		}},
		{Name: "connect", Kind: lang.KindFunction, StartLine: 4},
	}
	got := flattenSymbols(syms, nil)
	assert.Equal(t, []pkgindex.Symbol{
		{Name: "Client", Kind: "class", Line: 1},
		{Name: "get", Kind: "method", Line: 2, Signature: "def get(self)"},
		{Name: "connect", Kind: "function", Line: 4},
	}, got)
}

func TestIndexLanguage(t *testing.T) {
	p, dir := newTestPackageIndexer(t)

	site := filepath.Join(dir, "site-packages")
	writeFile(t, site, "requests/__init__.py", "class Session:\n    def get(self, url):\n        pass\n\ndef request(method, url):\n    pass\n")
	writeFile(t, site, "empty/README", "no entry\n")
	writeFile(t, site, "broken/__init__.py", "\x00\x01\x02")

	r := &fakeResolver{
		version: "Python 3.11.4",
		sources: []lang.PackageSource{{Name: "venv", Path: site, VersionSpecific: true}},
		entries: map[string]string{"requests": "__init__.py", "broken": "__init__.py"},
	}

	rep, err := p.indexLanguage(context.Background(), "python", r)
	require.NoError(t, err)
	assert.Equal(t, "python", rep.Language)
	assert.Equal(t, "3.11", rep.Version)
	assert.Equal(t, 1, rep.Sources)
	assert.Equal(t, 1, rep.Indexed)
	assert.Equal(t, 1, rep.Skipped, "empty has no entry file")
	assert.Equal(t, 1, rep.Failed, "broken is binary")

	v311 := Version{Major: 3, Minor: 11}
	pkg, err := p.Lookup("python", "requests", &v311)
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, Version{Major: 3, Minor: 11}, pkg.Min)
	require.NotNil(t, pkg.Max)
	assert.Equal(t, Version{Major: 3, Minor: 11}, *pkg.Max)

	v312 := Version{Major: 3, Minor: 12}
	pkg, err = p.Lookup("python", "requests", &v312)
	require.NoError(t, err)
	assert.Nil(t, pkg, "version-specific packages do not cover later versions")

	matches, err := p.FindSymbol("get", "python", 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "requests", matches[0].Package.Name)
	assert.Equal(t, 2, matches[0].Symbol.Line)

	// A second pass skips what is already recorded.
	rep, err = p.indexLanguage(context.Background(), "python", r)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Indexed)
	assert.Equal(t, 2, rep.Skipped)
	assert.Equal(t, 1, rep.Failed, "failed packages are retried")
}

func TestIndexLanguage_UnknownVersionIsUnbounded(t *testing.T) {
	p, dir := newTestPackageIndexer(t)

	mods := filepath.Join(dir, "node_modules")
	writeFile(t, mods, "left-pad/index.js", "function leftPad(s, n) { return s; }\n")
	r := &fakeResolver{
		sources: []lang.PackageSource{{Name: "node_modules", Path: mods}},
		entries: map[string]string{"left-pad": "index.js"},
	}

	rep, err := p.indexLanguage(context.Background(), "javascript", r)
	require.NoError(t, err)
	assert.Empty(t, rep.Version)
	assert.Equal(t, 1, rep.Indexed)

	pkg, err := p.Lookup("javascript", "left-pad", &Version{Major: 99})
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, Version{}, pkg.Min)
	assert.Nil(t, pkg.Max)
}

func TestIndexLanguage_Cancelled(t *testing.T) {
	p, dir := newTestPackageIndexer(t)

	site := filepath.Join(dir, "site")
	writeFile(t, site, "pkg/__init__.py", "def f():\n    pass\n")
	r := &fakeResolver{
		sources: []lang.PackageSource{{Name: "site", Path: site}},
		entries: map[string]string{"pkg": "__init__.py"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.indexLanguage(ctx, "python", r)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPackageIndexer_Index_UnknownLanguage(t *testing.T) {
	p, _ := newTestPackageIndexer(t)

	reports, err := p.Index(context.Background(), []string{"cobol"})
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestPackageKeys(t *testing.T) {
	assert.Equal(t, []string{"js", "python", "cobol"}, packageKeys([]string{"TypeScript", "python", "JavaScript", "cobol"}))
	assert.Empty(t, packageKeys(nil))
}

func TestPackageIndexer_Stats(t *testing.T) {
	p, dir := newTestPackageIndexer(t)

	st, err := p.Stats()
	require.NoError(t, err)
	assert.Equal(t, PackageStats{}, st)

	mods := filepath.Join(dir, "node_modules")
	writeFile(t, mods, "left-pad/index.js", "function leftPad(s, n) { return s; }\n")
	r := &fakeResolver{
		sources: []lang.PackageSource{{Name: "node_modules", Path: mods}},
		entries: map[string]string{"left-pad": "index.js"},
	}
	rep, err := p.indexLanguage(context.Background(), "javascript", r)
	require.NoError(t, err)
	require.Positive(t, rep.Symbols)

	st, err = p.Stats()
	require.NoError(t, err)
	assert.Equal(t, PackageStats{Packages: 1, Symbols: rep.Symbols}, st)
}

func TestPackageIndexer_Clear(t *testing.T) {
	p, dir := newTestPackageIndexer(t)

	mods := filepath.Join(dir, "node_modules")
	writeFile(t, mods, "left-pad/index.js", "function leftPad(s, n) { return s; }\n")
	r := &fakeResolver{
		sources: []lang.PackageSource{{Name: "node_modules", Path: mods}},
		entries: map[string]string{"left-pad": "index.js"},
	}
	_, err := p.indexLanguage(context.Background(), "javascript", r)
	require.NoError(t, err)

	require.NoError(t, p.Clear())
	pkg, err := p.Lookup("javascript", "left-pad", nil)
	require.NoError(t, err)
	assert.Nil(t, pkg)
}

func TestParseVersion(t *testing.T) {
	v, ok := ParseVersion("go1.22.3")
	require.True(t, ok)
	assert.Equal(t, Version{Major: 1, Minor: 22}, v)

	_, ok = ParseVersion("unknown")
	assert.False(t, ok)
}
