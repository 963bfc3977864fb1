package lang

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
)

// goResolver resolves imports against GOROOT/src and the module cache.
type goResolver struct{}

func (goResolver) IsStdlibImport(importPath, _ string) bool {
	first, _, _ := strings.Cut(importPath, "/")
	return first != "" && !strings.Contains(first, ".")
}

func (r goResolver) ResolveExternalImport(importPath, projectRoot string) (ResolvedPackage, bool) {
	if r.IsStdlibImport(importPath, projectRoot) {
		root, ok := goRoot()
		if !ok {
			return ResolvedPackage{}, false
		}
		dir := filepath.Join(root, "src", filepath.FromSlash(importPath))
		if !isDir(dir) {
			return ResolvedPackage{}, false
		}
		return ResolvedPackage{Path: dir, Name: importPath}, true
	}

	cache, ok := r.PackageCache(projectRoot)
	if !ok {
		return ResolvedPackage{}, false
	}
	// Prefer the version pinned by the project's go.mod.
	if dir, ok := goRequiredDir(importPath, projectRoot, cache); ok {
		return ResolvedPackage{Path: dir, Name: importPath}, true
	}
	if dir, ok := goScanCache(importPath, cache); ok {
		return ResolvedPackage{Path: dir, Name: importPath}, true
	}
	return ResolvedPackage{}, false
}

// goRequiredDir maps importPath onto the module-cache directory of the
// longest matching requirement in projectRoot/go.mod.
func goRequiredDir(importPath, projectRoot, cache string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(projectRoot, "go.mod"))
	if err != nil {
		return "", false
	}
	mf, err := modfile.Parse("go.mod", data, nil)
	if err != nil {
		return "", false
	}
	var best *modfile.Require
	for _, req := range mf.Require {
		p := req.Mod.Path
		if importPath != p && !strings.HasPrefix(importPath, p+"/") {
			continue
		}
		if best == nil || len(p) > len(best.Mod.Path) {
			best = req
		}
	}
	if best == nil {
		return "", false
	}
	escPath, err := module.EscapePath(best.Mod.Path)
	if err != nil {
		return "", false
	}
	escVer, err := module.EscapeVersion(best.Mod.Version)
	if err != nil {
		return "", false
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(importPath, best.Mod.Path), "/")
	dir := filepath.Join(cache, filepath.FromSlash(escPath)+"@"+escVer, filepath.FromSlash(rest))
	return dir, isDir(dir)
}

// goScanCache tries progressively shorter prefixes of importPath and picks
// the highest-sorting module@version directory that contains the package.
func goScanCache(importPath, cache string) (string, bool) {
	escaped, err := module.EscapePath(importPath)
	if err != nil {
		return "", false
	}
	parts := strings.Split(escaped, "/")
	for i := len(parts); i >= 2; i-- {
		parent := filepath.Join(cache, filepath.FromSlash(strings.Join(parts[:i-1], "/")))
		prefix := parts[i-1] + "@"
		var matches []string
		for _, name := range readDirNames(parent) {
			if strings.HasPrefix(name, prefix) {
				matches = append(matches, name)
			}
		}
		sort.Sort(sort.Reverse(sort.StringSlice(matches)))
		for _, m := range matches {
			dir := filepath.Join(parent, m, filepath.FromSlash(strings.Join(parts[i:], "/")))
			if isDir(dir) {
				return dir, true
			}
		}
	}
	return "", false
}

func (goResolver) Version(ctx context.Context, _ string) (string, bool) {
	return probeVersion(ctx, "go", "version")
}

func (goResolver) PackageCache(string) (string, bool) {
	if c := os.Getenv("GOMODCACHE"); c != "" && isDir(c) {
		return c, true
	}
	if gp := os.Getenv("GOPATH"); gp != "" {
		first := filepath.SplitList(gp)[0]
		if c := filepath.Join(first, "pkg", "mod"); isDir(c) {
			return c, true
		}
	}
	if h := homeDir(); h != "" {
		if c := filepath.Join(h, "go", "pkg", "mod"); isDir(c) {
			return c, true
		}
	}
	return "", false
}

func goRoot() (string, bool) {
	if r := os.Getenv("GOROOT"); r != "" && isDir(filepath.Join(r, "src")) {
		return r, true
	}
	for _, r := range []string{"/usr/local/go", "/usr/lib/go"} {
		if isDir(filepath.Join(r, "src")) {
			return r, true
		}
	}
	return "", false
}

func (r goResolver) PackageSources(projectRoot string) []PackageSource {
	var out []PackageSource
	if root, ok := goRoot(); ok {
		out = append(out, PackageSource{Name: "stdlib", Path: filepath.Join(root, "src"), VersionSpecific: true, stdlib: true})
	}
	if cache, ok := r.PackageCache(projectRoot); ok {
		out = append(out, PackageSource{Name: "mod-cache", Path: cache})
	}
	return out
}

func (goResolver) DiscoverPackages(src PackageSource) []DiscoveredPackage {
	if src.stdlib {
		var out []DiscoveredPackage
		for _, name := range readDirNames(src.Path) {
			switch name {
			case "cmd", "internal", "vendor", "testdata", "builtin":
				continue
			}
			if p := filepath.Join(src.Path, name); isDir(p) && !skipPackageEntry(name) {
				out = append(out, DiscoveredPackage{Name: name, Path: p})
			}
		}
		return out
	}

	var out []DiscoveredPackage
	_ = filepath.WalkDir(src.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == src.Path {
			return nil
		}
		name := d.Name()
		if name == "cache" && filepath.Dir(path) == src.Path {
			return filepath.SkipDir
		}
		esc, _, found := strings.Cut(name, "@")
		if !found {
			return nil
		}
		rel, err := filepath.Rel(src.Path, filepath.Join(filepath.Dir(path), esc))
		if err != nil {
			return filepath.SkipDir
		}
		modPath, err := module.UnescapePath(filepath.ToSlash(rel))
		if err == nil {
			out = append(out, DiscoveredPackage{Name: modPath, Path: path})
		}
		return filepath.SkipDir
	})
	return out
}

func (goResolver) PackageEntry(path string) (string, bool) {
	if isFile(path) {
		return path, true
	}
	if !isDir(path) {
		return "", false
	}
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '@'); i >= 0 {
		base = base[:i]
	}
	if p, ok := firstFile(path, base+".go"); ok {
		return p, true
	}
	for _, name := range readDirNames(path) {
		if strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go") && name != "doc.go" {
			return filepath.Join(path, name), true
		}
	}
	return firstFile(path, "doc.go")
}
