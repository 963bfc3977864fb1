package lang

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

var rustStdlib = map[string]bool{"std": true, "core": true, "alloc": true, "proc_macro": true, "test": true}

// rustResolver resolves crates against the cargo registry source cache.
type rustResolver struct{}

func (rustResolver) IsStdlibImport(importPath, _ string) bool {
	top, _, _ := strings.Cut(importPath, "::")
	return rustStdlib[top]
}

func (r rustResolver) ResolveExternalImport(importPath, projectRoot string) (ResolvedPackage, bool) {
	top, _, _ := strings.Cut(importPath, "::")
	if top == "" || top == "crate" || top == "self" || top == "super" || rustStdlib[top] {
		return ResolvedPackage{}, false
	}
	for _, src := range r.PackageSources(projectRoot) {
		var best DiscoveredPackage
		for _, pkg := range r.DiscoverPackages(src) {
			// Crate names use '-' on disk and '_' in paths.
			if strings.ReplaceAll(pkg.Name, "-", "_") == top && pkg.Path > best.Path {
				best = pkg
			}
		}
		if best.Path != "" {
			return ResolvedPackage{Path: best.Path, Name: top}, true
		}
	}
	return ResolvedPackage{}, false
}

func (rustResolver) Version(ctx context.Context, _ string) (string, bool) {
	return probeVersion(ctx, "rustc", "--version")
}

func (rustResolver) PackageCache(string) (string, bool) {
	home := os.Getenv("CARGO_HOME")
	if home == "" {
		if h := homeDir(); h != "" {
			home = filepath.Join(h, ".cargo")
		}
	}
	if home == "" {
		return "", false
	}
	reg := filepath.Join(home, "registry", "src")
	return reg, isDir(reg)
}

// PackageSources returns one source per registry index under
// $CARGO_HOME/registry/src.
func (r rustResolver) PackageSources(projectRoot string) []PackageSource {
	reg, ok := r.PackageCache(projectRoot)
	if !ok {
		return nil
	}
	var out []PackageSource
	for _, name := range readDirNames(reg) {
		if p := filepath.Join(reg, name); isDir(p) {
			out = append(out, PackageSource{Name: name, Path: p})
		}
	}
	return out
}

// DiscoverPackages lists "name-1.2.3" crate directories as one package per
// name, keeping the highest-sorting version.
func (rustResolver) DiscoverPackages(src PackageSource) []DiscoveredPackage {
	latest := map[string]string{}
	for _, dir := range readDirNames(src.Path) {
		name, ok := crateName(dir)
		if !ok {
			continue
		}
		if p := filepath.Join(src.Path, dir); isDir(p) && p > latest[name] {
			latest[name] = p
		}
	}
	out := make([]DiscoveredPackage, 0, len(latest))
	for name, p := range latest {
		out = append(out, DiscoveredPackage{Name: name, Path: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// crateName strips the "-<version>" suffix of a registry directory.
func crateName(dir string) (string, bool) {
	for i := len(dir) - 1; i > 0; i-- {
		if dir[i-1] == '-' && unicode.IsDigit(rune(dir[i])) {
			return dir[:i-1], true
		}
	}
	return "", false
}

func (rustResolver) PackageEntry(path string) (string, bool) {
	if isFile(path) {
		return path, true
	}
	return firstFile(path, filepath.Join("src", "lib.rs"), "lib.rs", filepath.Join("src", "main.rs"))
}
