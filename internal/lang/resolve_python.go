package lang

import (
	"context"
	"path/filepath"
	"strings"
)

// pythonStdlib lists top-level standard library modules that commonly
// appear in imports.
var pythonStdlib = map[string]bool{
	"abc": true, "argparse": true, "array": true, "ast": true, "asyncio": true,
	"base64": true, "bisect": true, "builtins": true, "bz2": true, "calendar": true,
	"collections": true, "concurrent": true, "contextlib": true, "copy": true, "csv": true,
	"ctypes": true, "dataclasses": true, "datetime": true, "decimal": true, "difflib": true,
	"email": true, "enum": true, "errno": true, "functools": true, "gc": true,
	"getpass": true, "glob": true, "gzip": true, "hashlib": true, "heapq": true,
	"hmac": true, "html": true, "http": true, "importlib": true, "inspect": true,
	"io": true, "itertools": true, "json": true, "logging": true, "math": true,
	"multiprocessing": true, "operator": true, "os": true, "pathlib": true, "pickle": true,
	"platform": true, "pprint": true, "queue": true, "random": true, "re": true,
	"shlex": true, "shutil": true, "signal": true, "socket": true, "sqlite3": true,
	"ssl": true, "stat": true, "string": true, "struct": true, "subprocess": true,
	"sys": true, "tempfile": true, "textwrap": true, "threading": true, "time": true,
	"tomllib": true, "traceback": true, "types": true, "typing": true, "unittest": true,
	"urllib": true, "uuid": true, "warnings": true, "weakref": true, "xml": true,
	"zipfile": true, "zlib": true, "__future__": true,
}

// pythonResolver resolves imports against a project virtualenv's
// site-packages.
type pythonResolver struct{}

func (pythonResolver) IsStdlibImport(importPath, _ string) bool {
	top, _, _ := strings.Cut(importPath, ".")
	return pythonStdlib[top]
}

func (r pythonResolver) ResolveExternalImport(importPath, projectRoot string) (ResolvedPackage, bool) {
	if importPath == "" || strings.HasPrefix(importPath, ".") {
		return ResolvedPackage{}, false
	}
	site, ok := r.PackageCache(projectRoot)
	if !ok {
		return ResolvedPackage{}, false
	}
	return resolvePythonImport(importPath, site)
}

// resolvePythonImport maps a dotted module path onto a package directory
// or a single-file module below site.
func resolvePythonImport(importPath, site string) (ResolvedPackage, bool) {
	parts := strings.Split(importPath, ".")
	pkgDir := filepath.Join(site, parts[0])
	if isDir(pkgDir) {
		path := filepath.Join(append([]string{pkgDir}, parts[1:]...)...)
		if isDir(path) {
			return ResolvedPackage{
				Path:        path,
				Name:        importPath,
				IsNamespace: !isFile(filepath.Join(path, "__init__.py")),
			}, true
		}
		if isFile(path + ".py") {
			return ResolvedPackage{Path: path + ".py", Name: importPath}, true
		}
		return ResolvedPackage{}, false
	}
	if f := filepath.Join(site, parts[0]+".py"); isFile(f) {
		return ResolvedPackage{Path: f, Name: importPath}, true
	}
	return ResolvedPackage{}, false
}

func (pythonResolver) Version(ctx context.Context, projectRoot string) (string, bool) {
	for _, venv := range []string{".venv", "venv"} {
		bin := filepath.Join(projectRoot, venv, "bin", "python")
		if isFile(bin) {
			if v, ok := probeVersion(ctx, bin, "--version"); ok {
				return v, true
			}
		}
	}
	return probeVersion(ctx, "python3", "--version")
}

// PackageCache finds site-packages in .venv or venv under the project
// root, then in a .venv of any ancestor directory.
func (pythonResolver) PackageCache(projectRoot string) (string, bool) {
	for _, venv := range []string{".venv", "venv"} {
		if sp, ok := sitePackages(filepath.Join(projectRoot, venv)); ok {
			return sp, true
		}
	}
	for _, dir := range ancestors(projectRoot)[1:] {
		if sp, ok := sitePackages(filepath.Join(dir, ".venv")); ok {
			return sp, true
		}
	}
	return "", false
}

func sitePackages(venv string) (string, bool) {
	if !isDir(venv) {
		return "", false
	}
	lib := filepath.Join(venv, "lib")
	for _, name := range readDirNames(lib) {
		if !strings.HasPrefix(name, "python") {
			continue
		}
		if sp := filepath.Join(lib, name, "site-packages"); isDir(sp) {
			return sp, true
		}
	}
	if sp := filepath.Join(venv, "Lib", "site-packages"); isDir(sp) {
		return sp, true
	}
	return "", false
}

func (r pythonResolver) PackageSources(projectRoot string) []PackageSource {
	site, ok := r.PackageCache(projectRoot)
	if !ok {
		return nil
	}
	return []PackageSource{{Name: "site-packages", Path: site, VersionSpecific: true}}
}

func (pythonResolver) DiscoverPackages(src PackageSource) []DiscoveredPackage {
	var out []DiscoveredPackage
	for _, name := range readDirNames(src.Path) {
		if skipPackageEntry(name) || name == "__pycache__" ||
			strings.HasSuffix(name, ".dist-info") || strings.HasSuffix(name, ".egg-info") {
			continue
		}
		p := filepath.Join(src.Path, name)
		switch {
		case isDir(p):
			out = append(out, DiscoveredPackage{Name: name, Path: p})
		case strings.HasSuffix(name, ".py"):
			out = append(out, DiscoveredPackage{Name: strings.TrimSuffix(name, ".py"), Path: p})
		}
	}
	return out
}

func (pythonResolver) PackageEntry(path string) (string, bool) {
	if isFile(path) {
		return path, true
	}
	return firstFile(path, "__init__.py", "__init__.pyi")
}
