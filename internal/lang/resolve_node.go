package lang

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

var nodeBuiltins = map[string]bool{
	"assert": true, "buffer": true, "child_process": true, "cluster": true, "crypto": true,
	"dgram": true, "dns": true, "events": true, "fs": true, "http": true, "http2": true,
	"https": true, "net": true, "os": true, "path": true, "perf_hooks": true,
	"process": true, "querystring": true, "readline": true, "stream": true,
	"string_decoder": true, "timers": true, "tls": true, "tty": true, "url": true,
	"util": true, "v8": true, "vm": true, "worker_threads": true, "zlib": true,
}

// nodeResolver resolves bare specifiers against node_modules.
type nodeResolver struct{}

func (nodeResolver) IsStdlibImport(importPath, _ string) bool {
	if strings.HasPrefix(importPath, "node:") {
		return true
	}
	top, _, _ := strings.Cut(importPath, "/")
	return nodeBuiltins[top]
}

// nodePackageName strips a subpath from a bare specifier, keeping the
// scope of scoped packages: "@a/b/c" -> "@a/b", "lodash/fp" -> "lodash".
func nodePackageName(spec string) string {
	parts := strings.Split(spec, "/")
	if strings.HasPrefix(spec, "@") && len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

func (r nodeResolver) ResolveExternalImport(importPath, projectRoot string) (ResolvedPackage, bool) {
	if importPath == "" || strings.HasPrefix(importPath, ".") || strings.HasPrefix(importPath, "/") {
		return ResolvedPackage{}, false
	}
	modules, ok := r.PackageCache(projectRoot)
	if !ok {
		return ResolvedPackage{}, false
	}
	dir := filepath.Join(modules, filepath.FromSlash(nodePackageName(importPath)))
	if !isDir(dir) {
		return ResolvedPackage{}, false
	}
	sub := strings.TrimPrefix(strings.TrimPrefix(importPath, nodePackageName(importPath)), "/")
	if sub != "" {
		if p := filepath.Join(dir, filepath.FromSlash(sub)); isDir(p) || isFile(p) {
			return ResolvedPackage{Path: p, Name: importPath}, true
		}
	}
	return ResolvedPackage{Path: dir, Name: importPath}, true
}

func (nodeResolver) Version(ctx context.Context, _ string) (string, bool) {
	return probeVersion(ctx, "node", "--version")
}

// PackageCache returns the nearest node_modules at or above projectRoot.
func (nodeResolver) PackageCache(projectRoot string) (string, bool) {
	for _, dir := range ancestors(projectRoot) {
		if nm := filepath.Join(dir, "node_modules"); isDir(nm) {
			return nm, true
		}
	}
	return "", false
}

func (r nodeResolver) PackageSources(projectRoot string) []PackageSource {
	nm, ok := r.PackageCache(projectRoot)
	if !ok {
		return nil
	}
	return []PackageSource{{Name: "node_modules", Path: nm}}
}

func (nodeResolver) DiscoverPackages(src PackageSource) []DiscoveredPackage {
	var out []DiscoveredPackage
	for _, name := range readDirNames(src.Path) {
		p := filepath.Join(src.Path, name)
		if strings.HasPrefix(name, ".") || !isDir(p) {
			continue
		}
		if strings.HasPrefix(name, "@") {
			for _, sub := range readDirNames(p) {
				if sp := filepath.Join(p, sub); isDir(sp) {
					out = append(out, DiscoveredPackage{Name: name + "/" + sub, Path: sp})
				}
			}
			continue
		}
		out = append(out, DiscoveredPackage{Name: name, Path: p})
	}
	return out
}

type packageJSON struct {
	Types   string `json:"types"`
	Typings string `json:"typings"`
	Module  string `json:"module"`
	Main    string `json:"main"`
}

// PackageEntry prefers type declarations, then the ES module entry, then
// main, then index files.
func (nodeResolver) PackageEntry(path string) (string, bool) {
	if isFile(path) {
		return path, true
	}
	if data, err := os.ReadFile(filepath.Join(path, "package.json")); err == nil {
		var pj packageJSON
		if json.Unmarshal(data, &pj) == nil {
			for _, cand := range []string{pj.Types, pj.Typings, pj.Module, pj.Main} {
				if cand == "" {
					continue
				}
				p := filepath.Join(path, filepath.FromSlash(cand))
				if isFile(p) {
					return p, true
				}
				if f, ok := firstFile(p, "index.d.ts", "index.ts", "index.js"); ok {
					return f, true
				}
				if isFile(p + ".js") {
					return p + ".js", true
				}
			}
		}
	}
	return firstFile(path, "index.d.ts", "index.ts", "index.js", "index.mjs")
}
