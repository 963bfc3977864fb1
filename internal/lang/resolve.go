package lang

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ResolvedPackage is the on-disk location of an external import.
type ResolvedPackage struct {
	Path string
	Name string
	// IsNamespace is set for packages with no entry file (Python
	// namespace packages).
	IsNamespace bool
}

// PackageSource is a directory holding installed packages.
type PackageSource struct {
	Name string
	Path string
	// VersionSpecific marks sources whose packages belong to one toolchain
	// version (a stdlib tree, a venv's site-packages).
	VersionSpecific bool
	stdlib          bool
}

// DiscoveredPackage is one package found in a PackageSource.
type DiscoveredPackage struct {
	Name string
	Path string
}

// Resolver holds the external-import hooks of a language ecosystem. A
// failed resolution is a normal outcome and is reported as false, not as
// an error.
type Resolver interface {
	IsStdlibImport(importPath, projectRoot string) bool
	ResolveExternalImport(importPath, projectRoot string) (ResolvedPackage, bool)
	// Version probes the installed toolchain and returns "major.minor".
	Version(ctx context.Context, projectRoot string) (string, bool)
	PackageCache(projectRoot string) (string, bool)
	PackageSources(projectRoot string) []PackageSource
	DiscoverPackages(src PackageSource) []DiscoveredPackage
	// PackageEntry returns the file to extract for a package path.
	PackageEntry(path string) (string, bool)
}

// versionProbeTimeout bounds each toolchain version probe.
const versionProbeTimeout = 5 * time.Second

var majorMinorRe = regexp.MustCompile(`(\d+)\.(\d+)`)

// probeVersion runs a toolchain command and extracts the first
// "major.minor" from its output.
func probeVersion(ctx context.Context, name string, args ...string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return "", false
	}
	m := majorMinorRe.FindStringSubmatch(string(out))
	if m == nil {
		return "", false
	}
	return m[1] + "." + m[2], true
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// readDirNames lists the entry names of dir in sorted order, or nil.
func readDirNames(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return ""
}

// ancestors returns dir and each of its parents up to the filesystem root.
func ancestors(dir string) []string {
	dir = filepath.Clean(dir)
	var out []string
	for {
		out = append(out, dir)
		parent := filepath.Dir(dir)
		if parent == dir {
			return out
		}
		dir = parent
	}
}

// firstFile returns the first of dir/candidates that is a regular file.
func firstFile(dir string, candidates ...string) (string, bool) {
	for _, c := range candidates {
		p := filepath.Join(dir, c)
		if isFile(p) {
			return p, true
		}
	}
	return "", false
}

func skipPackageEntry(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}
