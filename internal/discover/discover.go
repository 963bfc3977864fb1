// Package discover walks a project tree the way git sees it: entries
// matched by .gitignore files, .git/info/exclude or the user's global
// excludes file are left out.
package discover

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
)

// Entry is one discovered file or directory.
type Entry struct {
	Path  string // relative to the root, forward slashes
	IsDir bool
	Mtime int64 // unix seconds
}

// alwaysSkip are directory names never descended into.
var alwaysSkip = map[string]struct{}{
	".git":     {},
	".hg":      {},
	".svn":     {},
	".thicket": {},
}

type options struct {
	globalExcludes bool
	extraSkip      map[string]struct{}
}

// Option configures a walk.
type Option func(*options)

// WithoutGlobalExcludes ignores core.excludesFile and the XDG git ignore file.
func WithoutGlobalExcludes() Option {
	return func(o *options) { o.globalExcludes = false }
}

// WithSkipDirs adds directory names that are never descended into.
func WithSkipDirs(names ...string) Option {
	return func(o *options) {
		for _, n := range names {
			o.extraSkip[n] = struct{}{}
		}
	}
}

// Walk returns every non-ignored file and directory under root, sorted by
// path. The root itself is not included. Symlinks are skipped.
func Walk(ctx context.Context, root string, opts ...Option) ([]Entry, error) {
	o := options{globalExcludes: true, extraSkip: map[string]struct{}{}}
	for _, opt := range opts {
		opt(&o)
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}

	m := newMatcher(root, o.globalExcludes)
	var entries []Entry

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped; the root itself was checked above.
			if d != nil && d.IsDir() && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if p == root {
			m.load("")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		name := d.Name()

		if d.IsDir() {
			if _, skip := alwaysSkip[name]; skip {
				return filepath.SkipDir
			}
			if _, skip := o.extraSkip[name]; skip {
				return filepath.SkipDir
			}
			if m.ignored(rel, true) {
				return filepath.SkipDir
			}
			m.load(rel)
		} else if m.ignored(rel, false) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		entries = append(entries, Entry{Path: rel, IsDir: d.IsDir(), Mtime: fi.ModTime().Unix()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// matcher holds the ignore rules seen so far, keyed by the directory they
// were loaded from ("" is the root).
type matcher struct {
	root   string
	global []*ignore.GitIgnore
	dirs   map[string]*ignore.GitIgnore
}

func newMatcher(root string, globalExcludes bool) *matcher {
	m := &matcher{root: root, dirs: make(map[string]*ignore.GitIgnore)}
	if gi := compileFile(filepath.Join(root, ".git", "info", "exclude")); gi != nil {
		m.global = append(m.global, gi)
	}
	if globalExcludes {
		if p := globalExcludesFile(root); p != "" {
			if gi := compileFile(p); gi != nil {
				m.global = append(m.global, gi)
			}
		}
	}
	return m
}

// load reads the .gitignore of the directory rel, if there is one.
func (m *matcher) load(rel string) {
	if gi := compileFile(filepath.Join(m.root, filepath.FromSlash(rel), ".gitignore")); gi != nil {
		m.dirs[rel] = gi
	}
}

// ignored checks rel against the global rules and the .gitignore of every
// ancestor directory, each relative to the directory it lives in.
func (m *matcher) ignored(rel string, isDir bool) bool {
	if matches(m.global, rel, isDir) {
		return true
	}
	dir := path.Dir(rel)
	for {
		key := dir
		if key == "." {
			key = ""
		}
		if gi, ok := m.dirs[key]; ok {
			sub := rel
			if key != "" {
				sub = strings.TrimPrefix(rel, key+"/")
			}
			if matches([]*ignore.GitIgnore{gi}, sub, isDir) {
				return true
			}
		}
		if key == "" {
			return false
		}
		dir = path.Dir(dir)
	}
}

func matches(rules []*ignore.GitIgnore, rel string, isDir bool) bool {
	for _, gi := range rules {
		if gi.MatchesPath(rel) {
			return true
		}
		// Directory-only patterns ("build/") need the trailing slash.
		if isDir && gi.MatchesPath(rel+"/") {
			return true
		}
	}
	return false
}

func compileFile(p string) *ignore.GitIgnore {
	if _, err := os.Stat(p); err != nil {
		return nil
	}
	gi, err := ignore.CompileIgnoreFile(p)
	if err != nil {
		return nil
	}
	return gi
}

// globalExcludesFile returns git's core.excludesFile, falling back to
// $XDG_CONFIG_HOME/git/ignore.
func globalExcludesFile(root string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "config", "--get", "core.excludesFile")
	cmd.Dir = root
	if out, err := cmd.Output(); err == nil {
		if p := expandHome(strings.TrimSpace(string(out))); p != "" {
			return p
		}
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "git", "ignore")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "git", "ignore")
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, p[2:])
}

// Mtime returns the modification time of root/rel in unix seconds, or
// false if it cannot be read.
func Mtime(root, rel string) (int64, bool) {
	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return 0, false
	}
	return info.ModTime().Unix(), true
}
