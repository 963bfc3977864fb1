package discover

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func paths(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

func TestWalk_FilesAndDirs(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "src/lib/util.py", "pass")
	writeFile(t, root, ".env.example", "X=1")

	entries, err := Walk(context.Background(), root, WithoutGlobalExcludes())
	require.NoError(t, err)

	assert.Equal(t, []string{".env.example", "main.go", "src", "src/lib", "src/lib/util.py"}, paths(entries))
	for _, e := range entries {
		assert.Equal(t, e.Path == "src" || e.Path == "src/lib", e.IsDir, e.Path)
		assert.Positive(t, e.Mtime, e.Path)
	}
}

func TestWalk_SkipsVCSAndIndexDirs(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.txt", "a")
	writeFile(t, root, ".git/HEAD", "ref")
	writeFile(t, root, ".thicket/index.db", "")

	entries, err := Walk(context.Background(), root, WithoutGlobalExcludes())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, paths(entries))
}

func TestWalk_Gitignore(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.log\nbuild/\n")
	writeFile(t, root, "app.go", "package app")
	writeFile(t, root, "debug.log", "x")
	writeFile(t, root, "build/out.bin", "x")
	writeFile(t, root, "sub/.gitignore", "secret.txt\n")
	writeFile(t, root, "sub/secret.txt", "x")
	writeFile(t, root, "sub/public.txt", "x")
	writeFile(t, root, "secret.txt", "top-level is not covered by sub/.gitignore")

	entries, err := Walk(context.Background(), root, WithoutGlobalExcludes())
	require.NoError(t, err)
	assert.Equal(t, []string{
		".gitignore",
		"app.go",
		"secret.txt",
		"sub",
		"sub/.gitignore",
		"sub/public.txt",
	}, paths(entries))
}

func TestWalk_RepositoryExclude(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, ".git/info/exclude", "local.txt\n")
	writeFile(t, root, "local.txt", "x")
	writeFile(t, root, "kept.txt", "x")

	entries, err := Walk(context.Background(), root, WithoutGlobalExcludes())
	require.NoError(t, err)
	assert.Equal(t, []string{"kept.txt"}, paths(entries))
}

func TestWalk_SkipDirsOption(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "node_modules/pkg/index.js", "x")
	writeFile(t, root, "index.js", "x")

	entries, err := Walk(context.Background(), root, WithoutGlobalExcludes(), WithSkipDirs("node_modules"))
	require.NoError(t, err)
	assert.Equal(t, []string{"index.js"}, paths(entries))
}

func TestWalk_NotADirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "file.txt", "x")

	_, err := Walk(context.Background(), filepath.Join(root, "file.txt"))
	assert.Error(t, err)
}

func TestWalk_Cancelled(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.txt", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Walk(ctx, root, WithoutGlobalExcludes())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMtime(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "src/a.py", "x")

	m, ok := Mtime(root, "src")
	assert.True(t, ok)
	assert.Positive(t, m)

	_, ok = Mtime(root, "missing")
	assert.False(t, ok)
}
