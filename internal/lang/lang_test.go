package lang

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForPath(t *testing.T) {
	tests := []struct {
		path string
		name string
		key  string
	}{
		{"main.go", "Go", "go"},
		{"app.py", "Python", "python"},
		{"stubs/app.pyi", "Python", "python"},
		{"index.js", "JavaScript", "js"},
		{"lib.mjs", "JavaScript", "js"},
		{"view.jsx", "JavaScript", "js"},
		{"server.ts", "TypeScript", "js"},
		{"App.tsx", "TSX", "js"},
		{"lib.rs", "Rust", "rust"},
		{"Main.java", "Java", "java"},
		{"util.c", "C", "c"},
		{"util.h", "C", "c"},
		{"engine.cc", "C++", "cpp"},
		{"engine.hpp", "C++", "cpp"},
		{"Rakefile.rake", "Ruby", "ruby"},
		{"app.rb", "Ruby", "ruby"},
		{"Main.scala", "Scala", "scala"},
		{"index.php", "PHP", "php"},
		{"build.sh", "Bash", "bash"},
		{"README.md", "Markdown", "markdown"},
		{"ci.yml", "YAML", "yaml"},
		{"Cargo.toml", "TOML", "toml"},
		{"index.htm", "HTML", "html"},
		{"site.css", "CSS", "css"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			l, ok := ForPath(tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.name, l.Name())
			assert.Equal(t, tt.key, l.Key())
			assert.NotNil(t, l.Grammar())
		})
	}

	_, ok := ForPath("notes.txt")
	assert.False(t, ok)
	_, ok = ForPath("Makefile")
	assert.False(t, ok)
}

func TestForExtension_Normalizes(t *testing.T) {
	for _, ext := range []string{".go", "go", ".GO"} {
		l, ok := ForExtension(ext)
		require.True(t, ok, ext)
		assert.Equal(t, "Go", l.Name())
	}
	_, ok := ForExtension("")
	assert.False(t, ok)
}

func TestByName(t *testing.T) {
	l, ok := ByName("python")
	require.True(t, ok)
	assert.Equal(t, "Python", l.Name())

	l, ok = ByName("c++")
	require.True(t, ok)
	assert.Equal(t, "cpp", l.Key())

	_, ok = ByName("cobol")
	assert.False(t, ok)
}

func TestAll_SortedAndComplete(t *testing.T) {
	all := All()
	require.Len(t, all, 18)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Name(), all[i].Name())
	}
	for _, l := range all {
		for _, ext := range l.Extensions() {
			assert.Regexp(t, `^\.[a-z+]+$`, ext, "%s extension", l.Name())
		}
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, []string{"go", "js", "python", "rust"}, Keys())

	l, ok := ForKey("js")
	require.True(t, ok)
	assert.Equal(t, "JavaScript", l.Name())

	_, ok = ForKey("markdown")
	assert.False(t, ok)
}

func TestKinds(t *testing.T) {
	goLang, ok := ByName("Go")
	require.True(t, ok)

	fns, err := goLang.Kinds(CategoryFunction)
	require.NoError(t, err)
	assert.Equal(t, []string{"function_declaration", "method_declaration"}, fns)

	calls, err := goLang.Kinds(CategoryCall)
	require.NoError(t, err)
	assert.Equal(t, []string{"call_expression"}, calls)

	scala, ok := ByName("Scala")
	require.True(t, ok)
	_, err = scala.Kinds(CategoryImport)
	require.ErrorIs(t, err, ErrNotSupported)
	assert.Contains(t, err.Error(), "Scala: import kinds")

	// Markup languages classify every category, mostly as empty.
	md, ok := ByName("Markdown")
	require.True(t, ok)
	for c := CategoryContainer; c <= CategoryCall; c++ {
		_, err := md.Kinds(c)
		assert.NoError(t, err, c.String())
	}
}

func TestVisibilityMechanism(t *testing.T) {
	tests := map[string]Mechanism{
		"Go":         NamingConvention,
		"Python":     NamingConvention,
		"TypeScript": ExplicitExport,
		"Java":       AccessModifier,
		"C++":        HeaderBased,
		"Bash":       NotApplicable,
		"YAML":       NotApplicable,
	}
	for name, want := range tests {
		l, ok := ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, want, l.VisibilityMechanism(), name)
	}
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "naming-convention", NamingConvention.String())
	assert.Equal(t, "Mechanism(42)", Mechanism(42).String())
	assert.Equal(t, "public-symbol", CategoryPublicSymbol.String())
	assert.Equal(t, "control-flow", CategoryControlFlow.String())
	assert.Equal(t, "Category(-1)", Category(-1).String())
}

func TestCalleeFromText(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"foo", "foo", true},
		{"obj.method", "method", true},
		{"a.b.c", "c", true},
		{"Vec::<T>::new", "new", true},
		{"std::mem::swap", "swap", true},
		{"$this->save", "save", true},
		{"App\\Models\\User::find", "find", true},
		{"println!", "println", true},
		{"&mut x", "", false},
		{"(f)", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := CalleeFromText(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

const goSource = `package demo

import (
	"fmt"
	str "strings"
)

// Greeter says hello.
type Greeter struct{}

// Greet returns a greeting.
func (g Greeter) Greet(name string) string {
	return fmt.Sprintf("hi %s", str.ToUpper(name))
}

func helper() {}
`

// parse returns src's syntax tree for l and every node whose type is in
// kinds, in document order.
func parse(t *testing.T, l Language, src string, kinds ...string) []*sitter.Node {
	t.Helper()
	parser := sitter.NewParser()
	parser.SetLanguage(l.Grammar())
	tree, err := parser.ParseCtx(context.Background(), nil, []byte(src))
	require.NoError(t, err)
	t.Cleanup(tree.Close)

	want := map[string]bool{}
	for _, k := range kinds {
		want[k] = true
	}
	var out []*sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if want[n.Type()] {
			out = append(out, n)
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(tree.RootNode())
	return out
}

func TestGo_Extraction(t *testing.T) {
	l, ok := ByName("Go")
	require.True(t, ok)
	src := []byte(goSource)

	fns := parse(t, l, goSource, "function_declaration", "method_declaration")
	require.Len(t, fns, 2)

	greet, ok := l.ExtractFunction(fns[0], src, false)
	require.True(t, ok)
	assert.Equal(t, Symbol{
		Name:       "Greet",
		Kind:       KindMethod,
		Signature:  "func (g Greeter) Greet(name string) string",
		Docstring:  "Greet returns a greeting.",
		StartLine:  12,
		EndLine:    14,
		Visibility: Public,
	}, greet)

	helper, ok := l.ExtractFunction(fns[1], src, false)
	require.True(t, ok)
	assert.Equal(t, KindFunction, helper.Kind)
	assert.Equal(t, Private, helper.Visibility)
	assert.Empty(t, helper.Docstring)

	types := parse(t, l, goSource, "type_spec")
	require.Len(t, types, 1)
	greeter, ok := l.ExtractType(types[0], src)
	require.True(t, ok)
	assert.Equal(t, KindStruct, greeter.Kind)
	assert.Equal(t, "Greeter says hello.", greeter.Docstring)
	assert.Equal(t, 9, greeter.StartLine)

	imports := parse(t, l, goSource, "import_declaration")
	require.Len(t, imports, 1)
	assert.Equal(t, []Import{
		{Module: "fmt", Line: 4},
		{Module: "strings", Alias: "str", Line: 5},
	}, l.ExtractImports(imports[0], src))

	var exports []Export
	for _, n := range parse(t, l, goSource, "function_declaration", "method_declaration", "type_spec") {
		exports = append(exports, l.ExtractPublicSymbols(n, src)...)
	}
	assert.ElementsMatch(t, []Export{
		{Name: "Greeter", Kind: KindType, Line: 9},
		{Name: "Greet", Kind: KindMethod, Line: 12},
	}, exports)

	var callees []string
	for _, n := range parse(t, l, goSource, "call_expression") {
		name, ok := l.CalleeName(n, src)
		require.True(t, ok)
		callees = append(callees, name)
	}
	assert.Equal(t, []string{"Sprintf", "ToUpper"}, callees)
}

func TestPython_Extraction(t *testing.T) {
	l, ok := ByName("Python")
	require.True(t, ok)
	const code = "import os\nfrom .models import User as U\n\nclass Repo:\n    def _load(self):\n        return os.getcwd()\n"
	src := []byte(code)

	classes := parse(t, l, code, "class_definition")
	require.Len(t, classes, 1)
	repo, ok := l.ExtractContainer(classes[0], src)
	require.True(t, ok)
	assert.Equal(t, "Repo", repo.Name)
	assert.Equal(t, KindClass, repo.Kind)

	fns := parse(t, l, code, "function_definition")
	require.Len(t, fns, 1)
	load, ok := l.ExtractFunction(fns[0], src, true)
	require.True(t, ok)
	assert.Equal(t, "_load", load.Name)
	assert.Equal(t, KindMethod, load.Kind)
	assert.Equal(t, Protected, load.Visibility)

	var calls []string
	for _, n := range parse(t, l, code, "call") {
		name, ok := l.CalleeName(n, src)
		require.True(t, ok)
		calls = append(calls, name)
	}
	assert.Equal(t, []string{"getcwd"}, calls)
}

func TestResolvers_Stdlib(t *testing.T) {
	tests := []struct {
		lang string
		path string
		want bool
	}{
		{"Go", "net/http", true},
		{"Go", "github.com/spf13/cobra", false},
		{"Python", "os.path", true},
		{"Python", "requests", false},
		{"JavaScript", "node:fs", true},
		{"JavaScript", "fs/promises", true},
		{"JavaScript", "lodash", false},
		{"Rust", "std::collections::HashMap", true},
		{"Rust", "serde::Serialize", false},
	}
	for _, tt := range tests {
		l, ok := ByName(tt.lang)
		require.True(t, ok)
		r := l.Resolver()
		require.NotNil(t, r, tt.lang)
		assert.Equal(t, tt.want, r.IsStdlibImport(tt.path, ""), "%s %s", tt.lang, tt.path)
	}
}

func TestNodePackageName(t *testing.T) {
	assert.Equal(t, "@a/b", nodePackageName("@a/b/c"))
	assert.Equal(t, "lodash", nodePackageName("lodash/fp"))
	assert.Equal(t, "react", nodePackageName("react"))
}

func TestCrateName(t *testing.T) {
	name, ok := crateName("serde-1.0.197")
	require.True(t, ok)
	assert.Equal(t, "serde", name)

	name, ok = crateName("tokio-macros-2.2.0")
	require.True(t, ok)
	assert.Equal(t, "tokio-macros", name)

	_, ok = crateName("nodash")
	assert.False(t, ok)
}

func TestPackageEntry(t *testing.T) {
	dir := t.TempDir()
	pyPkg := filepath.Join(dir, "requests")
	require.NoError(t, os.MkdirAll(pyPkg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pyPkg, "__init__.py"), nil, 0o644))

	entry, ok := pythonResolver{}.PackageEntry(pyPkg)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(pyPkg, "__init__.py"), entry)

	crate := filepath.Join(dir, "serde-1.0.0")
	require.NoError(t, os.MkdirAll(filepath.Join(crate, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(crate, "src", "lib.rs"), nil, 0o644))

	entry, ok = rustResolver{}.PackageEntry(crate)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(crate, "src", "lib.rs"), entry)

	_, ok = pythonResolver{}.PackageEntry(filepath.Join(dir, "missing"))
	assert.False(t, ok)
}
