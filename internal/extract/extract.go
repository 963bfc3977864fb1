// Package extract turns source files into symbol trees, imports, exports
// and call edges using tree-sitter and the per-language capabilities in
// package lang.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/thicket/internal/lang"
)

var (
	// ErrUnsupportedFile is returned for files no registered language handles.
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrParse is returned when the grammar rejects a file.
	ErrParse = errors.New("parse failed")
	// ErrBinary is returned for files that look like binary content.
	ErrBinary = errors.New("binary content")
	// ErrTooLarge is returned for files above the configured size limit.
	ErrTooLarge = errors.New("file too large")
)

// Policy decides what happens when a language does not classify a node
// category the extractor needs.
type Policy int

const (
	// Lenient treats an unclassified category as having no node kinds.
	Lenient Policy = iota
	// Strict fails extraction of the file with lang.ErrNotSupported.
	Strict
)

// binarySniffBytes is how much of a file is checked for NUL bytes.
const binarySniffBytes = 8192

// Call is one call site. Caller is the name of the enclosing function or
// method, empty at file scope. Line is 1-based.
type Call struct {
	Caller string `json:"caller,omitempty"`
	Callee string `json:"callee"`
	Line   int    `json:"line"`
}

// Result is everything extracted from one file.
type Result struct {
	Language string        `json:"language"`
	Symbols  []lang.Symbol `json:"symbols"`
	Imports  []lang.Import `json:"imports"`
	Exports  []lang.Export `json:"exports"`
	Calls    []Call        `json:"calls"`
}

// Extractor parses files and walks them through their language. It is safe
// for concurrent use; each call gets its own parser.
type Extractor struct {
	policy   Policy
	maxBytes int64

	mu    sync.Mutex
	kinds map[string]*kindSet
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithPolicy sets how unclassified node categories are handled.
func WithPolicy(p Policy) Option {
	return func(x *Extractor) { x.policy = p }
}

// WithMaxFileBytes skips files larger than n bytes. Zero means no limit.
func WithMaxFileBytes(n int64) Option {
	return func(x *Extractor) { x.maxBytes = n }
}

// New returns an Extractor. The default policy is Lenient.
func New(opts ...Option) *Extractor {
	x := &Extractor{kinds: make(map[string]*kindSet)}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Supported reports whether a registered language handles path.
func Supported(path string) bool {
	_, ok := lang.ForPath(path)
	return ok
}

// ExtractFile reads and extracts the file at path.
func (x *Extractor) ExtractFile(ctx context.Context, path string) (*Result, error) {
	if !Supported(path) {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFile)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if x.maxBytes > 0 {
		if info, err := f.Stat(); err == nil && info.Size() > x.maxBytes {
			return nil, fmt.Errorf("%s: %d bytes: %w", path, info.Size(), ErrTooLarge)
		}
	}
	src, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return x.Extract(ctx, path, src)
}

// IsBinary reports whether src contains a NUL byte in its first 8 KiB.
func IsBinary(src []byte) bool {
	if len(src) > binarySniffBytes {
		src = src[:binarySniffBytes]
	}
	return bytes.IndexByte(src, 0) >= 0
}

// Extract parses src as the language of path and extracts it.
func (x *Extractor) Extract(ctx context.Context, path string, src []byte) (*Result, error) {
	l, ok := lang.ForPath(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFile)
	}
	if IsBinary(src) {
		return nil, fmt.Errorf("%s: %w", path, ErrBinary)
	}
	ks, err := x.kindSetFor(l)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(l.Grammar())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrParse, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrParse)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.Type() == "ERROR" {
		return nil, fmt.Errorf("%s: %w", path, ErrParse)
	}

	w := &walker{lang: l, src: src, kinds: ks}
	return &Result{
		Language: l.Name(),
		Symbols:  w.symbols(root, false),
		Imports:  w.imports(root),
		Exports:  w.exports(root),
		Calls:    w.calls(root),
	}, nil
}

// kindSet holds a language's node kinds as lookup sets.
type kindSet struct {
	containers, functions, types, imports, public, calls map[string]bool
}

func (x *Extractor) kindSetFor(l lang.Language) (*kindSet, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if ks, ok := x.kinds[l.Name()]; ok {
		return ks, nil
	}

	ks := &kindSet{}
	var errs []error
	for _, c := range []struct {
		cat lang.Category
		dst *map[string]bool
	}{
		{lang.CategoryContainer, &ks.containers},
		{lang.CategoryFunction, &ks.functions},
		{lang.CategoryType, &ks.types},
		{lang.CategoryImport, &ks.imports},
		{lang.CategoryPublicSymbol, &ks.public},
		{lang.CategoryCall, &ks.calls},
	} {
		kinds, err := l.Kinds(c.cat)
		if err != nil {
			if !errors.Is(err, lang.ErrNotSupported) || x.policy == Strict {
				errs = append(errs, err)
			}
		}
		set := make(map[string]bool, len(kinds))
		for _, k := range kinds {
			set[k] = true
		}
		*c.dst = set
	}
	if len(errs) > 0 {
		// Not cached: the error is reported for every file of the language.
		return nil, errors.Join(errs...)
	}
	x.kinds[l.Name()] = ks
	return ks, nil
}
