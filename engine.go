package arbor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jward/arbor/internal/index"
)

// Engine is the top-level façade: it owns the builder, the persistent symbol
// index, and the most recently built translation unit that the query and
// completion surfaces answer from.
type Engine struct {
	builder *Builder
	index   *index.Index

	mu sync.RWMutex
	tu *TranslationUnit
}

// New opens an engine with its AST cache under cacheRoot and its symbol
// index at indexPath (a SQLite database file, created on first use).
func New(cacheRoot, indexPath string, opts ...BuilderOption) (*Engine, error) {
	b, err := NewBuilder(cacheRoot, opts...)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(indexPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}
	idx, err := index.Open(indexPath)
	if err != nil {
		return nil, err
	}
	return &Engine{builder: b, index: idx}, nil
}

// Close releases the symbol index.
func (e *Engine) Close() error {
	return e.index.Close()
}

// Builder returns the engine's builder.
func (e *Engine) Builder() *Builder { return e.builder }

// Index returns the engine's persistent symbol index.
func (e *Engine) Index() *index.Index { return e.index }

// TranslationUnit returns the most recently built unit, or nil.
func (e *Engine) TranslationUnit() *TranslationUnit {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tu
}

// Build parses or loads the package without resolution. The resulting unit
// becomes the engine's current unit.
func (e *Engine) Build(ctx context.Context, pkg Package) (*TranslationUnit, error) {
	tu, err := e.builder.Build(ctx, pkg)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.tu = tu
	e.mu.Unlock()
	return tu, nil
}

// BuildWithSymbols builds the package, resolves symbols, and rebuilds the
// persistent index from the fresh unit. The index is cleared first so files
// dropped from the package leave no stale rows.
func (e *Engine) BuildWithSymbols(ctx context.Context, pkg Package) (*TranslationUnit, error) {
	tu, err := e.builder.BuildWithSymbols(ctx, pkg)
	if err != nil {
		return nil, err
	}
	if err := e.reindex(tu); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.tu = tu
	e.mu.Unlock()
	return tu, nil
}

// reindex replaces the persistent index contents with the unit's symbols and
// references.
func (e *Engine) reindex(tu *TranslationUnit) error {
	if err := e.index.Clear(); err != nil {
		return err
	}

	var defs []index.Definition
	var refs []index.Reference
	for _, path := range tu.SortedPaths() {
		doc := tu.FileASTs[path]
		for _, sym := range doc.Symbols {
			scopeName := ""
			if s := doc.ScopeByID(sym.ScopeID); s != nil {
				scopeName = s.Kind
				if s.Name != "" {
					scopeName = s.Kind + ":" + s.Name
				}
			}
			defs = append(defs, index.Definition{
				SymbolID:   sym.ID(),
				Name:       sym.Name,
				Kind:       sym.Kind,
				Type:       sym.Type,
				File:       sym.Loc.File,
				Line:       sym.Loc.Line,
				Column:     sym.Loc.Column,
				Scope:      scopeName,
				Visibility: string(sym.Visibility),
			})
		}
		for _, ref := range doc.Refs {
			refs = append(refs, index.Reference{
				Name:           ref.Name,
				Context:        string(ref.Context),
				File:           ref.Loc.File,
				Line:           ref.Loc.Line,
				Column:         ref.Loc.Column,
				TargetSymbolID: ref.Target,
			})
		}
	}
	if err := e.index.InsertDefinitions(defs); err != nil {
		return err
	}
	return e.index.InsertReferences(refs)
}

// FindSymbols returns the indexed definitions with the given name.
func (e *Engine) FindSymbols(name string) ([]index.Definition, error) {
	return e.index.DefinitionsByName(name)
}

// FindReferences returns the locations of every reference resolved to the
// definition of name at defFile:defLine. When several definitions share that
// position the first indexed one wins.
func (e *Engine) FindReferences(name, defFile string, defLine int) ([]SourceLocation, error) {
	defs, err := e.index.DefinitionsByName(name)
	if err != nil {
		return nil, err
	}
	var target string
	for _, d := range defs {
		if d.File == defFile && d.Line == defLine {
			target = d.SymbolID
			break
		}
	}
	if target == "" {
		return nil, fmt.Errorf("no definition of %q at %s:%d", name, defFile, defLine)
	}
	refs, err := e.index.ReferencesTo(target)
	if err != nil {
		return nil, err
	}
	locs := make([]SourceLocation, 0, len(refs))
	for _, r := range refs {
		locs = append(locs, SourceLocation{File: r.File, Line: r.Line, Column: r.Column})
	}
	return locs, nil
}

// CompleteAt returns completion candidates at a cursor position in the
// current unit. An engine with no built unit yields no candidates.
func (e *Engine) CompleteAt(file string, line, column int) []CompletionItem {
	tu := e.TranslationUnit()
	if tu == nil {
		return []CompletionItem{}
	}
	return CompleteAt(tu, file, line, column)
}

// PrintAST renders the cached tree of one file from the current unit.
func (e *Engine) PrintAST(file string, opts PrintOptions) (string, error) {
	tu := e.TranslationUnit()
	if tu == nil {
		return "", fmt.Errorf("no translation unit built")
	}
	doc, ok := tu.FileASTs[file]
	if !ok {
		return "", fmt.Errorf("file %s not in translation unit", file)
	}
	return PrintAST(doc, opts), nil
}

// Transform builds the package with symbols and applies the named include
// transform, returning the generated files without writing them.
func (e *Engine) Transform(ctx context.Context, pkg Package, convention string) ([]GeneratedFile, error) {
	tu, err := e.BuildWithSymbols(ctx, pkg)
	if err != nil {
		return nil, err
	}
	return TransformIncludes(tu, pkg, convention)
}
