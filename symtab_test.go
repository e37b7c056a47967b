package arbor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loc(file string, line, col int) SourceLocation {
	return SourceLocation{File: file, Line: line, Column: col}
}

func span(file string, l1, c1, l2, c2 int) SourceExtent {
	return SourceExtent{Start: loc(file, l1, c1), End: loc(file, l2, c2)}
}

// mainDoc models:
//
//	 1: int g;            (file scope)
//	 5: void f() {        (function scope, lines 5-20)
//	10:   int local;
//	   }
func mainDoc() *ASTDocument {
	return &ASTDocument{
		Path:     "main.c",
		Language: "c",
		Root:     &ASTNode{Kind: "file"},
		Scopes: []Scope{
			{ID: 0, Kind: "file", Extent: span("main.c", 1, 1, 100, 1), Parent: -1},
			{ID: 1, Kind: "function", Name: "f", Extent: span("main.c", 5, 1, 20, 1), Parent: 0},
		},
		Symbols: []*Symbol{
			{Name: "g", Kind: "variable", Type: "int", Loc: loc("main.c", 1, 5), ScopeID: 0, Visibility: VisibilityPublic},
			{Name: "f", Kind: "function", Type: "void", Loc: loc("main.c", 5, 6), ScopeID: 0, Visibility: VisibilityPublic},
			{Name: "local", Kind: "variable", Type: "int", Loc: loc("main.c", 10, 7), ScopeID: 1, Visibility: VisibilityPublic},
		},
	}
}

func otherDoc() *ASTDocument {
	return &ASTDocument{
		Path:     "other.c",
		Language: "c",
		Root:     &ASTNode{Kind: "file"},
		Scopes: []Scope{
			{ID: 0, Kind: "file", Extent: span("other.c", 1, 1, 100, 1), Parent: -1},
		},
		Symbols: []*Symbol{
			{Name: "shared", Kind: "variable", Type: "int", Loc: loc("other.c", 2, 5), ScopeID: 0, Visibility: VisibilityPublic},
			{Name: "hidden", Kind: "variable", Type: "int", Loc: loc("other.c", 3, 5), ScopeID: 0, Visibility: VisibilityPrivate},
		},
	}
}

func newTestTable(t *testing.T) *SymbolTable {
	t.Helper()
	table := NewSymbolTable()
	table.AddDocument(mainDoc())
	table.AddDocument(otherDoc())
	return table
}

func TestLookup_LocalBeforeUse(t *testing.T) {
	table := newTestTable(t)

	syms := table.Lookup("local", loc("main.c", 15, 1))
	require.Len(t, syms, 1)
	assert.Equal(t, 1, syms[0].ScopeID)
}

func TestLookup_LocalNotVisibleBeforeDeclaration(t *testing.T) {
	table := newTestTable(t)

	// At line 8 the declaration on line 10 has not happened yet.
	syms := table.Lookup("local", loc("main.c", 8, 1))
	assert.Empty(t, syms)
}

func TestLookup_InnerShadowsOuter(t *testing.T) {
	doc := mainDoc()
	doc.Symbols = append(doc.Symbols, &Symbol{
		Name: "g", Kind: "variable", Type: "char", Loc: loc("main.c", 6, 8), ScopeID: 1, Visibility: VisibilityPublic,
	})
	table := NewSymbolTable()
	table.AddDocument(doc)

	// Both declarations are candidates; the inner one comes first, so
	// shadowing is implicit in the ordering.
	syms := table.Lookup("g", loc("main.c", 15, 1))
	require.Len(t, syms, 2)
	assert.Equal(t, "char", syms[0].Type, "inner declaration shadows the global")
	assert.Equal(t, "int", syms[1].Type, "the shadowed global is still listed")

	// Outside the function only the global is visible.
	syms = table.Lookup("g", loc("main.c", 30, 1))
	require.Len(t, syms, 1)
	assert.Equal(t, "int", syms[0].Type)
}

func TestLookup_CrossFileTopLevel(t *testing.T) {
	table := newTestTable(t)

	syms := table.Lookup("shared", loc("main.c", 15, 1))
	require.Len(t, syms, 1)
	assert.Equal(t, "other.c", syms[0].Loc.File)
}

func TestLookup_PrivateInvisibleAcrossFiles(t *testing.T) {
	table := newTestTable(t)

	assert.Empty(t, table.Lookup("hidden", loc("main.c", 15, 1)))

	// Inside its own file the private symbol resolves.
	syms := table.Lookup("hidden", loc("other.c", 50, 1))
	require.Len(t, syms, 1)
}

func TestLookup_SameFileWinsTie(t *testing.T) {
	doc := mainDoc()
	doc.Symbols = append(doc.Symbols, &Symbol{
		Name: "shared", Kind: "variable", Type: "long", Loc: loc("main.c", 50, 5), ScopeID: 0, Visibility: VisibilityPublic,
	})
	table := NewSymbolTable()
	table.AddDocument(doc)
	table.AddDocument(otherDoc())

	syms := table.Lookup("shared", loc("main.c", 60, 1))
	require.Len(t, syms, 2)
	assert.Equal(t, "main.c", syms[0].Loc.File, "own file comes before the cross-file candidate")
	assert.Equal(t, "other.c", syms[1].Loc.File)

	// From a file with no candidate of its own, both definitions surface.
	syms = table.Lookup("shared", loc("unknown.c", 1, 1))
	assert.Len(t, syms, 2)
}

func TestLookup_TypeScopeHasNoPositionRule(t *testing.T) {
	doc := &ASTDocument{
		Path: "t.c",
		Root: &ASTNode{Kind: "file"},
		Scopes: []Scope{
			{ID: 0, Kind: "file", Extent: span("t.c", 1, 1, 100, 1), Parent: -1},
			{ID: 1, Kind: "type", Name: "S", Extent: span("t.c", 1, 1, 10, 1), Parent: 0},
		},
		Symbols: []*Symbol{
			{Name: "late", Kind: "field", Type: "int", Loc: loc("t.c", 8, 3), ScopeID: 1, Visibility: VisibilityPublic},
		},
	}
	table := NewSymbolTable()
	table.AddDocument(doc)

	// Position 3:1 precedes the member's declaration on line 8; members
	// of a type are visible throughout the type body.
	syms := table.Lookup("late", loc("t.c", 3, 1))
	require.Len(t, syms, 1)
}

func TestSymbolByID_RoundTrip(t *testing.T) {
	table := newTestTable(t)
	sym := table.SymbolsByName("g")[0]
	assert.Same(t, sym, table.SymbolByID(sym.ID()))
}

func TestVisibleSymbols_ShadowedOnce(t *testing.T) {
	doc := mainDoc()
	doc.Symbols = append(doc.Symbols, &Symbol{
		Name: "g", Kind: "variable", Type: "char", Loc: loc("main.c", 6, 8), ScopeID: 1, Visibility: VisibilityPublic,
	})
	table := NewSymbolTable()
	table.AddDocument(doc)
	table.AddDocument(otherDoc())

	vis := table.VisibleSymbols(loc("main.c", 15, 1))
	byName := make(map[string]*Symbol)
	count := make(map[string]int)
	for _, s := range vis {
		byName[s.Name] = s
		count[s.Name]++
	}

	assert.Equal(t, 1, count["g"], "shadowed name listed once")
	assert.Equal(t, "char", byName["g"].Type, "innermost wins")
	assert.Contains(t, byName, "local")
	assert.Contains(t, byName, "shared")
	assert.NotContains(t, byName, "hidden")
}
