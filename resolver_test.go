package arbor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_TwoPassConnectsUseBeforeDeclaration(t *testing.T) {
	// "a.c" sorts before "z.c", so pass 2 visits the use site before the
	// defining file would ever be parsed in a single-pass scheme.
	useDoc := &ASTDocument{
		Path: "a.c",
		Root: &ASTNode{Kind: "file"},
		Scopes: []Scope{
			{ID: 0, Kind: "file", Extent: span("a.c", 1, 1, 100, 1), Parent: -1},
		},
		Refs: []*Reference{
			{Name: "helper", Context: RefCall, Loc: loc("a.c", 3, 1), ScopeID: 0},
		},
	}
	defDoc := &ASTDocument{
		Path: "z.c",
		Root: &ASTNode{Kind: "file"},
		Scopes: []Scope{
			{ID: 0, Kind: "file", Extent: span("z.c", 1, 1, 100, 1), Parent: -1},
		},
		Symbols: []*Symbol{
			{Name: "helper", Kind: "function", Type: "void", Loc: loc("z.c", 7, 6), ScopeID: 0, Visibility: VisibilityPublic},
		},
	}

	tu := &TranslationUnit{
		FileASTs: map[string]*ASTDocument{"a.c": useDoc, "z.c": defDoc},
	}
	Resolve(tu)

	require.NotNil(t, tu.Symbols)
	assert.Equal(t, defDoc.Symbols[0].ID(), useDoc.Refs[0].Target)
	assert.Equal(t, 1, tu.Resolution.Resolved)
	assert.Equal(t, 0, tu.Resolution.Unresolved)
}

func TestResolve_FirstDeclarationWinsAmongCandidates(t *testing.T) {
	doc := &ASTDocument{
		Path: "o.c",
		Root: &ASTNode{Kind: "file"},
		Scopes: []Scope{
			{ID: 0, Kind: "file", Extent: span("o.c", 1, 1, 100, 1), Parent: -1},
		},
		Symbols: []*Symbol{
			{Name: "max", Kind: "function", Type: "int", Loc: loc("o.c", 1, 5), ScopeID: 0, Visibility: VisibilityPublic},
			{Name: "max", Kind: "function", Type: "double", Loc: loc("o.c", 2, 8), ScopeID: 0, Visibility: VisibilityPublic},
		},
		Refs: []*Reference{
			{Name: "max", Context: RefCall, Loc: loc("o.c", 10, 1), ScopeID: 0},
		},
	}
	tu := &TranslationUnit{FileASTs: map[string]*ASTDocument{"o.c": doc}}
	Resolve(tu)

	assert.Equal(t, doc.Symbols[0].ID(), doc.Refs[0].Target)
}

func TestResolve_ClearsStaleLocalTargets(t *testing.T) {
	// A target left over from extraction must not survive when the table
	// has no match for the name.
	doc := &ASTDocument{
		Path: "s.c",
		Root: &ASTNode{Kind: "file"},
		Scopes: []Scope{
			{ID: 0, Kind: "file", Extent: span("s.c", 1, 1, 100, 1), Parent: -1},
		},
		Refs: []*Reference{
			{Name: "gone", Context: RefIdentifier, Loc: loc("s.c", 1, 1), ScopeID: 0, Target: "variable:gone @old.c:1:1"},
		},
	}
	tu := &TranslationUnit{FileASTs: map[string]*ASTDocument{"s.c": doc}}
	Resolve(tu)

	assert.Empty(t, doc.Refs[0].Target)
	assert.Equal(t, 1, tu.Resolution.Unresolved)
}
