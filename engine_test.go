package arbor

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, opts ...BuilderOption) *Engine {
	t.Helper()
	e, err := New(t.TempDir(), filepath.Join(t.TempDir(), "symbols.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngine_BuildWithSymbolsPopulatesIndex(t *testing.T) {
	dir := t.TempDir()
	header := writeFile(t, dir, "a.h", "struct Point { int x; int y; };\n")
	source := writeFile(t, dir, "a.cpp", "#include \"a.h\"\nPoint p;\n")
	e := newTestEngine(t)

	tu, err := e.BuildWithSymbols(context.Background(), Package{Name: "pts", Files: []string{header, source}})
	require.NoError(t, err)
	require.Zero(t, tu.Report.Failed)

	defs, err := e.FindSymbols("Point")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "struct", defs[0].Kind)
	assert.Equal(t, header, defs[0].File)
	assert.Equal(t, 1, defs[0].Line)

	locs, err := e.FindReferences("Point", header, 1)
	require.NoError(t, err)
	require.NotEmpty(t, locs)
	assert.Equal(t, source, locs[0].File)
	assert.Equal(t, 2, locs[0].Line)
}

func TestEngine_FindReferences_UnknownDefinition(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.FindReferences("Ghost", "nowhere.h", 1)
	require.Error(t, err)
}

func TestEngine_ReindexDropsRemovedFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.h", "struct Keep { int x; };\n")
	b := writeFile(t, dir, "b.h", "struct Drop { int y; };\n")
	e := newTestEngine(t)

	_, err := e.BuildWithSymbols(context.Background(), Package{Name: "p", Files: []string{a, b}})
	require.NoError(t, err)

	// Rebuild without b.h: its rows must vanish.
	_, err = e.BuildWithSymbols(context.Background(), Package{Name: "p", Files: []string{a}})
	require.NoError(t, err)

	defs, err := e.FindSymbols("Drop")
	require.NoError(t, err)
	assert.Empty(t, defs)
	defs, err = e.FindSymbols("Keep")
	require.NoError(t, err)
	assert.Len(t, defs, 1)
}

func TestEngine_CompleteAtMemberAccess(t *testing.T) {
	dir := t.TempDir()
	line2 := "int main() { struct Pt p; p.x = 1; return 0; }"
	file := writeFile(t, dir, "m.cpp", "struct Pt { int x; int y; };\n"+line2+"\n")
	e := newTestEngine(t)

	_, err := e.BuildWithSymbols(context.Background(), Package{Name: "m", Files: []string{file}})
	require.NoError(t, err)

	// Cursor right after "p." on line 2.
	column := strings.Index(line2, "p.x") + 3
	items := e.CompleteAt(file, 2, column)

	labels := make([]string, 0, len(items))
	for _, it := range items {
		labels = append(labels, it.Label)
	}
	assert.Equal(t, []string{"x", "y"}, labels)
}

func TestEngine_CompleteAtWithoutBuild(t *testing.T) {
	e := newTestEngine(t)
	assert.Empty(t, e.CompleteAt("x.c", 1, 1))
}

func TestEngine_PrintAST(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "s.c", "struct Point { int x; };\n")
	e := newTestEngine(t)

	_, err := e.Build(context.Background(), Package{Name: "s", Files: []string{file}})
	require.NoError(t, err)

	out, err := e.PrintAST(file, PrintOptions{})
	require.NoError(t, err)
	assert.Contains(t, out, `struct_decl "Point"`)
	assert.Contains(t, out, `field_decl "x"`)

	_, err = e.PrintAST("missing.c", PrintOptions{})
	require.Error(t, err)
}

func TestEngine_TransformEndToEnd(t *testing.T) {
	dir := t.TempDir()
	header := writeFile(t, dir, "geo.h", "struct Inner { int v; };\nstruct Outer { struct Inner i; };\n")
	source := writeFile(t, dir, "geo.c", "#include \"geo.h\"\nstruct Outer o;\n")
	e := newTestEngine(t)

	files, err := e.Transform(context.Background(), Package{Name: "geo2", Files: []string{header, source}}, "upp")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "geo2.h", files[0].Path)

	posInner := strings.Index(files[0].Content, "struct Inner {")
	posOuter := strings.Index(files[0].Content, "struct Outer {")
	require.True(t, posInner >= 0 && posOuter >= 0)
	assert.Less(t, posInner, posOuter)
}
