package arbor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildUnit(t *testing.T, pkg Package) *TranslationUnit {
	t.Helper()
	b, err := NewBuilder(t.TempDir())
	require.NoError(t, err)
	tu, err := b.BuildWithSymbols(context.Background(), pkg)
	require.NoError(t, err)
	require.Zero(t, tu.Report.Failed, "fixture sources must parse cleanly")
	return tu
}

func TestTransform_OrdersByValueDependencies(t *testing.T) {
	dir := t.TempDir()
	header := writeFile(t, dir, "shapes.h", strings.Join([]string{
		"struct A { struct B b; };",
		"struct B { struct C c; };",
		"struct C { int x; };",
		"",
	}, "\n"))
	source := writeFile(t, dir, "main.c", strings.Join([]string{
		`#include "shapes.h"`,
		"",
		"int main() { struct A a; return 0; }",
		"",
	}, "\n"))

	pkg := Package{Name: "demo", Files: []string{header, source}}
	tu := buildUnit(t, pkg)

	files, err := TransformIncludes(tu, pkg, "upp")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	primary := files[0]
	assert.Equal(t, "demo.h", primary.Path)
	assert.Contains(t, primary.Content, "#ifndef DEMO_H")
	assert.Contains(t, primary.Content, "#define DEMO_H")

	// C must come first, then B, then A.
	posC := strings.Index(primary.Content, "struct C {")
	posB := strings.Index(primary.Content, "struct B {")
	posA := strings.Index(primary.Content, "struct A {")
	require.True(t, posC >= 0 && posB >= 0 && posA >= 0, "all declarations emitted:\n%s", primary.Content)
	assert.Less(t, posC, posB)
	assert.Less(t, posB, posA)
}

func TestTransform_RewritesIncluders(t *testing.T) {
	dir := t.TempDir()
	header := writeFile(t, dir, "shapes.h", "struct C { int x; };\n")
	source := writeFile(t, dir, "main.c", strings.Join([]string{
		"#include <stdio.h>",
		`#include "shapes.h"`,
		"",
		"int main() { struct C c; return 0; }",
		"",
	}, "\n"))

	pkg := Package{Name: "demo", Files: []string{header, source}}
	tu := buildUnit(t, pkg)

	files, err := TransformIncludes(tu, pkg, "upp")
	require.NoError(t, err)
	require.Len(t, files, 2)

	rewritten := files[1]
	assert.Equal(t, source, rewritten.Path)
	assert.Contains(t, rewritten.Content, `#include "demo.h"`)
	assert.NotContains(t, rewritten.Content, `"shapes.h"`)
	assert.Contains(t, rewritten.Content, "#include <stdio.h>", "system includes stay")
	assert.NotEmpty(t, rewritten.Diff)
}

func TestTransform_PointerMembersBecomeForwardDecls(t *testing.T) {
	dir := t.TempDir()
	header := writeFile(t, dir, "list.h", strings.Join([]string{
		"struct L { struct M *m; };",
		"struct M { struct L l; };",
		"",
	}, "\n"))

	pkg := Package{Name: "list", Files: []string{header}}
	tu := buildUnit(t, pkg)

	files, err := TransformIncludes(tu, pkg, "upp")
	require.NoError(t, err)
	primary := files[0]

	// M depends on L by value, so L precedes M; the pointer back-edge is
	// satisfied by a forward declaration instead of an ordering edge.
	assert.Contains(t, primary.Content, "struct M;")
	posL := strings.Index(primary.Content, "struct L {")
	posM := strings.Index(primary.Content, "struct M {")
	require.True(t, posL >= 0 && posM >= 0)
	assert.Less(t, posL, posM)
}

func TestTransform_DeclaredPointerTargetNeedsNoForwardDecl(t *testing.T) {
	dir := t.TempDir()
	header := writeFile(t, dir, "ptr.h", strings.Join([]string{
		"struct B { int x; };",
		"struct A { struct B *b; };",
		"",
	}, "\n"))

	pkg := Package{Name: "ptr", Files: []string{header}}
	tu := buildUnit(t, pkg)

	files, err := TransformIncludes(tu, pkg, "upp")
	require.NoError(t, err)
	primary := files[0]

	// B's full declaration precedes A, so the pointer member is already
	// satisfied and no forward declaration is synthesized.
	assert.NotContains(t, primary.Content, "struct B;")
	posB := strings.Index(primary.Content, "struct B {")
	posA := strings.Index(primary.Content, "struct A {")
	require.True(t, posB >= 0 && posA >= 0)
	assert.Less(t, posB, posA)
}

func TestTransform_CycleIsHardStop(t *testing.T) {
	dir := t.TempDir()
	header := writeFile(t, dir, "cyc.h", strings.Join([]string{
		"struct P { struct Q q; };",
		"struct Q { struct P p; };",
		"",
	}, "\n"))

	pkg := Package{Name: "cyc", Files: []string{header}}
	tu := buildUnit(t, pkg)

	files, err := TransformIncludes(tu, pkg, "upp")
	require.Error(t, err)
	assert.Nil(t, files, "a cycle must emit nothing")

	var cycErr *CircularDependencyError
	require.True(t, errors.As(err, &cycErr))
	assert.ElementsMatch(t, []string{"P", "Q"}, cycErr.Cycle)
}

func TestTransform_UnknownConvention(t *testing.T) {
	tu := &TranslationUnit{Symbols: NewSymbolTable(), FileASTs: map[string]*ASTDocument{}}
	_, err := TransformIncludes(tu, Package{Name: "x"}, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"nope"`)
	assert.Contains(t, err.Error(), "upp")
}

func TestTransform_RequiresResolvedUnit(t *testing.T) {
	tu := &TranslationUnit{FileASTs: map[string]*ASTDocument{}}
	_, err := TransformIncludes(tu, Package{Name: "x"}, "upp")
	require.Error(t, err)
}

func TestGuardMacro(t *testing.T) {
	assert.Equal(t, "DEMO_H", guardMacro("demo.h"))
	assert.Equal(t, "MY_PKG_H", guardMacro("my-pkg.h"))
}

func TestIncludeTarget(t *testing.T) {
	cases := []struct {
		line   string
		target string
		ok     bool
	}{
		{`#include "a.h"`, "a.h", true},
		{`  #include <stdio.h>`, "stdio.h", true},
		{`#include "sub/dir.h"`, "sub/dir.h", true},
		{`int x;`, "", false},
		{`#include`, "", false},
	}
	for _, c := range cases {
		target, ok := includeTarget(c.line)
		assert.Equal(t, c.ok, ok, c.line)
		assert.Equal(t, c.target, target, c.line)
	}
}

func TestTransform_WritesNothingToDisk(t *testing.T) {
	dir := t.TempDir()
	header := writeFile(t, dir, "shapes.h", "struct C { int x; };\n")
	source := writeFile(t, dir, "main.c", "#include \"shapes.h\"\nint main() { return 0; }\n")
	originalSource, err := os.ReadFile(source)
	require.NoError(t, err)

	pkg := Package{Name: "demo", Files: []string{header, source}}
	tu := buildUnit(t, pkg)

	_, err = TransformIncludes(tu, pkg, "upp")
	require.NoError(t, err)

	after, err := os.ReadFile(source)
	require.NoError(t, err)
	assert.Equal(t, originalSource, after)
	_, err = os.Stat(filepath.Join(dir, "demo.h"))
	assert.True(t, os.IsNotExist(err))
}
