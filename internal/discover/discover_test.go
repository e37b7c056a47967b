package discover

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFiles_FiltersByExtension(t *testing.T) {
	root := t.TempDir()
	a := write(t, root, "a.c", "")
	h := write(t, root, "inc/a.h", "")
	write(t, root, "README.md", "")

	files, err := Files(root, []string{".c", ".h"})
	require.NoError(t, err)
	assert.Equal(t, []string{a, h}, files)
}

func TestFiles_SkipsHiddenAndDetritusDirs(t *testing.T) {
	root := t.TempDir()
	keep := write(t, root, "src/main.go", "")
	write(t, root, ".git/objects/x.go", "")
	write(t, root, "node_modules/pkg/index.go", "")
	write(t, root, "vendor/dep/dep.go", "")
	write(t, root, "__pycache__/m.py", "")
	write(t, root, ".hidden.go", "")

	files, err := Files(root, []string{".go", ".py"})
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, files)
}

func TestFiles_HonorsGitignore(t *testing.T) {
	root := t.TempDir()
	write(t, root, ".gitignore", "build/\n*.gen.c\n")
	keep := write(t, root, "main.c", "")
	write(t, root, "build/out.c", "")
	write(t, root, "proto.gen.c", "")

	files, err := Files(root, []string{".c"})
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, files)
}

func TestFiles_SortedOutput(t *testing.T) {
	root := t.TempDir()
	write(t, root, "z.c", "")
	write(t, root, "a.c", "")
	write(t, root, "m/b.c", "")

	files, err := Files(root, []string{".c"})
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.True(t, files[0] < files[1] && files[1] < files[2])
}
