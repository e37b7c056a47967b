package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/arbor"
)

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.Error(t, validateFormat("yaml"))
	assert.Error(t, validateFormat(""))
}

func TestResolveTargetDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got, err := resolveTargetDir([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	got, err = resolveTargetDir(nil)
	require.NoError(t, err)
	assert.Equal(t, ".", got)

	_, err = resolveTargetDir([]string{filepath.Join(dir, "missing")})
	require.Error(t, err)

	file := filepath.Join(dir, "f.c")
	require.NoError(t, os.WriteFile(file, []byte("int x;\n"), 0o644))
	_, err = resolveTargetDir([]string{file})
	require.Error(t, err, "a plain file is not a target directory")
}

func TestCollectPackage(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "a.c")
	require.NoError(t, os.WriteFile(src, []byte("int x;\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hi\n"), 0o644))

	pkg, err := collectPackage(dir, defaultConfig())
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), pkg.Name)
	assert.Equal(t, []string{src}, pkg.Files)
}

// captureStdout redirects os.Stdout around fn and returns what it wrote.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	require.NoError(t, w.Close())
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func TestBuildCommand_JSONReport(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.c")
	require.NoError(t, os.WriteFile(src, []byte("int x;\n"), 0o644))

	out := captureStdout(t, func() {
		rootCmd.SetArgs([]string{"build", dir})
		require.NoError(t, rootCmd.Execute())
	})

	var results []arbor.FileResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, src, results[0].Path)
	assert.Equal(t, arbor.StatusParsed, results[0].Status)
	assert.Empty(t, results[0].Err)
}
