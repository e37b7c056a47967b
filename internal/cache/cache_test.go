package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigest_Deterministic(t *testing.T) {
	a := Digest([]byte("content"), "fp")
	b := Digest([]byte("content"), "fp")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestDigest_SensitiveToContentAndFingerprint(t *testing.T) {
	base := Digest([]byte("content"), "fp")
	assert.NotEqual(t, base, Digest([]byte("content!"), "fp"))
	assert.NotEqual(t, base, Digest([]byte("content"), "fp2"))
}

func TestCache_PutGet(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	digest := Digest([]byte("x"), "")
	payload := []byte(`{"path":"a.c"}`)
	require.NoError(t, c.Put(digest, payload, Meta{Path: "a.c", Language: "c"}))

	got, ok, err := c.Get(digest)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, got)

	meta, ok := c.GetMeta(digest)
	require.True(t, ok)
	assert.Equal(t, "a.c", meta.Path)
	assert.Equal(t, "c", meta.Language)
	assert.False(t, meta.Compressed)
	assert.Equal(t, len(payload), meta.Size)
	assert.False(t, meta.CreatedAt.IsZero())
}

func TestCache_GzipEntriesGetGzExtension(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	digest := Digest([]byte("y"), "")
	gzipped := append([]byte{0x1f, 0x8b}, []byte("rest of stream")...)
	require.NoError(t, c.Put(digest, gzipped, Meta{Path: "b.c"}))

	_, err = os.Stat(filepath.Join(dir, "ast", digest+".json.gz"))
	require.NoError(t, err)

	got, ok, err := c.Get(digest)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, gzipped, got)

	meta, ok := c.GetMeta(digest)
	require.True(t, ok)
	assert.True(t, meta.Compressed)
}

func TestCache_MissIsClean(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	_, ok, err := c.Get("deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok = c.GetMeta("deadbeef")
	assert.False(t, ok)
}

func TestCache_DeleteRootIsSafe(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	digest := Digest([]byte("z"), "")
	require.NoError(t, c.Put(digest, []byte("{}"), Meta{}))
	require.NoError(t, os.RemoveAll(dir))

	// Reopening recreates the directories; the entry is simply gone.
	c, err = New(dir)
	require.NoError(t, err)
	_, ok, err := c.Get(digest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasher_ChangeDetection(t *testing.T) {
	h, err := NewHasher(t.TempDir())
	require.NoError(t, err)

	d1 := Digest([]byte("v1"), "")
	d2 := Digest([]byte("v2"), "")

	assert.True(t, h.HasChanged("a.c", d1), "unknown file counts as changed")
	require.NoError(t, h.Update("a.c", d1))
	assert.False(t, h.HasChanged("a.c", d1))
	assert.True(t, h.HasChanged("a.c", d2))
}

func TestHasher_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	h, err := NewHasher(dir)
	require.NoError(t, err)

	d := Digest([]byte("v1"), "")
	require.NoError(t, h.Update("a.c", d))

	h2, err := NewHasher(dir)
	require.NoError(t, err)
	assert.False(t, h2.HasChanged("a.c", d))
}

func TestHasher_Forget(t *testing.T) {
	h, err := NewHasher(t.TempDir())
	require.NoError(t, err)

	d := Digest([]byte("v1"), "")
	require.NoError(t, h.Update("a.c", d))
	require.NoError(t, h.Forget("a.c"))
	assert.True(t, h.HasChanged("a.c", d))

	// Forgetting an unknown path is a no-op.
	require.NoError(t, h.Forget("missing.c"))
}

func TestHasher_MangledStoreStartsFresh(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file_hashes.json"), []byte("{{{"), 0o644))

	h, err := NewHasher(dir)
	require.NoError(t, err)
	assert.True(t, h.HasChanged("a.c", "anything"))
}
