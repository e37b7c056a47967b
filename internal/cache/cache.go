package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Meta describes one cache entry. Stored beside the payload so entries are
// self-describing: a cache directory can be inspected, pruned, or deleted
// wholesale without consulting any other state.
type Meta struct {
	Path        string    `json:"path"`
	Language    string    `json:"language"`
	Fingerprint string    `json:"fingerprint"`
	Compressed  bool      `json:"compressed"`
	Size        int       `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// Cache is a content-addressed store of serialized AST documents under
// <root>/ast/<digest>.json[.gz] with metadata at <root>/meta/<digest>.json.
//
// Entries are write-once and never mutated: identical content always yields
// identical output, so concurrent writers racing on the same digest are
// harmless. No eviction is needed; deleting the root directory is always
// safe.
type Cache struct {
	root string
}

// New creates the cache directories under root.
func New(root string) (*Cache, error) {
	for _, dir := range []string{filepath.Join(root, "ast"), filepath.Join(root, "meta")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	return &Cache{root: root}, nil
}

// Root returns the cache root directory.
func (c *Cache) Root() string { return c.root }

// Get returns the serialized document for digest, or ok=false on a miss.
// Read errors other than absence are returned so callers can distinguish an
// unreadable entry (treated upstream as corruption, hence a miss) from a
// clean miss.
func (c *Cache) Get(digest string) (data []byte, ok bool, err error) {
	for _, name := range []string{digest + ".json", digest + ".json.gz"} {
		data, err := os.ReadFile(filepath.Join(c.root, "ast", name))
		if err == nil {
			return data, true, nil
		}
		if !os.IsNotExist(err) {
			return nil, false, fmt.Errorf("read cache entry %s: %w", digest, err)
		}
	}
	return nil, false, nil
}

// Put stores a serialized document under its digest, then writes the
// metadata record. The payload lands via write-temp-then-rename so a reader
// never sees a torn entry.
func (c *Cache) Put(digest string, data []byte, meta Meta) error {
	name := digest + ".json"
	if bytes.HasPrefix(data, []byte{0x1f, 0x8b}) {
		name = digest + ".json.gz"
		meta.Compressed = true
	}
	meta.Size = len(data)
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	dst := filepath.Join(c.root, "ast", name)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("commit cache entry: %w", err)
	}

	mdata, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(c.root, "meta", digest+".json"), mdata, 0o644); err != nil {
		return fmt.Errorf("write cache meta: %w", err)
	}
	return nil
}

// GetMeta returns the metadata for digest, or ok=false when absent or
// unreadable.
func (c *Cache) GetMeta(digest string) (Meta, bool) {
	data, err := os.ReadFile(filepath.Join(c.root, "meta", digest+".json"))
	if err != nil {
		return Meta{}, false
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, false
	}
	return m, true
}
