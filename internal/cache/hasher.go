// Package cache implements the content-addressed AST cache and the
// persistent file-hash store used for change detection.
package cache

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Digest returns the cache key for one parse input: the file's exact bytes
// mixed with the compile-context fingerprint. Identical input always yields
// the identical key.
func Digest(content []byte, fingerprint string) string {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write(content)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Hasher persists the path -> digest map backing HasChanged. The map is
// loaded once at construction and rewritten whole via write-temp-then-rename,
// so readers never observe a partially written file.
//
// Update must only be called after the dependent cache write has succeeded:
// that ordering guarantees the hash store and the cache can never diverge
// into a stale-cache-read state. A crash between the two leaves at worst one
// extra reparse.
type Hasher struct {
	path string

	mu      sync.Mutex
	digests map[string]string
}

// NewHasher loads (or initializes) the digest map persisted at
// <root>/file_hashes.json.
func NewHasher(root string) (*Hasher, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	h := &Hasher{
		path:    filepath.Join(root, "file_hashes.json"),
		digests: make(map[string]string),
	}
	data, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		return h, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read hash store: %w", err)
	}
	if err := json.Unmarshal(data, &h.digests); err != nil {
		// A mangled hash store only costs reparses; start fresh.
		h.digests = make(map[string]string)
	}
	return h, nil
}

// HasChanged reports whether the digest for path differs from the last
// persisted one. Absent entries count as changed.
func (h *Hasher) HasChanged(path, digest string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev, ok := h.digests[path]
	return !ok || prev != digest
}

// Update records the new digest for path and persists the whole map.
func (h *Hasher) Update(path, digest string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.digests[path] = digest
	return h.flushLocked()
}

// Forget drops the persisted digest for path, forcing the next build to
// treat it as changed.
func (h *Hasher) Forget(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.digests[path]; !ok {
		return nil
	}
	delete(h.digests, path)
	return h.flushLocked()
}

func (h *Hasher) flushLocked() error {
	data, err := json.MarshalIndent(h.digests, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal hash store: %w", err)
	}
	tmp := h.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write hash store: %w", err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return fmt.Errorf("replace hash store: %w", err)
	}
	return nil
}
