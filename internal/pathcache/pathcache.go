// Package pathcache maintains the persistent path-to-digest map that
// drives the decision between storing a file fresh and delta-compressing
// it against its previous version.
package pathcache

import (
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Cache maps a POSIX-normalized relative file path to the digest it had
// at the previous snapshot. Losing this file only disables delta
// compression for the next snapshot; it never affects correctness.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]string)}
}

// Load reads a cache previously written by Save. A missing file is not
// an error: it returns a fresh, empty cache.
func Load(path string) (*Cache, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, err
	}
	entries := make(map[string]string)
	if err := msgpack.Unmarshal(raw, &entries); err != nil {
		// A corrupt cache is treated the same as a missing one: it only
		// costs delta compression opportunities for this snapshot.
		return New(), nil
	}
	return &Cache{entries: entries}, nil
}

// Save persists the cache to path, creating parent directories as
// needed.
func (c *Cache) Save(p string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	encoded, err := msgpack.Marshal(c.entries)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, encoded, 0o644)
}

// Get returns the digest previously recorded for key, and whether an
// entry existed.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.entries[normalize(key)]
	return d, ok
}

// Set records the digest key currently maps to.
func (c *Cache) Set(key, digest string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[normalize(key)] = digest
}

// Delete removes any entry for key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, normalize(key))
}

// Keys returns a snapshot of every path currently tracked.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

func normalize(key string) string {
	return path.Clean(filepath.ToSlash(key))
}
