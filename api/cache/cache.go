// Package cache stores fetched documents on disk for a limited time.
package cache

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultDir is the default cache directory
var DefaultDir string

func init() {
	cacheHome, err := os.UserCacheDir()
	if err != nil {
		DefaultDir = filepath.Join(os.TempDir(), "sitebot")
	} else {
		DefaultDir = filepath.Join(cacheHome, "sitebot")
	}
}

// Entry represents a cached item
type Entry[T any] struct {
	Value     T
	CreatedAt time.Time
}

// Cache keeps gob-encoded values under dir/namespace.
// A zero TTL disables the cache: every lookup calls the producer.
type Cache[T any] struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// New creates a cache rooted at dir/namespace. An empty dir means DefaultDir.
func New[T any](dir, namespace string, ttl time.Duration) *Cache[T] {
	if dir == "" {
		dir = DefaultDir
	}
	return &Cache[T]{
		dir: filepath.Join(dir, namespace),
		ttl: ttl,
		now: time.Now,
	}
}

// Enabled reports whether values are kept at all.
func (c *Cache[T]) Enabled() bool {
	return c != nil && c.ttl > 0
}

// normalizeKey converts a cache key into a filesystem-safe format
func normalizeKey(key string) string {
	normalized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '-' || r == '_' || r == '.' || r == '/' {
			return r
		}
		return '_'
	}, key)

	for strings.Contains(normalized, "..") {
		normalized = strings.ReplaceAll(normalized, "..", ".")
	}
	for strings.Contains(normalized, "//") {
		normalized = strings.ReplaceAll(normalized, "//", "/")
	}

	return strings.TrimPrefix(normalized, "/")
}

// GetOrSet returns the cached value for key, or calls fn and stores its result.
// A failed write still returns the produced value together with the error.
func (c *Cache[T]) GetOrSet(key string, fn func() (T, error), forceUpdate bool) (T, error) {
	if !c.Enabled() {
		return fn()
	}

	path := filepath.Join(c.dir, normalizeKey(key)+".gob")

	if !forceUpdate {
		if entry, err := c.loadEntry(path); err == nil {
			if c.now().Sub(entry.CreatedAt) < c.ttl {
				return entry.Value, nil
			}
		}
	}

	value, err := fn()
	if err != nil {
		var zero T
		return zero, err
	}

	entry := Entry[T]{
		Value:     value,
		CreatedAt: c.now(),
	}
	if err := c.saveEntry(path, entry); err != nil {
		return value, err
	}

	return value, nil
}

func (c *Cache[T]) loadEntry(path string) (*Entry[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entry Entry[T]
	if err := gob.NewDecoder(f).Decode(&entry); err != nil {
		return nil, err
	}

	return &entry, nil
}

func (c *Cache[T]) saveEntry(path string, entry Entry[T]) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return gob.NewEncoder(f).Encode(entry)
}

// Clear removes all cached entries of this namespace
func (c *Cache[T]) Clear() error {
	return os.RemoveAll(c.dir)
}
