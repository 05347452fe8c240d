// Package cache stores transform results keyed by a hash of the input, so
// unchanged modules are not parsed again. The file is msgpack encoded.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	version "github.com/hashicorp/go-version"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/phobologic/gqldesc/internal/rewrite"
)

// FormatVersion is written into every cache file.
const FormatVersion = "2.0.0"

// compatible lists the file versions this build can read.
const compatible = ">= 2.0, < 3.0"

// Entry is the cached result for one input, records included so a hit can
// stand in for a full transform.
type Entry struct {
	Output  []byte           `msgpack:"output"`
	Changes []rewrite.Change `msgpack:"changes"`
	Skipped []rewrite.Skip   `msgpack:"skipped"`
}

type fileFormat struct {
	Version string           `msgpack:"version"`
	Entries map[string]Entry `msgpack:"entries"`
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
	used    map[string]bool
	dirty   bool
}

// Key derives the cache key for source rewritten under the given
// configuration fingerprint.
func Key(config string, source []byte) string {
	h := sha256.New()
	h.Write([]byte(config))
	h.Write([]byte{0})
	h.Write(source)
	return hex.EncodeToString(h.Sum(nil))
}

// Load reads the cache at path. A missing, unreadable or incompatible file
// yields an empty cache; only unexpected I/O errors are returned.
func Load(path string) (*Cache, error) {
	c := &Cache{
		path:    path,
		entries: make(map[string]Entry),
		used:    make(map[string]bool),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}

	var f fileFormat
	if err := msgpack.Unmarshal(data, &f); err != nil {
		c.dirty = true
		return c, nil
	}
	if !isCompatible(f.Version) {
		c.dirty = true
		return c, nil
	}
	if f.Entries != nil {
		c.entries = f.Entries
	}
	return c, nil
}

func isCompatible(v string) bool {
	fileVersion, err := version.NewVersion(v)
	if err != nil {
		return false
	}
	constraint, err := version.NewConstraint(compatible)
	if err != nil {
		return false
	}
	return constraint.Check(fileVersion)
}

// Get returns the entry for key.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if ok {
		c.used[key] = true
	}
	return e, ok
}

// Put records the entry for key.
func (c *Cache) Put(key string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e
	c.used[key] = true
	c.dirty = true
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Save writes the entries used since Load back to disk, dropping the rest.
// Nothing is written when the cache is unchanged.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty && len(c.used) == len(c.entries) {
		return nil
	}

	kept := make(map[string]Entry, len(c.used))
	for k := range c.used {
		kept[k] = c.entries[k]
	}
	data, err := msgpack.Marshal(&fileFormat{Version: FormatVersion, Entries: kept})
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache: %w", err)
	}

	c.entries = kept
	c.dirty = false
	return nil
}
