// Package cache keeps per-file extraction results between runs. Entries are
// keyed by relative path and are only reused when both the content hash and
// the classification rules version still match.
package cache

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/l3aro/casesmith/pkg/cfg"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/xxh3"
)

// FileName is the cache file written inside the results directory.
const FileName = "cfg-cache.msgpack"

// formatVersion changes whenever Entry's encoding changes.
const formatVersion = 1

// ErrVersionMismatch is returned by Load when the file was written by an
// incompatible build; callers start from an empty cache.
var ErrVersionMismatch = errors.New("cache format version mismatch")

// Entry is one cached extraction result.
type Entry struct {
	Path         string       `msgpack:"path"`
	Hash         string       `msgpack:"hash"`
	RulesVersion string       `msgpack:"rules_version"`
	CFGs         cfg.FileCFGs `msgpack:"cfgs"`
	CreatedAt    time.Time    `msgpack:"created_at"`
}

// Options configures the cache.
type Options struct {
	// MaxSize is the maximum number of files kept in memory.
	MaxSize int
}

// Stats returns cache statistics.
type Stats struct {
	Length    int   `json:"length"`
	HitCount  int64 `json:"hit_count"`
	MissCount int64 `json:"miss_count"`
}

// ExtractionCache is an LRU of extraction results safe for concurrent use.
type ExtractionCache struct {
	entries *lru.Cache[string, Entry]

	mu        sync.Mutex
	hitCount  int64
	missCount int64
}

// New creates an empty cache holding at most opts.MaxSize files.
func New(opts Options) (*ExtractionCache, error) {
	entries, err := lru.New[string, Entry](opts.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("creating lru: %w", err)
	}
	return &ExtractionCache{entries: entries}, nil
}

// Get returns the cached graphs for path when hash and the current rules
// version both match.
func (c *ExtractionCache) Get(path, hash string) (cfg.FileCFGs, bool) {
	e, ok := c.entries.Get(path)
	hit := ok && e.Hash == hash && e.RulesVersion == cfg.RulesVersion

	c.mu.Lock()
	if hit {
		c.hitCount++
	} else {
		c.missCount++
	}
	c.mu.Unlock()

	if !hit {
		return nil, false
	}
	return e.CFGs, true
}

// Put stores graphs for path under the current rules version.
func (c *ExtractionCache) Put(path, hash string, cfgs cfg.FileCFGs) {
	c.entries.Add(path, Entry{
		Path:         path,
		Hash:         hash,
		RulesVersion: cfg.RulesVersion,
		CFGs:         cfgs,
		CreatedAt:    time.Now(),
	})
}

// Len returns the number of cached files.
func (c *ExtractionCache) Len() int {
	return c.entries.Len()
}

// Stats returns the current cache statistics.
func (c *ExtractionCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Length:    c.entries.Len(),
		HitCount:  c.hitCount,
		MissCount: c.missCount,
	}
}

// HitRate returns the cache hit rate.
func (c *ExtractionCache) HitRate() float64 {
	s := c.Stats()
	total := s.HitCount + s.MissCount
	if total == 0 {
		return 0
	}
	return float64(s.HitCount) / float64(total)
}

// Prune drops every entry whose path is not in keep.
func (c *ExtractionCache) Prune(keep map[string]bool) int {
	removed := 0
	for _, k := range c.entries.Keys() {
		if !keep[k] {
			c.entries.Remove(k)
			removed++
		}
	}
	return removed
}

type cacheData struct {
	Version int     `msgpack:"version"`
	Entries []Entry `msgpack:"entries"`
}

// Save persists the cache to a writer using msgpack, oldest entry first.
func (c *ExtractionCache) Save(w io.Writer) error {
	data := cacheData{Version: formatVersion}
	for _, k := range c.entries.Keys() {
		if e, ok := c.entries.Peek(k); ok {
			data.Entries = append(data.Entries, e)
		}
	}
	return msgpack.NewEncoder(w).Encode(&data)
}

// Load replaces the cache contents with entries read from r.
func (c *ExtractionCache) Load(r io.Reader) error {
	var data cacheData
	if err := msgpack.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode cache: %w", err)
	}
	if data.Version != formatVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, data.Version, formatVersion)
	}

	c.entries.Purge()
	for _, e := range data.Entries {
		c.entries.Add(e.Path, e)
	}
	return nil
}

// PersistToFile saves the cache to a file, creating parent directories.
func PersistToFile(c *ExtractionCache, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer f.Close()

	return c.Save(f)
}

// LoadFromFile loads the cache from a file.
func LoadFromFile(c *ExtractionCache, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No cache file is not an error
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	return c.Load(f)
}

// HashBytes returns the hex xxh3 digest of content.
func HashBytes(content []byte) string {
	h := xxh3.New()
	_, _ = h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
