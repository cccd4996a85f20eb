package cache

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/l3aro/casesmith/pkg/cfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func sampleCFGs() cfg.FileCFGs {
	return cfg.FileCFGs{
		"handler": {
			Nodes: []string{cfg.EntryLabel, cfg.ExitLabel, "NET:fetch(url)"},
			Edges: [][2]int{{0, 2}, {2, 1}},
		},
	}
}

func newCache(t *testing.T, size int) *ExtractionCache {
	t.Helper()
	c, err := New(Options{MaxSize: size})
	require.NoError(t, err)
	return c
}

func TestExtractionCache_Basic(t *testing.T) {
	c := newCache(t, 3)

	c.Put("src/a.ts", "h1", sampleCFGs())
	assert.Equal(t, 1, c.Len())

	got, ok := c.Get("src/a.ts", "h1")
	require.True(t, ok)
	assert.Equal(t, sampleCFGs(), got)
}

func TestExtractionCache_HashMismatchMisses(t *testing.T) {
	c := newCache(t, 3)
	c.Put("src/a.ts", "h1", sampleCFGs())

	_, ok := c.Get("src/a.ts", "h2")
	assert.False(t, ok)

	_, ok = c.Get("src/other.ts", "h1")
	assert.False(t, ok)
}

func TestExtractionCache_RulesVersionMismatchMisses(t *testing.T) {
	c := newCache(t, 3)
	c.entries.Add("src/a.ts", Entry{Path: "src/a.ts", Hash: "h1", RulesVersion: "rules-v0", CFGs: sampleCFGs()})

	_, ok := c.Get("src/a.ts", "h1")
	assert.False(t, ok)
}

func TestExtractionCache_LRU_Eviction(t *testing.T) {
	c := newCache(t, 2)

	c.Put("a.ts", "1", sampleCFGs())
	c.Put("b.ts", "2", sampleCFGs())
	// Touch a so b is least recently used.
	_, _ = c.Get("a.ts", "1")
	c.Put("c.ts", "3", sampleCFGs())

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("b.ts", "2")
	assert.False(t, ok, "b should have been evicted")
	_, ok = c.Get("a.ts", "1")
	assert.True(t, ok)
}

func TestExtractionCache_Stats(t *testing.T) {
	c := newCache(t, 4)
	c.Put("a.ts", "1", sampleCFGs())

	_, _ = c.Get("a.ts", "1")
	_, _ = c.Get("a.ts", "1")
	_, _ = c.Get("missing.ts", "1")

	s := c.Stats()
	assert.Equal(t, 1, s.Length)
	assert.Equal(t, int64(2), s.HitCount)
	assert.Equal(t, int64(1), s.MissCount)
	assert.InDelta(t, 2.0/3.0, c.HitRate(), 1e-9)
}

func TestExtractionCache_HitRateEmpty(t *testing.T) {
	c := newCache(t, 1)
	assert.Equal(t, 0.0, c.HitRate())
}

func TestExtractionCache_Prune(t *testing.T) {
	c := newCache(t, 4)
	c.Put("a.ts", "1", sampleCFGs())
	c.Put("b.ts", "2", sampleCFGs())

	removed := c.Prune(map[string]bool{"a.ts": true})
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())
}

func TestExtractionCache_SaveLoad(t *testing.T) {
	c := newCache(t, 4)
	c.Put("a.ts", "1", sampleCFGs())
	c.Put("b.ts", "2", sampleCFGs())

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))

	restored := newCache(t, 4)
	require.NoError(t, restored.Load(&buf))
	assert.Equal(t, 2, restored.Len())

	got, ok := restored.Get("b.ts", "2")
	require.True(t, ok)
	assert.Equal(t, sampleCFGs(), got)
}

func TestExtractionCache_LoadRejectsOtherVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, msgpack.NewEncoder(&buf).Encode(&cacheData{Version: formatVersion + 1}))

	err := newCache(t, 1).Load(&buf)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestExtractionCache_LoadGarbage(t *testing.T) {
	err := newCache(t, 1).Load(bytes.NewReader([]byte{0xc1}))
	assert.Error(t, err)
}

func TestPersistToFileAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)

	c := newCache(t, 4)
	c.Put("a.ts", "1", sampleCFGs())
	require.NoError(t, PersistToFile(c, path))

	restored := newCache(t, 4)
	require.NoError(t, LoadFromFile(restored, path))
	_, ok := restored.Get("a.ts", "1")
	assert.True(t, ok)
}

func TestLoadFromFile_Missing(t *testing.T) {
	c := newCache(t, 1)
	err := LoadFromFile(c, filepath.Join(t.TempDir(), "nope.msgpack"))
	assert.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestHashBytes(t *testing.T) {
	a := HashBytes([]byte("export function f() {}"))
	b := HashBytes([]byte("export function f() {}"))
	c := HashBytes([]byte("export function g() {}"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}
