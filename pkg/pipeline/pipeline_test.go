package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/casesmith/internal/log"
	"github.com/l3aro/casesmith/internal/scanner"
	"github.com/l3aro/casesmith/pkg/cache"
	"github.com/l3aro/casesmith/pkg/extractor"
	"github.com/l3aro/casesmith/pkg/flow"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
}

func testOptions() Options {
	return Options{
		Workers: 2,
		Scanner: scanner.DefaultOptions(),
		Logger:  log.Nop(),
	}
}

func TestRunDir(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/users.ts":   "export function getUser(id) { return db.query(id); }",
		"src/view.tsx":   "export function View() { return <div/>; }",
		"src/empty.ts":   "const x = 1;",
		"node_modules/x": "ignored",
	})

	res, err := RunDir(context.Background(), root, testOptions())
	require.NoError(t, err)

	assert.Len(t, res.Files, 3)
	assert.Len(t, res.Scanned, 3)
	assert.Empty(t, res.Failed)
	assert.Equal(t, 2, res.Functions())

	users := res.Files[filepath.Join(root, "src", "users.ts")]
	require.Contains(t, users, "getUser")
	assert.Contains(t, users["getUser"].Nodes, "DB: db.query(id)")

	empty := res.Files[filepath.Join(root, "src", "empty.ts")]
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestRunDir_SameHandlerInTwoFiles(t *testing.T) {
	root := t.TempDir()
	src := "export function handler() { return process.env.SECRET; }"
	writeFiles(t, root, map[string]string{
		"a/handler.ts": src,
		"b/handler.ts": src,
	})

	res, err := RunDir(context.Background(), root, testOptions())
	require.NoError(t, err)
	require.Len(t, res.Files, 2)

	for _, file := range []string{"a", "b"} {
		g, ok := res.Files[filepath.Join(root, file, "handler.ts")]["handler"]
		require.True(t, ok, file)
		assert.True(t, slices.ContainsFunc(g.Nodes, func(label string) bool {
			return strings.HasPrefix(label, "SECRET:")
		}), "%s: %v", file, g.Nodes)
	}

	report := flow.ToSecurityFlow(res.Files)
	assert.Equal(t, 2, report.Index.Functions)
	assert.Positive(t, report.Index.PIIEdges)
}

func TestRunDir_BadRoot(t *testing.T) {
	_, err := RunDir(context.Background(), filepath.Join(t.TempDir(), "missing"), testOptions())
	assert.Error(t, err)
}

func TestRun_Empty(t *testing.T) {
	res, err := Run(context.Background(), nil, testOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Files)
	assert.Equal(t, 0, res.Functions())
}

func TestRun_UnreadableFileIsSkipped(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"ok.ts": "function ok() {}"})

	files := []scanner.FileInfo{
		{Path: "gone.ts", FullPath: filepath.Join(root, "gone.ts")},
		{Path: "ok.ts", FullPath: filepath.Join(root, "ok.ts")},
	}
	res, err := Run(context.Background(), files, testOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"gone.ts"}, res.Failed)
	require.Len(t, res.Files, 1)
	assert.Contains(t, res.Files[filepath.Join(root, "ok.ts")], "ok")
}

func TestRun_WorkerPanicIsSkipped(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"boom.bad": "function boom() {}",
		"ok.ts":    "function ok() {}",
	})

	reg := extractor.NewLanguageRegistry()
	reg.RegisterLanguage("bad", []string{".bad"}, func() *sitter.Language { panic("boom") })
	opts := testOptions()
	opts.Extractor = extractor.New(reg)

	files := []scanner.FileInfo{
		{Path: "boom.bad", FullPath: filepath.Join(root, "boom.bad")},
		{Path: "ok.ts", FullPath: filepath.Join(root, "ok.ts")},
	}
	res, err := Run(context.Background(), files, opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"boom.bad"}, res.Failed)
	assert.Equal(t, []string{"boom.bad", "ok.ts"}, res.Scanned)
	require.Len(t, res.Files, 1)
	assert.Contains(t, res.Files[filepath.Join(root, "ok.ts")], "ok")
}

func TestRun_UnsupportedLanguage(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"main.py": "def main(): pass"})

	files := []scanner.FileInfo{{Path: "main.py", FullPath: filepath.Join(root, "main.py")}}
	_, err := Run(context.Background(), files, testOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, extractor.ErrUnsupported)
}

func TestRun_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.ts": "function a() {}"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	files := []scanner.FileInfo{{Path: "a.ts", FullPath: filepath.Join(root, "a.ts")}}
	_, err := Run(ctx, files, testOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_CacheHits(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.ts": "function a() { fetch(u); }",
		"b.ts": "function b() {}",
	})

	c, err := cache.New(cache.Options{MaxSize: 16})
	require.NoError(t, err)
	opts := testOptions()
	opts.Cache = c

	first, err := RunDir(context.Background(), root, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, first.CacheHits)
	assert.Equal(t, 2, c.Len())

	second, err := RunDir(context.Background(), root, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, second.CacheHits)
	assert.Equal(t, first.Files, second.Files)

	// A changed file misses again.
	writeFiles(t, root, map[string]string{"b.ts": "function b() { console.log(1); }"})
	third, err := RunDir(context.Background(), root, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, third.CacheHits)
	assert.Contains(t, third.Files[filepath.Join(root, "b.ts")]["b"].Nodes, "LOG: console.log(1)")
}

func TestRun_WorkersDefault(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.ts": "function a() {}",
		"b.ts": "function b() {}",
		"c.ts": "function c() {}",
	})
	opts := testOptions()
	opts.Workers = 0

	res, err := RunDir(context.Background(), root, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Functions())
}
