package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/casesmith/internal/log"
	"github.com/l3aro/casesmith/pkg/cfg"
	"github.com/l3aro/casesmith/pkg/flow"
	"github.com/l3aro/casesmith/pkg/store"
)

func TestCFGPath(t *testing.T) {
	w := NewWriter(Options{Root: "/repo", ResultsDir: "/repo/.casesmithresults"})

	tests := []struct {
		file string
		want string
	}{
		{"/repo/a.ts", "/repo/.casesmithresults/a.cfg.json"},
		{"/repo/src/users/users.controller.ts", "/repo/.casesmithresults/src/users/users.controller.cfg.json"},
		{"/repo/view.tsx", "/repo/.casesmithresults/view.cfg.json"},
		{"/elsewhere/b.ts", "/repo/.casesmithresults/b.cfg.json"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.want), w.CFGPath(filepath.FromSlash(tt.file)))
		})
	}
}

func TestIndexText(t *testing.T) {
	got := IndexText(flow.SecIndex{Functions: 3, Edges: 7, BoundaryCrossings: 2, PIIEdges: 1})
	assert.Equal(t, "functions: 3\nedges: 7\nboundary_crossings: 2\npii_edges: 1\n", got)
}

func sampleFiles(root string) map[string]cfg.FileCFGs {
	return map[string]cfg.FileCFGs{
		filepath.Join(root, "src", "api.ts"): {
			"handler": {
				Nodes: []string{cfg.EntryLabel, cfg.ExitLabel, "NET: fetch(token)"},
				Edges: [][2]int{{0, 2}, {2, 1}},
			},
		},
		filepath.Join(root, "empty.ts"): {},
	}
}

func TestWrite(t *testing.T) {
	root := t.TempDir()
	resultsDir := filepath.Join(root, ".casesmithresults")
	dbPath := filepath.Join(root, "db", "flow.db")
	files := sampleFiles(root)
	report := flow.ToSecurityFlow(files)

	w := NewWriter(Options{
		Root:       root,
		ResultsDir: resultsDir,
		SARIF:      true,
		SQLitePath: dbPath,
		RunID:      "run-1",
		Logger:     log.Nop(),
	})
	summary, err := w.Write(files, report)
	require.NoError(t, err)
	assert.Empty(t, summary.Failed)
	assert.Len(t, summary.Written, 6)

	var perFile cfg.FileCFGs
	data, err := os.ReadFile(filepath.Join(resultsDir, "src", "api.cfg.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &perFile))
	assert.Equal(t, files[filepath.Join(root, "src", "api.ts")], perFile)

	data, err = os.ReadFile(filepath.Join(resultsDir, "empty.cfg.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	data, err = os.ReadFile(filepath.Join(resultsDir, FlowFileName))
	require.NoError(t, err)
	var back flow.SecurityFlow
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, report.Index, back.Index)
	assert.Len(t, back.Edges, 2)

	data, err = os.ReadFile(filepath.Join(resultsDir, IndexFileName))
	require.NoError(t, err)
	assert.Equal(t, "functions: 1\nedges: 2\nboundary_crossings: 2\npii_edges: 2\n", string(data))

	assert.FileExists(t, filepath.Join(resultsDir, SARIFFileName))

	db, err := store.OpenPath(dbPath)
	require.NoError(t, err)
	defer db.Close()
	run, err := db.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, report.Index, run.Index)
}

func TestWriteEmptyRun(t *testing.T) {
	root := t.TempDir()
	resultsDir := filepath.Join(root, "out")

	w := NewWriter(Options{Root: root, ResultsDir: resultsDir, Logger: log.Nop()})
	summary, err := w.Write(nil, flow.ToSecurityFlow(nil))
	require.NoError(t, err)
	assert.Len(t, summary.Written, 2)

	data, err := os.ReadFile(filepath.Join(resultsDir, FlowFileName))
	require.NoError(t, err)
	assert.JSONEq(t, `{"index":{"functions":0,"edges":0,"boundary_crossings":0,"pii_edges":0},"edges":[]}`, string(data))
	assert.NoFileExists(t, filepath.Join(resultsDir, SARIFFileName))
}

func TestWriteArtifactFailureContinues(t *testing.T) {
	root := t.TempDir()
	resultsDir := filepath.Join(root, "out")
	require.NoError(t, os.MkdirAll(resultsDir, 0755))
	// A directory where the flow file should go makes that one write fail.
	require.NoError(t, os.MkdirAll(filepath.Join(resultsDir, FlowFileName), 0755))

	w := NewWriter(Options{Root: root, ResultsDir: resultsDir, Logger: log.Nop()})
	summary, err := w.Write(nil, flow.ToSecurityFlow(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(resultsDir, FlowFileName)}, summary.Failed)
	assert.FileExists(t, filepath.Join(resultsDir, IndexFileName))
}

func TestWriteSameStemKeepsFirstFile(t *testing.T) {
	root := t.TempDir()
	resultsDir := filepath.Join(root, "out")
	files := map[string]cfg.FileCFGs{
		filepath.Join(root, "a.ts"):  {"fromTS": *cfg.NewSimpleCFG()},
		filepath.Join(root, "a.tsx"): {"fromTSX": *cfg.NewSimpleCFG()},
	}

	w := NewWriter(Options{Root: root, ResultsDir: resultsDir, Logger: log.Nop()})
	summary, err := w.Write(files, flow.ToSecurityFlow(files))
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(root, "a.tsx")}, summary.Skipped)
	assert.Empty(t, summary.Failed)

	data, err := os.ReadFile(filepath.Join(resultsDir, "a.cfg.json"))
	require.NoError(t, err)
	var got cfg.FileCFGs
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Contains(t, got, "fromTS")
	assert.NotContains(t, got, "fromTSX")
}

func TestWriteResultsDirUnavailable(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	w := NewWriter(Options{Root: root, ResultsDir: filepath.Join(blocker, "out"), Logger: log.Nop()})
	_, err := w.Write(nil, flow.ToSecurityFlow(nil))
	assert.Error(t, err)
}
