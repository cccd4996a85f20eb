// Package report writes the analysis artifacts into the results directory.
// Each artifact is written independently; a failure is logged and recorded
// and the remaining artifacts are still produced.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/l3aro/casesmith/internal/log"
	"github.com/l3aro/casesmith/pkg/cfg"
	"github.com/l3aro/casesmith/pkg/flow"
	"github.com/l3aro/casesmith/pkg/store"
)

// Artifact file names inside the results directory.
const (
	FlowFileName  = "security-flow.json"
	IndexFileName = "security-flow.index.txt"
	SARIFFileName = "security-flow.sarif"
	CFGSuffix     = ".cfg.json"
)

// Options configures a Writer.
type Options struct {
	// Root is the scanned directory; per-file outputs mirror paths under it.
	Root string

	// ResultsDir is the absolute or root-joined results folder.
	ResultsDir string

	// SARIF enables security-flow.sarif.
	SARIF bool

	// SQLitePath, when set, receives the flow under RunID.
	SQLitePath string
	RunID      string

	Logger log.Logger
}

// Summary lists what a Write call produced.
type Summary struct {
	Written []string
	Failed  []string

	// Skipped lists source files whose graphs were not written because an
	// earlier file in sorted order maps to the same output path.
	Skipped []string
}

// Writer writes artifacts for one run.
type Writer struct {
	opts   Options
	logger log.Logger
}

// NewWriter creates a Writer.
func NewWriter(opts Options) *Writer {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Writer{opts: opts, logger: logger}
}

// CFGPath returns the per-file output path for a source file: the path
// relative to Root, placed under ResultsDir, with its extension replaced.
func (w *Writer) CFGPath(file string) string {
	rel, err := filepath.Rel(w.opts.Root, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(file)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + CFGSuffix
	return filepath.Join(w.opts.ResultsDir, rel)
}

// Write writes every artifact. It only returns an error when the results
// directory itself cannot be created.
func (w *Writer) Write(files map[string]cfg.FileCFGs, report flow.SecurityFlow) (*Summary, error) {
	if err := os.MkdirAll(w.opts.ResultsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating results dir %s: %w", w.opts.ResultsDir, err)
	}

	s := &Summary{}
	record := func(path string, err error) {
		if err != nil {
			w.logger.Error("failed to write artifact", "path", path, "error", err)
			s.Failed = append(s.Failed, path)
			return
		}
		w.logger.Debug("wrote artifact", "path", path)
		s.Written = append(s.Written, path)
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	owners := make(map[string]string, len(paths))
	for _, p := range paths {
		out := w.CFGPath(p)
		if first, taken := owners[out]; taken {
			w.logger.Warn("output path already used by another file; skipping",
				"path", p, "output", out, "written_from", first)
			s.Skipped = append(s.Skipped, p)
			continue
		}
		owners[out] = p
		record(out, writeJSON(out, files[p]))
	}

	flowPath := filepath.Join(w.opts.ResultsDir, FlowFileName)
	record(flowPath, writeJSON(flowPath, report))

	indexPath := filepath.Join(w.opts.ResultsDir, IndexFileName)
	record(indexPath, os.WriteFile(indexPath, []byte(IndexText(report.Index)), 0644))

	if w.opts.SARIF {
		sarifPath := filepath.Join(w.opts.ResultsDir, SARIFFileName)
		record(sarifPath, w.writeSARIF(sarifPath, report))
	}

	if w.opts.SQLitePath != "" {
		record(w.opts.SQLitePath, w.writeSQLite(report))
	}

	return s, nil
}

// IndexText renders the quick-glance index file.
func IndexText(idx flow.SecIndex) string {
	return fmt.Sprintf("functions: %d\nedges: %d\nboundary_crossings: %d\npii_edges: %d\n",
		idx.Functions, idx.Edges, idx.BoundaryCrossings, idx.PIIEdges)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0644)
}

func (w *Writer) writeSARIF(path string, report flow.SecurityFlow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return flow.WriteSARIF(f, report, w.opts.Root)
}

func (w *Writer) writeSQLite(report flow.SecurityFlow) error {
	db, err := store.OpenPath(w.opts.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.SaveFlow(w.opts.RunID, w.opts.Root, report)
}
