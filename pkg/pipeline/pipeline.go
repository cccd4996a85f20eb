// Package pipeline runs entity extraction over many files on a bounded
// worker pool and joins the per-file results.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/casesmith/internal/log"
	"github.com/l3aro/casesmith/internal/scanner"
	"github.com/l3aro/casesmith/pkg/cache"
	"github.com/l3aro/casesmith/pkg/cfg"
	"github.com/l3aro/casesmith/pkg/extractor"
)

// Options configures a run.
type Options struct {
	// Workers bounds concurrent extractions. Zero means runtime.NumCPU().
	Workers int

	// Scanner controls file discovery in RunDir.
	Scanner scanner.Options

	// Extractor parses and extracts; nil uses a default extractor.
	Extractor *extractor.Extractor

	// Cache, when set, lets unchanged files skip parsing.
	Cache *cache.ExtractionCache

	Logger log.Logger
}

// Result is the joined output of a run.
type Result struct {
	// Files maps each extracted file's root-joined path to its graphs.
	Files map[string]cfg.FileCFGs

	// Scanned lists the relative path of every input file, in input order.
	Scanned []string

	// Failed lists relative paths that were read or extracted unsuccessfully.
	Failed []string

	// CacheHits counts files served from the cache.
	CacheHits int

	Elapsed time.Duration
}

// Functions returns the total number of extracted entities.
func (r *Result) Functions() int {
	n := 0
	for _, m := range r.Files {
		n += len(m)
	}
	return n
}

type taskResult struct {
	cfgs   cfg.FileCFGs
	cached bool
	failed bool
}

// RunDir discovers files under root and runs extraction over them.
func RunDir(ctx context.Context, root string, opts Options) (*Result, error) {
	files, err := scanner.New(opts.Scanner).Scan(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return Run(ctx, files, opts)
}

// Run extracts every file on a pool of at most opts.Workers goroutines.
// Read failures and worker panics are logged and the file is left out.
// Unsupported languages and cancellation end the run with an error.
func Run(ctx context.Context, files []scanner.FileInfo, opts Options) (*Result, error) {
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	ext := opts.Extractor
	if ext == nil {
		ext = extractor.New(nil)
	}
	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	res := &Result{
		Files:   make(map[string]cfg.FileCFGs, len(files)),
		Scanned: make([]string, 0, len(files)),
	}
	for _, f := range files {
		res.Scanned = append(res.Scanned, f.Path)
	}
	if len(files) == 0 {
		res.Elapsed = time.Since(start)
		return res, nil
	}

	results := make([]taskResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers)
	for i, f := range files {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("worker panicked", "path", f.Path, "panic", fmt.Sprint(r))
					results[i] = taskResult{failed: true}
					err = nil
				}
			}()
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i], err = extractOne(gctx, ext, opts.Cache, logger, f)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, f := range files {
		r := results[i]
		switch {
		case r.failed:
			res.Failed = append(res.Failed, f.Path)
		case r.cfgs != nil:
			res.Files[f.FullPath] = r.cfgs
			if r.cached {
				res.CacheHits++
			}
		}
	}
	sort.Strings(res.Failed)
	res.Elapsed = time.Since(start)

	logger.Debug("extraction finished",
		"files", len(res.Files),
		"failed", len(res.Failed),
		"cache_hits", res.CacheHits,
		"functions", res.Functions(),
		"elapsed", res.Elapsed)
	return res, nil
}

func extractOne(ctx context.Context, ext *extractor.Extractor, c *cache.ExtractionCache, logger log.Logger, f scanner.FileInfo) (taskResult, error) {
	lang, err := ext.Registry().GetLanguage(f.FullPath)
	if err != nil {
		return taskResult{}, fmt.Errorf("%s: %w", f.Path, err)
	}

	content, err := os.ReadFile(f.FullPath)
	if err != nil {
		logger.Warn("skipping unreadable file", "path", f.Path, "error", err)
		return taskResult{failed: true}, nil
	}

	var hash string
	if c != nil {
		hash = cache.HashBytes(content)
		if cfgs, ok := c.Get(f.Path, hash); ok {
			return taskResult{cfgs: cfgs, cached: true}, nil
		}
	}

	cfgs, err := ext.ExtractCode(ctx, content, lang)
	if err != nil {
		return taskResult{}, fmt.Errorf("extracting %s: %w", f.Path, err)
	}

	if c != nil {
		c.Put(f.Path, hash, cfgs)
	}
	return taskResult{cfgs: cfgs}, nil
}
