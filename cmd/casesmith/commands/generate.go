package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/l3aro/casesmith/internal/config"
	"github.com/l3aro/casesmith/internal/log"
	"github.com/l3aro/casesmith/internal/scanner"
	"github.com/l3aro/casesmith/pkg/cache"
	"github.com/l3aro/casesmith/pkg/extractor"
	"github.com/l3aro/casesmith/pkg/flow"
	"github.com/l3aro/casesmith/pkg/pipeline"
	"github.com/l3aro/casesmith/pkg/report"
	"github.com/spf13/cobra"
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate --output <dir>",
	Short: "Analyze a directory and write security flow results",
	Long: `Scans the output directory for source files, builds a control flow graph for
every function, and writes the results under <dir>/.casesmithresults:

  <path>.cfg.json            graphs for each source file
  security-flow.json         deduplicated repository flow
  security-flow.index.txt    summary counters
  security-flow.sarif        SARIF 2.1.0 findings (when enabled)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		verbose, _ := cmd.Flags().GetBool("verbose")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := applyGenerateFlags(cmd, cfg); err != nil {
			return err
		}

		runID := uuid.NewString()
		logger := newLogger(cfg, verbose).With("run_id", runID)
		printConfig(cmd, "generate", cfg)

		if output == "" {
			return errors.New("no output directory specified (use --output)")
		}
		info, err := os.Stat(output)
		if err != nil {
			return fmt.Errorf("output path %q: %w", output, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("output path %q: %w; create it first, then rerun", output, ErrNotDirectory)
		}

		return generate(cmd, cfg, logger, output, runID)
	},
}

func applyGenerateFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("workers") {
		cfg.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("sqlite") {
		cfg.SQLitePath, _ = cmd.Flags().GetString("sqlite")
	}
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.Cache = false
	}
	if noSARIF, _ := cmd.Flags().GetBool("no-sarif"); noSARIF {
		cfg.SARIF = false
	}
	return cfg.Validate()
}

func generate(cmd *cobra.Command, cfg *config.Config, logger log.Logger, root, runID string) error {
	ctx := cmd.Context()
	resultsDir := filepath.Join(root, cfg.ResultsDir)
	if err := os.MkdirAll(resultsDir, 0755); err != nil {
		return fmt.Errorf("creating results dir %s: %w", resultsDir, err)
	}

	ext := extractor.New(nil)
	if err := ext.Registry().CheckExtensions(cfg.Extensions); err != nil {
		return fmt.Errorf("configured extensions: %w", err)
	}

	var extractionCache *cache.ExtractionCache
	cachePath := filepath.Join(resultsDir, cache.FileName)
	if cfg.Cache {
		var err error
		extractionCache, err = cache.New(cache.Options{MaxSize: cfg.CacheSize})
		if err != nil {
			return err
		}
		if err := cache.LoadFromFile(extractionCache, cachePath); err != nil {
			logger.Warn("ignoring unreadable cache", "path", cachePath, "error", err)
			extractionCache, _ = cache.New(cache.Options{MaxSize: cfg.CacheSize})
		}
	}

	scanOpts := scanner.DefaultOptions()
	scanOpts.Extensions = cfg.Extensions
	scanOpts.ExcludeDirs = append(append([]string(nil), cfg.ExcludeDirs...), filepath.Base(cfg.ResultsDir))

	res, err := pipeline.RunDir(ctx, root, pipeline.Options{
		Workers:   cfg.Workers,
		Scanner:   scanOpts,
		Extractor: ext,
		Cache:     extractionCache,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("extracting: %w", err)
	}
	if len(res.Scanned) == 0 {
		logger.Warn("no source files found", "root", root, "extensions", cfg.Extensions)
	}
	for _, f := range res.Failed {
		logger.Warn("file left out of results", "path", f)
	}

	hitRate := 0.0
	if extractionCache != nil {
		hitRate = extractionCache.HitRate()
		keep := make(map[string]bool, len(res.Scanned))
		for _, p := range res.Scanned {
			keep[p] = true
		}
		pruned := extractionCache.Prune(keep)
		logger.Debug("cache pruned", "removed", pruned, "entries", extractionCache.Len())
		if err := cache.PersistToFile(extractionCache, cachePath); err != nil {
			logger.Warn("failed to persist cache", "path", cachePath, "error", err)
		}
	}

	flowReport := flow.ToSecurityFlow(res.Files)

	writer := report.NewWriter(report.Options{
		Root:       root,
		ResultsDir: resultsDir,
		SARIF:      cfg.SARIF,
		SQLitePath: cfg.SQLitePath,
		RunID:      runID,
		Logger:     logger,
	})
	summary, err := writer.Write(res.Files, flowReport)
	if err != nil {
		return err
	}

	logger.Info("run complete",
		"files", len(res.Files),
		"scanned", len(res.Scanned),
		"cache_hits", res.CacheHits,
		"cache_hit_rate", hitRate,
		"artifacts", len(summary.Written),
		"artifact_failures", len(summary.Failed),
		"artifact_skipped", len(summary.Skipped),
		"elapsed", res.Elapsed)

	idx := flowReport.Index
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (functions: %d, edges: %d, boundary_crossings: %d, pii_edges: %d)\n",
		filepath.Join(resultsDir, report.FlowFileName),
		idx.Functions, idx.Edges, idx.BoundaryCrossings, idx.PIIEdges)
	return nil
}

func init() {
	generateCmd.Flags().StringP("output", "o", "", "Directory to analyze; results go to <dir>/.casesmithresults")
	generateCmd.Flags().BoolP("verbose", "v", false, "Verbose logging")
	generateCmd.Flags().Int("workers", 0, "Parallel extraction workers (default: config or number of CPUs)")
	generateCmd.Flags().String("sqlite", "", "Also export the security flow to this SQLite database")
	generateCmd.Flags().Bool("no-cache", false, "Do not read or write the extraction cache")
	generateCmd.Flags().Bool("no-sarif", false, "Do not write security-flow.sarif")
}
