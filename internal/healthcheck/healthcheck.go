package healthcheck

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/l3aro/casesmith/internal/config"
	"github.com/l3aro/casesmith/pkg/cache"
	"github.com/l3aro/casesmith/pkg/extractor"
	"github.com/l3aro/casesmith/pkg/store"
)

// Status values reported by checks.
const (
	StatusReady    = "ready"
	StatusError    = "error"
	StatusDisabled = "disabled"
)

// sampleSource is parsed with every configured grammar.
const sampleSource = "export function sample() { return 1; }\n"

// ComponentStatus represents the health of one dependency of a run.
type ComponentStatus struct {
	Name   string
	Detail string
	Status string
	Error  string
}

// HealthCheckResult contains the full health check output for display.
type HealthCheckResult struct {
	SavedPath      string
	SavedScope     string // "global" or "project"
	EffectivePath  string
	EffectiveScope string // "global" or "project"
	Grammars       []ComponentStatus
	ResultsDir     ComponentStatus
	Cache          ComponentStatus
	SQLite         ComponentStatus
}

// HasError reports whether any check failed.
func (r *HealthCheckResult) HasError() bool {
	all := append([]ComponentStatus{r.ResultsDir, r.Cache, r.SQLite}, r.Grammars...)
	for _, s := range all {
		if s.Status == StatusError {
			return true
		}
	}
	return false
}

// Check performs a health check against the given config for a scan of root.
// savedPath is where the user saved config (may be empty outside init).
// effectivePath is the config file actually in use (considering priority).
func Check(cfg *config.Config, root, savedPath, effectivePath string) (*HealthCheckResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	result := &HealthCheckResult{
		SavedPath:      savedPath,
		SavedScope:     scopeFromPath(savedPath),
		EffectivePath:  effectivePath,
		EffectiveScope: scopeFromPath(effectivePath),
	}

	result.Grammars = checkGrammars(cfg.Extensions)
	resultsDir := filepath.Join(root, cfg.ResultsDir)
	result.ResultsDir = checkResultsDir(resultsDir)
	result.Cache = checkCache(cfg, resultsDir)
	result.SQLite = checkSQLite(cfg.SQLitePath)

	return result, nil
}

// scopeFromPath determines "global" or "project" scope from a config file path.
// Returns empty string if path is empty.
func scopeFromPath(path string) string {
	if path == "" {
		return ""
	}

	home, err := os.UserHomeDir()
	if err == nil {
		globalDir := filepath.Join(home, ".casesmith")
		if strings.HasPrefix(path, globalDir) {
			return "global"
		}
	}

	return "project"
}

// checkGrammars parses a small program with the grammar of every extension.
func checkGrammars(extensions []string) []ComponentStatus {
	ext := extractor.New(nil)
	out := make([]ComponentStatus, 0, len(extensions))
	for _, e := range extensions {
		s := ComponentStatus{Name: e, Status: StatusReady}
		reg := ext.Registry()
		if !reg.IsSupported("sample" + e) {
			s.Status = StatusError
			s.Error = fmt.Sprintf("no grammar (supported: %s)", strings.Join(reg.GetSupportedExtensions(), ", "))
			out = append(out, s)
			continue
		}
		lang, err := reg.GetLanguage("sample" + e)
		if err != nil {
			s.Status, s.Error = StatusError, err.Error()
			out = append(out, s)
			continue
		}
		s.Detail = string(lang)
		cfgs, err := ext.ExtractCode(context.Background(), []byte(sampleSource), lang)
		switch {
		case err != nil:
			s.Status, s.Error = StatusError, err.Error()
		case len(cfgs) != 1:
			s.Status, s.Error = StatusError, fmt.Sprintf("expected 1 function, found %d", len(cfgs))
		}
		out = append(out, s)
	}
	return out
}

// checkResultsDir verifies the results directory can be created and written.
func checkResultsDir(dir string) ComponentStatus {
	s := ComponentStatus{Name: "results", Detail: dir, Status: StatusReady}
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.Status, s.Error = StatusError, err.Error()
		return s
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		s.Status, s.Error = StatusError, err.Error()
		return s
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return s
}

// checkCache loads the persisted extraction cache, if any.
func checkCache(cfg *config.Config, resultsDir string) ComponentStatus {
	path := filepath.Join(resultsDir, cache.FileName)
	s := ComponentStatus{Name: "cache", Detail: path, Status: StatusReady}
	if !cfg.Cache {
		s.Status = StatusDisabled
		return s
	}
	c, err := cache.New(cache.Options{MaxSize: cfg.CacheSize})
	if err == nil {
		err = cache.LoadFromFile(c, path)
	}
	if err != nil {
		s.Status, s.Error = StatusError, err.Error()
		return s
	}
	s.Detail = fmt.Sprintf("%s (%d files)", path, c.Len())
	return s
}

// checkSQLite opens the export database when one is configured.
func checkSQLite(path string) ComponentStatus {
	s := ComponentStatus{Name: "sqlite", Detail: path, Status: StatusReady}
	if path == "" {
		s.Status = StatusDisabled
		return s
	}
	db, err := store.OpenPath(path)
	if err != nil {
		s.Status, s.Error = StatusError, err.Error()
		return s
	}
	defer db.Close()
	runs, err := db.ListRuns()
	if err != nil {
		s.Status, s.Error = StatusError, err.Error()
		return s
	}
	s.Detail = fmt.Sprintf("%s (%d runs)", path, len(runs))
	return s
}
