// Package scanner discovers analyzable source files under a root directory.
// It skips a denylist of directory names, honors .casesmithignore files with
// gitignore-style patterns, and filters files by extension.
package scanner

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileInfo represents information about a discovered file.
type FileInfo struct {
	Path     string // Relative path from root, slash separated
	FullPath string // Root-joined path
	Size     int64  // File size in bytes
}

// Options configures the scanner behavior.
type Options struct {
	Extensions     []string // File extensions to collect, with leading dot
	ExcludeDirs    []string // Directory names skipped at any depth (case-insensitive)
	IgnoreFileName string   // Name of the ignore file
	FollowSymlinks bool     // Follow file symlinks that stay within root
}

// DefaultExcludeDirs are the directory names never descended into.
var DefaultExcludeDirs = []string{
	".git",
	"node_modules",
	".casesmithresults",
	"dist",
	"build",
	"target",
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Extensions:     []string{".ts", ".tsx"},
		ExcludeDirs:    append([]string(nil), DefaultExcludeDirs...),
		IgnoreFileName: ".casesmithignore",
	}
}

// Scanner provides file tree scanning capabilities.
type Scanner struct {
	opts Options
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	return &Scanner{opts: opts}
}

// Scan recursively walks root and returns matching files sorted by path.
// Unreadable entries are skipped rather than failing the walk.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("checking root path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	ignores, err := s.loadIgnorePatterns(root, "")
	if err != nil {
		return nil, fmt.Errorf("loading ignore patterns: %w", err)
	}

	var files []FileInfo
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil || relPath == "." {
			return nil
		}
		relSlash := filepath.ToSlash(relPath)

		if info.IsDir() {
			if s.isExcluded(info.Name()) || ignores.Ignored(relSlash, true) {
				return filepath.SkipDir
			}
			nested, err := s.loadIgnorePatterns(path, relSlash)
			if err == nil {
				ignores = append(ignores, nested...)
			}
			return nil
		}

		if !s.hasExtension(path) || ignores.Ignored(relSlash, false) {
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			target, ok := s.resolveSymlink(absRoot, path)
			if !ok {
				return nil
			}
			info = target
		}

		files = append(files, FileInfo{
			Path:     relSlash,
			FullPath: path,
			Size:     info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// resolveSymlink returns the target info of a file symlink that stays inside root.
func (s *Scanner) resolveSymlink(absRoot, path string) (os.FileInfo, bool) {
	if !s.opts.FollowSymlinks {
		return nil, false
	}
	realPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, false
	}
	realAbs, err := filepath.Abs(realPath)
	if err != nil {
		return nil, false
	}
	if !strings.HasPrefix(realAbs, absRoot+string(filepath.Separator)) {
		return nil, false
	}
	target, err := os.Stat(realPath)
	if err != nil || target.IsDir() {
		return nil, false
	}
	return target, true
}

func (s *Scanner) isExcluded(name string) bool {
	for _, exclude := range s.opts.ExcludeDirs {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

func (s *Scanner) hasExtension(path string) bool {
	ext := filepath.Ext(path)
	for _, want := range s.opts.Extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

// loadIgnorePatterns reads the ignore file in dir. Patterns from nested
// files are rebased onto relDir so they stay relative to that directory.
func (s *Scanner) loadIgnorePatterns(dir, relDir string) (ignoreSet, error) {
	if s.opts.IgnoreFileName == "" {
		return nil, nil
	}
	file, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var patterns ignoreSet
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if relDir != "" {
			line = rebase(line, relDir)
		}
		patterns = append(patterns, ParseIgnorePattern(line))
	}
	return patterns, sc.Err()
}

// rebase anchors a nested pattern under relDir.
func rebase(line, relDir string) string {
	neg := ""
	if strings.HasPrefix(line, "!") {
		neg, line = "!", line[1:]
	}
	trimmed := strings.TrimPrefix(line, "/")
	if !strings.Contains(strings.TrimSuffix(trimmed, "/"), "/") && !strings.HasPrefix(line, "/") {
		return neg + "/" + relDir + "/**/" + trimmed
	}
	return neg + "/" + relDir + "/" + trimmed
}

// Scan is a convenience function that scans a directory with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}
