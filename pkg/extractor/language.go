// Package extractor discovers function-like entities in TypeScript and
// JavaScript syntax trees and builds one security-tagged CFG per entity.
package extractor

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language represents a supported grammar.
type Language string

const (
	// TypeScript language support
	TypeScript Language = "typescript"
	// TSX language support
	TSX Language = "tsx"
	// JavaScript language support (also used for JSX)
	JavaScript Language = "javascript"
)

// ErrUnsupported is returned for paths whose extension has no grammar.
var ErrUnsupported = errors.New("unsupported language")

// GrammarFactory returns the tree-sitter grammar for a language.
type GrammarFactory func() *sitter.Language

// LanguageRegistry maps file extensions to grammars.
type LanguageRegistry struct {
	grammars   map[Language]GrammarFactory
	extensions map[string]Language
}

// NewLanguageRegistry creates a registry with the built-in grammars.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		grammars:   make(map[Language]GrammarFactory),
		extensions: make(map[string]Language),
	}

	r.RegisterLanguage(TypeScript, []string{".ts", ".mts", ".cts"}, typescript.GetLanguage)
	r.RegisterLanguage(TSX, []string{".tsx"}, tsx.GetLanguage)
	r.RegisterLanguage(JavaScript, []string{".js", ".jsx", ".mjs", ".cjs"}, javascript.GetLanguage)

	return r
}

// RegisterLanguage registers a grammar for a set of extensions.
func (r *LanguageRegistry) RegisterLanguage(lang Language, extensions []string, factory GrammarFactory) {
	r.grammars[lang] = factory
	for _, ext := range extensions {
		r.extensions[strings.ToLower(ext)] = lang
	}
}

// GetLanguage returns the language identifier for a file path.
func (r *LanguageRegistry) GetLanguage(filePath string) (Language, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == "" {
		return "", fmt.Errorf("file has no extension: %s: %w", filePath, ErrUnsupported)
	}

	lang, ok := r.extensions[ext]
	if !ok {
		return "", fmt.Errorf("file extension %s: %w", ext, ErrUnsupported)
	}

	return lang, nil
}

// NewParser returns a fresh parser for lang. Parsers are not safe for
// concurrent use, so each caller gets its own.
func (r *LanguageRegistry) NewParser(lang Language) (*sitter.Parser, error) {
	factory, ok := r.grammars[lang]
	if !ok {
		return nil, fmt.Errorf("no grammar registered for language: %s", lang)
	}
	grammar := factory()
	if grammar == nil {
		return nil, fmt.Errorf("grammar for %s is unavailable", lang)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(grammar)
	return parser, nil
}

// IsSupported checks if a file extension is supported.
func (r *LanguageRegistry) IsSupported(filePath string) bool {
	_, err := r.GetLanguage(filePath)
	return err == nil
}

// GetSupportedExtensions returns all registered file extensions, sorted.
func (r *LanguageRegistry) GetSupportedExtensions() []string {
	extensions := make([]string, 0, len(r.extensions))
	for ext := range r.extensions {
		extensions = append(extensions, ext)
	}
	sort.Strings(extensions)
	return extensions
}

// CheckExtensions reports every extension in exts that has no grammar.
func (r *LanguageRegistry) CheckExtensions(exts []string) error {
	var missing []string
	for _, ext := range exts {
		if !r.IsSupported("file" + ext) {
			missing = append(missing, ext)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s (supported: %s)", ErrUnsupported,
		strings.Join(missing, ", "), strings.Join(r.GetSupportedExtensions(), ", "))
}
