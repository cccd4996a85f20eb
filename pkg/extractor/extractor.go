package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/l3aro/casesmith/pkg/cfg"
	sitter "github.com/smacker/go-tree-sitter"
)

// ErrParse is returned when tree-sitter yields no tree for a source.
var ErrParse = errors.New("parse failed")

// Extractor parses source files and builds CFGs for their entities.
type Extractor struct {
	registry *LanguageRegistry
}

// New creates an Extractor backed by the given registry, or the default
// registry when nil.
func New(registry *LanguageRegistry) *Extractor {
	if registry == nil {
		registry = NewLanguageRegistry()
	}
	return &Extractor{registry: registry}
}

// Registry returns the language registry in use.
func (e *Extractor) Registry() *LanguageRegistry {
	return e.registry
}

// ExtractFile reads and parses filePath, choosing the grammar by extension.
func (e *Extractor) ExtractFile(ctx context.Context, filePath string) (cfg.FileCFGs, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", filePath, err)
	}

	lang, err := e.registry.GetLanguage(filePath)
	if err != nil {
		return nil, err
	}

	return e.ExtractCode(ctx, content, lang)
}

// Parse parses source with the grammar for lang. The caller closes the tree.
func (e *Extractor) Parse(ctx context.Context, source []byte, lang Language) (*sitter.Tree, error) {
	parser, err := e.registry.NewParser(lang)
	if err != nil {
		return nil, err
	}
	defer parser.Close()

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s source: %w", lang, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("parsing %s source: %w", lang, ErrParse)
	}
	return tree, nil
}

// ExtractCode parses source with the grammar for lang and extracts every
// function-like entity.
func (e *Extractor) ExtractCode(ctx context.Context, source []byte, lang Language) (cfg.FileCFGs, error) {
	tree, err := e.Parse(ctx, source, lang)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	return ExtractFromTree(source, tree.RootNode()), nil
}

// ExtractFromTree walks the whole tree rooted at root and returns one CFG per
// function-like entity, keyed by qualified name. When two entities share a
// name, the one later in the source wins.
func ExtractFromTree(source []byte, root *sitter.Node) cfg.FileCFGs {
	c := &collector{source: source, out: make(cfg.FileCFGs)}
	if root == nil {
		return c.out
	}

	stack := reverseChildren(nil, root)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stack = reverseChildren(stack, n)

		switch n.Type() {
		case cfg.NodeFunctionDeclaration, cfg.NodeGeneratorFunctionDeclaration:
			c.function(n)
		case cfg.NodeClassDeclaration, cfg.NodeAbstractClassDeclaration, cfg.NodeClass:
			c.class(n)
		case cfg.NodeExportStatement:
			c.export(n)
		case cfg.NodeLexicalDeclaration, cfg.NodeVariableDeclaration:
			c.variables(n)
		case cfg.NodeAssignmentExpression:
			c.assignment(n)
		}
	}
	return c.out
}

func reverseChildren(stack []*sitter.Node, n *sitter.Node) []*sitter.Node {
	for i := int(n.ChildCount()) - 1; i >= 0; i-- {
		if ch := n.Child(i); ch != nil {
			stack = append(stack, ch)
		}
	}
	return stack
}
