package cfg

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// builder accumulates one graph. last is the index of the most recently
// appended node; new nodes are chained from it.
type builder struct {
	source []byte
	g      *SimpleCFG
	last   int
}

// BuildStructuredCFG walks every descendant of body in document order and
// returns the tagged graph. Decorators that the grammar attaches outside the
// body (class member decorators) can be passed in and are applied first.
// The result always ends with an edge from the last node to Exit; duplicate
// edges are left for DedupeEdges.
func BuildStructuredCFG(source []byte, body *sitter.Node, decorators ...*sitter.Node) *SimpleCFG {
	b := &builder{
		source: source,
		g:      NewSimpleCFG(),
		last:   EntryIndex,
	}

	for _, d := range decorators {
		if d != nil && d.Type() == NodeDecorator {
			b.visit(d)
		}
	}

	if body != nil {
		stack := pushChildren(nil, body)
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			b.visit(n)
			stack = pushChildren(stack, n)
		}
	}

	b.addEdge(b.last, ExitIndex)
	return b.g
}

// Build is BuildStructuredCFG followed by DedupeEdges.
func Build(source []byte, body *sitter.Node, decorators ...*sitter.Node) SimpleCFG {
	g := BuildStructuredCFG(source, body, decorators...)
	DedupeEdges(g)
	return *g
}

// pushChildren pushes n's children in reverse so they pop in source order.
func pushChildren(stack []*sitter.Node, n *sitter.Node) []*sitter.Node {
	for i := int(n.ChildCount()) - 1; i >= 0; i-- {
		if ch := n.Child(i); ch != nil {
			stack = append(stack, ch)
		}
	}
	return stack
}

func (b *builder) visit(n *sitter.Node) {
	kind := n.Type()

	switch {
	case kind == NodeIfStatement:
		b.appendNode("If: " + Snippet(b.source, n))
	case IsLoop(kind):
		idx := b.appendNode("Loop: " + Snippet(b.source, n))
		b.addEdge(idx, idx)
		b.addEdge(idx, ExitIndex)
	case kind == NodeReturnStatement:
		b.appendNode("Return: " + Snippet(b.source, n))
	}

	if kind == NodeCallExpression {
		if k, ok := ClassifyCall(b.source, n); ok {
			b.appendTag(fmt.Sprintf("%s: %s", k.Prefix(), Snippet(b.source, n)))
		}
	}

	switch kind {
	case NodeMemberExpression, NodeCallExpression, NodeIdentifier:
		if IsSecretish(b.source, n) {
			b.appendTag(EdgeSecret.Prefix() + ": " + Snippet(b.source, n))
		}
	case NodeDecorator:
		raw := Snippet(b.source, n)
		deco := strings.ToLower(raw)
		if IsRouteDecorator(deco) {
			b.appendTag(UserEntryLabel)
		}
		if IsGuardDecorator(deco) {
			b.appendTag(EdgeAuth.Prefix() + ": " + raw)
		}
	}
}

// appendNode adds a node chained from last and makes it the new last.
func (b *builder) appendNode(label string) int {
	idx := len(b.g.Nodes)
	b.g.Nodes = append(b.g.Nodes, label)
	b.addEdge(b.last, idx)
	b.last = idx
	return idx
}

// appendTag is appendNode guarded against repeating the label of last.
func (b *builder) appendTag(label string) {
	if b.g.Nodes[b.last] == label {
		return
	}
	b.appendNode(label)
}

func (b *builder) addEdge(src, dst int) {
	b.g.Edges = append(b.g.Edges, [2]int{src, dst})
}

// DedupeEdges removes repeated (source, destination) pairs in place,
// keeping the first occurrence of each.
func DedupeEdges(g *SimpleCFG) {
	seen := make(map[[2]int]struct{}, len(g.Edges))
	out := g.Edges[:0]
	for _, e := range g.Edges {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	g.Edges = out
}
