package extractor

import (
	"fmt"

	"github.com/l3aro/casesmith/pkg/cfg"
	sitter "github.com/smacker/go-tree-sitter"
)

// Names used when the source gives an entity none.
const (
	anonFunction = "<anon>"
	anonClass    = "<anon_class>"
	anonMethod   = "<anon_method>"
	anonField    = "<anon_field>"
	anonExported = "<exported>"
	ctorName     = "constructor"
)

type collector struct {
	source []byte
	out    cfg.FileCFGs
}

// add builds the graph for one entity and stores it under name.
func (c *collector) add(name string, fn *sitter.Node, decorators ...*sitter.Node) {
	body := fn.ChildByFieldName(cfg.FieldBody)
	if body == nil {
		body = fn
	}
	c.out[name] = cfg.Build(c.source, body, decorators...)
}

func (c *collector) text(n *sitter.Node) string {
	return cfg.NodeText(c.source, n)
}

func (c *collector) function(n *sitter.Node) {
	name := anonFunction
	if id := n.ChildByFieldName(cfg.FieldName); id != nil {
		name = c.text(id)
	}
	c.add(name, n)
}

// class extracts methods and function-valued fields as Class.member.
func (c *collector) class(n *sitter.Node) {
	className := anonClass
	if id := n.ChildByFieldName(cfg.FieldName); id != nil {
		className = c.text(id)
	}

	body := n.ChildByFieldName(cfg.FieldBody)
	if body == nil {
		return
	}

	// TypeScript places member decorators before the member in the class
	// body; JavaScript nests them inside the member.
	var pending []*sitter.Node
	for i := 0; i < int(body.ChildCount()); i++ {
		m := body.Child(i)
		if m == nil {
			continue
		}
		kind := m.Type()
		switch kind {
		case cfg.NodeDecorator:
			pending = append(pending, m)
			continue
		case "comment":
			continue
		}

		decorators := append(pending, childDecorators(m)...)
		pending = nil

		switch kind {
		case cfg.NodeMethodDefinition, cfg.NodeConstructor:
			nameNode := firstField(m, cfg.FieldName, cfg.FieldProperty, cfg.FieldKey)
			method := anonMethod
			if kind == cfg.NodeConstructor {
				method = ctorName
			}
			if nameNode != nil {
				method = c.text(nameNode)
			}
			c.add(className+"."+method, m, decorators...)

		case cfg.NodePublicFieldDefinition, cfg.NodePrivateFieldDefinition, cfg.NodeFieldDefinition:
			val := m.ChildByFieldName(cfg.FieldValue)
			if val == nil || !cfg.IsFunctionValue(val.Type()) {
				continue
			}
			field := anonField
			if nameNode := firstField(m, cfg.FieldName, cfg.FieldProperty); nameNode != nil {
				field = c.text(nameNode)
			}
			c.add(className+"."+field, val, decorators...)
		}
	}
}

// export searches an export subtree for every declaration form it can carry.
func (c *collector) export(n *sitter.Node) {
	queue := []*sitter.Node{n}
	for len(queue) > 0 {
		cur := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		switch cur.Type() {
		case cfg.NodeFunctionDeclaration, cfg.NodeGeneratorFunctionDeclaration:
			c.function(cur)
		case cfg.NodeClassDeclaration, cfg.NodeAbstractClassDeclaration, cfg.NodeClass:
			c.class(cur)
		case cfg.NodeLexicalDeclaration, cfg.NodeVariableDeclaration:
			c.variables(cur)
		case cfg.NodeAssignmentExpression:
			c.assignment(cur)
		case cfg.NodeArrowFunction, cfg.NodeFunctionExpression, cfg.NodeFunction:
			c.add(fmt.Sprintf("default_export@b%d", cur.StartByte()), cur)
		default:
			queue = reverseChildren(queue, cur)
		}
	}
}

// variables extracts every declarator that binds a name to a function value.
func (c *collector) variables(n *sitter.Node) {
	queue := []*sitter.Node{n}
	for len(queue) > 0 {
		cur := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		for i := 0; i < int(cur.ChildCount()); i++ {
			ch := cur.Child(i)
			if ch == nil {
				continue
			}
			if ch.Type() != cfg.NodeVariableDeclarator {
				queue = append(queue, ch)
				continue
			}
			nameNode := ch.ChildByFieldName(cfg.FieldName)
			val := ch.ChildByFieldName(cfg.FieldValue)
			if nameNode == nil || val == nil || !cfg.IsFunctionValue(val.Type()) {
				continue
			}
			c.add(c.text(nameNode), val)
		}
	}
}

// assignment handles `name = () => {}` and `exports.name = function() {}`.
func (c *collector) assignment(n *sitter.Node) {
	left := n.ChildByFieldName(cfg.FieldLeft)
	right := n.ChildByFieldName(cfg.FieldRight)
	if left == nil || right == nil || !cfg.IsFunctionValue(right.Type()) {
		return
	}

	name := anonExported
	switch left.Type() {
	case cfg.NodeIdentifier:
		name = c.text(left)
	case cfg.NodeMemberExpression:
		if prop := left.ChildByFieldName(cfg.FieldProperty); prop != nil {
			name = c.text(prop)
		}
	}
	c.add(name, right)
}

func firstField(n *sitter.Node, fields ...string) *sitter.Node {
	for _, f := range fields {
		if ch := n.ChildByFieldName(f); ch != nil {
			return ch
		}
	}
	return nil
}

func childDecorators(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if ch := n.Child(i); ch != nil && ch.Type() == cfg.NodeDecorator {
			out = append(out, ch)
		}
	}
	return out
}
