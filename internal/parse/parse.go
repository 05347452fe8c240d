// Package parse loads TypeScript sources into the typed model using
// tree-sitter. It locates top-level classes and scans their members together
// with the doc comments and decorators attached to them.
package parse

import (
	"context"
	"errors"
	"fmt"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/gqldesc/internal/jsdoc"
	"github.com/phobologic/gqldesc/internal/lang"
	"github.com/phobologic/gqldesc/internal/model"
)

// ErrSyntax is returned when the source does not parse cleanly.
var ErrSyntax = errors.New("syntax error")

// anonymousClass names the class of "export default class { ... }".
const anonymousClass = "default"

// Load parses source and returns its model. The parser must be created for
// l, and query must be l's class query. filePath is recorded on the module
// and used in error messages only.
func Load(ctx context.Context, l *lang.Language, parser *sitter.Parser, query *sitter.Query, source []byte, filePath string) (*model.Module, error) {
	mod := &model.Module{
		Path:     filePath,
		Language: l.Name,
		Source:   source,
	}
	if len(source) == 0 {
		return mod, nil
	}

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filePath, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		line := 0
		if n := firstError(root); n != nil {
			line = int(n.StartPoint().Row) + 1
		}
		return nil, fmt.Errorf("%w in %s at line %d", ErrSyntax, filePath, line)
	}

	for _, cls := range classNodes(query, root) {
		mod.Classes = append(mod.Classes, loadClass(cls, source))
	}
	return mod, nil
}

// classNodes runs the class query and returns matches in document order.
func classNodes(query *sitter.Query, root *sitter.Node) []*sitter.Node {
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, root)

	seen := make(map[uint32]bool)
	var nodes []*sitter.Node
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range match.Captures {
			if seen[c.Node.StartByte()] {
				continue
			}
			seen[c.Node.StartByte()] = true
			nodes = append(nodes, c.Node)
		}
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].StartByte() < nodes[j].StartByte()
	})
	return nodes
}

func loadClass(node *sitter.Node, source []byte) model.ClassDeclaration {
	cls := model.ClassDeclaration{Name: anonymousClass, Span: span(node)}
	if name := node.ChildByFieldName("name"); name != nil {
		cls.Name = lang.NodeText(name, source)
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "class_body" {
			cls.Members = scanBody(child, cls.Name, source)
			break
		}
	}
	return cls
}

// scanBody walks a class body and returns its methods followed by its
// properties. Doc comments and decorators that precede a member in the body
// are attached to it; anything else in between resets the pending set.
func scanBody(body *sitter.Node, className string, source []byte) []model.Member {
	var (
		methods, props []model.Member
		docs, decos    []*sitter.Node
	)
	reset := func() { docs, decos = nil, nil }

	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		switch child.Type() {
		case "comment":
			// A comment between a decorator and its member is not documentation.
			if len(decos) == 0 && jsdoc.IsDocComment(lang.NodeText(child, source)) {
				docs = append(docs, child)
			}
		case "decorator":
			decos = append(decos, child)
		case "method_definition", "abstract_method_signature":
			if isPlainMethod(child, source) {
				methods = append(methods, loadMember(child, model.Method, className, docs, decos, source))
			}
			reset()
		case "public_field_definition":
			props = append(props, loadMember(child, model.Property, className, docs, decos, source))
			reset()
		default:
			reset()
		}
	}
	return append(methods, props...)
}

// isPlainMethod filters out constructors and get/set accessors.
func isPlainMethod(node *sitter.Node, source []byte) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if !child.IsNamed() && (child.Type() == "get" || child.Type() == "set") {
			return false
		}
	}
	if name := node.ChildByFieldName("name"); name != nil && lang.NodeText(name, source) == "constructor" {
		return false
	}
	return true
}

func loadMember(node *sitter.Node, kind model.MemberKind, className string, docs, decos []*sitter.Node, source []byte) model.Member {
	m := model.Member{
		Class: className,
		Kind:  kind,
		Line:  int(node.StartPoint().Row) + 1,
		Span:  span(node),
	}
	if name := node.ChildByFieldName("name"); name != nil {
		m.Name = lang.NodeText(name, source)
		m.Line = int(name.StartPoint().Row) + 1
	}

	for _, d := range docs {
		block, ok := jsdoc.Parse(lang.NodeText(d, source))
		if !ok {
			continue
		}
		db := model.DocBlock{Span: span(d)}
		for _, tag := range block.Tags {
			db.Tags = append(db.Tags, model.DocTag{Name: tag.Name, Comment: tag.Text})
		}
		m.Docs = append(m.Docs, db)
	}

	for _, d := range decos {
		m.Decorators = append(m.Decorators, loadDecorator(d, source))
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "decorator" {
			m.Decorators = append(m.Decorators, loadDecorator(child, source))
		}
	}
	return m
}

func loadDecorator(node *sitter.Node, source []byte) model.Decorator {
	d := model.Decorator{
		Line: int(node.StartPoint().Row) + 1,
		Span: span(node),
	}

	var expr *sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if c := node.NamedChild(i); c.Type() != "comment" {
			expr = c
			break
		}
	}
	if expr == nil {
		return d
	}

	if expr.Type() != "call_expression" {
		d.Callee = lang.NodeText(expr, source)
		return d
	}

	if fn := expr.ChildByFieldName("function"); fn != nil {
		d.Callee = lang.NodeText(fn, source)
	}
	for i := 0; i < int(expr.NamedChildCount()); i++ {
		if c := expr.NamedChild(i); c.Type() == "arguments" {
			d.Args = loadArguments(c, source)
			break
		}
	}
	return d
}

func loadArguments(node *sitter.Node, source []byte) *model.ArgumentList {
	list := &model.ArgumentList{Span: span(node)}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		arg := model.Argument{Span: span(child)}
		if child.Type() == "object" {
			arg.Object = loadObject(child, source)
		}
		list.Args = append(list.Args, arg)
	}
	return list
}

func loadObject(node *sitter.Node, source []byte) *model.ObjectLiteral {
	obj := &model.ObjectLiteral{Span: span(node)}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		obj.Properties = append(obj.Properties, model.ObjectProperty{
			Name: propertyName(child, source),
			Span: span(child),
		})
	}
	return obj
}

// propertyName returns the static name of an object entry, or "".
func propertyName(node *sitter.Node, source []byte) string {
	switch node.Type() {
	case "pair":
		return keyName(node.ChildByFieldName("key"), source)
	case "method_definition":
		return keyName(node.ChildByFieldName("name"), source)
	case "shorthand_property_identifier":
		return lang.NodeText(node, source)
	}
	return ""
}

func keyName(key *sitter.Node, source []byte) string {
	if key == nil {
		return ""
	}
	switch key.Type() {
	case "property_identifier", "identifier", "number":
		return lang.NodeText(key, source)
	case "string":
		text := lang.NodeText(key, source)
		if len(text) >= 2 {
			return text[1 : len(text)-1]
		}
	}
	return ""
}

func span(node *sitter.Node) model.Span {
	return model.Span{Start: int(node.StartByte()), End: int(node.EndByte())}
}

func firstError(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if !child.HasError() && !child.IsMissing() {
			continue
		}
		if n := firstError(child); n != nil {
			return n
		}
	}
	return nil
}
