package parse

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/remotefn/internal/model"
)

// Node is a syntax node of one region. Its spans are absolute document offsets.
type Node struct {
	n *sitter.Node
	r *Region
}

// Type returns the grammar's node type.
func (n Node) Type() string { return n.n.Type() }

// Region returns the region the node belongs to.
func (n Node) Region() *Region { return n.r }

// Span returns the node's extent in the document text.
func (n Node) Span() model.Span {
	base := n.r.Span.Start
	return model.Span{Start: base + int(n.n.StartByte()), End: base + int(n.n.EndByte())}
}

// Text returns the node's source text.
func (n Node) Text() string {
	return string(n.r.source[n.n.StartByte():n.n.EndByte()])
}

// Field returns the child stored under a grammar field name.
func (n Node) Field(name string) (Node, bool) {
	c := n.n.ChildByFieldName(name)
	if c == nil {
		return Node{}, false
	}
	return Node{n: c, r: n.r}, true
}

// NamedChildren returns the node's named children in source order.
func (n Node) NamedChildren() []Node {
	count := int(n.n.NamedChildCount())
	children := make([]Node, 0, count)
	for i := 0; i < count; i++ {
		children = append(children, Node{n: n.n.NamedChild(i), r: n.r})
	}
	return children
}

// PrevSibling returns the named node immediately before n under the same
// parent. Comments count.
func (n Node) PrevSibling() (Node, bool) {
	p := n.n.PrevNamedSibling()
	if p == nil {
		return Node{}, false
	}
	return Node{n: p, r: n.r}, true
}

// TopLevel reports whether the node is a direct child of its region's root.
func (n Node) TopLevel() bool {
	p := n.n.Parent()
	return p != nil && p.Type() == "program"
}

// Declaration is a function declaration.
type Declaration struct {
	Node
	Name     string
	Async    bool
	TopLevel bool
}

// Call is a call expression with a parenthesized argument list.
type Call struct {
	Node
	// Callee is the callee's name when it is a bare identifier, "" otherwise.
	Callee    string
	Arguments model.Span
	Args      []model.Span
	Spread    bool
}

// Import is an import declaration.
type Import struct {
	Node
	Source     string
	SourceSpan model.Span
	LocalNames []string
}

// Identifier is a reference to a name.
type Identifier struct {
	Node
	Name string
}

// Visitor receives the typed variants of a walk. Returning false from a
// method skips the node's children.
type Visitor interface {
	Declaration(d Declaration) bool
	Call(c Call) bool
	Import(i Import) bool
	Identifier(id Identifier) bool
	Other(n Node) bool
}

// BaseVisitor descends into every node. Embed it to implement only the
// methods of interest.
type BaseVisitor struct{}

func (BaseVisitor) Declaration(Declaration) bool { return true }
func (BaseVisitor) Call(Call) bool               { return true }
func (BaseVisitor) Import(Import) bool           { return true }
func (BaseVisitor) Identifier(Identifier) bool   { return true }
func (BaseVisitor) Other(Node) bool              { return true }

// Walk visits every named node of a region in source order.
func Walk(r *Region, v Visitor) {
	walk(r.Root(), v)
}

// WalkDocument walks every region of the document in document order.
func WalkDocument(d *Document, v Visitor) {
	for _, r := range d.Regions {
		Walk(r, v)
	}
}

// WalkNode visits n and its named descendants.
func WalkNode(n Node, v Visitor) {
	walk(n, v)
}

func walk(n Node, v Visitor) {
	if !dispatch(n, v) {
		return
	}
	for _, child := range n.NamedChildren() {
		walk(child, v)
	}
}

func dispatch(n Node, v Visitor) bool {
	switch n.Type() {
	case "function_declaration":
		return v.Declaration(newDeclaration(n))
	case "call_expression":
		if c, ok := newCall(n); ok {
			return v.Call(c)
		}
	case "import_statement":
		return v.Import(newImport(n))
	case "identifier", "shorthand_property_identifier", "type_identifier":
		return v.Identifier(Identifier{Node: n, Name: n.Text()})
	}
	return v.Other(n)
}

func newDeclaration(n Node) Declaration {
	d := Declaration{Node: n, TopLevel: n.TopLevel()}
	if name, ok := n.Field("name"); ok {
		d.Name = name.Text()
	}
	for i := 0; i < int(n.n.ChildCount()); i++ {
		if n.n.Child(i).Type() == "async" {
			d.Async = true
			break
		}
	}
	return d
}

func newCall(n Node) (Call, bool) {
	args, ok := n.Field("arguments")
	if !ok || args.Type() != "arguments" {
		return Call{}, false
	}
	c := Call{Node: n}
	if fn, ok := n.Field("function"); ok && fn.Type() == "identifier" {
		c.Callee = fn.Text()
	}
	for _, arg := range args.NamedChildren() {
		if arg.Type() == "comment" {
			continue
		}
		if arg.Type() == "spread_element" {
			c.Spread = true
		}
		c.Args = append(c.Args, arg.Span())
	}
	if len(c.Args) > 0 {
		c.Arguments = model.Span{Start: c.Args[0].Start, End: c.Args[len(c.Args)-1].End}
	} else {
		closing := args.Span().End - 1
		c.Arguments = model.Span{Start: closing, End: closing}
	}
	return c, true
}

func newImport(n Node) Import {
	imp := Import{Node: n}
	if src, ok := n.Field("source"); ok {
		span := src.Span()
		// Strip the quotes; a fragment child is absent for ''.
		imp.SourceSpan = model.Span{Start: span.Start + 1, End: span.End - 1}
		imp.Source = n.r.textAt(imp.SourceSpan)
	}
	for _, child := range n.NamedChildren() {
		if child.Type() == "import_clause" {
			imp.LocalNames = clauseNames(child)
		}
	}
	return imp
}

func clauseNames(clause Node) []string {
	var names []string
	for _, child := range clause.NamedChildren() {
		switch child.Type() {
		case "identifier":
			names = append(names, child.Text())
		case "namespace_import":
			for _, c := range child.NamedChildren() {
				if c.Type() == "identifier" {
					names = append(names, c.Text())
				}
			}
		case "named_imports":
			for _, spec := range child.NamedChildren() {
				if spec.Type() != "import_specifier" {
					continue
				}
				local, ok := spec.Field("alias")
				if !ok {
					local, ok = spec.Field("name")
				}
				if ok {
					names = append(names, local.Text())
				}
			}
		}
	}
	return names
}

func (r *Region) textAt(span model.Span) string {
	start, end := span.Start-r.Span.Start, span.End-r.Span.Start
	if start < 0 || end > len(r.source) || start > end {
		return ""
	}
	return string(r.source[start:end])
}
