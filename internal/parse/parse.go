// Package parse turns a component document into a set of parsed regions
// using tree-sitter.
//
// The document grammar (svelte) only locates regions: the <script> blocks
// and every {...} expression of the markup. Each region is then parsed with
// a script grammar (javascript or typescript), and all spans exposed by this
// package are absolute byte offsets into the document text.
package parse

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/remotefn/internal/lang"
	"github.com/phobologic/remotefn/internal/model"
)

// Error reports a document that could not be parsed cleanly.
type Error struct {
	Region model.RegionKind
	Offset int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %v", e.regionName(), e.Err)
	}
	return fmt.Sprintf("parse %s: syntax error at offset %d", e.regionName(), e.Offset)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) regionName() string {
	if e.Region == "" {
		return "document"
	}
	return string(e.Region)
}

// Region is one independently parsed part of a document.
type Region struct {
	Kind model.RegionKind
	Lang *lang.Language
	// Span is the region's extent in the document text.
	Span model.Span

	source []byte
	tree   *sitter.Tree
}

// Root returns the root node of the region's syntax tree.
func (r *Region) Root() Node {
	return Node{n: r.tree.RootNode(), r: r}
}

// HasError reports whether the region's syntax tree contains errors.
func (r *Region) HasError() bool {
	return r.tree.RootNode().HasError()
}

// Document is a parsed component document. It is a snapshot: once Text is
// edited the Document is stale and must be parsed again.
type Document struct {
	Text    string
	Regions []*Region

	tree *sitter.Tree
}

// Primary returns the instance script region, or nil if the document has none.
func (d *Document) Primary() *Region {
	for _, r := range d.Regions {
		if r.Kind == model.Script {
			return r
		}
	}
	return nil
}

// Close releases the syntax trees. Nodes obtained from the document must not
// be used afterwards.
func (d *Document) Close() {
	for _, r := range d.Regions {
		r.tree.Close()
	}
	if d.tree != nil {
		d.tree.Close()
	}
}

var (
	langAttrRe   = regexp.MustCompile(`(?i)\blang\s*=\s*["']?([\w-]+)`)
	moduleAttrRe = regexp.MustCompile(`(?i)\bcontext\s*=\s*["']?module\b|\smodule(?:[\s/>]|$)`)
)

// Parse parses text as a component document.
func Parse(text string) (*Document, error) {
	return ParseCtx(context.Background(), text)
}

// ParseCtx parses text as a component document. It fails with *Error when
// the document grammar cannot produce a tree or when the instance script
// contains syntax errors. Errors inside markup expressions are tolerated:
// block headers such as "items as item" are not valid script on their own.
func ParseCtx(ctx context.Context, text string) (*Document, error) {
	source := []byte(text)

	tree, err := lang.Languages[lang.Svelte].NewParser().ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, &Error{Err: err}
	}

	doc := &Document{Text: text, tree: tree}
	parsers := make(map[string]*sitter.Parser)
	if err := doc.collect(ctx, tree.RootNode(), source, parsers); err != nil {
		doc.Close()
		return nil, err
	}

	for _, r := range doc.Regions {
		if r.Kind == model.Markup || !r.HasError() {
			continue
		}
		offset := r.Span.Start
		if n := firstError(r.tree.RootNode()); n != nil {
			offset += int(n.StartByte())
		}
		doc.Close()
		return nil, &Error{Region: r.Kind, Offset: offset}
	}

	return doc, nil
}

func (d *Document) collect(ctx context.Context, node *sitter.Node, source []byte, parsers map[string]*sitter.Parser) error {
	switch t := node.Type(); {
	case t == "style_element":
		return nil
	case t == "script_element":
		var startTag, raw *sitter.Node
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case "start_tag":
				startTag = child
			case "raw_text":
				raw = child
			}
		}
		if raw == nil {
			return nil
		}
		var attrs string
		if startTag != nil {
			attrs = lang.NodeText(startTag, source)
		}
		kind := model.Script
		if moduleAttrRe.MatchString(attrs) {
			kind = model.ModuleScript
		}
		l := lang.ForScript(scriptLang(attrs))
		return d.addRegion(ctx, kind, l, raw, source, parsers)
	case strings.HasPrefix(t, "raw_text"):
		return d.addRegion(ctx, model.Markup, lang.Languages[lang.JavaScript], node, source, parsers)
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		if err := d.collect(ctx, node.NamedChild(i), source, parsers); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) addRegion(ctx context.Context, kind model.RegionKind, l *lang.Language, node *sitter.Node, source []byte, parsers map[string]*sitter.Parser) error {
	span := model.Span{Start: int(node.StartByte()), End: int(node.EndByte())}
	if span.Empty() {
		return nil
	}
	p, ok := parsers[l.Name]
	if !ok {
		p = l.NewParser()
		parsers[l.Name] = p
	}
	regionSource := source[span.Start:span.End]
	tree, err := p.ParseCtx(ctx, nil, regionSource)
	if err != nil {
		return &Error{Region: kind, Offset: span.Start, Err: err}
	}
	d.Regions = append(d.Regions, &Region{
		Kind:   kind,
		Lang:   l,
		Span:   span,
		source: regionSource,
		tree:   tree,
	})
	return nil
}

func scriptLang(attrs string) string {
	if m := langAttrRe.FindStringSubmatch(attrs); m != nil {
		return m[1]
	}
	return ""
}

func firstError(node *sitter.Node) *sitter.Node {
	if node.Type() == "ERROR" || node.IsMissing() {
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
