// Package usage computes which identifiers a document, or part of it, refers to.
package usage

import (
	"sort"
	"strings"

	"github.com/phobologic/remotefn/internal/model"
	"github.com/phobologic/remotefn/internal/parse"
)

// Set is a set of identifier names.
type Set map[string]struct{}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the names in lexical order.
func (s Set) Sorted() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// add records name. A Svelte store subscription ($name) is also a use of name.
func (s Set) add(name string) {
	s[name] = struct{}{}
	if len(name) > 1 && strings.HasPrefix(name, "$") && !strings.HasPrefix(name, "$$") {
		s[name[1:]] = struct{}{}
	}
}

type refVisitor struct {
	parse.BaseVisitor
	within *model.Span
	used   Set
}

func (v *refVisitor) Identifier(id parse.Identifier) bool {
	if v.within == nil || v.within.Contains(id.Span()) {
		v.used.add(id.Name)
	}
	return true
}

// An import's own specifiers are not uses of it.
func (v *refVisitor) Import(parse.Import) bool { return false }

// Within returns the identifiers referenced inside span. It over-approximates
// the free variables of the code in span: locally bound names are included.
func Within(doc *parse.Document, span model.Span) Set {
	v := &refVisitor{within: &span, used: Set{}}
	for _, r := range doc.Regions {
		if r.Span.Start >= span.End || r.Span.End <= span.Start {
			continue
		}
		parse.Walk(r, v)
	}
	return v.used
}

// Remaining returns the identifiers referenced anywhere in the document,
// excluding references that occur inside import declarations.
func Remaining(doc *parse.Document) Set {
	v := &refVisitor{used: Set{}}
	parse.WalkDocument(doc, v)
	return v.used
}

type importVisitor struct {
	parse.BaseVisitor
	kind    model.RegionKind
	imports []model.ImportDeclaration
}

func (v *importVisitor) Import(i parse.Import) bool {
	v.imports = append(v.imports, model.ImportDeclaration{
		Span:       i.Span(),
		Source:     i.Source,
		SourceSpan: i.SourceSpan,
		LocalNames: i.LocalNames,
		Region:     v.kind,
	})
	return false
}

// Imports returns the import declarations of the primary script region.
func Imports(doc *parse.Document) []model.ImportDeclaration {
	primary := doc.Primary()
	if primary == nil {
		return nil
	}
	v := &importVisitor{kind: primary.Kind}
	parse.Walk(primary, v)
	return v.imports
}

// Prunable reports whether imp can be removed given the identifiers still in
// use. Imports that bind no names are kept for their side effects.
func Prunable(imp model.ImportDeclaration, used Set) bool {
	if len(imp.LocalNames) == 0 {
		return false
	}
	for _, name := range imp.LocalNames {
		if used.Has(name) {
			return false
		}
	}
	return true
}

// Binds reports whether imp binds any of names.
func Binds(imp model.ImportDeclaration, names Set) bool {
	for _, name := range imp.LocalNames {
		if names.Has(name) {
			return true
		}
	}
	return false
}
