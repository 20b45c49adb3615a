// Package locate finds tagged functions and their call sites in a parsed
// component document.
package locate

import (
	"sort"
	"strings"

	"github.com/phobologic/remotefn/internal/model"
	"github.com/phobologic/remotefn/internal/parse"
)

type taggedVisitor struct {
	parse.BaseVisitor
	prefix string
	doc    string
	text   string
	found  []model.TaggedFunction
}

func (v *taggedVisitor) Declaration(d parse.Declaration) bool {
	if d.TopLevel && d.Async && strings.HasPrefix(d.Name, v.prefix) {
		v.found = append(v.found, model.TaggedFunction{
			Name:       d.Name,
			Definition: d.Span(),
			Comment:    leadingComment(v.text, d.Node),
			Document:   v.doc,
		})
	}
	return false
}

// Only the program node itself is descended into: tagged functions are
// top-level by definition.
func (v *taggedVisitor) Other(n parse.Node) bool          { return n.Type() == "program" }
func (v *taggedVisitor) Call(parse.Call) bool             { return false }
func (v *taggedVisitor) Import(parse.Import) bool         { return false }
func (v *taggedVisitor) Identifier(parse.Identifier) bool { return false }

// leadingComment returns the span of the comments that sit on the lines
// directly above n, one after another. A comment sharing its first line with
// code belongs to that code and ends the block.
func leadingComment(text string, n parse.Node) model.Span {
	var span model.Span
	next := n.Span().Start
	for c, ok := n.PrevSibling(); ok && c.Type() == "comment"; c, ok = c.PrevSibling() {
		cs := c.Span()
		if !adjacentLine(text[cs.End:next]) || !startsLine(text, cs.Start, c.Region().Span.Start) {
			break
		}
		if span.Empty() {
			span.End = cs.End
		}
		span.Start = cs.Start
		next = cs.Start
	}
	return span
}

// adjacentLine reports whether gap is whitespace holding exactly one line
// break.
func adjacentLine(gap string) bool {
	return strings.TrimSpace(gap) == "" && strings.Count(gap, "\n") == 1
}

// startsLine reports whether only indentation precedes offset on its line.
// The line is clipped to the region beginning at regionStart.
func startsLine(text string, offset, regionStart int) bool {
	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1
	if lineStart < regionStart {
		lineStart = regionStart
	}
	return strings.TrimSpace(text[lineStart:offset]) == ""
}

// TaggedFunctions returns, in source order, the async top-level function
// declarations of the primary script region whose names start with prefix.
// docPath is recorded on each result.
func TaggedFunctions(doc *parse.Document, prefix, docPath string) []model.TaggedFunction {
	primary := doc.Primary()
	if primary == nil || prefix == "" {
		return nil
	}
	v := &taggedVisitor{prefix: prefix, doc: docPath, text: doc.Text}
	parse.Walk(primary, v)
	return v.found
}

// Descending returns a copy of fns ordered by descending definition start.
func Descending(fns []model.TaggedFunction) []model.TaggedFunction {
	out := append([]model.TaggedFunction(nil), fns...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Definition.Start > out[j].Definition.Start
	})
	return out
}

// Find returns the first function in fns named name.
func Find(fns []model.TaggedFunction, name string) (model.TaggedFunction, bool) {
	for _, fn := range fns {
		if fn.Name == name {
			return fn, true
		}
	}
	return model.TaggedFunction{}, false
}

type callVisitor struct {
	parse.BaseVisitor
	name  string
	found []model.CallSite
}

func (v *callVisitor) Call(c parse.Call) bool {
	if c.Callee == v.name {
		v.found = append(v.found, model.CallSite{
			Callee:    c.Callee,
			Full:      c.Span(),
			Arguments: c.Arguments,
			Args:      c.Args,
			Spread:    c.Spread,
		})
	}
	return true
}

// CallSites returns every call whose callee is the bare identifier name,
// across all regions of the document, ordered by start offset. Matching is by
// name only: an unrelated binding with the same name is matched too.
func CallSites(doc *parse.Document, name string) []model.CallSite {
	v := &callVisitor{name: name}
	parse.WalkDocument(doc, v)
	sort.SliceStable(v.found, func(i, j int) bool {
		return v.found[i].Full.Start < v.found[j].Full.Start
	})
	return v.found
}

// Outside filters out call sites that lie inside any of the given spans.
func Outside(sites []model.CallSite, spans []model.Span) []model.CallSite {
	var kept []model.CallSite
	for _, s := range sites {
		inside := false
		for _, span := range spans {
			if span.Contains(s.Full) {
				inside = true
				break
			}
		}
		if !inside {
			kept = append(kept, s)
		}
	}
	return kept
}
