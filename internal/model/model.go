// Package model defines core data structures for remotefn.
package model

import "fmt"

// Span is a half-open [Start, End) byte range into one specific version of a
// document's text. Spans from different versions must never be compared.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Empty reports whether the span is zero-width.
func (s Span) Empty() bool { return s.End <= s.Start }

// Contains reports whether o lies entirely inside s.
func (s Span) Contains(o Span) bool {
	return o.Start >= s.Start && o.End <= s.End
}

// Overlaps reports whether s and o share at least one byte. Two zero-width
// spans at the same offset also overlap, since their edits would collide.
func (s Span) Overlaps(o Span) bool {
	if s.Start == o.Start {
		return true
	}
	return s.Start < o.End && o.Start < s.End
}

// Text returns the slice of text covered by the span.
func (s Span) Text(text string) string {
	return text[s.Start:s.End]
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// RegionKind identifies which part of a component document a region covers.
type RegionKind string

const (
	// Script is the instance <script> block, the primary script region.
	Script RegionKind = "script"
	// ModuleScript is a <script context="module"> block.
	ModuleScript RegionKind = "module"
	// Markup is a single {...} expression inside the template.
	Markup RegionKind = "markup"
)

// TaggedFunction is an async top-level function in the primary script region
// whose name carries the reserved prefix.
type TaggedFunction struct {
	Name       string
	Definition Span
	// Comment covers the comment lines directly above the definition. It is
	// empty when there are none.
	Comment  Span
	Document string
}

// Removal is the span deleted from the client script: the definition and its
// leading comment.
func (f TaggedFunction) Removal() Span {
	if f.Comment.Empty() {
		return f.Definition
	}
	return Span{Start: f.Comment.Start, End: f.Definition.End}
}

// CallSite is one invocation of a tagged function, matched by callee name.
type CallSite struct {
	Callee string
	Full   Span
	// Arguments covers the argument list without its parentheses. It is
	// zero-width just before the closing parenthesis when there are no
	// arguments.
	Arguments Span
	// Args holds one span per argument, taken from the syntax tree.
	Args   []Span
	Spread bool
}

// ImportDeclaration is an import statement of a script region.
type ImportDeclaration struct {
	Span       Span
	Source     string
	SourceSpan Span // the module specifier, without quotes
	LocalNames []string
	Region     RegionKind
}

// Endpoint is a generated server handler for one tagged function. Its
// identity is ID, not Content.
type Endpoint struct {
	ID       string
	Function string
	Document string // relative to the project root, slash-separated
	FilePath string
	Route    string
	Content  string
}

// Dependency is an edge between two top-level declarations of one script:
// Source refers to Symbols bound by Target.
type Dependency struct {
	Source  string
	Target  string
	Symbols []string
}
