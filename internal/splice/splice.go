// Package splice applies batches of text edits computed from one snapshot of
// a document.
package splice

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/phobologic/remotefn/internal/model"
)

var (
	// ErrOverlap is returned when two edits of one batch overlap.
	ErrOverlap = errors.New("overlapping edits")
	// ErrRange is returned when an edit lies outside the text.
	ErrRange = errors.New("edit out of range")
)

// Edit replaces Span with Text. With TrimLine set and an empty Text, the edit
// removes the whole lines the span occupies, so that repeated removals do
// not leave runs of blank lines behind.
type Edit struct {
	Span     model.Span
	Text     string
	TrimLine bool
}

// Replace returns an edit replacing span with text.
func Replace(span model.Span, text string) Edit {
	return Edit{Span: span, Text: text}
}

// Delete returns an edit removing the lines occupied by span.
func Delete(span model.Span) Edit {
	return Edit{Span: span, TrimLine: true}
}

// Apply applies edits to text. All edits must be computed from text and must
// not overlap. They are applied in descending start order, so a span not yet
// applied still points at unchanged text.
func Apply(text string, edits []Edit) (string, error) {
	if len(edits) == 0 {
		return text, nil
	}

	sorted := append([]Edit(nil), edits...)
	for i := range sorted {
		e := &sorted[i]
		if e.Span.Start < 0 || e.Span.End > len(text) || e.Span.Start > e.Span.End {
			return "", fmt.Errorf("%w: %s in text of %d bytes", ErrRange, e.Span, len(text))
		}
		if e.TrimLine {
			e.Span = lineSpan(text, e.Span)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Span.Start > sorted[j].Span.Start
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Span.Overlaps(sorted[i-1].Span) {
			return "", fmt.Errorf("%w: %s and %s", ErrOverlap, sorted[i].Span, sorted[i-1].Span)
		}
	}

	var b strings.Builder
	b.Grow(len(text))
	// Walking the descending list backwards yields ascending, non-overlapping
	// spans, so the result is assembled in one pass.
	pos := 0
	for i := len(sorted) - 1; i >= 0; i-- {
		e := sorted[i]
		b.WriteString(text[pos:e.Span.Start])
		b.WriteString(e.Text)
		pos = e.Span.End
	}
	b.WriteString(text[pos:])
	return b.String(), nil
}

// Within returns the text of span with the edits that fall inside it applied.
// Edits outside span are ignored; edits straddling its boundary are an error.
func Within(text string, span model.Span, edits []Edit) (string, error) {
	if span.Start < 0 || span.End > len(text) || span.Start > span.End {
		return "", fmt.Errorf("%w: %s in text of %d bytes", ErrRange, span, len(text))
	}
	var inner []Edit
	for _, e := range edits {
		switch {
		case span.Contains(e.Span):
			e.Span = model.Span{Start: e.Span.Start - span.Start, End: e.Span.End - span.Start}
			inner = append(inner, e)
		case e.Span.Overlaps(span) && !e.Span.Empty():
			return "", fmt.Errorf("%w: %s crosses %s", ErrOverlap, e.Span, span)
		}
	}
	return Apply(span.Text(text), inner)
}

// lineSpan widens span to cover the whole lines it occupies when nothing but
// whitespace shares those lines. A blank line following the removed lines is
// dropped as well when the line before them is blank too.
func lineSpan(text string, span model.Span) model.Span {
	start := span.Start
	for start > 0 && (text[start-1] == ' ' || text[start-1] == '\t') {
		start--
	}
	end := span.End
	for end < len(text) && (text[end] == ' ' || text[end] == '\t' || text[end] == '\r') {
		end++
	}
	atLineStart := start == 0 || text[start-1] == '\n'
	atLineEnd := end == len(text) || text[end] == '\n'
	if !atLineStart || !atLineEnd {
		return span
	}
	if end < len(text) {
		end++
	}
	if blankBefore(text, start) {
		if next := blankLineEnd(text, end); next > end {
			end = next
		}
	}
	return model.Span{Start: start, End: end}
}

// blankBefore reports whether the line ending just before offset is blank, or
// whether offset opens the text.
func blankBefore(text string, offset int) bool {
	if offset == 0 {
		return true
	}
	i := offset - 2 // skip the newline that ends the previous line
	for i >= 0 && (text[i] == ' ' || text[i] == '\t' || text[i] == '\r') {
		i--
	}
	return i < 0 || text[i] == '\n'
}

// blankLineEnd returns the end of the blank line starting at offset, or
// offset when that line holds any content.
func blankLineEnd(text string, offset int) int {
	i := offset
	for i < len(text) && (text[i] == ' ' || text[i] == '\t' || text[i] == '\r') {
		i++
	}
	if i < len(text) && text[i] == '\n' {
		return i + 1
	}
	return offset
}
