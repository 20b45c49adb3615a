package parse

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/remotefn/internal/lang"
	"github.com/phobologic/remotefn/internal/model"
)

const counter = `<script>
	import { format } from './fmt.js';
	let count = 0;
	async function server_add(a, b) { return a + b }
</script>

<p>{format(count)}</p>
`

func mustParse(t *testing.T, text string) *Document {
	t.Helper()
	doc, err := Parse(text)
	require.NoError(t, err)
	t.Cleanup(doc.Close)
	return doc
}

type collector struct {
	BaseVisitor
	decls   []Declaration
	calls   []Call
	imports []Import
	idents  []string
}

func (c *collector) Declaration(d Declaration) bool { c.decls = append(c.decls, d); return true }
func (c *collector) Call(call Call) bool            { c.calls = append(c.calls, call); return true }
func (c *collector) Import(i Import) bool           { c.imports = append(c.imports, i); return false }
func (c *collector) Identifier(id Identifier) bool  { c.idents = append(c.idents, id.Name); return true }

func TestParseRegions(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, counter)

	primary := doc.Primary()
	require.NotNil(t, primary)
	assert.Equal(t, model.Script, primary.Kind)
	assert.Equal(t, lang.JavaScript, primary.Lang.Name)
	assert.Contains(t, primary.Span.Text(counter), "async function server_add")

	var markup []string
	for _, r := range doc.Regions {
		if r.Kind == model.Markup {
			markup = append(markup, r.Span.Text(counter))
		}
	}
	assert.Equal(t, []string{"format(count)"}, markup)
}

func TestParseTypeScriptAndModuleScripts(t *testing.T) {
	t.Parallel()
	text := `<script context="module">
	export const prerender = true;
</script>
<script lang="ts">
	async function server_get(id: number): Promise<string> { return String(id) }
</script>
`
	doc := mustParse(t, text)

	require.Len(t, doc.Regions, 2)
	assert.Equal(t, model.ModuleScript, doc.Regions[0].Kind)
	primary := doc.Primary()
	require.NotNil(t, primary)
	assert.Equal(t, lang.TypeScript, primary.Lang.Name)
	assert.False(t, primary.HasError())
}

func TestParseNoScript(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, "<h1>hello</h1>\n")
	assert.Nil(t, doc.Primary())
}

func TestParseScriptSyntaxError(t *testing.T) {
	t.Parallel()
	text := "<script>\n\tasync function server_x( {\n</script>\n"
	_, err := Parse(text)
	require.Error(t, err)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, model.Script, perr.Region)
	assert.GreaterOrEqual(t, perr.Offset, strings.Index(text, "async"))
}

func TestWalkTypedNodes(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, counter)

	c := &collector{}
	WalkDocument(doc, c)

	require.Len(t, c.decls, 1)
	d := c.decls[0]
	assert.Equal(t, "server_add", d.Name)
	assert.True(t, d.Async)
	assert.True(t, d.TopLevel)
	assert.True(t, strings.HasPrefix(d.Span().Text(counter), "async function server_add"))

	require.Len(t, c.imports, 1)
	assert.Equal(t, []string{"format"}, c.imports[0].LocalNames)
	assert.Equal(t, "./fmt.js", c.imports[0].Source)
	assert.Equal(t, "./fmt.js", c.imports[0].SourceSpan.Text(counter))

	require.Len(t, c.calls, 1)
	assert.Equal(t, "format", c.calls[0].Callee)
	assert.Equal(t, "format(count)", c.calls[0].Span().Text(counter))
	assert.Equal(t, "count", c.calls[0].Arguments.Text(counter))

	// The import was not descended into, so the first identifier is the
	// declared variable rather than the import specifier.
	require.NotEmpty(t, c.idents)
	assert.Equal(t, "count", c.idents[0])
	assert.Contains(t, c.idents, "format")
}

func TestCallArgumentSpans(t *testing.T) {
	t.Parallel()
	text := "<script>\n\tserver_add([1, 2], { a: 3 }, ...rest);\n\tserver_ping();\n</script>\n"
	doc := mustParse(t, text)

	c := &collector{}
	Walk(doc.Primary(), c)
	require.Len(t, c.calls, 2)

	add := c.calls[0]
	require.Len(t, add.Args, 3)
	assert.Equal(t, "[1, 2]", add.Args[0].Text(text))
	assert.Equal(t, "{ a: 3 }", add.Args[1].Text(text))
	assert.Equal(t, "...rest", add.Args[2].Text(text))
	assert.True(t, add.Spread)

	ping := c.calls[1]
	assert.Empty(t, ping.Args)
	assert.True(t, ping.Arguments.Empty())
	assert.Equal(t, byte(')'), text[ping.Arguments.Start])
}

func TestImportLocalNames(t *testing.T) {
	t.Parallel()
	text := `<script>
	import def, * as ns from 'a';
	import { x, y as z } from 'b';
	import 'c.css';
</script>
`
	doc := mustParse(t, text)
	c := &collector{}
	Walk(doc.Primary(), c)

	require.Len(t, c.imports, 3)
	assert.Equal(t, []string{"def", "ns"}, c.imports[0].LocalNames)
	assert.Equal(t, []string{"x", "z"}, c.imports[1].LocalNames)
	assert.Empty(t, c.imports[2].LocalNames)
	assert.Equal(t, "c.css", c.imports[2].Source)
}
