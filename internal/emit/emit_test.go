package emit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/remotefn/internal/model"
)

func TestRenderEmbedsFunction(t *testing.T) {
	t.Parallel()
	e := New()
	out, err := e.Render(Source{
		Function:   "server_add",
		Definition: "async function server_add(a, b) { return a + b }",
		Document:   "src/routes/+page.svelte",
	})
	require.NoError(t, err)

	want := `// Code generated by remotefn from src/routes/+page.svelte. DO NOT EDIT.
import { json } from '@sveltejs/kit';

async function server_add(a, b) { return a + b }

export async function POST({ request }) {
	const payload = await request.json();
	const args = [];
	for (const [key, value] of Object.entries(payload)) args[Number(key)] = value;
	const result = await server_add.apply(undefined, args);
	return json(result ?? null);
}
`
	assert.Equal(t, want, out)
}

func TestRenderWithImportsAndHelpers(t *testing.T) {
	t.Parallel()
	out, err := New().Render(Source{
		Function:   "server_get",
		Definition: "async function server_get(id: number) { return db.get(key(id)) }",
		Helpers:    []string{"function key(id) { return String(id) }"},
		Imports:    []string{"import db from '$lib/db';"},
		Document:   "src/routes/+page.svelte",
		TypeScript: true,
	})
	require.NoError(t, err)

	assert.Contains(t, out, "import { json } from '@sveltejs/kit';\nimport db from '$lib/db';\n\nfunction key(id) { return String(id) }\n\nasync function server_get")
	assert.Contains(t, out, "export async function POST({ request }: { request: Request }) {")
	assert.Contains(t, out, "const payload: Record<string, unknown> = await request.json();")
	assert.Contains(t, out, "const args: unknown[] = [];")
	assert.Contains(t, out, "server_get.apply(undefined, args as any)")
}

// Keys the client dropped because their value was undefined must leave a hole
// at that index rather than shift later arguments down.
func TestRenderPlacesArgumentsByIndex(t *testing.T) {
	t.Parallel()
	out, err := New().Render(Source{
		Function:   "server_x",
		Definition: "async function server_x(a, b) { return [a, b] }",
		Document:   "src/routes/+page.svelte",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "for (const [key, value] of Object.entries(payload)) args[Number(key)] = value;")
	assert.NotContains(t, out, ".sort(")
	assert.NotContains(t, out, ".map(")
}

func TestRenderRequiresDefinition(t *testing.T) {
	t.Parallel()
	_, err := New().Render(Source{Function: "server_x"})
	assert.Error(t, err)
}

func TestWriteIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	e := New()
	ep := model.Endpoint{
		FilePath: filepath.Join(dir, "server_add_abc", "+server.js"),
		Content:  "export const x = 1;\n",
	}

	wrote, err := e.Write(ep)
	require.NoError(t, err)
	assert.True(t, wrote)

	info, err := os.Stat(ep.FilePath)
	require.NoError(t, err)
	mtime := info.ModTime()

	wrote, err = e.Write(ep)
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, 1, e.Writes())

	info, err = os.Stat(ep.FilePath)
	require.NoError(t, err)
	assert.Equal(t, mtime, info.ModTime())

	ep.Content = "export const x = 2;\n"
	wrote, err = e.Write(ep)
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, 2, e.Writes())
}

func TestImportRebase(t *testing.T) {
	t.Parallel()
	text := "import { format } from './lib/fmt.js';\nimport db from '$lib/db';\n"
	rel := model.ImportDeclaration{
		Span:       model.Span{Start: 0, End: strings.Index(text, "\n")},
		Source:     "./lib/fmt.js",
		SourceSpan: model.Span{Start: strings.Index(text, "./lib"), End: strings.Index(text, "fmt.js") + len("fmt.js")},
	}
	fromDir := filepath.Join("proj", "src", "routes")
	toDir := filepath.Join("proj", "src", "routes", "api", "server_x_1")

	got := Import(text, rel, fromDir, toDir)
	assert.Equal(t, "import { format } from '../../lib/fmt.js';", got)

	aliasStart := strings.Index(text, "import db")
	alias := model.ImportDeclaration{
		Span:       model.Span{Start: aliasStart, End: len(text) - 1},
		Source:     "$lib/db",
		SourceSpan: model.Span{Start: strings.Index(text, "$lib"), End: strings.Index(text, "$lib") + len("$lib/db")},
	}
	assert.Equal(t, "import db from '$lib/db';", Import(text, alias, fromDir, toDir))
}

func TestClientCall(t *testing.T) {
	t.Parallel()

	got := ClientCall("/api/server_add_0123456789ab", []string{"1", "2"}, false)
	assert.Equal(t,
		`fetch("/api/server_add_0123456789ab", { method: "POST", headers: { "Content-Type": "application/json" }, body: JSON.stringify({"0":1,"1":2}) }).then((r) => r.json())`,
		got)

	none := ClientCall("/api/server_ping_1", nil, false)
	assert.Contains(t, none, "JSON.stringify({})")

	spread := ClientCall("/api/server_sum_1", []string{"first", "...rest"}, true)
	assert.Contains(t, spread, "JSON.stringify(Object.assign({}, [first, ...rest]))")
}
