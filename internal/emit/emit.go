// Package emit renders endpoint modules for tagged functions and the client
// expressions that call them.
package emit

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/phobologic/remotefn/internal/model"
)

// Source is everything needed to render one endpoint module.
type Source struct {
	Function string
	// Definition is the tagged function's declaration, verbatim.
	Definition string
	// Helpers are the declarations the function depends on, verbatim.
	Helpers []string
	// Imports are the import declarations the function and its helpers need,
	// already rebased for the endpoint's location.
	Imports    []string
	Document   string
	TypeScript bool
}

var moduleTmpl = template.Must(template.New("endpoint").Parse(
	`// Code generated by remotefn from {{.Document}}. DO NOT EDIT.
import { json } from '@sveltejs/kit';
{{- range .Imports}}
{{.}}
{{- end}}
{{range .Helpers}}
{{.}}
{{end}}
{{.Definition}}

export async function POST({ request }{{if .TypeScript}}: { request: Request }{{end}}) {
	const payload{{if .TypeScript}}: Record<string, unknown>{{end}} = await request.json();
	const args{{if .TypeScript}}: unknown[]{{end}} = [];
	for (const [key, value] of Object.entries(payload)) args[Number(key)] = value;
	const result = await {{.Function}}.apply(undefined, args{{if .TypeScript}} as any{{end}});
	return json(result ?? null);
}
`))

// Emitter renders endpoint modules and writes them only when their content
// changed.
type Emitter struct {
	writes int
}

// New returns an Emitter.
func New() *Emitter {
	return &Emitter{}
}

// Render returns the module text for src.
func (e *Emitter) Render(src Source) (string, error) {
	if src.Function == "" || src.Definition == "" {
		return "", fmt.Errorf("render endpoint: missing function definition")
	}
	var buf bytes.Buffer
	if err := moduleTmpl.Execute(&buf, src); err != nil {
		return "", fmt.Errorf("render endpoint %s: %w", src.Function, err)
	}
	return buf.String(), nil
}

// Write stores ep.Content at ep.FilePath unless the file already holds
// exactly that content. It reports whether the file was written.
func (e *Emitter) Write(ep model.Endpoint) (bool, error) {
	existing, err := os.ReadFile(ep.FilePath)
	switch {
	case err == nil && string(existing) == ep.Content:
		return false, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("reading %s: %w", ep.FilePath, err)
	}

	if err := os.MkdirAll(filepath.Dir(ep.FilePath), 0o755); err != nil {
		return false, fmt.Errorf("creating %s: %w", filepath.Dir(ep.FilePath), err)
	}
	if err := os.WriteFile(ep.FilePath, []byte(ep.Content), 0o644); err != nil {
		return false, fmt.Errorf("writing %s: %w", ep.FilePath, err)
	}
	e.writes++
	return true, nil
}

// Writes returns how many files the emitter has written.
func (e *Emitter) Writes() int {
	return e.writes
}

// Import renders the import declaration imp of text for a module living in
// toDir. Relative specifiers are rebased from fromDir, the declaring
// document's directory; bare and aliased specifiers ($lib/...) are kept.
func Import(text string, imp model.ImportDeclaration, fromDir, toDir string) string {
	decl := imp.Span.Text(text)
	if !isRelative(imp.Source) || imp.SourceSpan.Empty() {
		return decl
	}
	target := filepath.Join(fromDir, filepath.FromSlash(imp.Source))
	rel, err := filepath.Rel(toDir, target)
	if err != nil {
		return decl
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, "../") {
		rel = "./" + rel
	}
	return text[imp.Span.Start:imp.SourceSpan.Start] + rel + text[imp.SourceSpan.End:imp.Span.End]
}

func isRelative(spec string) bool {
	return strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

// ClientCall renders the expression that replaces a call site: a POST to
// route whose JSON body maps each argument's position to its value.
func ClientCall(route string, args []string, spread bool) string {
	var payload string
	if spread {
		// Positions are only known at run time.
		payload = "Object.assign({}, [" + strings.Join(args, ", ") + "])"
	} else {
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = strconv.Quote(strconv.Itoa(i)) + ":" + arg
		}
		payload = "{" + strings.Join(parts, ",") + "}"
	}
	return "fetch(" + strconv.Quote(route) +
		`, { method: "POST", headers: { "Content-Type": "application/json" }, body: JSON.stringify(` +
		payload + `) }).then((r) => r.json())`
}
