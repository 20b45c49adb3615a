// Package transform drives extraction of tagged functions: the build-start
// sweep that materializes endpoint modules, and the per-document rewrite of
// call sites into network requests.
package transform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/phobologic/remotefn/internal/config"
	"github.com/phobologic/remotefn/internal/discover"
	"github.com/phobologic/remotefn/internal/emit"
	"github.com/phobologic/remotefn/internal/graph"
	"github.com/phobologic/remotefn/internal/lang"
	"github.com/phobologic/remotefn/internal/locate"
	"github.com/phobologic/remotefn/internal/model"
	"github.com/phobologic/remotefn/internal/parse"
	"github.com/phobologic/remotefn/internal/splice"
	"github.com/phobologic/remotefn/internal/stableid"
	"github.com/phobologic/remotefn/internal/usage"
)

// Option configures a Transformer.
type Option func(*Transformer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Transformer) { t.log = l }
}

// Transformer holds the state of one build. It is not safe for concurrent
// use.
type Transformer struct {
	cfg     *config.Config
	ids     stableid.Generator
	emitter *emit.Emitter
	log     zerolog.Logger
}

// New returns a Transformer for cfg. It does not touch the filesystem.
func New(cfg *config.Config, opts ...Option) (*Transformer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Transformer{
		cfg: cfg,
		ids: stableid.Generator{
			Root:      cfg.Root,
			OutputDir: cfg.OutputPath(),
			RouteBase: cfg.RouteBase,
			Length:    cfg.IDLength,
		},
		emitter: emit.New(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Config returns the configuration the transformer was built with.
func (t *Transformer) Config() *config.Config { return t.cfg }

// Writes returns how many endpoint files the transformer has written.
func (t *Transformer) Writes() int { return t.emitter.Writes() }

// Plan is the set of endpoints the current sources call for.
type Plan struct {
	Documents int
	Endpoints []model.Endpoint
	Failed    int
}

// SweepReport summarizes a sweep.
type SweepReport struct {
	Documents int
	Endpoints int
	Written   int
	Removed   int
	Failed    int
}

// Plan discovers every document under the source directory and renders the
// endpoints of its tagged functions without writing anything. Documents that
// fail to parse are logged and skipped.
func (t *Transformer) Plan(ctx context.Context) (Plan, error) {
	var plan Plan
	files, err := discover.Files(t.cfg.Root, discover.Options{
		Dir:        relDir(t.cfg.Root, t.cfg.SourcePath()),
		Extensions: t.cfg.Extensions,
		Exclude:    t.cfg.Exclude,
	})
	if err != nil {
		return plan, fmt.Errorf("discovering documents: %w", err)
	}

	var all []model.Endpoint
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return plan, err
		}
		path := filepath.Join(t.cfg.Root, f.Path)
		data, err := os.ReadFile(path)
		if err != nil {
			t.log.Warn().Err(err).Str("doc", f.Path).Msg("skipping unreadable document")
			plan.Failed++
			continue
		}
		text := string(data)
		if !strings.Contains(text, t.cfg.Prefix) {
			continue
		}
		plan.Documents++

		eps, err := t.documentEndpoints(ctx, text, path)
		if err != nil {
			t.log.Warn().Err(err).Str("doc", f.Path).Msg("skipping document")
			plan.Failed++
			continue
		}
		all = append(all, eps...)
	}
	eps, collisions := t.unique(all)
	plan.Endpoints = eps
	plan.Failed += collisions
	return plan, nil
}

// unique drops every endpoint whose file an earlier endpoint already claims,
// logging each collision. It returns the kept endpoints in order and the
// number dropped.
func (t *Transformer) unique(eps []model.Endpoint) ([]model.Endpoint, int) {
	byFile := make(map[string]model.Endpoint, len(eps))
	kept := make([]model.Endpoint, 0, len(eps))
	dropped := 0
	for _, ep := range eps {
		if prev, dup := byFile[ep.FilePath]; dup {
			t.log.Error().
				Str("function", ep.Function).
				Str("doc", ep.Document).
				Str("other", prev.Document).
				Str("route", ep.Route).
				Msg("endpoint id collision, skipping")
			dropped++
			continue
		}
		byFile[ep.FilePath] = ep
		kept = append(kept, ep)
	}
	return kept, dropped
}

// Sweep brings the output directory in line with the sources: it plans every
// endpoint, removes the generated directories no longer planned along with
// any other file inside the planned ones, and then writes the planned endpoints whose content changed. All removals happen
// before any write. Per-document and per-endpoint failures are logged and
// counted, never returned.
func (t *Transformer) Sweep(ctx context.Context) (SweepReport, error) {
	plan, err := t.Plan(ctx)
	report := SweepReport{Documents: plan.Documents, Endpoints: len(plan.Endpoints), Failed: plan.Failed}
	if err != nil {
		return report, err
	}

	keep := make(map[string]string, len(plan.Endpoints))
	for _, ep := range plan.Endpoints {
		keep[filepath.Base(filepath.Dir(ep.FilePath))] = filepath.Base(ep.FilePath)
	}
	removed, err := t.Cleanup(keep)
	report.Removed = removed
	if err != nil {
		return report, err
	}

	for _, ep := range plan.Endpoints {
		wrote, err := t.emitter.Write(ep)
		if err != nil {
			t.log.Error().Err(err).Str("function", ep.Function).Str("path", ep.FilePath).Msg("writing endpoint")
			report.Failed++
			continue
		}
		if wrote {
			report.Written++
			t.log.Debug().Str("function", ep.Function).Str("route", ep.Route).Msg("wrote endpoint")
		}
	}

	t.log.Info().
		Int("documents", report.Documents).
		Int("endpoints", report.Endpoints).
		Int("written", report.Written).
		Int("removed", report.Removed).
		Int("failed", report.Failed).
		Msg("sweep complete")
	return report, nil
}

// Cleanup removes every directory under the output directory whose name
// starts with the prefix and is not in keep. keep maps a directory name to
// the handler file it should hold; every other entry of a kept directory is
// removed too. It returns how many directories and files were removed. A
// missing output directory is not an error.
func (t *Transformer) Cleanup(keep map[string]string) (int, error) {
	out := t.cfg.OutputPath()
	entries, err := os.ReadDir(out)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", out, err)
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !strings.HasPrefix(name, t.cfg.Prefix) {
			continue
		}
		path := filepath.Join(out, name)
		if handler, ok := keep[name]; ok {
			removed += t.removeStrays(path, handler)
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			t.log.Error().Err(err).Str("path", path).Msg("removing stale endpoint")
			continue
		}
		t.log.Debug().Str("path", path).Msg("removed stale endpoint")
		removed++
	}
	return removed, nil
}

// removeStrays deletes every entry of the endpoint directory dir other than
// handler, such as the handler left behind when a document switches between
// JavaScript and TypeScript.
func (t *Transformer) removeStrays(dir, handler string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			t.log.Error().Err(err).Str("path", dir).Msg("reading endpoint directory")
		}
		return 0
	}
	removed := 0
	for _, e := range entries {
		if e.Name() == handler {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			t.log.Error().Err(err).Str("path", path).Msg("removing stale handler")
			continue
		}
		t.log.Debug().Str("path", path).Msg("removed stale handler")
		removed++
	}
	return removed
}

// Transform rewrites one document: every call to a tagged function becomes a
// request to its endpoint, the tagged definitions are removed, and imports
// only they used are pruned. Unsupported, excluded, and prefix-free
// documents are returned untouched without parsing. Any parse failure
// returns content unchanged.
func (t *Transformer) Transform(content, path string) string {
	if !t.cfg.Supported(path) || t.cfg.Excluded(t.relPath(path)) {
		return content
	}
	if !strings.Contains(content, t.cfg.Prefix) {
		return content
	}

	out, eps, err := t.rewrite(content, path)
	if err != nil {
		t.log.Warn().Err(err).Str("doc", path).Msg("leaving document untransformed")
		return content
	}
	if t.cfg.EmitOnTransform {
		for _, ep := range eps {
			t.removeStrays(filepath.Dir(ep.FilePath), filepath.Base(ep.FilePath))
			if _, err := t.emitter.Write(ep); err != nil {
				t.log.Error().Err(err).Str("function", ep.Function).Str("path", ep.FilePath).Msg("writing endpoint")
			}
		}
	}
	return out
}

func (t *Transformer) rewrite(content, path string) (string, []model.Endpoint, error) {
	rel := t.relPath(path)
	doc, err := parse.Parse(content)
	if err != nil {
		return "", nil, err
	}
	fns := locate.TaggedFunctions(doc, t.cfg.Prefix, rel)
	if len(fns) == 0 {
		doc.Close()
		return content, nil, nil
	}
	eps, err := t.endpoints(doc, path, fns)
	if err != nil {
		doc.Close()
		return "", nil, err
	}
	routes := make(map[string]string, len(eps))
	for _, ep := range eps {
		routes[ep.Function] = ep.Route
	}
	removedRefs := usage.Set{}
	for _, fn := range fns {
		for name := range usage.Within(doc, fn.Definition) {
			removedRefs[name] = struct{}{}
		}
	}
	doc.Close()

	text := content
	for _, fn := range locate.Descending(fns) {
		text, err = t.extract(text, rel, fn.Name, routes[fn.Name])
		if err != nil {
			return "", nil, fmt.Errorf("extracting %s: %w", fn.Name, err)
		}
	}

	text, err = prune(text, removedRefs)
	if err != nil {
		return "", nil, err
	}

	check, err := parse.Parse(text)
	if err != nil {
		return "", nil, fmt.Errorf("rewritten document: %w", err)
	}
	check.Close()
	return text, eps, nil
}

// extract rewrites the call sites of the tagged function name and deletes its
// definition, working on a fresh parse of text.
func (t *Transformer) extract(text, rel, name, route string) (string, error) {
	doc, err := parse.Parse(text)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	current := locate.TaggedFunctions(doc, t.cfg.Prefix, rel)
	fn, ok := locate.Find(current, name)
	if !ok {
		return text, nil
	}
	defs := make([]model.Span, len(current))
	for i, f := range current {
		defs[i] = f.Definition
	}
	// Calls inside tagged definitions run on the server.
	sites := locate.Outside(locate.CallSites(doc, name), defs)

	edits, err := callEdits(text, sites, route)
	if err != nil {
		return "", err
	}
	edits = append(edits, splice.Delete(fn.Removal()))
	return splice.Apply(text, edits)
}

// callEdits returns one edit per outermost call site. Calls nested in the
// arguments of another call are rendered into that call's replacement.
func callEdits(text string, sites []model.CallSite, route string) ([]splice.Edit, error) {
	var edits []splice.Edit
	for _, s := range outermost(sites, model.Span{Start: 0, End: len(text)}) {
		repl, err := clientCall(text, s, sites, route)
		if err != nil {
			return nil, err
		}
		edits = append(edits, splice.Replace(s.Full, repl))
	}
	return edits, nil
}

func clientCall(text string, site model.CallSite, all []model.CallSite, route string) (string, error) {
	args := make([]string, len(site.Args))
	for i, arg := range site.Args {
		var inner []splice.Edit
		for _, s := range outermost(all, arg) {
			repl, err := clientCall(text, s, all, route)
			if err != nil {
				return "", err
			}
			inner = append(inner, splice.Replace(s.Full, repl))
		}
		rendered, err := splice.Within(text, arg, inner)
		if err != nil {
			return "", err
		}
		args[i] = rendered
	}
	return emit.ClientCall(route, args, site.Spread), nil
}

// outermost returns the sites inside span that no other site inside span
// encloses.
func outermost(sites []model.CallSite, span model.Span) []model.CallSite {
	var out []model.CallSite
	for i, s := range sites {
		if !span.Contains(s.Full) {
			continue
		}
		nested := false
		for j, o := range sites {
			if i != j && span.Contains(o.Full) && o.Full.Contains(s.Full) && o.Full != s.Full {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, s)
		}
	}
	return out
}

// prune removes the imports of the instance script that bind a name used by
// a removed function and are no longer used anywhere.
func prune(text string, removedRefs usage.Set) (string, error) {
	doc, err := parse.Parse(text)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	used := usage.Remaining(doc)
	var edits []splice.Edit
	for _, imp := range usage.Imports(doc) {
		if usage.Binds(imp, removedRefs) && usage.Prunable(imp, used) {
			edits = append(edits, splice.Delete(imp.Span))
		}
	}
	return splice.Apply(text, edits)
}

func (t *Transformer) documentEndpoints(ctx context.Context, text, path string) ([]model.Endpoint, error) {
	doc, err := parse.ParseCtx(ctx, text)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	fns := locate.TaggedFunctions(doc, t.cfg.Prefix, t.relPath(path))
	return t.endpoints(doc, path, fns)
}

// endpoints renders one endpoint per tagged function of doc.
func (t *Transformer) endpoints(doc *parse.Document, path string, fns []model.TaggedFunction) ([]model.Endpoint, error) {
	if len(fns) == 0 {
		return nil, nil
	}
	ids := t.ids
	ts := doc.Primary() != nil && doc.Primary().Lang.Name == lang.TypeScript
	if ts {
		ids.Handler = "+server.ts"
	}
	g := graph.Build(doc)
	fromDir := filepath.Dir(t.absPath(path))

	eps := make([]model.Endpoint, 0, len(fns))
	for _, fn := range fns {
		loc, err := ids.Locate(fn.Name, path)
		if err != nil {
			return nil, err
		}
		req := g.Closure(fn.Name)
		src := emit.Source{
			Function:   fn.Name,
			Definition: fn.Definition.Text(doc.Text),
			Document:   loc.Document,
			TypeScript: ts,
		}
		for _, d := range req.Functions {
			src.Helpers = append(src.Helpers, d.Span.Text(doc.Text))
		}
		for _, imp := range req.Imports {
			src.Imports = append(src.Imports, emit.Import(doc.Text, imp, fromDir, loc.Dir))
		}
		content, err := t.emitter.Render(src)
		if err != nil {
			return nil, err
		}
		eps = append(eps, model.Endpoint{
			ID:       loc.ID,
			Function: fn.Name,
			Document: loc.Document,
			FilePath: loc.File,
			Route:    loc.Route,
			Content:  content,
		})
	}
	return eps, nil
}

func (t *Transformer) absPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(t.cfg.Root, path)
}

// relPath returns path relative to the project root, or path itself when it
// lies outside the root.
func (t *Transformer) relPath(path string) string {
	rel, err := stableid.Relative(t.cfg.Root, path)
	if err != nil || strings.HasPrefix(rel, "../") {
		return filepath.ToSlash(path)
	}
	return rel
}

func relDir(root, dir string) string {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return ""
	}
	return rel
}
