// Package graph builds the dependency graph between the top-level
// declarations of a component's instance script, and resolves what an
// extracted function needs to run on its own.
package graph

import (
	"sort"
	"strconv"

	"github.com/phobologic/remotefn/internal/model"
	"github.com/phobologic/remotefn/internal/parse"
	"github.com/phobologic/remotefn/internal/usage"
)

// Kind tells imports and function declarations apart.
type Kind string

const (
	Import   Kind = "import"
	Function Kind = "function"
)

// Decl is a node of the graph.
type Decl struct {
	// Key is the function name, or "import:<index>" for imports.
	Key    string
	Kind   Kind
	Span   model.Span
	Binds  []string
	Refs   usage.Set
	Import model.ImportDeclaration
}

// Graph holds the declarations of one document snapshot and their edges.
type Graph struct {
	Decls []Decl // source order
	Deps  []model.Dependency

	byKey map[string]int
	out   map[string][]string
}

type declVisitor struct {
	parse.BaseVisitor
	decls []Decl
}

func (v *declVisitor) Declaration(d parse.Declaration) bool {
	if d.TopLevel && d.Name != "" {
		v.decls = append(v.decls, Decl{
			Key:   d.Name,
			Kind:  Function,
			Span:  d.Span(),
			Binds: []string{d.Name},
		})
	}
	return false
}

func (v *declVisitor) Other(n parse.Node) bool          { return n.Type() == "program" }
func (v *declVisitor) Call(parse.Call) bool             { return false }
func (v *declVisitor) Identifier(parse.Identifier) bool { return false }

// Build creates the graph for doc's instance script.
func Build(doc *parse.Document) *Graph {
	g := &Graph{byKey: map[string]int{}, out: map[string][]string{}}
	primary := doc.Primary()
	if primary == nil {
		return g
	}

	v := &declVisitor{}
	parse.Walk(primary, v)
	decls := v.decls
	for i, imp := range usage.Imports(doc) {
		decls = append(decls, Decl{
			Key:    importKey(i),
			Kind:   Import,
			Span:   imp.Span,
			Binds:  imp.LocalNames,
			Import: imp,
		})
	}
	sort.SliceStable(decls, func(i, j int) bool { return decls[i].Span.Start < decls[j].Span.Start })

	// Build definition index: bound name → declarations binding it
	defines := make(map[string][]string)
	for i := range decls {
		if decls[i].Kind == Function {
			decls[i].Refs = usage.Within(doc, decls[i].Span)
		}
		for _, name := range decls[i].Binds {
			defines[name] = append(defines[name], decls[i].Key)
		}
		g.byKey[decls[i].Key] = i
	}
	g.Decls = decls

	// Build edges: source → target → list of symbols
	type edgeKey struct{ src, tgt string }
	edgeSymbols := make(map[edgeKey][]string)
	for i := range decls {
		src := &decls[i]
		for _, name := range src.Refs.Sorted() {
			for _, tgt := range defines[name] {
				if tgt == src.Key {
					continue // no self-edges
				}
				key := edgeKey{src.Key, tgt}
				if !contains(edgeSymbols[key], name) {
					edgeSymbols[key] = append(edgeSymbols[key], name)
				}
			}
		}
	}

	for key, syms := range edgeSymbols {
		g.Deps = append(g.Deps, model.Dependency{Source: key.src, Target: key.tgt, Symbols: syms})
	}
	sort.Slice(g.Deps, func(i, j int) bool {
		if g.Deps[i].Source != g.Deps[j].Source {
			return g.Deps[i].Source < g.Deps[j].Source
		}
		return g.Deps[i].Target < g.Deps[j].Target
	})
	for _, d := range g.Deps {
		g.out[d.Source] = append(g.out[d.Source], d.Target)
	}
	return g
}

// Requirements is what a function needs besides its own text.
type Requirements struct {
	Imports   []model.ImportDeclaration
	Functions []Decl
}

// Closure returns the imports and top-level functions name transitively
// depends on, in source order. name itself is not included.
func (g *Graph) Closure(name string) Requirements {
	var req Requirements
	if _, ok := g.byKey[name]; !ok {
		return req
	}

	seen := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, tgt := range g.out[cur] {
			if seen[tgt] {
				continue
			}
			seen[tgt] = true
			queue = append(queue, tgt)
		}
	}

	for _, d := range g.Decls {
		if d.Key == name || !seen[d.Key] {
			continue
		}
		switch d.Kind {
		case Import:
			req.Imports = append(req.Imports, d.Import)
		case Function:
			req.Functions = append(req.Functions, d)
		}
	}
	return req
}

func importKey(i int) string {
	return "import:" + strconv.Itoa(i)
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
