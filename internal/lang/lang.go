// Package lang provides a grammar registry mapping component documents and
// their script blocks to tree-sitter languages.
package lang

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// Language holds tree-sitter configuration for a supported grammar.
type Language struct {
	Name       string
	Extensions []string
	lang       *sitter.Language

	// ScriptAliases lists the values of a <script lang="..."> attribute that
	// select this grammar.
	ScriptAliases []string
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// Names of the registered grammars.
const (
	Svelte     = "svelte"
	JavaScript = "javascript"
	TypeScript = "typescript"
)

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[strings.ToLower(ext)]
}

// ForScript returns the script grammar selected by a <script lang="...">
// attribute value. An empty or unknown value selects JavaScript.
func ForScript(attr string) *Language {
	attr = strings.ToLower(strings.TrimSpace(attr))
	if attr != "" {
		for _, l := range Languages {
			for _, alias := range l.ScriptAliases {
				if alias == attr {
					return l
				}
			}
		}
	}
	return Languages[JavaScript]
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
