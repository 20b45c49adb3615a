package lang

import (
	"github.com/smacker/go-tree-sitter/svelte"
)

func init() {
	Languages[Svelte] = &Language{
		Name:       Svelte,
		Extensions: []string{".svelte"},
		lang:       svelte.GetLanguage(),
	}
}
