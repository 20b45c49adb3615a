package lang

import (
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Script grammars carry no Extensions: they are only reached through the
// <script> blocks of a component document.
func init() {
	Languages[JavaScript] = &Language{
		Name:          JavaScript,
		lang:          javascript.GetLanguage(),
		ScriptAliases: []string{"js", "javascript"},
	}
	Languages[TypeScript] = &Language{
		Name:          TypeScript,
		lang:          typescript.GetLanguage(),
		ScriptAliases: []string{"ts", "typescript"},
	}
}
