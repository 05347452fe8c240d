package lang

import (
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Names of the registered languages.
const (
	TypeScript = "typescript"
	TSX        = "tsx"
)

func init() {
	Languages[TypeScript] = &Language{
		Name:       TypeScript,
		Extensions: []string{".ts", ".mts", ".cts"},
		lang:       typescript.GetLanguage(),
	}
	Languages[TSX] = &Language{
		Name:       TSX,
		Extensions: []string{".tsx"},
		lang:       tsx.GetLanguage(),
	}
}
