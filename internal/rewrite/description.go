package rewrite

import (
	"strings"

	"github.com/phobologic/gqldesc/internal/model"
)

// Description concatenates the typegraphql tag text of every doc block on m.
// Within a block the last tag wins; each contributing block adds its text
// followed by "\n". The result is empty when no block carries the tag.
func Description(m *model.Member) string {
	var b strings.Builder
	for _, block := range m.Docs {
		text, _ := block.Last(TagName)
		if text == "" {
			continue
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String()
}
