// Package jsdoc extracts the block tags of /** ... */ comments.
package jsdoc

import (
	"strings"
	"unicode"
)

// Tag is a block tag such as "@typegraphql Some text".
type Tag struct {
	Name string
	Text string
}

// Block is a parsed doc comment. Free text before the first tag is not
// kept.
type Block struct {
	Tags []Tag
}

// IsDocComment reports whether a comment is a JSDoc block. "/**/" is an
// ordinary empty block comment.
func IsDocComment(comment string) bool {
	return strings.HasPrefix(comment, "/**") && comment != "/**/" && strings.HasSuffix(comment, "*/")
}

// Parse parses the raw text of a doc comment, including its delimiters.
// ok is false when comment is not a JSDoc block.
//
// Block tags are only recognized at the start of a line, after the optional
// leading "*" gutter. Tag text runs until the next block tag; its lines are
// joined with "\n" and surrounding whitespace is trimmed.
func Parse(comment string) (Block, bool) {
	if !IsDocComment(comment) {
		return Block{}, false
	}
	body := comment[len("/**") : len(comment)-len("*/")]
	body = strings.ReplaceAll(body, "\r\n", "\n")

	var (
		b       Block
		current *Tag
		text    []string
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.TrimSpace(strings.Join(text, "\n"))
		b.Tags = append(b.Tags, *current)
		current, text = nil, nil
	}

	for _, line := range strings.Split(body, "\n") {
		line = stripGutter(line)
		if name, rest, ok := cutTag(line); ok {
			flush()
			current = &Tag{Name: name}
			text = []string{rest}
			continue
		}
		if current != nil {
			text = append(text, line)
		}
	}
	flush()
	return b, true
}

func stripGutter(line string) string {
	trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
	if !strings.HasPrefix(trimmed, "*") {
		return line
	}
	trimmed = trimmed[1:]
	if strings.HasPrefix(trimmed, " ") {
		trimmed = trimmed[1:]
	}
	return trimmed
}

// cutTag splits "@name rest" into its parts.
func cutTag(line string) (name, rest string, ok bool) {
	line = strings.TrimLeftFunc(line, unicode.IsSpace)
	if !strings.HasPrefix(line, "@") {
		return "", "", false
	}
	end := 1
	for end < len(line) {
		r := rune(line[end])
		if r >= 0x80 || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$' || r == '-') {
			break
		}
		end++
	}
	if end == 1 {
		return "", "", false
	}
	return line[1:end], strings.TrimLeftFunc(line[end:], unicode.IsSpace), true
}
