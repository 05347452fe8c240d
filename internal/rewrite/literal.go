package rewrite

import (
	"bytes"

	"github.com/phobologic/gqldesc/internal/edit"
	"github.com/phobologic/gqldesc/internal/model"
)

// objectLiteral returns the text of a new object literal holding only the
// description property.
func objectLiteral(value string) string {
	return "{" + PropertyName + ": " + value + "}"
}

// mergeProperty returns the edits that put "description: value" into obj.
// Existing description entries are all removed and a fresh one appended
// after the remaining properties when override is set, and left alone
// otherwise. ok is false when obj was left alone.
func mergeProperty(src []byte, obj *model.ObjectLiteral, value string, override bool) (edits []edit.Edit, ok bool) {
	entry := PropertyName + ": " + value
	props := obj.Properties

	if obj.Property(PropertyName) >= 0 && !override {
		return nil, false
	}

	// Index of the last property that stays.
	keep := -1
	for i, p := range props {
		if p.Name != PropertyName {
			keep = i
		}
	}

	switch {
	case len(props) == 0:
		inner := obj.Inner()
		return []edit.Edit{edit.Replace(inner.Start, inner.End, entry)}, true
	case keep < 0:
		// Only descriptions: replace them all with the new entry.
		return []edit.Edit{edit.Replace(props[0].Span.Start, props[len(props)-1].Span.End, entry)}, true
	}

	// Runs of descriptions before the last kept property are deleted up to
	// the start of the property that follows them.
	for i := 0; i < keep; i++ {
		if props[i].Name != PropertyName {
			continue
		}
		j := i
		for props[j+1].Name == PropertyName {
			j++
		}
		edits = append(edits, edit.Delete(props[i].Span.Start, props[j+1].Span.Start))
		i = j
	}

	last := props[keep]
	sep := separator(src, obj, last)
	if keep == len(props)-1 {
		return append(edits, edit.Insert(last.Span.End, sep+entry)), true
	}
	// Trailing descriptions: drop them with their separators and write the
	// new entry in their place.
	return append(edits, edit.Replace(last.Span.End, props[len(props)-1].Span.End, sep+entry)), true
}

// separator returns the text placed between last and a new entry. Literals
// that keep their entries on separate lines get a new line indented like
// last; everything else gets ", ".
func separator(src []byte, obj *model.ObjectLiteral, last model.ObjectProperty) string {
	if bytes.IndexByte(src[obj.Span.Start:last.Span.Start], '\n') < 0 {
		return ", "
	}
	lineStart := bytes.LastIndexByte(src[:last.Span.Start], '\n') + 1
	indentEnd := lineStart
	for indentEnd < last.Span.Start && (src[indentEnd] == ' ' || src[indentEnd] == '\t') {
		indentEnd++
	}
	newline := "\n"
	if lineStart >= 2 && src[lineStart-2] == '\r' {
		newline = "\r\n"
	}
	return "," + newline + string(src[lineStart:indentEnd])
}
