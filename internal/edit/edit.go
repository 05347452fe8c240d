// Package edit applies byte-range replacements to source text.
package edit

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
)

// ErrOverlap is returned when two edits touch the same bytes.
var ErrOverlap = errors.New("overlapping edits")

// ErrOutOfRange is returned when an edit lies outside the source.
var ErrOutOfRange = errors.New("edit out of range")

// Edit replaces source[Start:End] with Text. Start == End inserts.
type Edit struct {
	Start int
	End   int
	Text  string
}

// Insert returns an edit inserting text at offset.
func Insert(offset int, text string) Edit {
	return Edit{Start: offset, End: offset, Text: text}
}

// Replace returns an edit replacing [start, end) with text.
func Replace(start, end int, text string) Edit {
	return Edit{Start: start, End: end, Text: text}
}

// Delete returns an edit removing [start, end).
func Delete(start, end int) Edit {
	return Edit{Start: start, End: end}
}

// Apply returns a copy of source with all edits applied. Edits may be given
// in any order; ranges must not overlap, and two insertions at the same
// offset are rejected because their order would be ambiguous. With no edits
// the source is returned unchanged.
func Apply(source []byte, edits []Edit) ([]byte, error) {
	if len(edits) == 0 {
		return source, nil
	}

	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	var buf bytes.Buffer
	buf.Grow(len(source))
	pos := 0
	prevInsert := -1
	for _, e := range sorted {
		if e.Start < 0 || e.End < e.Start || e.End > len(source) {
			return nil, fmt.Errorf("%w: [%d,%d) in %d bytes", ErrOutOfRange, e.Start, e.End, len(source))
		}
		if e.Start < pos || (e.Start == e.End && e.Start == prevInsert) {
			return nil, fmt.Errorf("%w at offset %d", ErrOverlap, e.Start)
		}
		buf.Write(source[pos:e.Start])
		buf.WriteString(e.Text)
		pos = e.End
		if e.Start == e.End {
			prevInsert = e.Start
		}
	}
	buf.Write(source[pos:])
	return buf.Bytes(), nil
}
