// Package report renders a per-decorator summary of a run as a table.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/bndr/gotabulate"

	"github.com/phobologic/gqldesc/internal/transform"
)

// Status values shown in the table.
const (
	StatusRewritten = "rewritten"
	StatusSkipped   = "skipped"
)

var headers = []string{"file", "line", "member", "decorator", "shape", "status"}

// Rows returns one row per rewritten or skipped decorator, file by file in
// the order given.
func Rows(results []*transform.Result) [][]any {
	var rows [][]any
	for _, res := range results {
		if res == nil {
			continue
		}
		for _, c := range res.Changes {
			rows = append(rows, []any{
				res.Path,
				strconv.Itoa(c.Line),
				c.Class + "." + c.Member,
				"@" + c.Decorator,
				string(c.Shape),
				StatusRewritten,
			})
		}
		for _, s := range res.Skipped {
			rows = append(rows, []any{
				res.Path,
				strconv.Itoa(s.Line),
				s.Class + "." + s.Member,
				"@" + s.Decorator,
				fmt.Sprintf("%d args", s.Args),
				StatusSkipped + ": " + s.Reason,
			})
		}
	}
	return rows
}

// Write renders the table for results to w followed by a totals line.
func Write(w io.Writer, results []*transform.Result) error {
	rows := Rows(results)
	changed, skipped := 0, 0
	for _, res := range results {
		if res == nil {
			continue
		}
		changed += len(res.Changes)
		skipped += len(res.Skipped)
	}

	if len(rows) > 0 {
		t := gotabulate.Create(rows)
		t.SetHeaders(headers)
		t.SetAlign("left")
		if _, err := io.WriteString(w, t.Render("grid")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d rewritten, %d skipped in %d files\n", changed, skipped, countFiles(results))
	return err
}

func countFiles(results []*transform.Result) int {
	n := 0
	for _, res := range results {
		if res != nil {
			n++
		}
	}
	return n
}
