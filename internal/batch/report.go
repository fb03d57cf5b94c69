package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Report is the JSON form of a batch run
type Report struct {
	Summary Summary  `json:"summary"`
	Results []Result `json:"results"`
}

// WriteJSON writes results and their summary as indented JSON
func WriteJSON(w io.Writer, results []Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Report{Summary: Summarize(results), Results: results})
}

// WriteText writes a human readable report: each assembled prompt, each
// violation and a closing summary line.
func WriteText(w io.Writer, results []Result) error {
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "=== %s [%s]\n", r.ID, r.Status)
		switch {
		case r.Result != nil:
			b.WriteString(r.Result.Prompt)
			b.WriteString("\n")
			if len(r.Result.Ignored) > 0 {
				fmt.Fprintf(&b, "(ignored: %s)\n", strings.Join(r.Result.Ignored, ", "))
			}
		case len(r.Violations) > 0:
			for _, v := range r.Violations {
				fmt.Fprintf(&b, "  - %s [%s]: %s\n", v.Element, v.Reason, v.Message)
			}
		case r.Error != "":
			fmt.Fprintf(&b, "  error: %s\n", r.Error)
		}
		b.WriteString("\n")
	}

	s := Summarize(results)
	fmt.Fprintf(&b, "%d cases: %d assembled, %d rejected, %d failed\n", s.Total, s.Assembled, s.Rejected, s.Failed)

	_, err := io.WriteString(w, b.String())
	return err
}
