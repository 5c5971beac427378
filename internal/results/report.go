package results

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/BTCDecoded/bllvm-fuzz/internal/types"
)

// Report prints the human-readable session summary to w and returns the
// Summary it printed.
func (a *Aggregator) Report(w io.Writer) types.Summary {
	results := a.Results()
	summary := a.Summarize()

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	for _, res := range results {
		if res.Succeeded {
			green.Fprintf(w, "✓ %s: Completed successfully\n", res.Target)
		} else {
			red.Fprintf(w, "✗ %s: Failed\n", res.Target)
		}
	}

	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Summary: %d/%d targets completed successfully\n", summary.Succeeded, summary.Total)

	return summary
}
