package reporter

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rustsec-audit-action/pkg/advisory"
)

type TableReporter struct{}

func (r *TableReporter) Report(w io.Writer, rep Report) error {
	if len(rep.Findings) == 0 {
		_, err := fmt.Fprintln(w, "No advisories found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPACKAGE\tKIND\tTITLE")
	fmt.Fprintln(tw, "--\t-------\t----\t-----")

	for _, f := range rep.Findings {
		title := f.Title
		if title == "" {
			title = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			displayID(f),
			f.Package,
			kindColumn(f),
			title,
		)
	}
	return tw.Flush()
}

// kindColumn is level/kind, followed by the severity when the advisory has one.
func kindColumn(f advisory.Finding) string {
	col := fmt.Sprintf("%s/%s", f.Level(), f.Kind)
	if f.Severity != "" {
		col += " (" + f.Severity + ")"
	}
	return col
}

// displayID is the ID, else the aliases, else "-".
func displayID(f advisory.Finding) string {
	if f.ID != "" {
		return f.ID
	}
	if len(f.Aliases) > 0 {
		return strings.Join(f.Aliases, ",")
	}
	return "-"
}
