package reporter

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	passStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
)

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Console prints the run summary for a human. On a terminal the markdown
// report is rendered with glamour, elsewhere the plain table is printed.
func Console(w io.Writer, rep Report, failed bool) error {
	if IsTerminal(w) {
		var md bytes.Buffer
		if err := (&MarkdownReporter{}).Report(&md, rep); err != nil {
			return err
		}
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err == nil {
			out, err := renderer.Render(md.String())
			if err == nil {
				fmt.Fprint(w, out)
				fmt.Fprintln(w, verdict(failed, true))
				return nil
			}
		}
		// fall back to the table
	}

	fmt.Fprintln(w, Summary(rep.Findings))
	if err := (&TableReporter{}).Report(w, rep); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, verdict(failed, IsTerminal(w)))
	return err
}

func verdict(failed, styled bool) string {
	text, style := "PASS: no actionable findings", passStyle
	if failed {
		text, style = "FAIL: actionable findings present", failStyle
	}
	if !styled {
		return text
	}
	return style.Render(text)
}
