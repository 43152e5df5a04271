package reporter

import (
	"fmt"
	"io"

	"github.com/rustsec-audit-action/pkg/advisory"
)

// Report is the input of every output format.
type Report struct {
	Findings []advisory.Finding
	// Ignored holds findings suppressed by the ignore list. Only the
	// machine-readable formats include them.
	Ignored []advisory.Finding
	// Lockfile is the path reported as the location of every finding.
	Lockfile string
	// DenyWarnings marks warnings as failing the run, as they do in the exit code.
	DenyWarnings bool
}

type Reporter interface {
	Report(w io.Writer, r Report) error
}

// Formats lists the accepted output format names.
var Formats = []string{"table", "markdown", "json", "sarif", "openvex"}

func KnownFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

func New(format string) (Reporter, error) {
	switch format {
	case "", "table":
		return &TableReporter{}, nil
	case "markdown":
		return &MarkdownReporter{}, nil
	case "json":
		return &JSONReporter{}, nil
	case "sarif":
		return &SARIFReporter{}, nil
	case "openvex":
		return &OpenVEXReporter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

func lockfilePath(r Report) string {
	if r.Lockfile == "" {
		return "Cargo.lock"
	}
	return r.Lockfile
}
