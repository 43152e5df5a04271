package reporter

import (
	"fmt"
	"io"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/rustsec-audit-action/pkg/advisory"
)

const (
	toolName = "rustsec-audit"
	toolURI  = "https://rustsec.org"
)

type SARIFReporter struct{}

func (r *SARIFReporter) Report(w io.Writer, rep Report) error {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return fmt.Errorf("create SARIF report: %w", err)
	}
	run := sarif.NewRunWithInformationURI(toolName, toolURI)

	for _, f := range rep.Findings {
		ruleID := ruleID(f)
		rule := run.AddRule(ruleID).
			WithDescription(Title(f)).
			WithMarkdownHelp(DetailsTable(f))
		if f.URL != "" {
			rule.WithHelpURI(f.URL)
		}

		run.CreateResultForRule(ruleID).
			WithLevel(sarifLevel(f.Level())).
			WithMessage(sarif.NewTextMessage(fmt.Sprintf("%s in %s", Title(f), f.Package))).
			AddLocation(sarif.NewLocationWithPhysicalLocation(
				sarif.NewPhysicalLocation().
					WithArtifactLocation(sarif.NewSimpleArtifactLocation(lockfilePath(rep))),
			))
	}

	report.AddRun(run)
	return report.PrettyWrite(w)
}

func ruleID(f advisory.Finding) string {
	if f.ID != "" {
		return f.ID
	}
	return string(advisory.Key(f))
}

func sarifLevel(l advisory.Level) string {
	switch l {
	case advisory.LevelError:
		return "error"
	case advisory.LevelWarning:
		return "warning"
	default:
		return "note"
	}
}
