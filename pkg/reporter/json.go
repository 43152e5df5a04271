package reporter

import (
	"encoding/json"
	"io"

	"github.com/rustsec-audit-action/pkg/advisory"
)

type JSONReporter struct{}

func (r *JSONReporter) Report(w io.Writer, rep Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	type output struct {
		Count    int                `json:"count"`
		Summary  string             `json:"summary"`
		Findings []advisory.Finding `json:"findings"`
		Ignored  []advisory.Finding `json:"ignored,omitempty"`
	}

	findings := rep.Findings
	if findings == nil {
		findings = []advisory.Finding{}
	}
	return enc.Encode(output{
		Count:    len(findings),
		Summary:  Summary(findings),
		Findings: findings,
		Ignored:  rep.Ignored,
	})
}
