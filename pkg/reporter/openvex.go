package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/openvex/go-vex/pkg/vex"

	"github.com/rustsec-audit-action/pkg/advisory"
)

const ignoredImpact = "Ignored in the repository audit configuration."

// OpenVEXReporter writes an OpenVEX document. Active findings are "affected",
// ignored ones "not_affected". Findings without an advisory ID are skipped.
type OpenVEXReporter struct{}

func (r *OpenVEXReporter) Report(w io.Writer, rep Report) error {
	doc := vex.New()
	doc.Author = toolName
	doc.AuthorRole = "Dependency audit"

	for _, f := range rep.Findings {
		if f.ID == "" {
			continue
		}
		stmt := statement(f)
		stmt.Status = vex.StatusAffected
		stmt.ActionStatement = actionStatement(f)
		doc.Statements = append(doc.Statements, stmt)
	}
	for _, f := range rep.Ignored {
		if f.ID == "" {
			continue
		}
		stmt := statement(f)
		stmt.Status = vex.StatusNotAffected
		stmt.ImpactStatement = ignoredImpact
		doc.Statements = append(doc.Statements, stmt)
	}

	if _, err := doc.GenerateCanonicalID(); err != nil {
		return fmt.Errorf("generate OpenVEX document ID: %w", err)
	}
	return doc.ToJSON(w)
}

func statement(f advisory.Finding) vex.Statement {
	var aliases []vex.VulnerabilityID
	for _, a := range f.Aliases {
		aliases = append(aliases, vex.VulnerabilityID(a))
	}
	return vex.Statement{
		Vulnerability: vex.Vulnerability{
			Name:        vex.VulnerabilityID(f.ID),
			Description: f.Title,
			Aliases:     aliases,
		},
		Products: []vex.Product{
			{
				Component: vex.Component{
					ID: purl(f.Package),
				},
			},
		},
	}
}

func actionStatement(f advisory.Finding) string {
	if len(f.Patched) == 0 {
		return fmt.Sprintf("No patched version of %s is available.", f.Package.Name)
	}
	return fmt.Sprintf("Upgrade %s to %s.", f.Package.Name, strings.Join(f.Patched, " or "))
}

func purl(p advisory.Package) string {
	return "pkg:cargo/" + p.String()
}
