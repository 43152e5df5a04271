package reporter

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rustsec-audit-action/pkg/advisory"
)

// SummaryHeading opens the markdown report and the step summary.
const SummaryHeading = "# Rustsec Advisories"

var detailsTmpl = template.Must(template.New("details").Funcs(template.FuncMap{
	"joinOr": joinOr,
}).Parse(`| Details | |
| --- | --- |
| Package | ` + "`{{ .Package.Name }}`" + ` |
| Version | ` + "`{{ .Package.Version }}`" + ` |
{{- if ne .Kind.String "vulnerability" }}
| Warning | {{ .Kind }} |
{{- end }}
{{- if .Severity }}
| Severity | ` + "`{{ .Severity }}`" + ` |
{{- end }}
{{- if .Aliases }}
| Aliases | {{ range $i, $a := .Aliases }}{{ if $i }}, {{ end }}{{ $a }}{{ end }} |
{{- end }}
{{- if .Date }}
| Date | {{ .Date }} |
{{- end }}
{{- if .URL }}
| URL | <{{ .URL }}> |
{{- end }}
| Patched Versions | {{ with joinOr .Patched }}` + "`{{ . }}`" + `{{ else }}n/a{{ end }} |
{{- with joinOr .Unaffected }}
| Unaffected Versions | ` + "`{{ . }}`" + ` |
{{- end }}
`))

var entryTmpl = template.Must(template.New("entry").Parse(`## {{ .Icon }} {{ .Title }}

{{ .Details }}
{{- if .Description }}

{{ .Description }}
{{- end }}
`))

type MarkdownReporter struct{}

func (r *MarkdownReporter) Report(w io.Writer, rep Report) error {
	if _, err := fmt.Fprintf(w, "%s\n\n%s\n\n", SummaryHeading, Summary(rep.Findings)); err != nil {
		return err
	}
	for _, f := range rep.Findings {
		if _, err := fmt.Fprintf(w, "%s\n", Entry(f, rep.DenyWarnings)); err != nil {
			return err
		}
	}
	return nil
}

// Summary counts findings, e.g. "1 vulnerability found. 2 warnings found (1x unmaintained, 1x yanked)."
func Summary(findings []advisory.Finding) string {
	vulns := 0
	byKind := make(map[string]int)
	for _, f := range findings {
		if f.Kind == advisory.KindVulnerability {
			vulns++
			continue
		}
		byKind[f.Kind.String()]++
	}
	warnings := len(findings) - vulns

	var sb strings.Builder
	switch vulns {
	case 0:
		sb.WriteString("No vulnerabilities found.")
	case 1:
		sb.WriteString("1 vulnerability found.")
	default:
		fmt.Fprintf(&sb, "%d vulnerabilities found.", vulns)
	}

	switch warnings {
	case 0:
		sb.WriteString(" No warnings found.")
	case 1:
		sb.WriteString(" 1 warning found.")
	default:
		kinds := make([]string, 0, len(byKind))
		for k := range byKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		parts := make([]string, 0, len(kinds))
		for _, k := range kinds {
			parts = append(parts, fmt.Sprintf("%dx %s", byKind[k], k))
		}
		fmt.Fprintf(&sb, " %d warnings found (%s).", warnings, strings.Join(parts, ", "))
	}
	return sb.String()
}

// Title is the display title of a finding and the title of its tracker issue.
func Title(f advisory.Finding) string {
	switch {
	case f.ID == "" && f.Kind == advisory.KindYanked:
		return fmt.Sprintf("Yanked crate: %s", f.Package)
	case f.ID == "":
		return fmt.Sprintf("%s warning: %s", kindLabel(f.Kind), f.Package)
	case f.Title == "":
		return fmt.Sprintf("%s: %s in %s", f.ID, kindLabel(f.Kind), f.Package)
	default:
		return fmt.Sprintf("%s: %s", f.ID, f.Title)
	}
}

// DetailsTable renders the markdown details table of a finding.
func DetailsTable(f advisory.Finding) string {
	var buf bytes.Buffer
	if err := detailsTmpl.Execute(&buf, f); err != nil {
		return fmt.Sprintf("Error rendering details table: %v", err)
	}
	return buf.String()
}

// Entry renders one finding as a markdown section. With denyWarnings every
// warning is shown as failing.
func Entry(f advisory.Finding, denyWarnings bool) string {
	data := struct {
		Icon        string
		Title       string
		Details     string
		Description string
	}{
		Icon:        icon(f.Level(), denyWarnings),
		Title:       Title(f),
		Details:     DetailsTable(f),
		Description: strings.TrimSpace(f.Description),
	}

	var buf bytes.Buffer
	if err := entryTmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error rendering entry template: %v", err)
	}
	return buf.String()
}

func icon(l advisory.Level, denyWarnings bool) string {
	switch {
	case l == advisory.LevelError, denyWarnings && l == advisory.LevelWarning:
		return "🛑"
	case l == advisory.LevelWarning:
		return "⚠️"
	default:
		return ""
	}
}

func kindLabel(k advisory.Kind) string {
	return cases.Title(language.Und).String(k.String())
}

func joinOr(versions []string) string {
	return strings.Join(versions, " OR ")
}
