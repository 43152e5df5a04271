package issues

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/rustsec-audit-action/pkg/advisory"
	"github.com/rustsec-audit-action/pkg/reporter"
)

var issueBodyTmpl = template.Must(template.New("issue_body").Parse(`{{ .Details }}
{{- if .Description }}

{{ .Description }}
{{- end }}

{{ .Marker }}
`))

var updatedCommentTmpl = template.Must(template.New("updated_comment").Parse(`The advisory details for ` + "`{{ .Key }}`" + ` changed and this issue was updated.
{{- if .Patched }}

Patched versions: ` + "`{{ .Patched }}`" + `
{{- end }}
`))

// RenderFunc produces the title and body of the issue tracking a finding.
type RenderFunc func(f advisory.Finding) (title, body string)

// Render is the default RenderFunc. The body ends with the key marker so the
// issue can be matched on later runs.
func Render(f advisory.Finding) (title, body string) {
	return reporter.Title(f), RenderBody(f)
}

func RenderBody(f advisory.Finding) string {
	data := struct {
		Details     string
		Description string
		Marker      string
	}{
		Details:     strings.TrimRight(reporter.DetailsTable(f), "\n"),
		Description: strings.TrimSpace(f.Description),
		Marker:      advisory.Marker(advisory.Key(f)),
	}

	var buf bytes.Buffer
	if err := issueBodyTmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error rendering issue template: %v\n\n%s", err, data.Marker)
	}
	return buf.String()
}

func RenderUpdatedComment(f advisory.Finding) string {
	data := struct {
		Key     advisory.IssueKey
		Patched string
	}{
		Key:     advisory.Key(f),
		Patched: strings.Join(f.Patched, " OR "),
	}

	var buf bytes.Buffer
	if err := updatedCommentTmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error rendering comment template: %v", err)
	}
	return buf.String()
}
