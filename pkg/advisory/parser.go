package advisory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ParseError is returned when the report is not a JSON object or one of its
// sections has the wrong shape.
type ParseError struct {
	Section string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("parse audit report: %v", e.Err)
	}
	return fmt.Sprintf("parse audit report section %q: %v", e.Section, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// cargo audit --json report types

type auditVulnerabilities struct {
	Found bool              `json:"found"`
	Count int               `json:"count"`
	List  []json.RawMessage `json:"list"`
}

type auditEntry struct {
	Kind     string         `json:"kind"`
	Advisory *auditAdvisory `json:"advisory"`
	Package  auditPackage   `json:"package"`
	Versions *auditVersions `json:"versions"`
}

type auditAdvisory struct {
	ID            string   `json:"id"`
	Package       string   `json:"package"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Date          string   `json:"date"`
	Aliases       []string `json:"aliases"`
	Categories    []string `json:"categories"`
	Keywords      []string `json:"keywords"`
	CVSS          *string  `json:"cvss"`
	Severity      *string  `json:"severity"`
	Informational *string  `json:"informational"`
	URL           *string  `json:"url"`
}

type auditPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type auditVersions struct {
	Patched    []string `json:"patched"`
	Unaffected []string `json:"unaffected"`
}

// ParseReport converts the JSON output of `cargo audit --json` into findings.
// Vulnerabilities come first in scanner order, followed by warnings grouped by
// kind in sorted kind order. Entries that cannot be decoded keep their section
// kind when an advisory ID can be salvaged and are KindOther otherwise; only a
// malformed document yields a *ParseError.
func ParseReport(data []byte) ([]Finding, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, &ParseError{Err: err}
	}
	if top == nil {
		return nil, &ParseError{Err: fmt.Errorf("report is null")}
	}

	var findings []Finding

	if raw, ok := top["vulnerabilities"]; ok && !isNull(raw) {
		var vulns auditVulnerabilities
		if err := json.Unmarshal(raw, &vulns); err != nil {
			return nil, &ParseError{Section: "vulnerabilities", Err: err}
		}
		for _, entry := range vulns.List {
			findings = append(findings, parseEntry(entry, KindVulnerability))
		}
	}

	if raw, ok := top["warnings"]; ok && !isNull(raw) {
		var warnings map[string][]json.RawMessage
		if err := json.Unmarshal(raw, &warnings); err != nil {
			return nil, &ParseError{Section: "warnings", Err: err}
		}
		kinds := make([]string, 0, len(warnings))
		for k := range warnings {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			for _, entry := range warnings[k] {
				findings = append(findings, parseWarning(entry, k))
			}
		}
	}

	return findings, nil
}

func parseWarning(raw json.RawMessage, sectionKind string) Finding {
	var e auditEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		kind := ParseKind(sectionKind)
		if kind == KindVulnerability {
			kind = KindOther
		}
		return bestEffort(raw, kind)
	}
	declared := e.Kind
	if declared == "" {
		declared = sectionKind
	}
	kind := ParseKind(declared)

	if e.Advisory == nil {
		// Yanked crates are reported without an advisory. Any other kind
		// without one is still surfaced, as KindOther.
		if kind != KindYanked && declared != "" {
			kind = KindOther
		} else {
			kind = KindYanked
		}
		return Finding{
			Kind:    kind,
			Package: Package{Name: e.Package.Name, Version: e.Package.Version},
		}
	}
	if kind == KindVulnerability {
		// a vulnerability inside the warnings map is not something cargo audit emits
		kind = KindOther
	}
	return entryFinding(e, kind)
}

func parseEntry(raw json.RawMessage, kind Kind) Finding {
	var e auditEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return bestEffort(raw, kind)
	}
	if e.Advisory == nil {
		return Finding{
			Kind:    KindOther,
			Package: Package{Name: e.Package.Name, Version: e.Package.Version},
		}
	}
	return entryFinding(e, kind)
}

func entryFinding(e auditEntry, kind Kind) Finding {
	adv := e.Advisory
	f := Finding{
		ID:          strings.TrimSpace(adv.ID),
		Kind:        kind,
		Package:     Package{Name: e.Package.Name, Version: e.Package.Version},
		Aliases:     adv.Aliases,
		Title:       adv.Title,
		Description: adv.Description,
		Date:        adv.Date,
		Categories:  adv.Categories,
		Keywords:    adv.Keywords,
		URL:         deref(adv.URL),
	}
	if f.Package.Name == "" {
		f.Package.Name = adv.Package
	}
	switch {
	case deref(adv.Severity) != "":
		f.Severity = deref(adv.Severity)
	case deref(adv.CVSS) != "":
		f.Severity = deref(adv.CVSS)
	}
	f.Informational = deref(adv.Informational)
	if e.Versions != nil {
		f.Patched = e.Versions.Patched
		f.Unaffected = e.Versions.Unaffected
	}
	if !f.Valid() {
		f.Kind = KindOther
	}
	return f
}

// bestEffort salvages what it can from an entry with an unexpected shape.
// An entry whose advisory ID survives keeps kind; anything else is KindOther.
func bestEffort(raw json.RawMessage, kind Kind) Finding {
	f := Finding{Kind: KindOther}
	var loose map[string]any
	if err := json.Unmarshal(raw, &loose); err != nil {
		return f
	}
	if pkg, ok := loose["package"].(map[string]any); ok {
		f.Package.Name, _ = pkg["name"].(string)
		f.Package.Version, _ = pkg["version"].(string)
	}
	adv, ok := loose["advisory"].(map[string]any)
	if !ok {
		return f
	}
	id, _ := adv["id"].(string)
	f.ID = strings.TrimSpace(id)
	f.Title, _ = adv["title"].(string)
	f.Description, _ = adv["description"].(string)
	f.URL, _ = adv["url"].(string)
	if f.Package.Name == "" {
		f.Package.Name, _ = adv["package"].(string)
	}
	f.Aliases = stringList(adv["aliases"])
	if f.ID != "" {
		f.Kind = kind
	}
	return f
}

// stringList accepts a JSON array of strings or a single string.
func stringList(v any) []string {
	switch v := v.(type) {
	case string:
		if v = strings.TrimSpace(v); v != "" {
			return []string{v}
		}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}
