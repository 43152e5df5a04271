package advisory

import (
	"fmt"
	"regexp"
	"strings"
)

// IssueKey identifies the tracker issue a finding belongs to across runs.
type IssueKey string

const markerPrefix = "<!-- rustsec-audit-key: "
const markerSuffix = " -->"

var (
	markerRe      = regexp.MustCompile(`<!-- rustsec-audit-key: (\S+) -->`)
	legacyTitleRe = regexp.MustCompile(`^(RUSTSEC-\d{4}-\d{4})\b`)
)

// Key returns the advisory ID when present, otherwise "{kind}:{name}@{version}".
func Key(f Finding) IssueKey {
	if id := strings.TrimSpace(f.ID); id != "" {
		return IssueKey(id)
	}
	return IssueKey(fmt.Sprintf("%s:%s@%s", f.Kind, f.Package.Name, f.Package.Version))
}

// Marker renders the key as the hidden comment embedded in issue bodies.
func Marker(k IssueKey) string {
	return markerPrefix + string(k) + markerSuffix
}

// ExtractKey recovers the key from an issue written by this tool. Issues that
// predate the body marker are matched by a RustSec ID at the start of the title.
func ExtractKey(title, body string) (IssueKey, bool) {
	if m := markerRe.FindStringSubmatch(body); len(m) == 2 {
		return IssueKey(m[1]), true
	}
	if m := legacyTitleRe.FindStringSubmatch(strings.TrimSpace(title)); len(m) == 2 {
		return IssueKey(m[1]), true
	}
	return "", false
}
