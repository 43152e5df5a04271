package advisory

import "strings"

// Kind classifies a finding. The set is closed; switch statements over Kind
// are expected to be exhaustive.
type Kind int

const (
	KindOther Kind = iota
	KindVulnerability
	KindUnsound
	KindYanked
	KindNotice
	KindUnmaintained
)

var kindNames = map[Kind]string{
	KindOther:         "other",
	KindVulnerability: "vulnerability",
	KindUnsound:       "unsound",
	KindYanked:        "yanked",
	KindNotice:        "notice",
	KindUnmaintained:  "unmaintained",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return kindNames[KindOther]
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	*k = ParseKind(string(b))
	return nil
}

// ParseKind maps a cargo-audit warning kind onto a Kind. Unknown names map to KindOther.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vulnerability", "vulnerabilities":
		return KindVulnerability
	case "unsound":
		return KindUnsound
	case "yanked":
		return KindYanked
	case "notice":
		return KindNotice
	case "unmaintained":
		return KindUnmaintained
	default:
		return KindOther
	}
}

// Level is the actionability of a finding.
type Level int

const (
	LevelNone Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	default:
		return "none"
	}
}

// Level returns LevelError for vulnerabilities and LevelWarning for everything else.
func (k Kind) Level() Level {
	switch k {
	case KindVulnerability:
		return LevelError
	case KindUnsound, KindYanked, KindNotice, KindUnmaintained, KindOther:
		return LevelWarning
	default:
		return LevelWarning
	}
}

type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (p Package) String() string {
	if p.Version == "" {
		return p.Name
	}
	return p.Name + "@" + p.Version
}

// Finding is one normalized condition reported by the scanner.
type Finding struct {
	ID            string   `json:"id,omitempty"`
	Kind          Kind     `json:"kind"`
	Package       Package  `json:"package"`
	Aliases       []string `json:"aliases,omitempty"`
	Title         string   `json:"title,omitempty"`
	Description   string   `json:"description,omitempty"`
	Severity      string   `json:"severity,omitempty"`
	URL           string   `json:"url,omitempty"`
	Date          string   `json:"date,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	Patched       []string `json:"patched,omitempty"`
	Unaffected    []string `json:"unaffected,omitempty"`
	Informational string   `json:"informational,omitempty"`
}

// Level is the actionability of the finding, derived from its kind.
func (f Finding) Level() Level {
	return f.Kind.Level()
}

// Valid reports whether the finding has an advisory ID, which every kind except
// yanked must carry.
func (f Finding) Valid() bool {
	return f.ID != "" || f.Kind == KindYanked
}

// Identifiers returns the ID followed by the aliases, skipping empty values.
func (f Finding) Identifiers() []string {
	ids := make([]string, 0, len(f.Aliases)+1)
	if f.ID != "" {
		ids = append(ids, f.ID)
	}
	for _, a := range f.Aliases {
		if a != "" {
			ids = append(ids, a)
		}
	}
	return ids
}

// Ignored reports whether the finding's ID or any alias appears in ignore.
func Ignored(f Finding, ignore map[string]bool) bool {
	if len(ignore) == 0 {
		return false
	}
	for _, id := range f.Identifiers() {
		if ignore[id] {
			return true
		}
	}
	return false
}

// FilterIgnored returns the findings that are not ignored, preserving order.
func FilterIgnored(findings []Finding, ignore map[string]bool) []Finding {
	kept := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if Ignored(f, ignore) {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}
