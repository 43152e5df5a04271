package advisory

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestParseReport_Vulnerability(t *testing.T) {
	findings, err := ParseReport(readFixture(t, "audit_vulnerability.json"))
	require.NoError(t, err)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, "RUSTSEC-2020-0001", f.ID)
	assert.Equal(t, KindVulnerability, f.Kind)
	assert.Equal(t, LevelError, f.Level())
	assert.Equal(t, Package{Name: "foo", Version: "1.0.0"}, f.Package)
	assert.Equal(t, []string{"CVE-2020-1234", "GHSA-aaaa-bbbb-cccc"}, f.Aliases)
	assert.Equal(t, "Use after free in foo", f.Title)
	assert.Equal(t, "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H", f.Severity)
	assert.Equal(t, "https://github.com/foo/foo/issues/1", f.URL)
	assert.Equal(t, []string{">=1.0.1"}, f.Patched)
	assert.Equal(t, []string{"<0.5.0"}, f.Unaffected)
	assert.True(t, f.Valid())
}

func TestParseReport_Warnings(t *testing.T) {
	findings, err := ParseReport(readFixture(t, "audit_warnings.json"))
	require.NoError(t, err)
	require.Len(t, findings, 3)

	// warning kinds are visited in sorted order
	assert.Equal(t, KindUnmaintained, findings[0].Kind)
	assert.Equal(t, "RUSTSEC-2021-0139", findings[0].ID)
	assert.Equal(t, "unmaintained", findings[0].Informational)
	assert.Empty(t, findings[0].URL)

	assert.Equal(t, KindUnsound, findings[1].Kind)
	assert.Equal(t, "RUSTSEC-2022-0011", findings[1].ID)
	assert.Equal(t, []string{"GHSA-xxxx-yyyy-zzzz"}, findings[1].Aliases)

	yanked := findings[2]
	assert.Equal(t, KindYanked, yanked.Kind)
	assert.Empty(t, yanked.ID)
	assert.Equal(t, Package{Name: "bar", Version: "2.0.0"}, yanked.Package)
	assert.Equal(t, LevelWarning, yanked.Level())
	assert.True(t, yanked.Valid())
}

func TestParseReport_NullAdvisoryWithoutKind(t *testing.T) {
	report := `{"warnings": {"yanked": [{"package": {"name": "bar", "version": "2.0"}, "advisory": null}]}}`
	findings, err := ParseReport([]byte(report))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, KindYanked, findings[0].Kind)
	assert.Empty(t, findings[0].ID)
	assert.Equal(t, "bar", findings[0].Package.Name)
	assert.Equal(t, "2.0", findings[0].Package.Version)
}

func TestParseReport_OddEntries(t *testing.T) {
	findings, err := ParseReport(readFixture(t, "audit_odd_entries.json"))
	require.NoError(t, err)
	require.Len(t, findings, 5)

	assert.Equal(t, KindOther, findings[0].Kind)
	assert.Equal(t, Package{}, findings[0].Package)

	assert.Equal(t, KindOther, findings[1].Kind)
	assert.Equal(t, Package{Name: "nobody", Version: "0.0.1"}, findings[1].Package)
	assert.Equal(t, "numeric id", findings[1].Title)

	// mistyped fields must not downgrade a vulnerability with a usable ID
	vuln := findings[2]
	assert.Equal(t, KindVulnerability, vuln.Kind)
	assert.Equal(t, LevelError, vuln.Level())
	assert.Equal(t, "RUSTSEC-2019-0009", vuln.ID)
	assert.Equal(t, Package{Name: "smallvec", Version: "0.6.9"}, vuln.Package)
	assert.Equal(t, []string{"CVE-2019-15551"}, vuln.Aliases)
	assert.True(t, Ignored(vuln, map[string]bool{"CVE-2019-15551": true}))

	assert.Equal(t, KindOther, findings[3].Kind)
	assert.Equal(t, "RUSTSEC-2030-0001", findings[3].ID)
	assert.Equal(t, "zed", findings[3].Package.Name)

	assert.Equal(t, KindOther, findings[4].Kind)
	assert.Equal(t, "quux", findings[4].Package.Name)
	assert.Empty(t, findings[4].ID)
}

func TestParseReport_MistypedWarningKeepsKind(t *testing.T) {
	doc := `{"warnings": {"unmaintained": [
		{"kind": "unmaintained", "package": {"name": "term", "version": "0.5.2"},
		 "advisory": {"id": "RUSTSEC-2018-0015", "keywords": "unmaintained"}}
	]}}`
	findings, err := ParseReport([]byte(doc))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, KindUnmaintained, findings[0].Kind)
	assert.Equal(t, "RUSTSEC-2018-0015", findings[0].ID)
}

func TestParseReport_MissingSections(t *testing.T) {
	for _, doc := range []string{`{}`, `{"vulnerabilities": null, "warnings": null}`} {
		findings, err := ParseReport([]byte(doc))
		require.NoError(t, err, doc)
		assert.Empty(t, findings, doc)
	}
}

func TestParseReport_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		section string
	}{
		{name: "not json", doc: `error: couldn't fetch advisory database`},
		{name: "array", doc: `[1, 2]`},
		{name: "null", doc: `null`},
		{name: "bad vulnerabilities", doc: `{"vulnerabilities": "lots"}`, section: "vulnerabilities"},
		{name: "bad warnings", doc: `{"warnings": ["yanked"]}`, section: "warnings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReport([]byte(tt.doc))
			require.Error(t, err)
			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.section, perr.Section)
		})
	}
}

func TestIgnored(t *testing.T) {
	f := Finding{ID: "RUSTSEC-2020-0001", Kind: KindVulnerability, Aliases: []string{"CVE-2020-1234"}}

	assert.False(t, Ignored(f, nil))
	assert.True(t, Ignored(f, map[string]bool{"RUSTSEC-2020-0001": true}))
	assert.True(t, Ignored(f, map[string]bool{"CVE-2020-1234": true}))
	assert.False(t, Ignored(f, map[string]bool{"RUSTSEC-2020-0002": true}))

	yanked := Finding{Kind: KindYanked, Package: Package{Name: "bar", Version: "2.0"}}
	assert.False(t, Ignored(yanked, map[string]bool{"": true}))

	kept := FilterIgnored([]Finding{f, yanked}, map[string]bool{"CVE-2020-1234": true})
	assert.Equal(t, []Finding{yanked}, kept)
}

func TestKindLevels(t *testing.T) {
	assert.Equal(t, LevelError, KindVulnerability.Level())
	for _, k := range []Kind{KindUnsound, KindYanked, KindNotice, KindUnmaintained, KindOther} {
		assert.Equal(t, LevelWarning, k.Level(), k.String())
	}
	assert.True(t, LevelError > LevelWarning)
	assert.Equal(t, KindUnsound, ParseKind("Unsound"))
	assert.Equal(t, KindOther, ParseKind("something-new"))
}
