package issues

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustsec-audit-action/pkg/advisory"
	"github.com/rustsec-audit-action/pkg/tracker"
)

func vuln(id, name, version string) advisory.Finding {
	return advisory.Finding{
		ID:      id,
		Kind:    advisory.KindVulnerability,
		Package: advisory.Package{Name: name, Version: version},
		Title:   "problem in " + name,
	}
}

func yanked(name, version string) advisory.Finding {
	return advisory.Finding{
		Kind:    advisory.KindYanked,
		Package: advisory.Package{Name: name, Version: version},
	}
}

func existingFor(number int, f advisory.Finding) tracker.Issue {
	title, body := Render(f)
	return tracker.Issue{Number: number, Title: title, Body: body, State: tracker.StateOpen}
}

func types(p Plan) []ActionType {
	out := make([]ActionType, 0, len(p))
	for _, a := range p {
		out = append(out, a.Type)
	}
	return out
}

func TestReconcile_NewVulnerability(t *testing.T) {
	plan := Reconcile([]advisory.Finding{vuln("RUSTSEC-2020-0001", "foo", "1.0")}, nil, nil, nil)

	require.Len(t, plan, 1)
	assert.Equal(t, ActionCreate, plan[0].Type)
	assert.Equal(t, "RUSTSEC-2020-0001", plan[0].Finding.ID)
	assert.Nil(t, plan[0].Issue)
	assert.Equal(t, "RUSTSEC-2020-0001: problem in foo", plan[0].Title)
	assert.Contains(t, plan[0].Body, advisory.Marker("RUSTSEC-2020-0001"))
}

func TestReconcile_IgnoredVulnerability(t *testing.T) {
	plan := Reconcile(
		[]advisory.Finding{vuln("RUSTSEC-2020-0001", "foo", "1.0")},
		nil,
		map[string]bool{"RUSTSEC-2020-0001": true},
		nil,
	)
	assert.Empty(t, plan)
}

func TestReconcile_IgnoredAlias(t *testing.T) {
	f := vuln("X", "foo", "1.0")
	f.Aliases = []string{"Y"}
	assert.Empty(t, Reconcile([]advisory.Finding{f}, nil, map[string]bool{"Y": true}, nil))
}

func TestReconcile_AlreadyTracked(t *testing.T) {
	f := vuln("RUSTSEC-2020-0001", "foo", "1.0")
	plan := Reconcile([]advisory.Finding{f}, []tracker.Issue{existingFor(12, f)}, nil, nil)

	require.Len(t, plan, 1)
	assert.Equal(t, ActionNoOp, plan[0].Type)
	require.NotNil(t, plan[0].Issue)
	assert.Equal(t, 12, plan[0].Issue.Number)
}

func TestReconcile_YankedWithoutAdvisory(t *testing.T) {
	plan := Reconcile([]advisory.Finding{yanked("bar", "2.0")}, nil, nil, nil)

	require.Len(t, plan, 1)
	assert.Equal(t, ActionCreate, plan[0].Type)
	assert.Equal(t, advisory.KindYanked, plan[0].Finding.Kind)
	assert.Equal(t, advisory.IssueKey("yanked:bar@2.0"), plan[0].Key)
	assert.Contains(t, strings.ToLower(plan[0].Title), "yanked")
	assert.NotContains(t, plan[0].Title, "RUSTSEC")
}

func TestReconcile_ChangedContentUpdates(t *testing.T) {
	old := vuln("RUSTSEC-2020-0001", "foo", "1.0")
	current := old
	current.Patched = []string{">=1.0.1"}

	plan := Reconcile([]advisory.Finding{current}, []tracker.Issue{existingFor(3, old)}, nil, nil)
	require.Len(t, plan, 1)
	assert.Equal(t, ActionUpdate, plan[0].Type)
	assert.Equal(t, 3, plan[0].Issue.Number)
	assert.Contains(t, plan[0].Body, ">=1.0.1")
}

func TestReconcile_DuplicateIssuesLowestNumberWins(t *testing.T) {
	f := vuln("RUSTSEC-2020-0001", "foo", "1.0")
	stale := existingFor(4, f)
	stale.Body = "outdated\n\n" + advisory.Marker("RUSTSEC-2020-0001")

	// listed out of order on purpose
	existing := []tracker.Issue{existingFor(9, f), stale}
	plan := Reconcile([]advisory.Finding{f}, existing, nil, nil)

	require.Len(t, plan, 1)
	assert.Equal(t, ActionUpdate, plan[0].Type)
	assert.Equal(t, 4, plan[0].Issue.Number)
}

func TestReconcile_IgnoresClosedAndUnkeyedIssues(t *testing.T) {
	f := vuln("RUSTSEC-2020-0001", "foo", "1.0")
	closed := existingFor(1, f)
	closed.State = tracker.StateClosed
	unrelated := tracker.Issue{Number: 2, Title: "Build is slow", State: tracker.StateOpen}

	plan := Reconcile([]advisory.Finding{f}, []tracker.Issue{closed, unrelated}, nil, nil)
	assert.Equal(t, []ActionType{ActionCreate}, types(plan))
}

func TestReconcile_LegacyTitleMatches(t *testing.T) {
	f := vuln("RUSTSEC-2020-0001", "foo", "1.0")
	legacy := tracker.Issue{Number: 5, Title: "RUSTSEC-2020-0001: problem in foo", Body: "old body", State: tracker.StateOpen}

	plan := Reconcile([]advisory.Finding{f}, []tracker.Issue{legacy}, nil, nil)
	require.Len(t, plan, 1)
	assert.Equal(t, ActionUpdate, plan[0].Type)
	assert.Equal(t, 5, plan[0].Issue.Number)
}

func TestReconcile_SameKeyOnceAndOrderKept(t *testing.T) {
	findings := []advisory.Finding{
		vuln("RUSTSEC-2021-0002", "b", "1"),
		yanked("c", "1"),
		vuln("RUSTSEC-2020-0001", "a", "1"),
		vuln("RUSTSEC-2021-0002", "b", "2"),
	}
	plan := Reconcile(findings, nil, nil, nil)

	require.Len(t, plan, 3)
	assert.Equal(t, advisory.IssueKey("RUSTSEC-2021-0002"), plan[0].Key)
	assert.Equal(t, "1", plan[0].Finding.Package.Version)
	assert.Equal(t, advisory.IssueKey("yanked:c@1"), plan[1].Key)
	assert.Equal(t, advisory.IssueKey("RUSTSEC-2020-0001"), plan[2].Key)
}

func TestReconcile_InvalidFindingStillPlanned(t *testing.T) {
	f := advisory.Finding{Kind: advisory.KindUnsound, Package: advisory.Package{Name: "q", Version: "0.1"}}
	plan := Reconcile([]advisory.Finding{f}, nil, nil, nil)

	require.Len(t, plan, 1)
	assert.Equal(t, ActionCreate, plan[0].Type)
	assert.Equal(t, advisory.KindOther, plan[0].Finding.Kind)
	assert.Equal(t, advisory.IssueKey("other:q@0.1"), plan[0].Key)
	assert.Equal(t, "Other warning: q@0.1", plan[0].Title)
}

func TestReconcile_NeverCloses(t *testing.T) {
	gone := vuln("RUSTSEC-2019-0001", "old", "0.1")
	plan := Reconcile(nil, []tracker.Issue{existingFor(1, gone)}, nil, nil)
	assert.Empty(t, plan)
}

func TestReconcile_CustomRender(t *testing.T) {
	render := func(f advisory.Finding) (string, string) {
		return "T " + f.ID, advisory.Marker(advisory.Key(f))
	}
	f := vuln("RUSTSEC-2020-0001", "foo", "1.0")
	existing := []tracker.Issue{{Number: 1, Title: "T RUSTSEC-2020-0001", Body: advisory.Marker("RUSTSEC-2020-0001"), State: tracker.StateOpen}}
	assert.Equal(t, []ActionType{ActionNoOp}, types(Reconcile([]advisory.Finding{f}, existing, nil, render)))
}

func TestReconcile_Idempotent(t *testing.T) {
	ctx := context.Background()
	findings := []advisory.Finding{
		vuln("RUSTSEC-2020-0001", "foo", "1.0"),
		yanked("bar", "2.0"),
		{ID: "RUSTSEC-2021-0139", Kind: advisory.KindUnmaintained, Package: advisory.Package{Name: "baz", Version: "0.3"}},
	}
	mem := tracker.NewMemoryTracker()

	first := Reconcile(findings, nil, nil, nil)
	assert.Equal(t, []ActionType{ActionCreate, ActionCreate, ActionCreate}, types(first))
	_, err := Apply(ctx, mem, first)
	require.NoError(t, err)

	existing, err := mem.ListIssues(ctx, tracker.StateOpen)
	require.NoError(t, err)
	second := Reconcile(findings, existing, nil, nil)
	assert.Equal(t, []ActionType{ActionNoOp, ActionNoOp, ActionNoOp}, types(second))
}
