package issues

import (
	"log/slog"
	"sort"

	"github.com/rustsec-audit-action/pkg/advisory"
	"github.com/rustsec-audit-action/pkg/tracker"
)

type ActionType int

const (
	ActionNoOp ActionType = iota
	ActionCreate
	ActionUpdate
)

func (t ActionType) String() string {
	switch t {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	default:
		return "no-op"
	}
}

// Action is one step of a Plan. Issue is nil for ActionCreate.
type Action struct {
	Type    ActionType
	Key     advisory.IssueKey
	Finding advisory.Finding
	Issue   *tracker.Issue
	// Title and Body are the rendered content for create and update.
	Title string
	Body  string
}

// Plan is the ordered list of actions that brings the tracker in line with a scan.
type Plan []Action

// Count returns the number of actions of type t.
func (p Plan) Count(t ActionType) int {
	n := 0
	for _, a := range p {
		if a.Type == t {
			n++
		}
	}
	return n
}

// Reconcile computes the plan for findings against the existing issues. It
// never plans to close an issue. A nil render uses Render.
func Reconcile(findings []advisory.Finding, existing []tracker.Issue, ignore map[string]bool, render RenderFunc) Plan {
	if render == nil {
		render = Render
	}
	index := indexIssues(existing)

	plan := make(Plan, 0, len(findings))
	planned := make(map[advisory.IssueKey]bool)
	for _, f := range advisory.FilterIgnored(findings, ignore) {
		if !f.Valid() {
			// over-report rather than drop it
			f.Kind = advisory.KindOther
		}
		key := advisory.Key(f)
		if planned[key] {
			slog.Debug("Finding shares a key with an earlier finding", "key", key, "package", f.Package.String())
			continue
		}
		planned[key] = true

		title, body := render(f)
		action := Action{Key: key, Finding: f, Title: title, Body: body}
		issue, ok := index[key]
		switch {
		case !ok:
			action.Type = ActionCreate
		case issue.Title != title || issue.Body != body:
			action.Type = ActionUpdate
			action.Issue = issue
		default:
			action.Type = ActionNoOp
			action.Issue = issue
		}
		plan = append(plan, action)
	}
	return plan
}

// indexIssues maps keys to open issues. The lowest issue number wins when
// several issues carry the same key.
func indexIssues(existing []tracker.Issue) map[advisory.IssueKey]*tracker.Issue {
	sorted := make([]tracker.Issue, 0, len(existing))
	for _, issue := range existing {
		if issue.Open() {
			sorted = append(sorted, issue)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	index := make(map[advisory.IssueKey]*tracker.Issue, len(sorted))
	for i := range sorted {
		key, ok := advisory.ExtractKey(sorted[i].Title, sorted[i].Body)
		if !ok {
			continue
		}
		if canonical, dup := index[key]; dup {
			slog.Debug("Ignoring duplicate issue", "key", key, "issue", sorted[i].Number, "canonical", canonical.Number)
			continue
		}
		index[key] = &sorted[i]
	}
	return index
}
