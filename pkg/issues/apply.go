package issues

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rustsec-audit-action/pkg/tracker"
)

// Outcome counts the actions applied by Apply.
type Outcome struct {
	Created   []tracker.Issue
	Updated   []tracker.Issue
	Unchanged int
}

// Apply executes the plan against t in order. It stops at the first failure;
// actions already applied are not rolled back.
func Apply(ctx context.Context, t tracker.Tracker, plan Plan) (Outcome, error) {
	var out Outcome
	for _, a := range plan {
		switch a.Type {
		case ActionCreate:
			issue, err := t.CreateIssue(ctx, a.Title, a.Body)
			if err != nil {
				return out, fmt.Errorf("create issue for %s: %w", a.Key, err)
			}
			slog.InfoContext(ctx, "Created issue", "key", a.Key, "issue", issue.Number)
			out.Created = append(out.Created, issue)

		case ActionUpdate:
			number := a.Issue.Number
			if err := t.UpdateIssue(ctx, number, a.Title, a.Body); err != nil {
				return out, fmt.Errorf("update issue #%d for %s: %w", number, a.Key, err)
			}
			if err := t.Comment(ctx, number, RenderUpdatedComment(a.Finding)); err != nil {
				return out, fmt.Errorf("comment on issue #%d for %s: %w", number, a.Key, err)
			}
			slog.InfoContext(ctx, "Updated issue", "key", a.Key, "issue", number)
			updated := *a.Issue
			updated.Title, updated.Body = a.Title, a.Body
			out.Updated = append(out.Updated, updated)

		case ActionNoOp:
			slog.DebugContext(ctx, "Issue up to date", "key", a.Key, "issue", a.Issue.Number)
			out.Unchanged++
		}
	}
	return out, nil
}
