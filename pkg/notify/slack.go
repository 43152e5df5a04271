package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/rustsec-audit-action/pkg/tracker"
)

// Notifier announces issues created by a run.
type Notifier interface {
	IssuesCreated(ctx context.Context, repo string, issues []tracker.Issue) error
}

// SlackNotifier posts to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
}

func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{webhookURL: webhookURL}
}

func (s *SlackNotifier) IssuesCreated(ctx context.Context, repo string, issues []tracker.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	msg := &slack.WebhookMessage{
		Text: Message(repo, issues),
	}
	if err := slack.PostWebhookContext(ctx, s.webhookURL, msg); err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	return nil
}

// Message renders the notification text in Slack mrkdwn.
func Message(repo string, issues []tracker.Issue) string {
	var sb strings.Builder
	noun := "issue"
	if len(issues) != 1 {
		noun = "issues"
	}
	fmt.Fprintf(&sb, ":rotating_light: Dependency audit opened %d %s in *%s*", len(issues), noun, repo)
	for _, issue := range issues {
		if issue.URL != "" {
			fmt.Fprintf(&sb, "\n• <%s|#%d %s>", issue.URL, issue.Number, issue.Title)
		} else {
			fmt.Fprintf(&sb, "\n• #%d %s", issue.Number, issue.Title)
		}
	}
	return sb.String()
}
