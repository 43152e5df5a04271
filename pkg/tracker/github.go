package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v60/github"
)

// GitHubTracker manages issues of one repository through the GitHub REST API.
type GitHubTracker struct {
	client    *github.Client
	owner     string
	repo      string
	labels    []string
	assignees []string

	assigneesChecked bool
}

type GitHubOption func(*GitHubTracker)

// WithLabels sets the labels applied to created issues.
func WithLabels(labels ...string) GitHubOption {
	return func(g *GitHubTracker) { g.labels = labels }
}

// WithAssignees sets the users assigned to created issues. Users that cannot
// be assigned in the repository are dropped before the first creation.
func WithAssignees(assignees ...string) GitHubOption {
	return func(g *GitHubTracker) { g.assignees = assignees }
}

func NewGitHubTracker(client *github.Client, owner, repo string, opts ...GitHubOption) *GitHubTracker {
	g := &GitHubTracker{
		client: client,
		owner:  owner,
		repo:   repo,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// NewGitHubClient builds an authenticated client. A non-empty apiURL other
// than the public API selects a GitHub Enterprise Server instance.
func NewGitHubClient(token, apiURL string) (*github.Client, error) {
	client := github.NewClient(&http.Client{Timeout: 30 * time.Second}).WithAuthToken(token)
	apiURL = strings.TrimSuffix(apiURL, "/")
	if apiURL == "" || apiURL == "https://api.github.com" {
		return client, nil
	}
	enterprise, err := client.WithEnterpriseURLs(apiURL+"/", apiURL+"/")
	if err != nil {
		return nil, fmt.Errorf("configure GitHub API URL %q: %w", apiURL, err)
	}
	return enterprise, nil
}

func (g *GitHubTracker) ListIssues(ctx context.Context, state string) ([]Issue, error) {
	var all []Issue
	opts := &github.IssueListByRepoOptions{
		State:       state,
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		page, resp, err := g.client.Issues.ListByRepo(ctx, g.owner, g.repo, opts)
		if err != nil {
			return nil, wrapError("list issues", resp, err)
		}
		for _, issue := range page {
			if issue.IsPullRequest() {
				continue
			}
			all = append(all, convertIssue(issue))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

func (g *GitHubTracker) CreateIssue(ctx context.Context, title, body string) (Issue, error) {
	req := &github.IssueRequest{
		Title: &title,
		Body:  &body,
	}
	if len(g.labels) > 0 {
		labels := g.labels
		req.Labels = &labels
	}
	if assignees := g.validAssignees(ctx); len(assignees) > 0 {
		req.Assignees = &assignees
	}

	issue, resp, err := g.client.Issues.Create(ctx, g.owner, g.repo, req)
	if err != nil {
		return Issue{}, wrapError("create issue", resp, err)
	}
	return convertIssue(issue), nil
}

func (g *GitHubTracker) UpdateIssue(ctx context.Context, number int, title, body string) error {
	_, resp, err := g.client.Issues.Edit(ctx, g.owner, g.repo, number, &github.IssueRequest{
		Title: &title,
		Body:  &body,
	})
	if err != nil {
		return wrapError(fmt.Sprintf("update issue #%d", number), resp, err)
	}
	return nil
}

func (g *GitHubTracker) Comment(ctx context.Context, number int, text string) error {
	_, resp, err := g.client.Issues.CreateComment(ctx, g.owner, g.repo, number, &github.IssueComment{
		Body: &text,
	})
	if err != nil {
		return wrapError(fmt.Sprintf("comment on issue #%d", number), resp, err)
	}
	return nil
}

// validAssignees drops assignees the repository does not accept; issue
// creation fails outright when any assignee is invalid.
func (g *GitHubTracker) validAssignees(ctx context.Context) []string {
	if g.assigneesChecked {
		return g.assignees
	}
	var valid []string
	for _, a := range g.assignees {
		ok, _, err := g.client.Issues.IsAssignee(ctx, g.owner, g.repo, a)
		if err != nil || !ok {
			slog.WarnContext(ctx, "Dropping assignee", "assignee", a, "error", err)
			continue
		}
		valid = append(valid, a)
	}
	g.assignees = valid
	g.assigneesChecked = true
	return valid
}

func convertIssue(issue *github.Issue) Issue {
	out := Issue{
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		State:  issue.GetState(),
		URL:    issue.GetHTMLURL(),
	}
	for _, l := range issue.Labels {
		out.Labels = append(out.Labels, l.GetName())
	}
	return out
}

func wrapError(op string, resp *github.Response, err error) error {
	apiErr := &APIError{Op: op, Err: err}
	if resp != nil && resp.Response != nil {
		apiErr.StatusCode = resp.StatusCode
	}

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	switch {
	case errors.As(err, &rateErr):
		apiErr.RateLimited = true
		apiErr.RetryAfter = time.Until(rateErr.Rate.Reset.Time)
	case errors.As(err, &abuseErr):
		apiErr.RateLimited = true
		if abuseErr.RetryAfter != nil {
			apiErr.RetryAfter = *abuseErr.RetryAfter
		}
	}
	return apiErr
}

// ParseRepository splits "owner/repo" (optionally a github.com URL) into its parts.
func ParseRepository(repoURL string) (owner, repo string, err error) {
	repoURL = strings.TrimPrefix(repoURL, "https://")
	repoURL = strings.TrimPrefix(repoURL, "http://")
	repoURL = strings.TrimPrefix(repoURL, "github.com/")
	repoURL = strings.TrimSuffix(repoURL, ".git")
	repoURL = strings.TrimSuffix(repoURL, "/")

	parts := strings.SplitN(repoURL, "/", 3)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("cannot parse GitHub repository from %q", repoURL)
	}
	return parts[0], parts[1], nil
}
