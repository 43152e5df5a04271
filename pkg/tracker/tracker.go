package tracker

import "context"

const (
	StateOpen   = "open"
	StateClosed = "closed"
)

// Issue is a snapshot of a tracker issue.
type Issue struct {
	Number int
	Title  string
	Body   string
	State  string
	Labels []string
	URL    string
}

func (i Issue) Open() bool { return i.State == StateOpen }

type Tracker interface {
	// ListIssues returns every issue in the given state, pull requests excluded.
	ListIssues(ctx context.Context, state string) ([]Issue, error)

	// CreateIssue opens a new issue and returns it as stored by the tracker.
	CreateIssue(ctx context.Context, title, body string) (Issue, error)

	// UpdateIssue replaces the title and body of an existing issue.
	UpdateIssue(ctx context.Context, number int, title, body string) error

	// Comment adds a comment to an existing issue.
	Comment(ctx context.Context, number int, text string) error
}
