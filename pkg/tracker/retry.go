package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultRetries    = 3
	DefaultRetryDelay = 2 * time.Second
	maxRetryAfter     = time.Minute
)

// APIError is a failed tracker call.
type APIError struct {
	Op          string
	StatusCode  int
	RateLimited bool
	RetryAfter  time.Duration
	Err         error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the call may succeed: rate limiting,
// server errors and transport failures are temporary, client errors are not.
func (e *APIError) Temporary() bool {
	if e.RateLimited || e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if e.StatusCode >= 500 {
		return true
	}
	if e.StatusCode == 0 {
		// no response at all: connection reset, DNS, timeout
		return true
	}
	return false
}

func isTemporary(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isRejected reports whether err is a temporary failure the server answered,
// so the call is known not to have been applied. A creation that timed out
// may have succeeded and is not retried.
func isRejected(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return (apiErr.StatusCode != 0 || apiErr.RateLimited) && apiErr.Temporary()
}

func retryAfter(err error, fallback time.Duration) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return min(apiErr.RetryAfter, maxRetryAfter)
	}
	return fallback
}

type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	// OnRetry is called before each new attempt.
	OnRetry func(op string, attempt int, err error)
}

// Retry runs fn up to p.Attempts times while it fails with a temporary error.
func Retry(ctx context.Context, p RetryPolicy, op string, fn func(context.Context) error) error {
	return retry(ctx, p, op, isTemporary, fn)
}

func retry(ctx context.Context, p RetryPolicy, op string, retryable func(error) bool, fn func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	began := time.Now()
	for i := 1; i <= attempts; i++ {
		err = fn(ctx)
		if err == nil || ctx.Err() != nil || !retryable(err) {
			return err
		}
		if i == attempts {
			break
		}
		wait := retryAfter(err, p.Delay)
		slog.InfoContext(ctx, "Tracker call failed. Retrying.", "op", op, "attempt", i, "interval", wait, "error", err)
		if p.OnRetry != nil {
			p.OnRetry(op, i, err)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s still failing after %d attempts in %v: %w", op, attempts, time.Since(began).Round(time.Millisecond), err)
}

type retryingTracker struct {
	next   Tracker
	policy RetryPolicy
}

// WithRetry wraps t so every call is retried according to p.
func WithRetry(t Tracker, p RetryPolicy) Tracker {
	return &retryingTracker{next: t, policy: p}
}

func (r *retryingTracker) ListIssues(ctx context.Context, state string) ([]Issue, error) {
	var issues []Issue
	err := Retry(ctx, r.policy, "list issues", func(ctx context.Context) error {
		var err error
		issues, err = r.next.ListIssues(ctx, state)
		return err
	})
	return issues, err
}

func (r *retryingTracker) CreateIssue(ctx context.Context, title, body string) (Issue, error) {
	var issue Issue
	err := retry(ctx, r.policy, "create issue", isRejected, func(ctx context.Context) error {
		var err error
		issue, err = r.next.CreateIssue(ctx, title, body)
		return err
	})
	return issue, err
}

func (r *retryingTracker) UpdateIssue(ctx context.Context, number int, title, body string) error {
	return Retry(ctx, r.policy, fmt.Sprintf("update issue #%d", number), func(ctx context.Context) error {
		return r.next.UpdateIssue(ctx, number, title, body)
	})
}

func (r *retryingTracker) Comment(ctx context.Context, number int, text string) error {
	return Retry(ctx, r.policy, fmt.Sprintf("comment on issue #%d", number), func(ctx context.Context) error {
		return r.next.Comment(ctx, number, text)
	})
}
