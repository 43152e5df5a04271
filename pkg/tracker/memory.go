package tracker

import (
	"context"
	"fmt"
	"sort"
)

// MemoryTracker keeps issues in memory. Dry runs apply plans against a
// MemoryTracker seeded with the real issue list so nothing is written upstream.
type MemoryTracker struct {
	issues   map[int]*Issue
	comments map[int][]string
	next     int
}

func NewMemoryTracker(seed ...Issue) *MemoryTracker {
	m := &MemoryTracker{
		issues:   make(map[int]*Issue),
		comments: make(map[int][]string),
		next:     1,
	}
	for _, issue := range seed {
		issue := issue
		m.issues[issue.Number] = &issue
		if issue.Number >= m.next {
			m.next = issue.Number + 1
		}
	}
	return m
}

func (m *MemoryTracker) ListIssues(_ context.Context, state string) ([]Issue, error) {
	var out []Issue
	for _, issue := range m.issues {
		if state == "all" || issue.State == state {
			out = append(out, *issue)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *MemoryTracker) CreateIssue(_ context.Context, title, body string) (Issue, error) {
	issue := Issue{
		Number: m.next,
		Title:  title,
		Body:   body,
		State:  StateOpen,
	}
	m.issues[issue.Number] = &issue
	m.next++
	return issue, nil
}

func (m *MemoryTracker) UpdateIssue(_ context.Context, number int, title, body string) error {
	issue, ok := m.issues[number]
	if !ok {
		return &APIError{Op: fmt.Sprintf("update issue #%d", number), StatusCode: 404, Err: fmt.Errorf("not found")}
	}
	issue.Title = title
	issue.Body = body
	return nil
}

func (m *MemoryTracker) Comment(_ context.Context, number int, text string) error {
	if _, ok := m.issues[number]; !ok {
		return &APIError{Op: fmt.Sprintf("comment on issue #%d", number), StatusCode: 404, Err: fmt.Errorf("not found")}
	}
	m.comments[number] = append(m.comments[number], text)
	return nil
}

// Comments returns the comments added to an issue.
func (m *MemoryTracker) Comments(number int) []string {
	return m.comments[number]
}
