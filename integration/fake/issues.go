package fake

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ggoodman/mcp-gateway/integration"
)

// DefaultWorkflow is the transition graph new trackers start with, keyed by
// current status.
func DefaultWorkflow() map[string][]integration.Transition {
	return map[string][]integration.Transition{
		"To Do": {
			{ID: "11", Name: "Start Progress", To: "In Progress"},
		},
		"In Progress": {
			{ID: "21", Name: "Stop Progress", To: "To Do"},
			{ID: "31", Name: "Resolve", To: "Done"},
		},
		"Done": {
			{ID: "41", Name: "Reopen", To: "To Do"},
		},
	}
}

// IssueTracker is an in-memory tracker. Keys are allocated per project as
// PROJECT-1, PROJECT-2 and so on.
type IssueTracker struct {
	set *Set

	mu       sync.Mutex
	issues   map[string]*integration.Issue
	order    []string
	seq      map[string]int
	workflow map[string][]integration.Transition
	now      func() time.Time
}

func newIssueTracker(s *Set) *IssueTracker {
	return &IssueTracker{
		set:      s,
		issues:   make(map[string]*integration.Issue),
		seq:      make(map[string]int),
		workflow: DefaultWorkflow(),
		now:      time.Now,
	}
}

// SetWorkflow replaces the transition graph.
func (t *IssueTracker) SetWorkflow(w map[string][]integration.Transition) {
	t.mu.Lock()
	t.workflow = w
	t.mu.Unlock()
}

// Issue returns a copy of the stored issue.
func (t *IssueTracker) Issue(key string) (integration.Issue, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	is, ok := t.issues[key]
	if !ok {
		return integration.Issue{}, false
	}
	return *is, true
}

// Seed stores an issue as-is. Its project key prefix advances the sequence.
func (t *IssueTracker) Seed(is integration.Issue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if is.Status == "" {
		is.Status = "To Do"
	}
	if _, ok := t.issues[is.Key]; !ok {
		t.order = append(t.order, is.Key)
	}
	t.issues[is.Key] = &is
	if proj, n, ok := splitKey(is.Key); ok && n > t.seq[proj] {
		t.seq[proj] = n
	}
}

func splitKey(key string) (string, int, bool) {
	i := strings.LastIndexByte(key, '-')
	if i <= 0 {
		return "", 0, false
	}
	var n int
	if _, err := fmt.Sscanf(key[i+1:], "%d", &n); err != nil {
		return "", 0, false
	}
	return key[:i], n, true
}

type boundTracker struct {
	t     *IssueTracker
	creds integration.IssueTrackerCredentials
}

func (b *boundTracker) GetIssue(ctx context.Context, key string) (*integration.Issue, error) {
	b.t.set.record(b.creds, "GetIssue", key)
	is, ok := b.t.Issue(key)
	if !ok {
		return nil, integration.NotFound(integration.IssueTracker, key)
	}
	return &is, nil
}

func (b *boundTracker) ListIssues(ctx context.Context) ([]integration.Issue, error) {
	b.t.set.record(b.creds, "ListIssues", "")
	b.t.mu.Lock()
	defer b.t.mu.Unlock()
	out := make([]integration.Issue, 0, len(b.t.order))
	for i := len(b.t.order) - 1; i >= 0; i-- {
		out = append(out, *b.t.issues[b.t.order[i]])
	}
	return out, nil
}

func (b *boundTracker) CreateIssue(ctx context.Context, d integration.IssueDraft) (*integration.Issue, error) {
	b.t.set.record(b.creds, "CreateIssue", d.ProjectKey)
	if d.ProjectKey == "" || d.Summary == "" {
		return nil, integration.Validationf(integration.IssueTracker, "projectKey and summary are required")
	}
	b.t.mu.Lock()
	defer b.t.mu.Unlock()
	proj := strings.ToUpper(d.ProjectKey)
	b.t.seq[proj]++
	now := b.t.now()
	is := &integration.Issue{
		Key:         fmt.Sprintf("%s-%d", proj, b.t.seq[proj]),
		ID:          fmt.Sprintf("%d", 10000+len(b.t.order)),
		Project:     proj,
		Summary:     d.Summary,
		Description: d.Description,
		Status:      "To Do",
		IssueType:   d.IssueType,
		Assignee:    d.Assignee,
		Priority:    d.Priority,
		DueDate:     d.DueDate,
		Updated:     &now,
	}
	b.t.issues[is.Key] = is
	b.t.order = append(b.t.order, is.Key)
	cp := *is
	return &cp, nil
}

func (b *boundTracker) EditIssue(ctx context.Context, key string, e integration.IssueEdit) error {
	b.t.set.record(b.creds, "EditIssue", key)
	b.t.mu.Lock()
	defer b.t.mu.Unlock()
	is, ok := b.t.issues[key]
	if !ok {
		return integration.NotFound(integration.IssueTracker, key)
	}
	if e.Summary != nil {
		is.Summary = *e.Summary
	}
	if e.Description != nil {
		is.Description = *e.Description
	}
	now := b.t.now()
	is.Updated = &now
	return nil
}

func (b *boundTracker) ListTransitions(ctx context.Context, key string) ([]integration.Transition, error) {
	b.t.set.record(b.creds, "ListTransitions", key)
	b.t.mu.Lock()
	defer b.t.mu.Unlock()
	is, ok := b.t.issues[key]
	if !ok {
		return nil, integration.NotFound(integration.IssueTracker, key)
	}
	return append([]integration.Transition(nil), b.t.workflow[is.Status]...), nil
}

func (b *boundTracker) TransitionIssue(ctx context.Context, key, id string) error {
	b.t.set.record(b.creds, "TransitionIssue", key)
	b.t.mu.Lock()
	defer b.t.mu.Unlock()
	is, ok := b.t.issues[key]
	if !ok {
		return integration.NotFound(integration.IssueTracker, key)
	}
	for _, tr := range b.t.workflow[is.Status] {
		if tr.ID == id {
			is.Status = tr.To
			return nil
		}
	}
	return integration.Validationf(integration.IssueTracker, "transition %s is not valid for %s", id, key)
}
