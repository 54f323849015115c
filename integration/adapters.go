package integration

import "context"

// IssueTrackerAdapter is the adapter contract for the issue tracker.
type IssueTrackerAdapter interface {
	GetIssue(ctx context.Context, key string) (*Issue, error)
	ListIssues(ctx context.Context) ([]Issue, error)
	CreateIssue(ctx context.Context, draft IssueDraft) (*Issue, error)
	EditIssue(ctx context.Context, key string, edit IssueEdit) error
	ListTransitions(ctx context.Context, key string) ([]Transition, error)
	TransitionIssue(ctx context.Context, key string, transitionID string) error
}

// CalendarAdapter is the adapter contract for the calendar service.
type CalendarAdapter interface {
	GetEvent(ctx context.Context, id string) (*Event, error)
	ListEvents(ctx context.Context) ([]Event, error)
	CreateEvent(ctx context.Context, draft EventDraft) (*Event, error)
}

// DocumentStore is the adapter contract for the document workspace.
type DocumentStore interface {
	GetDocument(ctx context.Context, id string) (*Document, error)
	SearchDocuments(ctx context.Context, query string) ([]Document, error)
	CreateDocument(ctx context.Context, draft DocumentDraft) (*Document, error)
}

// Factories build a fresh adapter for each call from the caller's bundle.
type (
	IssueTrackerFactory func(creds IssueTrackerCredentials) (IssueTrackerAdapter, error)
	CalendarFactory     func(creds CalendarCredentials) (CalendarAdapter, error)
	DocsFactory         func(creds DocsCredentials) (DocumentStore, error)
)

// Backends selects the adapter implementation for each integration. A nil
// factory marks the integration as unavailable.
type Backends struct {
	IssueTracker IssueTrackerFactory
	Calendar     CalendarFactory
	Docs         DocsFactory
}

// Available reports whether a factory is configured for n.
func (b Backends) Available(n Name) bool {
	switch n {
	case IssueTracker:
		return b.IssueTracker != nil
	case Calendar:
		return b.Calendar != nil
	case Docs:
		return b.Docs != nil
	}
	return false
}

// Enabled lists the configured integrations in registration order.
func (b Backends) Enabled() []Name {
	var out []Name
	for _, n := range All {
		if b.Available(n) {
			out = append(out, n)
		}
	}
	return out
}
