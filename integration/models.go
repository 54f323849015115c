package integration

import "time"

// Issue is a tracker work item.
type Issue struct {
	Key         string     `json:"key"`
	ID          string     `json:"id,omitempty"`
	Project     string     `json:"project,omitempty"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	IssueType   string     `json:"issueType,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	DueDate     string     `json:"dueDate,omitempty"`
	URL         string     `json:"url,omitempty"`
	Updated     *time.Time `json:"updated,omitempty"`
}

// IssueDraft is the input to IssueTrackerAdapter.CreateIssue.
type IssueDraft struct {
	ProjectKey  string
	Summary     string
	Description string
	IssueType   string
	Assignee    string
	Priority    string
	DueDate     string
}

// IssueEdit carries optional field changes. Nil fields are left untouched.
type IssueEdit struct {
	Summary     *string
	Description *string
}

// Empty reports whether the edit changes nothing.
func (e IssueEdit) Empty() bool {
	return e.Summary == nil && e.Description == nil
}

// Transition is a workflow move available from an issue's current status.
type Transition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// To is the name of the status the transition leads to.
	To string `json:"to"`
}

// Event is a calendar entry.
type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Attendees   []string  `json:"attendees,omitempty"`
	Location    string    `json:"location,omitempty"`
	Link        string    `json:"link,omitempty"`
	MeetLink    string    `json:"meetLink,omitempty"`
	Status      string    `json:"status,omitempty"`
}

// EventDraft is the input to CalendarAdapter.CreateEvent.
type EventDraft struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

// Document is a workspace page.
type Document struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	ParentID string     `json:"parentId,omitempty"`
	URL      string     `json:"url,omitempty"`
	Content  string     `json:"content,omitempty"`
	Edited   *time.Time `json:"lastEdited,omitempty"`
}

// DocumentDraft is the input to Docs.CreateDocument.
type DocumentDraft struct {
	Title    string
	ParentID string
	Content  string
}
