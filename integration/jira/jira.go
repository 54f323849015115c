// Package jira adapts the Jira REST API (v2) to integration.IssueTrackerAdapter.
package jira

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ggoodman/mcp-gateway/integration"
	"github.com/ggoodman/mcp-gateway/integration/restclient"
)

const (
	apiPrefix = "rest/api/2/"
	// DefaultJQL selects the caller's own issues, most recently updated first.
	DefaultJQL = "assignee = currentUser() ORDER BY updated DESC"
	maxResults = 50

	timeLayout = "2006-01-02T15:04:05.000-0700"
)

var _ integration.IssueTrackerFactory = New

// Tracker talks to one Jira site on behalf of one user.
type Tracker struct {
	rc  *restclient.Client
	jql string
}

// New builds a Tracker from a credential bundle. A host without a scheme is
// contacted over https.
func New(creds integration.IssueTrackerCredentials) (integration.IssueTrackerAdapter, error) {
	return NewWithClient(creds, nil)
}

// NewWithClient is New with a caller-supplied HTTP client.
func NewWithClient(creds integration.IssueTrackerCredentials, hc *http.Client) (*Tracker, error) {
	if m := creds.Missing(); len(m) > 0 {
		return nil, integration.Validationf(integration.IssueTracker, "missing credential fields: %v", m)
	}
	rc, err := restclient.New(integration.IssueTracker, creds.Host, hc)
	if err != nil {
		return nil, err
	}
	token := base64.StdEncoding.EncodeToString([]byte(creds.Username + ":" + creds.APIToken))
	rc.Header.Set("Authorization", "Basic "+token)
	return &Tracker{rc: rc, jql: DefaultJQL}, nil
}

type issueDTO struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Status      *named `json:"status"`
		IssueType   *named `json:"issuetype"`
		Priority    *named `json:"priority"`
		Assignee    *user  `json:"assignee"`
		Project     *struct {
			Key string `json:"key"`
		} `json:"project"`
		DueDate string `json:"duedate"`
		Updated string `json:"updated"`
	} `json:"fields"`
}

type named struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type user struct {
	Name        string `json:"name,omitempty"`
	AccountID   string `json:"accountId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

func (t *Tracker) toIssue(d *issueDTO) integration.Issue {
	is := integration.Issue{
		Key:         d.Key,
		ID:          d.ID,
		Summary:     d.Fields.Summary,
		Description: d.Fields.Description,
		DueDate:     d.Fields.DueDate,
		URL:         t.rc.BaseURL.JoinPath("browse", d.Key).String(),
	}
	if d.Fields.Status != nil {
		is.Status = d.Fields.Status.Name
	}
	if d.Fields.IssueType != nil {
		is.IssueType = d.Fields.IssueType.Name
	}
	if d.Fields.Priority != nil {
		is.Priority = d.Fields.Priority.Name
	}
	if d.Fields.Assignee != nil {
		is.Assignee = d.Fields.Assignee.DisplayName
	}
	if d.Fields.Project != nil {
		is.Project = d.Fields.Project.Key
	}
	if ts, err := time.Parse(timeLayout, d.Fields.Updated); err == nil {
		is.Updated = &ts
	}
	return is
}

func (t *Tracker) GetIssue(ctx context.Context, key string) (*integration.Issue, error) {
	var dto issueDTO
	if err := t.rc.Do(ctx, restclient.Request{Path: apiPrefix + "issue/" + url.PathEscape(key), ItemID: key}, &dto); err != nil {
		return nil, err
	}
	is := t.toIssue(&dto)
	return &is, nil
}

func (t *Tracker) ListIssues(ctx context.Context) ([]integration.Issue, error) {
	q := url.Values{}
	q.Set("jql", t.jql)
	q.Set("maxResults", strconv.Itoa(maxResults))
	q.Set("fields", "summary,description,status,issuetype,priority,assignee,project,duedate,updated")

	var res struct {
		Issues []issueDTO `json:"issues"`
	}
	if err := t.rc.Do(ctx, restclient.Request{Path: apiPrefix + "search", Query: q}, &res); err != nil {
		return nil, err
	}
	out := make([]integration.Issue, 0, len(res.Issues))
	for i := range res.Issues {
		out = append(out, t.toIssue(&res.Issues[i]))
	}
	return out, nil
}

func (t *Tracker) CreateIssue(ctx context.Context, d integration.IssueDraft) (*integration.Issue, error) {
	fields := map[string]any{
		"project":   map[string]string{"key": d.ProjectKey},
		"summary":   d.Summary,
		"issuetype": map[string]string{"name": d.IssueType},
	}
	if d.Description != "" {
		fields["description"] = d.Description
	}
	if d.Assignee != "" {
		fields["assignee"] = map[string]string{"accountId": d.Assignee}
	}
	if d.Priority != "" {
		fields["priority"] = map[string]string{"name": d.Priority}
	}
	if d.DueDate != "" {
		fields["duedate"] = d.DueDate
	}

	var created struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	if err := t.rc.Do(ctx, restclient.Request{
		Method: http.MethodPost,
		Path:   apiPrefix + "issue",
		Body:   map[string]any{"fields": fields},
	}, &created); err != nil {
		return nil, err
	}

	return &integration.Issue{
		Key:         created.Key,
		ID:          created.ID,
		Project:     d.ProjectKey,
		Summary:     d.Summary,
		Description: d.Description,
		IssueType:   d.IssueType,
		Assignee:    d.Assignee,
		Priority:    d.Priority,
		DueDate:     d.DueDate,
		URL:         t.rc.BaseURL.JoinPath("browse", created.Key).String(),
	}, nil
}

func (t *Tracker) EditIssue(ctx context.Context, key string, e integration.IssueEdit) error {
	if e.Empty() {
		return nil
	}
	fields := map[string]any{}
	if e.Summary != nil {
		fields["summary"] = *e.Summary
	}
	if e.Description != nil {
		fields["description"] = *e.Description
	}
	return t.rc.Do(ctx, restclient.Request{
		Method: http.MethodPut,
		Path:   apiPrefix + "issue/" + url.PathEscape(key),
		Body:   map[string]any{"fields": fields},
		ItemID: key,
	}, nil)
}

func (t *Tracker) ListTransitions(ctx context.Context, key string) ([]integration.Transition, error) {
	var res struct {
		Transitions []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			To   named  `json:"to"`
		} `json:"transitions"`
	}
	if err := t.rc.Do(ctx, restclient.Request{Path: apiPrefix + "issue/" + url.PathEscape(key) + "/transitions", ItemID: key}, &res); err != nil {
		return nil, err
	}
	out := make([]integration.Transition, 0, len(res.Transitions))
	for _, tr := range res.Transitions {
		out = append(out, integration.Transition{ID: tr.ID, Name: tr.Name, To: tr.To.Name})
	}
	return out, nil
}

func (t *Tracker) TransitionIssue(ctx context.Context, key, id string) error {
	return t.rc.Do(ctx, restclient.Request{
		Method: http.MethodPost,
		Path:   apiPrefix + "issue/" + url.PathEscape(key) + "/transitions",
		Body:   map[string]any{"transition": map[string]string{"id": id}},
		ItemID: key,
	}, nil)
}
