package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/ggoodman/mcp-gateway/integration"
	"github.com/ggoodman/mcp-gateway/internal/logctx"
	"github.com/ggoodman/mcp-gateway/mcp"
	"github.com/ggoodman/mcp-gateway/mcpservice"
	"github.com/ggoodman/mcp-gateway/sessions"
)

const (
	issueCollectionURI = "issuetracker://items"
	mimeJSON           = "application/json"
)

func (c *catalog) issueRoute() mcpservice.ResourceRoute {
	return mcpservice.ResourceRoute{
		Template: mcp.ResourceTemplate{
			URITemplate: issueCollectionURI + "/{id}",
			Name:        "issue-resource",
			Title:       "Jira issue",
			Description: "A single Jira issue by key.",
			MimeType:    mimeJSON,
		},
		Collection: &mcp.Resource{
			URI:         issueCollectionURI,
			Name:        "issues",
			Title:       "My Jira issues",
			Description: "Issues assigned to the logged-in user, most recently updated first.",
			MimeType:    mimeJSON,
		},
		Read: func(ctx context.Context, s sessions.Session, uri string, vars map[string]string) ([]mcp.ResourceContents, error) {
			tracker, err := c.tracker(s)
			if err != nil {
				return nil, err
			}
			var out any
			if key := vars["id"]; key != "" {
				err = c.call(ctx, integration.IssueTracker, "GetIssue", func(ctx context.Context) error {
					issue, err := tracker.GetIssue(ctx, key)
					out = issue
					return err
				})
			} else {
				err = c.call(ctx, integration.IssueTracker, "ListIssues", func(ctx context.Context) error {
					issues, err := tracker.ListIssues(ctx)
					out = nonNil(issues)
					return err
				})
			}
			if err != nil {
				return nil, err
			}
			return jsonContents(uri, out)
		},
	}
}

type createIssueArgs struct {
	ProjectKey  string `json:"projectKey" jsonschema:"description=Key of the project to create the issue in"`
	Summary     string `json:"summary" jsonschema:"description=One-line summary"`
	Description string `json:"description,omitempty"`
	IssueType   string `json:"issueType" jsonschema:"description=Issue type name such as Task or Bug"`
	Assignee    string `json:"assignee,omitempty" jsonschema:"description=Account id of the assignee"`
	Priority    string `json:"priority,omitempty" jsonschema:"description=Priority name such as High"`
	DueDate     string `json:"dueDate,omitempty" jsonschema:"description=Due date as YYYY-MM-DD,format=date"`
}

func (c *catalog) createIssue() mcpservice.StaticTool {
	return mcpservice.NewTool[createIssueArgs]("create-issue",
		func(ctx context.Context, s sessions.Session, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[createIssueArgs]) error {
			if _, err := credential[integration.IssueTrackerCredentials](s, integration.IssueTracker); err != nil {
				return err
			}
			a := r.Args()
			draft := integration.IssueDraft{
				ProjectKey:  strings.TrimSpace(a.ProjectKey),
				Summary:     strings.TrimSpace(a.Summary),
				Description: a.Description,
				IssueType:   strings.TrimSpace(a.IssueType),
				Assignee:    a.Assignee,
				Priority:    a.Priority,
				DueDate:     a.DueDate,
			}
			if err := validateIssueDraft(draft); err != nil {
				return err
			}
			tracker, err := c.tracker(s)
			if err != nil {
				return err
			}

			var issue *integration.Issue
			err = c.call(ctx, integration.IssueTracker, "CreateIssue", func(ctx context.Context) error {
				issue, err = tracker.CreateIssue(ctx, draft)
				return err
			})
			if err != nil {
				return err
			}
			if err := w.SetStructured(issue); err != nil {
				return err
			}
			return w.AppendJSON(issue)
		},
		mcpservice.WithToolTitle("Create Jira issue"),
		mcpservice.WithToolDescription("Create an issue in a Jira project and return it with its generated key."),
		mcpservice.WithToolAnnotations(mcp.ToolAnnotations{OpenWorldHint: true}),
		mcpservice.WithToolOutput[integration.Issue](),
	)
}

func validateIssueDraft(d integration.IssueDraft) error {
	switch {
	case d.ProjectKey == "":
		return integration.Validationf(integration.IssueTracker, "projectKey is required")
	case d.Summary == "":
		return integration.Validationf(integration.IssueTracker, "summary is required")
	case d.IssueType == "":
		return integration.Validationf(integration.IssueTracker, "issueType is required")
	}
	if d.DueDate != "" {
		if _, err := time.Parse(time.DateOnly, d.DueDate); err != nil {
			return integration.Validationf(integration.IssueTracker, "dueDate %q is not a YYYY-MM-DD date", d.DueDate)
		}
	}
	return nil
}

type updateIssueArgs struct {
	ItemKey     string  `json:"itemKey" jsonschema:"description=Key of the issue to update such as OPS-12"`
	Summary     *string `json:"summary,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status,omitempty" jsonschema:"description=Target status name; applied through the matching workflow transition"`
}

func (c *catalog) updateIssue() mcpservice.StaticTool {
	return mcpservice.NewTool[updateIssueArgs]("update-issue",
		func(ctx context.Context, s sessions.Session, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[updateIssueArgs]) error {
			if _, err := credential[integration.IssueTrackerCredentials](s, integration.IssueTracker); err != nil {
				return err
			}
			a := r.Args()
			key := strings.TrimSpace(a.ItemKey)
			upd := integration.IssueUpdate{
				Edit:   integration.IssueEdit{Summary: a.Summary, Description: a.Description},
				Status: strings.TrimSpace(a.Status),
			}
			if key == "" {
				return integration.Validationf(integration.IssueTracker, "itemKey is required")
			}
			if upd.Edit.Empty() && upd.Status == "" {
				return integration.Validationf(integration.IssueTracker, "nothing to update: supply summary, description or status")
			}
			tracker, err := c.tracker(s)
			if err != nil {
				return err
			}

			_ = w.SendProgress(0, 1, "updating "+key)
			var res *integration.IssueUpdateResult
			err = c.call(ctx, integration.IssueTracker, "UpdateIssue", func(ctx context.Context) error {
				res, err = integration.UpdateIssue(ctx, tracker, key, upd)
				return err
			})
			if err != nil {
				return err
			}
			_ = w.SendProgress(1, 1, "updated "+key)

			if res.Warning != "" {
				c.warnStatusSkipped(ctx, s, w, res)
			}
			if err := w.SetStructured(res); err != nil {
				return err
			}
			return w.AppendJSON(res)
		},
		mcpservice.WithToolTitle("Update Jira issue"),
		mcpservice.WithToolDescription("Edit an issue's summary or description and optionally move it to a new status. A status with no matching transition is skipped with a warning; the other edits still apply."),
		mcpservice.WithToolAnnotations(mcp.ToolAnnotations{IdempotentHint: true, OpenWorldHint: true}),
		mcpservice.WithToolOutput[integration.IssueUpdateResult](),
	)
}

// warnStatusSkipped surfaces a skipped transition three ways: a log
// notification on the session stream, a text block and result metadata.
func (c *catalog) warnStatusSkipped(ctx context.Context, s sessions.Session, w mcpservice.ToolResponseWriter, res *integration.IssueUpdateResult) {
	ctx = logctx.WithIntegration(ctx, integration.IssueTracker)
	c.log.WarnContext(ctx, "catalog.update_issue.status_skipped", slog.String("key", res.Key), slog.String("warning", res.Warning))
	if err := s.Log(ctx, mcp.LoggingLevelWarning, "update-issue", map[string]any{
		"key":     res.Key,
		"warning": res.Warning,
	}); err != nil {
		c.log.WarnContext(ctx, "catalog.update_issue.notify.fail", slog.String("err", err.Error()))
	}
	_ = w.AppendText("Warning: " + res.Warning)
	w.SetMeta(mcp.MetaStatusApplied, false)
	w.SetMeta(mcp.MetaWarning, res.Warning)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{{URI: uri, MimeType: mimeJSON, Text: string(b)}}, nil
}
