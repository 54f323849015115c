package catalog

import (
	"context"
	"strings"

	"github.com/ggoodman/mcp-gateway/integration"
	"github.com/ggoodman/mcp-gateway/internal/logctx"
	"github.com/ggoodman/mcp-gateway/mcp"
	"github.com/ggoodman/mcp-gateway/mcpservice"
	"github.com/ggoodman/mcp-gateway/sessions"
)

// LoginResult is returned by every login tool.
type LoginResult struct {
	Confirmation string `json:"confirmation" jsonschema:"description=Digest acknowledging the stored credentials"`
}

type issueTrackerLogin struct {
	Host     string `json:"host,omitempty" jsonschema:"description=Jira site host such as your-team.atlassian.net (defaults to JIRA_HOST)"`
	Username string `json:"username,omitempty" jsonschema:"description=Account e-mail used with the API token (defaults to JIRA_USERNAME)"`
	APIToken string `json:"apiToken,omitempty" jsonschema:"description=Jira API token (defaults to JIRA_API_TOKEN)"`
}

type calendarLogin struct {
	ClientID     string `json:"clientId,omitempty" jsonschema:"description=OAuth client id (defaults to GOOGLE_CLIENT_ID)"`
	ClientSecret string `json:"clientSecret,omitempty" jsonschema:"description=OAuth client secret (defaults to GOOGLE_CLIENT_SECRET)"`
	RedirectURI  string `json:"redirectUri,omitempty" jsonschema:"description=OAuth redirect URI registered for the client (defaults to GOOGLE_REDIRECT_URI)"`
	RefreshToken string `json:"refreshToken,omitempty" jsonschema:"description=Refresh token from a completed consent (defaults to GOOGLE_REFRESH_TOKEN)"`
}

type docsLogin struct {
	APIKey string `json:"apiKey,omitempty" jsonschema:"description=Notion integration secret (defaults to NOTION_API_KEY)"`
}

func or(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

var loginAnnotations = mcp.ToolAnnotations{IdempotentHint: true}

func (c *catalog) loginIssueTracker() mcpservice.StaticTool {
	return mcpservice.NewTool[issueTrackerLogin](integration.IssueTracker.LoginTool(),
		func(ctx context.Context, s sessions.Session, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[issueTrackerLogin]) error {
			a, d := r.Args(), c.defaults.IssueTracker
			return c.login(ctx, s, w, integration.IssueTrackerCredentials{
				Host:     or(a.Host, d.Host),
				Username: or(a.Username, d.Username),
				APIToken: or(a.APIToken, d.APIToken),
			})
		},
		mcpservice.WithToolTitle("Log in to Jira"),
		mcpservice.WithToolDescription("Store Jira credentials for this session. Required before any other issue tracker tool or resource."),
		mcpservice.WithToolAnnotations(loginAnnotations),
		mcpservice.WithToolOutput[LoginResult](),
	)
}

func (c *catalog) loginCalendar() mcpservice.StaticTool {
	return mcpservice.NewTool[calendarLogin](integration.Calendar.LoginTool(),
		func(ctx context.Context, s sessions.Session, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[calendarLogin]) error {
			a, d := r.Args(), c.defaults.Calendar
			return c.login(ctx, s, w, integration.CalendarCredentials{
				ClientID:     or(a.ClientID, d.ClientID),
				ClientSecret: or(a.ClientSecret, d.ClientSecret),
				RedirectURI:  or(a.RedirectURI, d.RedirectURI),
				RefreshToken: or(a.RefreshToken, d.RefreshToken),
			})
		},
		mcpservice.WithToolTitle("Log in to Google Calendar"),
		mcpservice.WithToolDescription("Store Google OAuth client credentials for this session. Without a refresh token, calendar calls fail with the consent URL to visit."),
		mcpservice.WithToolAnnotations(loginAnnotations),
		mcpservice.WithToolOutput[LoginResult](),
	)
}

func (c *catalog) loginDocs() mcpservice.StaticTool {
	return mcpservice.NewTool[docsLogin](integration.Docs.LoginTool(),
		func(ctx context.Context, s sessions.Session, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[docsLogin]) error {
			return c.login(ctx, s, w, integration.DocsCredentials{
				APIKey: or(r.Args().APIKey, c.defaults.Docs.APIKey),
			})
		},
		mcpservice.WithToolTitle("Log in to Notion"),
		mcpservice.WithToolDescription("Store a Notion integration secret for this session. Required before any other document tool or resource."),
		mcpservice.WithToolAnnotations(loginAnnotations),
		mcpservice.WithToolOutput[LoginResult](),
	)
}

func (c *catalog) login(ctx context.Context, s sessions.Session, w mcpservice.ToolResponseWriter, b integration.Bundle) error {
	n := b.Integration()
	ctx = logctx.WithIntegration(ctx, n)
	if missing := b.Missing(); len(missing) > 0 && !c.devMode {
		return integration.Validationf(n, "missing required fields: %s", strings.Join(missing, ", "))
	}
	confirmation, err := s.Login(b)
	if err != nil {
		return err
	}
	c.log.InfoContext(ctx, "catalog.login.ok")

	res := LoginResult{Confirmation: confirmation}
	if err := w.SetStructured(res); err != nil {
		return err
	}
	return w.AppendJSON(res)
}
