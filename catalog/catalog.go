package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ggoodman/mcp-gateway/integration"
	"github.com/ggoodman/mcp-gateway/internal/logctx"
	"github.com/ggoodman/mcp-gateway/mcp"
	"github.com/ggoodman/mcp-gateway/mcpservice"
	"github.com/ggoodman/mcp-gateway/sessions"
)

// Defaults fill fields omitted from login calls. The login call itself is
// still required; defaults only spare the caller from repeating values the
// operator already configured.
type Defaults struct {
	IssueTracker integration.IssueTrackerCredentials
	Calendar     integration.CalendarCredentials
	Docs         integration.DocsCredentials
}

// AdapterObserver is told about every adapter call.
type AdapterObserver interface {
	AdapterCall(n integration.Name, op string, d time.Duration, err error)
}

// Options configure the catalog.
type Options struct {
	Backends integration.Backends
	Defaults Defaults

	// DevMode accepts login calls with missing fields.
	DevMode bool

	Logger   *slog.Logger
	Observer AdapterObserver

	// Info overrides the server identity returned from initialize.
	Info mcp.ImplementationInfo
}

// DefaultInfo identifies the gateway in initialize results.
var DefaultInfo = mcp.ImplementationInfo{Name: "mcp-gateway", Title: "MCP Gateway", Version: "0.1.0"}

const instructions = `This server bridges Jira, Google Calendar and Notion.
Call the matching login tool (login-issuetracker, login-calendar, login-docs) once per session before using any other tool or resource of that integration.
Resources: issuetracker://items/{id}, calendar://events/{id} and docs://documents/{id}; omit the id to list (or, for documents, search with ?query=).`

type catalog struct {
	backends integration.Backends
	defaults Defaults
	devMode  bool
	log      *slog.Logger
	obs      AdapterObserver
}

// New assembles the gateway's tools and resources for the integrations that
// have a backend configured.
func New(opts Options) (*mcpservice.Server, error) {
	c := &catalog{
		backends: opts.Backends,
		defaults: opts.Defaults,
		devMode:  opts.DevMode,
		log:      opts.Logger,
		obs:      opts.Observer,
	}
	if c.log == nil {
		c.log = slog.Default()
	}

	tools, err := mcpservice.NewToolsContainer(c.tools()...)
	if err != nil {
		return nil, fmt.Errorf("catalog tools: %w", err)
	}
	resources, err := mcpservice.NewResourcesContainer(c.routes()...)
	if err != nil {
		return nil, fmt.Errorf("catalog resources: %w", err)
	}

	info := opts.Info
	if info.Name == "" {
		info = DefaultInfo
	}
	return mcpservice.NewServer(
		mcpservice.WithServerInfo(info),
		mcpservice.WithInstructions(instructions),
		mcpservice.WithToolsCapability(tools),
		mcpservice.WithResourcesCapability(resources),
	), nil
}

func (c *catalog) tools() []mcpservice.StaticTool {
	var out []mcpservice.StaticTool
	if c.backends.Available(integration.IssueTracker) {
		out = append(out, c.loginIssueTracker(), c.createIssue(), c.updateIssue())
	}
	if c.backends.Available(integration.Calendar) {
		out = append(out, c.loginCalendar(), c.createMeeting())
	}
	if c.backends.Available(integration.Docs) {
		out = append(out, c.loginDocs(), c.createDoc())
	}
	return out
}

func (c *catalog) routes() []mcpservice.ResourceRoute {
	var out []mcpservice.ResourceRoute
	if c.backends.Available(integration.IssueTracker) {
		out = append(out, c.issueRoute())
	}
	if c.backends.Available(integration.Calendar) {
		out = append(out, c.eventRoute())
	}
	if c.backends.Available(integration.Docs) {
		out = append(out, c.documentRoute())
	}
	return out
}

// credential fetches the session's bundle for n. No bundle means the caller
// has not logged in.
func credential[B integration.Bundle](s sessions.Session, n integration.Name) (B, error) {
	var zero B
	b, ok := s.Credential(n)
	if !ok {
		return zero, integration.LoginRequired(n)
	}
	typed, ok := b.(B)
	if !ok {
		return zero, integration.Backend(n, "stored credentials have an unexpected shape", nil)
	}
	return typed, nil
}

func (c *catalog) tracker(s sessions.Session) (integration.IssueTrackerAdapter, error) {
	creds, err := credential[integration.IssueTrackerCredentials](s, integration.IssueTracker)
	if err != nil {
		return nil, err
	}
	return construct(integration.IssueTracker, func() (integration.IssueTrackerAdapter, error) { return c.backends.IssueTracker(creds) })
}

func (c *catalog) calendar(s sessions.Session) (integration.CalendarAdapter, error) {
	creds, err := credential[integration.CalendarCredentials](s, integration.Calendar)
	if err != nil {
		return nil, err
	}
	return construct(integration.Calendar, func() (integration.CalendarAdapter, error) { return c.backends.Calendar(creds) })
}

func (c *catalog) docs(s sessions.Session) (integration.DocumentStore, error) {
	creds, err := credential[integration.DocsCredentials](s, integration.Docs)
	if err != nil {
		return nil, err
	}
	return construct(integration.Docs, func() (integration.DocumentStore, error) { return c.backends.Docs(creds) })
}

func construct[A any](n integration.Name, build func() (A, error)) (A, error) {
	a, err := build()
	if err != nil {
		var ie *integration.Error
		if !errors.As(err, &ie) {
			err = integration.Backend(n, "could not construct adapter", err)
		}
		return a, err
	}
	return a, nil
}

// call runs one adapter operation, normalizing stray errors into the
// taxonomy and reporting the outcome.
func (c *catalog) call(ctx context.Context, n integration.Name, op string, fn func(ctx context.Context) error) error {
	ctx = logctx.WithIntegration(ctx, n)
	start := time.Now()
	err := fn(ctx)
	if err != nil {
		var ie *integration.Error
		if !errors.As(err, &ie) && ctx.Err() == nil {
			err = integration.Backend(n, op+" failed", err)
		}
	}
	dur := time.Since(start)
	if c.obs != nil {
		c.obs.AdapterCall(n, op, dur, err)
	}
	if err != nil {
		c.log.WarnContext(ctx, "catalog.adapter_call.fail",
			slog.String("op", op),
			slog.String("kind", string(integration.KindOf(err))),
			slog.String("err", err.Error()),
			slog.Int64("dur_ms", dur.Milliseconds()),
		)
		return err
	}
	c.log.DebugContext(ctx, "catalog.adapter_call.ok", slog.String("op", op), slog.Int64("dur_ms", dur.Milliseconds()))
	return nil
}
