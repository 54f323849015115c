package mcpservice

import (
	"context"
	"errors"

	"github.com/ggoodman/mcp-gateway/mcp"
	"github.com/ggoodman/mcp-gateway/sessions"
)

var (
	// ErrToolNotFound is returned by CallTool for names that are not registered.
	ErrToolNotFound = errors.New("tool not found")
	// ErrResourceNotFound is returned by ReadResource for URIs that match no
	// registered resource or template.
	ErrResourceNotFound = errors.New("resource not found")
)

// ToolsCapability lists and dispatches tools. Implementations MUST be safe for
// concurrent use and honor ctx for cancellation.
type ToolsCapability interface {
	// ListTools returns a page of tool descriptors. A nil cursor requests the
	// first page.
	ListTools(ctx context.Context, session sessions.Session, cursor *string) (Page[mcp.Tool], error)

	// CallTool runs the named tool. Failures the caller should see as a tool
	// error are returned as errors; the engine maps them onto the result.
	CallTool(ctx context.Context, session sessions.Session, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error)
}

// ResourcesCapability lists and reads resources.
type ResourcesCapability interface {
	ListResources(ctx context.Context, session sessions.Session, cursor *string) (Page[mcp.Resource], error)
	ListResourceTemplates(ctx context.Context, session sessions.Session, cursor *string) (Page[mcp.ResourceTemplate], error)
	// ReadResource returns the contents at uri. Unknown URIs yield
	// ErrResourceNotFound.
	ReadResource(ctx context.Context, session sessions.Session, uri string) ([]mcp.ResourceContents, error)
}
