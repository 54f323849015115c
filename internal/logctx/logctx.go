// Package logctx carries per-request logging scope on a context.Context and
// renders it onto every record logged through Handler.
package logctx

import (
	"context"
	"log/slog"

	"github.com/ggoodman/mcp-gateway/integration"
	"github.com/ggoodman/mcp-gateway/sessions"
)

type scopeKey int

const (
	requestScope scopeKey = iota
	sessionScope
	rpcScope
	toolScope
	resourceScope
	integrationScope
)

// Scopes render in this order, outermost first.
var scopes = [...]scopeKey{requestScope, sessionScope, rpcScope, toolScope, resourceScope, integrationScope}

type scope interface {
	attr() slog.Attr
}

// Handler wraps another slog.Handler and appends the scopes found on the
// record's context.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	for _, k := range scopes {
		if s, ok := ctx.Value(k).(scope); ok {
			r.AddAttrs(s.attr())
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{h.Handler.WithGroup(name)}
}

// group builds a named group from key/value pairs, skipping empty values.
func group(name string, kv ...string) slog.Attr {
	attrs := make([]any, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			attrs = append(attrs, slog.String(kv[i], kv[i+1]))
		}
	}
	return slog.Group(name, attrs...)
}

// RequestData describes the inbound transport request.
type RequestData struct {
	Transport  string
	RequestID  string
	Method     string
	UserAgent  string
	RemoteAddr string
	Path       string
}

func (d *RequestData) attr() slog.Attr {
	return group("req",
		"transport", d.Transport,
		"id", d.RequestID,
		"method", d.Method,
		"user_agent", d.UserAgent,
		"remote_addr", d.RemoteAddr,
		"path", d.Path,
	)
}

func WithRequestData(ctx context.Context, d *RequestData) context.Context {
	return context.WithValue(ctx, requestScope, d)
}

type SessionData struct {
	SessionID       string
	UserID          string
	ProtocolVersion string
	State           sessions.State
}

func (d *SessionData) attr() slog.Attr {
	return group("sess",
		"id", d.SessionID,
		"user_id", d.UserID,
		"protocol_version", d.ProtocolVersion,
		"state", string(d.State),
	)
}

func WithSessionData(ctx context.Context, d *SessionData) context.Context {
	return context.WithValue(ctx, sessionScope, d)
}

// RPCMessage identifies the JSON-RPC message being handled. Type is one of
// request, notification or response.
type RPCMessage struct {
	Method string
	ID     string
	Type   string
}

func (m *RPCMessage) attr() slog.Attr {
	return group("rpc", "method", m.Method, "id", m.ID, "type", m.Type)
}

func WithRPCMessage(ctx context.Context, m *RPCMessage) context.Context {
	return context.WithValue(ctx, rpcScope, m)
}

type ToolCallData struct {
	ToolName string
}

func (d *ToolCallData) attr() slog.Attr { return group("tool", "name", d.ToolName) }

func WithToolCallData(ctx context.Context, d *ToolCallData) context.Context {
	return context.WithValue(ctx, toolScope, d)
}

type ResourceData struct {
	URI string
}

func (d *ResourceData) attr() slog.Attr { return group("resource", "uri", d.URI) }

func WithResourceData(ctx context.Context, d *ResourceData) context.Context {
	return context.WithValue(ctx, resourceScope, d)
}

type integrationTag integration.Name

func (n integrationTag) attr() slog.Attr { return slog.String("integration", string(n)) }

// WithIntegration tags records with the backend an operation talks to.
func WithIntegration(ctx context.Context, n integration.Name) context.Context {
	return context.WithValue(ctx, integrationScope, integrationTag(n))
}
