package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/ggoodman/mcp-gateway/integration"
	"github.com/ggoodman/mcp-gateway/internal/jsonrpc"
	"github.com/ggoodman/mcp-gateway/internal/logctx"
	"github.com/ggoodman/mcp-gateway/mcp"
	"github.com/ggoodman/mcp-gateway/mcpservice"
	"github.com/ggoodman/mcp-gateway/sessions"
)

var (
	// ErrNotInitialize is returned when a message without a session is
	// anything other than an initialize request.
	ErrNotInitialize = errors.New("expected initialize request")
	// ErrAlreadyInitialized is returned for a second initialize on a live session.
	ErrAlreadyInitialized = errors.New("session already initialized")
)

// Observer receives per-message outcomes. Implementations must be safe for
// concurrent use.
type Observer interface {
	RequestHandled(method string, outcome string, d time.Duration)
	ToolCalled(tool string, kind integration.Kind)
}

// Outcomes reported to Observer.RequestHandled.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Engine is the transport-independent core of the gateway. It turns
// JSON-RPC messages into operations on sessions and on the server's tools and
// resources, and turns their results back into JSON-RPC responses.
type Engine struct {
	srv *mcpservice.Server
	mgr *sessions.Manager
	log *slog.Logger
	obs Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The engine wraps its handler with logctx.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithObserver installs an outcome observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.obs = o }
}

// New builds an engine serving srv with sessions from mgr.
func New(srv *mcpservice.Server, mgr *sessions.Manager, opts ...Option) *Engine {
	e := &Engine{srv: srv, mgr: mgr, log: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if _, ok := e.log.Handler().(logctx.Handler); !ok {
		e.log = slog.New(logctx.Handler{Handler: e.log.Handler()})
	}
	return e
}

// InitializeSession runs the initialize handshake for a message that arrived
// without a session. On success the returned handle is a new Active session
// bound to userID. A request that is not initialize yields ErrNotInitialize
// and creates nothing. Malformed params are answered with an error response
// and no session.
func (e *Engine) InitializeSession(ctx context.Context, userID string, req *jsonrpc.Request) (*sessions.Handle, *jsonrpc.Response, error) {
	start := time.Now()
	if req == nil || req.Method != string(mcp.InitializeMethod) || req.ID.IsNil() {
		return nil, nil, ErrNotInitialize
	}
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: req.Method, ID: req.ID.String(), Type: "request"})

	var params mcp.InitializeRequest
	if err := unmarshalParams(req.Params, &params); err != nil {
		e.log.InfoContext(ctx, "engine.initialize.invalid", slog.String("err", err.Error()))
		e.observe(req.Method, OutcomeError, start)
		return nil, jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid initialize params", nil), nil
	}

	version := mcp.NegotiateProtocolVersion(params.ProtocolVersion)
	h, err := e.mgr.Create(ctx, sessions.CreateParams{
		UserID:          userID,
		ProtocolVersion: version,
		ClientInfo:      params.ClientInfo,
	})
	if err != nil {
		e.log.ErrorContext(ctx, "engine.initialize.fail", slog.String("err", err.Error()))
		e.observe(req.Method, OutcomeError, start)
		return nil, nil, err
	}
	ctx = withSession(ctx, h)

	res, err := jsonrpc.NewResultResponse(req.ID, &mcp.InitializeResult{
		ProtocolVersion: version,
		Capabilities:    e.srv.Capabilities(),
		ServerInfo:      e.srv.Info(),
		Instructions:    e.srv.Instructions(),
	})
	if err != nil {
		_ = e.mgr.Close(context.WithoutCancel(ctx), h.SessionID())
		return nil, nil, err
	}

	e.log.InfoContext(ctx, "engine.initialize.ok",
		slog.String("client", params.ClientInfo.Name),
		slog.String("requested_version", params.ProtocolVersion),
		slog.Int64("dur_ms", time.Since(start).Milliseconds()),
	)
	e.observe(req.Method, OutcomeOK, start)
	return h, res, nil
}

// LoadSession resolves a live session for userID.
func (e *Engine) LoadSession(ctx context.Context, sessionID, userID string) (*sessions.Handle, error) {
	return e.mgr.Load(ctx, sessionID, userID)
}

// CloseSession tears down the session and everything it owns.
func (e *Engine) CloseSession(ctx context.Context, h *sessions.Handle) error {
	return e.mgr.Close(withSession(ctx, h), h.SessionID())
}

// StreamSession delivers the session's push messages to fn.
func (e *Engine) StreamSession(ctx context.Context, h *sessions.Handle, lastEventID string, fn sessions.MessageHandlerFunction) error {
	return e.mgr.Stream(ctx, h, lastEventID, fn)
}

// HandleRequest answers one request on an Active session. The returned
// response is never nil when err is nil; err is reserved for failures to
// encode a result.
func (e *Engine) HandleRequest(ctx context.Context, h *sessions.Handle, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	start := time.Now()
	ctx = withSession(ctx, h)
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: req.Method, ID: req.ID.String(), Type: "request"})

	if req.Method == string(mcp.InitializeMethod) {
		e.log.WarnContext(ctx, "engine.handle_request.reinitialize")
		e.observe(req.Method, OutcomeError, start)
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeProtocol, ErrAlreadyInitialized.Error(), nil), nil
	}

	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(context.Canceled)
	stop := context.AfterFunc(h.Context(), func() { cancel(context.Cause(h.Context())) })
	defer stop()

	done, err := h.Track(req.ID.Key(), cancel)
	switch {
	case errors.Is(err, sessions.ErrDuplicateRequest):
		e.log.WarnContext(ctx, "engine.handle_request.duplicate_id")
		e.observe(req.Method, OutcomeError, start)
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidRequest, "request id already in flight", nil), nil
	case err != nil:
		e.observe(req.Method, OutcomeError, start)
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeProtocol, err.Error(), nil), nil
	}
	defer done()

	res, err := e.dispatch(reqCtx, h, req)
	if err != nil {
		e.log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		e.observe(req.Method, OutcomeError, start)
		return nil, err
	}

	outcome := OutcomeOK
	if res.Error != nil {
		outcome = OutcomeError
	}
	e.log.DebugContext(ctx, "engine.handle_request."+outcome, slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	e.observe(req.Method, outcome, start)
	return res, nil
}

func (e *Engine) dispatch(ctx context.Context, h *sessions.Handle, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	switch mcp.Method(req.Method) {
	case mcp.PingMethod:
		return jsonrpc.NewResultResponse(req.ID, &mcp.EmptyResult{})
	case mcp.ToolsListMethod:
		return e.handleToolsList(ctx, h, req)
	case mcp.ToolsCallMethod:
		return e.handleToolCall(ctx, h, req)
	case mcp.ResourcesListMethod:
		return e.handleResourcesList(ctx, h, req)
	case mcp.ResourcesTemplatesListMethod:
		return e.handleResourcesTemplatesList(ctx, h, req)
	case mcp.ResourcesReadMethod:
		return e.handleResourcesRead(ctx, h, req)
	case mcp.LoggingSetLevelMethod:
		return e.handleSetLoggingLevel(ctx, h, req)
	}
	e.log.InfoContext(ctx, "engine.handle_request.unknown_method")
	return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "method not found: "+req.Method, nil), nil
}

// HandleNotification processes a client notification. Unknown notifications
// are ignored.
func (e *Engine) HandleNotification(ctx context.Context, h *sessions.Handle, note *jsonrpc.Request) error {
	ctx = withSession(ctx, h)
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: note.Method, Type: "notification"})

	switch mcp.Method(note.Method) {
	case mcp.InitializedNotificationMethod:
		if h.MarkReady() {
			e.log.InfoContext(ctx, "engine.session.initialized")
		}
	case mcp.CancelledNotificationMethod:
		var params mcp.CancelledNotification
		if err := unmarshalParams(note.Params, &params); err != nil || len(params.RequestID) == 0 {
			e.log.InfoContext(ctx, "engine.cancel.invalid")
			return nil
		}
		var id jsonrpc.RequestID
		if err := json.Unmarshal(params.RequestID, &id); err != nil {
			e.log.InfoContext(ctx, "engine.cancel.invalid", slog.String("err", err.Error()))
			return nil
		}
		if h.CancelRequest(id.Key(), params.Reason) {
			e.log.InfoContext(ctx, "engine.cancel.ok", slog.String("request_id", id.String()))
		} else {
			e.log.DebugContext(ctx, "engine.cancel.miss", slog.String("request_id", id.String()))
		}
	default:
		e.log.DebugContext(ctx, "engine.handle_notification.ignored")
	}
	return nil
}

func (e *Engine) handleSetLoggingLevel(ctx context.Context, h *sessions.Handle, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	var params mcp.SetLevelRequest
	if err := unmarshalParams(req.Params, &params); err != nil {
		return invalidParams(req, err.Error()), nil
	}
	if err := h.SetLogLevel(params.Level); err != nil {
		return invalidParams(req, err.Error()), nil
	}
	e.log.InfoContext(ctx, "engine.logging.set_level", slog.String("level", string(params.Level)))
	return jsonrpc.NewResultResponse(req.ID, &mcp.EmptyResult{})
}

func (e *Engine) handleToolsList(ctx context.Context, h *sessions.Handle, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	var params mcp.ListToolsRequest
	if err := unmarshalParams(req.Params, &params); err != nil {
		return invalidParams(req, err.Error()), nil
	}
	tools, ok := e.srv.Tools()
	if !ok {
		return jsonrpc.NewResultResponse(req.ID, &mcp.ListToolsResult{Tools: []mcp.Tool{}})
	}
	page, err := tools.ListTools(ctx, h, cursorOf(params.PaginatedRequest))
	if err != nil {
		return invalidParams(req, err.Error()), nil
	}
	return jsonrpc.NewResultResponse(req.ID, &mcp.ListToolsResult{
		Tools:           nonNil(page.Items),
		PaginatedResult: nextCursor(page.NextCursor),
	})
}

func (e *Engine) handleToolCall(ctx context.Context, h *sessions.Handle, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	var params mcp.CallToolRequestReceived
	if err := unmarshalParams(req.Params, &params); err != nil {
		return invalidParams(req, err.Error()), nil
	}
	if params.Name == "" {
		return invalidParams(req, "missing tool name"), nil
	}
	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: params.Name})

	tools, ok := e.srv.Tools()
	if !ok {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "tools not supported", nil), nil
	}
	if params.Meta != nil && params.Meta.ProgressToken != nil {
		ctx = mcpservice.WithProgressReporter(ctx, progressReporter{sess: h, token: params.Meta.ProgressToken})
	}

	start := time.Now()
	res, err := tools.CallTool(ctx, h, &params)
	if err == nil {
		e.log.InfoContext(ctx, "engine.tool_call.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		e.toolCalled(params.Name, "")
		return jsonrpc.NewResultResponse(req.ID, res)
	}

	if errors.Is(err, mcpservice.ErrToolNotFound) {
		e.log.InfoContext(ctx, "engine.tool_call.unknown")
		return invalidParams(req, "unknown tool: "+params.Name), nil
	}
	if cause := context.Cause(ctx); cause != nil && ctx.Err() != nil {
		e.log.InfoContext(ctx, "engine.tool_call.cancelled", slog.String("cause", cause.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		e.toolCalled(params.Name, "cancelled")
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "request cancelled: "+cause.Error(), nil), nil
	}

	kind := integration.KindOf(err)
	e.log.WarnContext(ctx, "engine.tool_call.fail",
		slog.String("kind", string(kind)),
		slog.String("err", err.Error()),
		slog.Int64("dur_ms", time.Since(start).Milliseconds()),
	)
	e.toolCalled(params.Name, kind)
	return jsonrpc.NewResultResponse(req.ID, ToolErrorResult(err))
}

// ToolErrorResult renders a failed tool call as a CallToolResult with
// isError set and the error kind under _meta.errorKind.
func ToolErrorResult(err error) *mcp.CallToolResult {
	res := &mcp.CallToolResult{
		Content: []mcp.ContentBlock{mcp.TextBlock(err.Error())},
		IsError: true,
	}
	res.SetMeta(mcp.MetaErrorKind, string(integration.KindOf(err)))
	var ie *integration.Error
	if errors.As(err, &ie) && ie.Integration != "" {
		res.SetMeta(mcp.MetaIntegration, string(ie.Integration))
	}
	return res
}

func (e *Engine) handleResourcesList(ctx context.Context, h *sessions.Handle, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	var params mcp.ListResourcesRequest
	if err := unmarshalParams(req.Params, &params); err != nil {
		return invalidParams(req, err.Error()), nil
	}
	res, ok := e.srv.Resources()
	if !ok {
		return jsonrpc.NewResultResponse(req.ID, &mcp.ListResourcesResult{Resources: []mcp.Resource{}})
	}
	page, err := res.ListResources(ctx, h, cursorOf(params.PaginatedRequest))
	if err != nil {
		return invalidParams(req, err.Error()), nil
	}
	return jsonrpc.NewResultResponse(req.ID, &mcp.ListResourcesResult{
		Resources:       nonNil(page.Items),
		PaginatedResult: nextCursor(page.NextCursor),
	})
}

func (e *Engine) handleResourcesTemplatesList(ctx context.Context, h *sessions.Handle, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	var params mcp.ListResourceTemplatesRequest
	if err := unmarshalParams(req.Params, &params); err != nil {
		return invalidParams(req, err.Error()), nil
	}
	res, ok := e.srv.Resources()
	if !ok {
		return jsonrpc.NewResultResponse(req.ID, &mcp.ListResourceTemplatesResult{ResourceTemplates: []mcp.ResourceTemplate{}})
	}
	page, err := res.ListResourceTemplates(ctx, h, cursorOf(params.PaginatedRequest))
	if err != nil {
		return invalidParams(req, err.Error()), nil
	}
	return jsonrpc.NewResultResponse(req.ID, &mcp.ListResourceTemplatesResult{
		ResourceTemplates: nonNil(page.Items),
		PaginatedResult:   nextCursor(page.NextCursor),
	})
}

func (e *Engine) handleResourcesRead(ctx context.Context, h *sessions.Handle, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	var params mcp.ReadResourceRequest
	if err := unmarshalParams(req.Params, &params); err != nil {
		return invalidParams(req, err.Error()), nil
	}
	if params.URI == "" {
		return invalidParams(req, "missing uri"), nil
	}
	ctx = logctx.WithResourceData(ctx, &logctx.ResourceData{URI: params.URI})

	res, ok := e.srv.Resources()
	if !ok {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "resources not supported", nil), nil
	}

	start := time.Now()
	contents, err := res.ReadResource(ctx, h, params.URI)
	if err != nil {
		code := ResourceErrorCode(err)
		if cause := context.Cause(ctx); cause != nil && ctx.Err() != nil {
			code = jsonrpc.ErrorCodeInternalError
			err = cause
		}
		e.log.WarnContext(ctx, "engine.resource_read.fail",
			slog.Int("code", int(code)),
			slog.String("err", err.Error()),
			slog.Int64("dur_ms", time.Since(start).Milliseconds()),
		)
		return jsonrpc.NewErrorResponse(req.ID, code, err.Error(), errorData(err)), nil
	}
	e.log.InfoContext(ctx, "engine.resource_read.ok", slog.Int("content_count", len(contents)), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	return jsonrpc.NewResultResponse(req.ID, &mcp.ReadResourceResult{Contents: contents})
}

// ResourceErrorCode maps a resource read failure to its JSON-RPC error code.
func ResourceErrorCode(err error) jsonrpc.ErrorCode {
	if errors.Is(err, mcpservice.ErrResourceNotFound) {
		return jsonrpc.ErrorCodeNotFound
	}
	switch integration.KindOf(err) {
	case integration.KindLoginRequired:
		return jsonrpc.ErrorCodeLoginRequired
	case integration.KindNotFound:
		return jsonrpc.ErrorCodeNotFound
	case integration.KindAuthenticationFailed:
		return jsonrpc.ErrorCodeAuthenticationFailed
	case integration.KindValidationFailed:
		return jsonrpc.ErrorCodeInvalidParams
	}
	return jsonrpc.ErrorCodeBackend
}

func errorData(err error) map[string]any {
	data := map[string]any{mcp.MetaErrorKind: string(integration.KindOf(err))}
	if errors.Is(err, mcpservice.ErrResourceNotFound) {
		data[mcp.MetaErrorKind] = string(integration.KindNotFound)
	}
	var ie *integration.Error
	if errors.As(err, &ie) && ie.Integration != "" {
		data[mcp.MetaIntegration] = string(ie.Integration)
	}
	return data
}

func (e *Engine) observe(method, outcome string, start time.Time) {
	if e.obs != nil {
		e.obs.RequestHandled(method, outcome, time.Since(start))
	}
}

func (e *Engine) toolCalled(tool string, kind integration.Kind) {
	if e.obs != nil {
		e.obs.ToolCalled(tool, kind)
	}
}

func withSession(ctx context.Context, h *sessions.Handle) context.Context {
	return logctx.WithSessionData(ctx, &logctx.SessionData{
		SessionID:       h.SessionID(),
		UserID:          h.UserID(),
		ProtocolVersion: h.ProtocolVersion(),
		State:           h.State(),
	})
}

func unmarshalParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func invalidParams(req *jsonrpc.Request, msg string) *jsonrpc.Response {
	return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params: "+msg, nil)
}

func cursorOf(p mcp.PaginatedRequest) *string {
	if p.Cursor == "" {
		return nil
	}
	c := p.Cursor
	return &c
}

func nextCursor(c *string) mcp.PaginatedResult {
	if c == nil {
		return mcp.PaginatedResult{}
	}
	return mcp.PaginatedResult{NextCursor: *c}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// progressReporter pushes notifications/progress for one request onto the
// session stream.
type progressReporter struct {
	sess  *sessions.Handle
	token mcp.ProgressToken
}

func (p progressReporter) Report(ctx context.Context, progress, total float64, message string) error {
	return p.sess.Notify(ctx, mcp.ProgressNotificationMethod, &mcp.ProgressNotificationParams{
		ProgressToken: p.token,
		Progress:      progress,
		Total:         total,
		Message:       message,
	})
}
