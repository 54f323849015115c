package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/mcp-gateway/catalog"
	"github.com/ggoodman/mcp-gateway/credentials"
	"github.com/ggoodman/mcp-gateway/integration"
	"github.com/ggoodman/mcp-gateway/integration/fake"
	"github.com/ggoodman/mcp-gateway/internal/engine"
	"github.com/ggoodman/mcp-gateway/internal/jsonrpc"
	"github.com/ggoodman/mcp-gateway/mcp"
	"github.com/ggoodman/mcp-gateway/mcpservice"
	"github.com/ggoodman/mcp-gateway/sessions"
	"github.com/ggoodman/mcp-gateway/sessions/memoryhost"
)

type recorder struct {
	mu       sync.Mutex
	requests map[string][]string
	tools    map[string][]integration.Kind
}

func (r *recorder) RequestHandled(method, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.requests == nil {
		r.requests = make(map[string][]string)
	}
	r.requests[method] = append(r.requests[method], outcome)
}

func (r *recorder) ToolCalled(tool string, kind integration.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tools == nil {
		r.tools = make(map[string][]integration.Kind)
	}
	r.tools[tool] = append(r.tools[tool], kind)
}

func newEngine(t *testing.T, srv *mcpservice.Server, opts ...engine.Option) (*engine.Engine, *sessions.Manager) {
	t.Helper()
	mgr := sessions.NewManager(memoryhost.New(), credentials.NewStore())
	t.Cleanup(func() { _ = mgr.CloseAll(context.Background()) })
	return engine.New(srv, mgr, opts...), mgr
}

func catalogServer(t *testing.T) (*mcpservice.Server, *fake.Set) {
	t.Helper()
	set := fake.New()
	srv, err := catalog.New(catalog.Options{Backends: set.Backends()})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return srv, set
}

func request(t *testing.T, id any, method mcp.Method, params any) *jsonrpc.Request {
	t.Helper()
	req := &jsonrpc.Request{JSONRPCVersion: jsonrpc.ProtocolVersion, Method: string(method)}
	if id != nil {
		req.ID = jsonrpc.NewRequestID(id)
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			t.Fatalf("marshal params: %v", err)
		}
		req.Params = raw
	}
	return req
}

func initialize(t *testing.T, e *engine.Engine) *sessions.Handle {
	t.Helper()
	h, res, err := e.InitializeSession(context.Background(), "user-1", request(t, 0, mcp.InitializeMethod, &mcp.InitializeRequest{
		ProtocolVersion: mcp.LatestProtocolVersion,
		ClientInfo:      mcp.ImplementationInfo{Name: "test", Version: "1"},
	}))
	if err != nil {
		t.Fatalf("InitializeSession: %v", err)
	}
	if res.Error != nil {
		t.Fatalf("initialize error: %+v", res.Error)
	}
	return h
}

func handle(t *testing.T, e *engine.Engine, h *sessions.Handle, req *jsonrpc.Request) *jsonrpc.Response {
	t.Helper()
	res, err := e.HandleRequest(context.Background(), h, req)
	if err != nil {
		t.Fatalf("HandleRequest(%s): %v", req.Method, err)
	}
	return res
}

func decode[T any](t *testing.T, res *jsonrpc.Response) *T {
	t.Helper()
	if res.Error != nil {
		t.Fatalf("unexpected error response: %+v", res.Error)
	}
	var out T
	if err := json.Unmarshal(res.Result, &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return &out
}

func TestInitializeNegotiatesVersion(t *testing.T) {
	srv, _ := catalogServer(t)
	e, mgr := newEngine(t, srv)

	h, res, err := e.InitializeSession(context.Background(), "user-1", request(t, 1, mcp.InitializeMethod, &mcp.InitializeRequest{
		ProtocolVersion: "1999-01-01",
		ClientInfo:      mcp.ImplementationInfo{Name: "old-client"},
	}))
	if err != nil {
		t.Fatalf("InitializeSession: %v", err)
	}
	got := decode[mcp.InitializeResult](t, res)
	if got.ProtocolVersion != mcp.LatestProtocolVersion {
		t.Fatalf("protocolVersion = %q, want %q", got.ProtocolVersion, mcp.LatestProtocolVersion)
	}
	if got.Capabilities.Tools == nil || got.Capabilities.Resources == nil || got.Capabilities.Logging == nil {
		t.Fatalf("capabilities = %+v", got.Capabilities)
	}
	if h.ProtocolVersion() != mcp.LatestProtocolVersion || h.UserID() != "user-1" {
		t.Fatalf("handle = %s/%s", h.UserID(), h.ProtocolVersion())
	}
	if h.ClientInfo().Name != "old-client" {
		t.Fatalf("client = %+v", h.ClientInfo())
	}
	if mgr.Len() != 1 {
		t.Fatalf("live sessions = %d", mgr.Len())
	}
	if h.LogLevel() != mcp.LoggingLevelInfo {
		t.Fatalf("default log level = %q", h.LogLevel())
	}
}

func TestInitializeRequiresInitializeMethod(t *testing.T) {
	srv, _ := catalogServer(t)
	e, mgr := newEngine(t, srv)

	_, _, err := e.InitializeSession(context.Background(), "u", request(t, 1, mcp.ToolsListMethod, nil))
	if !errors.Is(err, engine.ErrNotInitialize) {
		t.Fatalf("want ErrNotInitialize, got %v", err)
	}
	_, _, err = e.InitializeSession(context.Background(), "u", request(t, nil, mcp.InitializeMethod, nil))
	if !errors.Is(err, engine.ErrNotInitialize) {
		t.Fatalf("initialize notification: want ErrNotInitialize, got %v", err)
	}

	h, res, err := e.InitializeSession(context.Background(), "u", &jsonrpc.Request{
		JSONRPCVersion: jsonrpc.ProtocolVersion,
		Method:         string(mcp.InitializeMethod),
		ID:             jsonrpc.NewRequestID(2),
		Params:         json.RawMessage(`"nope"`),
	})
	if err != nil || h != nil {
		t.Fatalf("malformed params: h=%v err=%v", h, err)
	}
	if res.Error == nil || res.Error.Code != jsonrpc.ErrorCodeInvalidParams {
		t.Fatalf("malformed params response = %+v", res)
	}
	if mgr.Len() != 0 {
		t.Fatalf("sessions created: %d", mgr.Len())
	}
}

func TestReinitializeIsProtocolError(t *testing.T) {
	srv, _ := catalogServer(t)
	e, _ := newEngine(t, srv)
	h := initialize(t, e)

	res := handle(t, e, h, request(t, 5, mcp.InitializeMethod, &mcp.InitializeRequest{ProtocolVersion: mcp.LatestProtocolVersion}))
	if res.Error == nil || res.Error.Code != jsonrpc.ErrorCodeProtocol {
		t.Fatalf("response = %+v", res)
	}
}

func TestPingAndUnknownMethod(t *testing.T) {
	srv, _ := catalogServer(t)
	e, _ := newEngine(t, srv)
	h := initialize(t, e)

	if res := handle(t, e, h, request(t, 1, mcp.PingMethod, nil)); res.Error != nil || string(res.Result) != "{}" {
		t.Fatalf("ping = %s %+v", res.Result, res.Error)
	}
	res := handle(t, e, h, request(t, 2, "prompts/list", nil))
	if res.Error == nil || res.Error.Code != jsonrpc.ErrorCodeMethodNotFound {
		t.Fatalf("unknown method = %+v", res)
	}
}

func TestToolsList(t *testing.T) {
	srv, _ := catalogServer(t)
	e, _ := newEngine(t, srv)
	h := initialize(t, e)

	got := decode[mcp.ListToolsResult](t, handle(t, e, h, request(t, 1, mcp.ToolsListMethod, nil)))
	names := make(map[string]bool)
	for _, tool := range got.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"login-issuetracker", "create-issue", "update-issue", "login-calendar", "create-meeting", "login-docs", "create-doc"} {
		if !names[want] {
			t.Fatalf("tools/list missing %q: %v", want, names)
		}
	}
}

func TestToolFailuresBecomeErrorResults(t *testing.T) {
	srv, set := catalogServer(t)
	rec := &recorder{}
	e, _ := newEngine(t, srv, engine.WithObserver(rec))
	h := initialize(t, e)

	res := handle(t, e, h, request(t, 1, mcp.ToolsCallMethod, map[string]any{
		"name":      "create-issue",
		"arguments": map[string]any{"projectKey": "OPS", "summary": "x", "issueType": "Task"},
	}))
	got := decode[mcp.CallToolResult](t, res)
	if !got.IsError {
		t.Fatalf("want isError result, got %+v", got)
	}
	if got.Meta["errorKind"] != string(integration.KindLoginRequired) {
		t.Fatalf("errorKind = %v", got.Meta["errorKind"])
	}
	if got.Meta["integration"] != string(integration.IssueTracker) {
		t.Fatalf("integration = %v", got.Meta["integration"])
	}
	if len(got.Content) != 1 || got.Content[0].Text == "" {
		t.Fatalf("content = %+v", got.Content)
	}
	if n := set.Constructions(integration.IssueTracker); n != 0 {
		t.Fatalf("adapter built %d times", n)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if kinds := rec.tools["create-issue"]; len(kinds) != 1 || kinds[0] != integration.KindLoginRequired {
		t.Fatalf("observed tool kinds = %v", kinds)
	}
	if outcomes := rec.requests[string(mcp.ToolsCallMethod)]; len(outcomes) != 1 || outcomes[0] != engine.OutcomeOK {
		t.Fatalf("observed outcomes = %v", outcomes)
	}
}

func TestUnknownToolIsInvalidParams(t *testing.T) {
	srv, _ := catalogServer(t)
	e, _ := newEngine(t, srv)
	h := initialize(t, e)

	res := handle(t, e, h, request(t, 1, mcp.ToolsCallMethod, map[string]any{"name": "drop-tables"}))
	if res.Error == nil || res.Error.Code != jsonrpc.ErrorCodeInvalidParams {
		t.Fatalf("response = %+v", res)
	}
}

func TestResourceErrorCodes(t *testing.T) {
	srv, _ := catalogServer(t)
	e, _ := newEngine(t, srv)
	h := initialize(t, e)

	read := func(id int, uri string) *jsonrpc.Response {
		return handle(t, e, h, request(t, id, mcp.ResourcesReadMethod, &mcp.ReadResourceRequest{URI: uri}))
	}

	if res := read(1, "issuetracker://items"); res.Error == nil || res.Error.Code != jsonrpc.ErrorCodeLoginRequired {
		t.Fatalf("before login = %+v", res.Error)
	}

	login := decode[mcp.CallToolResult](t, handle(t, e, h, request(t, 2, mcp.ToolsCallMethod, map[string]any{
		"name":      "login-issuetracker",
		"arguments": map[string]any{"host": "acme.atlassian.net", "username": "me@acme.test", "apiToken": "tok"},
	})))
	if login.IsError {
		t.Fatalf("login failed: %+v", login)
	}

	if res := read(3, "issuetracker://items/OPS-404"); res.Error == nil || res.Error.Code != jsonrpc.ErrorCodeNotFound {
		t.Fatalf("missing issue = %+v", res.Error)
	}
	if res := read(4, "ftp://nowhere"); res.Error == nil || res.Error.Code != jsonrpc.ErrorCodeNotFound {
		t.Fatalf("unknown uri = %+v", res.Error)
	}
	if res := read(5, ""); res.Error == nil || res.Error.Code != jsonrpc.ErrorCodeInvalidParams {
		t.Fatalf("empty uri = %+v", res.Error)
	}
}

func TestResourceErrorCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want jsonrpc.ErrorCode
	}{
		{integration.LoginRequired(integration.Docs), jsonrpc.ErrorCodeLoginRequired},
		{integration.NotFound(integration.Docs, "doc-9"), jsonrpc.ErrorCodeNotFound},
		{integration.AuthenticationFailed(integration.Docs, "rejected", nil), jsonrpc.ErrorCodeAuthenticationFailed},
		{integration.Validationf(integration.Docs, "bad"), jsonrpc.ErrorCodeInvalidParams},
		{integration.Backend(integration.Docs, "boom", nil), jsonrpc.ErrorCodeBackend},
		{mcpservice.ErrResourceNotFound, jsonrpc.ErrorCodeNotFound},
		{errors.New("plain"), jsonrpc.ErrorCodeBackend},
	}
	for _, tc := range cases {
		if got := engine.ResourceErrorCode(tc.err); got != tc.want {
			t.Errorf("ResourceErrorCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestResourceListings(t *testing.T) {
	srv, _ := catalogServer(t)
	e, _ := newEngine(t, srv)
	h := initialize(t, e)

	templates := decode[mcp.ListResourceTemplatesResult](t, handle(t, e, h, request(t, 1, mcp.ResourcesTemplatesListMethod, nil)))
	if len(templates.ResourceTemplates) != 3 {
		t.Fatalf("templates = %+v", templates.ResourceTemplates)
	}
	resources := decode[mcp.ListResourcesResult](t, handle(t, e, h, request(t, 2, mcp.ResourcesListMethod, nil)))
	if len(resources.Resources) != 3 {
		t.Fatalf("resources = %+v", resources.Resources)
	}
}

func TestSetLoggingLevel(t *testing.T) {
	srv, _ := catalogServer(t)
	e, _ := newEngine(t, srv)
	h := initialize(t, e)

	res := handle(t, e, h, request(t, 1, mcp.LoggingSetLevelMethod, &mcp.SetLevelRequest{Level: "verbose"}))
	if res.Error == nil || res.Error.Code != jsonrpc.ErrorCodeInvalidParams {
		t.Fatalf("invalid level = %+v", res)
	}
	if h.LogLevel() != mcp.LoggingLevelInfo {
		t.Fatalf("level changed to %q", h.LogLevel())
	}

	if res := handle(t, e, h, request(t, 2, mcp.LoggingSetLevelMethod, &mcp.SetLevelRequest{Level: mcp.LoggingLevelError})); res.Error != nil {
		t.Fatalf("set level: %+v", res.Error)
	}
	if h.LogLevel() != mcp.LoggingLevelError {
		t.Fatalf("level = %q", h.LogLevel())
	}
}

func TestInitializedNotificationMarksReady(t *testing.T) {
	srv, _ := catalogServer(t)
	e, _ := newEngine(t, srv)
	h := initialize(t, e)

	if h.Ready() {
		t.Fatalf("ready before notifications/initialized")
	}
	if err := e.HandleNotification(context.Background(), h, request(t, nil, mcp.InitializedNotificationMethod, nil)); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}
	if !h.Ready() {
		t.Fatalf("not ready after notifications/initialized")
	}
}

func blockingServer(t *testing.T, started chan<- struct{}) *mcpservice.Server {
	t.Helper()
	tools, err := mcpservice.NewToolsContainer(
		mcpservice.NewTool[struct{}]("block", func(ctx context.Context, _ sessions.Session, _ mcpservice.ToolResponseWriter, _ *mcpservice.ToolRequest[struct{}]) error {
			started <- struct{}{}
			<-ctx.Done()
			return ctx.Err()
		}),
		mcpservice.NewTool[struct{}]("progress", func(ctx context.Context, _ sessions.Session, w mcpservice.ToolResponseWriter, _ *mcpservice.ToolRequest[struct{}]) error {
			if err := w.SendProgress(1, 2, "halfway"); err != nil {
				return err
			}
			return w.AppendText("done")
		}),
	)
	if err != nil {
		t.Fatalf("NewToolsContainer: %v", err)
	}
	return mcpservice.NewServer(mcpservice.WithToolsCapability(tools))
}

func TestCancelledNotificationStopsToolCall(t *testing.T) {
	started := make(chan struct{}, 1)
	e, _ := newEngine(t, blockingServer(t, started))
	h := initialize(t, e)

	type result struct {
		res *jsonrpc.Response
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := e.HandleRequest(context.Background(), h, request(t, 7, mcp.ToolsCallMethod, map[string]any{"name": "block"}))
		done <- result{res, err}
	}()
	<-started

	dup := handle(t, e, h, request(t, 7, mcp.PingMethod, nil))
	if dup.Error == nil || dup.Error.Code != jsonrpc.ErrorCodeInvalidRequest {
		t.Fatalf("duplicate id = %+v", dup)
	}

	if err := e.HandleNotification(context.Background(), h, request(t, nil, mcp.CancelledNotificationMethod, map[string]any{
		"requestId": 7,
		"reason":    "user gave up",
	})); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("HandleRequest: %v", r.err)
		}
		if r.res.Error == nil || r.res.Error.Code != jsonrpc.ErrorCodeInternalError {
			t.Fatalf("cancelled response = %+v", r.res)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("tool call was not cancelled")
	}
	if n := h.InFlight(); n != 0 {
		t.Fatalf("in flight = %d", n)
	}
}

func TestClosingSessionCancelsInFlightCalls(t *testing.T) {
	started := make(chan struct{}, 1)
	e, _ := newEngine(t, blockingServer(t, started))
	h := initialize(t, e)

	done := make(chan *jsonrpc.Response, 1)
	go func() {
		res, _ := e.HandleRequest(context.Background(), h, request(t, "a", mcp.ToolsCallMethod, map[string]any{"name": "block"}))
		done <- res
	}()
	<-started

	if err := e.CloseSession(context.Background(), h); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	select {
	case res := <-done:
		if res == nil || res.Error == nil {
			t.Fatalf("response = %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("tool call survived session close")
	}
	if _, err := e.LoadSession(context.Background(), h.SessionID(), h.UserID()); !errors.Is(err, sessions.ErrSessionNotFound) {
		t.Fatalf("LoadSession after close: %v", err)
	}
}

func TestProgressIsPushedToSessionStream(t *testing.T) {
	e, _ := newEngine(t, blockingServer(t, make(chan struct{}, 1)))
	h := initialize(t, e)

	res := decode[mcp.CallToolResult](t, handle(t, e, h, request(t, 1, mcp.ToolsCallMethod, map[string]any{
		"name":  "progress",
		"_meta": map[string]any{"progressToken": "tok-1"},
	})))
	if res.IsError || len(res.Content) != 1 || res.Content[0].Text != "done" {
		t.Fatalf("result = %+v", res)
	}

	stop := errors.New("stop")
	var note struct {
		Method string                         `json:"method"`
		Params mcp.ProgressNotificationParams `json:"params"`
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := e.StreamSession(ctx, h, sessions.StreamStart, func(_ context.Context, _ string, msg []byte) error {
		if err := json.Unmarshal(msg, &note); err != nil {
			return err
		}
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("stream: %v", err)
	}
	if note.Method != string(mcp.ProgressNotificationMethod) {
		t.Fatalf("method = %q", note.Method)
	}
	if note.Params.ProgressToken != "tok-1" || note.Params.Progress != 1 || note.Params.Total != 2 || note.Params.Message != "halfway" {
		t.Fatalf("params = %+v", note.Params)
	}
}
