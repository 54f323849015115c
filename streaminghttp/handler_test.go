package streaminghttp_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ggoodman/mcp-gateway/auth"
	"github.com/ggoodman/mcp-gateway/auth/authtest"
	"github.com/ggoodman/mcp-gateway/catalog"
	"github.com/ggoodman/mcp-gateway/credentials"
	"github.com/ggoodman/mcp-gateway/integration/fake"
	"github.com/ggoodman/mcp-gateway/internal/engine"
	"github.com/ggoodman/mcp-gateway/internal/jsonrpc"
	"github.com/ggoodman/mcp-gateway/mcp"
	"github.com/ggoodman/mcp-gateway/sessions"
	"github.com/ggoodman/mcp-gateway/sessions/memoryhost"
	"github.com/ggoodman/mcp-gateway/streaminghttp"
)

type testServer struct {
	t   *testing.T
	srv *httptest.Server
	set *fake.Set
	mgr *sessions.Manager
	url string
}

func newTestServer(t *testing.T, opts ...streaminghttp.Option) *testServer {
	t.Helper()
	set := fake.New()
	cat, err := catalog.New(catalog.Options{Backends: set.Backends()})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr := sessions.NewManager(memoryhost.New(), credentials.NewStore(), sessions.WithLogger(log))
	eng := engine.New(cat, mgr, engine.WithLogger(log))

	ts := &testServer{t: t, set: set, mgr: mgr}
	mux := http.NewServeMux()
	ts.srv = httptest.NewServer(mux)
	ts.url = ts.srv.URL + "/mcp"

	h, err := streaminghttp.New(ts.url, eng, append([]streaminghttp.Option{streaminghttp.WithLogger(log)}, opts...)...)
	if err != nil {
		t.Fatalf("streaminghttp.New: %v", err)
	}
	mux.Handle("/", h)
	t.Cleanup(func() {
		_ = mgr.CloseAll(context.Background())
		ts.srv.Close()
	})
	return ts
}

type call struct {
	method  string
	session string
	token   string
	accept  string
	header  map[string]string
	body    any
}

func (ts *testServer) do(c call) *http.Response {
	ts.t.Helper()
	var body io.Reader
	if c.body != nil {
		raw, ok := c.body.([]byte)
		if !ok {
			var err error
			raw, err = json.Marshal(c.body)
			if err != nil {
				ts.t.Fatalf("marshal body: %v", err)
			}
		}
		body = bytes.NewReader(raw)
	}
	if c.method == "" {
		c.method = http.MethodPost
	}
	req, err := http.NewRequest(c.method, ts.url, body)
	if err != nil {
		ts.t.Fatalf("new request: %v", err)
	}
	if c.method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accept == "" {
		c.accept = "application/json"
	}
	req.Header.Set("Accept", c.accept)
	if c.session != "" {
		req.Header.Set("Mcp-Session-Id", c.session)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}
	res, err := ts.srv.Client().Do(req)
	if err != nil {
		ts.t.Fatalf("%s: %v", c.method, err)
	}
	return res
}

func rpc(id any, method mcp.Method, params any) map[string]any {
	m := map[string]any{"jsonrpc": "2.0", "method": string(method)}
	if id != nil {
		m["id"] = id
	}
	if params != nil {
		m["params"] = params
	}
	return m
}

func initParams() map[string]any {
	return map[string]any{
		"protocolVersion": mcp.LatestProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test-client", "version": "1.0.0"},
	}
}

func (ts *testServer) initialize(token string) string {
	ts.t.Helper()
	res := ts.do(call{token: token, body: rpc(1, mcp.InitializeMethod, initParams())})
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(res.Body)
		ts.t.Fatalf("initialize status = %d: %s", res.StatusCode, b)
	}
	id := res.Header.Get("Mcp-Session-Id")
	if id == "" {
		ts.t.Fatalf("initialize returned no session id")
	}
	return id
}

func decodeResponse(t *testing.T, res *http.Response) *jsonrpc.Response {
	t.Helper()
	defer res.Body.Close()
	var out jsonrpc.Response
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return &out
}

func (ts *testServer) callTool(session string, id int, name string, args any) *mcp.CallToolResult {
	ts.t.Helper()
	res := ts.do(call{session: session, body: rpc(id, mcp.ToolsCallMethod, map[string]any{"name": name, "arguments": args})})
	if res.StatusCode != http.StatusOK {
		ts.t.Fatalf("%s: status %d", name, res.StatusCode)
	}
	out := decodeResponse(ts.t, res)
	if out.Error != nil {
		ts.t.Fatalf("%s: %+v", name, out.Error)
	}
	var result mcp.CallToolResult
	if err := json.Unmarshal(out.Result, &result); err != nil {
		ts.t.Fatalf("%s: decode result: %v", name, err)
	}
	return &result
}

func assertProtocolError(t *testing.T, res *http.Response) {
	t.Helper()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.StatusCode)
	}
	defer res.Body.Close()
	var env struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Error   struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.JSONRPC != "2.0" || env.Error.Code != -32000 || string(env.ID) != "null" || env.Error.Message == "" {
		t.Fatalf("envelope = %+v id=%s", env, env.ID)
	}
}

func TestInitializeCreatesSession(t *testing.T) {
	ts := newTestServer(t)

	res := ts.do(call{body: rpc(1, mcp.InitializeMethod, initParams())})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content-type = %q", ct)
	}
	id := res.Header.Get("Mcp-Session-Id")
	if u, err := uuid.Parse(id); err != nil || u.Version() != 4 {
		t.Fatalf("session id %q is not a v4 uuid", id)
	}
	if got := res.Header.Get("Mcp-Protocol-Version"); got != mcp.LatestProtocolVersion {
		t.Fatalf("protocol version header = %q", got)
	}

	out := decodeResponse(t, res)
	var init mcp.InitializeResult
	if err := json.Unmarshal(out.Result, &init); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if init.ServerInfo.Name == "" || init.Capabilities.Tools == nil {
		t.Fatalf("initialize result = %+v", init)
	}
	if ts.mgr.Len() != 1 {
		t.Fatalf("live sessions = %d", ts.mgr.Len())
	}
}

func TestProtocolErrors(t *testing.T) {
	ts := newTestServer(t)
	live := ts.initialize("")

	t.Run("missing session on non-init", func(t *testing.T) {
		assertProtocolError(t, ts.do(call{body: rpc(2, mcp.ToolsListMethod, nil)}))
	})
	t.Run("unknown session", func(t *testing.T) {
		assertProtocolError(t, ts.do(call{session: uuid.NewString(), body: rpc(2, mcp.ToolsListMethod, nil)}))
	})
	t.Run("second initialize", func(t *testing.T) {
		assertProtocolError(t, ts.do(call{session: live, body: rpc(3, mcp.InitializeMethod, initParams())}))
	})
	t.Run("get without session", func(t *testing.T) {
		assertProtocolError(t, ts.do(call{method: http.MethodGet, accept: "text/event-stream"}))
	})
	t.Run("get without session and non-sse accept", func(t *testing.T) {
		assertProtocolError(t, ts.do(call{method: http.MethodGet, accept: "application/json"}))
	})
	t.Run("get unknown session and non-sse accept", func(t *testing.T) {
		assertProtocolError(t, ts.do(call{method: http.MethodGet, session: uuid.NewString(), accept: "application/json"}))
	})
	t.Run("get live session and non-sse accept", func(t *testing.T) {
		res := ts.do(call{method: http.MethodGet, session: live, accept: "application/json"})
		res.Body.Close()
		if res.StatusCode != http.StatusNotAcceptable {
			t.Fatalf("status = %d, want 406", res.StatusCode)
		}
	})
	t.Run("delete unknown session", func(t *testing.T) {
		assertProtocolError(t, ts.do(call{method: http.MethodDelete, session: "nope"}))
	})
	t.Run("protocol version mismatch", func(t *testing.T) {
		assertProtocolError(t, ts.do(call{
			session: live,
			header:  map[string]string{"Mcp-Protocol-Version": "1999-01-01"},
			body:    rpc(4, mcp.PingMethod, nil),
		}))
	})

	if ts.mgr.Len() != 1 {
		t.Fatalf("session table changed: %d live", ts.mgr.Len())
	}
}

func TestDeleteClosesSession(t *testing.T) {
	ts := newTestServer(t)
	id := ts.initialize("")

	res := ts.do(call{method: http.MethodDelete, session: id})
	res.Body.Close()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", res.StatusCode)
	}
	if ts.mgr.Len() != 0 {
		t.Fatalf("live sessions = %d", ts.mgr.Len())
	}
	assertProtocolError(t, ts.do(call{session: id, body: rpc(2, mcp.PingMethod, nil)}))

	next := ts.initialize("")
	if next == id {
		t.Fatalf("closed session id handed out again")
	}
}

func TestMalformedMessages(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, ts.url, strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	res, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("content-type status = %d", res.StatusCode)
	}

	res = ts.do(call{body: []byte(`[{"jsonrpc":"2.0","method":"ping","id":1}]`)})
	if out := decodeResponse(t, res); res.StatusCode != http.StatusBadRequest || out.Error == nil || out.Error.Code != jsonrpc.ErrorCodeInvalidRequest {
		t.Fatalf("batch: status %d error %+v", res.StatusCode, out.Error)
	}

	res = ts.do(call{body: []byte(`{"jsonrpc":`)})
	if out := decodeResponse(t, res); res.StatusCode != http.StatusBadRequest || out.Error == nil || out.Error.Code != jsonrpc.ErrorCodeParseError {
		t.Fatalf("parse error: status %d error %+v", res.StatusCode, out.Error)
	}
}

func TestNotificationsAreAccepted(t *testing.T) {
	ts := newTestServer(t)
	id := ts.initialize("")

	res := ts.do(call{session: id, body: rpc(nil, mcp.InitializedNotificationMethod, nil)})
	res.Body.Close()
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", res.StatusCode)
	}
	h, err := ts.mgr.Load(context.Background(), id, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !h.Ready() {
		t.Fatalf("session not marked ready")
	}
}

func TestRequestAnsweredAsEvent(t *testing.T) {
	ts := newTestServer(t)
	id := ts.initialize("")

	res := ts.do(call{session: id, accept: "text/event-stream", body: rpc(9, mcp.PingMethod, nil)})
	defer res.Body.Close()
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content-type = %q", ct)
	}
	b, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	data, ok := strings.CutPrefix(strings.TrimSpace(string(b)), "data: ")
	if !ok {
		t.Fatalf("not an SSE event: %q", b)
	}
	var out jsonrpc.Response
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Error != nil || out.ID.String() != "9" || string(out.Result) != "{}" {
		t.Fatalf("response = %+v", out)
	}
}

func TestIssueScenarioWithPushedWarning(t *testing.T) {
	ts := newTestServer(t)
	id := ts.initialize("")

	login := ts.callTool(id, 2, "login-issuetracker", map[string]any{"host": "acme.atlassian.net", "username": "me@acme.test", "apiToken": "tok"})
	if login.IsError {
		t.Fatalf("login: %+v", login)
	}
	created := ts.callTool(id, 3, "create-issue", map[string]any{"projectKey": "OPS", "summary": "Fix build", "issueType": "Task"})
	key, _ := created.StructuredContent["key"].(string)
	if created.IsError || key == "" {
		t.Fatalf("create-issue: %+v", created)
	}

	updated := ts.callTool(id, 4, "update-issue", map[string]any{"itemKey": key, "status": "Done"})
	if updated.IsError || updated.Meta["statusApplied"] != false {
		t.Fatalf("update-issue: %+v", updated)
	}
	issue, _ := ts.set.Tracker.Issue(key)
	if issue.Status == "Done" {
		t.Fatalf("status changed: %+v", issue)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.url, nil)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Mcp-Session-Id", id)
	req.Header.Set("Last-Event-ID", "0")
	res, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET status = %d", res.StatusCode)
	}

	var eventID, data string
	sc := bufio.NewScanner(res.Body)
	for sc.Scan() {
		line := sc.Text()
		if line == "" && data != "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "id: "); ok {
			eventID = v
		}
		if v, ok := strings.CutPrefix(line, "data: "); ok {
			data = v
		}
	}
	if eventID == "" {
		t.Fatalf("event without id")
	}
	var note struct {
		Method string                         `json:"method"`
		Params mcp.LoggingMessageNotification `json:"params"`
	}
	if err := json.Unmarshal([]byte(data), &note); err != nil {
		t.Fatalf("decode event %q: %v", data, err)
	}
	if note.Method != string(mcp.LoggingMessageNotificationMethod) || note.Params.Level != mcp.LoggingLevelWarning {
		t.Fatalf("event = %+v", note)
	}
}

func TestToolErrorKindsOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	id := ts.initialize("")

	res := ts.callTool(id, 2, "create-meeting", map[string]any{"summary": "Sync", "start": "2026-01-01T10:00:00Z", "end": "2026-01-01T10:00:00Z"})
	if !res.IsError || res.Meta["errorKind"] != "login_required" {
		t.Fatalf("result = %+v", res)
	}

	read := ts.do(call{session: id, body: rpc(3, mcp.ResourcesReadMethod, map[string]any{"uri": "calendar://events"})})
	out := decodeResponse(t, read)
	if out.Error == nil || out.Error.Code != jsonrpc.ErrorCodeLoginRequired {
		t.Fatalf("read error = %+v", out.Error)
	}
}

type metadataTokens struct {
	authtest.Tokens
}

func (metadataTokens) Metadata() auth.Metadata {
	return auth.Metadata{AuthorizationServers: []string{"https://issuer.example.com"}, ScopesSupported: []string{"gateway:use"}}
}

func TestAuthenticationBindsSessionsToSubject(t *testing.T) {
	ts := newTestServer(t, streaminghttp.WithAuthenticator(metadataTokens{authtest.Tokens{"tok-a": "alice", "tok-b": "bob"}}))

	res := ts.do(call{body: rpc(1, mcp.InitializeMethod, initParams())})
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", res.StatusCode)
	}
	challenge := res.Header.Get("WWW-Authenticate")
	if !strings.HasPrefix(challenge, "Bearer") || !strings.Contains(challenge, `resource_metadata="`+ts.srv.URL+`/.well-known/oauth-protected-resource/mcp"`) {
		t.Fatalf("challenge = %q", challenge)
	}

	res = ts.do(call{token: "forged", body: rpc(1, mcp.InitializeMethod, initParams())})
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized || !strings.Contains(res.Header.Get("WWW-Authenticate"), `error="invalid_token"`) {
		t.Fatalf("bad token: status %d challenge %q", res.StatusCode, res.Header.Get("WWW-Authenticate"))
	}

	id := ts.initialize("tok-a")
	ok := ts.do(call{session: id, token: "tok-a", body: rpc(2, mcp.PingMethod, nil)})
	ok.Body.Close()
	if ok.StatusCode != http.StatusOK {
		t.Fatalf("owner ping status = %d", ok.StatusCode)
	}
	assertProtocolError(t, ts.do(call{session: id, token: "tok-b", body: rpc(3, mcp.PingMethod, nil)}))

	prm, err := ts.srv.Client().Get(ts.srv.URL + "/.well-known/oauth-protected-resource/mcp")
	if err != nil {
		t.Fatalf("GET prm: %v", err)
	}
	defer prm.Body.Close()
	var doc struct {
		Resource             string   `json:"resource"`
		AuthorizationServers []string `json:"authorization_servers"`
	}
	if err := json.NewDecoder(prm.Body).Decode(&doc); err != nil {
		t.Fatalf("decode prm: %v", err)
	}
	if doc.Resource != ts.url || len(doc.AuthorizationServers) != 1 {
		t.Fatalf("prm = %+v", doc)
	}
}
