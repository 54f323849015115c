package streaminghttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/mcp-gateway/auth"
	"github.com/ggoodman/mcp-gateway/internal/engine"
	"github.com/ggoodman/mcp-gateway/internal/jsonrpc"
	"github.com/ggoodman/mcp-gateway/internal/logctx"
	"github.com/ggoodman/mcp-gateway/internal/wellknown"
	"github.com/google/uuid"
)

const (
	headerSessionID       = "Mcp-Session-Id"
	headerProtocolVersion = "Mcp-Protocol-Version"
	headerLastEventID     = "Last-Event-ID"

	maxBodyBytes = 4 << 20
)

var (
	mediaJSON        = contenttype.NewMediaType("application/json")
	mediaEventStream = contenttype.NewMediaType("text/event-stream")
)

type Option func(*options)

type options struct {
	serverName    string
	logger        *slog.Logger
	authenticator auth.Authenticator
	realm         string
}

// WithServerName sets the resource_name of the protected resource metadata.
func WithServerName(name string) Option {
	return func(o *options) { o.serverName = name }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithAuthenticator requires a bearer token on every call and binds sessions
// to the token subject.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(o *options) { o.authenticator = a }
}

// WithRealm sets the realm of WWW-Authenticate challenges.
func WithRealm(realm string) Option {
	return func(o *options) { o.realm = strings.TrimSpace(realm) }
}

// StreamingHTTPHandler serves the gateway engine over streamable HTTP.
type StreamingHTTPHandler struct {
	mux   *http.ServeMux
	log   *slog.Logger
	eng   *engine.Engine
	auth  auth.Authenticator
	realm string

	prm    *wellknown.ProtectedResourceMetadata
	prmURL string
}

var _ http.Handler = (*StreamingHTTPHandler)(nil)

// New serves eng at publicEndpoint, the URL clients use to reach the MCP
// endpoint. Routing only looks at its path.
func New(publicEndpoint string, eng *engine.Engine, opts ...Option) (*StreamingHTTPHandler, error) {
	if eng == nil {
		return nil, errors.New("engine is required")
	}
	endpoint, err := url.Parse(publicEndpoint)
	if err != nil {
		return nil, fmt.Errorf("parse public endpoint %q: %w", publicEndpoint, err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, fmt.Errorf("public endpoint %q is not an http(s) URL", publicEndpoint)
	}

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	h := &StreamingHTTPHandler{
		mux:   http.NewServeMux(),
		log:   slog.New(logctx.Handler{Handler: o.logger.Handler()}),
		eng:   eng,
		auth:  o.authenticator,
		realm: o.realm,
	}

	path := endpoint.Path
	if path == "" {
		path = "/"
	}
	h.mux.HandleFunc("POST "+path, h.handlePost)
	h.mux.HandleFunc("GET "+path, h.handleGet)
	h.mux.HandleFunc("DELETE "+path, h.handleDelete)

	if mp, ok := o.authenticator.(auth.MetadataProvider); ok {
		h.mountResourceMetadata(endpoint, mp.Metadata(), o.serverName)
	}
	return h, nil
}

func (h *StreamingHTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		Transport:  "http",
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})
	h.mux.ServeHTTP(w, r.WithContext(ctx))
}

// rpcFailure is a JSON-RPC error answered by the transport itself. Its id is
// always null.
type rpcFailure struct {
	status int
	code   jsonrpc.ErrorCode
	msg    string
}

func failure(status int, code jsonrpc.ErrorCode, msg string) *rpcFailure {
	return &rpcFailure{status: status, code: code, msg: msg}
}

// protocolFailure covers a missing, unknown or closed session and a repeated
// initialize.
func protocolFailure(msg string) *rpcFailure {
	return failure(http.StatusBadRequest, jsonrpc.ErrorCodeProtocol, msg)
}

func internalFailure(msg string) *rpcFailure {
	return failure(http.StatusInternalServerError, jsonrpc.ErrorCodeInternalError, msg)
}

func (f *rpcFailure) write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", mediaJSON.String())
	w.WriteHeader(f.status)
	_ = json.NewEncoder(w).Encode(jsonrpc.NewErrorResponse(nil, f.code, f.msg, nil))
}
