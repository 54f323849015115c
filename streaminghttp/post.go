package streaminghttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/mcp-gateway/internal/engine"
	"github.com/ggoodman/mcp-gateway/internal/jsonrpc"
	"github.com/ggoodman/mcp-gateway/internal/logctx"
	"github.com/ggoodman/mcp-gateway/mcp"
	"github.com/ggoodman/mcp-gateway/sessions"
)

// handlePost takes exactly one JSON-RPC message. Without a session header it
// must be initialize.
func (h *StreamingHTTPHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	if ct, err := contenttype.GetMediaType(r); err != nil || !ct.Matches(mediaJSON) {
		h.log.WarnContext(ctx, "http.post.content_type", slog.String("content_type", r.Header.Get("Content-Type")))
		failure(http.StatusUnsupportedMediaType, jsonrpc.ErrorCodeInvalidRequest, "content-type must be application/json").write(w)
		return
	}
	user, ok := h.authenticate(ctx, w, r)
	if !ok {
		return
	}
	msg, fail := readMessage(r.Body)
	if fail != nil {
		h.log.WarnContext(ctx, "http.post.body", slog.String("reason", fail.msg))
		fail.write(w)
		return
	}
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: msg.Method, ID: msg.ID.String(), Type: msg.Type()})

	if r.Header.Get(headerSessionID) == "" {
		h.initialize(ctx, w, user.UserID(), msg.AsRequest())
		return
	}

	sess, fail := h.session(ctx, r, user.UserID())
	if fail != nil {
		fail.write(w)
		return
	}
	w.Header().Set(headerProtocolVersion, sess.ProtocolVersion())

	switch {
	case msg.Method == string(mcp.InitializeMethod):
		h.log.WarnContext(ctx, "session.initialize.repeated")
		protocolFailure("session already initialized").write(w)
	case msg.AsResponse() != nil:
		// Nothing is ever asked of the client, so replies are dropped.
		w.WriteHeader(http.StatusAccepted)
	case msg.ID.IsNil():
		h.notify(ctx, w, sess, msg.AsRequest())
	default:
		h.call(ctx, w, r, sess, msg.AsRequest())
	}
	h.log.DebugContext(ctx, "http.post.done", slog.Duration("dur", time.Since(start)))
}

// readMessage decodes a single message. Batches are refused.
func readMessage(body io.Reader) (*jsonrpc.AnyMessage, *rpcFailure) {
	var raw json.RawMessage
	if err := json.NewDecoder(io.LimitReader(body, maxBodyBytes)).Decode(&raw); err != nil {
		return nil, failure(http.StatusBadRequest, jsonrpc.ErrorCodeParseError, "invalid JSON body")
	}
	if bytes.HasPrefix(raw, []byte("[")) {
		return nil, failure(http.StatusBadRequest, jsonrpc.ErrorCodeInvalidRequest, "JSON-RPC batches are not supported")
	}
	var msg jsonrpc.AnyMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, failure(http.StatusBadRequest, jsonrpc.ErrorCodeInvalidRequest, "invalid JSON-RPC message: "+err.Error())
	}
	return &msg, nil
}

// session resolves the Mcp-Session-Id header for userID.
func (h *StreamingHTTPHandler) session(ctx context.Context, r *http.Request, userID string) (*sessions.Handle, *rpcFailure) {
	id := r.Header.Get(headerSessionID)
	if id == "" {
		return nil, protocolFailure("missing Mcp-Session-Id header")
	}
	sess, err := h.eng.LoadSession(ctx, id, userID)
	if err != nil {
		h.log.InfoContext(ctx, "session.load.miss", slog.String("session_id", id), slog.String("err", err.Error()))
		return nil, protocolFailure("unknown or closed session")
	}
	if v := r.Header.Get(headerProtocolVersion); v != "" && v != sess.ProtocolVersion() {
		h.log.WarnContext(ctx, "session.version.mismatch", slog.String("client_version", v))
		return nil, protocolFailure(fmt.Sprintf("protocol version %q does not match session version %q", v, sess.ProtocolVersion()))
	}
	return sess, nil
}

func (h *StreamingHTTPHandler) initialize(ctx context.Context, w http.ResponseWriter, userID string, req *jsonrpc.Request) {
	sess, res, err := h.eng.InitializeSession(ctx, userID, req)
	if errors.Is(err, engine.ErrNotInitialize) {
		protocolFailure("missing Mcp-Session-Id header").write(w)
		return
	}
	if err != nil {
		h.log.ErrorContext(ctx, "session.initialize.fail", slog.String("err", err.Error()))
		internalFailure("failed to initialize session").write(w)
		return
	}

	status := http.StatusBadRequest
	if sess != nil {
		status = http.StatusOK
		ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sess.SessionID(), UserID: userID, ProtocolVersion: sess.ProtocolVersion()})
		w.Header().Set(headerSessionID, sess.SessionID())
		w.Header().Set(headerProtocolVersion, sess.ProtocolVersion())
	}
	w.Header().Set("Content-Type", mediaJSON.String())
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		h.log.WarnContext(ctx, "session.initialize.write", slog.String("err", err.Error()))
		return
	}
	h.log.InfoContext(ctx, "session.initialize.ok")
}

func (h *StreamingHTTPHandler) notify(ctx context.Context, w http.ResponseWriter, sess *sessions.Handle, note *jsonrpc.Request) {
	if err := h.eng.HandleNotification(ctx, sess, note); err != nil {
		h.log.ErrorContext(ctx, "notification.fail", slog.String("err", err.Error()))
		internalFailure("internal server error").write(w)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// call answers a request on the POST itself, as JSON or as one SSE event
// according to Accept.
func (h *StreamingHTTPHandler) call(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *sessions.Handle, req *jsonrpc.Request) {
	accepted, _, err := contenttype.GetAcceptableMediaType(r, []contenttype.MediaType{mediaEventStream, mediaJSON})
	if err != nil {
		h.log.WarnContext(ctx, "http.post.accept", slog.String("accept", r.Header.Get("Accept")))
		failure(http.StatusNotAcceptable, jsonrpc.ErrorCodeInvalidRequest, "client must accept application/json or text/event-stream").write(w)
		return
	}

	res, err := h.eng.HandleRequest(ctx, sess, req)
	if err != nil {
		h.log.ErrorContext(ctx, "rpc.fail", slog.String("err", err.Error()))
		res = jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal server error", nil)
	}
	body, err := json.Marshal(res)
	if err != nil {
		h.log.ErrorContext(ctx, "rpc.encode.fail", slog.String("err", err.Error()))
		internalFailure("internal server error").write(w)
		return
	}

	if !accepted.Matches(mediaEventStream) {
		w.Header().Set("Content-Type", mediaJSON.String())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}
	stream, ok := openEventStream(ctx, w)
	if !ok {
		internalFailure("streaming unsupported").write(w)
		return
	}
	if err := stream.send("", body); err != nil {
		h.log.WarnContext(ctx, "sse.write.fail", slog.String("err", err.Error()))
	}
}
