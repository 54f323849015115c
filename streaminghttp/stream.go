package streaminghttp

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/mcp-gateway/internal/jsonrpc"
	"github.com/ggoodman/mcp-gateway/internal/logctx"
	"github.com/ggoodman/mcp-gateway/sessions"
)

// handleGet replays and then follows the session's push messages as
// Server-Sent Events, starting after Last-Event-ID when given.
func (h *StreamingHTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	user, ok := h.authenticate(ctx, w, r)
	if !ok {
		return
	}
	sess, fail := h.session(ctx, r, user.UserID())
	if fail != nil {
		fail.write(w)
		return
	}
	if _, _, err := contenttype.GetAcceptableMediaType(r, []contenttype.MediaType{mediaEventStream}); err != nil {
		failure(http.StatusNotAcceptable, jsonrpc.ErrorCodeInvalidRequest, "client must accept text/event-stream").write(w)
		return
	}
	if _, ok := w.(http.Flusher); !ok {
		h.log.ErrorContext(ctx, "sse.flusher.missing")
		internalFailure("streaming unsupported").write(w)
		return
	}
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{
		SessionID:       sess.SessionID(),
		UserID:          sess.UserID(),
		ProtocolVersion: sess.ProtocolVersion(),
		State:           sess.State(),
	})

	w.Header().Set(headerProtocolVersion, sess.ProtocolVersion())
	stream, _ := openEventStream(ctx, w)

	lastID := r.Header.Get(headerLastEventID)
	h.log.InfoContext(ctx, "sse.stream.start", slog.String("last_event_id", lastID))
	err := h.eng.StreamSession(ctx, sess, lastID, func(_ context.Context, id string, msg []byte) error {
		return stream.send(id, msg)
	})
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		h.log.InfoContext(ctx, "sse.stream.end", slog.Duration("dur", time.Since(start)))
	case errors.Is(err, sessions.ErrUnknownEventID):
		h.log.WarnContext(ctx, "sse.stream.unknown_event_id", slog.String("last_event_id", lastID))
	default:
		h.log.ErrorContext(ctx, "sse.stream.fail", slog.String("err", err.Error()))
	}
}

// handleDelete ends the session named by the request header.
func (h *StreamingHTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := h.authenticate(ctx, w, r)
	if !ok {
		return
	}
	sess, fail := h.session(ctx, r, user.UserID())
	if fail != nil {
		fail.write(w)
		return
	}
	err := h.eng.CloseSession(ctx, sess)
	if errors.Is(err, sessions.ErrSessionNotFound) {
		protocolFailure("unknown or closed session").write(w)
		return
	}
	if err != nil {
		// Already out of the table. Only host cleanup failed.
		h.log.WarnContext(ctx, "session.delete.cleanup", slog.String("err", err.Error()))
	}
	w.WriteHeader(http.StatusNoContent)
	h.log.InfoContext(ctx, "session.delete.ok", slog.String("session_id", sess.SessionID()))
}

// eventStream writes SSE frames. Frames are written whole and flushed, and
// nothing is written once ctx is done.
type eventStream struct {
	ctx context.Context
	mu  sync.Mutex
	w   http.ResponseWriter
	f   http.Flusher
}

// openEventStream sends the stream headers. It reports false when w cannot
// flush, in which case nothing has been written.
func openEventStream(ctx context.Context, w http.ResponseWriter) (*eventStream, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	hdr := w.Header()
	hdr.Set("Content-Type", mediaEventStream.String())
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	f.Flush()
	return &eventStream{ctx: ctx, w: w, f: f}, true
}

func (s *eventStream) send(id string, data []byte) error {
	var frame bytes.Buffer
	if id != "" {
		frame.WriteString("id: ")
		frame.WriteString(id)
		frame.WriteByte('\n')
	}
	frame.WriteString("data: ")
	frame.Write(data)
	frame.WriteString("\n\n")

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ctx.Err(); err != nil {
		return err
	}
	if _, err := s.w.Write(frame.Bytes()); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}
