package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/ggoodman/mcp-gateway/internal/engine"
	"github.com/ggoodman/mcp-gateway/internal/jsonrpc"
	"github.com/ggoodman/mcp-gateway/internal/logctx"
	"github.com/ggoodman/mcp-gateway/mcp"
	"github.com/ggoodman/mcp-gateway/sessions"
)

const maxLineBytes = 4 << 20

// Handler is a single-connection stdio transport that reads newline-delimited
// JSON-RPC messages from an io.Reader and writes responses and pushed
// notifications to an io.Writer. By default, it uses os.Stdin and os.Stdout.
// The peer is identified by a UserProvider, which defaults to the current OS
// user.
type Handler struct {
	eng          *engine.Engine
	r            io.Reader
	w            io.Writer
	l            *slog.Logger
	userProvider UserProvider
}

// NewHandler constructs a stdio Handler with defaults and applies options.
func NewHandler(eng *engine.Engine, opts ...Option) *Handler {
	h := &Handler{
		eng:          eng,
		r:            os.Stdin,
		w:            os.Stdout,
		l:            slog.Default(),
		userProvider: OSUserProvider{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.l = slog.New(logctx.Handler{Handler: h.l.Handler()})
	return h
}

// writeMux serializes whole messages onto the output stream.
type writeMux struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func (m *writeMux) writeLine(b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.w.Write(b); err != nil {
		return err
	}
	if err := m.w.WriteByte('\n'); err != nil {
		return err
	}
	return m.w.Flush()
}

func (m *writeMux) writeJSONRPC(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.writeLine(b)
}

// conn is the state of one Serve call.
type conn struct {
	h      *Handler
	out    *writeMux
	userID string

	sess       *sessions.Handle
	stopStream context.CancelFunc
	streamDone chan struct{}
	inflight   sync.WaitGroup
}

// Serve runs the stdio event loop until EOF on the reader or the context is
// canceled. The first initialize request creates the connection's only
// session; it is closed when Serve returns. Serve must be called at most once
// per Handler.
func (h *Handler) Serve(ctx context.Context) error {
	userID, err := h.userProvider.CurrentUserID()
	if err != nil {
		return fmt.Errorf("resolve stdio user: %w", err)
	}
	ctx = logctx.WithRequestData(ctx, &logctx.RequestData{Transport: "stdio"})

	c := &conn{h: h, out: &writeMux{w: bufio.NewWriter(h.w)}, userID: userID}
	defer c.shutdown(ctx)

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(h.r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	h.l.InfoContext(ctx, "stdio.serve.start", slog.String("user_id", userID))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if err != nil {
				h.l.ErrorContext(ctx, "stdio.read.fail", slog.String("err", err.Error()))
				return err
			}
			h.l.InfoContext(ctx, "stdio.serve.eof")
			return nil
		case line := <-lines:
			c.handleLine(ctx, line)
		}
	}
}

func (c *conn) handleLine(ctx context.Context, line []byte) {
	if len(line) == 0 {
		return
	}
	var msg jsonrpc.AnyMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		c.h.l.WarnContext(ctx, "jsonrpc.message.invalid", slog.String("err", err.Error()))
		c.write(ctx, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParseError, "invalid JSON-RPC message", nil))
		return
	}
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: msg.Method, ID: msg.ID.String(), Type: msg.Type()})

	if msg.AsResponse() != nil {
		c.h.l.DebugContext(ctx, "response.inbound.ignored")
		return
	}
	req := msg.AsRequest()
	if req == nil {
		c.h.l.WarnContext(ctx, "jsonrpc.message.unrecognized")
		return
	}

	if c.sess == nil {
		c.initialize(ctx, req)
		return
	}

	if req.ID.IsNil() {
		if err := c.h.eng.HandleNotification(ctx, c.sess, req); err != nil {
			c.h.l.ErrorContext(ctx, "notification.inbound.fail", slog.String("err", err.Error()))
		}
		return
	}

	sess := c.sess
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		res, err := c.h.eng.HandleRequest(ctx, sess, req)
		if err != nil {
			c.h.l.ErrorContext(ctx, "rpc.inbound.fail", slog.String("err", err.Error()))
			res = jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal server error", nil)
		}
		c.write(ctx, res)
	}()
}

// initialize handles messages that arrive before the session exists.
func (c *conn) initialize(ctx context.Context, req *jsonrpc.Request) {
	if req.Method != string(mcp.InitializeMethod) {
		if !req.ID.IsNil() {
			c.write(ctx, jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeProtocol, "session not initialized", nil))
		}
		c.h.l.InfoContext(ctx, "session.initialize.expected")
		return
	}

	sess, res, err := c.h.eng.InitializeSession(ctx, c.userID, req)
	if err != nil {
		c.h.l.ErrorContext(ctx, "session.initialize.fail", slog.String("err", err.Error()))
		c.write(ctx, jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "failed to initialize session", nil))
		return
	}
	c.write(ctx, res)
	if sess == nil {
		return
	}
	c.sess = sess

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.stopStream = cancel
	c.streamDone = make(chan struct{})
	go func() {
		defer close(c.streamDone)
		err := c.h.eng.StreamSession(streamCtx, sess, sessions.StreamStart, func(_ context.Context, _ string, msg []byte) error {
			return c.out.writeLine(msg)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			c.h.l.ErrorContext(ctx, "stdio.stream.fail", slog.String("err", err.Error()))
		}
	}()
}

func (c *conn) write(ctx context.Context, res *jsonrpc.Response) {
	if err := c.out.writeJSONRPC(res); err != nil {
		c.h.l.WarnContext(ctx, "stdio.write.fail", slog.String("err", err.Error()))
	}
}

// shutdown waits for in-flight requests when the input ended, or cancels
// them when ctx did, then closes the session.
func (c *conn) shutdown(ctx context.Context) {
	drain := ctx.Err() == nil
	ctx = context.WithoutCancel(ctx)
	if c.sess != nil && drain {
		done := make(chan struct{})
		go func() {
			c.inflight.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-c.sess.Context().Done():
		}
	}
	if c.sess != nil {
		if err := c.h.eng.CloseSession(ctx, c.sess); err != nil && !errors.Is(err, sessions.ErrSessionNotFound) {
			c.h.l.WarnContext(ctx, "stdio.session.close.fail", slog.String("err", err.Error()))
		}
	}
	c.inflight.Wait()
	if c.stopStream != nil {
		c.stopStream()
		<-c.streamDone
	}
}
