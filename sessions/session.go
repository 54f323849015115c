package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ggoodman/mcp-gateway/integration"
	"github.com/ggoodman/mcp-gateway/internal/jsonrpc"
	"github.com/ggoodman/mcp-gateway/mcp"
)

// Session is the view of a live session that tool and resource handlers
// receive. Credentials are only reachable through it.
type Session interface {
	SessionID() string
	UserID() string
	ProtocolVersion() string

	// Credential returns the bundle stored for n by an earlier login on this
	// session.
	Credential(n integration.Name) (integration.Bundle, bool)
	// Login stores b for this session, replacing any earlier bundle for the
	// same integration, and returns the confirmation token.
	Login(b integration.Bundle) (string, error)
	// Log pushes a notifications/message to the client when level passes
	// the session's logging threshold.
	Log(ctx context.Context, level mcp.LoggingLevel, logger string, data any) error
}

// State is a session lifecycle state. Closed is terminal.
type State string

const (
	StateActive State = "active"
	StateClosed State = "closed"
)

var _ Session = (*Handle)(nil)

// Handle is a live session owned by a Manager.
type Handle struct {
	id              string
	userID          string
	protocolVersion string
	client          mcp.ImplementationInfo
	createdAt       time.Time

	mgr    *Manager
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu       sync.Mutex
	state    State
	ready    bool
	logLevel mcp.LoggingLevel
	inflight map[string]context.CancelCauseFunc
}

func (h *Handle) SessionID() string                  { return h.id }
func (h *Handle) UserID() string                     { return h.userID }
func (h *Handle) ProtocolVersion() string            { return h.protocolVersion }
func (h *Handle) ClientInfo() mcp.ImplementationInfo { return h.client }
func (h *Handle) CreatedAt() time.Time               { return h.createdAt }

// Context is cancelled when the session closes.
func (h *Handle) Context() context.Context { return h.ctx }

func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// MarkReady records the client's notifications/initialized. It reports
// whether this call changed anything.
func (h *Handle) MarkReady() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ready {
		return false
	}
	h.ready = true
	return true
}

func (h *Handle) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}

func (h *Handle) LogLevel() mcp.LoggingLevel {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.logLevel
}

// SetLogLevel changes the threshold for pushed log notifications.
func (h *Handle) SetLogLevel(level mcp.LoggingLevel) error {
	if !mcp.IsValidLoggingLevel(level) {
		return fmt.Errorf("invalid logging level %q", level)
	}
	h.mu.Lock()
	h.logLevel = level
	h.mu.Unlock()
	return nil
}

func (h *Handle) closed() bool {
	return h.ctx.Err() != nil
}

func (h *Handle) Credential(n integration.Name) (integration.Bundle, bool) {
	if h.closed() {
		return nil, false
	}
	return h.mgr.creds.Get(h.id, n)
}

// Login writes the store under h.mu. close marks the handle under the same
// lock before the manager drops its credentials.
func (h *Handle) Login(b integration.Bundle) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateClosed {
		return "", ErrSessionClosed
	}
	return h.mgr.creds.Login(h.id, b)
}

// WriteMessage appends a raw JSON-RPC message to the session's push stream.
func (h *Handle) WriteMessage(ctx context.Context, msg []byte) error {
	if h.closed() {
		return ErrSessionClosed
	}
	_, err := h.mgr.host.PublishSession(ctx, h.id, msg)
	return err
}

// Notify pushes a JSON-RPC notification to the session's stream.
func (h *Handle) Notify(ctx context.Context, method mcp.Method, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}
	b, err := json.Marshal(&jsonrpc.Request{
		JSONRPCVersion: jsonrpc.ProtocolVersion,
		Method:         string(method),
		Params:         raw,
	})
	if err != nil {
		return err
	}
	return h.WriteMessage(ctx, b)
}

func (h *Handle) Log(ctx context.Context, level mcp.LoggingLevel, logger string, data any) error {
	if !h.LogLevel().Enables(level) {
		return nil
	}
	return h.Notify(ctx, mcp.LoggingMessageNotificationMethod, &mcp.LoggingMessageNotification{
		Level:  level,
		Logger: logger,
		Data:   data,
	})
}

// ErrDuplicateRequest is returned by Track when the request id is already in
// flight on the session.
var ErrDuplicateRequest = errors.New("request id already in flight")

// Track registers cancel for an in-flight request. The returned function
// must be called once the request completes.
func (h *Handle) Track(reqID string, cancel context.CancelCauseFunc) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateClosed {
		return nil, ErrSessionClosed
	}
	if _, ok := h.inflight[reqID]; ok {
		return nil, ErrDuplicateRequest
	}
	h.inflight[reqID] = cancel
	return func() {
		h.mu.Lock()
		delete(h.inflight, reqID)
		h.mu.Unlock()
	}, nil
}

// CancelRequest cancels an in-flight request. It reports whether one was found.
func (h *Handle) CancelRequest(reqID string, reason string) bool {
	h.mu.Lock()
	cancel, ok := h.inflight[reqID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	if reason == "" {
		reason = "cancelled by client"
	}
	cancel(errors.New(reason))
	return true
}

// InFlight returns the number of requests currently tracked.
func (h *Handle) InFlight() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.inflight)
}

func (h *Handle) close(cause error) {
	h.mu.Lock()
	h.state = StateClosed
	pending := h.inflight
	h.inflight = make(map[string]context.CancelCauseFunc)
	h.mu.Unlock()
	for _, cancel := range pending {
		cancel(cause)
	}
	h.cancel(cause)
}
