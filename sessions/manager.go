package sessions

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ggoodman/mcp-gateway/credentials"
	"github.com/ggoodman/mcp-gateway/mcp"
	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned for ids that are unknown, closed or owned
	// by another user.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionClosed is returned when operating on a session after it closed.
	ErrSessionClosed = errors.New("session closed")
)

// Observer is notified of session lifecycle transitions.
type Observer interface {
	SessionOpened()
	SessionClosed(lifetime time.Duration)
}

// Manager owns the table of live sessions. A session enters the table through
// Create and leaves it through Close; a closed id is never served again.
type Manager struct {
	host  SessionHost
	creds *credentials.Store
	log   *slog.Logger
	obs   Observer
	newID func() string
	now   func() time.Time

	mu   sync.RWMutex
	live map[string]*Handle
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithObserver registers lifecycle callbacks, typically metrics.
func WithObserver(o Observer) ManagerOption {
	return func(m *Manager) { m.obs = o }
}

// WithIDGenerator overrides the session id source. The default draws random
// version 4 UUIDs.
func WithIDGenerator(fn func() string) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// NewManager returns a Manager whose sessions push through host and keep
// their credentials in creds.
func NewManager(host SessionHost, creds *credentials.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		host:  host,
		creds: creds,
		log:   slog.Default(),
		newID: uuid.NewString,
		now:   time.Now,
		live:  make(map[string]*Handle),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// CreateParams describe a session being initialized.
type CreateParams struct {
	UserID          string
	ProtocolVersion string
	ClientInfo      mcp.ImplementationInfo
}

// ErrIDExhausted is returned when the id generator keeps producing ids that
// are already live.
var ErrIDExhausted = errors.New("could not allocate a unique session id")

// Create allocates a fresh id and registers an active session with empty
// credentials.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*Handle, error) {
	sctx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	h := &Handle{
		userID:          p.UserID,
		protocolVersion: p.ProtocolVersion,
		client:          p.ClientInfo,
		createdAt:       m.now(),
		mgr:             m,
		ctx:             sctx,
		cancel:          cancel,
		state:           StateActive,
		logLevel:        mcp.LoggingLevelInfo,
		inflight:        make(map[string]context.CancelCauseFunc),
	}

	m.mu.Lock()
	for attempt := 0; attempt < 3; attempt++ {
		id := m.newID()
		if _, taken := m.live[id]; id != "" && !taken {
			h.id = id
			m.live[id] = h
			break
		}
	}
	m.mu.Unlock()

	if h.id == "" {
		cancel(ErrIDExhausted)
		return nil, ErrIDExhausted
	}

	if m.obs != nil {
		m.obs.SessionOpened()
	}
	m.log.InfoContext(ctx, "session.create.ok",
		slog.String("session_id", h.id),
		slog.String("user_id", h.userID),
		slog.String("protocol_version", h.protocolVersion),
		slog.String("client", h.client.Name),
	)
	return h, nil
}

// Load returns the live session with the given id. Sessions bound to another
// user are reported as not found.
func (m *Manager) Load(ctx context.Context, id string, userID string) (*Handle, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}
	m.mu.RLock()
	h, ok := m.live[id]
	m.mu.RUnlock()
	if !ok || h.userID != userID || h.closed() {
		return nil, ErrSessionNotFound
	}
	return h, nil
}

// Close removes the session from the table, discards its credentials and
// push stream, and cancels everything still running on its behalf.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	h, ok := m.live[id]
	if ok {
		delete(m.live, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	h.close(ErrSessionClosed)
	m.creds.Drop(id)

	var err error
	if cerr := m.host.CleanupSession(context.WithoutCancel(ctx), id); cerr != nil {
		m.log.WarnContext(ctx, "session.cleanup.fail", slog.String("session_id", id), slog.String("err", cerr.Error()))
		err = cerr
	}

	lifetime := m.now().Sub(h.createdAt)
	if m.obs != nil {
		m.obs.SessionClosed(lifetime)
	}
	m.log.InfoContext(ctx, "session.close.ok", slog.String("session_id", id), slog.Duration("lifetime", lifetime))
	return err
}

// CloseAll closes every live session.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.live))
	for id := range m.live {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	var errs []error
	for _, id := range ids {
		if err := m.Close(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.live)
}

// Stream delivers the session's push messages to fn until ctx ends or the
// session closes. A session closing ends the stream with a nil error.
func (m *Manager) Stream(ctx context.Context, h *Handle, lastEventID string, fn MessageHandlerFunction) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	err := m.host.SubscribeSession(ctx, h.id, lastEventID, fn)
	if h.closed() && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
