package memoryhost

import (
	"context"
	"strconv"
	"sync"

	"github.com/ggoodman/mcp-gateway/sessions"
)

// DefaultRetention is the number of messages kept per session for resume.
const DefaultRetention = 1024

// cleanedCap bounds how many cleaned up session ids are remembered to turn
// away late publishes.
const cleanedCap = 4096

// Host is an in-memory implementation of sessions.SessionHost.
type Host struct {
	retention int

	mu      sync.Mutex
	streams map[string]*stream
	cleaned map[string]struct{}
	// cleanup order of the ids in cleaned, oldest first.
	cleanedOrder []string
}

type stream struct {
	mu sync.Mutex
	// seq of messages[0]; event ids are decimal sequence numbers starting at 1.
	first    int64
	messages [][]byte
	// closed and replaced on every publish to wake subscribers.
	wake chan struct{}
	gone chan struct{}
}

// Option configures a Host.
type Option func(*Host)

// WithRetention bounds how many messages each session keeps for resume.
func WithRetention(n int) Option {
	return func(h *Host) {
		if n > 0 {
			h.retention = n
		}
	}
}

func New(opts ...Option) *Host {
	h := &Host{
		retention: DefaultRetention,
		streams:   make(map[string]*stream),
		cleaned:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// stream returns the session's stream, creating it on first use. It returns
// nil once the session has been cleaned up.
func (h *Host) stream(sessionID string) *stream {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, done := h.cleaned[sessionID]; done {
		return nil
	}
	s, ok := h.streams[sessionID]
	if !ok {
		s = &stream{first: 1, wake: make(chan struct{}), gone: make(chan struct{})}
		h.streams[sessionID] = s
	}
	return s
}

func (h *Host) PublishSession(ctx context.Context, sessionID string, data []byte) (string, error) {
	s := h.stream(sessionID)
	if s == nil {
		return "", sessions.ErrSessionClosed
	}

	s.mu.Lock()
	s.messages = append(s.messages, append([]byte(nil), data...))
	seq := s.first + int64(len(s.messages)) - 1
	if drop := len(s.messages) - h.retention; drop > 0 {
		s.messages = append([][]byte(nil), s.messages[drop:]...)
		s.first += int64(drop)
	}
	close(s.wake)
	s.wake = make(chan struct{})
	s.mu.Unlock()

	return strconv.FormatInt(seq, 10), nil
}

func (h *Host) SubscribeSession(ctx context.Context, sessionID string, lastEventID string, handler sessions.MessageHandlerFunction) error {
	s := h.stream(sessionID)
	if s == nil {
		return nil
	}

	s.mu.Lock()
	next := s.first + int64(len(s.messages))
	switch lastEventID {
	case "":
	case sessions.StreamStart:
		next = s.first
	default:
		last, err := strconv.ParseInt(lastEventID, 10, 64)
		if err != nil || last < s.first-1 || last >= next {
			s.mu.Unlock()
			return sessions.ErrUnknownEventID
		}
		next = last + 1
	}
	s.mu.Unlock()

	for {
		s.mu.Lock()
		if next < s.first {
			// Fell behind retention while the handler was busy.
			s.mu.Unlock()
			return sessions.ErrUnknownEventID
		}
		pending := s.messages[next-s.first:]
		wake := s.wake
		s.mu.Unlock()

		for _, msg := range pending {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := handler(ctx, strconv.FormatInt(next, 10), msg); err != nil {
				return err
			}
			next++
		}
		if len(pending) > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.gone:
			return nil
		case <-wake:
		}
	}
}

func (h *Host) CleanupSession(ctx context.Context, sessionID string) error {
	h.mu.Lock()
	s, ok := h.streams[sessionID]
	delete(h.streams, sessionID)
	if _, done := h.cleaned[sessionID]; !done {
		h.cleaned[sessionID] = struct{}{}
		h.cleanedOrder = append(h.cleanedOrder, sessionID)
		if len(h.cleanedOrder) > cleanedCap {
			delete(h.cleaned, h.cleanedOrder[0])
			h.cleanedOrder = h.cleanedOrder[1:]
		}
	}
	h.mu.Unlock()
	if ok {
		close(s.gone)
	}
	return nil
}

var _ sessions.SessionHost = (*Host)(nil)
