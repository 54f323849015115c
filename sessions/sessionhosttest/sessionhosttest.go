// Package sessionhosttest checks that a sessions.SessionHost honours the
// push-stream contract the gateway relies on: per-session ordering, resume
// after an event id, isolation between sessions and teardown.
package sessionhosttest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ggoodman/mcp-gateway/internal/jsonrpc"
	"github.com/ggoodman/mcp-gateway/mcp"
	"github.com/ggoodman/mcp-gateway/sessions"
	"github.com/google/uuid"
)

// HostFactory returns a fresh host for one subtest.
type HostFactory func(t *testing.T) sessions.SessionHost

// settle gives a subscriber time to attach before the first publish.
const settle = 100 * time.Millisecond

// RunSessionHostTests runs the suite against hosts built by factory.
func RunSessionHostTests(t *testing.T, factory HostFactory) {
	cases := []struct {
		name string
		run  func(*testing.T, sessions.SessionHost)
	}{
		{"DeliversPublishedMessage", testDelivers},
		{"PreservesPublishOrder", testOrder},
		{"ResumesAfterEventID", testResume},
		{"ReplaysFromStreamStart", testStreamStart},
		{"RejectsUnknownEventID", testUnknownEventID},
		{"IsolatesSessions", testIsolation},
		{"StopsOnCancel", testCancel},
		{"StopsOnHandlerError", testHandlerError},
		{"CleanupEndsStream", testCleanup},
		{"RejectsPublishAfterCleanup", testPublishAfterCleanup},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) { tc.run(t, factory(t)) })
	}
}

// newSessionID is unique per call so hosts backed by shared storage never
// see leftovers from earlier runs.
func newSessionID(label string) string {
	return label + "-" + uuid.NewString()
}

// logLine encodes a notifications/message carrying text, the most common
// push message the gateway publishes.
func logLine(text string) []byte {
	params, _ := json.Marshal(mcp.LoggingMessageNotification{Level: mcp.LoggingLevelWarning, Data: text, Logger: "sessionhosttest"})
	b, _ := json.Marshal(&jsonrpc.Request{
		JSONRPCVersion: jsonrpc.ProtocolVersion,
		Method:         string(mcp.LoggingMessageNotificationMethod),
		Params:         params,
	})
	return b
}

type delivery struct {
	id   string
	text string
}

func decodeLogLine(msg []byte) (string, error) {
	var req jsonrpc.Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return "", err
	}
	var note mcp.LoggingMessageNotification
	if err := json.Unmarshal(req.Params, &note); err != nil {
		return "", err
	}
	s, _ := note.Data.(string)
	return s, nil
}

// subscription runs SubscribeSession in the background and exposes what it
// delivers.
type subscription struct {
	deliveries chan delivery
	done       chan error
}

// subscribe attaches to sessionID. handlerErr, when set, is returned from the
// handler on every delivery.
func subscribe(ctx context.Context, h sessions.SessionHost, sessionID, lastEventID string, handlerErr error) *subscription {
	s := &subscription{deliveries: make(chan delivery, 128), done: make(chan error, 1)}
	go func() {
		s.done <- h.SubscribeSession(ctx, sessionID, lastEventID, func(_ context.Context, id string, msg []byte) error {
			text, err := decodeLogLine(msg)
			if err != nil {
				return err
			}
			s.deliveries <- delivery{id: id, text: text}
			return handlerErr
		})
	}()
	return s
}

func (s *subscription) next(t *testing.T) delivery {
	t.Helper()
	select {
	case d := <-s.deliveries:
		return d
	case <-time.After(3 * time.Second):
		t.Fatal("no delivery within 3s")
		return delivery{}
	}
}

// quiet fails if anything is delivered within d.
func (s *subscription) quiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case got := <-s.deliveries:
		t.Fatalf("unexpected delivery %+v", got)
	case <-time.After(d):
	}
}

func (s *subscription) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-s.done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("subscription did not end within 3s")
		return nil
	}
}

func publish(t *testing.T, h sessions.SessionHost, sessionID, text string) string {
	t.Helper()
	id, err := h.PublishSession(context.Background(), sessionID, logLine(text))
	if err != nil {
		t.Fatalf("publish %q: %v", text, err)
	}
	if id == "" {
		t.Fatalf("publish %q returned an empty event id", text)
	}
	return id
}

func testDelivers(t *testing.T, h sessions.SessionHost) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sid := newSessionID("deliver")

	sub := subscribe(ctx, h, sid, "", nil)
	time.Sleep(settle)
	id := publish(t, h, sid, "no transition to Done")

	if got := sub.next(t); got.id != id || got.text != "no transition to Done" {
		t.Fatalf("got %+v, want id %s", got, id)
	}
	cancel()
	if err := sub.wait(t); !errors.Is(err, context.Canceled) {
		t.Fatalf("subscription ended with %v", err)
	}
}

func testOrder(t *testing.T, h sessions.SessionHost) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sid := newSessionID("order")

	sub := subscribe(ctx, h, sid, "", nil)
	time.Sleep(settle)
	const n = 50
	for i := 0; i < n; i++ {
		publish(t, h, sid, fmt.Sprintf("line %02d", i))
	}
	for i := 0; i < n; i++ {
		if got, want := sub.next(t).text, fmt.Sprintf("line %02d", i); got != want {
			t.Fatalf("position %d: got %q want %q", i, got, want)
		}
	}
}

func testResume(t *testing.T, h sessions.SessionHost) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sid := newSessionID("resume")

	first := publish(t, h, sid, "first")
	second := publish(t, h, sid, "second")

	sub := subscribe(ctx, h, sid, first, nil)
	if got := sub.next(t); got.id != second || got.text != "second" {
		t.Fatalf("resume delivered %+v, want %s", got, second)
	}
	sub.quiet(t, settle)
}

func testUnknownEventID(t *testing.T, h sessions.SessionHost) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sid := newSessionID("unknown")
	publish(t, h, sid, "only")

	err := h.SubscribeSession(ctx, sid, "not-an-event-id", func(context.Context, string, []byte) error { return nil })
	if !errors.Is(err, sessions.ErrUnknownEventID) {
		t.Fatalf("got %v, want ErrUnknownEventID", err)
	}
}

func testIsolation(t *testing.T, h sessions.SessionHost) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a, b := newSessionID("iso-a"), newSessionID("iso-b")

	subA := subscribe(ctx, h, a, "", nil)
	subB := subscribe(ctx, h, b, "", nil)
	time.Sleep(settle)
	publish(t, h, a, "for a")
	publish(t, h, b, "for b")

	if got := subA.next(t).text; got != "for a" {
		t.Fatalf("session a got %q", got)
	}
	if got := subB.next(t).text; got != "for b" {
		t.Fatalf("session b got %q", got)
	}
	subA.quiet(t, 2*settle)
	if n := len(subB.deliveries); n != 0 {
		t.Fatalf("session b got %d extra messages", n)
	}
}

func testCancel(t *testing.T, h sessions.SessionHost) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := subscribe(ctx, h, newSessionID("cancel"), "", nil)
	time.Sleep(settle)
	cancel()

	if err := sub.wait(t); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func testHandlerError(t *testing.T, h sessions.SessionHost) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sid := newSessionID("handler-err")
	boom := errors.New("client went away")

	sub := subscribe(ctx, h, sid, "", boom)
	time.Sleep(settle)
	publish(t, h, sid, "one")
	publish(t, h, sid, "two")

	if err := sub.wait(t); !errors.Is(err, boom) {
		t.Fatalf("got %v, want handler error", err)
	}
	if n := len(sub.deliveries); n != 1 {
		t.Fatalf("handler ran %d times, want 1", n)
	}
}

func testCleanup(t *testing.T, h sessions.SessionHost) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sid := newSessionID("cleanup")

	sub := subscribe(ctx, h, sid, "", nil)
	time.Sleep(settle)
	if err := h.CleanupSession(ctx, sid); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if err := sub.wait(t); err != nil {
		t.Fatalf("subscription ended with %v after cleanup", err)
	}
	if err := h.CleanupSession(ctx, sid); err != nil {
		t.Fatalf("repeated cleanup: %v", err)
	}
}

func testStreamStart(t *testing.T, h sessions.SessionHost) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sid := newSessionID("start")

	first := publish(t, h, sid, "progress 1/2")
	sub := subscribe(ctx, h, sid, sessions.StreamStart, nil)
	if got := sub.next(t); got.id != first || got.text != "progress 1/2" {
		t.Fatalf("replay delivered %+v, want %s", got, first)
	}

	second := publish(t, h, sid, "progress 2/2")
	if got := sub.next(t); got.id != second {
		t.Fatalf("live delivery %+v, want %s", got, second)
	}
}

func testPublishAfterCleanup(t *testing.T, h sessions.SessionHost) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sid := newSessionID("late")
	publish(t, h, sid, "before close")

	if err := h.CleanupSession(ctx, sid); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := h.PublishSession(ctx, sid, logLine("after close")); !errors.Is(err, sessions.ErrSessionClosed) {
		t.Fatalf("publish after cleanup: got %v, want ErrSessionClosed", err)
	}
	if err := h.SubscribeSession(ctx, sid, sessions.StreamStart, func(context.Context, string, []byte) error {
		return errors.New("cleaned up stream delivered a message")
	}); err != nil {
		t.Fatalf("subscribe after cleanup: %v", err)
	}
}
