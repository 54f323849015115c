package sessions

import (
	"context"
	"errors"
)

// ErrUnknownEventID is returned by SubscribeSession when a resume position
// no longer exists in the stream.
var ErrUnknownEventID = errors.New("unknown last event id")

// StreamStart is the resume position before the first message. Subscribing
// from it replays everything the host still retains.
const StreamStart = "0"

// MessageHandlerFunction handles ordered messages for a session stream.
// Returning an error stops the subscription.
type MessageHandlerFunction func(ctx context.Context, msgID string, msg []byte) error

// SessionHost carries each session's ordered push stream: server-initiated
// notifications the transports deliver to the client out of band from
// request/response traffic.
//
// Implementations must preserve publish order per session and support resume
// after a given event id. Streams of different sessions are independent.
type SessionHost interface {
	// PublishSession appends data to the session's stream and returns its
	// event id.
	PublishSession(ctx context.Context, sessionID string, data []byte) (eventID string, err error)
	// SubscribeSession delivers every message published after lastEventID
	// (or, when empty, after the call; StreamStart replays the retained
	// stream) until ctx ends, the handler fails or the stream is cleaned up.
	// A cleaned up stream ends the subscription with a nil error.
	SubscribeSession(ctx context.Context, sessionID string, lastEventID string, handler MessageHandlerFunction) error
	// CleanupSession discards the stream and stops its subscribers. Later
	// publishes for the session fail with ErrSessionClosed.
	CleanupSession(ctx context.Context, sessionID string) error
}
