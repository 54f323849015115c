// Package sessions owns the gateway's live session table and the per-session
// push streams.
//
// A Manager creates a session when a client initializes, hands out the
// session's Handle to subsequent messages carrying its id, and tears it down
// when the transport closes. Lifecycle:
//
//	(no session) --initialize--> active --close--> closed
//
// Closed is terminal. Loading a closed or unknown id yields
// ErrSessionNotFound; it is never resurrected.
//
// Each session owns a credential scope in a credentials.Store. Handlers reach
// credentials only through the Session interface, so a closed session cannot
// read or write them.
//
// Server-initiated messages (log notifications, progress) are appended to the
// session's ordered stream on a SessionHost. The memoryhost subpackage keeps
// streams in process memory; redishost keeps them in Redis Streams so that a
// GET stream on one process can observe messages published by another.
package sessions
