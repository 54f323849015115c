// Package redishost implements sessions.SessionHost on Redis Streams so that
// a session's push stream can be published on one gateway process and read
// from another.
//
// Design Notes
//   - Session streams: XADD + blocking XREAD polling, no consumer groups
//   - Trimming: approximate MAXLEN bounds each stream (Config.MaxLen)
//   - Expiry: every publish refreshes a TTL on the stream key
//   - Cleanup: the stream is deleted and a marker key ends live subscribers
//
// Only push messages live in Redis. Session state and credentials stay in the
// owning process and are lost on restart.
//
// Example:
//
//	host, err := redishost.NewFromEnv()
//	if err != nil { ... }
//	defer host.Close()
package redishost
