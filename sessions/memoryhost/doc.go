// Package memoryhost provides an in-memory sessions.SessionHost implementation
// suitable for tests, development, and single-process gateways. All state is
// ephemeral and discarded on process exit.
//
// Characteristics
//
//	Durability        : none (RAM only)
//	Horizontal scale  : no (process local)
//	Ordering          : monotonic decimal IDs per session stream
//	Retention         : last DefaultRetention messages per session
//	Concurrency       : safe (one goroutine per subscriber, reading in order)
//
// Example:
//
//	host := memoryhost.New()
//	mgr := sessions.NewManager(host, credentials.NewStore())
//
// For multi-process deployments prefer redishost.
package memoryhost
