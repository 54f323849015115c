// Package streaminghttp implements the MCP streamable HTTP transport. It
// mounts as a standard net/http handler serving one endpoint:
//
//	POST   one JSON-RPC message per call
//	GET    the session's push stream as Server-Sent Events
//	DELETE session teardown
//
// An initialize request without an Mcp-Session-Id header creates a session;
// the response is plain JSON and carries the new id in the Mcp-Session-Id
// header. Every other call must present that header. A missing, unknown or
// closed id, or a second initialize, is a protocol error answered with HTTP
// 400 and a JSON-RPC envelope with code -32000 and a null id. The session
// table is not touched in that case.
//
// Requests are answered on the POST itself, either as JSON or as a single
// SSE event depending on the Accept header. Notifications and client
// responses get 202 Accepted. Server-initiated messages (log notifications,
// progress) go to the session's push stream, which GET replays after
// Last-Event-ID when the client reconnects.
//
// # Authentication
//
// Without an authenticator every caller is the anonymous user. With
// WithAuthenticator each request needs a bearer token; sessions are bound to
// the token subject, and a session id presented by another subject is
// treated as unknown. Failures surface a WWW-Authenticate challenge (RFC
// 6750). If the authenticator implements auth.MetadataProvider, the handler
// serves /.well-known/oauth-protected-resource{path} and references it from
// its challenges.
//
// Example:
//
//	h, err := streaminghttp.New("https://gateway.example/mcp", eng,
//	    streaminghttp.WithLogger(log),
//	)
//	mux := http.NewServeMux()
//	mux.Handle("/mcp", h)
package streaminghttp
