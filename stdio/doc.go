// Package stdio implements a single-connection MCP transport over
// stdin/stdout. It is intended for running the gateway as a subprocess of a
// desktop client.
//
// Characteristics
//
//	Connection model : 1 process <-> 1 client
//	Auth             : OS user (lightweight implicit principal)
//	Sessions         : one implicit session, created by initialize, closed at EOF
//	Framing          : newline-delimited JSON-RPC
//
// Responses and the session's pushed notifications share stdout; each line is
// one complete message. Requests are served concurrently and may complete out
// of order. Nothing else may write to stdout, so loggers passed through
// WithLogger must target stderr or a file.
//
// Example:
//
//	h := stdio.NewHandler(eng, stdio.WithLogger(stderrLogger))
//	if err := h.Serve(ctx); err != nil { log.Fatal(err) }
package stdio
