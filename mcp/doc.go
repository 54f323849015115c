// Package mcp contains the Model Context Protocol data types and constants
// the gateway exchanges with clients: method names, initialize and
// capability structs, tool and resource descriptors, content blocks and
// notification payloads. The types mirror the JSON wire shape; framing lives
// in internal/jsonrpc and transports live in streaminghttp and stdio.
//
// # Method Names
//
// JSON-RPC method and notification names are enumerated as Method constants
// (e.g. ToolsListMethod).
//
// # Pagination
//
// List operations use cursor-based pagination. PaginatedRequest and
// PaginatedResult are embedded in the list envelopes.
//
// # Metadata
//
// BaseMetadata carries implementation-defined values under the _meta key.
// The gateway uses it on tool results to report error kinds and skipped
// status transitions:
//
//	res := &mcp.CallToolResult{Content: []mcp.ContentBlock{mcp.TextBlock("Warning: no transition to Done")}}
//	res.SetMeta(mcp.MetaStatusApplied, false)
//
// # Logging Levels
//
// LoggingLevel values mirror syslog severities. Enables reports whether a
// session threshold lets a message through; IsValidLoggingLevel validates
// client input to logging/setLevel.
//
// # Versions
//
// LatestProtocolVersion is the newest protocol revision the gateway speaks.
// NegotiateProtocolVersion picks the version returned from initialize.
package mcp
