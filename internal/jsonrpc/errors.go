package jsonrpc

// ErrorCode is a JSON-RPC 2.0 error code.
type ErrorCode int

const (
	// ErrorCodeParseError indicates invalid JSON was received by the server.
	ErrorCodeParseError ErrorCode = -32700
	// ErrorCodeInvalidRequest indicates the JSON sent is not a valid Request object.
	ErrorCodeInvalidRequest ErrorCode = -32600
	// ErrorCodeMethodNotFound indicates the method does not exist / is not available.
	ErrorCodeMethodNotFound ErrorCode = -32601
	// ErrorCodeInvalidParams indicates invalid method parameters.
	ErrorCodeInvalidParams ErrorCode = -32602
	// ErrorCodeInternalError indicates an internal JSON-RPC error.
	ErrorCodeInternalError ErrorCode = -32603

	// ErrorCodeProtocol is the server-defined code used when a message violates
	// the session protocol: missing, unknown or stale session ids and
	// out-of-order initialization.
	ErrorCodeProtocol ErrorCode = -32000
	// ErrorCodeLoginRequired indicates the session has not logged in to the
	// integration that owns the requested resource.
	ErrorCodeLoginRequired ErrorCode = -32001
	// ErrorCodeNotFound indicates the backend does not know the requested item.
	ErrorCodeNotFound ErrorCode = -32002
	// ErrorCodeAuthenticationFailed indicates the backend rejected the stored credentials.
	ErrorCodeAuthenticationFailed ErrorCode = -32003
	// ErrorCodeBackend indicates any other backend failure.
	ErrorCodeBackend ErrorCode = -32004
)
