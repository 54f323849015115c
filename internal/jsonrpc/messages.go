package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ProtocolVersion is the value of the "jsonrpc" member on every message.
const ProtocolVersion = "2.0"

// Message kinds reported by AnyMessage.Type.
const (
	TypeRequest      = "request"
	TypeNotification = "notification"
	TypeResponse     = "response"
)

var (
	// ErrVersion is returned when "jsonrpc" is not "2.0".
	ErrVersion = errors.New("jsonrpc: unsupported version")
	// ErrShape is returned when a message is neither a request nor a response.
	ErrShape = errors.New("jsonrpc: malformed message")
)

// AnyMessage is a decoded inbound message of any kind. Decoding enforces the
// JSON-RPC 2.0 shape: a method excludes result and error, and a response has
// exactly one of them.
type AnyMessage struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Request is a request, or a notification when ID is nil.
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Response is a reply. The id is always serialized; errors for messages
// whose id could not be determined carry "id": null.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func NewResultResponse(id *RequestID, result any) (*Response, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: marshal result: %w", err)
	}
	return &Response{JSONRPCVersion: ProtocolVersion, Result: b, ID: id}, nil
}

func NewErrorResponse(id *RequestID, code ErrorCode, message string, data any) *Response {
	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Error:          &Error{Code: code, Message: message, Data: data},
		ID:             id,
	}
}

func (m *AnyMessage) UnmarshalJSON(data []byte) error {
	type plain AnyMessage
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if p.JSONRPCVersion != ProtocolVersion {
		return fmt.Errorf("%w %q", ErrVersion, p.JSONRPCVersion)
	}
	hasResult, hasError := len(p.Result) > 0, p.Error != nil
	switch {
	case p.Method != "" && (hasResult || hasError):
		return fmt.Errorf("%w: request carries result or error", ErrShape)
	case p.Method == "" && hasResult == hasError:
		return fmt.Errorf("%w: response needs exactly one of result and error", ErrShape)
	}
	*m = AnyMessage(p)
	return nil
}

// Type returns TypeRequest, TypeNotification or TypeResponse.
func (m *AnyMessage) Type() string {
	switch {
	case m.Method == "":
		return TypeResponse
	case m.ID == nil:
		return TypeNotification
	default:
		return TypeRequest
	}
}

// AsRequest returns the message as a Request, or nil for a response.
func (m *AnyMessage) AsRequest() *Request {
	if m.Method == "" {
		return nil
	}
	return &Request{JSONRPCVersion: m.JSONRPCVersion, Method: m.Method, Params: m.Params, ID: m.ID}
}

// AsResponse returns the message as a Response, or nil for a request.
func (m *AnyMessage) AsResponse() *Response {
	if m.Method != "" {
		return nil
	}
	return &Response{JSONRPCVersion: m.JSONRPCVersion, Result: m.Result, Error: m.Error, ID: m.ID}
}
