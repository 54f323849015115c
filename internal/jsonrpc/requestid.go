package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RequestID is a JSON-RPC id. Numbers and strings are kept apart: the id 1
// and the id "1" are different requests.
type RequestID struct {
	raw json.RawMessage
}

// NewRequestID builds an id from a string or an integer. Other values produce
// a null id.
func NewRequestID(v any) *RequestID {
	var raw []byte
	switch v := v.(type) {
	case string:
		raw, _ = json.Marshal(v)
	case int:
		raw = strconv.AppendInt(nil, int64(v), 10)
	case int32:
		raw = strconv.AppendInt(nil, int64(v), 10)
	case int64:
		raw = strconv.AppendInt(nil, v, 10)
	case uint64:
		raw = strconv.AppendUint(nil, v, 10)
	default:
		return &RequestID{}
	}
	return &RequestID{raw: raw}
}

// String renders the id for logs: strings unquoted, numbers as written.
func (id *RequestID) String() string {
	if id.IsNil() {
		return ""
	}
	if id.raw[0] == '"' {
		var s string
		if err := json.Unmarshal(id.raw, &s); err == nil {
			return s
		}
	}
	return string(id.raw)
}

// Key is the id's JSON encoding. It distinguishes 1 from "1" and is suitable
// as a map key.
func (id *RequestID) Key() string {
	if id.IsNil() {
		return "null"
	}
	return string(id.raw)
}

// IsNil reports whether the id is absent or null.
func (id *RequestID) IsNil() bool {
	return id == nil || len(id.raw) == 0
}

func (id *RequestID) MarshalJSON() ([]byte, error) {
	if id.IsNil() {
		return []byte("null"), nil
	}
	return id.raw, nil
}

func (id *RequestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		id.raw = nil
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		id.raw, _ = json.Marshal(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("JSON-RPC id must be a string or number, got %s", data)
	}
	// Canonicalize 1.0 and 1e0 to 1 so equal numbers share a key.
	if i, err := n.Int64(); err == nil {
		id.raw = strconv.AppendInt(nil, i, 10)
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("JSON-RPC id %s: %w", data, err)
	}
	if f == float64(int64(f)) {
		id.raw = strconv.AppendInt(nil, int64(f), 10)
	} else {
		id.raw = strconv.AppendFloat(nil, f, 'g', -1, 64)
	}
	return nil
}
