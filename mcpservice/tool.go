package mcpservice

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/ggoodman/mcp-gateway/integration"
	"github.com/ggoodman/mcp-gateway/mcp"
	"github.com/ggoodman/mcp-gateway/sessions"
)

// ToolHandler answers one tools/call for a single tool.
type ToolHandler func(ctx context.Context, session sessions.Session, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error)

// StaticTool is a tool descriptor bound to its handler.
type StaticTool struct {
	Descriptor mcp.Tool
	Handler    ToolHandler
}

// ToolRequest carries the decoded arguments of a typed tool.
type ToolRequest[A any] struct {
	args A
}

func (r *ToolRequest[A]) Args() A { return r.args }

// ToolOption adjusts a tool built by NewTool.
type ToolOption func(*toolConfig)

type toolConfig struct {
	descriptor mcp.Tool
	lenient    bool
}

func WithToolTitle(title string) ToolOption {
	return func(c *toolConfig) { c.descriptor.Title = title }
}

func WithToolDescription(desc string) ToolOption {
	return func(c *toolConfig) { c.descriptor.Description = desc }
}

func WithToolAnnotations(a mcp.ToolAnnotations) ToolOption {
	return func(c *toolConfig) { c.descriptor.Annotations = &a }
}

// WithToolAllowAdditionalProperties accepts arguments the argument struct
// does not declare. Tools are strict otherwise.
func WithToolAllowAdditionalProperties(allow bool) ToolOption {
	return func(c *toolConfig) { c.lenient = allow }
}

// WithToolOutput advertises the shape of structuredContent, reflected from O.
func WithToolOutput[O any]() ToolOption {
	return func(c *toolConfig) {
		out := outputSchemaFor[O]()
		c.descriptor.OutputSchema = &out
	}
}

// NewTool builds a tool whose arguments are the JSON object form of A. The
// input schema is reflected from A. Arguments that do not decode into A are
// rejected as a validation failure before fn runs.
func NewTool[A any](name string, fn func(ctx context.Context, session sessions.Session, w ToolResponseWriter, r *ToolRequest[A]) error, opts ...ToolOption) StaticTool {
	var cfg toolConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	desc := cfg.descriptor
	desc.Name = name
	desc.InputSchema = inputSchemaFor[A](cfg.lenient)

	lenient := cfg.lenient
	return StaticTool{
		Descriptor: desc,
		Handler: func(ctx context.Context, session sessions.Session, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error) {
			args, err := decodeArgs[A](req.Arguments, lenient)
			if err != nil {
				return nil, integration.Validationf("", "invalid arguments for %s: %v", name, err)
			}
			w := newToolResponseWriter(ctx)
			if err := fn(ctx, session, w, &ToolRequest[A]{args: args}); err != nil {
				return nil, err
			}
			return w.Result(), nil
		},
	}
}

// decodeArgs treats absent and null arguments as the zero value of A.
func decodeArgs[A any](raw json.RawMessage, lenient bool) (A, error) {
	var args A
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return args, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if !lenient {
		dec.DisallowUnknownFields()
	}
	err := dec.Decode(&args)
	return args, err
}
