package mcp

import "encoding/json"

// Keys the gateway sets under _meta on tool results.
const (
	// MetaErrorKind carries the failure kind of an isError result, such as
	// "login_required".
	MetaErrorKind = "errorKind"
	// MetaIntegration names the integration a failure came from.
	MetaIntegration = "integration"
	// MetaStatusApplied is false when update-issue skipped a status change.
	MetaStatusApplied = "statusApplied"
	MetaWarning       = "warning"
)

const (
	ContentTypeText         = "text"
	ContentTypeResourceLink = "resource_link"
)

// ContentBlock is one part of a tool result: text, or a link to a resource
// such as a created issue.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitzero"`

	URI         string `json:"uri,omitzero"`
	Name        string `json:"name,omitzero"`
	Description string `json:"description,omitzero"`
	MimeType    string `json:"mimeType,omitzero"`
}

// TextBlock returns a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentTypeText, Text: text}
}

type Tool struct {
	Name         string            `json:"name"`
	Title        string            `json:"title,omitzero"`
	Description  string            `json:"description,omitempty"`
	InputSchema  ToolInputSchema   `json:"inputSchema"`
	OutputSchema *ToolOutputSchema `json:"outputSchema,omitempty"`
	Annotations  *ToolAnnotations  `json:"annotations,omitempty"`
}

// ToolInputSchema is the object schema reflected from a tool's argument
// struct.
type ToolInputSchema struct {
	Type                 string                    `json:"type"`
	Properties           map[string]SchemaProperty `json:"properties,omitempty"`
	Required             []string                  `json:"required,omitempty"`
	AdditionalProperties bool                      `json:"additionalProperties,omitzero"`
}

// ToolOutputSchema describes structuredContent.
type ToolOutputSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

type SchemaProperty struct {
	Type        string                    `json:"type,omitempty"`
	Description string                    `json:"description,omitzero"`
	Format      string                    `json:"format,omitzero"`
	Items       *SchemaProperty           `json:"items,omitempty"`
	Properties  map[string]SchemaProperty `json:"properties,omitempty"`
	Required    []string                  `json:"required,omitempty"`
	Enum        []any                     `json:"enum,omitempty"`
}

type ToolAnnotations struct {
	ReadOnlyHint    bool `json:"readOnlyHint,omitzero"`
	DestructiveHint bool `json:"destructiveHint,omitzero"`
	IdempotentHint  bool `json:"idempotentHint,omitzero"`
	OpenWorldHint   bool `json:"openWorldHint,omitzero"`
}

type ListToolsRequest struct {
	PaginatedRequest
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
	PaginatedResult
	BaseMetadata
}

// CallToolRequestReceived is tools/call params as received. Arguments stay
// raw until the tool decodes them into its argument struct.
type CallToolRequestReceived struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Meta      *RequestMeta    `json:"_meta,omitempty"`
}

type CallToolResult struct {
	Content           []ContentBlock `json:"content"`
	IsError           bool           `json:"isError,omitzero"`
	StructuredContent map[string]any `json:"structuredContent,omitempty"`
	BaseMetadata
}

// SetMeta records v under key in the result's _meta.
func (r *CallToolResult) SetMeta(key string, v any) {
	if r.Meta == nil {
		r.Meta = make(map[string]any)
	}
	r.Meta[key] = v
}
