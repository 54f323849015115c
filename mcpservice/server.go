package mcpservice

import (
	"github.com/ggoodman/mcp-gateway/mcp"
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// Server is the static description the engine serves: identity, instructions
// and the tool and resource capabilities. It is built once at startup and
// shared by every session.
type Server struct {
	info         mcp.ImplementationInfo
	instructions string
	tools        ToolsCapability
	resources    ResourcesCapability
}

// NewServer builds a Server using functional options.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithServerInfo sets the implementation info returned from initialize.
func WithServerInfo(info mcp.ImplementationInfo) ServerOption {
	return func(s *Server) { s.info = info }
}

// WithInstructions sets human-readable instructions returned during initialize.
func WithInstructions(instr string) ServerOption {
	return func(s *Server) { s.instructions = instr }
}

// WithToolsCapability wires the tools capability.
func WithToolsCapability(cap ToolsCapability) ServerOption {
	return func(s *Server) { s.tools = cap }
}

// WithResourcesCapability wires the resources capability.
func WithResourcesCapability(cap ResourcesCapability) ServerOption {
	return func(s *Server) { s.resources = cap }
}

func (s *Server) Info() mcp.ImplementationInfo { return s.info }
func (s *Server) Instructions() string         { return s.instructions }

// Tools returns the tools capability and whether one is configured.
func (s *Server) Tools() (ToolsCapability, bool) { return s.tools, s.tools != nil }

// Resources returns the resources capability and whether one is configured.
func (s *Server) Resources() (ResourcesCapability, bool) { return s.resources, s.resources != nil }

// Capabilities derives the capability set advertised in initialize.
func (s *Server) Capabilities() mcp.ServerCapabilities {
	caps := mcp.ServerCapabilities{Logging: &struct{}{}}
	if s.tools != nil {
		caps.Tools = &mcp.ListChangedCapability{}
	}
	if s.resources != nil {
		caps.Resources = &mcp.ResourcesCapability{}
	}
	return caps
}
