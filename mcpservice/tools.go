package mcpservice

import (
	"context"
	"fmt"
	"sync"

	"github.com/ggoodman/mcp-gateway/mcp"
	"github.com/ggoodman/mcp-gateway/sessions"
)

const defaultToolPageSize = 50

// ToolsContainer serves a fixed set of tools in registration order.
type ToolsContainer struct {
	mu       sync.RWMutex
	order    []StaticTool
	byName   map[string]int
	pageSize int
}

var _ ToolsCapability = (*ToolsContainer)(nil)

// NewToolsContainer fails if two tools share a name or a tool has no name or
// handler.
func NewToolsContainer(defs ...StaticTool) (*ToolsContainer, error) {
	c := &ToolsContainer{byName: make(map[string]int, len(defs)), pageSize: defaultToolPageSize}
	for _, def := range defs {
		name := def.Descriptor.Name
		if name == "" || def.Handler == nil {
			return nil, fmt.Errorf("tool %q: name and handler are required", name)
		}
		if _, dup := c.byName[name]; dup {
			return nil, fmt.Errorf("tool %q registered twice", name)
		}
		c.byName[name] = len(c.order)
		c.order = append(c.order, def)
	}
	return c, nil
}

// SetPageSize changes the tools/list page size. Non-positive sizes are
// ignored.
func (c *ToolsContainer) SetPageSize(n int) {
	if n > 0 {
		c.mu.Lock()
		c.pageSize = n
		c.mu.Unlock()
	}
}

func (c *ToolsContainer) ListTools(ctx context.Context, session sessions.Session, cursor *string) (Page[mcp.Tool], error) {
	c.mu.RLock()
	descs := make([]mcp.Tool, 0, len(c.order))
	for _, def := range c.order {
		descs = append(descs, def.Descriptor)
	}
	size := c.pageSize
	c.mu.RUnlock()
	return pageSlice(descs, size, cursor), nil
}

func (c *ToolsContainer) CallTool(ctx context.Context, session sessions.Session, req *mcp.CallToolRequestReceived) (*mcp.CallToolResult, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: missing name", ErrToolNotFound)
	}
	c.mu.RLock()
	i, ok := c.byName[req.Name]
	var h ToolHandler
	if ok {
		h = c.order[i].Handler
	}
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, req.Name)
	}
	return h(ctx, session, req)
}
