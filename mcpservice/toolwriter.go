package mcpservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/ggoodman/mcp-gateway/mcp"
)

// ToolResponseWriter composes the result of one tool call. It may be shared
// by goroutines serving that call. Writes fail with the context error once
// the call is cancelled, and with ErrFinalized after Result.
type ToolResponseWriter interface {
	AppendText(text string) error
	// AppendJSON appends v as an indented JSON text block.
	AppendJSON(v any) error
	// SetStructured sets structuredContent. v must encode as a JSON object.
	SetStructured(v any) error
	SetMeta(key string, v any)
	// SendProgress is a no-op unless the caller asked for progress.
	SendProgress(progress, total float64, message string) error
	Result() *mcp.CallToolResult
}

var ErrFinalized = errors.New("result already finalized")

type toolResponseWriter struct {
	ctx  context.Context
	mu   sync.Mutex
	done bool
	res  mcp.CallToolResult
}

func newToolResponseWriter(ctx context.Context) *toolResponseWriter {
	return &toolResponseWriter{ctx: ctx, res: mcp.CallToolResult{Content: []mcp.ContentBlock{}}}
}

// update runs fn under the lock unless the call is cancelled or finalized.
func (w *toolResponseWriter) update(fn func(*mcp.CallToolResult)) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return ErrFinalized
	}
	fn(&w.res)
	return nil
}

func (w *toolResponseWriter) AppendText(text string) error {
	if text == "" {
		return nil
	}
	return w.update(func(r *mcp.CallToolResult) {
		r.Content = append(r.Content, mcp.TextBlock(text))
	})
}

func (w *toolResponseWriter) AppendJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tool output: %w", err)
	}
	return w.AppendText(string(b))
}

func (w *toolResponseWriter) SetStructured(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode structured content: %w", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("structured content is not an object: %w", err)
	}
	return w.update(func(r *mcp.CallToolResult) { r.StructuredContent = obj })
}

func (w *toolResponseWriter) SetMeta(key string, v any) {
	if key == "" {
		return
	}
	_ = w.update(func(r *mcp.CallToolResult) { r.SetMeta(key, v) })
}

func (w *toolResponseWriter) SendProgress(progress, total float64, message string) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	pr, ok := ProgressFrom(w.ctx)
	if !ok {
		return nil
	}
	return pr.Report(w.ctx, progress, total, message)
}

// Result finalizes the writer. Repeated calls return equal copies.
func (w *toolResponseWriter) Result() *mcp.CallToolResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.done = true
	out := w.res
	out.Content = append([]mcp.ContentBlock{}, w.res.Content...)
	out.Meta = maps.Clone(w.res.Meta)
	return &out
}
