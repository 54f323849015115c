package mcpservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/ggoodman/mcp-gateway/integration"
	"github.com/ggoodman/mcp-gateway/mcp"
	"github.com/ggoodman/mcp-gateway/sessions"
)

type nopSession struct{ sessions.Session }

type greetArgs struct {
	Name     string   `json:"name" jsonschema:"description=Who to greet"`
	Shout    bool     `json:"shout,omitempty"`
	Cc       []string `json:"cc,omitempty" jsonschema:"format=email"`
	Language string   `json:"language,omitempty" jsonschema:"enum=en,enum=fr"`
}

func greetTool(opts ...ToolOption) StaticTool {
	return NewTool[greetArgs]("greet", func(ctx context.Context, s sessions.Session, w ToolResponseWriter, r *ToolRequest[greetArgs]) error {
		if r.Args().Name == "boom" {
			return integration.Backend(integration.Docs, "exploded", nil)
		}
		return w.AppendText("hello " + r.Args().Name)
	}, opts...)
}

func TestNewToolReflectsInputSchema(t *testing.T) {
	tool := greetTool(WithToolDescription("Say hello"), WithToolAnnotations(mcp.ToolAnnotations{ReadOnlyHint: true}))
	in := tool.Descriptor.InputSchema

	if in.Type != "object" || in.AdditionalProperties {
		t.Fatalf("unexpected schema %+v", in)
	}
	if len(in.Required) != 1 || in.Required[0] != "name" {
		t.Fatalf("want only name required, got %v", in.Required)
	}
	if got := in.Properties["name"].Description; got != "Who to greet" {
		t.Fatalf("description not reflected: %q", got)
	}
	if got := in.Properties["cc"]; got.Type != "array" || got.Items == nil || got.Items.Type != "string" {
		t.Fatalf("array property not reflected: %+v", got)
	}
	if got := in.Properties["language"].Enum; len(got) != 2 {
		t.Fatalf("enum not reflected: %v", got)
	}
	if tool.Descriptor.Annotations == nil || !tool.Descriptor.Annotations.ReadOnlyHint {
		t.Fatalf("annotations not set")
	}
}

func TestNewToolDecodesArguments(t *testing.T) {
	tool := greetTool()
	res, err := tool.Handler(context.Background(), nopSession{}, &mcp.CallToolRequestReceived{
		Name:      "greet",
		Arguments: json.RawMessage(`{"name":"ada"}`),
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(res.Content) != 1 || res.Content[0].Text != "hello ada" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestNewToolRejectsUnknownFields(t *testing.T) {
	tool := greetTool()
	_, err := tool.Handler(context.Background(), nopSession{}, &mcp.CallToolRequestReceived{
		Name:      "greet",
		Arguments: json.RawMessage(`{"name":"ada","extra":1}`),
	})
	if integration.KindOf(err) != integration.KindValidationFailed {
		t.Fatalf("want validation failure, got %v", err)
	}

	lenient := greetTool(WithToolAllowAdditionalProperties(true))
	if _, err := lenient.Handler(context.Background(), nopSession{}, &mcp.CallToolRequestReceived{
		Name:      "greet",
		Arguments: json.RawMessage(`{"name":"ada","extra":1}`),
	}); err != nil {
		t.Fatalf("lenient tool rejected extra field: %v", err)
	}
}

func TestToolsContainerDispatch(t *testing.T) {
	c, err := NewToolsContainer(greetTool())
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.CallTool(context.Background(), nopSession{}, &mcp.CallToolRequestReceived{Name: "missing"})
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("want ErrToolNotFound, got %v", err)
	}

	_, err = c.CallTool(context.Background(), nopSession{}, &mcp.CallToolRequestReceived{Name: "greet", Arguments: json.RawMessage(`{"name":"boom"}`)})
	if integration.KindOf(err) != integration.KindBackend {
		t.Fatalf("handler error not propagated: %v", err)
	}

	if _, err := NewToolsContainer(greetTool(), greetTool()); err == nil {
		t.Fatalf("duplicate tool names accepted")
	}
}

func TestToolsContainerPaginates(t *testing.T) {
	var defs []StaticTool
	for i := 0; i < 5; i++ {
		d := greetTool()
		d.Descriptor.Name = fmt.Sprintf("tool-%d", i)
		defs = append(defs, d)
	}
	c, err := NewToolsContainer(defs...)
	if err != nil {
		t.Fatal(err)
	}
	c.SetPageSize(2)

	var names []string
	var cursor *string
	for pages := 0; ; pages++ {
		if pages > 5 {
			t.Fatalf("pagination did not terminate")
		}
		page, err := c.ListTools(context.Background(), nopSession{}, cursor)
		if err != nil {
			t.Fatal(err)
		}
		for _, tool := range page.Items {
			names = append(names, tool.Name)
		}
		if page.NextCursor == nil {
			break
		}
		cursor = page.NextCursor
	}
	if len(names) != 5 || names[0] != "tool-0" || names[4] != "tool-4" {
		t.Fatalf("unexpected listing %v", names)
	}
}

func TestToolResponseWriter(t *testing.T) {
	w := newToolResponseWriter(context.Background())
	_ = w.AppendJSON(map[string]string{"key": "ABC-1"})
	if err := w.SetStructured(map[string]any{"key": "ABC-1"}); err != nil {
		t.Fatal(err)
	}
	if err := w.SetStructured([]int{1}); err == nil {
		t.Fatalf("non-object structured content accepted")
	}
	w.SetMeta("warning", "skipped")
	res := w.Result()

	if len(res.Content) != 1 || res.StructuredContent["key"] != "ABC-1" || res.Meta["warning"] != "skipped" {
		t.Fatalf("unexpected result %+v", res)
	}
	if err := w.AppendText("late"); !errors.Is(err, ErrFinalized) {
		t.Fatalf("want ErrFinalized, got %v", err)
	}
}

type recordingReporter struct{ calls []string }

func (r *recordingReporter) Report(_ context.Context, progress, total float64, msg string) error {
	r.calls = append(r.calls, fmt.Sprintf("%g/%g %s", progress, total, msg))
	return nil
}

func TestSendProgressUsesReporterFromContext(t *testing.T) {
	w := newToolResponseWriter(context.Background())
	if err := w.SendProgress(1, 2, "ignored"); err != nil {
		t.Fatalf("progress without reporter should be a no-op: %v", err)
	}

	rep := &recordingReporter{}
	w = newToolResponseWriter(WithProgressReporter(context.Background(), rep))
	_ = w.SendProgress(1, 2, "halfway")
	if len(rep.calls) != 1 || rep.calls[0] != "1/2 halfway" {
		t.Fatalf("unexpected reports %v", rep.calls)
	}
}

func TestNewToolWithoutArguments(t *testing.T) {
	tool := NewTool[struct{}]("ping", func(ctx context.Context, _ sessions.Session, w ToolResponseWriter, _ *ToolRequest[struct{}]) error {
		return w.AppendText("pong")
	})
	in := tool.Descriptor.InputSchema
	if in.Type != "object" || len(in.Properties) != 0 || len(in.Required) != 0 {
		t.Fatalf("unexpected schema %+v", in)
	}

	for _, args := range []string{"", "null", "{}"} {
		res, err := tool.Handler(context.Background(), nopSession{}, &mcp.CallToolRequestReceived{Name: "ping", Arguments: json.RawMessage(args)})
		if err != nil {
			t.Fatalf("arguments %q: %v", args, err)
		}
		if len(res.Content) != 1 || res.Content[0].Text != "pong" {
			t.Fatalf("arguments %q: unexpected result %+v", args, res)
		}
	}
}

func TestNewToolWithUnnamedArgumentStruct(t *testing.T) {
	type args = struct {
		Query string `json:"query"`
	}
	tool := NewTool[args]("search", func(ctx context.Context, _ sessions.Session, w ToolResponseWriter, r *ToolRequest[args]) error {
		return w.AppendText(r.Args().Query)
	})
	if got := tool.Descriptor.InputSchema.Properties["query"].Type; got != "string" {
		t.Fatalf("query property type = %q", got)
	}
}
