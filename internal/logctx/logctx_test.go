package logctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/ggoodman/mcp-gateway/integration"
	"github.com/ggoodman/mcp-gateway/sessions"
)

func TestHandlerAddsContextGroups(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(Handler{Handler: slog.NewJSONHandler(&buf, nil)}).With(slog.String("svc", "gw"))

	ctx := WithSessionData(context.Background(), &SessionData{SessionID: "s1", UserID: "u1", State: sessions.StateActive})
	ctx = WithToolCallData(ctx, &ToolCallData{ToolName: "create-issue"})
	ctx = WithIntegration(ctx, integration.IssueTracker)
	log.InfoContext(ctx, "tool.call.ok")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	sess, _ := rec["sess"].(map[string]any)
	if sess["id"] != "s1" || sess["state"] != "active" {
		t.Fatalf("unexpected sess group %v", rec["sess"])
	}
	if tool, _ := rec["tool"].(map[string]any); tool["name"] != "create-issue" {
		t.Fatalf("unexpected tool group %v", rec["tool"])
	}
	if rec["integration"] != "issuetracker" || rec["svc"] != "gw" {
		t.Fatalf("unexpected record %v", rec)
	}
	if _, ok := rec["req"]; ok {
		t.Fatalf("req group present without request data")
	}
}

func TestHandlerOmitsEmptyValues(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(Handler{Handler: slog.NewJSONHandler(&buf, nil)})

	ctx := WithRequestData(context.Background(), &RequestData{Transport: "stdio"})
	ctx = WithRPCMessage(ctx, &RPCMessage{Method: "tools/call", ID: "7", Type: "request"})
	log.InfoContext(ctx, "rpc.handled")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	req, _ := rec["req"].(map[string]any)
	if len(req) != 1 || req["transport"] != "stdio" {
		t.Fatalf("unexpected req group %v", rec["req"])
	}
	if rpc, _ := rec["rpc"].(map[string]any); rpc["method"] != "tools/call" || rpc["id"] != "7" {
		t.Fatalf("unexpected rpc group %v", rec["rpc"])
	}
}
