package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ggoodman/mcp-gateway/integration"
)

func newTestWorkspace(t *testing.T, h http.HandlerFunc) *Workspace {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" || r.Header.Get("Notion-Version") != APIVersion {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	ws, err := NewWithClient(integration.DocsCredentials{APIKey: "secret"}, srv.URL+"/v1", srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	return ws
}

const pageJSON = `{"id":"p1","url":"https://notion.so/p1","last_edited_time":"2024-04-01T12:00:00.000Z","parent":{"type":"page_id","page_id":"root"},"properties":{"Name":{"type":"title","title":[{"plain_text":"Runbook"}]}}}`

func TestGetDocumentFlattensBlocks(t *testing.T) {
	ws := newTestWorkspace(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/pages/p1":
			_, _ = w.Write([]byte(pageJSON))
		case "/v1/blocks/p1/children":
			_, _ = w.Write([]byte(`{"results":[
				{"type":"heading_1","heading_1":{"rich_text":[{"plain_text":"Steps"}]}},
				{"type":"paragraph","paragraph":{"rich_text":[{"plain_text":"Restart "},{"plain_text":"the worker"}]}},
				{"type":"divider","divider":{}}
			]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	doc, err := ws.GetDocument(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.Title != "Runbook" || doc.ParentID != "root" {
		t.Fatalf("unexpected doc %+v", doc)
	}
	if doc.Content != "Steps\nRestart the worker" {
		t.Fatalf("content = %q", doc.Content)
	}
	if doc.Edited == nil {
		t.Fatalf("last edited not parsed")
	}
}

func TestSearchDocuments(t *testing.T) {
	var body map[string]any
	ws := newTestWorkspace(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"results":[` + pageJSON + `]}`))
	})

	docs, err := ws.SearchDocuments(context.Background(), "run")
	if err != nil {
		t.Fatalf("SearchDocuments: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "p1" {
		t.Fatalf("unexpected docs %+v", docs)
	}
	if body["query"] != "run" {
		t.Fatalf("query not sent: %v", body)
	}
}

func TestCreateDocumentSplitsParagraphs(t *testing.T) {
	var body struct {
		Parent   map[string]string `json:"parent"`
		Children []json.RawMessage `json:"children"`
	}
	ws := newTestWorkspace(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"id":"new","url":"https://notion.so/new","parent":{"type":"page_id","page_id":"root"},"properties":{}}`))
	})

	doc, err := ws.CreateDocument(context.Background(), integration.DocumentDraft{
		Title:    "Notes",
		ParentID: "root",
		Content:  "first\n\nsecond",
	})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if doc.ID != "new" || doc.Title != "Notes" {
		t.Fatalf("unexpected doc %+v", doc)
	}
	if body.Parent["page_id"] != "root" {
		t.Fatalf("parent not sent: %v", body.Parent)
	}
	if len(body.Children) != 2 {
		t.Fatalf("want 2 paragraphs, got %d", len(body.Children))
	}
}

func TestParagraphsChunksLongLines(t *testing.T) {
	blocks := paragraphs(strings.Repeat("é", maxTextRun+10))
	if len(blocks) != 1 {
		t.Fatalf("want 1 block, got %d", len(blocks))
	}
	runs := blocks[0]["paragraph"].(map[string]any)["rich_text"].([]richText)
	if len(runs) != 2 {
		t.Fatalf("want 2 runs, got %d", len(runs))
	}
}

func TestUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	ws, _ := NewWithClient(integration.DocsCredentials{APIKey: "bad"}, srv.URL, srv.Client())
	_, err := ws.SearchDocuments(context.Background(), "")
	if integration.KindOf(err) != integration.KindAuthenticationFailed {
		t.Fatalf("want authentication failed, got %v", err)
	}
}
