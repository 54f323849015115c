// Package notion adapts the Notion public API to integration.DocumentStore.
package notion

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ggoodman/mcp-gateway/integration"
	"github.com/ggoodman/mcp-gateway/integration/restclient"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1/"
	APIVersion     = "2022-06-28"

	pageSize = 100
	// Notion rejects rich text runs longer than this.
	maxTextRun = 2000
)

var _ integration.DocsFactory = New

// Workspace is a Notion workspace reached through one integration secret.
type Workspace struct {
	rc *restclient.Client
}

// New builds a Workspace against the public API.
func New(creds integration.DocsCredentials) (integration.DocumentStore, error) {
	return NewWithClient(creds, DefaultBaseURL, nil)
}

// NewWithClient is New with an overridable base URL and HTTP client.
func NewWithClient(creds integration.DocsCredentials, base string, hc *http.Client) (*Workspace, error) {
	if m := creds.Missing(); len(m) > 0 {
		return nil, integration.Validationf(integration.Docs, "missing credential fields: %v", m)
	}
	rc, err := restclient.New(integration.Docs, base, hc)
	if err != nil {
		return nil, err
	}
	rc.Header.Set("Authorization", "Bearer "+creds.APIKey)
	rc.Header.Set("Notion-Version", APIVersion)
	return &Workspace{rc: rc}, nil
}

type richText struct {
	Type      string `json:"type,omitempty"`
	PlainText string `json:"plain_text,omitempty"`
	Text      *struct {
		Content string `json:"content"`
	} `json:"text,omitempty"`
}

func textRun(s string) richText {
	rt := richText{Type: "text"}
	rt.Text = &struct {
		Content string `json:"content"`
	}{Content: s}
	return rt
}

type pageDTO struct {
	ID             string `json:"id"`
	URL            string `json:"url"`
	LastEditedTime string `json:"last_edited_time"`
	Parent         struct {
		Type       string `json:"type"`
		PageID     string `json:"page_id"`
		DatabaseID string `json:"database_id"`
	} `json:"parent"`
	Properties map[string]struct {
		Type  string     `json:"type"`
		Title []richText `json:"title"`
	} `json:"properties"`
}

func (p *pageDTO) toDocument() integration.Document {
	doc := integration.Document{ID: p.ID, URL: p.URL}
	for _, prop := range p.Properties {
		if prop.Type == "title" {
			doc.Title = plain(prop.Title)
			break
		}
	}
	switch p.Parent.Type {
	case "page_id":
		doc.ParentID = p.Parent.PageID
	case "database_id":
		doc.ParentID = p.Parent.DatabaseID
	}
	if ts, err := time.Parse(time.RFC3339, p.LastEditedTime); err == nil {
		doc.Edited = &ts
	}
	return doc
}

func plain(rts []richText) string {
	var b strings.Builder
	for _, rt := range rts {
		if rt.PlainText != "" {
			b.WriteString(rt.PlainText)
		} else if rt.Text != nil {
			b.WriteString(rt.Text.Content)
		}
	}
	return b.String()
}

// GetDocument fetches the page and flattens its top-level text blocks into
// Content, one block per line.
func (w *Workspace) GetDocument(ctx context.Context, id string) (*integration.Document, error) {
	var page pageDTO
	if err := w.rc.Do(ctx, restclient.Request{Path: "pages/" + url.PathEscape(id), ItemID: id}, &page); err != nil {
		return nil, err
	}
	doc := page.toDocument()

	q := url.Values{}
	q.Set("page_size", strconv.Itoa(pageSize))
	var blocks struct {
		Results []map[string]any `json:"results"`
	}
	if err := w.rc.Do(ctx, restclient.Request{Path: "blocks/" + url.PathEscape(id) + "/children", Query: q, ItemID: id}, &blocks); err != nil {
		return nil, err
	}
	var lines []string
	for _, b := range blocks.Results {
		if s, ok := blockText(b); ok {
			lines = append(lines, s)
		}
	}
	doc.Content = strings.Join(lines, "\n")
	return &doc, nil
}

// blockText extracts the plain text of any block type that carries a
// rich_text array.
func blockText(b map[string]any) (string, bool) {
	typ, _ := b["type"].(string)
	body, ok := b[typ].(map[string]any)
	if !ok {
		return "", false
	}
	runs, ok := body["rich_text"].([]any)
	if !ok {
		return "", false
	}
	var sb strings.Builder
	for _, r := range runs {
		m, _ := r.(map[string]any)
		if s, ok := m["plain_text"].(string); ok {
			sb.WriteString(s)
		}
	}
	return sb.String(), true
}

// SearchDocuments searches page titles. An empty query lists recently
// edited pages.
func (w *Workspace) SearchDocuments(ctx context.Context, query string) ([]integration.Document, error) {
	body := map[string]any{
		"filter":    map[string]string{"property": "object", "value": "page"},
		"sort":      map[string]string{"direction": "descending", "timestamp": "last_edited_time"},
		"page_size": pageSize,
	}
	if query != "" {
		body["query"] = query
	}
	var res struct {
		Results []pageDTO `json:"results"`
	}
	if err := w.rc.Do(ctx, restclient.Request{Method: http.MethodPost, Path: "search", Body: body}, &res); err != nil {
		return nil, err
	}
	out := make([]integration.Document, 0, len(res.Results))
	for i := range res.Results {
		out = append(out, res.Results[i].toDocument())
	}
	return out, nil
}

// CreateDocument creates a child page. Content is split into one paragraph
// block per line.
func (w *Workspace) CreateDocument(ctx context.Context, d integration.DocumentDraft) (*integration.Document, error) {
	body := map[string]any{
		"parent": map[string]string{"page_id": d.ParentID},
		"properties": map[string]any{
			"title": map[string]any{"title": []richText{textRun(d.Title)}},
		},
	}
	if children := paragraphs(d.Content); len(children) > 0 {
		body["children"] = children
	}

	var page pageDTO
	if err := w.rc.Do(ctx, restclient.Request{Method: http.MethodPost, Path: "pages", Body: body, ItemID: d.ParentID}, &page); err != nil {
		return nil, err
	}
	doc := page.toDocument()
	if doc.Title == "" {
		doc.Title = d.Title
	}
	if doc.ParentID == "" {
		doc.ParentID = d.ParentID
	}
	doc.Content = d.Content
	return &doc, nil
}

func paragraphs(content string) []map[string]any {
	var out []map[string]any
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var runs []richText
		rs := []rune(line)
		for len(rs) > maxTextRun {
			runs = append(runs, textRun(string(rs[:maxTextRun])))
			rs = rs[maxTextRun:]
		}
		runs = append(runs, textRun(string(rs)))
		out = append(out, map[string]any{
			"object":    "block",
			"type":      "paragraph",
			"paragraph": map[string]any{"rich_text": runs},
		})
	}
	return out
}
