package fake

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ggoodman/mcp-gateway/integration"
)

// Docs is an in-memory document workspace. Document ids are doc-1, doc-2
// and so on.
type Docs struct {
	set *Set

	mu    sync.Mutex
	docs  map[string]*integration.Document
	order []string
	seq   int
}

func newDocs(s *Set) *Docs {
	return &Docs{set: s, docs: make(map[string]*integration.Document)}
}

// Seed stores a document as-is.
func (d *Docs) Seed(doc integration.Document) {
	d.mu.Lock()
	if _, ok := d.docs[doc.ID]; !ok {
		d.order = append(d.order, doc.ID)
	}
	d.docs[doc.ID] = &doc
	d.mu.Unlock()
}

type boundDocs struct {
	d     *Docs
	creds integration.DocsCredentials
}

func (b *boundDocs) GetDocument(ctx context.Context, id string) (*integration.Document, error) {
	b.d.set.record(b.creds, "GetDocument", id)
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	doc, ok := b.d.docs[id]
	if !ok {
		return nil, integration.NotFound(integration.Docs, id)
	}
	cp := *doc
	return &cp, nil
}

func (b *boundDocs) SearchDocuments(ctx context.Context, query string) ([]integration.Document, error) {
	b.d.set.record(b.creds, "SearchDocuments", query)
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	q := strings.ToLower(query)
	var out []integration.Document
	for _, id := range b.d.order {
		doc := b.d.docs[id]
		if q == "" || strings.Contains(strings.ToLower(doc.Title), q) || strings.Contains(strings.ToLower(doc.Content), q) {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (b *boundDocs) CreateDocument(ctx context.Context, dr integration.DocumentDraft) (*integration.Document, error) {
	b.d.set.record(b.creds, "CreateDocument", dr.ParentID)
	b.d.mu.Lock()
	defer b.d.mu.Unlock()
	b.d.seq++
	doc := &integration.Document{
		ID:       fmt.Sprintf("doc-%d", b.d.seq),
		Title:    dr.Title,
		ParentID: dr.ParentID,
		Content:  dr.Content,
	}
	b.d.docs[doc.ID] = doc
	b.d.order = append(b.d.order, doc.ID)
	cp := *doc
	return &cp, nil
}
