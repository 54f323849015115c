package catalog

import (
	"context"
	"net/url"
	"strings"

	"github.com/ggoodman/mcp-gateway/integration"
	"github.com/ggoodman/mcp-gateway/mcp"
	"github.com/ggoodman/mcp-gateway/mcpservice"
	"github.com/ggoodman/mcp-gateway/sessions"
)

const documentCollectionURI = "docs://documents"

func (c *catalog) documentRoute() mcpservice.ResourceRoute {
	return mcpservice.ResourceRoute{
		Template: mcp.ResourceTemplate{
			URITemplate: documentCollectionURI + "/{id}",
			Name:        "doc-resource",
			Title:       "Notion page",
			Description: "A Notion page with its text content.",
			MimeType:    mimeJSON,
		},
		Collection: &mcp.Resource{
			URI:         documentCollectionURI,
			Name:        "documents",
			Title:       "Notion pages",
			Description: "Pages shared with the integration. Append ?query= to search by title.",
			MimeType:    mimeJSON,
		},
		Read: func(ctx context.Context, s sessions.Session, uri string, vars map[string]string) ([]mcp.ResourceContents, error) {
			store, err := c.docs(s)
			if err != nil {
				return nil, err
			}
			var out any
			if id := vars["id"]; id != "" {
				err = c.call(ctx, integration.Docs, "GetDocument", func(ctx context.Context) error {
					doc, err := store.GetDocument(ctx, id)
					out = doc
					return err
				})
			} else {
				query := searchQuery(uri)
				err = c.call(ctx, integration.Docs, "SearchDocuments", func(ctx context.Context) error {
					docs, err := store.SearchDocuments(ctx, query)
					out = nonNil(docs)
					return err
				})
			}
			if err != nil {
				return nil, err
			}
			return jsonContents(uri, out)
		},
	}
}

func searchQuery(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(u.Query().Get("query"))
}

type createDocArgs struct {
	Title    string `json:"title" jsonschema:"description=Page title"`
	ParentID string `json:"parentId" jsonschema:"description=Id of the parent page"`
	Content  string `json:"content,omitempty" jsonschema:"description=Plain text body; one paragraph per line"`
}

func (c *catalog) createDoc() mcpservice.StaticTool {
	return mcpservice.NewTool[createDocArgs]("create-doc",
		func(ctx context.Context, s sessions.Session, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[createDocArgs]) error {
			if _, err := credential[integration.DocsCredentials](s, integration.Docs); err != nil {
				return err
			}
			a := r.Args()
			draft := integration.DocumentDraft{
				Title:    strings.TrimSpace(a.Title),
				ParentID: strings.TrimSpace(a.ParentID),
				Content:  a.Content,
			}
			if draft.Title == "" {
				return integration.Validationf(integration.Docs, "title is required")
			}
			if draft.ParentID == "" {
				return integration.Validationf(integration.Docs, "parentId is required")
			}
			store, err := c.docs(s)
			if err != nil {
				return err
			}

			var doc *integration.Document
			err = c.call(ctx, integration.Docs, "CreateDocument", func(ctx context.Context) error {
				doc, err = store.CreateDocument(ctx, draft)
				return err
			})
			if err != nil {
				return err
			}
			if err := w.SetStructured(doc); err != nil {
				return err
			}
			return w.AppendJSON(doc)
		},
		mcpservice.WithToolTitle("Create Notion page"),
		mcpservice.WithToolDescription("Create a Notion page under an existing parent page."),
		mcpservice.WithToolAnnotations(mcp.ToolAnnotations{OpenWorldHint: true}),
		mcpservice.WithToolOutput[integration.Document](),
	)
}
