package mcpservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/ggoodman/mcp-gateway/mcp"
	"github.com/ggoodman/mcp-gateway/sessions"
	"github.com/yosida95/uritemplate/v3"
)

// ResourceReadFunc reads the resource at uri. vars holds the template
// variables extracted from uri and is empty when the collection itself was
// requested.
type ResourceReadFunc func(ctx context.Context, session sessions.Session, uri string, vars map[string]string) ([]mcp.ResourceContents, error)

// ResourceRoute binds a URI template, and optionally the collection it
// indexes, to a reader.
//
// A route for "issuetracker://items/{id}" with collection
// "issuetracker://items" serves both "issuetracker://items/ABC-1" (one item)
// and "issuetracker://items" (the whole collection).
type ResourceRoute struct {
	Template   mcp.ResourceTemplate
	Collection *mcp.Resource
	Read       ResourceReadFunc
}

type compiledRoute struct {
	ResourceRoute
	tmpl *uritemplate.Template
}

// ResourcesContainer serves a fixed set of resource routes.
type ResourcesContainer struct {
	routes   []compiledRoute
	pageSize int
}

var _ ResourcesCapability = (*ResourcesContainer)(nil)

// NewResourcesContainer compiles the routes' templates.
func NewResourcesContainer(routes ...ResourceRoute) (*ResourcesContainer, error) {
	rc := &ResourcesContainer{pageSize: 50}
	for _, r := range routes {
		if r.Read == nil {
			return nil, fmt.Errorf("resource template %q has no reader", r.Template.URITemplate)
		}
		t, err := uritemplate.New(r.Template.URITemplate)
		if err != nil {
			return nil, fmt.Errorf("parse resource template %q: %w", r.Template.URITemplate, err)
		}
		rc.routes = append(rc.routes, compiledRoute{ResourceRoute: r, tmpl: t})
	}
	return rc, nil
}

// ListResources returns the collection resources.
func (rc *ResourcesContainer) ListResources(ctx context.Context, session sessions.Session, cursor *string) (Page[mcp.Resource], error) {
	var all []mcp.Resource
	for _, r := range rc.routes {
		if r.Collection != nil {
			all = append(all, *r.Collection)
		}
	}
	return pageSlice(all, rc.pageSize, cursor), nil
}

func (rc *ResourcesContainer) ListResourceTemplates(ctx context.Context, session sessions.Session, cursor *string) (Page[mcp.ResourceTemplate], error) {
	all := make([]mcp.ResourceTemplate, 0, len(rc.routes))
	for _, r := range rc.routes {
		all = append(all, r.Template)
	}
	return pageSlice(all, rc.pageSize, cursor), nil
}

// ReadResource dispatches uri to the first route whose collection or template
// matches it. A query string on a collection URI is passed through to the
// reader.
func (rc *ResourcesContainer) ReadResource(ctx context.Context, session sessions.Session, uri string) ([]mcp.ResourceContents, error) {
	base, _, _ := strings.Cut(uri, "?")
	base = strings.TrimSuffix(base, "/")
	for _, r := range rc.routes {
		if r.Collection != nil && base == r.Collection.URI {
			return r.Read(ctx, session, uri, map[string]string{})
		}
		values := r.tmpl.Match(uri)
		if values == nil {
			continue
		}
		vars := make(map[string]string, len(r.tmpl.Varnames()))
		complete := true
		for _, name := range r.tmpl.Varnames() {
			v := values.Get(name)
			if !v.Valid() || v.String() == "" {
				complete = false
				break
			}
			vars[name] = v.String()
		}
		if complete {
			return r.Read(ctx, session, uri, vars)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, uri)
}
