// Package mcpservice provides the building blocks the gateway's catalog is
// assembled from: typed tools with reflected input schemas, URI-template
// resource routes, and the Server value the engine serves.
//
// Quick start:
//
//	type EchoArgs struct {
//	    Message string `json:"message" jsonschema:"description=Text to echo"`
//	}
//	echo := mcpservice.NewTool[EchoArgs]("echo",
//	    func(ctx context.Context, s sessions.Session, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[EchoArgs]) error {
//	        return w.AppendText("you said: " + r.Args().Message)
//	    },
//	    mcpservice.WithToolDescription("Echo a message back to the caller"),
//	)
//	tools, err := mcpservice.NewToolsContainer(echo)
//	if err != nil { ... }
//
//	res, err := mcpservice.NewResourcesContainer(mcpservice.ResourceRoute{
//	    Template:   mcp.ResourceTemplate{URITemplate: "notes://items/{id}", Name: "note"},
//	    Collection: &mcp.Resource{URI: "notes://items", Name: "notes"},
//	    Read:       readNote,
//	})
//	if err != nil { ... }
//
//	srv := mcpservice.NewServer(
//	    mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: "example", Version: "1.0.0"}),
//	    mcpservice.WithToolsCapability(tools),
//	    mcpservice.WithResourcesCapability(res),
//	)
//
// Tool handlers report failures by returning an error; errors built with the
// integration package carry the kind the engine surfaces to the client.
package mcpservice
