package main

import (
	"context"

	"github.com/ggoodman/mcp-gateway/internal/config"
	"github.com/ggoodman/mcp-gateway/stdio"
	"github.com/spf13/cobra"
)

func newStdioCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve a single MCP session over stdin and stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(cmd.Context(), cfg)
		},
	}
}

func runStdio(ctx context.Context, cfg *config.Config) error {
	gw, err := newGateway(ctx, cfg)
	if err != nil {
		return err
	}
	defer gw.close()

	return stdio.NewHandler(gw.engine, stdio.WithLogger(gw.log)).Serve(ctx)
}
