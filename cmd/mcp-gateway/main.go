// Command mcp-gateway serves the Jira, Google Calendar and Notion catalog
// over the Model Context Protocol, either as a streamable HTTP endpoint or
// over stdin/stdout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ggoodman/mcp-gateway/catalog"
	"github.com/ggoodman/mcp-gateway/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "mcp-gateway:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	// Flags default to the environment so that an explicit flag wins.
	cfg, loadErr := config.Load()
	if cfg == nil {
		cfg = &config.Config{}
	}

	root := &cobra.Command{
		Use:           "mcp-gateway",
		Short:         "MCP gateway for Jira, Google Calendar and Notion",
		Version:       catalog.DefaultInfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if loadErr != nil {
				return loadErr
			}
			return cfg.Validate()
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVar(&cfg.DevMode, "dev", cfg.DevMode, "Use in-memory fake integrations and accept partial logins")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: json or text")
	pf.StringVar(&cfg.Redis.Addr, "redis-addr", cfg.Redis.Addr, "Redis address for session streams; empty keeps them in memory")

	root.AddCommand(newHTTPCmd(cfg))
	root.AddCommand(newStdioCmd(cfg))
	return root
}
