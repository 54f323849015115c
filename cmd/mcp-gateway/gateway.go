package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ggoodman/mcp-gateway/catalog"
	"github.com/ggoodman/mcp-gateway/credentials"
	"github.com/ggoodman/mcp-gateway/integration"
	"github.com/ggoodman/mcp-gateway/integration/fake"
	"github.com/ggoodman/mcp-gateway/integration/gcal"
	"github.com/ggoodman/mcp-gateway/integration/jira"
	"github.com/ggoodman/mcp-gateway/integration/notion"
	"github.com/ggoodman/mcp-gateway/internal/config"
	"github.com/ggoodman/mcp-gateway/internal/engine"
	"github.com/ggoodman/mcp-gateway/internal/metrics"
	"github.com/ggoodman/mcp-gateway/sessions"
	"github.com/ggoodman/mcp-gateway/sessions/memoryhost"
	"github.com/ggoodman/mcp-gateway/sessions/redishost"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// gateway holds the process-wide values shared by both transports.
type gateway struct {
	log      *slog.Logger
	registry *prometheus.Registry
	sessions *sessions.Manager
	engine   *engine.Engine
	close    func() error
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	lvl, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
}

func backends(devMode bool) integration.Backends {
	if devMode {
		return fake.New().Backends()
	}
	return integration.Backends{
		IssueTracker: jira.New,
		Calendar:     gcal.New,
		Docs:         notion.New,
	}
}

func newGateway(ctx context.Context, cfg *config.Config) (*gateway, error) {
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	var (
		host     sessions.SessionHost
		closeFns []func() error
	)
	if cfg.Redis.Addr != "" {
		rh, err := redishost.New(redishost.Config{RedisAddr: cfg.Redis.Addr, KeyPrefix: cfg.Redis.KeyPrefix})
		if err != nil {
			return nil, err
		}
		host = rh
		closeFns = append(closeFns, rh.Close)
		log.InfoContext(ctx, "gateway.session_host", slog.String("kind", "redis"), slog.String("addr", cfg.Redis.Addr))
	} else {
		host = memoryhost.New()
		log.InfoContext(ctx, "gateway.session_host", slog.String("kind", "memory"))
	}

	srv, err := catalog.New(catalog.Options{
		Backends: backends(cfg.DevMode),
		Defaults: cfg.Defaults(),
		DevMode:  cfg.DevMode,
		Logger:   log,
		Observer: m,
	})
	if err != nil {
		return nil, err
	}
	if cfg.DevMode {
		log.WarnContext(ctx, "gateway.dev_mode", slog.String("backends", "fake"))
	}

	mgr := sessions.NewManager(host, credentials.NewStore(), sessions.WithLogger(log), sessions.WithObserver(m))
	eng := engine.New(srv, mgr, engine.WithLogger(log), engine.WithObserver(m))

	return &gateway{
		log:      log,
		registry: reg,
		sessions: mgr,
		engine:   eng,
		close: func() error {
			var first error
			for _, fn := range closeFns {
				if err := fn(); err != nil && first == nil {
					first = err
				}
			}
			return first
		},
	}, nil
}
