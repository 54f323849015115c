package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ggoodman/mcp-gateway/auth"
	"github.com/ggoodman/mcp-gateway/internal/config"
	"github.com/ggoodman/mcp-gateway/streaminghttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newHTTPCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "http",
		Short: "Serve MCP over streamable HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHTTP(cmd.Context(), cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP listen address")
	f.StringVar(&cfg.PublicEndpoint, "public-endpoint", cfg.PublicEndpoint, "Externally visible URL of the MCP endpoint")
	f.StringVar(&cfg.MetricsPath, "metrics-path", cfg.MetricsPath, "Path serving Prometheus metrics; empty disables it")
	f.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Time allowed for in-flight requests on shutdown")
	f.StringVar(&cfg.Auth.Issuer, "auth-issuer", cfg.Auth.Issuer, "Require bearer tokens from this issuer")
	f.StringVar(&cfg.Auth.Audience, "auth-audience", cfg.Auth.Audience, "Audience bearer tokens must carry")
	f.StringVar(&cfg.Auth.JWKSURL, "auth-jwks-url", cfg.Auth.JWKSURL, "JWKS URL; skips OIDC discovery when set")
	return cmd
}

func runHTTP(ctx context.Context, cfg *config.Config) error {
	gw, err := newGateway(ctx, cfg)
	if err != nil {
		return err
	}
	defer gw.close()

	endpoint := cfg.Endpoint()
	opts := []streaminghttp.Option{
		streaminghttp.WithLogger(gw.log),
		streaminghttp.WithServerName("MCP Gateway"),
	}
	if cfg.AuthEnabled() {
		var jwtOpts []auth.JWTOption
		if cfg.Auth.JWKSURL != "" {
			jwtOpts = append(jwtOpts, auth.WithJWKSURL(cfg.Auth.JWKSURL))
		}
		a, err := auth.NewJWT(ctx, cfg.Auth.Issuer, cfg.Auth.Audience, jwtOpts...)
		if err != nil {
			return err
		}
		opts = append(opts, streaminghttp.WithAuthenticator(a))
		gw.log.InfoContext(ctx, "gateway.auth.enabled", slog.String("issuer", cfg.Auth.Issuer))
	}
	h, err := streaminghttp.New(endpoint, gw.engine, opts...)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/", h)
	if cfg.MetricsPath != "" {
		mux.Handle(cfg.MetricsPath, promhttp.HandlerFor(gw.registry, promhttp.HandlerOpts{Registry: gw.registry}))
	}
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		gw.log.InfoContext(gctx, "gateway.listen", slog.String("addr", cfg.ListenAddr), slog.String("endpoint", endpoint))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()

		gw.log.InfoContext(sctx, "gateway.shutdown", slog.Int("sessions", gw.sessions.Len()))
		// Open event streams keep GET connections busy until their session closes.
		if err := gw.sessions.CloseAll(sctx); err != nil {
			gw.log.WarnContext(sctx, "gateway.shutdown.sessions.fail", slog.String("err", err.Error()))
		}
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
