package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"GATEWAY_LISTEN_ADDR", "GATEWAY_LOG_LEVEL", "GATEWAY_LOG_FORMAT", "GATEWAY_METRICS_PATH", "GATEWAY_REDIS_ADDR", "GATEWAY_AUTH_ISSUER", "GATEWAY_AUTH_AUDIENCE", "GATEWAY_DEV_MODE", "GATEWAY_SHUTDOWN_TIMEOUT"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.LogFormat != "json" || cfg.MetricsPath != "/metrics" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.DevMode || cfg.AuthEnabled() || cfg.Redis.Addr != "" {
		t.Fatalf("optional features enabled by default: %+v", cfg)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("shutdown timeout = %v", cfg.ShutdownTimeout)
	}
	if lvl, _ := cfg.SlogLevel(); lvl != slog.LevelInfo {
		t.Fatalf("level = %v", lvl)
	}
	if got, want := cfg.Endpoint(), "http://localhost:8080/mcp"; got != want {
		t.Fatalf("Endpoint() = %q, want %q", got, want)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("GATEWAY_LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("GATEWAY_PUBLIC_ENDPOINT", "https://mcp.example.com/gateway")
	t.Setenv("GATEWAY_DEV_MODE", "true")
	t.Setenv("GATEWAY_LOG_LEVEL", "debug")
	t.Setenv("GATEWAY_REDIS_ADDR", "redis:6379")
	t.Setenv("GATEWAY_AUTH_ISSUER", "https://issuer.example.com")
	t.Setenv("GATEWAY_AUTH_AUDIENCE", "mcp")
	t.Setenv("JIRA_HOST", "acme.atlassian.net")
	t.Setenv("GOOGLE_REFRESH_TOKEN", "refresh")
	t.Setenv("NOTION_API_KEY", "secret_x")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !cfg.DevMode || !cfg.AuthEnabled() || cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.Redis.KeyPrefix != "mcp-gateway:sessions:" {
		t.Fatalf("key prefix = %q", cfg.Redis.KeyPrefix)
	}
	if got := cfg.Endpoint(); got != "https://mcp.example.com/gateway" {
		t.Fatalf("Endpoint() = %q", got)
	}
	if lvl, _ := cfg.SlogLevel(); lvl != slog.LevelDebug {
		t.Fatalf("level = %v", lvl)
	}

	d := cfg.Defaults()
	if d.IssueTracker.Host != "acme.atlassian.net" || d.Calendar.RefreshToken != "refresh" || d.Docs.APIKey != "secret_x" {
		t.Fatalf("defaults = %+v", d)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{ListenAddr: ":8080", LogLevel: "info", LogFormat: "text", MetricsPath: "/metrics"}
	}
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
		{"format", func(c *Config) { c.LogFormat = "xml" }, "log format"},
		{"metrics path", func(c *Config) { c.MetricsPath = "metrics" }, "metrics path"},
		{"issuer without audience", func(c *Config) { c.Auth.Issuer = "https://issuer" }, "set together"},
		{"jwks without issuer", func(c *Config) { c.Auth.JWKSURL = "https://issuer/jwks" }, "requires"},
		{"relative endpoint", func(c *Config) { c.PublicEndpoint = "/mcp" }, "public endpoint"},
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("base config: %v", err)
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestEndpointFromListenAddr(t *testing.T) {
	cases := map[string]string{
		":8080":          "http://localhost:8080/mcp",
		"0.0.0.0:80":     "http://localhost:80/mcp",
		"10.0.0.5:8443":  "http://10.0.0.5:8443/mcp",
		"[::]:9000":      "http://localhost:9000/mcp",
		"not-an-address": "http://localhost/mcp",
	}
	for addr, want := range cases {
		c := &Config{ListenAddr: addr}
		if got := c.Endpoint(); got != want {
			t.Errorf("Endpoint(%q) = %q, want %q", addr, got, want)
		}
	}
}
