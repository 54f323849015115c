// Package config loads the gateway's process configuration from the
// environment. Command-line flags are applied on top by cmd/mcp-gateway.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/ggoodman/mcp-gateway/catalog"
	"github.com/ggoodman/mcp-gateway/integration"
	"github.com/joeshaw/envdecode"
)

// Config is the full process configuration.
type Config struct {
	// ListenAddr is the HTTP listen address. ENV: GATEWAY_LISTEN_ADDR
	ListenAddr string `env:"GATEWAY_LISTEN_ADDR,default=:8080"`
	// PublicEndpoint is the externally visible URL of the MCP endpoint.
	// When empty it is derived from ListenAddr. ENV: GATEWAY_PUBLIC_ENDPOINT
	PublicEndpoint string `env:"GATEWAY_PUBLIC_ENDPOINT"`
	// DevMode swaps the real integrations for in-memory fakes. ENV: GATEWAY_DEV_MODE
	DevMode bool `env:"GATEWAY_DEV_MODE,default=false"`

	LogLevel  string `env:"GATEWAY_LOG_LEVEL,default=info"`
	LogFormat string `env:"GATEWAY_LOG_FORMAT,default=json"`

	// MetricsPath serves Prometheus metrics on the HTTP listener. Empty disables it.
	MetricsPath string `env:"GATEWAY_METRICS_PATH,default=/metrics"`

	ShutdownTimeout time.Duration `env:"GATEWAY_SHUTDOWN_TIMEOUT,default=10s"`

	Redis       RedisConfig
	Auth        AuthConfig
	Credentials CredentialDefaults
}

// RedisConfig selects the Redis session host. An empty Addr keeps session
// streams in process memory.
type RedisConfig struct {
	Addr      string `env:"GATEWAY_REDIS_ADDR"`
	KeyPrefix string `env:"GATEWAY_REDIS_KEY_PREFIX,default=mcp-gateway:sessions:"`
}

// AuthConfig enables bearer authentication on the HTTP transport when both
// Issuer and Audience are set.
type AuthConfig struct {
	Issuer   string `env:"GATEWAY_AUTH_ISSUER"`
	Audience string `env:"GATEWAY_AUTH_AUDIENCE"`
	JWKSURL  string `env:"GATEWAY_AUTH_JWKS_URL"`
}

// CredentialDefaults fill fields omitted from login tool calls.
type CredentialDefaults struct {
	JiraHost           string `env:"JIRA_HOST"`
	JiraUsername       string `env:"JIRA_USERNAME"`
	JiraAPIToken       string `env:"JIRA_API_TOKEN"`
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI  string `env:"GOOGLE_REDIRECT_URI"`
	GoogleRefreshToken string `env:"GOOGLE_REFRESH_TOKEN"`
	NotionAPIKey       string `env:"NOTION_API_KEY"`
}

// Load decodes the environment into a Config. Variables that are not set
// take their defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("config: log format %q must be json or text", c.LogFormat)
	}
	if c.MetricsPath != "" && !strings.HasPrefix(c.MetricsPath, "/") {
		return fmt.Errorf("config: metrics path %q must start with /", c.MetricsPath)
	}
	if (c.Auth.Issuer == "") != (c.Auth.Audience == "") {
		return errors.New("config: GATEWAY_AUTH_ISSUER and GATEWAY_AUTH_AUDIENCE must be set together")
	}
	if c.Auth.JWKSURL != "" && c.Auth.Issuer == "" {
		return errors.New("config: GATEWAY_AUTH_JWKS_URL requires GATEWAY_AUTH_ISSUER")
	}
	if c.PublicEndpoint != "" {
		u, err := url.Parse(c.PublicEndpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config: public endpoint %q must be an absolute http(s) URL", c.PublicEndpoint)
		}
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

// AuthEnabled reports whether bearer authentication is configured.
func (c *Config) AuthEnabled() bool {
	return c.Auth.Issuer != "" && c.Auth.Audience != ""
}

// Endpoint returns PublicEndpoint, or http://<listen host>/mcp when unset.
func (c *Config) Endpoint() string {
	if c.PublicEndpoint != "" {
		return c.PublicEndpoint
	}
	host, port, err := net.SplitHostPort(c.ListenAddr)
	if err != nil {
		return "http://localhost/mcp"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return (&url.URL{Scheme: "http", Host: net.JoinHostPort(host, port), Path: "/mcp"}).String()
}

// Defaults converts the credential defaults for the catalog.
func (c *Config) Defaults() catalog.Defaults {
	d := c.Credentials
	return catalog.Defaults{
		IssueTracker: integration.IssueTrackerCredentials{
			Host:     d.JiraHost,
			Username: d.JiraUsername,
			APIToken: d.JiraAPIToken,
		},
		Calendar: integration.CalendarCredentials{
			ClientID:     d.GoogleClientID,
			ClientSecret: d.GoogleClientSecret,
			RedirectURI:  d.GoogleRedirectURI,
			RefreshToken: d.GoogleRefreshToken,
		},
		Docs: integration.DocsCredentials{APIKey: d.NotionAPIKey},
	}
}
