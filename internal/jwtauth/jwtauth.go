package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized indicates that the token failed validation (signature,
// issuer, audience, exp/nbf or subject).
var ErrUnauthorized = errors.New("jwtauth: unauthorized")

// ErrInsufficientScope indicates the token was valid but lacks a required scope.
var ErrInsufficientScope = errors.New("jwtauth: insufficient_scope")

// Config controls token validation.
type Config struct {
	Issuer string
	// Audience is the expected "aud" claim, usually the public MCP endpoint.
	Audience string
	// JWKSURL skips OIDC discovery when set.
	JWKSURL        string
	RequiredScopes []string
	AllowedAlgs    []string
	Leeway         time.Duration
}

// DefaultConfig returns a Config with safe defaults for algorithm and leeway.
func DefaultConfig() *Config {
	return &Config{
		AllowedAlgs: []string{"RS256"},
		Leeway:      60 * time.Second,
	}
}

// Claims are the validated claims of a token.
type Claims struct {
	Subject string
	Scopes  []string
	Raw     jwt.MapClaims
}

// Verifier validates bearer tokens against a JWKS that is refreshed in the
// background.
type Verifier struct {
	cfg     Config
	jwksURL string
	scopes  []string
	keys    keyfunc.Keyfunc
}

// New builds a Verifier. Without cfg.JWKSURL the issuer's OIDC discovery
// document supplies the key set location and advertised scopes.
func New(ctx context.Context, cfg *Config) (*Verifier, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if cfg.Audience == "" {
		return nil, errors.New("audience is required")
	}
	v := &Verifier{cfg: *cfg, jwksURL: cfg.JWKSURL}
	if len(v.cfg.AllowedAlgs) == 0 {
		v.cfg.AllowedAlgs = DefaultConfig().AllowedAlgs
	}

	if v.jwksURL == "" {
		provider, err := oidc.NewProvider(ctx, cfg.Issuer)
		if err != nil {
			return nil, fmt.Errorf("oidc discovery failed: %w", err)
		}
		var meta struct {
			JwksURI string   `json:"jwks_uri"`
			Scopes  []string `json:"scopes_supported"`
		}
		if err := provider.Claims(&meta); err != nil {
			return nil, fmt.Errorf("invalid discovery metadata: %w", err)
		}
		if meta.JwksURI == "" {
			return nil, errors.New("discovery incomplete: missing jwks_uri")
		}
		v.jwksURL = meta.JwksURI
		v.scopes = meta.Scopes
	}

	kf, err := keyfunc.NewDefaultCtx(ctx, []string{v.jwksURL})
	if err != nil {
		return nil, fmt.Errorf("jwks init failed: %w", err)
	}
	v.keys = kf
	return v, nil
}

func (v *Verifier) Issuer() string  { return v.cfg.Issuer }
func (v *Verifier) JWKSURL() string { return v.jwksURL }

// ScopesSupported returns the scopes advertised by discovery, falling back to
// the required scopes.
func (v *Verifier) ScopesSupported() []string {
	if len(v.scopes) > 0 {
		return slices.Clone(v.scopes)
	}
	return slices.Clone(v.cfg.RequiredScopes)
}

// Verify checks signature, issuer, audience, expiry and required scopes.
func (v *Verifier) Verify(ctx context.Context, tok string) (*Claims, error) {
	if tok == "" {
		return nil, fmt.Errorf("%w: empty token", ErrUnauthorized)
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods(v.cfg.AllowedAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithLeeway(v.cfg.Leeway),
	)
	parsed, err := parser.Parse(tok, v.keys.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrUnauthorized)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrUnauthorized)
	}

	scopeStr, _ := claims["scope"].(string)
	scopes := strings.Fields(scopeStr)
	for _, want := range v.cfg.RequiredScopes {
		if !slices.Contains(scopes, want) {
			return nil, fmt.Errorf("%w: missing %q", ErrInsufficientScope, want)
		}
	}
	return &Claims{Subject: sub, Scopes: scopes, Raw: claims}, nil
}
