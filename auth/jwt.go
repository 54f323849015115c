package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ggoodman/mcp-gateway/internal/jwtauth"
)

// JWTOption configures optional aspects of NewJWT.
type JWTOption func(*jwtauth.Config)

// WithJWKSURL skips OIDC discovery and fetches signing keys from url.
func WithJWKSURL(url string) JWTOption {
	return func(c *jwtauth.Config) { c.JWKSURL = url }
}

// WithRequiredScopes requires all of the provided scopes to be present in the
// space-delimited "scope" claim.
func WithRequiredScopes(scopes ...string) JWTOption {
	return func(c *jwtauth.Config) {
		c.RequiredScopes = append([]string(nil), scopes...)
	}
}

// WithAllowedAlgs restricts allowed JWS algorithms. "none" is never allowed.
// Defaults to ["RS256"].
func WithAllowedAlgs(algs ...string) JWTOption {
	return func(c *jwtauth.Config) {
		c.AllowedAlgs = append([]string(nil), algs...)
	}
}

// WithLeeway sets clock skew tolerance for time-based claims.
func WithLeeway(d time.Duration) JWTOption {
	return func(c *jwtauth.Config) { c.Leeway = d }
}

// JWTAuthenticator validates JWT access tokens for one issuer and audience.
type JWTAuthenticator struct {
	v *jwtauth.Verifier
}

var _ Authenticator = (*JWTAuthenticator)(nil)

// NewJWT returns an Authenticator for tokens from issuer carrying audience.
func NewJWT(ctx context.Context, issuer, audience string, opts ...JWTOption) (*JWTAuthenticator, error) {
	cfg := jwtauth.DefaultConfig()
	cfg.Issuer = issuer
	cfg.Audience = audience
	for _, opt := range opts {
		opt(cfg)
	}
	v, err := jwtauth.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &JWTAuthenticator{v: v}, nil
}

func (a *JWTAuthenticator) CheckAuthentication(ctx context.Context, tok string) (UserInfo, error) {
	c, err := a.v.Verify(ctx, tok)
	if err != nil {
		if errors.Is(err, jwtauth.ErrInsufficientScope) {
			return nil, errors.Join(ErrInsufficientScope, err)
		}
		return nil, errors.Join(ErrUnauthorized, err)
	}
	return claimsUser{c: c}, nil
}

// Metadata describes where clients obtain tokens, for the protected
// resource metadata document.
func (a *JWTAuthenticator) Metadata() Metadata {
	return Metadata{
		AuthorizationServers: []string{a.v.Issuer()},
		JWKSURL:              a.v.JWKSURL(),
		ScopesSupported:      a.v.ScopesSupported(),
	}
}

type claimsUser struct{ c *jwtauth.Claims }

func (u claimsUser) UserID() string { return u.c.Subject }

func (u claimsUser) Claims(ref any) error {
	b, err := json.Marshal(u.c.Raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ref)
}
