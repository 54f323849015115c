// Package auth provides optional bearer authentication for the streaming
// HTTP transport. When enabled, every request must carry a JWT access token
// issued by an external OAuth 2.0 / OIDC authorization server, and sessions
// are bound to the token's subject.
//
// An Authenticator validates a bearer token string and returns a UserInfo.
// The transport extracts the token from the request and maps the sentinel
// errors to HTTP challenges.
//
// # JWT Authentication
//
// NewJWT validates tokens against the issuer's key set. The key set location
// comes from OIDC discovery unless a JWKS URL is configured explicitly:
//
//	authn, err := auth.NewJWT(ctx, "https://issuer.example", "https://gateway.example/mcp",
//	    auth.WithRequiredScopes("gateway:use"),
//	)
//	if err != nil { log.Fatal(err) }
//
//	ui, err := authn.CheckAuthentication(r.Context(), bearerToken)
//	if errors.Is(err, auth.ErrUnauthorized) { /* 401 */ }
//	if errors.Is(err, auth.ErrInsufficientScope) { /* 403 */ }
//
// By default only RS256 is accepted with 60s of clock skew. Use
// WithAllowedAlgs and WithLeeway to change that.
//
// # Errors
//
// ErrUnauthorized signals the token is invalid (signature, expiry, audience
// and so on). ErrInsufficientScope signals successful authentication but
// missing required scopes.
package auth
