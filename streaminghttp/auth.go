package streaminghttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ggoodman/mcp-gateway/auth"
	"github.com/ggoodman/mcp-gateway/internal/wellknown"
)

// mountResourceMetadata serves the RFC 9728 document for endpoint at
// /.well-known/oauth-protected-resource{path}.
func (h *StreamingHTTPHandler) mountResourceMetadata(endpoint *url.URL, md auth.Metadata, name string) {
	h.prm = &wellknown.ProtectedResourceMetadata{
		Resource:               endpoint.String(),
		AuthorizationServers:   md.AuthorizationServers,
		JwksURI:                md.JWKSURL,
		ScopesSupported:        md.ScopesSupported,
		BearerMethodsSupported: []string{"header"},
		ResourceName:           name,
	}
	doc := url.URL{
		Scheme: endpoint.Scheme,
		Host:   endpoint.Host,
		Path:   "/.well-known/oauth-protected-resource" + strings.TrimSuffix(endpoint.Path, "/"),
	}
	h.prmURL = doc.String()
	h.mux.HandleFunc("GET "+doc.Path, h.serveResourceMetadata)
	h.mux.HandleFunc("OPTIONS "+doc.Path, func(w http.ResponseWriter, _ *http.Request) {
		hdr := w.Header()
		hdr.Set("Access-Control-Allow-Origin", "*")
		hdr.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		hdr.Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")
		hdr.Set("Access-Control-Max-Age", "600")
		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *StreamingHTTPHandler) serveResourceMetadata(w http.ResponseWriter, r *http.Request) {
	hdr := w.Header()
	hdr.Set("Access-Control-Allow-Origin", "*")
	hdr.Set("Vary", "Origin")
	hdr.Set("Content-Type", mediaJSON.String())
	if err := json.NewEncoder(w).Encode(h.prm); err != nil {
		h.log.WarnContext(r.Context(), "prm.write.fail", slog.String("err", err.Error()))
	}
}

type anonymous struct{}

func (anonymous) UserID() string   { return "" }
func (anonymous) Claims(any) error { return nil }

// challenge is a Bearer WWW-Authenticate value (RFC 6750 section 3).
type challenge struct {
	realm, resourceMetadata string
	code, description       string
}

func (c challenge) String() string {
	var params []string
	add := func(k, v string) {
		if v != "" {
			params = append(params, k+"="+strconv.Quote(v))
		}
	}
	add("realm", c.realm)
	add("resource_metadata", c.resourceMetadata)
	add("error", c.code)
	add("error_description", c.description)
	if len(params) == 0 {
		return "Bearer"
	}
	return "Bearer " + strings.Join(params, ", ")
}

// bearerToken extracts the token of an Authorization header. present is
// false when there is no header at all.
func bearerToken(header string) (tok string, present bool) {
	if header == "" {
		return "", false
	}
	scheme, rest, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(rest), true
}

// authenticate resolves the caller. On failure the challenge has been
// written and ok is false.
func (h *StreamingHTTPHandler) authenticate(ctx context.Context, w http.ResponseWriter, r *http.Request) (user auth.UserInfo, ok bool) {
	if h.auth == nil {
		return anonymous{}, true
	}
	deny := func(status int, code, description string) {
		c := challenge{realm: h.realm, resourceMetadata: h.prmURL, code: code, description: description}
		w.Header().Add("WWW-Authenticate", c.String())
		w.WriteHeader(status)
	}

	tok, present := bearerToken(r.Header.Get("Authorization"))
	switch {
	case !present:
		// No error code when no credentials were offered.
		h.log.InfoContext(ctx, "auth.missing")
		deny(http.StatusUnauthorized, "", "")
		return nil, false
	case tok == "":
		h.log.InfoContext(ctx, "auth.malformed")
		deny(http.StatusBadRequest, "invalid_request", "malformed bearer authorization header")
		return nil, false
	}

	user, err := h.auth.CheckAuthentication(ctx, tok)
	switch {
	case err == nil:
		return user, true
	case errors.Is(err, auth.ErrInsufficientScope):
		h.log.InfoContext(ctx, "auth.scope", slog.String("err", err.Error()))
		deny(http.StatusForbidden, "insufficient_scope", "token lacks a required scope")
	case errors.Is(err, auth.ErrUnauthorized):
		h.log.InfoContext(ctx, "auth.rejected", slog.String("err", err.Error()))
		deny(http.StatusUnauthorized, "invalid_token", "token validation failed")
	default:
		h.log.ErrorContext(ctx, "auth.error", slog.String("err", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
	}
	return nil, false
}
