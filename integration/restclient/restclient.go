// Package restclient is the small JSON-over-HTTP helper shared by the
// integration adapters. It owns request construction and the translation of
// transport failures and non-2xx responses into integration errors.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ggoodman/mcp-gateway/integration"
)

const maxErrorBody = 2048

// Client issues JSON requests against one backend.
type Client struct {
	Integration integration.Name
	BaseURL     *url.URL
	HTTP        *http.Client
	// Header is applied to every request.
	Header http.Header
}

// New parses base and returns a client for n. A base without a scheme is
// treated as https.
func New(n integration.Name, base string, hc *http.Client) (*Client, error) {
	u, err := ParseBase(base)
	if err != nil {
		return nil, integration.Validationf(n, "invalid %s base url %q: %v", n.Title(), base, err)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{Integration: n, BaseURL: u, HTTP: hc, Header: make(http.Header)}, nil
}

// ParseBase normalizes a host or URL into a base URL ending in a slash.
func ParseBase(base string) (*url.URL, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return nil, errors.New("empty")
	}
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, errors.New("missing host")
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// Request describes one call. Path is resolved against BaseURL. ItemID,
// when set, turns a 404 into a NotFound error naming that item.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	ItemID string
}

// Do performs req and decodes a JSON response body into out when out is
// non-nil.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	ref, err := url.Parse(strings.TrimPrefix(req.Path, "/"))
	if err != nil {
		return integration.Validationf(c.Integration, "invalid request path %q", req.Path)
	}
	u := c.BaseURL.ResolveReference(ref)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return integration.Backend(c.Integration, "encode request", err)
		}
		body = bytes.NewReader(b)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	hreq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return integration.Backend(c.Integration, "build request", err)
	}
	for k, vs := range c.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	hreq.Header.Set("Accept", "application/json")
	if body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}

	res, err := c.HTTP.Do(hreq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return integration.Backend(c.Integration, fmt.Sprintf("%s unreachable", c.Integration.Title()), err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return integration.FromHTTPStatus(c.Integration, res.StatusCode, req.ItemID, strings.TrimSpace(string(b)))
	}

	if out == nil || res.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return integration.Backend(c.Integration, "decode response", err)
	}
	return nil
}
