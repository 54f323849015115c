// Package authtest provides an in-memory Authenticator for transport tests.
package authtest

import (
	"context"
	"fmt"

	"github.com/ggoodman/mcp-gateway/auth"
)

// Tokens maps opaque bearer tokens to user ids. Unknown tokens are rejected
// with auth.ErrUnauthorized.
type Tokens map[string]string

func (t Tokens) CheckAuthentication(_ context.Context, tok string) (auth.UserInfo, error) {
	userID, ok := t[tok]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token", auth.ErrUnauthorized)
	}
	return user(userID), nil
}

type user string

func (u user) UserID() string       { return string(u) }
func (u user) Claims(ref any) error { return nil }
