package stdio

import (
	"os/user"
)

// UserProvider provides the user id that owns the stdio session. No bearer
// token is involved; the peer is whoever started the process.
type UserProvider interface {
	CurrentUserID() (string, error)
}

// OSUserProvider resolves the user ID using the operating system's current user.
// The returned ID is user.Username when available; falling back to user.Uid.
type OSUserProvider struct{}

func (OSUserProvider) CurrentUserID() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	if u.Username != "" {
		return u.Username, nil
	}
	return u.Uid, nil
}

// StaticUser is a UserProvider returning a fixed id.
type StaticUser string

func (u StaticUser) CurrentUserID() (string, error) { return string(u), nil }
