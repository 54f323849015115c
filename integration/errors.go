package integration

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure surfaced to clients.
type Kind string

const (
	KindLoginRequired        Kind = "login_required"
	KindAuthenticationFailed Kind = "authentication_failed"
	KindNotFound             Kind = "not_found"
	KindValidationFailed     Kind = "validation_failed"
	KindBackend              Kind = "backend_error"
)

// Error is the uniform error type returned by adapters and catalog handlers.
//
// Two errors match under errors.Is when their kinds are equal and, if the
// target names an integration, the integrations are equal too. This allows
// checks such as errors.Is(err, &Error{Kind: KindNotFound}).
type Error struct {
	Kind        Kind
	Integration Name
	Message     string
	Err         error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	if t.Integration != "" && t.Integration != e.Integration {
		return false
	}
	return true
}

// KindOf returns the kind of the first *Error in err's chain. Errors outside
// the taxonomy are reported as KindBackend.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindBackend
}

// LoginRequired reports that the session has no credentials for n.
func LoginRequired(n Name) *Error {
	return &Error{
		Kind:        KindLoginRequired,
		Integration: n,
		Message:     fmt.Sprintf("not logged in to %s: call %s first", n.Title(), n.LoginTool()),
	}
}

// AuthenticationFailed reports that the backend rejected the stored credentials.
func AuthenticationFailed(n Name, msg string, err error) *Error {
	if msg == "" {
		msg = fmt.Sprintf("%s rejected the stored credentials", n.Title())
	}
	return &Error{Kind: KindAuthenticationFailed, Integration: n, Message: msg, Err: err}
}

// NotFound reports that the backend has no item with the given id.
func NotFound(n Name, id string) *Error {
	return &Error{Kind: KindNotFound, Integration: n, Message: fmt.Sprintf("%s item %q not found", n.Title(), id)}
}

// Validationf reports invalid caller input. It is raised before any backend
// call is made.
func Validationf(n Name, format string, args ...any) *Error {
	return &Error{Kind: KindValidationFailed, Integration: n, Message: fmt.Sprintf(format, args...)}
}

// Backend wraps any other backend failure.
func Backend(n Name, msg string, err error) *Error {
	if msg == "" {
		msg = fmt.Sprintf("%s request failed", n.Title())
	}
	return &Error{Kind: KindBackend, Integration: n, Message: msg, Err: err}
}

// FromHTTPStatus maps a non-2xx backend status code to the taxonomy. The
// body is carried as the message detail.
func FromHTTPStatus(n Name, status int, id string, body string) *Error {
	detail := fmt.Errorf("http %d: %s", status, body)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return AuthenticationFailed(n, "", detail)
	case http.StatusNotFound:
		if id == "" {
			return Backend(n, "", detail)
		}
		e := NotFound(n, id)
		e.Err = detail
		return e
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &Error{Kind: KindValidationFailed, Integration: n, Message: fmt.Sprintf("%s rejected the request", n.Title()), Err: detail}
	default:
		return Backend(n, "", detail)
	}
}
