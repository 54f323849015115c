// Package gcal adapts the Google Calendar v3 API to integration.CalendarAdapter.
//
// Access tokens are minted from the session's OAuth2 client registration and
// refresh token. A bundle without a refresh token cannot call the API; the
// adapter then fails with an authentication error carrying the consent URL
// the user must visit to obtain one.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ggoodman/mcp-gateway/integration"
	"github.com/ggoodman/mcp-gateway/integration/restclient"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	DefaultBaseURL = "https://www.googleapis.com/calendar/v3/"
	CalendarScope  = "https://www.googleapis.com/auth/calendar"

	maxResults = 50
)

var _ integration.CalendarFactory = New

// Options override the endpoints and transport, mainly for tests.
type Options struct {
	BaseURL    string
	Endpoint   *oauth2.Endpoint
	HTTPClient *http.Client
	Now        func() time.Time
}

// Calendar reads and writes the primary calendar of one Google account.
type Calendar struct {
	rc  *restclient.Client
	ts  oauth2.TokenSource
	now func() time.Time
}

// New builds a Calendar against the public Google endpoints.
func New(creds integration.CalendarCredentials) (integration.CalendarAdapter, error) {
	return NewWithOptions(creds, Options{})
}

// OAuthConfig returns the OAuth2 client configuration for creds.
func OAuthConfig(creds integration.CalendarCredentials, ep *oauth2.Endpoint) *oauth2.Config {
	endpoint := endpoints.Google
	if ep != nil {
		endpoint = *ep
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURI,
		Endpoint:     endpoint,
		Scopes:       []string{CalendarScope},
	}
}

// ConsentURL is the page where the user grants offline calendar access.
func ConsentURL(creds integration.CalendarCredentials, ep *oauth2.Endpoint) string {
	return OAuthConfig(creds, ep).AuthCodeURL("mcp-gateway", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// NewWithOptions is New with overridable endpoints.
func NewWithOptions(creds integration.CalendarCredentials, opts Options) (*Calendar, error) {
	if m := creds.Missing(); len(m) > 0 {
		return nil, integration.Validationf(integration.Calendar, "missing credential fields: %v", m)
	}
	if creds.RefreshToken == "" {
		return nil, integration.AuthenticationFailed(integration.Calendar,
			fmt.Sprintf("no refresh token stored; authorize calendar access at %s and log in again with the resulting refreshToken",
				ConsentURL(creds, opts.Endpoint)), nil)
	}

	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}

	// The oauth2 package reads the token endpoint client from the context.
	tokenCtx := context.Background()
	if opts.HTTPClient != nil {
		tokenCtx = context.WithValue(tokenCtx, oauth2.HTTPClient, opts.HTTPClient)
	}
	ts := OAuthConfig(creds, opts.Endpoint).TokenSource(tokenCtx, &oauth2.Token{RefreshToken: creds.RefreshToken})

	rc, err := restclient.New(integration.Calendar, base, oauth2.NewClient(tokenCtx, ts))
	if err != nil {
		return nil, err
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Calendar{rc: rc, ts: ts, now: now}, nil
}

// authorize refreshes the access token up front so that a rejected refresh
// token surfaces as an authentication failure rather than a transport error.
func (c *Calendar) authorize() error {
	if _, err := c.ts.Token(); err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return integration.AuthenticationFailed(integration.Calendar, "Google rejected the refresh token", err)
		}
		return integration.Backend(integration.Calendar, "token refresh failed", err)
	}
	return nil
}

type eventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

func (t eventTime) parse() time.Time {
	if t.DateTime != "" {
		if ts, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return ts
		}
	}
	if t.Date != "" {
		if ts, err := time.Parse(time.DateOnly, t.Date); err == nil {
			return ts
		}
	}
	return time.Time{}
}

type attendee struct {
	Email string `json:"email"`
}

type eventDTO struct {
	ID          string     `json:"id,omitempty"`
	Status      string     `json:"status,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	HTMLLink    string     `json:"htmlLink,omitempty"`
	HangoutLink string     `json:"hangoutLink,omitempty"`
	Start       eventTime  `json:"start"`
	End         eventTime  `json:"end"`
	Attendees   []attendee `json:"attendees,omitempty"`
}

func (d *eventDTO) toEvent() integration.Event {
	ev := integration.Event{
		ID:          d.ID,
		Summary:     d.Summary,
		Description: d.Description,
		Start:       d.Start.parse(),
		End:         d.End.parse(),
		Location:    d.Location,
		Link:        d.HTMLLink,
		MeetLink:    d.HangoutLink,
		Status:      d.Status,
	}
	for _, a := range d.Attendees {
		ev.Attendees = append(ev.Attendees, a.Email)
	}
	return ev
}

func (c *Calendar) GetEvent(ctx context.Context, id string) (*integration.Event, error) {
	if err := c.authorize(); err != nil {
		return nil, err
	}
	var dto eventDTO
	if err := c.rc.Do(ctx, restclient.Request{Path: "calendars/primary/events/" + url.PathEscape(id), ItemID: id}, &dto); err != nil {
		return nil, err
	}
	ev := dto.toEvent()
	return &ev, nil
}

// ListEvents returns upcoming events in start order.
func (c *Calendar) ListEvents(ctx context.Context) ([]integration.Event, error) {
	if err := c.authorize(); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("timeMin", c.now().UTC().Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	q.Set("maxResults", strconv.Itoa(maxResults))

	var res struct {
		Items []eventDTO `json:"items"`
	}
	if err := c.rc.Do(ctx, restclient.Request{Path: "calendars/primary/events", Query: q}, &res); err != nil {
		return nil, err
	}
	out := make([]integration.Event, 0, len(res.Items))
	for i := range res.Items {
		out = append(out, res.Items[i].toEvent())
	}
	return out, nil
}

// CreateEvent inserts an event with a Meet conference attached.
func (c *Calendar) CreateEvent(ctx context.Context, d integration.EventDraft) (*integration.Event, error) {
	if err := c.authorize(); err != nil {
		return nil, err
	}
	body := map[string]any{
		"summary":     d.Summary,
		"description": d.Description,
		"start":       eventTime{DateTime: d.Start.Format(time.RFC3339)},
		"end":         eventTime{DateTime: d.End.Format(time.RFC3339)},
		"conferenceData": map[string]any{
			"createRequest": map[string]any{
				"requestId":             uuid.NewString(),
				"conferenceSolutionKey": map[string]string{"type": "hangoutsMeet"},
			},
		},
	}
	if len(d.Attendees) > 0 {
		as := make([]attendee, 0, len(d.Attendees))
		for _, a := range d.Attendees {
			as = append(as, attendee{Email: a})
		}
		body["attendees"] = as
	}

	q := url.Values{}
	q.Set("conferenceDataVersion", "1")
	q.Set("sendUpdates", "all")

	var dto eventDTO
	if err := c.rc.Do(ctx, restclient.Request{
		Method: http.MethodPost,
		Path:   "calendars/primary/events",
		Query:  q,
		Body:   body,
	}, &dto); err != nil {
		return nil, err
	}
	ev := dto.toEvent()
	return &ev, nil
}
