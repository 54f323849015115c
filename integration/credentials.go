package integration

import "strings"

// Bundle is the set of secrets one session supplied for one integration.
type Bundle interface {
	Integration() Name
	// Missing lists the names of required fields that are empty.
	Missing() []string
}

// IssueTrackerCredentials authenticate against a Jira-compatible tracker
// using basic auth with an API token.
type IssueTrackerCredentials struct {
	Host     string `json:"host"`
	Username string `json:"username"`
	APIToken string `json:"apiToken"`
}

func (IssueTrackerCredentials) Integration() Name { return IssueTracker }

func (c IssueTrackerCredentials) Missing() []string {
	return missing(
		field{"host", c.Host},
		field{"username", c.Username},
		field{"apiToken", c.APIToken},
	)
}

// CalendarCredentials hold an OAuth2 client registration and, once consent
// has been granted, a refresh token.
type CalendarCredentials struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirectUri"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

func (CalendarCredentials) Integration() Name { return Calendar }

func (c CalendarCredentials) Missing() []string {
	return missing(
		field{"clientId", c.ClientID},
		field{"clientSecret", c.ClientSecret},
		field{"redirectUri", c.RedirectURI},
	)
}

// DocsCredentials hold a Notion integration secret.
type DocsCredentials struct {
	APIKey string `json:"apiKey"`
}

func (DocsCredentials) Integration() Name { return Docs }

func (c DocsCredentials) Missing() []string {
	return missing(field{"apiKey", c.APIKey})
}

type field struct {
	name, value string
}

func missing(fields ...field) []string {
	var out []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			out = append(out, f.name)
		}
	}
	return out
}
