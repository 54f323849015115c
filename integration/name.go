package integration

import "fmt"

// Name identifies one of the supported integrations.
type Name string

const (
	IssueTracker Name = "issuetracker"
	Calendar     Name = "calendar"
	Docs         Name = "docs"
)

// All lists every integration in registration order.
var All = []Name{IssueTracker, Calendar, Docs}

// Title is the human readable product label used in messages.
func (n Name) Title() string {
	switch n {
	case IssueTracker:
		return "Jira"
	case Calendar:
		return "Google Calendar"
	case Docs:
		return "Notion"
	default:
		return string(n)
	}
}

// LoginTool is the name of the tool a client calls to store credentials for n.
func (n Name) LoginTool() string {
	return "login-" + string(n)
}

// Valid reports whether n is one of the known integrations.
func (n Name) Valid() bool {
	switch n {
	case IssueTracker, Calendar, Docs:
		return true
	}
	return false
}

func (n Name) String() string { return string(n) }

// ParseName converts s to a Name, rejecting unknown values.
func ParseName(s string) (Name, error) {
	n := Name(s)
	if !n.Valid() {
		return "", fmt.Errorf("unknown integration %q", s)
	}
	return n, nil
}
