// Package integration defines the gateway's view of the three external
// productivity backends: an issue tracker, a calendar service and a document
// workspace.
//
// The package is deliberately free of transport and session concerns. It
// describes:
//
//   - the credential bundle each integration needs (IssueTrackerCredentials,
//     CalendarCredentials, DocsCredentials),
//   - the normalized records adapters return (Issue, Event, Document),
//   - the adapter contracts (IssueTrackerAdapter, CalendarAdapter, DocumentStore) and the factories
//     that build an adapter from a bundle,
//   - the uniform error taxonomy (*Error with a Kind) every adapter failure
//     is translated into.
//
// Concrete adapters live in subpackages: jira, gcal and notion talk to the
// real services over HTTP, while fake provides in-memory backends for
// development mode and tests.
//
// # Backends
//
// Backends groups one optional factory per integration. A nil factory means
// the integration is not configured; the catalog consults Available once at
// startup and only registers the tools and resources of configured
// integrations.
//
//	backends := integration.Backends{
//	    IssueTracker: jira.New,
//	    Calendar:     gcal.New,
//	    Docs:         notion.New,
//	}
package integration
