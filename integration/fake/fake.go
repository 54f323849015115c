// Package fake provides in-memory integration backends. They serve the
// gateway's development mode and double as test doubles: every adapter
// construction and every call is recorded along with the credential bundle
// that was used.
package fake

import (
	"sync"

	"github.com/ggoodman/mcp-gateway/integration"
)

// Call records one adapter operation.
type Call struct {
	Integration integration.Name
	Op          string
	Target      string
	Creds       integration.Bundle
}

// Set bundles one fake backend per integration together with the shared
// call log.
type Set struct {
	Tracker  *IssueTracker
	Calendar *Calendar
	Docs     *Docs

	mu     sync.Mutex
	built  map[integration.Name]int
	bundle map[integration.Name][]integration.Bundle
	calls  []Call
}

// New returns an empty Set.
func New() *Set {
	s := &Set{
		built:  make(map[integration.Name]int),
		bundle: make(map[integration.Name][]integration.Bundle),
	}
	s.Tracker = newIssueTracker(s)
	s.Calendar = newCalendar(s)
	s.Docs = newDocs(s)
	return s
}

// Backends exposes the set as adapter factories.
func (s *Set) Backends() integration.Backends {
	return integration.Backends{
		IssueTracker: func(c integration.IssueTrackerCredentials) (integration.IssueTrackerAdapter, error) {
			s.constructed(c)
			return &boundTracker{t: s.Tracker, creds: c}, nil
		},
		Calendar: func(c integration.CalendarCredentials) (integration.CalendarAdapter, error) {
			s.constructed(c)
			return &boundCalendar{c: s.Calendar, creds: c}, nil
		},
		Docs: func(c integration.DocsCredentials) (integration.DocumentStore, error) {
			s.constructed(c)
			return &boundDocs{d: s.Docs, creds: c}, nil
		},
	}
}

// Constructions returns how many adapters were built for n.
func (s *Set) Constructions(n integration.Name) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.built[n]
}

// Bundles returns the bundles adapters for n were built from, in order.
func (s *Set) Bundles(n integration.Name) []integration.Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]integration.Bundle(nil), s.bundle[n]...)
}

// Calls returns a snapshot of the call log.
func (s *Set) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo filters the call log by operation name.
func (s *Set) CallsTo(op string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (s *Set) constructed(b integration.Bundle) {
	s.mu.Lock()
	s.built[b.Integration()]++
	s.bundle[b.Integration()] = append(s.bundle[b.Integration()], b)
	s.mu.Unlock()
}

func (s *Set) record(b integration.Bundle, op, target string) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Integration: b.Integration(), Op: op, Target: target, Creds: b})
	s.mu.Unlock()
}
