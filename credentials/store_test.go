package credentials

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ggoodman/mcp-gateway/integration"
)

func TestLoginOverwrites(t *testing.T) {
	s := NewStore()
	a := integration.IssueTrackerCredentials{Host: "a.example", Username: "a", APIToken: "ta"}
	b := integration.IssueTrackerCredentials{Host: "b.example", Username: "b", APIToken: "tb"}

	confA, err := s.Login("s1", a)
	if err != nil {
		t.Fatal(err)
	}
	confB, err := s.Login("s1", b)
	if err != nil {
		t.Fatal(err)
	}
	if confA == confB {
		t.Fatalf("different bundles produced the same confirmation")
	}

	got, ok := s.Get("s1", integration.IssueTracker)
	if !ok {
		t.Fatalf("bundle missing")
	}
	if got != b {
		t.Fatalf("want %+v, got %+v", b, got)
	}
}

func TestConfirmationIsDeterministic(t *testing.T) {
	b := integration.DocsCredentials{APIKey: "secret"}
	c1, _ := Confirmation(b)
	c2, _ := Confirmation(b)
	if c1 != c2 || c1 == "" {
		t.Fatalf("want stable non-empty confirmation, got %q and %q", c1, c2)
	}
	if len(c1) != 32 {
		t.Fatalf("want 32 hex chars, got %d", len(c1))
	}
}

func TestGetIsScopedBySessionAndIntegration(t *testing.T) {
	s := NewStore()
	_, _ = s.Login("s1", integration.DocsCredentials{APIKey: "k1"})

	if _, ok := s.Get("s2", integration.Docs); ok {
		t.Fatalf("bundle leaked across sessions")
	}
	if _, ok := s.Get("s1", integration.Calendar); ok {
		t.Fatalf("bundle leaked across integrations")
	}
	if got := s.Integrations("s1"); len(got) != 1 || got[0] != integration.Docs {
		t.Fatalf("unexpected integrations %v", got)
	}
}

func TestDrop(t *testing.T) {
	s := NewStore()
	_, _ = s.Login("s1", integration.DocsCredentials{APIKey: "k1"})
	_, _ = s.Login("s1", integration.CalendarCredentials{ClientID: "c", ClientSecret: "s", RedirectURI: "r"})
	s.Drop("s1")
	if _, ok := s.Get("s1", integration.Docs); ok {
		t.Fatalf("bundle survived drop")
	}
	if s.Sessions() != 0 {
		t.Fatalf("want 0 sessions, got %d", s.Sessions())
	}
}

func TestLoginRejectsEmptySession(t *testing.T) {
	if _, err := NewStore().Login("", integration.DocsCredentials{APIKey: "k"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestConcurrentSessionsStayIsolated(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sid := fmt.Sprintf("s%d", i)
			key := fmt.Sprintf("k%d", i)
			for j := 0; j < 50; j++ {
				if _, err := s.Login(sid, integration.DocsCredentials{APIKey: key}); err != nil {
					t.Error(err)
					return
				}
				b, ok := s.Get(sid, integration.Docs)
				if !ok || b.(integration.DocsCredentials).APIKey != key {
					t.Errorf("session %s observed %+v", sid, b)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
