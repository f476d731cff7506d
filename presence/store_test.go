package presence_test

import (
	"sync"
	"testing"

	"go.linklocal.dev/llxmpp/presence"
)

type recording struct {
	mu      sync.Mutex
	added   []string
	updated []string
	removed []string
}

func (r *recording) PresenceNew(rec *presence.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, rec.ServiceName)
}
func (r *recording) PresenceUpdate(rec *presence.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, rec.ServiceName)
}
func (r *recording) PresenceRemove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, name)
}

func TestStorePutFiresNewThenUpdate(t *testing.T) {
	s := presence.NewStore()
	rec := &recording{}
	s.Subscribe(rec)

	s.Put(presence.New("alice@host-a", "host-a.local", 2301, map[string]string{"status": "avail"}))
	s.Put(presence.New("alice@host-a", "host-a.local", 2301, map[string]string{"status": "away"}))

	if len(rec.added) != 1 || rec.added[0] != "alice@host-a" {
		t.Errorf("added = %v, want one entry", rec.added)
	}
	if len(rec.updated) != 1 {
		t.Errorf("updated = %v, want one entry", rec.updated)
	}

	got, ok := s.Lookup("alice@host-a")
	if !ok {
		t.Fatal("Lookup did not find record")
	}
	if got.Status(nil) != presence.Away {
		t.Errorf("Status = %v, want away", got.Status(nil))
	}
}

func TestStoreRemoveOnlyFiresIfPresent(t *testing.T) {
	s := presence.NewStore()
	rec := &recording{}
	s.Subscribe(rec)

	s.Remove("nobody@nowhere")
	if len(rec.removed) != 0 {
		t.Errorf("removed fired for unknown service name: %v", rec.removed)
	}

	s.Put(presence.New("bob@host-b", "host-b.local", 2302, nil))
	s.Remove("bob@host-b")
	if len(rec.removed) != 1 {
		t.Errorf("removed = %v, want one entry", rec.removed)
	}
	if _, ok := s.Lookup("bob@host-b"); ok {
		t.Error("record still present after Remove")
	}
}

func TestRecordEqualByValueExcludingPort(t *testing.T) {
	a := presence.New("alice@host-a", "host-a.local", 2301, nil)
	b := presence.New("alice@host-a", "host-a.local", 2399, nil)
	if !a.Equal(b) {
		t.Error("records with same service name/host but different port should be Equal")
	}
	c := presence.New("alice@host-a", "host-c.local", 2301, nil)
	if a.Equal(c) {
		t.Error("records with different hosts should not be Equal")
	}
}

func TestStoreRename(t *testing.T) {
	s := presence.NewStore()
	s.Put(presence.New("alice@host", "host.local", 2301, nil))
	s.Rename("alice@host", "alice@host (2)")

	if _, ok := s.Lookup("alice@host"); ok {
		t.Error("old service name still present after Rename")
	}
	got, ok := s.Lookup("alice@host (2)")
	if !ok {
		t.Fatal("renamed record not found")
	}
	if got.ServiceName != "alice@host (2)" {
		t.Errorf("ServiceName = %q", got.ServiceName)
	}
}
