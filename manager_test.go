package llxmpp

import (
	"context"
	"encoding/xml"
	"errors"
	"sync"
	"testing"
	"time"

	"go.linklocal.dev/llxmpp/discovery"
	"go.linklocal.dev/llxmpp/jid"
	"go.linklocal.dev/llxmpp/stanza"
)

// fakeAdapter is an in-memory discovery.Adapter used so manager tests never
// touch a real mDNS responder. Register always succeeds, under the requested
// name unless forceRename is set; presence events are driven by the test
// calling push directly.
type fakeAdapter struct {
	mu          sync.Mutex
	obs         discovery.Observer
	registered  map[string]uint16
	forceRename string // if set, Register reports this name instead of the one requested
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{registered: make(map[string]uint16)}
}

func (a *fakeAdapter) Register(ctx context.Context, serviceName string, port uint16, txt map[string]string) (discovery.Handle, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.registered[serviceName] = port
	name := serviceName
	if a.forceRename != "" {
		name = a.forceRename
	}
	return name, name, nil
}

func (a *fakeAdapter) Reannounce(discovery.Handle) error                   { return nil }
func (a *fakeAdapter) UpdateText(discovery.Handle, map[string]string) error { return nil }
func (a *fakeAdapter) Unregister(discovery.Handle) error                   { return nil }

func (a *fakeAdapter) Browse(ctx context.Context, obs discovery.Observer) error {
	a.mu.Lock()
	a.obs = obs
	a.mu.Unlock()
	return nil
}

func (a *fakeAdapter) Resolve(ctx context.Context, serviceName string) error { return nil }

// push delivers a resolved presence for serviceName@host:port to whichever
// Manager called Browse, simulating a mDNS serviceResolved event.
func (a *fakeAdapter) push(serviceName, host string, port uint16) {
	a.mu.Lock()
	obs := a.obs
	a.mu.Unlock()
	if obs == nil {
		return
	}
	obs.ServiceAdded(serviceName)
	obs.ServiceResolved(serviceName, host, port, map[string]string{"status": "avail"})
}

func newTestManager(t *testing.T, name string, opts ...Option) (*Manager, *fakeAdapter) {
	t.Helper()
	a := newFakeAdapter()
	m, err := New(context.Background(), a, name, nil, opts...)
	if err != nil {
		t.Fatalf("New(%q): %v", name, err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m, a
}

func mustAddr(t *testing.T, serviceName string) *jid.JID {
	t.Helper()
	j, err := jid.FromService(serviceName)
	if err != nil {
		t.Fatalf("jid.FromService(%q): %v", serviceName, err)
	}
	return j
}

func TestManagerBootstrapRegistersAndListens(t *testing.T) {
	m, a := newTestManager(t, "alice@host")
	if m.LocalServiceName() != "alice@host" {
		t.Fatalf("LocalServiceName() = %q, want alice@host", m.LocalServiceName())
	}
	a.mu.Lock()
	port, ok := a.registered["alice@host"]
	a.mu.Unlock()
	if !ok || port != m.localPort {
		t.Fatalf("adapter did not see the registration with the bound port: %v %v", ok, port)
	}
}

func TestManagerDialAndReceiveMessage(t *testing.T) {
	alice, aA := newTestManager(t, "alice@host")
	bob, aB := newTestManager(t, "bob@host")

	aA.push(bob.LocalServiceName(), "127.0.0.1", bob.localPort)
	aB.push(alice.LocalServiceName(), "127.0.0.1", alice.localPort)

	received := make(chan stanza.Message, 1)
	bob.AddListener(func(v interface{}) bool {
		_, ok := v.(stanza.Message)
		return ok
	}, func(v interface{}) {
		received <- v.(stanza.Message)
	})

	msg, err := alice.Chats().Get(bob.LocalServiceName()).NewMessage("hello")
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	msg.ID = "m1"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := alice.SendPacket(ctx, msg); err != nil {
		t.Fatalf("SendPacket: %v", err)
	}

	select {
	case got := <-received:
		if got.Body != "hello" {
			t.Fatalf("Body = %q, want hello", got.Body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message dispatch")
	}
}

func TestManagerChatRegistryReceivesMessages(t *testing.T) {
	alice, aA := newTestManager(t, "alice@host")
	bob, aB := newTestManager(t, "bob@host")

	aA.push(bob.LocalServiceName(), "127.0.0.1", bob.localPort)
	aB.push(alice.LocalServiceName(), "127.0.0.1", alice.localPort)

	msg, err := alice.Chats().Get(bob.LocalServiceName()).NewMessage("hi there")
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	msg.ID = "m2"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := alice.SendPacket(ctx, msg); err != nil {
		t.Fatalf("SendPacket: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c, ok := bob.Chats().Lookup(alice.LocalServiceName()); ok {
			_ = c
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("bob's chat registry never saw alice's message")
}

func TestManagerSendToUnknownPeerFailsWithPeerUnavailable(t *testing.T) {
	alice, _ := newTestManager(t, "alice@host")

	msg, err := alice.Chats().Get("ghost@host").NewMessage("hi")
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = alice.SendPacket(ctx, msg)
	if err == nil {
		t.Fatal("expected an error sending to an unknown peer")
	}
	var lerr Error
	if !errors.As(err, &lerr) || lerr.Kind != PeerUnavailable {
		t.Fatalf("err = %v, want Kind=PeerUnavailable", err)
	}
}

func TestGetIqResponseCorrelatesReply(t *testing.T) {
	alice, aA := newTestManager(t, "alice@host")
	bob, aB := newTestManager(t, "bob@host")

	aA.push(bob.LocalServiceName(), "127.0.0.1", bob.localPort)
	aB.push(alice.LocalServiceName(), "127.0.0.1", alice.localPort)

	bob.AddListener(func(v interface{}) bool {
		_, ok := v.(stanza.IQ)
		return ok
	}, func(v interface{}) {
		iq := v.(stanza.IQ)
		if iq.Type != stanza.GetIQ {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = bob.SendPacket(ctx, iq.Result())
	})

	req := stanza.IQ{Type: stanza.GetIQ, To: mustAddr(t, bob.LocalServiceName())}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	reply, err := alice.GetIqResponse(ctx, req)
	if err != nil {
		t.Fatalf("GetIqResponse: %v", err)
	}
	if reply.Type != stanza.ResultIQ {
		t.Fatalf("reply.Type = %q, want result", reply.Type)
	}
}

// TestUnhandledGetAutoRepliesFeatureNotImplemented exercises §6.2's MUST:
// an IQ get that arrives at a peer with no listener claiming it gets an
// automatic error reply instead of being silently dropped, so the sender
// never has to wait out a timeout for a request nobody was ever going to
// answer.
func TestUnhandledGetAutoRepliesFeatureNotImplemented(t *testing.T) {
	alice, aA := newTestManager(t, "alice@host")
	bob, aB := newTestManager(t, "bob@host")

	aA.push(bob.LocalServiceName(), "127.0.0.1", bob.localPort)
	aB.push(alice.LocalServiceName(), "127.0.0.1", alice.localPort)

	req := stanza.IQ{Type: stanza.GetIQ, To: mustAddr(t, bob.LocalServiceName())}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reply, err := alice.GetIqResponse(ctx, req)
	if err != nil {
		t.Fatalf("GetIqResponse: %v", err)
	}
	if reply.Type != stanza.ErrorIQ {
		t.Fatalf("reply.Type = %q, want error", reply.Type)
	}
	var se stanza.Error
	if err := xml.Unmarshal(reply.Payload, &se); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	if se.Condition != stanza.FeatureNotImplemented {
		t.Fatalf("Condition = %q, want feature-not-implemented", se.Condition)
	}
}

// TestGetIqResponseTimesOutWithNoReply covers the genuine timeout path: a
// listener claims the get (so the auto-reply never fires) but never sends
// a reply of its own.
func TestGetIqResponseTimesOutWithNoReply(t *testing.T) {
	alice, aA := newTestManager(t, "alice@host")
	bob, aB := newTestManager(t, "bob@host", ReplyTimeout(200*time.Millisecond))

	aA.push(bob.LocalServiceName(), "127.0.0.1", bob.localPort)
	aB.push(alice.LocalServiceName(), "127.0.0.1", alice.localPort)

	alice.AddListener(func(v interface{}) bool {
		_, ok := v.(stanza.IQ)
		return ok
	}, func(v interface{}) {})

	req := stanza.IQ{Type: stanza.GetIQ, To: mustAddr(t, alice.LocalServiceName())}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := bob.GetIqResponse(ctx, req)
	if err == nil {
		t.Fatal("expected a timeout waiting for a reply nobody sends")
	}
	var lerr Error
	if !errors.As(err, &lerr) || lerr.Kind != Timeout {
		t.Fatalf("err = %v, want Kind=Timeout", err)
	}
}

// TestManagerAdoptsRenameFromRegister covers §4.4 bootstrap step 3: when
// the Discovery Adapter hands back a different name than requested (a
// collision rename), the Manager adopts it through ServiceNameChanged
// rather than assigning its local field directly.
func TestManagerAdoptsRenameFromRegister(t *testing.T) {
	a := newFakeAdapter()
	a.forceRename = "alice@host (2)"

	m, err := New(context.Background(), a, "alice@host", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	if got := m.LocalServiceName(); got != "alice@host (2)" {
		t.Fatalf("LocalServiceName() = %q, want alice@host (2)", got)
	}
}
