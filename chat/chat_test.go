package chat_test

import (
	"testing"

	"go.linklocal.dev/llxmpp/chat"
	"go.linklocal.dev/llxmpp/stanza"
)

type capture struct {
	got []stanza.Message
}

func (c *capture) HandleMessage(msg stanza.Message) { c.got = append(c.got, msg) }

func TestDeliverQueuesUntilListener(t *testing.T) {
	reg := chat.NewRegistry()
	c := reg.Get("bob@host-b")

	c.Deliver(stanza.Message{Body: "one"})
	c.Deliver(stanza.Message{Body: "two"})

	cap := &capture{}
	c.AddListener(cap)

	if len(cap.got) != 2 {
		t.Fatalf("got %d messages, want 2 (drained backlog)", len(cap.got))
	}
	if cap.got[0].Body != "one" || cap.got[1].Body != "two" {
		t.Errorf("backlog order = %v", cap.got)
	}
}

func TestLateListenerSeesOnlyNewMessages(t *testing.T) {
	reg := chat.NewRegistry()
	c := reg.Get("bob@host-b")

	first := &capture{}
	c.AddListener(first)

	c.Deliver(stanza.Message{Body: "after-first-listener"})

	second := &capture{}
	c.AddListener(second)

	c.Deliver(stanza.Message{Body: "after-second-listener"})

	if len(first.got) != 2 {
		t.Errorf("first listener got %d messages, want 2", len(first.got))
	}
	if len(second.got) != 1 || second.got[0].Body != "after-second-listener" {
		t.Errorf("second listener got %v, want only the post-attach message", second.got)
	}
}

func TestRegistryReusesChatPerServiceName(t *testing.T) {
	reg := chat.NewRegistry()
	a := reg.Get("bob@host-b")
	b := reg.Get("bob@host-b")
	if a != b {
		t.Error("Get should return the same Chat for the same service name")
	}
	if _, ok := reg.Lookup("nobody@nowhere"); ok {
		t.Error("Lookup should not create a Chat as a side effect")
	}
}

func TestNewMessageAddressesToChatPeer(t *testing.T) {
	reg := chat.NewRegistry()
	c := reg.Get("bob@host-b")

	msg, err := c.NewMessage("hello")
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if msg.Type != stanza.ChatMessage {
		t.Errorf("Type = %q, want chat", msg.Type)
	}
	if msg.Body != "hello" {
		t.Errorf("Body = %q, want hello", msg.Body)
	}
	if msg.To == nil || msg.To.Localpart()+"@"+msg.To.Domainpart() != "bob@host-b" {
		t.Errorf("To = %v, want bob@host-b", msg.To)
	}
}

func TestNewMessageRejectsInvalidServiceName(t *testing.T) {
	reg := chat.NewRegistry()
	c := reg.Get("not a valid service name!!")

	if _, err := c.NewMessage("hi"); err == nil {
		t.Error("expected an error for an invalid service name")
	}
}

func TestRemoveListenerStopsDelivery(t *testing.T) {
	reg := chat.NewRegistry()
	c := reg.Get("bob@host-b")
	cap := &capture{}
	c.AddListener(cap)
	c.RemoveListener(cap)

	c.Deliver(stanza.Message{Body: "after-remove"})
	if len(cap.got) != 0 {
		t.Errorf("removed listener still received %d messages", len(cap.got))
	}
}
