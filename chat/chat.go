package chat

import (
	"sync"

	"go.linklocal.dev/llxmpp/jid"
	"go.linklocal.dev/llxmpp/stanza"
)

// queueDepth bounds the number of pre-listener messages a Chat will buffer.
// Not specified numerically by §4.7; chosen to match the Stream writer
// queue's §4.3 capacity so the two bounded-buffer contracts in this module
// read consistently.
const queueDepth = 500

// Listener receives messages delivered through a Chat. Implementations must
// be comparable with ==, since RemoveListener identifies a listener to
// detach by equality rather than by a separate subscription handle.
type Listener interface {
	HandleMessage(msg stanza.Message)
}

// Chat is the FIFO channel for one remote peer: a service name, a bounded
// queue of messages that arrived before any listener was attached, and the
// set of currently attached listeners.
type Chat struct {
	ServiceName string

	mu        sync.Mutex
	queue     []stanza.Message
	listeners []Listener
}

// newChat constructs an empty Chat for serviceName.
func newChat(serviceName string) *Chat {
	return &Chat{ServiceName: serviceName}
}

// NewMessage builds a `type="chat"` stanza.Message addressed to this
// Chat's remote service name, stamping To before handing it back to the
// caller. Sending requires only a body; the caller passes the result to
// Manager.SendPacket, which stamps From. Chat cannot call SendPacket
// itself without importing the root package, which already imports chat.
func (c *Chat) NewMessage(body string) (stanza.Message, error) {
	to, err := jid.FromService(c.ServiceName)
	if err != nil {
		return stanza.Message{}, err
	}
	return stanza.Message{Type: stanza.ChatMessage, To: to, Body: body}, nil
}

// Deliver hands msg to every current listener, or queues it if none are
// attached yet, per §4.7's delivery rule. A queue already at capacity drops
// the oldest message to admit the new one rather than blocking the
// dispatcher that calls Deliver.
func (c *Chat) Deliver(msg stanza.Message) {
	c.mu.Lock()
	if len(c.listeners) == 0 {
		if len(c.queue) >= queueDepth {
			c.queue = c.queue[1:]
		}
		c.queue = append(c.queue, msg)
		c.mu.Unlock()
		return
	}
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	for _, l := range listeners {
		l.HandleMessage(msg)
	}
}

// AddListener attaches l to the Chat. If this is the first listener, the
// queue accumulated so far is drained to it in FIFO order and cleared;
// later listeners added after that point see only new messages, per §4.7
// ("subsequent listeners see only new messages, they get no replay").
func (c *Chat) AddListener(l Listener) {
	c.mu.Lock()
	first := len(c.listeners) == 0
	c.listeners = append(c.listeners, l)
	var backlog []stanza.Message
	if first {
		backlog = c.queue
		c.queue = nil
	}
	c.mu.Unlock()

	for _, msg := range backlog {
		l.HandleMessage(msg)
	}
}

// RemoveListener detaches l from the Chat, a no-op if l was never attached.
func (c *Chat) RemoveListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cur := range c.listeners {
		if cur == l {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return
		}
	}
}
