package chat

import "sync"

// Registry owns exactly one Chat per remote service name, created lazily on
// first inbound or outbound message to that peer and never destroyed while
// the service exists, per §3's Chat ownership rule.
type Registry struct {
	mu    sync.Mutex
	chats map[string]*Chat
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{chats: make(map[string]*Chat)}
}

// Get returns the Chat for serviceName, creating it if this is the first
// message to or from that peer.
func (r *Registry) Get(serviceName string) *Chat {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[serviceName]
	if !ok {
		c = newChat(serviceName)
		r.chats[serviceName] = c
	}
	return c
}

// Lookup returns the Chat for serviceName without creating one, and false if
// no message has ever been exchanged with that peer.
func (r *Registry) Lookup(serviceName string) (*Chat, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[serviceName]
	return c, ok
}
