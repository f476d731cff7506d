package llxmpp

// Filter reports whether a PacketListener wants to see stanza v.
type Filter func(v interface{}) bool

// Handler receives a stanza a Filter has accepted.
type Handler func(v interface{})

// listenerEntry pairs a Filter/Handler with the token identity used for
// RemoveListener.
type listenerEntry struct {
	filter Filter
	handle Handler
}

// ListenerToken identifies a registered PacketListener for later removal.
// Because the Manager's dispatcher reads the listener list directly rather
// than subscribing per-Stream, a newly added listener is retroactively
// visible to every currently-open stream the moment it is registered —
// there is no separate per-stream subscription step to perform, per §4.4's
// "adding a listener must also retroactively subscribe it to all
// currently-open streams".
type ListenerToken struct {
	entry *listenerEntry
}

// AddListener registers filter/handler as a PacketListener. handler is
// invoked for every stanza arriving on any stream for which filter returns
// true; see the dispatch order documented on Manager.
func (m *Manager) AddListener(filter Filter, handler Handler) *ListenerToken {
	e := &listenerEntry{filter: filter, handle: handler}
	m.mu.Lock()
	m.listeners = append(m.listeners, e)
	m.mu.Unlock()
	return &ListenerToken{entry: e}
}

// RemoveListener unregisters the PacketListener identified by tok.
func (m *Manager) RemoveListener(tok *ListenerToken) {
	if tok == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.listeners {
		if e == tok.entry {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

// snapshotListeners returns a point-in-time copy of the listener list, safe
// to range over without holding m.mu.
func (m *Manager) snapshotListeners() []*listenerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*listenerEntry(nil), m.listeners...)
}
