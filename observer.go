package llxmpp

import "go.linklocal.dev/llxmpp/presence"

// The four methods below satisfy discovery.Observer, making the Manager
// itself the sink passed to Adapter.Browse. They translate discovery
// events directly into Presence Store mutations, per §4.2's resolution
// policy: a bare ServiceAdded is never published to the Store on its own,
// only once ServiceResolved supplies host/port/TXT.

// ServiceAdded is called when a new instance name appears on the link. No
// presence is published yet; that happens when the corresponding
// ServiceResolved event arrives.
func (m *Manager) ServiceAdded(serviceName string) {
	// Intentionally a no-op: §4.2 only publishes a Record once resolved.
}

// ServiceRemoved withdraws serviceName's presence, if any.
func (m *Manager) ServiceRemoved(serviceName string) {
	m.store.Remove(serviceName)
}

// ServiceResolved publishes or refreshes serviceName's presence.
func (m *Manager) ServiceResolved(serviceName, host string, port uint16, txt map[string]string) {
	m.store.Put(presence.New(serviceName, host, port, txt))
}

// ServiceNameChanged renames a presence record in place, and if the
// renamed service is the local registration (forced by a name collision
// at Register time, reported either by New's bootstrap or by the adapter),
// updates the Manager's own idea of its service name too.
func (m *Manager) ServiceNameChanged(oldName, newName string) {
	m.store.Rename(oldName, newName)

	m.mu.Lock()
	if m.localServiceName == oldName {
		m.localServiceName = newName
	}
	m.mu.Unlock()
}
