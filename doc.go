// Package llxmpp implements the XEP-0174 link-local session engine: a
// Manager binds a listening socket, registers a presence over a
// discovery.Adapter, and opens XEP-0174 streams to peers on demand,
// dispatching inbound stanzas to packet listeners, cross-stream collectors,
// and the chat registry.
package llxmpp
