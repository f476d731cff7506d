// Package ns provides the namespace constants used to frame a XEP-0174
// link-local stream and its stanzas.
package ns

// Namespaces used on a link-local XMPP stream.
const (
	// Client is the default namespace for stanzas on a link-local stream.
	// XEP-0174 requires "jabber:client" regardless of direction; there is no
	// server-to-server variant on a link-local link.
	Client = "jabber:client"

	// Stream is the namespace of the <stream:stream> wrapper element.
	Stream = "http://etherx.jabber.org/streams"

	// Stanza is the namespace of defined stanza error conditions.
	Stanza = "urn:ietf:params:xml:ns:xmpp-stanzas"
)
