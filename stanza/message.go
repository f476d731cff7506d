package stanza

import (
	"encoding/xml"

	"go.linklocal.dev/llxmpp/jid"
)

// Message is the XMPP <message/> stanza: a "push" style notification of
// information intended to be delivered once, in contrast to the
// request-response style of IQ.
type Message struct {
	XMLName xml.Name    `xml:"message"`
	ID      string      `xml:"id,attr"`
	To      *jid.JID    `xml:"to,attr"`
	From    *jid.JID    `xml:"from,attr"`
	Lang    string      `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Type    MessageType `xml:"type,attr,omitempty"`
	Subject string      `xml:"subject,omitempty"`
	Body    string      `xml:"body,omitempty"`
	Thread  string      `xml:"thread,omitempty"`
}

// MessageType is the type of a message stanza.
type MessageType string

const (
	// NormalMessage is a standalone message sent outside the context of a
	// one-to-one conversation.
	NormalMessage MessageType = "normal"

	// ChatMessage is a message sent in the context of a one-to-one chat
	// session. This is the type used by the Chat Registry.
	ChatMessage MessageType = "chat"

	// GroupChatMessage is a message sent in the context of a multi-user
	// conversation; not applicable on a bare link-local stream but preserved
	// for wire compatibility with clients that send it anyway.
	GroupChatMessage MessageType = "groupchat"

	// HeadlineMessage provides an alert, notice, or other transient
	// information to which no reply is expected.
	HeadlineMessage MessageType = "headline"

	// ErrorMessage indicates that an earlier message triggered an error.
	ErrorMessage MessageType = "error"
)

// Chatable reports whether typ is one of the three message types the Chat
// Registry accepts for per-peer delivery (chat, normal, or error), per
// §4.4's dispatch rule. An absent type counts as normal and is accepted.
func (t MessageType) Chatable() bool {
	switch t {
	case ChatMessage, NormalMessage, ErrorMessage, "":
		return true
	default:
		return false
	}
}
