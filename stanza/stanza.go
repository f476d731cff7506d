package stanza

import (
	"encoding/xml"

	"mellium.im/xmlstream"

	"go.linklocal.dev/llxmpp/jid"
)

// Stanza is implemented by Message, IQ, and Presence. It exposes the
// addressing fields the Session Manager needs for dispatch without forcing
// callers to type-switch first.
type Stanza interface {
	Addr() (to, from *jid.JID)
	StanzaID() string
}

// Addr satisfies Stanza.
func (m Message) Addr() (to, from *jid.JID) { return m.To, m.From }

// StanzaID satisfies Stanza.
func (m Message) StanzaID() string { return m.ID }

// Addr satisfies Stanza.
func (iq IQ) Addr() (to, from *jid.JID) { return iq.To, iq.From }

// StanzaID satisfies Stanza.
func (iq IQ) StanzaID() string { return iq.ID }

// Addr satisfies Stanza.
func (p Presence) Addr() (to, from *jid.JID) { return p.To, p.From }

// StanzaID satisfies Stanza.
func (p Presence) StanzaID() string { return p.ID }

// WrapIQ wraps an arbitrary token stream payload (eg. a XEP extension
// element produced by a consumer layered on top of this package) in an IQ
// start/end pair, for callers that would rather stream a payload than
// marshal a Go struct for it.
func WrapIQ(to *jid.JID, typ IQType, id string, payload xml.TokenReader) xml.TokenReader {
	attr := []xml.Attr{{Name: xml.Name{Local: "type"}, Value: string(typ)}}
	if to != nil {
		attr = append(attr, xml.Attr{Name: xml.Name{Local: "to"}, Value: to.String()})
	}
	if id != "" {
		attr = append(attr, xml.Attr{Name: xml.Name{Local: "id"}, Value: id})
	}
	return xmlstream.Wrap(payload, xml.StartElement{Name: xml.Name{Local: "iq"}, Attr: attr})
}

// WrapMessage wraps an arbitrary token stream payload in a message
// start/end pair.
func WrapMessage(to *jid.JID, typ MessageType, payload xml.TokenReader) xml.TokenReader {
	return xmlstream.Wrap(payload, xml.StartElement{
		Name: xml.Name{Local: "message"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "to"}, Value: to.String()},
			{Name: xml.Name{Local: "type"}, Value: string(typ)},
		},
	})
}
