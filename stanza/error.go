package stanza

import (
	"encoding/xml"
	"strings"

	"go.linklocal.dev/llxmpp/internal/ns"
	"go.linklocal.dev/llxmpp/jid"
)

// ErrorType classifies how the sender of a stanza error recommends the
// recipient react (RFC 6120 §8.3.2).
type ErrorType int

// Stanza error types.
const (
	Cancel ErrorType = iota
	Auth
	Continue
	Modify
	Wait
)

func (t ErrorType) String() string {
	switch t {
	case Auth:
		return "auth"
	case Continue:
		return "continue"
	case Modify:
		return "modify"
	case Wait:
		return "wait"
	default:
		return "cancel"
	}
}

// MarshalXMLAttr satisfies xml.MarshalerAttr.
func (t ErrorType) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	return xml.Attr{Name: name, Value: strings.ToLower(t.String())}, nil
}

// UnmarshalXMLAttr satisfies xml.UnmarshalerAttr.
func (t *ErrorType) UnmarshalXMLAttr(attr xml.Attr) error {
	switch attr.Value {
	case "auth":
		*t = Auth
	case "continue":
		*t = Continue
	case "modify":
		*t = Modify
	case "wait":
		*t = Wait
	default:
		*t = Cancel
	}
	return nil
}

// Condition is a defined stanza error condition (RFC 6120 §8.3.3).
type Condition string

// Stanza error conditions.
const (
	BadRequest            Condition = "bad-request"
	Conflict              Condition = "conflict"
	FeatureNotImplemented Condition = "feature-not-implemented"
	Forbidden             Condition = "forbidden"
	Gone                  Condition = "gone"
	InternalServerError   Condition = "internal-server-error"
	ItemNotFound          Condition = "item-not-found"
	JIDMalformed          Condition = "jid-malformed"
	NotAcceptable         Condition = "not-acceptable"
	NotAllowed            Condition = "not-allowed"
	NotAuthorized         Condition = "not-authorized"
	PolicyViolation       Condition = "policy-violation"
	RecipientUnavailable  Condition = "recipient-unavailable"
	RemoteServerNotFound  Condition = "remote-server-not-found"
	RemoteServerTimeout   Condition = "remote-server-timeout"
	ResourceConstraint    Condition = "resource-constraint"
	ServiceUnavailable    Condition = "service-unavailable"
	UndefinedCondition    Condition = "undefined-condition"
	UnexpectedRequest     Condition = "unexpected-request"
)

// Error is the XMPP <error/> child element of a message, presence, or IQ
// stanza.
type Error struct {
	XMLName   xml.Name
	By        *jid.JID
	Type      ErrorType
	Condition Condition
	Text      string
}

// Error satisfies the error interface.
func (se Error) Error() string {
	if se.Text != "" {
		return se.Text
	}
	return string(se.Condition)
}

// MarshalXML satisfies xml.Marshaler.
func (se Error) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{Name: xml.Name{Local: "error"}}
	typAttr, _ := se.Type.MarshalXMLAttr(xml.Name{Local: "type"})
	start.Attr = append(start.Attr, typAttr)
	if se.By != nil {
		a, _ := se.By.MarshalXMLAttr(xml.Name{Local: "by"})
		start.Attr = append(start.Attr, a)
	}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	cond := xml.StartElement{Name: xml.Name{Space: ns.Stanza, Local: string(se.Condition)}}
	if err := e.EncodeToken(cond); err != nil {
		return err
	}
	if err := e.EncodeToken(cond.End()); err != nil {
		return err
	}
	if se.Text != "" {
		text := xml.StartElement{Name: xml.Name{Space: ns.Stanza, Local: "text"}}
		if err := e.EncodeToken(text); err != nil {
			return err
		}
		if err := e.EncodeToken(xml.CharData(se.Text)); err != nil {
			return err
		}
		if err := e.EncodeToken(text.End()); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// UnmarshalXML satisfies xml.Unmarshaler.
func (se *Error) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	decoded := struct {
		Condition struct {
			XMLName xml.Name
		} `xml:",any"`
		Type ErrorType `xml:"type,attr"`
		By   *jid.JID  `xml:"by,attr"`
		Text string    `xml:"urn:ietf:params:xml:ns:xmpp-stanzas text"`
	}{}
	if err := d.DecodeElement(&decoded, &start); err != nil {
		return err
	}
	se.XMLName = start.Name
	se.Type = decoded.Type
	se.By = decoded.By
	se.Text = decoded.Text
	if decoded.Condition.XMLName.Space == ns.Stanza {
		se.Condition = Condition(decoded.Condition.XMLName.Local)
	}
	return nil
}

// FeatureNotImplementedError builds the cancel/feature-not-implemented
// stanza error the engine auto-attaches to an IQ get/set it cannot handle
// (§6.2).
func FeatureNotImplementedError() Error {
	return Error{
		XMLName:   xml.Name{Local: "error"},
		Type:      Cancel,
		Condition: FeatureNotImplemented,
	}
}
