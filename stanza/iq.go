// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stanza

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"

	"go.linklocal.dev/llxmpp/jid"
)

// Errors returned by the stanza package.
var (
	ErrEmptyIQType = errors.New("stanza: empty IQ type")
)

// IQ ("Information Query") is used as a general request response mechanism.
// IQ's are one-to-one, provide get and set semantics, and always require a
// response in the form of a result or an error. An IQ get/set always
// receives exactly one reply (a result or an error); this is what makes
// getIqResponse-style correlation possible even when the reply arrives on a
// different stream than the request.
type IQ struct {
	XMLName xml.Name `xml:"iq"`
	ID      string   `xml:"id,attr"`
	To      *jid.JID `xml:"to,attr"`
	From    *jid.JID `xml:"from,attr"`
	Lang    string   `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Type    IQType   `xml:"type,attr"`

	// Payload is the raw XML of the single child element carried by the IQ,
	// or nil if the IQ has no payload (eg. a bare result). Decode leaves
	// unrecognized payloads here instead of failing the whole stanza.
	Payload []byte `xml:"-"`
}

// MarshalXML writes the IQ envelope followed by the raw bytes of Payload,
// if any, so a round-tripped IQ (or one built by hand with Payload set)
// serializes its child element without this package needing to understand
// its shape.
func (iq IQ) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{Name: xml.Name{Local: "iq"}}
	start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "id"}, Value: iq.ID})
	if iq.Type != "" {
		attr, err := iq.Type.MarshalXMLAttr(xml.Name{Local: "type"})
		if err != nil {
			return err
		}
		start.Attr = append(start.Attr, attr)
	}
	if iq.To != nil {
		attr, err := iq.To.MarshalXMLAttr(xml.Name{Local: "to"})
		if err != nil {
			return err
		}
		start.Attr = append(start.Attr, attr)
	}
	if iq.From != nil {
		attr, err := iq.From.MarshalXMLAttr(xml.Name{Local: "from"})
		if err != nil {
			return err
		}
		start.Attr = append(start.Attr, attr)
	}
	if iq.Lang != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Space: "http://www.w3.org/XML/1998/namespace", Local: "lang"}, Value: iq.Lang})
	}

	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if len(iq.Payload) > 0 {
		dec := xml.NewDecoder(bytes.NewReader(iq.Payload))
		for {
			tok, err := dec.Token()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			if err := e.EncodeToken(xml.CopyToken(tok)); err != nil {
				return err
			}
		}
	}
	if err := e.EncodeToken(start.End()); err != nil {
		return err
	}
	return e.Flush()
}

// Result builds a `type="result"` reply IQ addressed back to the sender of
// iq, with no payload.
func (iq IQ) Result() IQ {
	return IQ{ID: iq.ID, To: iq.From, From: iq.To, Type: ResultIQ}
}

// Error builds a `type="error"` reply IQ addressed back to the sender of
// iq, carrying se marshaled as its payload. Used, among other things, to
// auto-reply feature-not-implemented to a get/set nothing else claims.
func (iq IQ) Error(se Error) IQ {
	payload, err := xml.Marshal(se)
	if err != nil {
		payload = nil
	}
	return IQ{ID: iq.ID, To: iq.From, From: iq.To, Type: ErrorIQ, Payload: payload}
}

// IsResponse reports whether typ is a terminal IQ response type (result or
// error), the only two types that satisfy a pending request.
func (t IQType) IsResponse() bool {
	return t == ResultIQ || t == ErrorIQ
}

// IQType is the type of an IQ stanza.
// It should normally be one of the constants defined in this package.
type IQType string

const (
	// GetIQ is used to query another entity for information.
	GetIQ IQType = "get"

	// SetIQ is used to provide data to another entity, set new values, and
	// replace existing values.
	SetIQ IQType = "set"

	// ResultIQ is sent in response to a successful get or set IQ.
	ResultIQ IQType = "result"

	// ErrorIQ is sent to report that an error occurred during the delivery or
	// processing of a get or set IQ.
	ErrorIQ IQType = "error"
)

// MarshalXMLAttr satisfies the xml.MarshalerAttr interface for IQType.
// It returns ErrEmptyIQType when trying to marshal a IQ stanza with an empty
// type attribute.
func (t IQType) MarshalXMLAttr(name xml.Name) (attr xml.Attr, err error) {
	s := string(t)
	if s == "" {
		return attr, ErrEmptyIQType
	}
	attr.Name = name
	attr.Value = s
	return attr, nil
}
