package stanza

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"go.linklocal.dev/llxmpp/internal/ns"
	"go.linklocal.dev/llxmpp/jid"
)

// Decode reads a single top-level stream child (already identified by
// start) and returns one of Message, IQ, Presence, or Error, satisfying the
// stream engine's stanza-demultiplexing boundary (§6.2). d must be
// positioned so that start was the token most recently read from it.
//
// An IQ get/set whose payload element is not recognized by the caller is
// still decoded successfully: its Payload field carries the raw inner XML so
// a consumer layered on top (disco, jingle, ad hoc commands, ...) can parse
// it itself. The engine auto-replies feature-not-implemented (see
// FeatureNotImplementedError) for any get/set that ends up unclaimed.
func Decode(d *xml.Decoder, start xml.StartElement) (interface{}, error) {
	switch {
	case start.Name.Local == "message" && start.Name.Space == ns.Client:
		var msg Message
		if err := d.DecodeElement(&msg, &start); err != nil {
			return nil, fmt.Errorf("stanza: decoding message: %w", err)
		}
		return msg, nil
	case start.Name.Local == "presence" && start.Name.Space == ns.Client:
		var pres Presence
		if err := d.DecodeElement(&pres, &start); err != nil {
			return nil, fmt.Errorf("stanza: decoding presence: %w", err)
		}
		return pres, nil
	case start.Name.Local == "iq" && start.Name.Space == ns.Client:
		return decodeIQ(d, start)
	case start.Name.Local == "error":
		var errStanza Error
		if err := d.DecodeElement(&errStanza, &start); err != nil {
			return nil, fmt.Errorf("stanza: decoding error: %w", err)
		}
		return errStanza, nil
	default:
		return nil, fmt.Errorf("stanza: unexpected top-level element {%s}%s", start.Name.Space, start.Name.Local)
	}
}

// decodeIQ decodes the IQ envelope itself (to/from/id/type) without
// assuming anything about the shape of its payload, then separately buffers
// the payload's raw XML into IQ.Payload. Unknown IQ payloads therefore never
// fail decoding outright — they come back as an otherwise-empty IQ carrying
// the original id/from/to/type plus the raw bytes, exactly per §6.2.
func decodeIQ(d *xml.Decoder, start xml.StartElement) (IQ, error) {
	var iq IQ
	iq.XMLName = start.Name
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "id":
			iq.ID = attr.Value
		case "type":
			iq.Type = IQType(attr.Value)
		case "to":
			if attr.Value == "" {
				continue
			}
			j, err := jid.Parse(attr.Value)
			if err != nil {
				return iq, fmt.Errorf("stanza: decoding iq to: %w", err)
			}
			iq.To = j
		case "from":
			if attr.Value == "" {
				continue
			}
			j, err := jid.Parse(attr.Value)
			if err != nil {
				return iq, fmt.Errorf("stanza: decoding iq from: %w", err)
			}
			iq.From = j
		}
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return iq, fmt.Errorf("stanza: reading iq payload: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if err := enc.EncodeToken(t.Copy()); err != nil {
				return iq, err
			}
		case xml.EndElement:
			if depth == 0 {
				if err := enc.Flush(); err != nil {
					return iq, err
				}
				if buf.Len() > 0 {
					iq.Payload = buf.Bytes()
				}
				return iq, nil
			}
			depth--
			if err := enc.EncodeToken(t); err != nil {
				return iq, err
			}
		default:
			if err := enc.EncodeToken(xml.CopyToken(tok)); err != nil {
				return iq, err
			}
		}
	}
}
