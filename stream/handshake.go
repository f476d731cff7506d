package stream

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"

	"go.linklocal.dev/llxmpp/internal/ns"
)

// xmlHeader precedes every stream-open, matching the wire format
// mellium.im/xmpp/internal.SendNewStream writes.
const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>`

// wireVersion is the only stream version XEP-0174 speaks.
const wireVersion = "1.0"

// Header is the parsed attribute set of a peer's opening
// <stream:stream> element.
type Header struct {
	To      string
	From    string
	ID      string
	Version string
}

// sendOpen writes the XML declaration and opening <stream:stream> tag
// addressed to "to" from "from", adapted from SendNewStream: a direct
// Fprintf rather than an xml.Encoder, because Go's encoding/xml cannot
// produce the namespaced xmlns:stream attribute the handshake requires.
func sendOpen(w io.Writer, to, from, id string) error {
	if id == "" {
		id = " "
	} else {
		id = ` id='` + id + `' `
	}
	_, err := fmt.Fprintf(w,
		xmlHeader+`<stream:stream%sto='%s' from='%s' version='%s' xmlns='%s' xmlns:stream='%s'>`,
		id, to, from, wireVersion, ns.Client, ns.Stream,
	)
	return err
}

// expectOpen reads tokens from d until the peer's opening <stream:stream>
// element is found, validating the stream and content namespaces along the
// way. Adapted from mellium.im/xmpp/internal.ExpectNewStream.
func expectOpen(ctx context.Context, d *xml.Decoder) (Header, error) {
	var foundHeader bool
	for {
		select {
		case <-ctx.Done():
			return Header{}, ctx.Err()
		default:
		}
		tok, err := d.Token()
		if err != nil {
			return Header{}, IOErrorFrom(err)
		}
		switch t := tok.(type) {
		case xml.ProcInst:
			if !foundHeader && t.Target == "xml" {
				foundHeader = true
				continue
			}
			return Header{}, RestrictedXML
		case xml.StartElement:
			switch {
			case t.Name.Local != "stream":
				return Header{}, BadFormat
			case t.Name.Space != ns.Stream:
				return Header{}, InvalidNamespace
			}
			return headerFromStart(t)
		case xml.EndElement:
			return Header{}, NotWellFormed
		default:
			return Header{}, RestrictedXML
		}
	}
}

func headerFromStart(start xml.StartElement) (Header, error) {
	var h Header
	for _, attr := range start.Attr {
		switch {
		case attr.Name.Space == "" && attr.Name.Local == "to":
			h.To = attr.Value
		case attr.Name.Space == "" && attr.Name.Local == "from":
			h.From = attr.Value
		case attr.Name.Space == "" && attr.Name.Local == "id":
			h.ID = attr.Value
		case attr.Name.Space == "" && attr.Name.Local == "version":
			h.Version = attr.Value
		case attr.Name.Space == "" && attr.Name.Local == "xmlns":
			if attr.Value != ns.Client {
				return h, InvalidNamespace
			}
		case attr.Name.Space == "xmlns" && attr.Name.Local == "stream":
			if attr.Value != ns.Stream {
				return h, InvalidNamespace
			}
		}
	}
	if h.Version != wireVersion {
		return h, UnsupportedVersion
	}
	return h, nil
}
