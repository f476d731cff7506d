package stanza_test

import (
	"encoding/xml"
	"strings"
	"testing"

	"go.linklocal.dev/llxmpp/stanza"
)

func decodeFirst(t *testing.T, raw string) interface{} {
	t.Helper()
	d := xml.NewDecoder(strings.NewReader(raw))
	for {
		tok, err := d.Token()
		if err != nil {
			t.Fatalf("reading token: %v", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		v, err := stanza.Decode(d, start)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		return v
	}
}

func TestDecodeMessage(t *testing.T) {
	v := decodeFirst(t, `<message xmlns="jabber:client" to="alice@host-a" from="bob@host-b" type="chat" id="m1"><body>hi</body></message>`)
	msg, ok := v.(stanza.Message)
	if !ok {
		t.Fatalf("Decode returned %T, want stanza.Message", v)
	}
	if msg.Body != "hi" {
		t.Errorf("Body = %q, want hi", msg.Body)
	}
	if msg.Type != stanza.ChatMessage {
		t.Errorf("Type = %q, want chat", msg.Type)
	}
	if msg.To.String() != "alice@host-a" {
		t.Errorf("To = %q", msg.To.String())
	}
}

func TestDecodeIQUnknownPayload(t *testing.T) {
	v := decodeFirst(t, `<iq xmlns="jabber:client" type="get" id="q-1" to="alice@host-a" from="bob@host-b"><query xmlns="urn:xmpp:unknown"/></iq>`)
	iq, ok := v.(stanza.IQ)
	if !ok {
		t.Fatalf("Decode returned %T, want stanza.IQ", v)
	}
	if iq.ID != "q-1" {
		t.Errorf("ID = %q, want q-1", iq.ID)
	}
	if iq.Type != stanza.GetIQ {
		t.Errorf("Type = %q, want get", iq.Type)
	}
	if len(iq.Payload) == 0 {
		t.Error("Payload not captured for unrecognized IQ payload")
	}
	if !strings.Contains(string(iq.Payload), "urn:xmpp:unknown") {
		t.Errorf("Payload = %s, missing namespace", iq.Payload)
	}
}

func TestDecodePresence(t *testing.T) {
	v := decodeFirst(t, `<presence xmlns="jabber:client" from="bob@host-b"><status>back soon</status></presence>`)
	pres, ok := v.(stanza.Presence)
	if !ok {
		t.Fatalf("Decode returned %T, want stanza.Presence", v)
	}
	if pres.Status != "back soon" {
		t.Errorf("Status = %q", pres.Status)
	}
}

func TestIQResult(t *testing.T) {
	to, _ := decodeFirst(t, `<iq xmlns="jabber:client" type="get" id="q-2" to="alice@host-a" from="bob@host-b"/>`).(stanza.IQ)
	result := to.Result()
	if result.Type != stanza.ResultIQ {
		t.Errorf("Result().Type = %q, want result", result.Type)
	}
	if !result.To.Equal(to.From) {
		t.Errorf("Result().To = %v, want %v", result.To, to.From)
	}
}
