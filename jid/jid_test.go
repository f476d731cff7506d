package jid_test

import (
	"encoding/xml"
	"testing"

	"go.linklocal.dev/llxmpp/jid"
)

func TestParseRoundTrip(t *testing.T) {
	j, err := jid.Parse("alice@host-a.local/mobile")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got, want := j.Localpart(), "alice"; got != want {
		t.Errorf("Localpart() = %q, want %q", got, want)
	}
	if got, want := j.Domainpart(), "host-a.local"; got != want {
		t.Errorf("Domainpart() = %q, want %q", got, want)
	}
	if got, want := j.Resourcepart(), "mobile"; got != want {
		t.Errorf("Resourcepart() = %q, want %q", got, want)
	}
	if got, want := j.String(), "alice@host-a.local/mobile"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestBareStripsResource(t *testing.T) {
	j, err := jid.Parse("alice@host-a.local/mobile")
	if err != nil {
		t.Fatal(err)
	}
	bare := j.Bare()
	if bare.Resourcepart() != "" {
		t.Errorf("Bare().Resourcepart() = %q, want empty", bare.Resourcepart())
	}
	if !bare.Equal(bare.Bare()) {
		t.Error("Bare() is not idempotent")
	}
}

func TestFromService(t *testing.T) {
	j, err := jid.FromService("alice@host-a")
	if err != nil {
		t.Fatal(err)
	}
	if j.String() != "alice@host-a" {
		t.Errorf("FromService(\"alice@host-a\") = %q", j.String())
	}

	j, err = jid.FromService("bob")
	if err != nil {
		t.Fatal(err)
	}
	if j.Domainpart() != "link.local" {
		t.Errorf("FromService(\"bob\").Domainpart() = %q, want link.local", j.Domainpart())
	}
}

func TestXMLAttrRoundTrip(t *testing.T) {
	j, err := jid.Parse("bob@host-b.local")
	if err != nil {
		t.Fatal(err)
	}
	attr, err := j.MarshalXMLAttr(xml.Name{Local: "from"})
	if err != nil {
		t.Fatal(err)
	}
	var out jid.JID
	if err := out.UnmarshalXMLAttr(attr); err != nil {
		t.Fatal(err)
	}
	if !out.Equal(j) {
		t.Errorf("round trip mismatch: got %v, want %v", out.String(), j.String())
	}
}

func TestEqualNil(t *testing.T) {
	var a, b *jid.JID
	if !a.Equal(b) {
		t.Error("two nil JIDs should be equal")
	}
	c, _ := jid.Parse("x@y")
	if a.Equal(c) || c.Equal(a) {
		t.Error("nil JID should not equal a non-nil JID")
	}
}
