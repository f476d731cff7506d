package discovery_test

import (
	"reflect"
	"strings"
	"testing"

	"go.linklocal.dev/llxmpp/discovery"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	txt := map[string]string{
		"txtvers": "1",
		"nick":    "alice",
		"status":  "avail",
		"1st":     "Alice",
	}
	keys := []string{"txtvers", "1st", "nick", "status"}

	raw := discovery.EncodeTXT(txt, keys)
	got, err := discovery.DecodeTXT(raw)
	if err != nil {
		t.Fatalf("DecodeTXT: %v", err)
	}
	if !reflect.DeepEqual(got, txt) {
		t.Errorf("round trip = %v, want %v", got, txt)
	}
}

func TestDecodeDropsBareKey(t *testing.T) {
	raw := discovery.EncodeTXT(map[string]string{"nick": "bob"}, []string{"nick"})
	raw = append(raw, byte(len("novalue")))
	raw = append(raw, "novalue"...)

	got, err := discovery.DecodeTXT(raw)
	if err != nil {
		t.Fatalf("DecodeTXT: %v", err)
	}
	if _, ok := got["novalue"]; ok {
		t.Error("bare key with no '=' should be dropped, not stored")
	}
	if got["nick"] != "bob" {
		t.Errorf("nick = %q, want bob", got["nick"])
	}
}

func TestEncodeTruncatesOverlongRecord(t *testing.T) {
	v := strings.Repeat("x", 300)
	raw := discovery.EncodeTXT(map[string]string{"msg": v}, []string{"msg"})
	if raw[0] != 255 {
		t.Fatalf("record length byte = %d, want 255", raw[0])
	}
}

func TestDecodeRejectsInvalidUTF8(t *testing.T) {
	raw := []byte{3, 0xff, 0xfe, 0xfd}
	if _, err := discovery.DecodeTXT(raw); err == nil {
		t.Error("expected error decoding invalid UTF-8 TXT record")
	}
}

func TestDecodeRejectsTruncatedRecord(t *testing.T) {
	raw := []byte{10, 'a', '='}
	if _, err := discovery.DecodeTXT(raw); err == nil {
		t.Error("expected error decoding truncated TXT record")
	}
}

func TestEncodeDecodeRecordsRoundTrip(t *testing.T) {
	txt := map[string]string{"txtvers": "1", "nick": "bob", "status": "avail"}
	keys := []string{"txtvers", "nick", "status"}

	recs := discovery.EncodeRecords(txt, keys)
	got, err := discovery.DecodeRecords(recs)
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if !reflect.DeepEqual(got, txt) {
		t.Errorf("round trip = %v, want %v", got, txt)
	}
}

func TestEncodeRecordsTruncatesOverlongRecord(t *testing.T) {
	v := strings.Repeat("x", 300)
	recs := discovery.EncodeRecords(map[string]string{"msg": v}, []string{"msg"})
	if len(recs) != 1 || len(recs[0]) != 255 {
		t.Fatalf("record = %q (len %d), want len 255", recs, len(recs[0]))
	}
}

func TestDecodeRecordsDropsBareKey(t *testing.T) {
	got, err := discovery.DecodeRecords([]string{"nick=bob", "novalue"})
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if _, ok := got["novalue"]; ok {
		t.Error("bare record with no '=' should be dropped, not stored")
	}
	if got["nick"] != "bob" {
		t.Errorf("nick = %q, want bob", got["nick"])
	}
}

func TestDecodeRecordsRejectsInvalidUTF8(t *testing.T) {
	if _, err := discovery.DecodeRecords([]string{string([]byte{0xff, 0xfe})}); err == nil {
		t.Error("expected error decoding invalid UTF-8 record")
	}
}
