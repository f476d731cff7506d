package discovery

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxRecordLen is the DNS TXT per-record length limit: one length byte
// followed by at most this many bytes of payload.
const maxRecordLen = 255

// EncodeTXT serializes txt into the mDNS TXT wire format: a concatenation of
// length-prefixed records, one per key, each `key=value` truncated to 255
// bytes. Key order is not significant on the wire; EncodeTXT emits them in
// the order given by keys so callers can make encoding deterministic for
// tests by passing a sorted slice.
func EncodeTXT(txt map[string]string, keys []string) []byte {
	var out []byte
	for _, rec := range EncodeRecords(txt, keys) {
		out = append(out, byte(len(rec)))
		out = append(out, rec...)
	}
	return out
}

// EncodeRecords returns the same truncated `key=value` records EncodeTXT
// would emit, but as a slice of strings rather than a length-prefixed byte
// blob. This is the form github.com/grandcat/zeroconf's Register/SetText
// API takes directly, so an Adapter binding against it can reuse this
// package's 255-byte truncation rule instead of reimplementing it.
func EncodeRecords(txt map[string]string, keys []string) []string {
	recs := make([]string, 0, len(keys))
	for _, k := range keys {
		v, ok := txt[k]
		if !ok {
			continue
		}
		rec := k + "=" + v
		if len(rec) > maxRecordLen {
			rec = rec[:maxRecordLen]
		}
		recs = append(recs, rec)
	}
	return recs
}

// DecodeRecords is DecodeTXT's counterpart for the []string record form
// github.com/grandcat/zeroconf's ServiceEntry.Text delivers: the same
// UTF-8 validation and bare-key drop rules, applied one pre-split record at
// a time instead of over a length-prefixed blob.
func DecodeRecords(recs []string) (map[string]string, error) {
	out := make(map[string]string, len(recs))
	for _, r := range recs {
		if !utf8.ValidString(r) {
			return nil, fmt.Errorf("discovery: TXT record is not valid UTF-8: %q", r)
		}
		k, v, hasEq := strings.Cut(r, "=")
		if !hasEq {
			continue
		}
		out[k] = v
	}
	return out, nil
}

// DecodeTXT parses the mDNS TXT wire format produced by EncodeTXT (or by any
// other DNS-SD responder) back into a key/value map. A bare `key` record with
// no `=` is silently dropped, per §4.1. Invalid UTF-8 anywhere in the payload
// is a hard failure: it means the advertising peer mis-encoded its presence,
// and the caller should treat the whole record as unusable rather than guess
// at a partial decode.
func DecodeTXT(raw []byte) (map[string]string, error) {
	out := make(map[string]string)
	for len(raw) > 0 {
		n := int(raw[0])
		raw = raw[1:]
		if n > len(raw) {
			return nil, fmt.Errorf("discovery: truncated TXT record, want %d bytes, have %d", n, len(raw))
		}
		rec := raw[:n]
		raw = raw[n:]
		if !utf8.Valid(rec) {
			return nil, fmt.Errorf("discovery: TXT record is not valid UTF-8: %q", rec)
		}
		k, v, hasEq := strings.Cut(string(rec), "=")
		if !hasEq {
			continue
		}
		out[k] = v
	}
	return out, nil
}
