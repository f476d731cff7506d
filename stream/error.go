package stream

import "fmt"

// Kind categorizes a stream-level failure for programmatic inspection,
// separating a transport failure from one caused by a malformed or
// protocol-violating peer.
type Kind int

const (
	// IOError is a transport-level failure: the socket broke, reset, or
	// timed out.
	IOError Kind = iota
	// ProtocolError is a violation of the stream-open handshake or framing
	// rules described by XEP-0174 §4.3.
	ProtocolError
)

func (k Kind) String() string {
	switch k {
	case IOError:
		return "io-error"
	case ProtocolError:
		return "protocol-error"
	default:
		return "unknown"
	}
}

// Error is a stream-level failure, distinct from stanza.Error (a
// stanza-level error condition). Adapted from mellium.im/xmpp/stream's
// RFC 6120 §4.9 stream error taxonomy, narrowed to the conditions a
// link-local stream can actually raise.
type Error struct {
	Kind      Kind
	Condition string
	Err       error
}

// Error satisfies the builtin error interface.
func (e Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stream: %s: %v", e.Condition, e.Err)
	}
	return fmt.Sprintf("stream: %s", e.Condition)
}

// Unwrap exposes the wrapped transport error, if any, to errors.Is/As.
func (e Error) Unwrap() error { return e.Err }

// Stream-level protocol conditions, per the handshake and framing rules of
// XEP-0174 §4.3.
var (
	// BadFormat is sent when the peer's opening stream header or a
	// top-level element cannot be parsed at all.
	BadFormat = Error{Kind: ProtocolError, Condition: "bad-format"}

	// InvalidNamespace is sent when the stream root or its content
	// namespace is anything other than jabber:client.
	InvalidNamespace = Error{Kind: ProtocolError, Condition: "invalid-namespace"}

	// UnsupportedVersion is sent when the peer's stream header declares a
	// version other than 1.0.
	UnsupportedVersion = Error{Kind: ProtocolError, Condition: "unsupported-version"}

	// NotWellFormed is sent when the XML itself is not well-formed.
	NotWellFormed = Error{Kind: ProtocolError, Condition: "not-well-formed"}

	// RestrictedXML is sent for XML constructs a stream must not contain
	// (comments, DTDs, processing instructions other than the XML
	// declaration).
	RestrictedXML = Error{Kind: ProtocolError, Condition: "restricted-xml"}

	// HostUnknown is sent by a responder when the initiator's handshake
	// names a remote service unknown to the local Presence Store.
	HostUnknown = Error{Kind: ProtocolError, Condition: "host-unknown"}

	// ConnectionTimeout is raised by the idle watchdog when a stream has
	// been silent past the idle threshold.
	ConnectionTimeout = Error{Kind: ProtocolError, Condition: "connection-timeout"}
)

// IOErrorFrom wraps a transport-level error (a read/write/dial failure) as
// a stream.Error of Kind IOError.
func IOErrorFrom(err error) Error {
	return Error{Kind: IOError, Condition: "io-error", Err: err}
}
