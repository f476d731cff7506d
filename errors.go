package llxmpp

import "fmt"

// Kind categorizes a Manager-level failure for programmatic inspection via
// errors.As, per §7's taxonomy of kinds (not Go types).
type Kind int

const (
	// PeerUnavailable means no presence is known for the target service
	// name.
	PeerUnavailable Kind = iota
	// BindFailed means no free port was available in the configured range.
	BindFailed
	// DiscoveryFailed means the Discovery Adapter's register/browse failed.
	DiscoveryFailed
	// StreamIoError means a per-stream socket read/write failure; only the
	// affected stream is torn down.
	StreamIoError
	// StreamProtocolError means malformed XML, a wrong namespace, or a
	// missing header field on an inbound stream.
	StreamProtocolError
	// UnknownOrigin means an inbound message arrived from a service name
	// with no known presence; the message is dropped.
	UnknownOrigin
	// Timeout means an IQ reply did not arrive within the configured
	// window.
	Timeout
)

func (k Kind) String() string {
	switch k {
	case PeerUnavailable:
		return "peer-unavailable"
	case BindFailed:
		return "bind-failed"
	case DiscoveryFailed:
		return "discovery-failed"
	case StreamIoError:
		return "stream-io-error"
	case StreamProtocolError:
		return "stream-protocol-error"
	case UnknownOrigin:
		return "unknown-origin"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is a Manager-level failure, comparable by Kind the way
// stream.Error and stanza.Error are, per §7's "small comparable error
// structs rather than a generic errors.New soup" convention.
type Error struct {
	Kind        Kind
	ServiceName string
	Err         error
}

// Error satisfies the builtin error interface.
func (e Error) Error() string {
	switch {
	case e.ServiceName != "" && e.Err != nil:
		return fmt.Sprintf("llxmpp: %s: %s: %v", e.Kind, e.ServiceName, e.Err)
	case e.ServiceName != "":
		return fmt.Sprintf("llxmpp: %s: %s", e.Kind, e.ServiceName)
	case e.Err != nil:
		return fmt.Sprintf("llxmpp: %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("llxmpp: %s", e.Kind)
	}
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/As.
func (e Error) Unwrap() error { return e.Err }

// Is reports whether target is an Error of the same Kind, so callers can
// write errors.Is(err, llxmpp.Error{Kind: llxmpp.PeerUnavailable}).
func (e Error) Is(target error) bool {
	t, ok := target.(Error)
	return ok && t.Kind == e.Kind
}
