// Package presence implements the link-local Presence Store (§4.2): the
// mapping from a DNS-SD service name to the most recently resolved presence
// data for that peer, plus the local peer's own advertised record.
package presence

import "log"

// Status is the enumerated `status` TXT value (§3, §6.4).
type Status string

// Defined presence statuses.
const (
	Available Status = "avail"
	Away      Status = "away"
	DoNotDist Status = "dnd"
)

// StatusFrom normalizes a raw TXT `status` value to one of the defined
// enum members, logging and falling back to Available for anything else,
// per §6.4 ("any other value is logged and mapped to avail").
func StatusFrom(logger *log.Logger, raw string) Status {
	switch Status(raw) {
	case Available, Away, DoNotDist:
		return Status(raw)
	case "":
		return Available
	default:
		if logger != nil {
			logger.Printf("presence: unrecognized status %q, mapping to avail", raw)
		}
		return Available
	}
}

// Well-known TXT keys, per §3 and §6.3.
const (
	KeyTXTVers  = "txtvers"
	KeyFirst    = "1st"
	KeyLast     = "last"
	KeyNick     = "nick"
	KeyEmail    = "email"
	KeyJID      = "jid"
	KeyStatus   = "status"
	KeyMsg      = "msg"
	KeyHash     = "hash"
	KeyNode     = "node"
	KeyVer      = "ver"
	KeyPortP2PJ = "port.p2pj"
)

// Record is the presence of one peer on the link: a DNS-SD service name,
// its resolved host/port, and its TXT record fields. Two Records are equal
// iff their service name and host match (§3; port is intentionally excluded
// because collision-renaming on registration can change it without the
// identity of the peer changing).
type Record struct {
	ServiceName string
	Host        string
	Port        uint16
	TXT         map[string]string
}

// New builds a Record from a resolved service name, host, port, and decoded
// TXT map. The TXT map is copied so the caller may reuse or mutate its own.
func New(serviceName, host string, port uint16, txt map[string]string) *Record {
	cp := make(map[string]string, len(txt))
	for k, v := range txt {
		cp[k] = v
	}
	return &Record{ServiceName: serviceName, Host: host, Port: port, TXT: cp}
}

// Equal reports whether r and other describe the same peer, by value,
// comparing only service name and host (see Record for why port is
// excluded; this corrects the source's reference-equality bug).
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.ServiceName == other.ServiceName && r.Host == other.Host
}

// Status returns the peer's advertised status, defaulting to Available for
// an absent or unrecognized value.
func (r *Record) Status(logger *log.Logger) Status {
	return StatusFrom(logger, r.TXT[KeyStatus])
}

// Nick returns the peer's advertised nickname, or "" if absent.
func (r *Record) Nick() string { return r.TXT[KeyNick] }

// Msg returns the peer's advertised status message, or "" if absent.
func (r *Record) Msg() string { return r.TXT[KeyMsg] }

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	cp.TXT = make(map[string]string, len(r.TXT))
	for k, v := range r.TXT {
		cp.TXT[k] = v
	}
	return &cp
}
