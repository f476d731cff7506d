// Package jid implements the XMPP address format (RFC 7622), known
// historically as the Jabber ID.
//
// A link-local peer's service name (the DNS-SD instance label) and its JID
// are related but distinct: the service name identifies the presence record,
// while the JID is the address stamped onto stanzas on the wire. FromService
// builds the latter from the former.
package jid

import (
	"encoding/xml"
	"errors"
	"net"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/precis"
)

// JID represents an XMPP address comprising a localpart, a domainpart, and
// an optional resourcepart. The zero value is not a valid JID.
type JID struct {
	localpart    string
	domainpart   string
	resourcepart string
}

// New constructs a JID from its parts, normalizing each according to
// RFC 7622 §3.2/§3.3 (domainpart via IDNA, localpart via PRECIS
// UsernameCaseMapped, resourcepart via PRECIS OpaqueString).
func New(localpart, domainpart, resourcepart string) (*JID, error) {
	if !utf8.ValidString(localpart) || !utf8.ValidString(resourcepart) {
		return nil, errors.New("jid: address contains invalid UTF-8")
	}

	domainpart, err := idna.ToUnicode(domainpart)
	if err != nil {
		return nil, err
	}
	if !utf8.ValidString(domainpart) {
		return nil, errors.New("jid: domainpart contains invalid UTF-8")
	}
	domainpart = strings.TrimSuffix(domainpart, ".")

	localpart, err = precis.UsernameCaseMapped.String(localpart)
	if err != nil {
		return nil, err
	}
	resourcepart, err = precis.OpaqueString.String(resourcepart)
	if err != nil {
		return nil, err
	}

	if err := commonChecks(localpart, domainpart, resourcepart); err != nil {
		return nil, err
	}

	return &JID{localpart: localpart, domainpart: domainpart, resourcepart: resourcepart}, nil
}

// Parse parses the string representation of a JID, eg. "alice@host/res".
func Parse(s string) (*JID, error) {
	localpart, domainpart, resourcepart, err := splitString(s)
	if err != nil {
		return nil, err
	}
	return New(localpart, domainpart, resourcepart)
}

// FromService builds a JID for a XEP-0174 presence with the given service
// name (the DNS-SD instance label, e.g. "alice@host") and link-local domain.
// If the service name is already of the form "local@host" it is used
// directly as the localpart/domainpart pair; otherwise the whole service
// name becomes the localpart of a ".local" JID.
func FromService(serviceName string) (*JID, error) {
	if i := strings.IndexByte(serviceName, '@'); i >= 0 {
		return New(serviceName[:i], serviceName[i+1:], "")
	}
	return New(serviceName, "link.local", "")
}

func splitString(s string) (localpart, domainpart, resourcepart string, err error) {
	parts := strings.SplitAfterN(s, "/", 2)
	if strings.HasSuffix(parts[0], "/") {
		if len(parts) == 2 && parts[1] != "" {
			resourcepart = parts[1]
		} else {
			return "", "", "", errors.New("jid: resourcepart must be larger than 0 bytes")
		}
	}
	norp := strings.TrimSuffix(parts[0], "/")
	nolp := strings.SplitAfterN(norp, "@", 2)
	if nolp[0] == "@" {
		return "", "", "", errors.New("jid: localpart must be larger than 0 bytes")
	}
	switch len(nolp) {
	case 1:
		domainpart = nolp[0]
	case 2:
		domainpart = nolp[1]
		localpart = strings.TrimSuffix(nolp[0], "@")
	}
	return localpart, domainpart, resourcepart, nil
}

func commonChecks(localpart, domainpart, resourcepart string) error {
	if len(localpart) > 1023 {
		return errors.New("jid: localpart must be smaller than 1024 bytes")
	}
	if strings.ContainsAny(localpart, "\"&'/:<>@") {
		return errors.New("jid: localpart contains forbidden characters")
	}
	if len(resourcepart) > 1023 {
		return errors.New("jid: resourcepart must be smaller than 1024 bytes")
	}
	if l := len(domainpart); l < 1 || l > 1023 {
		return errors.New("jid: domainpart must be between 1 and 1023 bytes")
	}
	return checkIP6String(domainpart)
}

func checkIP6String(domainpart string) error {
	if l := len(domainpart); l > 2 && strings.HasPrefix(domainpart, "[") && strings.HasSuffix(domainpart, "]") {
		if ip := net.ParseIP(domainpart[1 : l-1]); ip == nil || ip.To4() != nil {
			return errors.New("jid: domainpart is not a valid IPv6 address")
		}
	}
	return nil
}

// Localpart returns the localpart of the JID, eg. "alice".
func (j *JID) Localpart() string { return j.localpart }

// Domainpart returns the domainpart of the JID, eg. "example.net".
func (j *JID) Domainpart() string { return j.domainpart }

// Resourcepart returns the resourcepart of the JID, or the empty string for
// a bare JID.
func (j *JID) Resourcepart() string { return j.resourcepart }

// Bare returns a copy of the JID without a resourcepart.
func (j *JID) Bare() *JID {
	return &JID{localpart: j.localpart, domainpart: j.domainpart}
}

// Equal reports whether j and j2 are the same address, part for part.
func (j *JID) Equal(j2 *JID) bool {
	if j == nil || j2 == nil {
		return j == j2
	}
	return j.localpart == j2.localpart && j.domainpart == j2.domainpart && j.resourcepart == j2.resourcepart
}

// String returns the string representation of the JID.
func (j *JID) String() string {
	s := j.domainpart
	if j.localpart != "" {
		s = j.localpart + "@" + s
	}
	if j.resourcepart != "" {
		s = s + "/" + j.resourcepart
	}
	return s
}

// MarshalXMLAttr satisfies xml.MarshalerAttr.
func (j *JID) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	if j == nil {
		return xml.Attr{}, nil
	}
	return xml.Attr{Name: name, Value: j.String()}, nil
}

// UnmarshalXMLAttr satisfies xml.UnmarshalerAttr.
func (j *JID) UnmarshalXMLAttr(attr xml.Attr) error {
	parsed, err := Parse(attr.Value)
	if err != nil {
		return err
	}
	*j = *parsed
	return nil
}
