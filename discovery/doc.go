// Package discovery binds the link-local session engine to a mDNS/DNS-SD
// implementation through a small interface, so the wire-level discovery
// protocol itself stays swappable. ZeroconfAdapter is the concrete binding
// against github.com/grandcat/zeroconf.
package discovery

// ServiceType is the DNS-SD service type advertised and browsed for
// XEP-0174 presence.
const ServiceType = "_presence._tcp"

// Domain is the mDNS domain presence is scoped to.
const Domain = "local."
