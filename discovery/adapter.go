package discovery

import "context"

// Handle identifies one active registration returned by Adapter.Register.
// Its meaning is adapter-specific; callers only ever pass it back in.
type Handle interface{}

// Adapter is the boundary the link-local session engine consumes to reach a
// mDNS/DNS-SD implementation. The wire-level discovery protocol is
// deliberately not part of this package's concerns; an Adapter only needs to
// satisfy this contract.
type Adapter interface {
	// Register publishes serviceName on ServiceType/Domain with the given
	// port and TXT fields. On a name collision with another responder, the
	// adapter transparently retries with an altered instance label and
	// returns the name it finally succeeded under, which may differ from
	// serviceName.
	Register(ctx context.Context, serviceName string, port uint16, txt map[string]string) (Handle, string, error)

	// Reannounce re-broadcasts the registration behind handle, used after a
	// TXT mutation.
	Reannounce(handle Handle) error

	// UpdateText atomically replaces the TXT field map for handle.
	UpdateText(handle Handle, txt map[string]string) error

	// Unregister withdraws the service behind handle.
	Unregister(handle Handle) error

	// Browse starts watching for _presence._tcp.local. instances and
	// delivers serviceAdded/serviceRemoved/serviceResolved events to obs
	// until ctx is canceled.
	Browse(ctx context.Context, obs Observer) error

	// Resolve requests full resolution (host, port, TXT) of a bare instance
	// name already seen via serviceAdded. The result, if any, arrives
	// asynchronously as a serviceResolved callback on the Observer passed to
	// Browse.
	Resolve(ctx context.Context, serviceName string) error
}

// Observer receives discovery events. Per §4.2's resolution policy, a
// serviceAdded only carries a name; full presence data arrives later via
// ServiceResolved. Implementations must not block.
type Observer interface {
	ServiceAdded(serviceName string)
	ServiceRemoved(serviceName string)
	ServiceResolved(serviceName, host string, port uint16, txt map[string]string)

	// ServiceNameChanged notifies of a post-registration rename of the
	// local presence, forced by a name collision at registration time.
	ServiceNameChanged(oldName, newName string)
}
