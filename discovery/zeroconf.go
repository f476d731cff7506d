package discovery

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"

	"github.com/grandcat/zeroconf"
)

// Option configures a ZeroconfAdapter.
type Option func(*options)

type options struct {
	logger *log.Logger
}

// Logger sets the debug logger used by a ZeroconfAdapter. The default
// discards all output.
func Logger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func newOptions(opts []Option) *options {
	o := &options{logger: log.New(io.Discard, "", 0)}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// zeroconfHandle is the Handle concretely returned by ZeroconfAdapter; it
// wraps the *zeroconf.Server for a single registration plus the mutable
// state needed to serve Reannounce/UpdateText without re-registering.
type zeroconfHandle struct {
	server *zeroconf.Server
	mu     sync.Mutex
	name   string
	port   uint16
	txt    map[string]string
}

// ZeroconfAdapter implements Adapter against github.com/grandcat/zeroconf.
type ZeroconfAdapter struct {
	opts *options

	mu            sync.Mutex
	resolver      *zeroconf.Resolver
	obs           Observer
	seen          map[string]bool // instance names currently considered live, for cache-collision housekeeping
	pendingRename *rename         // a Register-time rename Browse hasn't been able to report yet
}

// rename records a local Register-time collision rename that has not yet
// been reported to an Observer, because Browse (which supplies it) hasn't
// run yet.
type rename struct {
	oldName, newName string
}

// NewZeroconfAdapter constructs a ZeroconfAdapter. No network activity
// happens until Register or Browse is called.
func NewZeroconfAdapter(opts ...Option) *ZeroconfAdapter {
	return &ZeroconfAdapter{
		opts: newOptions(opts),
		seen: make(map[string]bool),
	}
}

// sortedTXTKeys returns txt's keys in a stable order, used to make the
// on-wire record order deterministic.
func sortedTXTKeys(txt map[string]string) []string {
	keys := make([]string, 0, len(txt))
	for k := range txt {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Register implements Adapter. github.com/grandcat/zeroconf.Register does
// not report a name collision as a distinct error, so Register retries
// under an altered label ("name (2)", "name (3)", ..., 8 attempts in all)
// whenever zeroconf.Register returns any error. A name already in use on
// the link that zeroconf.Register accepts without an error is registered
// as requested and not renamed.
//
// A successful retry under an altered label leaves the originally
// requested name's entry in the mDNS cache, a known source of phantom
// reads for anyone still holding it; the adapter evicts it from its own
// seen set and, once an Observer is attached, reports the removal and the
// rename so nothing downstream keeps treating the old name as live.
func (a *ZeroconfAdapter) Register(ctx context.Context, serviceName string, port uint16, txt map[string]string) (Handle, string, error) {
	name := serviceName
	var lastErr error
	for attempt := 1; attempt <= 8; attempt++ {
		server, err := zeroconf.Register(name, ServiceType, Domain, int(port), EncodeRecords(txt, sortedTXTKeys(txt)), nil)
		if err == nil {
			a.opts.logger.Printf("discovery: registered %q on port %d", name, port)
			if name != serviceName {
				a.evictStaleRegistration(serviceName, name)
			}
			return &zeroconfHandle{server: server, name: name, port: port, txt: cloneTXT(txt)}, name, nil
		}
		lastErr = err
		a.opts.logger.Printf("discovery: register %q failed (%v), retrying under a new name", name, err)
		name = fmt.Sprintf("%s (%d)", serviceName, attempt+1)
	}
	return nil, "", fmt.Errorf("discovery: register %q: %w", serviceName, lastErr)
}

// evictStaleRegistration purges the originally requested name from the
// adapter's cache-collision housekeeping and hands the rename to the
// Observer, immediately if Browse has already supplied one or stashed for
// delivery once it does.
func (a *ZeroconfAdapter) evictStaleRegistration(oldName, newName string) {
	a.mu.Lock()
	delete(a.seen, oldName)
	obs := a.obs
	if obs == nil {
		a.pendingRename = &rename{oldName: oldName, newName: newName}
	}
	a.mu.Unlock()

	if obs != nil {
		obs.ServiceRemoved(oldName)
		obs.ServiceNameChanged(oldName, newName)
	}
}

// Reannounce implements Adapter by updating the server's advertised TXT
// records with the handle's last-known values, which re-triggers an
// announcement on the wire.
func (a *ZeroconfAdapter) Reannounce(handle Handle) error {
	h, ok := handle.(*zeroconfHandle)
	if !ok {
		return fmt.Errorf("discovery: foreign handle type %T", handle)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.server.SetText(EncodeRecords(h.txt, sortedTXTKeys(h.txt)))
	return nil
}

// UpdateText implements Adapter.
func (a *ZeroconfAdapter) UpdateText(handle Handle, txt map[string]string) error {
	h, ok := handle.(*zeroconfHandle)
	if !ok {
		return fmt.Errorf("discovery: foreign handle type %T", handle)
	}
	h.mu.Lock()
	h.txt = cloneTXT(txt)
	h.server.SetText(EncodeRecords(h.txt, sortedTXTKeys(h.txt)))
	h.mu.Unlock()
	return nil
}

// Unregister implements Adapter.
func (a *ZeroconfAdapter) Unregister(handle Handle) error {
	h, ok := handle.(*zeroconfHandle)
	if !ok {
		return fmt.Errorf("discovery: foreign handle type %T", handle)
	}
	h.server.Shutdown()
	return nil
}

// Browse implements Adapter. grandcat/zeroconf resolves each entry fully
// before delivering it, so ServiceAdded and ServiceResolved are fired back
// to back for every entry rather than on two separate mDNS round trips; the
// two-phase Observer contract is preserved so callers don't need to know
// that about this particular binding.
func (a *ZeroconfAdapter) Browse(ctx context.Context, obs Observer) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("discovery: new resolver: %w", err)
	}
	a.mu.Lock()
	a.resolver = resolver
	a.obs = obs
	pending := a.pendingRename
	a.pendingRename = nil
	a.mu.Unlock()

	if pending != nil {
		obs.ServiceRemoved(pending.oldName)
		obs.ServiceNameChanged(pending.oldName, pending.newName)
	}

	entries := make(chan *zeroconf.ServiceEntry, 16)
	go a.consume(ctx, entries, obs)
	return resolver.Browse(ctx, ServiceType, Domain, entries)
}

func (a *ZeroconfAdapter) consume(ctx context.Context, entries chan *zeroconf.ServiceEntry, obs Observer) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-entries:
			if !ok {
				return
			}
			if entry == nil {
				continue
			}
			a.dispatch(entry, obs)
		}
	}
}

// dispatch applies the cache-collision housekeeping from §9: an entry whose
// instance name we have not seen before is a fresh add; one already marked
// live is a re-resolution (TXT refresh) rather than a second add, and a
// zero-address entry with no TTL left is treated as a removal so a stale
// cache entry for a renamed registration does not linger as a phantom peer.
func (a *ZeroconfAdapter) dispatch(entry *zeroconf.ServiceEntry, obs Observer) {
	name := entry.Instance
	a.mu.Lock()
	wasSeen := a.seen[name]
	if entry.TTL == 0 && len(entry.AddrIPv4) == 0 && len(entry.AddrIPv6) == 0 {
		delete(a.seen, name)
		a.mu.Unlock()
		if wasSeen {
			obs.ServiceRemoved(name)
		}
		return
	}
	a.seen[name] = true
	a.mu.Unlock()

	if !wasSeen {
		obs.ServiceAdded(name)
	}

	txt, err := DecodeRecords(entry.Text)
	if err != nil {
		a.opts.logger.Printf("discovery: dropping presence for %q, bad TXT: %v", name, err)
		return
	}
	obs.ServiceResolved(name, entry.HostName, uint16(entry.Port), txt)
}

// Resolve implements Adapter by issuing a direct Lookup for serviceName; the
// result arrives through the Observer registered with Browse, since
// ZeroconfAdapter shares one resolver across both.
func (a *ZeroconfAdapter) Resolve(ctx context.Context, serviceName string) error {
	a.mu.Lock()
	resolver := a.resolver
	obs := a.obs
	a.mu.Unlock()
	if resolver == nil || obs == nil {
		return fmt.Errorf("discovery: Resolve called before Browse")
	}
	entries := make(chan *zeroconf.ServiceEntry, 1)
	go a.consume(ctx, entries, obs)
	return resolver.Lookup(ctx, serviceName, ServiceType, Domain, entries)
}

func cloneTXT(txt map[string]string) map[string]string {
	cp := make(map[string]string, len(txt))
	for k, v := range txt {
		cp[k] = v
	}
	return cp
}
