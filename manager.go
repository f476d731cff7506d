package llxmpp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.linklocal.dev/llxmpp/chat"
	"go.linklocal.dev/llxmpp/discovery"
	"go.linklocal.dev/llxmpp/internal/idgen"
	"go.linklocal.dev/llxmpp/jid"
	"go.linklocal.dev/llxmpp/presence"
	"go.linklocal.dev/llxmpp/stanza"
	"go.linklocal.dev/llxmpp/stream"
)

// Manager is the link-local session engine's Session Manager: it owns the
// listening socket, the local presence registration, the inbound/outbound
// stream maps, the packet listener and collector sets, and the Chat
// Registry. The type is named Manager rather than "Session" to avoid
// colliding with the stanza-level session concept this package's teacher
// uses elsewhere.
type Manager struct {
	opts     *options
	adapter  discovery.Adapter
	store    *presence.Store
	chats    *chat.Registry
	unknown  func(serviceName string)
	unknwnMu sync.Mutex

	ln     net.Listener
	handle discovery.Handle

	mu               sync.Mutex
	localServiceName string
	localPort        uint16
	outbound         map[string]*stream.Stream
	inbound          map[string]*stream.Stream
	listeners        []*listenerEntry
	collectors       map[*Collector]struct{}
	dispatchLocks    map[string]*sync.Mutex

	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// New bootstraps a Manager: it binds the first free TCP port in the
// configured range (default [2300, 2400]), registers localServiceName with
// adapter, and spawns the acceptor and discovery-browse tasks, per §4.4's
// Bootstrap steps.
func New(ctx context.Context, adapter discovery.Adapter, localServiceName string, txt map[string]string, opts ...Option) (*Manager, error) {
	o := newOptions(opts)

	ln, port, err := bindFirstFreePort(o.portLow, o.portHigh)
	if err != nil {
		return nil, Error{Kind: BindFailed, Err: err}
	}

	m := &Manager{
		opts:          o,
		adapter:       adapter,
		store:         presence.NewStore(),
		chats:         chat.NewRegistry(),
		ln:            ln,
		localPort:     uint16(port),
		outbound:      make(map[string]*stream.Stream),
		inbound:       make(map[string]*stream.Stream),
		collectors:    make(map[*Collector]struct{}),
		dispatchLocks: make(map[string]*sync.Mutex),
		closeCh:       make(chan struct{}),
	}

	if txt == nil {
		txt = map[string]string{}
	}
	txt[presence.KeyTXTVers] = "1"
	txt[presence.KeyPortP2PJ] = fmt.Sprintf("%d", port)

	handle, finalName, err := adapter.Register(ctx, localServiceName, uint16(port), txt)
	if err != nil {
		_ = ln.Close()
		return nil, Error{Kind: DiscoveryFailed, ServiceName: localServiceName, Err: err}
	}
	m.handle = handle
	m.localServiceName = localServiceName
	if finalName != localServiceName {
		m.opts.logger.Printf("llxmpp: local presence registered as %q (requested %q)", finalName, localServiceName)
		m.ServiceNameChanged(localServiceName, finalName)
	}

	m.wg.Add(1)
	go m.acceptLoop()

	if err := adapter.Browse(ctx, m); err != nil {
		m.opts.logger.Printf("llxmpp: browse failed to start: %v", err)
	}

	return m, nil
}

// bindFirstFreePort binds a TCP listener on the first free port in
// [low, high], per §6.3.
func bindFirstFreePort(low, high int) (net.Listener, int, error) {
	for port := low; port <= high; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			return ln, port, nil
		}
	}
	return nil, 0, fmt.Errorf("llxmpp: no free port in [%d, %d]", low, high)
}

// LocalServiceName returns the service name this Manager finally
// registered under, which may differ from the one requested at New if a
// name collision forced a rename.
func (m *Manager) LocalServiceName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.localServiceName
}

// Store returns the Manager's Presence Store.
func (m *Manager) Store() *presence.Store { return m.store }

// Chats returns the Manager's Chat Registry.
func (m *Manager) Chats() *chat.Registry { return m.chats }

// OnUnknownOrigin registers the state listener notified when an inbound
// chat-type message arrives from a service name with no known presence,
// per §4.4 step 3 and the UnknownOrigin error kind of §7.
func (m *Manager) OnUnknownOrigin(f func(serviceName string)) {
	m.unknwnMu.Lock()
	defer m.unknwnMu.Unlock()
	m.unknown = f
}

func (m *Manager) notifyUnknownOrigin(serviceName string) {
	m.unknwnMu.Lock()
	f := m.unknown
	m.unknwnMu.Unlock()
	if f != nil {
		f(serviceName)
	} else {
		m.opts.logger.Printf("llxmpp: dropping message from unknown origin %q", serviceName)
	}
}

func (m *Manager) acceptLoop() {
	defer m.wg.Done()
	for {
		conn, err := m.ln.Accept()
		if err != nil {
			select {
			case <-m.closeCh:
				return
			default:
				m.opts.logger.Printf("llxmpp: accept error: %v", err)
				return
			}
		}
		m.wg.Add(1)
		go m.acceptOne(conn)
	}
}

// acceptOne negotiates one inbound Stream and, on success, registers it in
// the inbound map, per §4.4's Acceptor loop; two concurrent inbound dials
// run as independent goroutines and never block each other.
func (m *Manager) acceptOne(conn net.Conn) {
	defer m.wg.Done()

	local := m.LocalServiceName()
	cb := stream.Callbacks{
		LookupRemote: func(name string) bool {
			_, ok := m.store.Lookup(name)
			return ok
		},
		Dispatch:     m.dispatch,
		StateChanged: m.onStreamStateChanged,
	}
	s, err := stream.Accept(context.Background(), conn, local, cb, stream.Logger(m.opts.logger))
	if err != nil {
		m.opts.logger.Printf("llxmpp: inbound handshake failed: %v", err)
		return
	}

	m.mu.Lock()
	m.inbound[s.RemoteService()] = s
	m.mu.Unlock()
}

// onStreamStateChanged removes a Stream from whichever map holds it once it
// reaches a terminal state, per §3's Stream lifetime and §9's "weak
// callback, never ownership" design note: the Manager only ever reacts to
// state changes it's told about, it never reaches into the Stream itself.
func (m *Manager) onStreamStateChanged(s *stream.Stream, state stream.State) {
	if state != stream.StateClosed && state != stream.StateClosedErr {
		return
	}
	name := s.RemoteService()
	m.mu.Lock()
	if m.outbound[name] == s {
		delete(m.outbound, name)
	}
	if m.inbound[name] == s {
		delete(m.inbound, name)
	}
	m.mu.Unlock()
}

// getConnection returns an OPEN Stream for serviceName, dialing one if
// necessary, per §4.4's Dialing contract and §4.5's outbound tie-break.
func (m *Manager) getConnection(ctx context.Context, serviceName string) (*stream.Stream, error) {
	m.mu.Lock()
	if s, ok := m.outbound[serviceName]; ok && s.State() == stream.StateOpen {
		m.mu.Unlock()
		return s, nil
	}
	if s, ok := m.inbound[serviceName]; ok && s.State() == stream.StateOpen {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	rec, ok := m.store.Lookup(serviceName)
	if !ok {
		return nil, Error{Kind: PeerUnavailable, ServiceName: serviceName}
	}

	addr := fmt.Sprintf("%s:%d", rec.Host, rec.Port)
	local := m.LocalServiceName()
	cb := stream.Callbacks{
		Dispatch:     m.dispatch,
		StateChanged: m.onStreamStateChanged,
	}
	s, err := stream.Dial(ctx, addr, local, serviceName, cb, stream.Logger(m.opts.logger))
	if err != nil {
		return nil, Error{Kind: StreamIoError, ServiceName: serviceName, Err: err}
	}

	m.mu.Lock()
	m.outbound[serviceName] = s
	m.mu.Unlock()
	return s, nil
}

// SendPacket stamps pkt's from address with the local service name and
// enqueues it on the appropriate stream, dialing one if necessary, per
// §4.4's Outbound send contract. A send on a dead stream transparently
// re-dials.
func (m *Manager) SendPacket(ctx context.Context, pkt stanza.Stanza) error {
	to, _ := pkt.Addr()
	if to == nil {
		return Error{Kind: PeerUnavailable, Err: fmt.Errorf("llxmpp: packet has no destination")}
	}
	serviceName := to.Localpart() + "@" + to.Domainpart()

	from, err := jid.FromService(m.LocalServiceName())
	if err != nil {
		return Error{Kind: StreamProtocolError, Err: err}
	}
	pkt = stampFrom(pkt, from)

	s, err := m.getConnection(ctx, serviceName)
	if err != nil {
		return err
	}
	if err := s.Send(pkt); err != nil {
		return Error{Kind: StreamIoError, ServiceName: serviceName, Err: err}
	}
	return nil
}

// stampFrom returns a copy of pkt with From set to from, satisfying
// invariant 4 of §8 regardless of what the caller set beforehand.
func stampFrom(pkt stanza.Stanza, from *jid.JID) stanza.Stanza {
	switch v := pkt.(type) {
	case stanza.Message:
		v.From = from
		return v
	case stanza.IQ:
		v.From = from
		return v
	case stanza.Presence:
		v.From = from
		return v
	default:
		return pkt
	}
}

// GetIqResponse sends an IQ get/set and waits for the matching result or
// error reply, even if it arrives on a different stream than the request,
// per §4.6's getIqResponse helper. It fails with a Timeout error after the
// Manager's configured reply timeout (default 5s).
func (m *Manager) GetIqResponse(ctx context.Context, iq stanza.IQ) (stanza.IQ, error) {
	if iq.ID == "" {
		iq.ID = idgen.New(idgen.Len)
	}
	id := iq.ID

	col := m.createCollector(func(v interface{}) bool {
		reply, ok := v.(stanza.IQ)
		return ok && reply.ID == id && reply.Type.IsResponse()
	})
	defer col.Cancel()

	if err := m.SendPacket(ctx, iq); err != nil {
		return stanza.IQ{}, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, m.opts.replyTimeout)
	defer cancel()

	v, err := col.Next(waitCtx)
	if err != nil {
		return stanza.IQ{}, Error{Kind: Timeout, ServiceName: id}
	}
	return v.(stanza.IQ), nil
}

// CreateCollector exposes createCollector for callers outside this package
// that need to observe arbitrary stanzas across every stream, per §4.6.
func (m *Manager) CreateCollector(filter Filter) *Collector {
	return m.createCollector(func(v interface{}) bool { return filter(v) })
}

// dispatch is the single per-service dispatcher described in §4.4: every
// stanza arriving on any stream for a given remote service name runs
// through the same critical section, in order: collectors, then
// listeners, then the Chat Registry.
func (m *Manager) dispatch(s *stream.Stream, v interface{}) {
	name := s.RemoteService()
	lock := m.dispatchLockFor(name)
	lock.Lock()
	defer lock.Unlock()

	m.offerToCollectors(v)
	claimed := m.offerToListeners(v)

	if iq, ok := v.(stanza.IQ); ok && !claimed && (iq.Type == stanza.GetIQ || iq.Type == stanza.SetIQ) {
		m.autoReplyFeatureNotImplemented(s, iq)
		return
	}

	msg, ok := v.(stanza.Message)
	if !ok || !msg.Type.Chatable() {
		return
	}
	if _, known := m.store.Lookup(name); !known {
		m.notifyUnknownOrigin(name)
		return
	}
	m.chats.Get(name).Deliver(msg)
}

// autoReplyFeatureNotImplemented answers an inbound IQ get/set that no
// listener claimed with a cancel/feature-not-implemented error, per §6.2's
// MUST. It replies directly on the stream the request arrived on rather
// than going through SendPacket, since the remote identity is already
// established by that stream's handshake.
func (m *Manager) autoReplyFeatureNotImplemented(s *stream.Stream, iq stanza.IQ) {
	reply := iq.Error(stanza.FeatureNotImplementedError())
	from, err := jid.FromService(m.LocalServiceName())
	if err != nil {
		m.opts.logger.Printf("llxmpp: cannot auto-reply to %q: %v", s.RemoteService(), err)
		return
	}
	reply.From = from
	if err := s.Send(reply); err != nil {
		m.opts.logger.Printf("llxmpp: auto-reply feature-not-implemented to %q failed: %v", s.RemoteService(), err)
	}
}

func (m *Manager) dispatchLockFor(serviceName string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.dispatchLocks[serviceName]
	if !ok {
		l = &sync.Mutex{}
		m.dispatchLocks[serviceName] = l
	}
	return l
}

func (m *Manager) offerToCollectors(v interface{}) {
	m.mu.Lock()
	collectors := make([]*Collector, 0, len(m.collectors))
	for c := range m.collectors {
		collectors = append(collectors, c)
	}
	m.mu.Unlock()

	for _, c := range collectors {
		c.offer(v)
	}
}

// offerToListeners offers v to every registered Listener and reports
// whether any of them claimed it, so dispatch can decide whether an
// unclaimed IQ get/set needs an auto-reply.
func (m *Manager) offerToListeners(v interface{}) bool {
	claimed := false
	for _, e := range m.snapshotListeners() {
		if e.filter(v) {
			claimed = true
			e.handle(v)
		}
	}
	return claimed
}

// Close terminates the Manager: it unregisters the local presence, stops
// accepting new connections, and closes every open stream, draining
// writer queues best-effort within the configured CloseDrain budget
// (default 150ms), per §5's Cancellation contract.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.closeCh)
	streams := make([]*stream.Stream, 0, len(m.outbound)+len(m.inbound))
	for _, s := range m.outbound {
		streams = append(streams, s)
	}
	for _, s := range m.inbound {
		streams = append(streams, s)
	}
	m.mu.Unlock()

	_ = m.ln.Close()
	if m.handle != nil {
		_ = m.adapter.Unregister(m.handle)
	}

	var wg sync.WaitGroup
	for _, s := range streams {
		wg.Add(1)
		go func(s *stream.Stream) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), m.opts.closeDrain)
			defer cancel()
			_ = s.CloseWait(ctx)
		}(s)
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(m.opts.closeDrain):
	}

	for c := range m.snapshotCollectors() {
		c.Cancel()
	}
	return nil
}

func (m *Manager) snapshotCollectors() map[*Collector]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[*Collector]struct{}, len(m.collectors))
	for c := range m.collectors {
		cp[c] = struct{}{}
	}
	return cp
}
