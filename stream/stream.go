package stream

import (
	"context"
	"encoding/xml"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"mellium.im/xmlstream"

	"go.linklocal.dev/llxmpp/internal/idgen"
	"go.linklocal.dev/llxmpp/internal/ns"
	"go.linklocal.dev/llxmpp/stanza"
)

// State is a position in the Stream state machine described in §4.3.
type State int32

const (
	// StateNew is the zero state, before dial or accept has begun.
	StateNew State = iota
	// StateConnecting is an outbound stream that has sent its opening
	// header and is waiting for the peer's.
	StateConnecting
	// StateAwaitingHeader is an inbound stream waiting for the peer's
	// opening header.
	StateAwaitingHeader
	// StateOpen is a fully negotiated stream free to carry stanzas.
	StateOpen
	// StateClosing is an orderly shutdown in progress.
	StateClosing
	// StateClosed is a stream that closed without error.
	StateClosed
	// StateClosedErr is a stream that closed because of an I/O or protocol
	// error.
	StateClosedErr
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateAwaitingHeader:
		return "awaiting_header"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateClosedErr:
		return "closed_err"
	default:
		return "unknown"
	}
}

// Callbacks is the weak, ownership-free handle a Stream uses to reach back
// into whatever manages it. A Stream never holds a pointer to its manager;
// it only ever calls these funcs, per the source's documented anti-pattern
// (a pointer-cycle back-reference) being deliberately avoided here.
type Callbacks struct {
	// LookupRemote is consulted by a responder during the handshake to
	// check whether the presence store already knows the service name the
	// peer's header claims as "from". Returning false fails the handshake
	// with HostUnknown.
	LookupRemote func(serviceName string) bool

	// Dispatch delivers one decoded top-level stanza (a stanza.Message,
	// stanza.IQ, or stanza.Presence, or a stanza.Error for a top-level
	// <error> outside the stream namespace) read off this stream.
	Dispatch func(s *Stream, v interface{})

	// StateChanged is called after every state transition, including the
	// terminal one, so the owner can keep its inbound/outbound maps
	// current.
	StateChanged func(s *Stream, state State)
}

// Stream is a XEP-0174 link-local XML stream bound to a single TCP
// connection.
type Stream struct {
	conn net.Conn
	dec  *xml.Decoder
	enc  *xml.Encoder

	// Outbound reports whether this Stream was opened by dialing out
	// (true) or by accepting an inbound connection (false). The Manager's
	// concurrent-dial tie-break (§4.5) keys off its own outbound/inbound
	// maps, not this field.
	Outbound bool

	local  string
	remote atomic.Value // string

	state atomic.Int32

	lastActivity atomic.Int64 // UnixNano

	queue chan interface{}
	wg    sync.WaitGroup

	closeOnce sync.Once
	closeCh   chan struct{}
	closeErr  atomic.Value // error

	cb   Callbacks
	opts *options
}

// LocalService returns the service name this Stream presents itself as.
func (s *Stream) LocalService() string { return s.local }

// RemoteService returns the peer's service name, populated once the
// handshake completes.
func (s *Stream) RemoteService() string {
	v, _ := s.remote.Load().(string)
	return v
}

// State returns the Stream's current state.
func (s *Stream) State() State { return State(s.state.Load()) }

func (s *Stream) setState(v State) {
	s.state.Store(int32(v))
	if s.cb.StateChanged != nil {
		s.cb.StateChanged(s, v)
	}
}

func (s *Stream) bumpActivity() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// Dial opens an outbound Stream: it connects to addr, writes the initiator
// stream-open header addressed to remoteService, then parses the
// responder's header, per XEP-0174 §4.3 step 1.
func Dial(ctx context.Context, addr, localService, remoteService string, cb Callbacks, opts ...Option) (*Stream, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, IOErrorFrom(err)
	}
	return Negotiate(ctx, conn, localService, remoteService, cb, opts...)
}

// Negotiate drives the initiator side of the handshake over an
// already-connected conn. Dial calls this after its own TCP dial succeeds;
// it is also the entry point for tests that supply an in-memory conn (eg.
// net.Pipe).
func Negotiate(ctx context.Context, conn net.Conn, localService, remoteService string, cb Callbacks, opts ...Option) (*Stream, error) {
	s := newStream(conn, localService, true, cb, opts)
	s.setState(StateConnecting)

	if err := sendOpen(conn, remoteService, localService, idgen.New(idgen.Len)); err != nil {
		s.fail(IOErrorFrom(err))
		return nil, IOErrorFrom(err)
	}
	hdr, err := expectOpen(ctx, s.dec)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	s.remote.Store(hdr.From)
	s.open()
	return s, nil
}

// Accept negotiates an inbound Stream over an already-accepted conn: it
// parses the initiator's header first, consults cb.LookupRemote to decide
// whether the claimed remote service name is known, and only then writes
// its own reply header, per XEP-0174 §4.3 step 2.
func Accept(ctx context.Context, conn net.Conn, localService string, cb Callbacks, opts ...Option) (*Stream, error) {
	s := newStream(conn, localService, false, cb, opts)
	s.setState(StateAwaitingHeader)

	hdr, err := expectOpen(ctx, s.dec)
	if err != nil {
		s.fail(err)
		return nil, err
	}
	if hdr.To != "" && hdr.To != localService {
		err := HostUnknown
		s.fail(err)
		return nil, err
	}
	if cb.LookupRemote != nil && !cb.LookupRemote(hdr.From) {
		_ = sendOpen(conn, hdr.From, localService, idgen.New(idgen.Len))
		_, _ = fmt.Fprint(conn, "</stream:stream>")
		s.closeConn(HostUnknown)
		return nil, HostUnknown
	}
	s.remote.Store(hdr.From)

	if err := sendOpen(conn, hdr.From, localService, idgen.New(idgen.Len)); err != nil {
		s.fail(IOErrorFrom(err))
		return nil, IOErrorFrom(err)
	}
	s.open()
	return s, nil
}

func newStream(conn net.Conn, localService string, outbound bool, cb Callbacks, opts []Option) *Stream {
	o := newOptions(opts)
	s := &Stream{
		conn:     conn,
		dec:      xml.NewDecoder(conn),
		enc:      xml.NewEncoder(conn),
		Outbound: outbound,
		local:    localService,
		queue:    make(chan interface{}, o.queueDepth),
		closeCh:  make(chan struct{}),
		cb:       cb,
		opts:     o,
	}
	s.bumpActivity()
	return s
}

// open transitions a successfully handshaken Stream to StateOpen and starts
// its background goroutines.
func (s *Stream) open() {
	s.setState(StateOpen)
	s.wg.Add(3)
	go s.writeLoop()
	go s.readLoop()
	go s.watchdog()
}

// fail transitions a Stream that never reached StateOpen directly to
// StateClosedErr and releases the connection.
func (s *Stream) fail(err error) {
	s.closeErr.Store(err)
	s.setState(StateClosedErr)
	_ = s.conn.Close()
}

// Send enqueues v for serialization on this Stream's single writer
// goroutine. It blocks if the writer queue (capacity §4.3's 500) is full,
// and returns an error immediately if the Stream is not open.
func (s *Stream) Send(v stanza.Stanza) error {
	if s.State() != StateOpen {
		return fmt.Errorf("stream: send on a stream in state %s", s.State())
	}
	select {
	case s.queue <- v:
		return nil
	case <-s.closeCh:
		return fmt.Errorf("stream: send on a closed stream")
	}
}

func (s *Stream) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case v := <-s.queue:
			if err := s.enc.Encode(v); err != nil {
				s.opts.logger.Printf("stream: write error: %v", err)
				s.closeConn(IOErrorFrom(err))
				return
			}
			if err := s.enc.Flush(); err != nil {
				s.opts.logger.Printf("stream: flush error: %v", err)
				s.closeConn(IOErrorFrom(err))
				return
			}
			s.bumpActivity()
		case <-s.closeCh:
			s.drainAndClose()
			return
		}
	}
}

// drainAndClose flushes whatever is left in the queue best-effort, then
// emits the closing tag and releases the socket, per §4.3's writer
// shutdown contract.
func (s *Stream) drainAndClose() {
	for {
		select {
		case v := <-s.queue:
			if err := s.enc.Encode(v); err != nil {
				return
			}
			_ = s.enc.Flush()
		default:
			_, _ = fmt.Fprint(s.conn, "</stream:stream>")
			_ = s.conn.Close()
			return
		}
	}
}

func (s *Stream) readLoop() {
	defer s.wg.Done()
	for {
		tok, err := s.dec.Token()
		if err != nil {
			s.closeConn(IOErrorFrom(err))
			return
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Space == ns.Stream && t.Name.Local == "stream" {
				s.closeConn(nil)
				return
			}
			s.closeConn(BadFormat)
			return
		case xml.StartElement:
			if t.Name.Space == ns.Stream {
				if t.Name.Local == "error" {
					s.closeConn(s.decodeStreamError(t))
					return
				}
				s.closeConn(Error{Kind: ProtocolError, Condition: "unsupported-stanza-type"})
				return
			}
			v, err := stanza.Decode(s.dec, t)
			if err != nil {
				s.closeConn(Error{Kind: ProtocolError, Condition: "bad-format", Err: err})
				return
			}
			s.bumpActivity()
			if s.cb.Dispatch != nil {
				s.cb.Dispatch(s, v)
			}
		default:
			// Whitespace and other non-element tokens between top-level
			// stanzas are expected and ignored.
		}
	}
}

// decodeStreamError reads the inner condition element of a top-level
// <stream:error> so Close reports a meaningful Condition, draining any
// remaining children with xmlstream.Discard the way session.go advances
// past an element it has already classified.
func (s *Stream) decodeStreamError(start xml.StartElement) Error {
	inner := xmlstream.Inner(s.dec)
	cond := "undefined-condition"
	tok, err := inner.Token()
	if err == nil {
		if se, ok := tok.(xml.StartElement); ok {
			cond = se.Name.Local
		}
	}
	_, _ = xmlstream.Copy(xmlstream.Discard(), inner)
	return Error{Kind: ProtocolError, Condition: cond}
}

func (s *Stream) watchdog() {
	defer s.wg.Done()
	t := time.NewTicker(s.opts.idleCheck)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			last := time.Unix(0, s.lastActivity.Load())
			if time.Since(last) > s.opts.idleTimeout {
				s.closeConn(ConnectionTimeout)
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

// closeConn performs the state transition into StateClosing then the
// terminal state (StateClosed for err == nil, StateClosedErr otherwise),
// and signals the writer/watchdog goroutines to stop. Safe to call
// concurrently and more than once; only the first call has any effect.
func (s *Stream) closeConn(err error) {
	s.closeOnce.Do(func() {
		if err != nil {
			s.closeErr.Store(err)
		}
		s.setState(StateClosing)
		close(s.closeCh)
		go func() {
			s.wg.Wait()
			s.setState(s.terminalState())
		}()
	})
}

// Close begins an orderly shutdown: the writer goroutine drains its queue
// best-effort, emits </stream:stream>, and closes the socket. Close does
// not block on that drain completing; callers that need to bound the wait
// should use CloseWait with a context deadline.
func (s *Stream) Close() error {
	s.closeConn(nil)
	return nil
}

// CloseWait begins an orderly shutdown and waits for the writer, reader,
// and watchdog goroutines to finish and the Stream to reach its terminal
// state, or for ctx to expire, whichever comes first.
func (s *Stream) CloseWait(ctx context.Context) error {
	s.closeConn(nil)
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	// closeConn sets the terminal state from its own goroutine once those
	// goroutines have finished; wait for that transition too.
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for {
		if st := s.State(); st == StateClosed || st == StateClosedErr {
			return nil
		}
		select {
		case <-tick.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Stream) terminalState() State {
	if err, _ := s.closeErr.Load().(error); err != nil {
		return StateClosedErr
	}
	return StateClosed
}

// Err returns the error that caused the Stream to close, or nil for an
// orderly close.
func (s *Stream) Err() error {
	err, _ := s.closeErr.Load().(error)
	return err
}
