package llxmpp

import (
	"context"
	"errors"
)

// ErrTimedOut is returned by Collector.Next when no matching stanza arrives
// before the deadline.
var ErrTimedOut = errors.New("llxmpp: collector timed out")

// Collector aggregates stanzas matching a Filter across every stream the
// owning Manager has open, plus every stream opened afterward, until
// Cancel. It exists to correlate a request with a reply that may arrive on
// a different stream than the one the request was sent on (§4.5, §4.6).
type Collector struct {
	mgr    *Manager
	filter Filter
	ch     chan interface{}
	done   chan struct{}
}

// createCollector registers a new Collector with m and returns it. Because
// the Manager dispatches every inbound stanza, from every stream, through
// offerToCollectors before anything else sees it, a Collector does not need
// its own per-stream subscriptions: registering once with the Manager is
// equivalent to subscribing to all current and future streams.
func (m *Manager) createCollector(filter Filter) *Collector {
	c := &Collector{
		mgr:    m,
		filter: filter,
		ch:     make(chan interface{}, 16),
		done:   make(chan struct{}),
	}
	m.mu.Lock()
	m.collectors[c] = struct{}{}
	m.mu.Unlock()
	return c
}

// offer delivers v to c if c's filter accepts it. Called by the Manager's
// dispatcher; never blocks. The channel buffers 16 stanzas; a matching
// stanza offered while the buffer is full is dropped.
func (c *Collector) offer(v interface{}) {
	if !c.filter(v) {
		return
	}
	select {
	case c.ch <- v:
	default:
	}
}

// Next blocks until a matching stanza arrives, ctx is canceled, or the
// Collector is Canceled, returning ErrTimedOut in the latter two cases.
func (c *Collector) Next(ctx context.Context) (interface{}, error) {
	select {
	case v := <-c.ch:
		return v, nil
	case <-c.done:
		return nil, ErrTimedOut
	case <-ctx.Done():
		return nil, ErrTimedOut
	}
}

// Cancel unsubscribes the Collector from its Manager. In-flight Next calls
// return ErrTimedOut.
func (c *Collector) Cancel() {
	c.mgr.mu.Lock()
	delete(c.mgr.collectors, c)
	c.mgr.mu.Unlock()
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}
