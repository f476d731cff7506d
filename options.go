package llxmpp

import (
	"io"
	"log"
	"time"
)

// Option configures a Manager at construction time, in the functional
// options style of mellium.im/xmpp/conn and mellium.im/xmpp/mux.
type Option func(*options)

type options struct {
	logger       *log.Logger
	portLow      int
	portHigh     int
	replyTimeout time.Duration
	closeDrain   time.Duration
}

// defaultPortLow/defaultPortHigh are the §6.3 TCP listener port range.
const (
	defaultPortLow  = 2300
	defaultPortHigh = 2400
)

// defaultReplyTimeout is §6.3's default IQ correlation window.
const defaultReplyTimeout = 5 * time.Second

// defaultCloseDrain is §5's best-effort writer-queue drain budget on
// Manager.Close.
const defaultCloseDrain = 150 * time.Millisecond

func newOptions(opts []Option) *options {
	o := &options{
		logger:       log.New(io.Discard, "", 0),
		portLow:      defaultPortLow,
		portHigh:     defaultPortHigh,
		replyTimeout: defaultReplyTimeout,
		closeDrain:   defaultCloseDrain,
	}
	for _, f := range opts {
		f(o)
	}
	return o
}

// Logger sets the debug logger used by a Manager and the Streams it opens.
// The default discards all output.
func Logger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// PortRange overrides the §6.3 default `[2300, 2400]` listener port range.
func PortRange(low, high int) Option {
	return func(o *options) {
		o.portLow = low
		o.portHigh = high
	}
}

// ReplyTimeout overrides the default 5s IQ correlation window used by
// GetIqResponse.
func ReplyTimeout(d time.Duration) Option {
	return func(o *options) { o.replyTimeout = d }
}

// CloseDrain overrides the default 150ms best-effort writer-queue drain
// budget used by Close.
func CloseDrain(d time.Duration) Option {
	return func(o *options) { o.closeDrain = d }
}
