package stream

import (
	"io"
	"log"
	"time"
)

// Option configures a Stream at construction time.
type Option func(*options)

type options struct {
	logger      *log.Logger
	idleCheck   time.Duration
	idleTimeout time.Duration
	queueDepth  int
}

// defaultIdleCheck is how often the idle watchdog polls last-activity,
// per §4.3.
const defaultIdleCheck = 14 * time.Second

// defaultIdleTimeout is how long a stream may sit silent before the
// watchdog closes it, per §4.3.
const defaultIdleTimeout = 15 * time.Second

// defaultQueueDepth is the writer queue's bounded capacity, per §4.3.
const defaultQueueDepth = 500

func newOptions(opts []Option) *options {
	o := &options{
		logger:      log.New(io.Discard, "", 0),
		idleCheck:   defaultIdleCheck,
		idleTimeout: defaultIdleTimeout,
		queueDepth:  defaultQueueDepth,
	}
	for _, f := range opts {
		f(o)
	}
	return o
}

// Logger sets the debug logger used by a Stream. The default discards all
// output, matching mellium.im/xmpp/conn's Logger option.
func Logger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// IdlePolicy overrides the idle watchdog's poll interval and silence
// threshold. Mainly useful for tests; production callers should use the
// §4.3 defaults (14s / 15s).
func IdlePolicy(check, timeout time.Duration) Option {
	return func(o *options) {
		o.idleCheck = check
		o.idleTimeout = timeout
	}
}

// QueueDepth overrides the writer queue's bounded capacity (default 500).
func QueueDepth(n int) Option {
	return func(o *options) { o.queueDepth = n }
}
