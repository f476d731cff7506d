// Package chat implements the per-peer Chat Registry: one FIFO message
// channel per remote service name, queuing messages that arrive before a
// listener is attached.
package chat
