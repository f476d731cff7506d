// Package stream implements the XEP-0174 link-local Stream: a single TCP
// connection carrying one XML stream, from the stream-open handshake
// through stanza framing to an orderly or errored close.
package stream
