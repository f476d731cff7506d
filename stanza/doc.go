// Package stanza provides the Message, IQ, and Presence stanza types
// exchanged over a XEP-0174 stream.
package stanza
