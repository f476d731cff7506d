// Package idgen generates random identifiers for stanzas and streams.
package idgen

import (
	"crypto/rand"
	"fmt"
)

// Len is the standard length, in hex characters, of a generated identifier.
const Len = 16

// New returns a new random identifier of n hex characters. It panics if the
// system entropy source cannot be read, mirroring the behavior of the
// stanza-ID generator this package is modeled on: a stream or stanza ID is
// needed in hot paths where a caller cannot sensibly recover from a broken
// entropy source.
func New(n int) string {
	b := make([]byte, (n/2)+(n&1))
	read, err := rand.Read(b)
	if err != nil {
		panic(err)
	}
	if read != len(b) {
		panic("idgen: short read from entropy source")
	}
	return fmt.Sprintf("%x", b)[:n]
}
