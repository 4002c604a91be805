package common

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/spaolacci/murmur3"
)

// ProtocolVersion is the version of the message protocol spoken by this build.
// Peers with a different version refuse the connection during the handshake.
const ProtocolVersion uint32 = 1

// handshakeMagic starts every handshake frame
var handshakeMagic = [4]byte{'D', 'G', 'R', 'D'}

// HandshakeSize is the length of an encoded handshake
const HandshakeSize = 4 + 4 + 8

// ErrBadHandshake is returned when a handshake frame cannot be parsed
var ErrBadHandshake = errors.New("bad handshake")

// Handshake is exchanged as the first frame of every connection
type Handshake struct {
	// Version is the protocol version of the sender
	Version uint32
	// Fingerprint identifies the user types registered at the sender
	Fingerprint uint64
}

// NewHandshake creates the local handshake for a registry fingerprint
func NewHandshake(fingerprint uint64) Handshake {
	return Handshake{Version: ProtocolVersion, Fingerprint: fingerprint}
}

// Marshal encodes the handshake
func (h Handshake) Marshal() []byte {
	b := make([]byte, HandshakeSize)
	copy(b, handshakeMagic[:])
	binary.BigEndian.PutUint32(b[4:8], h.Version)
	binary.BigEndian.PutUint64(b[8:16], h.Fingerprint)
	return b
}

// ParseHandshake decodes a handshake frame
func ParseHandshake(b []byte) (Handshake, error) {
	if len(b) != HandshakeSize {
		return Handshake{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrBadHandshake, HandshakeSize, len(b))
	}
	if [4]byte(b[:4]) != handshakeMagic {
		return Handshake{}, fmt.Errorf("%w: invalid magic %q", ErrBadHandshake, b[:4])
	}
	return Handshake{
		Version:     binary.BigEndian.Uint32(b[4:8]),
		Fingerprint: binary.BigEndian.Uint64(b[8:16]),
	}, nil
}

// String returns a short description of the handshake
func (h Handshake) String() string {
	return fmt.Sprintf("v%d/%016x", h.Version, h.Fingerprint)
}

// CacheId derives the channel id of a named cache. Channel id 0 is reserved
// for the handshake, so a name that hashes to 0 is mapped to 1.
func CacheId(name string) uint64 {
	id := murmur3.Sum64([]byte(name))
	if id == 0 {
		return 1
	}
	return id
}
