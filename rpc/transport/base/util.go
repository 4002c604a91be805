package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/ValentinKolb/dGrid/rpc/common"
	"github.com/ValentinKolb/dGrid/rpc/transport"
)

const (
	// frameHeaderSize is the size of channel id, request id and length
	frameHeaderSize = 20
	// maxFrameSize bounds the payload a peer may announce
	maxFrameSize = 64 << 20
	// handshakeChannel carries the handshake, it is never a cache id
	handshakeChannel = 0
)

// writeFrame writes a frame to the connection with the format:
// - 8 bytes: channelId (uint64, big endian)
// - 8 bytes: requestID (uint64, big endian)
// - 4 bytes: data length (uint32, big endian)
// - N bytes: data payload
func writeFrame(w io.Writer, channelID uint64, requestID uint64, data []byte) error {
	if len(data) > maxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit of %d bytes", len(data), maxFrameSize)
	}

	// Create the header (8 bytes for channelId + 8 bytes for requestID + 4 bytes for content length)
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint64(header[:8], channelID)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(data)))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(w)
	return err
}

// readFrame reads a frame from the reader using the provided buffer
// If the buffer is too small, it will allocate a new temporary buffer for the data
func readFrame(r io.Reader, buf []byte) (uint64, uint64, []byte, error) {
	// Check if buffer is large enough for header
	if len(buf) < frameHeaderSize {
		buf = make([]byte, frameHeaderSize) // create header buffer
	}

	// Read header
	if _, err := io.ReadFull(r, buf[:frameHeaderSize]); err != nil {
		return 0, 0, nil, err
	}

	// Parse header
	channelID := binary.BigEndian.Uint64(buf[:8])
	requestID := binary.BigEndian.Uint64(buf[8:16])
	contentLength := binary.BigEndian.Uint32(buf[16:20])

	// If no data, return empty slice
	if contentLength == 0 {
		return channelID, requestID, []byte{}, nil
	}
	if contentLength > maxFrameSize {
		return 0, 0, nil, fmt.Errorf("frame of %d bytes exceeds limit of %d bytes", contentLength, maxFrameSize)
	}

	// Check if buffer is large enough for data
	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}

	// Read data
	if _, err := io.ReadFull(r, buf[:contentLength]); err != nil {
		return 0, 0, nil, err
	}

	// Return data
	return channelID, requestID, buf[:contentLength], nil
}

// --------------------------------------------------------------------------
// Handshake
// --------------------------------------------------------------------------

// writeHandshake sends h as the handshake frame
func writeHandshake(w io.Writer, h common.Handshake) error {
	return writeFrame(w, handshakeChannel, 0, h.Marshal())
}

// readHandshake reads the handshake frame of the peer
func readHandshake(r io.Reader) (common.Handshake, error) {
	channelID, _, data, err := readFrame(r, nil)
	if err != nil {
		return common.Handshake{}, err
	}
	if channelID != handshakeChannel {
		return common.Handshake{}, fmt.Errorf("%w: first frame on channel %d", common.ErrBadHandshake, channelID)
	}
	return common.ParseHandshake(data)
}

// checkHandshake compares the handshake of the peer with the local one. A
// differing protocol version is an error, a differing registry fingerprint
// only a warning. A fingerprint of 0 is not compared.
func checkHandshake(local, remote common.Handshake, peer string) error {
	if local.Version != remote.Version {
		return fmt.Errorf("%w: local %d, %s speaks %d", transport.ErrIncompatibleProtocol, local.Version, peer, remote.Version)
	}
	if local.Fingerprint != 0 && remote.Fingerprint != 0 && local.Fingerprint != remote.Fingerprint {
		Logger.Warningf("Type registry of %s differs (local %016x, remote %016x), user types may not decode", peer, local.Fingerprint, remote.Fingerprint)
	}
	return nil
}
