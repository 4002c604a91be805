package transport

import (
	"errors"
	"net"

	"github.com/ValentinKolb/dGrid/rpc/common"
)

var (
	// ErrClosed is returned by operations on a closed transport
	ErrClosed = errors.New("transport closed")
	// ErrIncompatibleProtocol is returned when the peer speaks another protocol version
	ErrIncompatibleProtocol = errors.New("incompatible protocol version")
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes the channel id (the cache id) and a request as parameters and returns a response
type ServerHandleFunc func(channelId uint64, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a ServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler is called for every request frame received after the handshake
	RegisterHandler(handler ServerHandleFunc)
	// SetHandshake sets the handshake sent to every client
	SetHandshake(h common.Handshake)
	// Listen starts the transport layer and serves incoming requests until Close is called
	Listen(config common.ServerConfig) error
	// Addr returns the address the transport listens on, or nil before Listen
	Addr() net.Addr
	// Close stops listening and closes all open connections
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// SetHandshake sets the handshake sent on every new connection
	SetHandshake(h common.Handshake)
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request on a channel and returns the response
	Send(channelId uint64, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
