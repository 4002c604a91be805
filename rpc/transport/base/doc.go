// Package base provides a foundation for transport layers of the dGrid cache RPC
// system, implementing core functionality for RPC communication independent of the
// specific network protocol. It serves as a base layer that can be extended with
// protocol-specific connectors.
//
// The package focuses on:
//   - Protocol-agnostic client and server transport implementations
//   - Performance optimization through connection pooling and buffer reuse
//   - Frame-based message protocol with channelID and requestID tracking
//   - Automatic request routing and response correlation
//   - Robust error handling with retries and reconnection with exponential backoff
//
// Frame format:
//
//	8 bytes channel id | 8 bytes request id | 4 bytes length | payload
//
// The first frame in each direction is the handshake on channel 0. The server
// closes the connection if the protocol versions differ; differing registry
// fingerprints are logged as a warning.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different network protocols.
//
//   - clientTransport: Core client implementation that manages multiple connections
//     with round-robin load balancing. Broken connections are reestablished in the
//     background using jpillora/backoff.
//
//   - serverTransport: Core server implementation that accepts connections and
//     routes requests to the registered handler, with a bounded number of workers
//     per connection.
//
// Thread Safety:
//
//	All public methods are thread-safe. The client transport uses atomic operations
//	and mutexes to ensure concurrent access safety, while the server creates a
//	dedicated goroutine for each connection.
package base
