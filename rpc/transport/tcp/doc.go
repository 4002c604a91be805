// Package tcp implements TCP socket-based transport for the dGrid cache RPC
// system. It provides concrete implementations of the base package's connector
// interfaces optimized for TCP connections.
//
// This package builds on the base package's transport functionality, inheriting its
// connection pooling, buffer reuse, handshake and request routing. See the base
// package documentation for detailed information on the underlying transport
// mechanisms.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
//
// Socket options (no delay, keep alive, linger and buffer sizes) are applied to
// every connection from common.SocketConf and common.TCPConf. The default server
// buffer size is 512 KB.
package tcp
