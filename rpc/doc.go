// Package rpc provides the remote procedure call framework of dGrid. It acts
// as the communication layer between named cache clients and the cache server.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, its POF binding, the connection
//     handshake, configuration structures and logging.
//
//   - transport: Network communication abstractions with a framed, pooled
//     base implementation and a TCP transport on top of it.
//
//   - serializer: Message serialization with POF (the default) and msgpack
//     for converting between Message objects and byte arrays.
//
//   - client: The named cache client, allowing applications to work with
//     remote caches transparently.
//
//   - server: The cache server that handles incoming requests, along with
//     the in-memory and bbolt cache backends.
package rpc
