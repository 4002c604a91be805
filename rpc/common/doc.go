// Package common provides core data structures and utilities shared across
// the dGrid system. It defines fundamental types, configuration structures,
// and protocol elements used by other packages.
//
// The package focuses on:
//   - Message protocol definition for client and server communication
//   - The POF binding of messages and the protocol type registry
//   - The connection handshake
//   - Configuration structures and logging
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication between components,
//     with a flexible structure that adapts to different operation types.
//     Includes factory methods for creating various request and response messages.
//
//   - MessageKind: Enumeration defining all supported named cache operations
//     and the generic response kinds.
//
//   - NewProtocolContext: Creates the POF registry with Message registered.
//     Applications add their own user types before creating a serializer.
//
//   - Handshake: First frame on every connection, carrying the protocol version
//     and the registry fingerprint.
//
//   - ServerConfig, ClientConfig: Configuration for servers and clients,
//     controlling storage, connection parameters, timeouts and retry behavior.
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging system while providing consistent formatting across the application.
package common
