// Package serializer provides message serialization for the dGrid RPC system.
// It defines a common interface and two implementations for serializing and
// deserializing messages between client and server components.
//
// The package focuses on:
//   - Providing a consistent interface for different serialization formats
//   - Encoding arbitrary keys and values, including registered POF user types
//   - Recording codec traffic as metrics
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - NewPofSerializer: Encodes messages as POF user types. Keys and values may be
//     any type known to the protocol context, and the registry fingerprint of the
//     context is exchanged in the connection handshake. This is the default.
//
//   - NewMsgpackSerializer: Encodes messages with msgpack. Useful for plain data
//     keys and values, integers always decode as int64.
//
// Both implementations export dgrid_serializer_* counters and histograms through
// the VictoriaMetrics default set.
//
// Thread Safety:
//
//	All serializer implementations are safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	Serializers are typically created once and reused throughout the application:
//
//	  serializer := serializer.NewPofSerializer(common.NewProtocolContext())
//	  data, err := serializer.Serialize(message)
//	  // ... send data ...
//	  var receivedMsg common.Message
//	  err = serializer.Deserialize(receivedData, &receivedMsg)
package serializer
