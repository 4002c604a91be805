// Package server implements the RPC server of the dGrid named cache.
// It decodes request messages, runs them against a cache backend and
// encodes the responses, along with the backends that hold the entries.
//
// The package focuses on:
//   - Server-side handling of all named cache operations
//   - Pluggable storage through the ICacheBackend interface
//   - Lazy expiry of entries with a background purge
//
// Key Components:
//
//   - ICacheBackend: Interface implemented by every backend. Keys are compared
//     by their canonical POF encoding, so any value the protocol context can
//     encode is a valid key, and integer keys of different widths are equal.
//
//   - NewMemoryBackend: Backend keeping every cache in a concurrent map with a
//     deadline heap for expiring entries.
//
//   - NewBoltBackend: Persistent backend storing every cache in its own bbolt
//     bucket.
//
//   - NewRPCServer: Factory function creating a configured server with the
//     specified transport and serializer mechanisms.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Backend:       common.BackendBolt,
//	  DataDir:       "/var/lib/dgrid",
//	  TimeoutSecond: 5,
//	  LogLevel:      "info",
//	  Transport: common.ServerTransportConfig{
//	    Endpoint: "0.0.0.0:8080",
//	  },
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewPofSerializer(nil),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Every request names its cache, and a request is only accepted on the
// channel derived from that name with common.CacheId. Failures of any kind
// are answered with an error message.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	Serve should be called only once.
package server
