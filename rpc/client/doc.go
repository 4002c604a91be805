// Package client implements the RPC client of the dGrid cache. It provides
// INamedCache, a handle to one named cache on a remote server.
//
// The package focuses on:
//   - Transparent RPC access to remote named caches
//   - Integration with the transport and serialization layers
//   - Conversion of server errors into RemoteError values
//
// Key Components:
//
//   - NewNamedCache: Factory function that connects a transport and returns the
//     handle of one cache.
//
//   - Session: A connected transport shared by any number of cache handles.
//     Every cache travels on its own channel, derived from the cache name.
//
//   - GetAs: Typed read helper that converts the decoded value.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:  []string{"localhost:8080"},
//	    RetryCount: 3,
//	  },
//	}
//
//	ctx := common.NewProtocolContext()
//	_ = ctx.RegisterPortable(1000, &Person{})
//
//	people, _ := client.NewNamedCache("people", config, tcp.NewTCPClientTransport(), serializer.NewPofSerializer(ctx))
//	_, _ = people.Put("ada", &Person{Name: "Ada"}, time.Hour)
//	v, ok, _ := people.Get("ada")
//
// Thread Safety:
//
//	All client implementations are thread-safe and can be used concurrently from
//	multiple goroutines without additional synchronization.
package client
