package serializer

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/dGrid/rpc/common"
)

// benchmarkMessages returns a set of messages for targeted benchmarking
func benchmarkMessages() map[string]common.Message {
	entries := make(map[any]any, 32)
	for i := 0; i < 32; i++ {
		entries[strings.Repeat("k", i+1)] = strings.Repeat("v", 32)
	}
	return map[string]common.Message{
		"Empty": {
			Kind: common.MsgKResponse,
		},
		"SmallKeyOnly": {
			Kind:  common.MsgKGet,
			Cache: "c",
			Key:   "k",
		},
		"LargeKeyOnly": {
			Kind:  common.MsgKGet,
			Cache: "c",
			Key:   "this-is-a-very-large-key-that-could-be-used-for-storing-data-or-as-a-document-id-in-some-cases",
		},
		"SmallValue": {
			Kind:  common.MsgKPut,
			Cache: "c",
			Key:   "key",
			Value: []byte("v"),
		},
		"LargeValue": {
			Kind:  common.MsgKPut,
			Cache: "c",
			Key:   "key",
			Value: make([]byte, 1024*16), // 16KB of data
		},
		"PutAll": {
			Kind:    common.MsgKPutAll,
			Cache:   "c",
			Entries: entries,
		},
		"ErrorMessage": {
			Kind: common.MsgKError,
			Err:  "Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua.",
		},
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations with various message types
func BenchmarkSerialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				b.ReportAllocs()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					if _, err := serializer.Serialize(msg); err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations with various message types
func BenchmarkDeserialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				data, err := serializer.Serialize(msg)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}
				b.ReportAllocs()
				b.SetBytes(int64(len(data)))
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var result common.Message
					if err := serializer.Deserialize(data, &result); err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}
