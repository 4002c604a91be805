package server

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/ValentinKolb/dGrid/lib/pof"
	"github.com/ValentinKolb/dGrid/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
)

var backendLogger = logger.GetLogger("backend")

// ICacheBackend stores the entries of all named caches of a server. Keys are
// compared by their canonical POF encoding, so any value the protocol context
// can encode is a valid key. All methods are safe for concurrent use.
type ICacheBackend interface {
	// Get returns the value of key and whether it was present
	Get(cache string, key any) (value any, ok bool, err error)
	// Put stores value and returns the previous value and whether there was one
	Put(cache string, key, value any, expiry time.Duration) (previous any, ok bool, err error)
	// PutAll stores all entries and returns how many were stored
	PutAll(cache string, entries map[any]any, expiry time.Duration) (int64, error)
	// GetAll returns the entries of all present keys
	GetAll(cache string, keys []any) (map[any]any, error)
	// Remove deletes key and returns the removed value and whether it was present
	Remove(cache string, key any) (previous any, ok bool, err error)
	// ContainsKey reports whether key is present
	ContainsKey(cache string, key any) (bool, error)
	// Size returns the number of live entries
	Size(cache string) (int64, error)
	// Clear removes all entries and returns how many live entries were removed
	Clear(cache string) (int64, error)
	// Keys returns all live keys
	Keys(cache string) ([]any, error)
	// Purge removes expired entries of all caches and returns how many were removed
	Purge() (int, error)
	// Close releases all resources
	Close() error
}

// NewBackend creates the backend selected by config
func NewBackend(config common.ServerConfig, ctx pof.IPofContext) (ICacheBackend, error) {
	switch config.Backend {
	case common.BackendMemory, "":
		return NewMemoryBackend(ctx), nil
	case common.BackendBolt:
		return NewBoltBackend(config.DataDir, ctx)
	}
	return nil, fmt.Errorf("invalid backend: %s", config.Backend)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// canonicalKey returns the POF encoding of the normalized key. All integer
// kinds that fit into int64 share one encoding.
func canonicalKey(ctx pof.IPofContext, key any) (string, error) {
	b, err := pof.Serialize(ctx, normalizeKey(key), pof.WithReferences(false))
	if err != nil {
		return "", fmt.Errorf("unsupported key %v (%T): %w", key, key, err)
	}
	return string(b), nil
}

func normalizeKey(key any) any {
	switch k := key.(type) {
	case int:
		return int64(k)
	case int8:
		return int64(k)
	case int16:
		return int64(k)
	case int32:
		return int64(k)
	case uint8:
		return int64(k)
	case uint16:
		return int64(k)
	case uint32:
		return int64(k)
	case uint:
		if uint64(k) <= math.MaxInt64 {
			return int64(k)
		}
	case uint64:
		if k <= math.MaxInt64 {
			return int64(k)
		}
	}
	return key
}

// checkMapKey rejects keys that cannot be used in a Go map
func checkMapKey(key any) error {
	if key == nil {
		return fmt.Errorf("nil key")
	}
	if !reflect.TypeOf(key).Comparable() {
		return fmt.Errorf("key of type %T cannot be used in a map", key)
	}
	return nil
}

// deadlineOf converts an expiry into an absolute deadline, 0 means none
func deadlineOf(now time.Time, expiry time.Duration) int64 {
	if expiry <= 0 {
		return 0
	}
	return now.Add(expiry).UnixNano()
}

// expired reports whether a deadline has passed
func expired(deadline int64, now time.Time) bool {
	return deadline != 0 && deadline <= now.UnixNano()
}
