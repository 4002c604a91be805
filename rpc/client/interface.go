package client

import (
	"time"
)

// INamedCache is a remote named cache. Keys and values may be any value the
// configured serializer supports, including registered POF user types. An
// expiry of zero keeps an entry until it is removed.
type INamedCache interface {
	// Name returns the name of the cache
	Name() string

	// Get returns the value of key and whether it was present
	Get(key any) (value any, ok bool, err error)

	// Put stores value under key and returns the previous value, if any
	Put(key, value any, expiry time.Duration) (previous any, err error)

	// PutAll stores all entries with the same expiry
	PutAll(entries map[any]any, expiry time.Duration) error

	// GetAll returns the entries of all keys that are present
	GetAll(keys []any) (map[any]any, error)

	// Remove deletes key and returns the removed value and whether it was present
	Remove(key any) (previous any, ok bool, err error)

	// ContainsKey reports whether key is present
	ContainsKey(key any) (bool, error)

	// Size returns the number of entries
	Size() (int64, error)

	// Clear removes all entries and returns how many were removed
	Clear() (int64, error)

	// Keys returns all keys in no particular order
	Keys() ([]any, error)
}
