package common

import (
	"encoding/json"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the kind of message.
type Message struct {
	// Kind of message
	Kind MessageKind `json:"kind" msgpack:"kind"`

	// Name of the cache the message is addressed to
	Cache string `json:"cache,omitempty" msgpack:"cache,omitempty"`

	// General fields
	Key     any           `json:"key,omitempty" msgpack:"key,omitempty"`       // Used for: Get, Put, Remove, ContainsKey
	Value   any           `json:"value,omitempty" msgpack:"value,omitempty"`   // Used for: Put (request), Get and Remove (response)
	Entries map[any]any   `json:"-" msgpack:"entries,omitempty"`               // Used for: PutAll (request), GetAll (response)
	Keys    []any         `json:"keys,omitempty" msgpack:"keys,omitempty"`     // Used for: GetAll (request), Keys (response)
	Expiry  time.Duration `json:"expiry,omitempty" msgpack:"expiry,omitempty"` // Used for: Put, PutAll; zero means no expiry

	// Response only fields
	Ok    bool   `json:"ok,omitempty" msgpack:"ok,omitempty"`       // Used for: Get, Remove, ContainsKey responses
	Count int64  `json:"count,omitempty" msgpack:"count,omitempty"` // Used for: Size, Clear responses
	Err   string `json:"err,omitempty" msgpack:"err,omitempty"`     // Empty if no error, otherwise contains the error message
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewGetRequest creates a new Get request
func NewGetRequest(cache string, key any) *Message {
	return &Message{
		Kind:  MsgKGet,
		Cache: cache,
		Key:   key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value any, ok bool, err error) *Message {
	msg := &Message{
		Kind:  MsgKGet,
		Value: value,
		Ok:    ok,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewPutRequest creates a new Put request. An expiry of zero keeps the
// entry until it is removed.
func NewPutRequest(cache string, key, value any, expiry time.Duration) *Message {
	return &Message{
		Kind:   MsgKPut,
		Cache:  cache,
		Key:    key,
		Value:  value,
		Expiry: expiry,
	}
}

// NewPutResponse creates a new Put response carrying the previous value
func NewPutResponse(previous any, ok bool, err error) *Message {
	msg := &Message{
		Kind:  MsgKPut,
		Value: previous,
		Ok:    ok,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewPutAllRequest creates a new PutAll request
func NewPutAllRequest(cache string, entries map[any]any, expiry time.Duration) *Message {
	return &Message{
		Kind:    MsgKPutAll,
		Cache:   cache,
		Entries: entries,
		Expiry:  expiry,
	}
}

// NewPutAllResponse creates a new PutAll response
func NewPutAllResponse(count int64, err error) *Message {
	msg := &Message{
		Kind:  MsgKPutAll,
		Count: count,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewGetAllRequest creates a new GetAll request
func NewGetAllRequest(cache string, keys []any) *Message {
	return &Message{
		Kind:  MsgKGetAll,
		Cache: cache,
		Keys:  keys,
	}
}

// NewGetAllResponse creates a new GetAll response with all keys that were found
func NewGetAllResponse(entries map[any]any, err error) *Message {
	msg := &Message{
		Kind:    MsgKGetAll,
		Entries: entries,
		Count:   int64(len(entries)),
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewRemoveRequest creates a new Remove request
func NewRemoveRequest(cache string, key any) *Message {
	return &Message{
		Kind:  MsgKRemove,
		Cache: cache,
		Key:   key,
	}
}

// NewRemoveResponse creates a new Remove response carrying the removed value
func NewRemoveResponse(previous any, ok bool, err error) *Message {
	msg := &Message{
		Kind:  MsgKRemove,
		Value: previous,
		Ok:    ok,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewContainsKeyRequest creates a new ContainsKey request
func NewContainsKeyRequest(cache string, key any) *Message {
	return &Message{
		Kind:  MsgKContainsKey,
		Cache: cache,
		Key:   key,
	}
}

// NewContainsKeyResponse creates a new ContainsKey response
func NewContainsKeyResponse(ok bool, err error) *Message {
	msg := &Message{
		Kind: MsgKContainsKey,
		Ok:   ok,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewSizeRequest creates a new Size request
func NewSizeRequest(cache string) *Message {
	return &Message{
		Kind:  MsgKSize,
		Cache: cache,
	}
}

// NewSizeResponse creates a new Size response
func NewSizeResponse(count int64, err error) *Message {
	msg := &Message{
		Kind:  MsgKSize,
		Count: count,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewClearRequest creates a new Clear request
func NewClearRequest(cache string) *Message {
	return &Message{
		Kind:  MsgKClear,
		Cache: cache,
	}
}

// NewClearResponse creates a new Clear response with the number of removed entries
func NewClearResponse(count int64, err error) *Message {
	msg := &Message{
		Kind:  MsgKClear,
		Count: count,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewKeysRequest creates a new Keys request
func NewKeysRequest(cache string) *Message {
	return &Message{
		Kind:  MsgKKeys,
		Cache: cache,
	}
}

// NewKeysResponse creates a new Keys response
func NewKeysResponse(keys []any, err error) *Message {
	msg := &Message{
		Kind:  MsgKKeys,
		Keys:  keys,
		Count: int64(len(keys)),
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewResponse creates a generic successful response
func NewResponse() *Message {
	return &Message{Kind: MsgKResponse, Ok: true}
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		Kind: MsgKError,
		Err:  err,
	}
}

// --------------------------------------------------------------------------
// Message Kind Definition
// --------------------------------------------------------------------------

// MessageKind defines the kind of message used in RPC communication.
type MessageKind uint8

var messageKindNames = map[MessageKind]string{
	MsgKUnknown:     "unknown",
	MsgKResponse:    "response",
	MsgKError:       "error",
	MsgKGet:         "get",
	MsgKPut:         "put",
	MsgKPutAll:      "putAll",
	MsgKGetAll:      "getAll",
	MsgKRemove:      "remove",
	MsgKContainsKey: "containsKey",
	MsgKSize:        "size",
	MsgKClear:       "clear",
	MsgKKeys:        "keys",
}

// String returns the string representation of a MessageKind.
func (k MessageKind) String() string {
	if name, ok := messageKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageKind.
// This allows MessageKind to be serialized as a string in JSON.
func (k MessageKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageKind.
func (k *MessageKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for kind, name := range messageKindNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown message kind: %s", s)
}

// --------------------------------------------------------------------------
// Message Kind Constants
// --------------------------------------------------------------------------

const (
	// General message kinds

	MsgKUnknown  MessageKind = iota
	MsgKResponse             // Generic successful response
	MsgKError                // Indicates an error occurred

	// Named cache operations

	MsgKGet         // Read the value of a key
	MsgKPut         // Write a key-value pair, optionally with expiry
	MsgKPutAll      // Write many key-value pairs
	MsgKGetAll      // Read the values of many keys
	MsgKRemove      // Remove a key
	MsgKContainsKey // Check if a key exists
	MsgKSize        // Count the entries of a cache
	MsgKClear       // Remove all entries of a cache
	MsgKKeys        // List all keys of a cache
)
