package pof

import (
	"errors"
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Sentinel Errors
// --------------------------------------------------------------------------

var (
	ErrTruncated          = errors.New("pof: unexpected end of stream")
	ErrOverflow           = errors.New("pof: packed integer overflow")
	ErrInvalidLength      = errors.New("pof: invalid length")
	ErrUnknownTag         = errors.New("pof: unknown type tag")
	ErrUnsupportedType    = errors.New("pof: unsupported type")
	ErrTypeMismatch       = errors.New("pof: value type does not match requested type")
	ErrDepthExceeded      = errors.New("pof: maximum nesting depth exceeded")
	ErrUnresolvedIdentity = errors.New("pof: reference to unknown identity")
	ErrReferencesDisabled = errors.New("pof: identity reference found but references are disabled")
	ErrCyclicGraph        = errors.New("pof: cyclic object graph requires references to be enabled")
	ErrUnknownType        = errors.New("pof: unknown user type")
	ErrNegativeTypeId     = errors.New("pof: negative type id")
	ErrDuplicateType      = errors.New("pof: duplicate type registration")
)

// --------------------------------------------------------------------------
// Stream Errors (malformed input)
// --------------------------------------------------------------------------

// StreamError reports a malformed POF stream. Off is the byte offset at
// which decoding failed, TypeId and Property locate the enclosing user type
// and property (both -1 when not inside a user type).
type StreamError struct {
	Data     []byte
	Off      int
	TypeId   int32
	Property int32
	Err      error
	Msg      string
}

func streamErrf(data []byte, off int, err error, format string, args ...any) error {
	return &StreamError{Data: data, Off: off, TypeId: -1, Property: -1, Err: err, Msg: fmt.Sprintf(format, args...)}
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

func (e *StreamError) Error() string {
	const prefixLen = 32
	var buf strings.Builder
	buf.WriteString(e.Msg)
	if e.TypeId >= 0 {
		fmt.Fprintf(&buf, " (type %d, property %d)", e.TypeId, e.Property)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	n := len(e.Data)
	if n <= prefixLen {
		fmt.Fprintf(&buf, " at %d: (%d) %x", e.Off, n, e.Data)
	} else {
		fmt.Fprintf(&buf, " at %d: (%d) %x...", e.Off, n, e.Data[:prefixLen])
	}
	return buf.String()
}

// locate attaches user type context to err if it is a StreamError that has
// not been located yet
func locate(err error, typeId, property int32) error {
	var se *StreamError
	if errors.As(err, &se) && se.TypeId < 0 {
		se.TypeId = typeId
		se.Property = property
	}
	return err
}

// --------------------------------------------------------------------------
// Schema Errors (registry lookups)
// --------------------------------------------------------------------------

// SchemaError reports a failed registry lookup or registration
type SchemaError struct {
	TypeId int32
	Name   string
	Err    error
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

func (e *SchemaError) Error() string {
	switch {
	case e.Name != "" && e.TypeId >= 0:
		return fmt.Sprintf("%v: type id %d, class %s", e.Err, e.TypeId, e.Name)
	case e.Name != "":
		return fmt.Sprintf("%v: class %s", e.Err, e.Name)
	default:
		return fmt.Sprintf("%v: type id %d", e.Err, e.TypeId)
	}
}

// --------------------------------------------------------------------------
// Serialization Errors (partial objects)
// --------------------------------------------------------------------------

// SerializationError wraps a failure raised while a user type serializer was
// writing or reading an object
type SerializationError struct {
	Op          string // "serialize" or "deserialize"
	TypeId      int32
	ClassName   string
	RuntimeType string
	Err         error
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

func (e *SerializationError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "pof: failed to %s user type %d", e.Op, e.TypeId)
	if e.ClassName != "" {
		fmt.Fprintf(&buf, " (class %s", e.ClassName)
		if e.RuntimeType != "" && e.RuntimeType != e.ClassName {
			fmt.Fprintf(&buf, ", runtime type %s", e.RuntimeType)
		}
		buf.WriteString(")")
	} else if e.RuntimeType != "" {
		fmt.Fprintf(&buf, " (runtime type %s)", e.RuntimeType)
	}
	buf.WriteString(": ")
	buf.WriteString(e.Err.Error())
	return buf.String()
}

// --------------------------------------------------------------------------
// Protocol Errors (programming errors, raised by panic)
// --------------------------------------------------------------------------

// ProtocolError is the panic value used when a serializer violates the
// reader/writer discipline (out of order properties, use of a closed or
// inactive occurrence, uniform type mismatch). It indicates a bug in the
// calling code and is never returned as an error.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return "pof: protocol violation: " + e.Msg
}

func protocolPanicf(format string, args ...any) {
	panic(&ProtocolError{Msg: fmt.Sprintf(format, args...)})
}
