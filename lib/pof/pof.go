package pof

import (
	"fmt"
	"reflect"
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

type options struct {
	references bool
	maxDepth   int
}

// Option configures a single Serialize or Deserialize call
type Option func(*options)

// WithReferences overrides the reference mode of the context for one call
func WithReferences(enabled bool) Option {
	return func(o *options) { o.references = enabled }
}

// WithMaxDepth limits the nesting of complex values and user types
func WithMaxDepth(n int) Option {
	return func(o *options) { o.maxDepth = n }
}

func newOptions(ctx IPofContext, opts []Option) options {
	o := options{references: ctx.IsReferenceEnabled(), maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// --------------------------------------------------------------------------
// Entry Points
// --------------------------------------------------------------------------

// Serialize encodes v as one complete POF value
func Serialize(ctx IPofContext, v any, opts ...Option) ([]byte, error) {
	out := NewWriteBuffer(nil)
	if err := SerializeTo(ctx, out, v, opts...); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// SerializeTo appends the encoding of v to out. Nothing is appended if an
// error is returned.
func SerializeTo(ctx IPofContext, out *WriteBuffer, v any, opts ...Option) error {
	start := out.Len()
	s := newWriteSession(ctx, out, newOptions(ctx, opts))
	if err := s.writeValue(noPosition, v); err != nil {
		out.buf = out.buf[:start]
		return err
	}
	return nil
}

// Deserialize decodes one complete POF value from data. Trailing bytes are
// reported as an error.
func Deserialize(ctx IPofContext, data []byte, opts ...Option) (any, error) {
	s := newReadSession(ctx, data, newOptions(ctx, opts))
	v, err := s.readTagged()
	if err != nil {
		return nil, err
	}
	if rem := s.in.Remaining(); rem != 0 {
		return nil, s.errf(ErrInvalidLength, "%d trailing bytes after value", rem)
	}
	return v, nil
}

// DeserializeAs decodes data and converts the result to T
func DeserializeAs[T any](ctx IPofContext, data []byte, opts ...Option) (T, error) {
	v, err := Deserialize(ctx, data, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return Convert[T](v)
}

// ReadAs reads property idx of r and converts it to T
func ReadAs[T any](r IPofReader, idx int32) (T, error) {
	v, err := r.ReadObject(idx)
	if err != nil {
		var zero T
		return zero, err
	}
	return Convert[T](v)
}

// Convert asserts v to T. Values of convertible basic types (for example
// a compact int32 requested as int64) are converted.
func Convert[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	target := reflect.TypeOf(&zero).Elem()
	if s, ok := v.(string); ok && s == "" && target == reflect.TypeOf([]byte(nil)) {
		// an empty octet string shares the zero length marker with ""
		return any([]byte{}).(T), nil
	}
	rv := reflect.ValueOf(v)
	if isNumeric(rv.Kind()) && isNumeric(target.Kind()) && rv.CanConvert(target) {
		return rv.Convert(target).Interface().(T), nil
	}
	if target.Kind() == reflect.Slice {
		if a, ok := toAnySlice(v); ok {
			out := reflect.MakeSlice(target, len(a), len(a))
			for i, e := range a {
				ev := reflect.ValueOf(e)
				if !ev.IsValid() {
					continue
				}
				if !ev.Type().AssignableTo(target.Elem()) {
					if !(isNumeric(ev.Kind()) && isNumeric(target.Elem().Kind())) {
						return zero, fmt.Errorf("%w: element %d is %T, expected %s", ErrTypeMismatch, i, e, target.Elem())
					}
					ev = ev.Convert(target.Elem())
				}
				out.Index(i).Set(ev)
			}
			return out.Interface().(T), nil
		}
	}
	return zero, fmt.Errorf("%w: cannot convert %T to %s", ErrTypeMismatch, v, target)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
