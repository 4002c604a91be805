// Package pof implements the Portable Object Format, a compact, self
// describing binary encoding for primitive values, collections and user
// defined types. A value written by one process can be read by another
// that only shares the numeric type ids of the user types involved, and
// unknown properties of newer schema versions survive a read/write cycle.
//
// Core Functionality:
//   - Tag grammar with compact markers for small integers, booleans,
//     empty strings, empty collections, null and special floats
//   - Event driven encoding (WritingHandler) and decoding (Parser) that
//     can be combined with any IPofHandler
//   - Property oriented user type serialization through IPofWriter and
//     IPofReader, including nested occurrences and opaque remainders
//   - A concurrent safe type registry (SimpleContext)
//   - Optional identity tracking for shared and cyclic object graphs
//
// Encoding Model:
//
//	Every value starts with a packed type tag. Negative tags are intrinsic
//	types or compact markers, non negative tags are user type ids. Complex
//	values (collections, arrays, sparse arrays, maps and user types) open a
//	frame on the encoder; every begin call is matched by exactly one
//	EndComplexValue. Sparse frames (sparse arrays and user types) prefix each
//	element with its position and end with a -1 terminator. Inside a sparse
//	frame a value equal to its type's default is omitted entirely, and a
//	reader asking for the missing position gets the default back.
//
//	Uniform frames declare the element type once; the elements are written
//	without their own tag and may not carry an identity.
//
// User Types:
//
//	A user type occurrence writes its header (type id and version id)
//	lazily before the first property or the remainder. Property indices must
//	strictly increase on both sides; violating the order, using a writer or
//	reader after it was closed, or using a parent while a nested occurrence
//	is open panics with a *ProtocolError, since these indicate a bug in a
//	serializer rather than bad input.
//
//	Serializers are registered per type id. Types implementing
//	IPortableObject are handled by NewPortableObjectSerializer, types that
//	are written as a versioned hierarchy of levels by
//	NewPortableTypeSerializer. Both preserve unknown properties through
//	IEvolvable or EvolvableHolder.
//
// Errors:
//
//	Malformed input results in a *StreamError carrying the byte offset and,
//	when raised inside a user type, the type id and property index. Registry
//	problems are reported as *SchemaError, failures of a serializer are
//	wrapped into a *SerializationError naming the type id, the registered
//	class and the runtime type. All of them unwrap to the sentinel errors
//	declared in errors.go.
//
// Thread Safety:
//
//	SimpleContext is safe for concurrent use; lookups never lock. Every
//	Serialize and Deserialize call owns its session state, so any number of
//	calls may share a context. WritingHandler, Parser, WriteBuffer and
//	ReadBuffer are not safe for concurrent use.
//
// Usage Example:
//
//	ctx := pof.NewSimpleContext()
//	if err := ctx.RegisterPortable(1001, &Person{}); err != nil {
//	    // Handle error
//	}
//
//	data, err := pof.Serialize(ctx, &Person{Name: "Ada", Age: 36})
//	if err != nil {
//	    // Handle error
//	}
//
//	p, err := pof.DeserializeAs[*Person](ctx, data)
//
// where Person implements IPortableObject:
//
//	func (p *Person) WriteExternal(w pof.IPofWriter) error {
//	    w.WriteString(0, p.Name)
//	    w.WriteInt32(1, p.Age)
//	    return nil
//	}
//
//	func (p *Person) ReadExternal(r pof.IPofReader) (err error) {
//	    if p.Name, err = r.ReadString(0); err != nil {
//	        return err
//	    }
//	    p.Age, err = r.ReadInt32(1)
//	    return err
//	}
package pof
