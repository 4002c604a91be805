package pof

import "reflect"

// ClassDescriptor describes the Go type registered for a user type id
type ClassDescriptor struct {
	Name string
	Type reflect.Type
}

// IPofContext resolves user types to serializers and back. Implementations
// must be safe for concurrent use by any number of serialize and
// deserialize calls.
type IPofContext interface {
	// SerializerFor returns the serializer registered for typeId
	SerializerFor(typeId int32) (IPofSerializer, error)

	// TypeIdFor returns the user type id of the value v
	TypeIdFor(v any) (int32, error)

	// TypeIdForType returns the user type id registered for t (or for the
	// nearest registered ancestor when subtype resolution is enabled)
	TypeIdForType(t reflect.Type) (int32, error)

	// TypeIdForName returns the user type id registered under a class name
	TypeIdForName(name string) (int32, error)

	// ClassFor returns the class descriptor registered for typeId
	ClassFor(typeId int32) (ClassDescriptor, error)

	// IsUserType reports whether v resolves to a registered user type
	IsUserType(v any) bool

	// IsReferenceEnabled reports whether identities and references are used by default
	IsReferenceEnabled() bool
}

// IPofSerializer writes and reads the properties of one user type
type IPofSerializer interface {
	// Serialize writes the properties of v through w
	Serialize(w IPofWriter, v any) error

	// Deserialize creates a value from the properties available through r
	Deserialize(r IPofReader) (any, error)
}

// className resolves the registered class name for diagnostics, or "" if unknown
func className(ctx IPofContext, typeId int32) string {
	if class, err := ctx.ClassFor(typeId); err == nil {
		return class.Name
	}
	return ""
}
