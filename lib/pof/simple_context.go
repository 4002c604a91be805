package pof

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/spaolacci/murmur3"
)

var Logger = logger.GetLogger("pof")

// maxAncestorDepth bounds the embedded struct chain walked by subtype resolution
const maxAncestorDepth = 16

// --------------------------------------------------------------------------
// Registry Snapshot
// --------------------------------------------------------------------------

type registryEntry struct {
	class      ClassDescriptor
	serializer IPofSerializer
}

// registrySnapshot is an immutable view of all registrations. Lookups never
// lock; every registration publishes a new snapshot.
type registrySnapshot struct {
	byId     map[int32]registryEntry
	byType   map[reflect.Type]int32
	byName   map[string]int32
	resolved *xsync.MapOf[reflect.Type, int32] // cache of resolve results for this snapshot
}

func newRegistrySnapshot(size int) *registrySnapshot {
	return &registrySnapshot{
		byId:     make(map[int32]registryEntry, size),
		byType:   make(map[reflect.Type]int32, size),
		byName:   make(map[string]int32, size),
		resolved: xsync.NewMapOf[reflect.Type, int32](),
	}
}

func (s *registrySnapshot) clone() *registrySnapshot {
	c := newRegistrySnapshot(len(s.byId) + 1)
	for k, v := range s.byId {
		c.byId[k] = v
	}
	for k, v := range s.byType {
		c.byType[k] = v
	}
	for k, v := range s.byName {
		c.byName[k] = v
	}
	return c
}

// lookup tries t itself, then its pointer or element form
func (s *registrySnapshot) lookup(t reflect.Type) (int32, bool) {
	if id, ok := s.byType[t]; ok {
		return id, true
	}
	if t.Kind() == reflect.Pointer {
		id, ok := s.byType[t.Elem()]
		return id, ok
	}
	id, ok := s.byType[reflect.PointerTo(t)]
	return id, ok
}

// resolve finds the type id for t. With subtypes enabled, a struct that
// embeds a registered struct as its first field resolves to the id of that
// ancestor.
func (s *registrySnapshot) resolve(t reflect.Type, subtypes bool) (int32, bool) {
	if id, ok := s.resolved.Load(t); ok {
		return id, true
	}
	id, ok := s.lookup(t)
	if !ok && subtypes {
		st := t
		for i := 0; i < maxAncestorDepth && !ok; i++ {
			if st.Kind() == reflect.Pointer {
				st = st.Elem()
			}
			if st.Kind() != reflect.Struct || st.NumField() == 0 || !st.Field(0).Anonymous {
				break
			}
			st = st.Field(0).Type
			id, ok = s.lookup(st)
		}
	}
	if ok {
		s.resolved.Store(t, id)
	}
	return id, ok
}

// --------------------------------------------------------------------------
// SimpleContext
// --------------------------------------------------------------------------

// SimpleContext is an IPofContext backed by explicit registrations. Reads
// are lock free; registrations are serialized by a mutex and published by
// swapping an immutable snapshot.
type SimpleContext struct {
	mu         sync.Mutex
	snapshot   atomic.Pointer[registrySnapshot]
	references atomic.Bool
	subtypes   bool
}

// ContextOption configures a SimpleContext
type ContextOption func(*SimpleContext)

// WithReferenceTracking enables identities and references by default for
// every serialize and deserialize call that uses the context
func WithReferenceTracking(enabled bool) ContextOption {
	return func(c *SimpleContext) { c.references.Store(enabled) }
}

// WithSubtypeResolution lets values of unregistered struct types that embed a
// registered struct resolve to the registered ancestor
func WithSubtypeResolution(enabled bool) ContextOption {
	return func(c *SimpleContext) { c.subtypes = enabled }
}

// NewSimpleContext creates an empty registry
func NewSimpleContext(opts ...ContextOption) *SimpleContext {
	c := &SimpleContext{}
	c.snapshot.Store(newRegistrySnapshot(0))
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register binds typeId to the type of prototype (a value, a typed nil
// pointer or a reflect.Type) and serializer. The class name defaults to the
// package qualified type name.
func (c *SimpleContext) Register(typeId int32, prototype any, serializer IPofSerializer) error {
	t := prototypeType(prototype)
	return c.RegisterNamed(typeId, typeName(t), t, serializer)
}

// RegisterNamed is Register with an explicit class name
func (c *SimpleContext) RegisterNamed(typeId int32, name string, prototype any, serializer IPofSerializer) error {
	t := prototypeType(prototype)
	if typeId < 0 {
		return &SchemaError{TypeId: typeId, Name: name, Err: ErrNegativeTypeId}
	}
	if t == nil || serializer == nil {
		return &SchemaError{TypeId: typeId, Name: name, Err: fmt.Errorf("%w: missing type or serializer", ErrUnknownType)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.snapshot.Load()
	if existing, ok := cur.byId[typeId]; ok {
		return &SchemaError{TypeId: typeId, Name: existing.class.Name, Err: ErrDuplicateType}
	}
	if id, ok := cur.byType[t]; ok {
		return &SchemaError{TypeId: id, Name: t.String(), Err: ErrDuplicateType}
	}
	if id, ok := cur.byName[name]; ok {
		return &SchemaError{TypeId: id, Name: name, Err: ErrDuplicateType}
	}

	next := cur.clone()
	next.byId[typeId] = registryEntry{class: ClassDescriptor{Name: name, Type: t}, serializer: serializer}
	next.byType[t] = typeId
	next.byName[name] = typeId
	c.snapshot.Store(next)

	Logger.Debugf("registered user type %d as %s", typeId, name)
	return nil
}

// RegisterPortable registers a pointer type implementing IPortableObject
func (c *SimpleContext) RegisterPortable(typeId int32, prototype IPortableObject) error {
	t := reflect.TypeOf(prototype)
	return c.Register(typeId, t, NewPortableObjectSerializer(t))
}

// RegisterPortableType registers a pointer type that participates in a
// versioned type hierarchy. levels lists the hierarchy levels the local type
// knows; the registered typeId usually is one of them.
func (c *SimpleContext) RegisterPortableType(typeId int32, prototype IPortableType, levels ...TypeLevel) error {
	t := reflect.TypeOf(prototype)
	return c.Register(typeId, t, NewPortableTypeSerializer(t, levels...))
}

// Unregister removes typeId and reports whether it was registered
func (c *SimpleContext) Unregister(typeId int32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.snapshot.Load()
	entry, ok := cur.byId[typeId]
	if !ok {
		return false
	}
	next := cur.clone()
	delete(next.byId, typeId)
	delete(next.byType, entry.class.Type)
	delete(next.byName, entry.class.Name)
	c.snapshot.Store(next)

	Logger.Debugf("unregistered user type %d (%s)", typeId, entry.class.Name)
	return true
}

// TypeIds returns all registered type ids in ascending order
func (c *SimpleContext) TypeIds() []int32 {
	snap := c.snapshot.Load()
	ids := make([]int32, 0, len(snap.byId))
	for id := range snap.byId {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Fingerprint hashes all (type id, class name) pairs. Two processes with
// the same registrations produce the same fingerprint.
func (c *SimpleContext) Fingerprint() uint64 {
	snap := c.snapshot.Load()
	h := murmur3.New64()
	var idBuf [4]byte
	for _, id := range c.TypeIds() {
		binary.BigEndian.PutUint32(idBuf[:], uint32(id))
		_, _ = h.Write(idBuf[:])
		_, _ = h.Write([]byte(snap.byId[id].class.Name))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// SetReferenceEnabled changes the default reference mode of the context
func (c *SimpleContext) SetReferenceEnabled(enabled bool) {
	c.references.Store(enabled)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see pof.IPofContext)
// --------------------------------------------------------------------------

func (c *SimpleContext) SerializerFor(typeId int32) (IPofSerializer, error) {
	if typeId < 0 {
		return nil, &SchemaError{TypeId: typeId, Err: ErrNegativeTypeId}
	}
	entry, ok := c.snapshot.Load().byId[typeId]
	if !ok {
		return nil, &SchemaError{TypeId: typeId, Err: ErrUnknownType}
	}
	return entry.serializer, nil
}

func (c *SimpleContext) TypeIdFor(v any) (int32, error) {
	if v == nil {
		return -1, &SchemaError{TypeId: -1, Name: "<nil>", Err: ErrUnknownType}
	}
	return c.TypeIdForType(reflect.TypeOf(v))
}

func (c *SimpleContext) TypeIdForType(t reflect.Type) (int32, error) {
	if t == nil {
		return -1, &SchemaError{TypeId: -1, Name: "<nil>", Err: ErrUnknownType}
	}
	id, ok := c.snapshot.Load().resolve(t, c.subtypes)
	if !ok {
		return -1, &SchemaError{TypeId: -1, Name: t.String(), Err: ErrUnknownType}
	}
	return id, nil
}

func (c *SimpleContext) TypeIdForName(name string) (int32, error) {
	id, ok := c.snapshot.Load().byName[name]
	if !ok {
		return -1, &SchemaError{TypeId: -1, Name: name, Err: ErrUnknownType}
	}
	return id, nil
}

func (c *SimpleContext) ClassFor(typeId int32) (ClassDescriptor, error) {
	if typeId < 0 {
		return ClassDescriptor{}, &SchemaError{TypeId: typeId, Err: ErrNegativeTypeId}
	}
	entry, ok := c.snapshot.Load().byId[typeId]
	if !ok {
		return ClassDescriptor{}, &SchemaError{TypeId: typeId, Err: ErrUnknownType}
	}
	return entry.class, nil
}

func (c *SimpleContext) IsUserType(v any) bool {
	_, err := c.TypeIdFor(v)
	return err == nil
}

func (c *SimpleContext) IsReferenceEnabled() bool {
	return c.references.Load()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func prototypeType(prototype any) reflect.Type {
	if t, ok := prototype.(reflect.Type); ok {
		return t
	}
	return reflect.TypeOf(prototype)
}

// typeName returns the package qualified name of t, ignoring pointers
func typeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Name() != "" && base.PkgPath() != "" {
		return base.PkgPath() + "." + base.Name()
	}
	return t.String()
}
