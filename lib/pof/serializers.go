package pof

import (
	"fmt"
	"reflect"
	"sort"
)

// --------------------------------------------------------------------------
// Portable Objects
// --------------------------------------------------------------------------

// IPortableObject is implemented by types that know how to write and read
// their own properties
type IPortableObject interface {
	ReadExternal(r IPofReader) error
	WriteExternal(w IPofWriter) error
}

// IEvolvable is implemented by portable objects whose schema may grow. The
// data version is the version of the stream the object was read from, the
// implementation version the version the local type writes. Future data
// holds the properties this implementation did not recognize.
type IEvolvable interface {
	ImplVersion() int32
	DataVersion() int32
	SetDataVersion(v int32)
	FutureData() []byte
	SetFutureData(b []byte)
}

// Evolvable implements the stored half of IEvolvable and is meant to be
// embedded; the embedding type supplies ImplVersion
type Evolvable struct {
	dataVersion int32
	futureData  []byte
}

func (e *Evolvable) DataVersion() int32     { return e.dataVersion }
func (e *Evolvable) SetDataVersion(v int32) { e.dataVersion = v }
func (e *Evolvable) FutureData() []byte     { return e.futureData }
func (e *Evolvable) SetFutureData(b []byte) { e.futureData = b }

// NewPortableObjectSerializer creates the serializer for a type implementing
// IPortableObject. t should be the pointer type (e.g. reflect.TypeOf(&Person{})).
func NewPortableObjectSerializer(t reflect.Type) IPofSerializer {
	return &portableObjectSerializerImpl{typ: t}
}

type portableObjectSerializerImpl struct {
	typ reflect.Type
}

func (s *portableObjectSerializerImpl) Serialize(w IPofWriter, v any) error {
	po, err := asPointer[IPortableObject](v)
	if err != nil {
		return err
	}
	ev, evolvable := po.(IEvolvable)
	if evolvable {
		w.SetVersionId(max(ev.DataVersion(), ev.ImplVersion()))
	}
	if err := po.WriteExternal(w); err != nil {
		return err
	}
	var remainder []byte
	if evolvable {
		remainder = ev.FutureData()
	}
	w.WriteRemainder(remainder)
	return nil
}

func (s *portableObjectSerializerImpl) Deserialize(r IPofReader) (any, error) {
	v := newInstance(s.typ)
	po, ok := v.(IPortableObject)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not implement IPortableObject", ErrTypeMismatch, s.typ)
	}
	r.RegisterIdentity(v)
	ev, evolvable := v.(IEvolvable)
	if evolvable {
		ev.SetDataVersion(r.VersionId())
	}
	if err := po.ReadExternal(r); err != nil {
		return v, err
	}
	remainder, err := r.ReadRemainder()
	if err != nil {
		return v, err
	}
	if evolvable {
		ev.SetFutureData(remainder)
	}
	return v, nil
}

// --------------------------------------------------------------------------
// Function Serializers
// --------------------------------------------------------------------------

// SerializerFuncs adapts a pair of functions to IPofSerializer, for types
// that cannot implement IPortableObject themselves
type SerializerFuncs[T any] struct {
	Write func(w IPofWriter, v T) error
	Read  func(r IPofReader) (T, error)
}

func (f SerializerFuncs[T]) Serialize(w IPofWriter, v any) error {
	t, ok := v.(T)
	if !ok {
		var zero T
		return fmt.Errorf("%w: expected %T, got %T", ErrTypeMismatch, zero, v)
	}
	return f.Write(w, t)
}

func (f SerializerFuncs[T]) Deserialize(r IPofReader) (any, error) {
	return f.Read(r)
}

// --------------------------------------------------------------------------
// Portable Type Hierarchies
// --------------------------------------------------------------------------

// TypeLevel is one level of a versioned type hierarchy. Every level is
// written as its own nested user type whose property index is TypeId.
type TypeLevel struct {
	TypeId      int32
	ImplVersion int32
}

// LevelData is the state kept per hierarchy level between reading and writing
type LevelData struct {
	Version    int32
	FutureData []byte
}

// EvolvableHolder keeps the version and unknown properties of every level
// read from a stream, including levels the local type does not know
type EvolvableHolder struct {
	levels map[int32]LevelData
}

// Get returns the data stored for typeId
func (h *EvolvableHolder) Get(typeId int32) (LevelData, bool) {
	d, ok := h.levels[typeId]
	return d, ok
}

// Set stores the data of typeId
func (h *EvolvableHolder) Set(typeId int32, d LevelData) {
	if h.levels == nil {
		h.levels = make(map[int32]LevelData)
	}
	h.levels[typeId] = d
}

// TypeIds returns the stored level ids in ascending order
func (h *EvolvableHolder) TypeIds() []int32 {
	ids := make([]int32, 0, len(h.levels))
	for id := range h.levels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IsEmpty reports whether nothing has been stored
func (h *EvolvableHolder) IsEmpty() bool { return len(h.levels) == 0 }

// IPortableType is implemented by types that are written as a sequence of
// hierarchy levels. WriteLevel and ReadLevel are called once per level the
// local type knows.
type IPortableType interface {
	WriteLevel(typeId int32, w IPofWriter) error
	ReadLevel(typeId int32, r IPofReader) error
	EvolvableHolder() *EvolvableHolder
}

// NewPortableTypeSerializer creates the serializer for a type hierarchy. t
// is the pointer type, levels the hierarchy levels known locally.
func NewPortableTypeSerializer(t reflect.Type, levels ...TypeLevel) IPofSerializer {
	known := make(map[int32]TypeLevel, len(levels))
	for _, l := range levels {
		known[l.TypeId] = l
	}
	return &portableTypeSerializerImpl{typ: t, known: known}
}

type portableTypeSerializerImpl struct {
	typ   reflect.Type
	known map[int32]TypeLevel
}

// levelIds merges the known levels with the levels kept by holder. Levels
// are written in ascending type id order so that property indices increase.
func (s *portableTypeSerializerImpl) levelIds(holder *EvolvableHolder) []int32 {
	seen := make(map[int32]struct{}, len(s.known))
	ids := make([]int32, 0, len(s.known))
	for id := range s.known {
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, id := range holder.TypeIds() {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *portableTypeSerializerImpl) Serialize(w IPofWriter, v any) error {
	pt, err := asPointer[IPortableType](v)
	if err != nil {
		return err
	}
	holder := pt.EvolvableHolder()
	for _, id := range s.levelIds(holder) {
		data, _ := holder.Get(id)
		nw := w.CreateNestedWriterWithType(id, id)
		level, ok := s.known[id]
		if !ok {
			nw.SetVersionId(data.Version)
			nw.WriteRemainder(data.FutureData)
			continue
		}
		nw.SetVersionId(max(data.Version, level.ImplVersion))
		if err := pt.WriteLevel(id, nw); err != nil {
			return fmt.Errorf("writing level %d: %w", id, err)
		}
		nw.WriteRemainder(data.FutureData)
	}
	w.WriteRemainder(nil)
	return nil
}

func (s *portableTypeSerializerImpl) Deserialize(r IPofReader) (any, error) {
	v := newInstance(s.typ)
	pt, ok := v.(IPortableType)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not implement IPortableType", ErrTypeMismatch, s.typ)
	}
	r.RegisterIdentity(v)
	holder := pt.EvolvableHolder()
	for id := r.NextPropertyIndex(); id >= 0; id = r.NextPropertyIndex() {
		nr, err := r.CreateNestedReader(id)
		if err != nil {
			return v, err
		}
		if _, known := s.known[id]; known {
			if err := pt.ReadLevel(id, nr); err != nil {
				return v, fmt.Errorf("reading level %d: %w", id, err)
			}
		}
		remainder, err := nr.ReadRemainder()
		if err != nil {
			return v, err
		}
		holder.Set(id, LevelData{Version: nr.VersionId(), FutureData: remainder})
	}
	if _, err := r.ReadRemainder(); err != nil {
		return v, err
	}
	return v, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// newInstance allocates a zero value for a pointer type, or a pointer to a
// zero value for a non pointer type
func newInstance(t reflect.Type) any {
	if t.Kind() == reflect.Pointer {
		return reflect.New(t.Elem()).Interface()
	}
	return reflect.New(t).Interface()
}

// asPointer returns v as I, taking the address of a copy when only the
// pointer type implements I
func asPointer[I any](v any) (I, error) {
	if i, ok := v.(I); ok {
		return i, nil
	}
	rv := reflect.ValueOf(v)
	p := reflect.New(rv.Type())
	p.Elem().Set(rv)
	if i, ok := p.Interface().(I); ok {
		return i, nil
	}
	var zero I
	return zero, fmt.Errorf("%w: %T does not implement %s", ErrTypeMismatch, v, reflect.TypeOf(&zero).Elem())
}
