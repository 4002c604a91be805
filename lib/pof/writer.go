package pof

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"time"
)

// --------------------------------------------------------------------------
// Writer Interface
// --------------------------------------------------------------------------

// IPofWriter writes the properties of one user type occurrence. Property
// indices must strictly increase. Primitive writes cannot fail; writes of
// objects and collections report schema errors (for example an unregistered
// type). Discipline violations panic with a *ProtocolError.
type IPofWriter interface {
	Context() IPofContext
	UserTypeId() int32
	VersionId() int32
	// SetVersionId sets the version written in the user type header. It must
	// be called before the first property is written.
	SetVersionId(v int32)

	WriteBool(idx int32, b bool)
	WriteOctet(idx int32, b byte)
	WriteChar(idx int32, ch Char)
	WriteInt16(idx int32, n int16)
	WriteInt32(idx int32, n int32)
	WriteInt64(idx int32, n int64)
	WriteBigInt(idx int32, n *big.Int)
	WriteFloat32(idx int32, f float32)
	WriteFloat64(idx int32, f float64)
	WriteDecimal(idx int32, d Decimal)
	WriteString(idx int32, s string)
	WriteBinary(idx int32, b []byte)
	WriteDate(idx int32, d Date)
	WriteTime(idx int32, t Time)
	WriteDateTime(idx int32, t time.Time)
	WriteDuration(idx int32, d time.Duration)
	WriteYearMonthInterval(idx int32, iv YearMonthInterval)
	WriteTimeInterval(idx int32, iv TimeInterval)

	WriteBoolArray(idx int32, a []bool)
	WriteInt16Array(idx int32, a []int16)
	WriteInt32Array(idx int32, a []int32)
	WriteInt64Array(idx int32, a []int64)
	WriteFloat32Array(idx int32, a []float32)
	WriteFloat64Array(idx int32, a []float64)
	WriteStringArray(idx int32, a []string)

	// WriteObject writes any supported value, including registered user types.
	// Default primitives are written explicitly so that ReadObject returns
	// them typed; only nil is omitted.
	WriteObject(idx int32, v any) error
	// WriteObjectArray writes a as T_ARRAY
	WriteObjectArray(idx int32, a []any) error
	// WriteCollection writes c as T_COLLECTION
	WriteCollection(idx int32, c []any) error
	// WriteUniformCollection writes c as T_UNIFORM_COLLECTION; all elements
	// must resolve to the same type
	WriteUniformCollection(idx int32, c []any) error
	WriteMap(idx int32, m map[any]any) error
	WriteSparseArray(idx int32, a SparseArray) error

	// CreateNestedWriter opens a child occurrence with the type id of this
	// writer bound to property idx. This writer cannot be used until the
	// child has been closed with WriteRemainder.
	CreateNestedWriter(idx int32) IPofWriter
	// CreateNestedWriterWithType is CreateNestedWriter with an explicit type id
	CreateNestedWriterWithType(idx int32, typeId int32) IPofWriter

	// WriteRemainder appends previously captured unknown properties and
	// closes the occurrence
	WriteRemainder(b []byte)
}

// --------------------------------------------------------------------------
// Write Session
// --------------------------------------------------------------------------

// writeOccurrence is the state of one open user type on the writer stack
type writeOccurrence struct {
	gen       uint64
	parent    int // index of the enclosing occurrence, -1 at top level
	pos       int32
	typeId    int32
	versionId int32
	identity  int32
	prevProp  int32
	header    bool
	nested    bool // opened by CreateNestedWriter, closing completes the parent property
}

// writeSession holds everything one top level serialize call needs
type writeSession struct {
	ctx      IPofContext
	h        *WritingHandler
	refs     *identityMap // nil when references are disabled
	visiting map[refKey]struct{}
	stack    []writeOccurrence
	gen      uint64
	depth    int
	maxDepth int
	uniform  int // > 0 while writing elements of a uniform frame
}

func newWriteSession(ctx IPofContext, out *WriteBuffer, o options) *writeSession {
	s := &writeSession{
		ctx:      ctx,
		h:        NewWritingHandler(out),
		visiting: make(map[refKey]struct{}),
		stack:    make([]writeOccurrence, 0, 8),
		maxDepth: o.maxDepth,
	}
	if o.references {
		s.refs = newIdentityMap()
	}
	return s
}

func (s *writeSession) push(o writeOccurrence) *userTypeWriter {
	s.gen++
	o.gen = s.gen
	o.parent = len(s.stack) - 1
	o.prevProp = -1
	s.stack = append(s.stack, o)
	return &userTypeWriter{s: s, index: len(s.stack) - 1, gen: s.gen, typeId: o.typeId}
}

func (s *writeSession) ensureHeader(o *writeOccurrence) {
	if !o.header {
		o.header = true
		s.h.BeginUserType(o.pos, o.identity, o.typeId, o.versionId)
	}
}

func (s *writeSession) enter() error {
	s.depth++
	if s.depth > s.maxDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrDepthExceeded, s.maxDepth)
	}
	return nil
}

// writeValue writes any supported value at pos of the current frame
func (s *writeSession) writeValue(pos int32, v any) error {
	h := s.h
	switch v := v.(type) {
	case nil:
		h.OnNullReference(pos)
	case bool:
		h.OnBoolean(pos, v)
	case byte:
		h.OnOctet(pos, v)
	case Char:
		h.OnChar(pos, v)
	case int8:
		h.OnInt16(pos, int16(v))
	case int16:
		h.OnInt16(pos, v)
	case uint16:
		h.OnInt32(pos, int32(v))
	case int32:
		h.OnInt32(pos, v)
	case uint32:
		h.OnInt64(pos, int64(v))
	case int:
		h.OnInt64(pos, int64(v))
	case int64:
		h.OnInt64(pos, v)
	case uint:
		s.writeUnsigned(pos, uint64(v))
	case uint64:
		s.writeUnsigned(pos, v)
	case *big.Int:
		if v == nil {
			h.OnNullReference(pos)
		} else {
			h.OnInt128(pos, v)
		}
	case float32:
		h.OnFloat32(pos, v)
	case float64:
		h.OnFloat64(pos, v)
	case Decimal:
		h.OnDecimal(pos, v)
	case string:
		if err := checkLength(len(v)); err != nil {
			return err
		}
		h.OnCharString(pos, v)
	case []byte:
		if err := checkLength(len(v)); err != nil {
			return err
		}
		if v == nil {
			h.OnNullReference(pos)
		} else {
			h.OnOctetString(pos, v)
		}
	case Date:
		h.OnDate(pos, v)
	case Time:
		h.OnTime(pos, v)
	case time.Time:
		d, t := splitTime(v)
		h.OnDateTime(pos, d, t)
	case time.Duration:
		iv := splitDuration(v)
		h.OnDayTimeInterval(pos, iv.days, iv.hours, iv.minutes, iv.seconds, iv.nanos)
	case YearMonthInterval:
		h.OnYearMonthInterval(pos, v)
	case TimeInterval:
		h.OnTimeInterval(pos, v)
	case []bool:
		writeUniform(s, pos, TBoolean, v, h.OnBoolean)
	case []int16:
		writeUniform(s, pos, TInt16, v, h.OnInt16)
	case []int32:
		writeUniform(s, pos, TInt32, v, h.OnInt32)
	case []int64:
		writeUniform(s, pos, TInt64, v, h.OnInt64)
	case []float32:
		writeUniform(s, pos, TFloat32, v, h.OnFloat32)
	case []float64:
		writeUniform(s, pos, TFloat64, v, h.OnFloat64)
	case []string:
		writeUniform(s, pos, TCharString, v, h.OnCharString)
	case []any:
		if v == nil {
			h.OnNullReference(pos)
			return nil
		}
		return s.writeSequence(pos, TCollection, v)
	case SparseArray:
		return s.writeSparse(pos, v)
	case map[string]string:
		return s.writeMapValue(pos, v, func() error { return s.writeStringMap(pos, v) })
	case map[string]any:
		return s.writeMapValue(pos, v, func() error { return s.writeStringKeysMap(pos, v) })
	default:
		return s.writeReflect(pos, v)
	}
	return nil
}

// writeUnsigned widens unsigned values that do not fit int64, or sit in a
// uniform int128 frame, to int128
func (s *writeSession) writeUnsigned(pos int32, n uint64) {
	if n > math.MaxInt64 || s.h.nextElementType() == TInt128 {
		s.h.OnInt128(pos, new(big.Int).SetUint64(n))
		return
	}
	s.h.OnInt64(pos, int64(n))
}

func writeUniform[T any](s *writeSession, pos int32, tag int32, a []T, write func(int32, T)) {
	if a == nil {
		s.h.OnNullReference(pos)
		return
	}
	s.h.BeginUniformArray(pos, int32(len(a)), tag)
	for i, e := range a {
		write(int32(i), e)
	}
	s.h.EndComplexValue()
}

func (s *writeSession) writeSequence(pos int32, tag int32, a []any) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer func() { s.depth-- }()
	if tag == TArray {
		s.h.BeginArray(pos, int32(len(a)))
	} else {
		s.h.BeginCollection(pos, int32(len(a)))
	}
	for i, e := range a {
		if err := s.writeValue(int32(i), e); err != nil {
			return err
		}
	}
	s.h.EndComplexValue()
	return nil
}

func (s *writeSession) writeUniformSequence(pos int32, a []any) error {
	typeId, err := s.uniformTypeOf(a)
	if err != nil {
		return err
	}
	if err := s.enter(); err != nil {
		return err
	}
	defer func() { s.depth-- }()
	s.h.BeginUniformCollection(pos, int32(len(a)), typeId)
	s.uniform++
	defer func() { s.uniform-- }()
	for i, e := range a {
		if err := s.writeValue(int32(i), e); err != nil {
			return err
		}
	}
	s.h.EndComplexValue()
	return nil
}

// uniformTypeOf returns the common type tag of all elements of a
func (s *writeSession) uniformTypeOf(a []any) (int32, error) {
	typeId := TUnknown
	for i, e := range a {
		t, err := s.typeTagOf(e)
		if err != nil {
			return 0, err
		}
		if i == 0 {
			typeId = t
		} else if t != typeId {
			return 0, fmt.Errorf("%w: element %d is %s, expected %s", ErrTypeMismatch, i, TypeName(t), TypeName(typeId))
		}
	}
	if typeId == TUnknown {
		// an empty uniform collection still needs some element type
		typeId = TCollection
	}
	return typeId, nil
}

// typeTagOf returns the tag a value of v's type is encoded with inside a
// uniform frame. Values whose tag depends on the value itself are rejected.
func (s *writeSession) typeTagOf(v any) (int32, error) {
	switch v.(type) {
	case bool:
		return TBoolean, nil
	case byte:
		return TOctet, nil
	case Char:
		return TChar, nil
	case int8, int16:
		return TInt16, nil
	case uint16, int32:
		return TInt32, nil
	case uint32, int, int64:
		return TInt64, nil
	case uint, uint64, *big.Int:
		return TInt128, nil
	case Decimal:
		return TDecimal128, nil
	case float32:
		return TFloat32, nil
	case float64:
		return TFloat64, nil
	case string:
		return TCharString, nil
	case []byte:
		return TOctetString, nil
	case Date:
		return TDate, nil
	case Time:
		return TTime, nil
	case time.Time:
		return TDateTime, nil
	case time.Duration:
		return TDayTimeInterval, nil
	case YearMonthInterval:
		return TYearMonthInterval, nil
	case TimeInterval:
		return TTimeInterval, nil
	case nil:
		return 0, fmt.Errorf("%w: null element in uniform collection", ErrTypeMismatch)
	}
	return s.ctx.TypeIdFor(v)
}

func (s *writeSession) writeSparse(pos int32, a SparseArray) error {
	if a == nil {
		s.h.OnNullReference(pos)
		return nil
	}
	if err := s.enter(); err != nil {
		return err
	}
	defer func() { s.depth-- }()
	keys := make([]int32, 0, len(a))
	size := int32(0)
	for k := range a {
		if k < 0 {
			return fmt.Errorf("%w: negative sparse array index %d", ErrInvalidLength, k)
		}
		keys = append(keys, k)
		size = max(size, k+1)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	s.h.BeginSparseArray(pos, size)
	for _, k := range keys {
		if err := s.writeValue(k, a[k]); err != nil {
			return err
		}
	}
	s.h.EndComplexValue()
	return nil
}

// writeMapValue applies identity handling to a map before writing it
func (s *writeSession) writeMapValue(pos int32, m any, write func() error) error {
	if reflect.ValueOf(m).IsNil() {
		s.h.OnNullReference(pos)
		return nil
	}
	key, _ := referenceKey(m)
	done, err := s.beginIdentity(pos, key, m)
	if done || err != nil {
		return err
	}
	defer delete(s.visiting, key)
	if err := s.enter(); err != nil {
		return err
	}
	defer func() { s.depth-- }()
	return write()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *writeSession) writeStringMap(pos int32, m map[string]string) error {
	keys := sortedKeys(m)
	s.h.BeginUniformMap(pos, int32(len(m)), TCharString, TCharString)
	for i, k := range keys {
		s.h.OnCharString(int32(i), k)
		s.h.OnCharString(int32(i), m[k])
	}
	s.h.EndComplexValue()
	return nil
}

func (s *writeSession) writeStringKeysMap(pos int32, m map[string]any) error {
	keys := sortedKeys(m)
	s.h.BeginUniformKeysMap(pos, int32(len(m)), TCharString)
	for i, k := range keys {
		s.h.OnCharString(int32(i), k)
		if err := s.writeValue(int32(i), m[k]); err != nil {
			return err
		}
	}
	s.h.EndComplexValue()
	return nil
}

// writeGenericMap writes any map as T_MAP, in a deterministic key order
func (s *writeSession) writeGenericMap(pos int32, rv reflect.Value) error {
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	s.h.BeginMap(pos, int32(len(keys)))
	for i, k := range keys {
		if err := s.writeValue(int32(i), k.Interface()); err != nil {
			return err
		}
		if err := s.writeValue(int32(i), rv.MapIndex(k).Interface()); err != nil {
			return err
		}
	}
	s.h.EndComplexValue()
	return nil
}

// beginIdentity handles references and cycle detection for an eligible
// value. done reports that a reference has been written instead of the value.
func (s *writeSession) beginIdentity(pos int32, key refKey, v any) (done bool, err error) {
	if s.refs != nil && s.uniform == 0 {
		if id, ok := s.refs.lookup(key); ok {
			s.h.OnIdentityReference(pos, id)
			return true, nil
		}
		s.h.RegisterIdentity(s.refs.register(key))
	} else if _, ok := s.visiting[key]; ok {
		return false, fmt.Errorf("%w: %T", ErrCyclicGraph, v)
	}
	s.visiting[key] = struct{}{}
	return false, nil
}

// writeReflect handles registered user types and all types that are only
// supported through reflection
func (s *writeSession) writeReflect(pos int32, v any) error {
	rv := reflect.ValueOf(v)
	if (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Map || rv.Kind() == reflect.Slice) && rv.IsNil() {
		s.h.OnNullReference(pos)
		return nil
	}

	if typeId, err := s.ctx.TypeIdFor(v); err == nil {
		return s.writeUserType(pos, v, typeId)
	}

	switch rv.Kind() {
	case reflect.Pointer:
		return s.writeValue(pos, rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		a := make([]any, rv.Len())
		for i := range a {
			a[i] = rv.Index(i).Interface()
		}
		return s.writeSequence(pos, TCollection, a)
	case reflect.Map:
		return s.writeMapValue(pos, v, func() error { return s.writeGenericMap(pos, rv) })
	}
	return &SchemaError{TypeId: -1, Name: rv.Type().String(), Err: ErrUnknownType}
}

// writeUserType writes v through the serializer registered for typeId
func (s *writeSession) writeUserType(pos int32, v any, typeId int32) error {
	ser, err := s.ctx.SerializerFor(typeId)
	if err != nil {
		return err
	}
	identity := noIdentity
	if key, ok := referenceKey(v); ok {
		if s.refs != nil && s.uniform == 0 {
			if id, seen := s.refs.lookup(key); seen {
				s.h.OnIdentityReference(pos, id)
				return nil
			}
			identity = s.refs.register(key)
		} else if _, busy := s.visiting[key]; busy {
			return s.wrapError(typeId, v, fmt.Errorf("%w: %T", ErrCyclicGraph, v))
		}
		s.visiting[key] = struct{}{}
		defer delete(s.visiting, key)
	}
	if err := s.enter(); err != nil {
		return err
	}
	defer func() { s.depth-- }()

	uniform := s.uniform
	s.uniform = 0
	defer func() { s.uniform = uniform }()

	w := s.push(writeOccurrence{pos: pos, typeId: typeId, identity: identity})
	if err := ser.Serialize(w, v); err != nil {
		s.stack = s.stack[:w.index]
		return s.wrapError(typeId, v, err)
	}
	if w.isOpen() {
		if w.index != len(s.stack)-1 {
			protocolPanicf("nested writer for property %d of type %d was not closed", s.stack[w.index+1].pos, typeId)
		}
		w.WriteRemainder(nil)
	}
	return nil
}

func (s *writeSession) wrapError(typeId int32, v any, err error) error {
	var se *SerializationError
	if errors.As(err, &se) {
		return err
	}
	return &SerializationError{
		Op:          "serialize",
		TypeId:      typeId,
		ClassName:   className(s.ctx, typeId),
		RuntimeType: fmt.Sprintf("%T", v),
		Err:         err,
	}
}

// --------------------------------------------------------------------------
// User Type Writer
// --------------------------------------------------------------------------

// userTypeWriter is a handle to one occurrence on the session stack. The
// generation detects handles whose occurrence has been closed.
type userTypeWriter struct {
	s      *writeSession
	index  int
	gen    uint64
	typeId int32
}

func (w *userTypeWriter) isOpen() bool {
	return w.index < len(w.s.stack) && w.s.stack[w.index].gen == w.gen
}

// occ returns the occurrence of w, which must be open and innermost
func (w *userTypeWriter) occ() *writeOccurrence {
	if !w.isOpen() {
		protocolPanicf("writer for type %d used after it was closed", w.typeId)
	}
	if w.index != len(w.s.stack)-1 {
		protocolPanicf("writer for type %d used while the nested writer for property %d is open",
			w.typeId, w.s.stack[w.index+1].pos)
	}
	return &w.s.stack[w.index]
}

// property validates idx and emits the header if needed
func (w *userTypeWriter) property(idx int32) {
	o := w.occ()
	if idx < 0 {
		protocolPanicf("negative property index %d for type %d", idx, o.typeId)
	}
	if idx <= o.prevProp {
		protocolPanicf("property %d of type %d written after property %d", idx, o.typeId, o.prevProp)
	}
	w.s.ensureHeader(o)
	o.prevProp = idx
}

// --------------------------------------------------------------------------
// Interface Methods (docu see pof.IPofWriter)
// --------------------------------------------------------------------------

func (w *userTypeWriter) Context() IPofContext { return w.s.ctx }

func (w *userTypeWriter) UserTypeId() int32 { return w.typeId }

func (w *userTypeWriter) VersionId() int32 {
	if !w.isOpen() {
		return defaultVersionId
	}
	return w.s.stack[w.index].versionId
}

func (w *userTypeWriter) SetVersionId(v int32) {
	o := w.occ()
	if o.header {
		protocolPanicf("version of type %d set after the header was written", o.typeId)
	}
	if v < 0 {
		protocolPanicf("negative version id %d for type %d", v, o.typeId)
	}
	o.versionId = v
}

func (w *userTypeWriter) WriteBool(idx int32, b bool) {
	w.property(idx)
	w.s.h.OnBoolean(idx, b)
}

func (w *userTypeWriter) WriteOctet(idx int32, b byte) {
	w.property(idx)
	w.s.h.OnOctet(idx, b)
}

func (w *userTypeWriter) WriteChar(idx int32, ch Char) {
	w.property(idx)
	w.s.h.OnChar(idx, ch)
}

func (w *userTypeWriter) WriteInt16(idx int32, n int16) {
	w.property(idx)
	w.s.h.OnInt16(idx, n)
}

func (w *userTypeWriter) WriteInt32(idx int32, n int32) {
	w.property(idx)
	w.s.h.OnInt32(idx, n)
}

func (w *userTypeWriter) WriteInt64(idx int32, n int64) {
	w.property(idx)
	w.s.h.OnInt64(idx, n)
}

func (w *userTypeWriter) WriteBigInt(idx int32, n *big.Int) {
	w.property(idx)
	if n == nil {
		w.s.h.OnNullReference(idx)
		return
	}
	w.s.h.OnInt128(idx, n)
}

func (w *userTypeWriter) WriteFloat32(idx int32, f float32) {
	w.property(idx)
	w.s.h.OnFloat32(idx, f)
}

func (w *userTypeWriter) WriteFloat64(idx int32, f float64) {
	w.property(idx)
	w.s.h.OnFloat64(idx, f)
}

func (w *userTypeWriter) WriteDecimal(idx int32, d Decimal) {
	w.property(idx)
	w.s.h.OnDecimal(idx, d)
}

func (w *userTypeWriter) WriteString(idx int32, s string) {
	w.property(idx)
	w.s.h.OnCharString(idx, s)
}

func (w *userTypeWriter) WriteBinary(idx int32, b []byte) {
	w.property(idx)
	if b == nil {
		w.s.h.OnNullReference(idx)
		return
	}
	w.s.h.OnOctetString(idx, b)
}

func (w *userTypeWriter) WriteDate(idx int32, d Date) {
	w.property(idx)
	w.s.h.OnDate(idx, d)
}

func (w *userTypeWriter) WriteTime(idx int32, t Time) {
	w.property(idx)
	w.s.h.OnTime(idx, t)
}

func (w *userTypeWriter) WriteDateTime(idx int32, t time.Time) {
	w.property(idx)
	d, tm := splitTime(t)
	w.s.h.OnDateTime(idx, d, tm)
}

func (w *userTypeWriter) WriteDuration(idx int32, d time.Duration) {
	w.property(idx)
	iv := splitDuration(d)
	w.s.h.OnDayTimeInterval(idx, iv.days, iv.hours, iv.minutes, iv.seconds, iv.nanos)
}

func (w *userTypeWriter) WriteYearMonthInterval(idx int32, iv YearMonthInterval) {
	w.property(idx)
	w.s.h.OnYearMonthInterval(idx, iv)
}

func (w *userTypeWriter) WriteTimeInterval(idx int32, iv TimeInterval) {
	w.property(idx)
	w.s.h.OnTimeInterval(idx, iv)
}

func (w *userTypeWriter) WriteBoolArray(idx int32, a []bool) {
	w.property(idx)
	writeUniform(w.s, idx, TBoolean, a, w.s.h.OnBoolean)
}

func (w *userTypeWriter) WriteInt16Array(idx int32, a []int16) {
	w.property(idx)
	writeUniform(w.s, idx, TInt16, a, w.s.h.OnInt16)
}

func (w *userTypeWriter) WriteInt32Array(idx int32, a []int32) {
	w.property(idx)
	writeUniform(w.s, idx, TInt32, a, w.s.h.OnInt32)
}

func (w *userTypeWriter) WriteInt64Array(idx int32, a []int64) {
	w.property(idx)
	writeUniform(w.s, idx, TInt64, a, w.s.h.OnInt64)
}

func (w *userTypeWriter) WriteFloat32Array(idx int32, a []float32) {
	w.property(idx)
	writeUniform(w.s, idx, TFloat32, a, w.s.h.OnFloat32)
}

func (w *userTypeWriter) WriteFloat64Array(idx int32, a []float64) {
	w.property(idx)
	writeUniform(w.s, idx, TFloat64, a, w.s.h.OnFloat64)
}

func (w *userTypeWriter) WriteStringArray(idx int32, a []string) {
	w.property(idx)
	writeUniform(w.s, idx, TCharString, a, w.s.h.OnCharString)
}

func (w *userTypeWriter) WriteObject(idx int32, v any) error {
	w.property(idx)
	// an omitted default would read back as nil
	w.s.h.keepDefault = true
	err := w.s.writeValue(idx, v)
	w.s.h.keepDefault = false
	return err
}

func (w *userTypeWriter) WriteObjectArray(idx int32, a []any) error {
	w.property(idx)
	if a == nil {
		w.s.h.OnNullReference(idx)
		return nil
	}
	return w.s.writeSequence(idx, TArray, a)
}

func (w *userTypeWriter) WriteCollection(idx int32, c []any) error {
	w.property(idx)
	if c == nil {
		w.s.h.OnNullReference(idx)
		return nil
	}
	return w.s.writeSequence(idx, TCollection, c)
}

func (w *userTypeWriter) WriteUniformCollection(idx int32, c []any) error {
	w.property(idx)
	if c == nil {
		w.s.h.OnNullReference(idx)
		return nil
	}
	return w.s.writeUniformSequence(idx, c)
}

func (w *userTypeWriter) WriteMap(idx int32, m map[any]any) error {
	w.property(idx)
	return w.s.writeMapValue(idx, m, func() error { return w.s.writeGenericMap(idx, reflect.ValueOf(m)) })
}

func (w *userTypeWriter) WriteSparseArray(idx int32, a SparseArray) error {
	w.property(idx)
	return w.s.writeSparse(idx, a)
}

func (w *userTypeWriter) CreateNestedWriter(idx int32) IPofWriter {
	return w.CreateNestedWriterWithType(idx, w.occ().typeId)
}

func (w *userTypeWriter) CreateNestedWriterWithType(idx int32, typeId int32) IPofWriter {
	if typeId < 0 {
		protocolPanicf("negative type id %d for nested writer", typeId)
	}
	w.property(idx)
	return w.s.push(writeOccurrence{pos: idx, typeId: typeId, identity: noIdentity, nested: true})
}

func (w *userTypeWriter) WriteRemainder(b []byte) {
	o := w.occ()
	w.s.ensureHeader(o)
	if len(b) > 0 {
		w.s.h.writeRaw(b)
	}
	w.s.h.EndComplexValue()
	w.s.stack = w.s.stack[:w.index]
}
