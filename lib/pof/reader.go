package pof

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

// --------------------------------------------------------------------------
// Reader Interface
// --------------------------------------------------------------------------

// IPofReader reads the properties of one user type occurrence. Property
// indices must be requested in strictly increasing order; properties that
// are not present in the stream read as the zero value of the requested
// type. Requesting an index that is not greater than the previous one
// panics with a *ProtocolError.
type IPofReader interface {
	Context() IPofContext
	UserTypeId() int32
	VersionId() int32

	// RegisterIdentity binds v to the identity of the occurrence being read,
	// which allows references to the value from within its own properties.
	// Serializers call it right after allocating the value.
	RegisterIdentity(v any)

	// NextPropertyIndex returns the index of the next property present in
	// the stream, or -1 at the end of the user type
	NextPropertyIndex() int32
	// PreviousPropertyIndex returns the last requested index, or -1
	PreviousPropertyIndex() int32

	ReadBool(idx int32) (bool, error)
	ReadOctet(idx int32) (byte, error)
	ReadChar(idx int32) (Char, error)
	ReadInt16(idx int32) (int16, error)
	ReadInt32(idx int32) (int32, error)
	ReadInt64(idx int32) (int64, error)
	ReadBigInt(idx int32) (*big.Int, error)
	ReadFloat32(idx int32) (float32, error)
	ReadFloat64(idx int32) (float64, error)
	ReadDecimal(idx int32) (Decimal, error)
	ReadString(idx int32) (string, error)
	ReadBinary(idx int32) ([]byte, error)
	ReadDate(idx int32) (Date, error)
	ReadTime(idx int32) (Time, error)
	ReadDateTime(idx int32) (time.Time, error)
	ReadDuration(idx int32) (time.Duration, error)
	ReadYearMonthInterval(idx int32) (YearMonthInterval, error)
	ReadTimeInterval(idx int32) (TimeInterval, error)

	ReadBoolArray(idx int32) ([]bool, error)
	ReadInt16Array(idx int32) ([]int16, error)
	ReadInt32Array(idx int32) ([]int32, error)
	ReadInt64Array(idx int32) ([]int64, error)
	ReadFloat32Array(idx int32) ([]float32, error)
	ReadFloat64Array(idx int32) ([]float64, error)
	ReadStringArray(idx int32) ([]string, error)

	ReadCollection(idx int32) ([]any, error)
	ReadMap(idx int32) (map[any]any, error)
	ReadSparseArray(idx int32) (SparseArray, error)
	// ReadObject reads any value, returning the Go types listed for the
	// encoding it finds in the stream
	ReadObject(idx int32) (any, error)

	// CreateNestedReader opens the user type stored at property idx. If the
	// property is absent the nested reader yields no properties. This reader
	// cannot be used until the nested reader has been closed with ReadRemainder.
	CreateNestedReader(idx int32) (IPofReader, error)

	// ReadRemainder returns all properties that have not been requested yet
	// as raw bytes and closes the occurrence
	ReadRemainder() ([]byte, error)
}

// --------------------------------------------------------------------------
// Read Session
// --------------------------------------------------------------------------

type readOccurrence struct {
	gen        uint64
	parent     int
	typeId     int32
	versionId  int32
	identity   int32
	registered bool
	prevProp   int32 // last requested index
	nextProp   int32 // next index present in the stream, -1 at the terminator
	propOff    int   // offset of the next property index (or of the terminator)
	empty      bool  // absent nested property, nothing to read
	nested     bool  // closing continues the parent after this property
}

type readSession struct {
	ctx      IPofContext
	in       *ReadBuffer
	refs     *referenceTable // nil when references are disabled
	capture  captureHandler
	stack    []readOccurrence
	gen      uint64
	depth    int
	maxDepth int
}

func newReadSession(ctx IPofContext, data []byte, o options) *readSession {
	s := &readSession{
		ctx:      ctx,
		in:       NewReadBuffer(data),
		stack:    make([]readOccurrence, 0, 8),
		maxDepth: o.maxDepth,
	}
	if o.references {
		s.refs = newReferenceTable()
	}
	return s
}

func (s *readSession) errf(err error, format string, args ...any) error {
	return streamErrf(s.in.Data(), s.in.Offset(), err, format, args...)
}

func (s *readSession) enter() error {
	s.depth++
	if s.depth > s.maxDepth {
		return s.errf(ErrDepthExceeded, "nesting deeper than %d", s.maxDepth)
	}
	return nil
}

func (s *readSession) leave() { s.depth-- }

// skip advances past one tagged value
func (s *readSession) skip() error {
	return skipValue(s.in, s.maxDepth-s.depth)
}

// --------------------------------------------------------------------------
// Value Materialization
// --------------------------------------------------------------------------

// readTagged reads a value with its type tag and optional identity
func (s *readSession) readTagged() (any, error) {
	tag, err := s.in.ReadPackedInt32()
	if err != nil {
		return nil, err
	}
	identity := noIdentity
	if tag == TIdentity {
		if identity, err = s.in.ReadPackedInt32(); err != nil {
			return nil, err
		}
		if s.refs == nil {
			identity = noIdentity
		}
		if tag, err = s.in.ReadPackedInt32(); err != nil {
			return nil, err
		}
	}
	return s.readValue(tag, identity)
}

// readValue reads a value whose tag has been consumed already
func (s *readSession) readValue(tag int32, identity int32) (any, error) {
	var (
		v   any
		err error
	)
	switch tag {
	case TReference:
		return s.readReference()
	case VCollectionEmpty:
		v = []any{}
	case TCollection, TArray:
		v, err = s.readDense()
	case TUniformCollection, TUniformArray:
		v, err = s.readUniformDense(tag)
	case TSparseArray, TUniformSparseArray:
		v, err = s.readSparse(tag)
	case TMap, TUniformKeysMap, TUniformMap:
		return s.readMap(tag, identity)
	default:
		if tag >= 0 {
			return s.readUserType(tag, identity)
		}
		p := Parser{in: s.in, handler: &s.capture, maxDepth: s.maxDepth - s.depth}
		s.capture.v = nil
		if err := p.ParseUniformValue(noPosition, tag); err != nil {
			return nil, err
		}
		v = s.capture.v
	}
	if err != nil {
		return nil, err
	}
	if identity >= 0 {
		s.refs.register(identity, v)
	}
	return v, nil
}

func (s *readSession) readReference() (any, error) {
	id, err := s.in.ReadPackedInt32()
	if err != nil {
		return nil, err
	}
	if s.refs == nil {
		return nil, s.errf(ErrReferencesDisabled, "reference to identity %d", id)
	}
	v, ok := s.refs.resolve(id)
	if !ok {
		return nil, s.errf(ErrUnresolvedIdentity, "reference to identity %d", id)
	}
	return v, nil
}

func (s *readSession) readDense() ([]any, error) {
	count, err := readCount(s.in)
	if err != nil {
		return nil, err
	}
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer s.leave()
	a := make([]any, count)
	for i := range a {
		if a[i], err = s.readTagged(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (s *readSession) readUniformDense(tag int32) (any, error) {
	elemType, err := s.in.ReadPackedInt32()
	if err != nil {
		return nil, err
	}
	count, err := readCount(s.in)
	if err != nil {
		return nil, err
	}
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer s.leave()
	if tag == TUniformArray {
		switch elemType {
		case TBoolean:
			return readUniformSlice[bool](s, elemType, count)
		case TInt16:
			return readUniformSlice[int16](s, elemType, count)
		case TInt32:
			return readUniformSlice[int32](s, elemType, count)
		case TInt64:
			return readUniformSlice[int64](s, elemType, count)
		case TFloat32:
			return readUniformSlice[float32](s, elemType, count)
		case TFloat64:
			return readUniformSlice[float64](s, elemType, count)
		case TCharString:
			return readUniformSlice[string](s, elemType, count)
		}
	}
	return readUniformSlice[any](s, elemType, count)
}

func readUniformSlice[T any](s *readSession, elemType int32, count int32) ([]T, error) {
	out := make([]T, count)
	for i := range out {
		v, err := s.readValue(elemType, noIdentity)
		if err != nil {
			return nil, err
		}
		t, ok := v.(T)
		if !ok && v != nil {
			return nil, s.errf(ErrTypeMismatch, "uniform element %d is %T", i, v)
		}
		out[i] = t
	}
	return out, nil
}

func (s *readSession) readSparse(tag int32) (SparseArray, error) {
	elemType := TUnknown
	var err error
	if tag == TUniformSparseArray {
		if elemType, err = s.in.ReadPackedInt32(); err != nil {
			return nil, err
		}
	}
	size, err := s.in.ReadPackedInt32()
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, s.errf(ErrInvalidLength, "negative sparse array size %d", size)
	}
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer s.leave()
	a := make(SparseArray)
	last := int32(-1)
	for {
		i, err := s.in.ReadPackedInt32()
		if err != nil {
			return nil, err
		}
		if i < 0 {
			return a, nil
		}
		if i <= last || i >= size {
			return nil, s.errf(ErrInvalidLength, "sparse array position %d out of order or range", i)
		}
		last = i
		var v any
		if elemType != TUnknown {
			v, err = s.readValue(elemType, noIdentity)
		} else {
			v, err = s.readTagged()
		}
		if err != nil {
			return nil, err
		}
		a[i] = v
	}
}

// readMap registers the map before its entries are read so that entries
// may refer back to it
func (s *readSession) readMap(tag int32, identity int32) (any, error) {
	keyType, valueType := TUnknown, TUnknown
	var err error
	if tag == TUniformKeysMap || tag == TUniformMap {
		if keyType, err = s.in.ReadPackedInt32(); err != nil {
			return nil, err
		}
	}
	if tag == TUniformMap {
		if valueType, err = s.in.ReadPackedInt32(); err != nil {
			return nil, err
		}
	}
	count, err := readCount(s.in)
	if err != nil {
		return nil, err
	}
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer s.leave()

	readEntry := func(t int32) (any, error) {
		if t != TUnknown {
			return s.readValue(t, noIdentity)
		}
		return s.readTagged()
	}

	switch {
	case keyType == TCharString && valueType == TCharString:
		m := make(map[string]string, count)
		if identity >= 0 {
			s.refs.register(identity, m)
		}
		for i := int32(0); i < count; i++ {
			k, err := s.in.ReadString()
			if err != nil {
				return nil, err
			}
			if m[k], err = s.in.ReadString(); err != nil {
				return nil, err
			}
		}
		return m, nil
	case keyType == TCharString:
		m := make(map[string]any, count)
		if identity >= 0 {
			s.refs.register(identity, m)
		}
		for i := int32(0); i < count; i++ {
			k, err := s.in.ReadString()
			if err != nil {
				return nil, err
			}
			if m[k], err = readEntry(valueType); err != nil {
				return nil, err
			}
		}
		return m, nil
	}

	m := make(map[any]any, count)
	if identity >= 0 {
		s.refs.register(identity, m)
	}
	for i := int32(0); i < count; i++ {
		k, err := readEntry(keyType)
		if err != nil {
			return nil, err
		}
		if !isHashable(k) {
			return nil, s.errf(ErrUnsupportedType, "map key of type %T", k)
		}
		if m[k], err = readEntry(valueType); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// readUserType materializes a user type through its registered serializer
func (s *readSession) readUserType(typeId int32, identity int32) (any, error) {
	version, err := s.in.ReadPackedInt32()
	if err != nil {
		return nil, err
	}
	if version < 0 {
		return nil, s.errf(ErrInvalidLength, "negative version id %d for type %d", version, typeId)
	}
	ser, err := s.ctx.SerializerFor(typeId)
	if err != nil {
		return nil, err
	}
	r, err := s.push(readOccurrence{typeId: typeId, versionId: version, identity: identity})
	if err != nil {
		return nil, err
	}
	v, err := ser.Deserialize(r)
	if err != nil {
		s.truncate(r.index)
		return v, s.wrapError(typeId, v, err)
	}
	if r.isOpen() {
		if r.index != len(s.stack)-1 {
			s.truncate(r.index)
			return v, s.wrapError(typeId, v, fmt.Errorf("%w: nested reader was not closed", ErrInvalidLength))
		}
		if _, err := r.ReadRemainder(); err != nil {
			return v, s.wrapError(typeId, v, err)
		}
	}
	if identity >= 0 && !r.registered {
		s.refs.register(identity, v)
	}
	return v, nil
}

func (s *readSession) wrapError(typeId int32, v any, err error) error {
	var se *SerializationError
	if errors.As(err, &se) {
		return err
	}
	runtime := ""
	if v != nil {
		runtime = fmt.Sprintf("%T", v)
	}
	return &SerializationError{
		Op:          "deserialize",
		TypeId:      typeId,
		ClassName:   className(s.ctx, typeId),
		RuntimeType: runtime,
		Err:         err,
	}
}

// push opens an occurrence whose header has been read and positions it on
// its first property
func (s *readSession) push(o readOccurrence) (*userTypeReader, error) {
	if err := s.enter(); err != nil {
		s.leave()
		return nil, err
	}
	s.gen++
	o.gen = s.gen
	o.parent = len(s.stack) - 1
	o.prevProp = -1
	o.nextProp = -1
	s.stack = append(s.stack, o)
	r := &userTypeReader{s: s, index: len(s.stack) - 1, gen: s.gen, typeId: o.typeId, versionId: o.versionId}
	if !o.empty {
		if err := s.advance(r.index); err != nil {
			s.truncate(r.index)
			return nil, err
		}
	}
	return r, nil
}

// truncate drops the occurrence at index and everything above it
func (s *readSession) truncate(index int) {
	s.depth -= len(s.stack) - index
	s.stack = s.stack[:index]
}

// advance reads the next property index of the occurrence at index
func (s *readSession) advance(index int) error {
	o := &s.stack[index]
	o.propOff = s.in.Offset()
	prop, err := s.in.ReadPackedInt32()
	if err != nil {
		return locate(err, o.typeId, o.nextProp)
	}
	if prop < 0 {
		o.nextProp = -1
		return nil
	}
	if prop <= o.nextProp {
		return locate(s.errf(ErrInvalidLength, "property %d follows %d", prop, o.nextProp), o.typeId, prop)
	}
	o.nextProp = prop
	return nil
}

// --------------------------------------------------------------------------
// Capture Handler
// --------------------------------------------------------------------------

// captureHandler keeps the last primitive value reported by the parser
type captureHandler struct {
	NullHandler
	v any
}

func (h *captureHandler) OnNullReference(int32)           { h.v = nil }
func (h *captureHandler) OnInt16(_ int32, n int16)        { h.v = n }
func (h *captureHandler) OnInt32(_ int32, n int32)        { h.v = n }
func (h *captureHandler) OnInt64(_ int32, n int64)        { h.v = n }
func (h *captureHandler) OnInt128(_ int32, n *big.Int)    { h.v = n }
func (h *captureHandler) OnFloat32(_ int32, f float32)    { h.v = f }
func (h *captureHandler) OnFloat64(_ int32, f float64)    { h.v = f }
func (h *captureHandler) OnDecimal(_ int32, d Decimal)    { h.v = d }
func (h *captureHandler) OnBoolean(_ int32, b bool)       { h.v = b }
func (h *captureHandler) OnOctet(_ int32, b byte)         { h.v = b }
func (h *captureHandler) OnOctetString(_ int32, b []byte) { h.v = b }
func (h *captureHandler) OnChar(_ int32, ch Char)         { h.v = ch }
func (h *captureHandler) OnCharString(_ int32, s string)  { h.v = s }
func (h *captureHandler) OnDate(_ int32, d Date)          { h.v = d }
func (h *captureHandler) OnTime(_ int32, t Time)          { h.v = t }
func (h *captureHandler) OnDateTime(_ int32, d Date, t Time) {
	h.v = joinTime(d, t)
}
func (h *captureHandler) OnYearMonthInterval(_ int32, iv YearMonthInterval) { h.v = iv }
func (h *captureHandler) OnTimeInterval(_ int32, iv TimeInterval)           { h.v = iv }
func (h *captureHandler) OnDayTimeInterval(_ int32, days, hours, minutes, seconds, nanos int32) {
	h.v = dayTimeInterval{days, hours, minutes, seconds, nanos}.duration()
}

// --------------------------------------------------------------------------
// User Type Reader
// --------------------------------------------------------------------------

type userTypeReader struct {
	s         *readSession
	index     int
	gen       uint64
	typeId    int32
	versionId int32
	// registered mirrors the occurrence flag after the occurrence is closed
	registered bool
}

func (r *userTypeReader) isOpen() bool {
	return r.index < len(r.s.stack) && r.s.stack[r.index].gen == r.gen
}

func (r *userTypeReader) occ() *readOccurrence {
	if !r.isOpen() {
		protocolPanicf("reader for type %d used after it was closed", r.typeId)
	}
	if r.index != len(r.s.stack)-1 {
		protocolPanicf("reader for type %d used while a nested reader is open", r.typeId)
	}
	return &r.s.stack[r.index]
}

// seek positions the stream on property idx and reports whether it is present
func (r *userTypeReader) seek(idx int32) (bool, error) {
	o := r.occ()
	if idx < 0 {
		protocolPanicf("negative property index %d for type %d", idx, o.typeId)
	}
	if idx <= o.prevProp {
		protocolPanicf("property %d of type %d read after property %d", idx, o.typeId, o.prevProp)
	}
	o.prevProp = idx
	for o.nextProp >= 0 && o.nextProp < idx {
		if err := r.s.skip(); err != nil {
			return false, locate(err, o.typeId, o.nextProp)
		}
		if err := r.s.advance(r.index); err != nil {
			return false, err
		}
	}
	return o.nextProp == idx, nil
}

// property reads the raw value of idx, nil if it is absent
func (r *userTypeReader) property(idx int32) (any, error) {
	present, err := r.seek(idx)
	if err != nil || !present {
		return nil, err
	}
	v, err := r.s.readTagged()
	if err != nil {
		return nil, locate(err, r.typeId, idx)
	}
	return v, r.s.advance(r.index)
}

func (r *userTypeReader) mismatch(idx int32, want string, v any) error {
	return locate(r.s.errf(ErrTypeMismatch, "cannot read %T as %s", v, want), r.typeId, idx)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see pof.IPofReader)
// --------------------------------------------------------------------------

func (r *userTypeReader) Context() IPofContext { return r.s.ctx }

func (r *userTypeReader) UserTypeId() int32 { return r.typeId }

func (r *userTypeReader) VersionId() int32 { return r.versionId }

func (r *userTypeReader) RegisterIdentity(v any) {
	o := r.occ()
	if o.registered {
		return
	}
	o.registered = true
	r.registered = true
	if o.identity >= 0 && r.s.refs != nil {
		r.s.refs.register(o.identity, v)
	}
}

func (r *userTypeReader) NextPropertyIndex() int32 {
	return r.occ().nextProp
}

func (r *userTypeReader) PreviousPropertyIndex() int32 {
	return r.occ().prevProp
}

func (r *userTypeReader) ReadBool(idx int32) (bool, error) {
	v, err := r.property(idx)
	if err != nil {
		return false, err
	}
	switch b := v.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	}
	return false, r.mismatch(idx, "bool", v)
}

func (r *userTypeReader) ReadOctet(idx int32) (byte, error) {
	return readInt[byte](r, idx, 0, 255)
}

func (r *userTypeReader) ReadChar(idx int32) (Char, error) {
	v, err := r.property(idx)
	if err != nil {
		return 0, err
	}
	switch ch := v.(type) {
	case nil:
		return 0, nil
	case Char:
		return ch, nil
	case string:
		if rs := []rune(ch); len(rs) == 1 {
			return Char(rs[0]), nil
		}
	}
	return 0, r.mismatch(idx, "char", v)
}

func (r *userTypeReader) ReadInt16(idx int32) (int16, error) {
	return readInt[int16](r, idx, -1<<15, 1<<15-1)
}

func (r *userTypeReader) ReadInt32(idx int32) (int32, error) {
	return readInt[int32](r, idx, -1<<31, 1<<31-1)
}

func (r *userTypeReader) ReadInt64(idx int32) (int64, error) {
	return readInt[int64](r, idx, -1<<63, 1<<63-1)
}

func (r *userTypeReader) ReadBigInt(idx int32) (*big.Int, error) {
	v, err := r.property(idx)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	if n, ok := v.(*big.Int); ok {
		return n, nil
	}
	if n, ok := toInt64(v); ok {
		return big.NewInt(n), nil
	}
	return nil, r.mismatch(idx, "int128", v)
}

func (r *userTypeReader) ReadFloat32(idx int32) (float32, error) {
	v, err := r.property(idx)
	if err != nil {
		return 0, err
	}
	if f, ok := v.(float32); ok {
		return f, nil
	}
	if f, ok := toFloat64(v); ok {
		return float32(f), nil
	}
	return 0, r.mismatch(idx, "float32", v)
}

func (r *userTypeReader) ReadFloat64(idx int32) (float64, error) {
	v, err := r.property(idx)
	if err != nil {
		return 0, err
	}
	if f, ok := toFloat64(v); ok {
		return f, nil
	}
	return 0, r.mismatch(idx, "float64", v)
}

func (r *userTypeReader) ReadDecimal(idx int32) (Decimal, error) {
	v, err := r.property(idx)
	if err != nil {
		return Decimal{}, err
	}
	switch d := v.(type) {
	case nil:
		return NewDecimal(0, 0), nil
	case Decimal:
		return d, nil
	case *big.Int:
		return Decimal{Unscaled: d}, nil
	}
	if n, ok := toInt64(v); ok {
		return NewDecimal(n, 0), nil
	}
	return Decimal{}, r.mismatch(idx, "decimal", v)
}

func (r *userTypeReader) ReadString(idx int32) (string, error) {
	v, err := r.property(idx)
	if err != nil {
		return "", err
	}
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	case Char:
		return string(rune(s)), nil
	}
	return "", r.mismatch(idx, "string", v)
}

func (r *userTypeReader) ReadBinary(idx int32) ([]byte, error) {
	v, err := r.property(idx)
	if err != nil {
		return nil, err
	}
	switch b := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case []any:
		if len(b) == 0 {
			return []byte{}, nil
		}
	}
	return nil, r.mismatch(idx, "binary", v)
}

func (r *userTypeReader) ReadDate(idx int32) (Date, error) {
	v, err := r.property(idx)
	if err != nil {
		return Date{}, err
	}
	switch d := v.(type) {
	case nil:
		return Date{}, nil
	case Date:
		return d, nil
	case time.Time:
		d2, _ := splitTime(d)
		return d2, nil
	}
	return Date{}, r.mismatch(idx, "date", v)
}

func (r *userTypeReader) ReadTime(idx int32) (Time, error) {
	v, err := r.property(idx)
	if err != nil {
		return Time{}, err
	}
	switch t := v.(type) {
	case nil:
		return Time{}, nil
	case Time:
		return t, nil
	case time.Time:
		_, t2 := splitTime(t)
		return t2, nil
	}
	return Time{}, r.mismatch(idx, "time", v)
}

func (r *userTypeReader) ReadDateTime(idx int32) (time.Time, error) {
	v, err := r.property(idx)
	if err != nil {
		return time.Time{}, err
	}
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t, nil
	case Date:
		return joinTime(t, Time{Zone: ZoneUTC}), nil
	}
	return time.Time{}, r.mismatch(idx, "datetime", v)
}

func (r *userTypeReader) ReadDuration(idx int32) (time.Duration, error) {
	v, err := r.property(idx)
	if err != nil {
		return 0, err
	}
	switch d := v.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return d, nil
	case TimeInterval:
		return d.Duration(), nil
	}
	return 0, r.mismatch(idx, "duration", v)
}

func (r *userTypeReader) ReadYearMonthInterval(idx int32) (YearMonthInterval, error) {
	v, err := r.property(idx)
	if err != nil {
		return YearMonthInterval{}, err
	}
	switch iv := v.(type) {
	case nil:
		return YearMonthInterval{}, nil
	case YearMonthInterval:
		return iv, nil
	}
	return YearMonthInterval{}, r.mismatch(idx, "year month interval", v)
}

func (r *userTypeReader) ReadTimeInterval(idx int32) (TimeInterval, error) {
	v, err := r.property(idx)
	if err != nil {
		return TimeInterval{}, err
	}
	switch iv := v.(type) {
	case nil:
		return TimeInterval{}, nil
	case TimeInterval:
		return iv, nil
	}
	return TimeInterval{}, r.mismatch(idx, "time interval", v)
}

func (r *userTypeReader) ReadBoolArray(idx int32) ([]bool, error) {
	return readArray(r, idx, func(v any) (bool, bool) {
		b, ok := v.(bool)
		return b, ok || v == nil
	})
}

func (r *userTypeReader) ReadInt16Array(idx int32) ([]int16, error) {
	return readArray(r, idx, intConverter[int16](-1<<15, 1<<15-1))
}

func (r *userTypeReader) ReadInt32Array(idx int32) ([]int32, error) {
	return readArray(r, idx, intConverter[int32](-1<<31, 1<<31-1))
}

func (r *userTypeReader) ReadInt64Array(idx int32) ([]int64, error) {
	return readArray(r, idx, intConverter[int64](-1<<63, 1<<63-1))
}

func (r *userTypeReader) ReadFloat32Array(idx int32) ([]float32, error) {
	return readArray(r, idx, func(v any) (float32, bool) {
		if f, ok := v.(float32); ok {
			return f, true
		}
		f, ok := toFloat64(v)
		return float32(f), ok
	})
}

func (r *userTypeReader) ReadFloat64Array(idx int32) ([]float64, error) {
	return readArray(r, idx, toFloat64)
}

func (r *userTypeReader) ReadStringArray(idx int32) ([]string, error) {
	return readArray(r, idx, func(v any) (string, bool) {
		s, ok := v.(string)
		return s, ok || v == nil
	})
}

func (r *userTypeReader) ReadCollection(idx int32) ([]any, error) {
	v, err := r.property(idx)
	if err != nil || v == nil {
		return nil, err
	}
	if a, ok := toAnySlice(v); ok {
		return a, nil
	}
	return nil, r.mismatch(idx, "collection", v)
}

func (r *userTypeReader) ReadMap(idx int32) (map[any]any, error) {
	v, err := r.property(idx)
	if err != nil || v == nil {
		return nil, err
	}
	switch m := v.(type) {
	case map[any]any:
		return m, nil
	case map[string]any:
		out := make(map[any]any, len(m))
		for k, e := range m {
			out[k] = e
		}
		return out, nil
	case map[string]string:
		out := make(map[any]any, len(m))
		for k, e := range m {
			out[k] = e
		}
		return out, nil
	case []any:
		if len(m) == 0 {
			return map[any]any{}, nil
		}
	}
	return nil, r.mismatch(idx, "map", v)
}

func (r *userTypeReader) ReadSparseArray(idx int32) (SparseArray, error) {
	v, err := r.property(idx)
	if err != nil || v == nil {
		return nil, err
	}
	switch a := v.(type) {
	case SparseArray:
		return a, nil
	}
	if a, ok := toAnySlice(v); ok {
		out := make(SparseArray, len(a))
		for i, e := range a {
			out[int32(i)] = e
		}
		return out, nil
	}
	return nil, r.mismatch(idx, "sparse array", v)
}

func (r *userTypeReader) ReadObject(idx int32) (any, error) {
	return r.property(idx)
}

func (r *userTypeReader) CreateNestedReader(idx int32) (IPofReader, error) {
	present, err := r.seek(idx)
	if err != nil {
		return nil, err
	}
	if !present {
		return r.s.push(readOccurrence{typeId: r.typeId, identity: noIdentity, empty: true})
	}
	tag, err := r.s.in.ReadPackedInt32()
	if err != nil {
		return nil, locate(err, r.typeId, idx)
	}
	identity := noIdentity
	if tag == TIdentity {
		if identity, err = r.s.in.ReadPackedInt32(); err != nil {
			return nil, locate(err, r.typeId, idx)
		}
		if r.s.refs == nil {
			identity = noIdentity
		}
		if tag, err = r.s.in.ReadPackedInt32(); err != nil {
			return nil, locate(err, r.typeId, idx)
		}
	}
	if tag == VReferenceNull {
		if err := r.s.advance(r.index); err != nil {
			return nil, err
		}
		return r.s.push(readOccurrence{typeId: r.typeId, identity: noIdentity, empty: true})
	}
	if tag < 0 {
		return nil, locate(r.s.errf(ErrTypeMismatch, "nested reader on %s value", TypeName(tag)), r.typeId, idx)
	}
	version, err := r.s.in.ReadPackedInt32()
	if err != nil {
		return nil, locate(err, r.typeId, idx)
	}
	if version < 0 {
		return nil, locate(r.s.errf(ErrInvalidLength, "negative version id %d for type %d", version, tag), r.typeId, idx)
	}
	nr, err := r.s.push(readOccurrence{typeId: tag, versionId: version, identity: identity, nested: true})
	if err != nil {
		return nil, locate(err, r.typeId, idx)
	}
	return nr, nil
}

func (r *userTypeReader) ReadRemainder() ([]byte, error) {
	o := r.occ()
	if o.empty {
		r.s.truncate(r.index)
		return nil, nil
	}
	start := o.propOff
	for o.nextProp >= 0 {
		if err := r.s.skip(); err != nil {
			return nil, locate(err, o.typeId, o.nextProp)
		}
		if err := r.s.advance(r.index); err != nil {
			return nil, err
		}
	}
	var remainder []byte
	if end := o.propOff; end > start {
		remainder = append([]byte(nil), r.s.in.Data()[start:end]...)
	}
	nested, parent := o.nested, o.parent
	r.s.truncate(r.index)
	if nested && parent >= 0 {
		if err := r.s.advance(parent); err != nil {
			return remainder, err
		}
	}
	return remainder, nil
}

// --------------------------------------------------------------------------
// Conversion Helper
// --------------------------------------------------------------------------

type integer interface {
	~int16 | ~int32 | ~int64 | ~uint8
}

func readInt[T integer](r *userTypeReader, idx int32, lo, hi int64) (T, error) {
	v, err := r.property(idx)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	n, ok := toInt64(v)
	if !ok {
		return 0, r.mismatch(idx, fmt.Sprintf("%T", T(0)), v)
	}
	if n < lo || n > hi {
		return 0, locate(r.s.errf(ErrOverflow, "%d does not fit %T", n, T(0)), r.typeId, idx)
	}
	return T(n), nil
}

func intConverter[T integer](lo, hi int64) func(any) (T, bool) {
	return func(v any) (T, bool) {
		if v == nil {
			return 0, true
		}
		n, ok := toInt64(v)
		if !ok || n < lo || n > hi {
			return 0, false
		}
		return T(n), true
	}
}

func readArray[T any](r *userTypeReader, idx int32, conv func(any) (T, bool)) ([]T, error) {
	v, err := r.property(idx)
	if err != nil || v == nil {
		return nil, err
	}
	if a, ok := v.([]T); ok {
		return a, nil
	}
	a, ok := toAnySlice(v)
	if !ok {
		var zero T
		return nil, r.mismatch(idx, fmt.Sprintf("[]%T", zero), v)
	}
	out := make([]T, len(a))
	for i, e := range a {
		t, ok := conv(e)
		if !ok {
			return nil, r.mismatch(idx, fmt.Sprintf("%T element", t), e)
		}
		out[i] = t
	}
	return out, nil
}

// toInt64 converts any integral value, including integral floats produced
// by compact markers
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case byte:
		return int64(n), true
	case Char:
		return int64(n), true
	case *big.Int:
		if n.IsInt64() {
			return n.Int64(), true
		}
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch f := v.(type) {
	case nil:
		return 0, true
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}
	if n, ok := toInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}

// toAnySlice converts any decoded sequence into []any
func toAnySlice(v any) ([]any, bool) {
	switch a := v.(type) {
	case []any:
		return a, true
	case []bool:
		return anySlice(a), true
	case []int16:
		return anySlice(a), true
	case []int32:
		return anySlice(a), true
	case []int64:
		return anySlice(a), true
	case []float32:
		return anySlice(a), true
	case []float64:
		return anySlice(a), true
	case []string:
		return anySlice(a), true
	}
	return nil, false
}

func anySlice[T any](a []T) []any {
	out := make([]any, len(a))
	for i, e := range a {
		out[i] = e
	}
	return out
}

func isHashable(v any) bool {
	switch v.(type) {
	case []byte, []any, map[any]any, map[string]any, map[string]string, SparseArray:
		return false
	case []bool, []int16, []int32, []int64, []float32, []float64, []string:
		return false
	}
	return true
}
