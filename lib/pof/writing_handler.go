package pof

import (
	"math"
	"math/big"
)

// --------------------------------------------------------------------------
// Complex Frames
// --------------------------------------------------------------------------

// complexFrame describes one open complex value of the encoder
type complexFrame struct {
	parent       int // index of the enclosing frame, -1 for the outermost frame
	sparse       bool
	skipDefaults bool // user type frames omit default valued properties
	terminate    bool // write the sparse terminator on EndComplexValue
	uniform      bool
	uniformType  int32
	isMap        bool
	valuePhase   bool // map frames: the current element is a value (not a key)
	valueUniform bool
	valueType    int32
}

// onValue is called for every contained value before it is written
func (f *complexFrame) onValue(out *WriteBuffer, pos int32) {
	if f.isMap {
		f.valuePhase = !f.valuePhase
	}
	if f.sparse {
		out.WritePackedInt32(pos)
	}
}

// elementType returns the declared type of the current element, if any
func (f *complexFrame) elementType() (int32, bool) {
	if f.isMap && f.valuePhase {
		return f.valueType, f.valueUniform
	}
	return f.uniformType, f.uniform
}

// --------------------------------------------------------------------------
// Writing Handler (encoder)
// --------------------------------------------------------------------------

// WritingHandler is the IPofHandler that encodes events into the compact
// binary grammar. It is not safe for concurrent use.
type WritingHandler struct {
	out         *WriteBuffer
	frames      []complexFrame
	hasIdentity bool
	identity    int32
	keepDefault bool // the next value is written even if it is a default
}

// NewWritingHandler creates an encoder that appends to out
func NewWritingHandler(out *WriteBuffer) *WritingHandler {
	return &WritingHandler{out: out, frames: make([]complexFrame, 0, 8), identity: noIdentity}
}

// Buffer returns the byte sink of the encoder
func (h *WritingHandler) Buffer() *WriteBuffer { return h.out }

// Depth returns the number of currently open complex values
func (h *WritingHandler) Depth() int { return len(h.frames) }

func (h *WritingHandler) top() *complexFrame {
	if len(h.frames) == 0 {
		return nil
	}
	return &h.frames[len(h.frames)-1]
}

func (h *WritingHandler) push(f complexFrame) {
	f.parent = len(h.frames) - 1
	h.frames = append(h.frames, f)
}

// isSkippable reports whether a default value may be omitted
func (h *WritingHandler) isSkippable() bool {
	return !h.keepDefault && h.isNullSkippable()
}

// isNullSkippable reports whether a null may be omitted. Nulls read back as
// nil whatever the requested type, so keepDefault does not apply to them.
func (h *WritingHandler) isNullSkippable() bool {
	if h.hasIdentity {
		return false
	}
	f := h.top()
	return f != nil && f.skipDefaults
}

// isCompressible reports whether compact markers may be used for the next value
func (h *WritingHandler) isCompressible() bool {
	return !h.hasIdentity
}

// encodePosition notifies the enclosing frame and emits a pending identity
func (h *WritingHandler) encodePosition(pos int32) {
	h.keepDefault = false
	if f := h.top(); f != nil {
		f.onValue(h.out, pos)
	}
	if h.hasIdentity {
		if h.identity >= 0 {
			h.out.WritePackedInt32(TIdentity)
			h.out.WritePackedInt32(h.identity)
		}
		h.hasIdentity = false
		h.identity = noIdentity
	}
}

// isTypeIdEncoded reports whether the value needs its own type tag. Inside a
// uniform frame the tag is suppressed and typeId must match the declared type.
func (h *WritingHandler) isTypeIdEncoded(typeId int32) bool {
	f := h.top()
	if f == nil {
		return true
	}
	declared, uniform := f.elementType()
	if !uniform {
		return true
	}
	if declared != typeId {
		protocolPanicf("%s value written into uniform frame of %s", TypeName(typeId), TypeName(declared))
	}
	return false
}

// nextElementType returns the declared type of the next value of the
// innermost frame, or TUnknown if that frame does not declare one
func (h *WritingHandler) nextElementType() int32 {
	f := h.top()
	if f == nil {
		return TUnknown
	}
	if f.isMap && !f.valuePhase {
		if f.valueUniform {
			return f.valueType
		}
		return TUnknown
	}
	if f.uniform {
		return f.uniformType
	}
	return TUnknown
}

// uniformDecimal widens a decimal tag to the declared type of a uniform frame
func (h *WritingHandler) uniformDecimal(tag int32) int32 {
	if f := h.top(); f != nil {
		if declared, uniform := f.elementType(); uniform && declared <= tag && declared >= TDecimal128 {
			return declared
		}
	}
	return tag
}

// writeRaw appends pre-encoded bytes, used to replay remainders
func (h *WritingHandler) writeRaw(b []byte) {
	_, _ = h.out.Write(b)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see pof.IPofHandler)
// --------------------------------------------------------------------------

func (h *WritingHandler) RegisterIdentity(id int32) {
	if h.hasIdentity {
		protocolPanicf("identity %d registered while identity %d is pending", id, h.identity)
	}
	h.hasIdentity = true
	h.identity = id
}

func (h *WritingHandler) OnNullReference(pos int32) {
	if h.isNullSkippable() {
		return
	}
	h.encodePosition(pos)
	h.out.WritePackedInt32(VReferenceNull)
}

func (h *WritingHandler) OnIdentityReference(pos int32, id int32) {
	h.encodePosition(pos)
	h.out.WritePackedInt32(TReference)
	h.out.WritePackedInt32(id)
}

func (h *WritingHandler) OnInt16(pos int32, n int16) {
	h.writeInt(pos, TInt16, int64(n))
}

func (h *WritingHandler) OnInt32(pos int32, n int32) {
	h.writeInt(pos, TInt32, int64(n))
}

func (h *WritingHandler) OnInt64(pos int32, n int64) {
	h.writeInt(pos, TInt64, n)
}

func (h *WritingHandler) writeInt(pos int32, tag int32, n int64) {
	if n == 0 && h.isSkippable() {
		return
	}
	compact := h.isCompressible()
	h.encodePosition(pos)
	if h.isTypeIdEncoded(tag) {
		if compact && IsTinyInt(n) {
			h.out.WritePackedInt32(EncodeTinyInt(int32(n)))
			return
		}
		h.out.WritePackedInt32(tag)
	}
	h.out.WritePackedInt64(n)
}

func (h *WritingHandler) OnInt128(pos int32, n *big.Int) {
	if n.Sign() == 0 && h.isSkippable() {
		return
	}
	compact := h.isCompressible()
	h.encodePosition(pos)
	if h.isTypeIdEncoded(TInt128) {
		if compact && n.IsInt64() && IsTinyInt(n.Int64()) {
			h.out.WritePackedInt32(EncodeTinyInt(int32(n.Int64())))
			return
		}
		h.out.WritePackedInt32(TInt128)
	}
	h.out.WritePackedBigInt(n)
}

func (h *WritingHandler) OnFloat32(pos int32, f float32) {
	bits := math.Float32bits(f)
	if bits == 0 && h.isSkippable() {
		return
	}
	compact := h.isCompressible()
	h.encodePosition(pos)
	if h.isTypeIdEncoded(TFloat32) {
		if compact {
			if tag, ok := floatMarker(float64(f), bits == 0x7FC00000, bits == 0x80000000); ok {
				h.out.WritePackedInt32(tag)
				return
			}
		}
		h.out.WritePackedInt32(TFloat32)
	}
	h.out.WriteFloat32(f)
}

func (h *WritingHandler) OnFloat64(pos int32, f float64) {
	bits := math.Float64bits(f)
	if bits == 0 && h.isSkippable() {
		return
	}
	compact := h.isCompressible()
	h.encodePosition(pos)
	if h.isTypeIdEncoded(TFloat64) {
		if compact {
			if tag, ok := floatMarker(f, bits == 0x7FF8000000000000, bits == 0x8000000000000000); ok {
				h.out.WritePackedInt32(tag)
				return
			}
		}
		h.out.WritePackedInt32(TFloat64)
	}
	h.out.WriteFloat64(f)
}

// floatMarker returns the compact marker for f if one exists. Only the
// canonical NaN bit pattern is compacted, negative zero never is.
func floatMarker(f float64, canonicalNaN, negZero bool) (int32, bool) {
	switch {
	case math.IsNaN(f):
		return VFPNaN, canonicalNaN
	case math.IsInf(f, 1):
		return VFPPosInfinity, true
	case math.IsInf(f, -1):
		return VFPNegInfinity, true
	case negZero:
		return 0, false
	case f >= -1 && f <= 22 && f == math.Trunc(f):
		return EncodeTinyInt(int32(f)), true
	}
	return 0, false
}

func (h *WritingHandler) OnDecimal(pos int32, d Decimal) {
	if d.IsZero() && h.isSkippable() {
		return
	}
	tag := h.uniformDecimal(d.decimalTag())
	h.encodePosition(pos)
	if h.isTypeIdEncoded(tag) {
		h.out.WritePackedInt32(tag)
	}
	h.out.WritePackedBigInt(d.unscaled())
	h.out.WritePackedInt32(d.Scale)
}

func (h *WritingHandler) OnBoolean(pos int32, b bool) {
	if !b && h.isSkippable() {
		return
	}
	compact := h.isCompressible()
	h.encodePosition(pos)
	if h.isTypeIdEncoded(TBoolean) {
		if compact {
			if b {
				h.out.WritePackedInt32(VBooleanTrue)
			} else {
				h.out.WritePackedInt32(VBooleanFalse)
			}
			return
		}
		h.out.WritePackedInt32(TBoolean)
	}
	if b {
		h.out.WritePackedInt32(1)
	} else {
		h.out.WritePackedInt32(0)
	}
}

func (h *WritingHandler) OnOctet(pos int32, b byte) {
	if b == 0 && h.isSkippable() {
		return
	}
	compact := h.isCompressible()
	h.encodePosition(pos)
	if h.isTypeIdEncoded(TOctet) {
		if compact && IsTinyInt(int64(b)) {
			h.out.WritePackedInt32(EncodeTinyInt(int32(b)))
			return
		}
		h.out.WritePackedInt32(TOctet)
	}
	_ = h.out.WriteByte(b)
}

func (h *WritingHandler) OnOctetString(pos int32, b []byte) {
	compact := h.isCompressible()
	h.encodePosition(pos)
	if h.isTypeIdEncoded(TOctetString) {
		if compact && len(b) == 0 {
			h.out.WritePackedInt32(VStringZeroLength)
			return
		}
		h.out.WritePackedInt32(TOctetString)
	}
	h.out.WriteBinary(b)
}

func (h *WritingHandler) OnChar(pos int32, ch Char) {
	if ch == 0 && h.isSkippable() {
		return
	}
	h.encodePosition(pos)
	if h.isTypeIdEncoded(TChar) {
		h.out.WritePackedInt32(TChar)
	}
	h.out.WriteChar(rune(ch))
}

func (h *WritingHandler) OnCharString(pos int32, s string) {
	compact := h.isCompressible()
	h.encodePosition(pos)
	if h.isTypeIdEncoded(TCharString) {
		if compact && len(s) == 0 {
			h.out.WritePackedInt32(VStringZeroLength)
			return
		}
		h.out.WritePackedInt32(TCharString)
	}
	h.out.WriteString(s)
}

func (h *WritingHandler) OnDate(pos int32, d Date) {
	h.encodePosition(pos)
	if h.isTypeIdEncoded(TDate) {
		h.out.WritePackedInt32(TDate)
	}
	h.writeDate(d)
}

func (h *WritingHandler) OnYearMonthInterval(pos int32, iv YearMonthInterval) {
	h.encodePosition(pos)
	if h.isTypeIdEncoded(TYearMonthInterval) {
		h.out.WritePackedInt32(TYearMonthInterval)
	}
	h.out.WritePackedInt32(iv.Years)
	h.out.WritePackedInt32(iv.Months)
}

func (h *WritingHandler) OnTime(pos int32, t Time) {
	h.encodePosition(pos)
	if h.isTypeIdEncoded(TTime) {
		h.out.WritePackedInt32(TTime)
	}
	h.writeTime(t)
}

func (h *WritingHandler) OnTimeInterval(pos int32, iv TimeInterval) {
	h.encodePosition(pos)
	if h.isTypeIdEncoded(TTimeInterval) {
		h.out.WritePackedInt32(TTimeInterval)
	}
	h.out.WritePackedInt32(iv.Hours)
	h.out.WritePackedInt32(iv.Minutes)
	h.out.WritePackedInt32(iv.Seconds)
	h.out.WritePackedInt32(iv.Nanos)
}

func (h *WritingHandler) OnDateTime(pos int32, d Date, t Time) {
	h.encodePosition(pos)
	if h.isTypeIdEncoded(TDateTime) {
		h.out.WritePackedInt32(TDateTime)
	}
	h.writeDate(d)
	h.writeTime(t)
}

func (h *WritingHandler) OnDayTimeInterval(pos int32, days, hours, minutes, seconds, nanos int32) {
	h.encodePosition(pos)
	if h.isTypeIdEncoded(TDayTimeInterval) {
		h.out.WritePackedInt32(TDayTimeInterval)
	}
	h.out.WritePackedInt32(days)
	h.out.WritePackedInt32(hours)
	h.out.WritePackedInt32(minutes)
	h.out.WritePackedInt32(seconds)
	h.out.WritePackedInt32(nanos)
}

func (h *WritingHandler) writeDate(d Date) {
	h.out.WritePackedInt32(d.Year)
	h.out.WritePackedInt32(d.Month)
	h.out.WritePackedInt32(d.Day)
}

// writeTime emits hour, minute, second, the fraction (0, millis, or negated
// nanos) and the zone
func (h *WritingHandler) writeTime(t Time) {
	h.out.WritePackedInt32(t.Hour)
	h.out.WritePackedInt32(t.Minute)
	h.out.WritePackedInt32(t.Second)
	switch {
	case t.Nano == 0:
		h.out.WritePackedInt32(0)
	case t.Nano%1_000_000 == 0:
		h.out.WritePackedInt32(t.Nano / 1_000_000)
	default:
		h.out.WritePackedInt32(-t.Nano)
	}
	h.out.WritePackedInt32(int32(t.Zone))
	if t.Zone == ZoneOffset {
		h.out.WritePackedInt32(t.HourOffset)
		h.out.WritePackedInt32(t.MinuteOffset)
	}
}

// --------------------------------------------------------------------------
// Complex Values
// --------------------------------------------------------------------------

// beginComplex writes the header shared by all collection like values and
// reports whether the value collapsed to VCollectionEmpty
func (h *WritingHandler) beginComplex(pos, tag, count int32, typeIds ...int32) bool {
	compact := h.isCompressible()
	h.encodePosition(pos)
	encoded := h.isTypeIdEncoded(tag)
	if encoded && compact && count == 0 {
		h.out.WritePackedInt32(VCollectionEmpty)
		return true
	}
	if encoded {
		h.out.WritePackedInt32(tag)
	}
	for _, t := range typeIds {
		h.out.WritePackedInt32(t)
	}
	h.out.WritePackedInt32(count)
	return false
}

// beginSparse writes a sparse array header. Empty sparse arrays keep their
// tag so that they do not decode as an empty collection.
func (h *WritingHandler) beginSparse(pos, tag, count int32, typeIds ...int32) {
	h.encodePosition(pos)
	if h.isTypeIdEncoded(tag) {
		h.out.WritePackedInt32(tag)
	}
	for _, t := range typeIds {
		h.out.WritePackedInt32(t)
	}
	h.out.WritePackedInt32(count)
}

func (h *WritingHandler) BeginCollection(pos int32, count int32) {
	h.beginComplex(pos, TCollection, count)
	h.push(complexFrame{})
}

func (h *WritingHandler) BeginUniformCollection(pos int32, count int32, typeId int32) {
	h.beginComplex(pos, TUniformCollection, count, typeId)
	h.push(complexFrame{uniform: true, uniformType: typeId})
}

func (h *WritingHandler) BeginArray(pos int32, count int32) {
	h.beginComplex(pos, TArray, count)
	h.push(complexFrame{})
}

func (h *WritingHandler) BeginUniformArray(pos int32, count int32, typeId int32) {
	h.beginComplex(pos, TUniformArray, count, typeId)
	h.push(complexFrame{uniform: true, uniformType: typeId})
}

func (h *WritingHandler) BeginSparseArray(pos int32, count int32) {
	h.beginSparse(pos, TSparseArray, count)
	h.push(complexFrame{sparse: true, terminate: true})
}

func (h *WritingHandler) BeginUniformSparseArray(pos int32, count int32, typeId int32) {
	h.beginSparse(pos, TUniformSparseArray, count, typeId)
	h.push(complexFrame{sparse: true, terminate: true, uniform: true, uniformType: typeId})
}

func (h *WritingHandler) BeginMap(pos int32, count int32) {
	h.beginComplex(pos, TMap, count)
	h.push(complexFrame{isMap: true, valuePhase: true})
}

func (h *WritingHandler) BeginUniformKeysMap(pos int32, count int32, keyTypeId int32) {
	h.beginComplex(pos, TUniformKeysMap, count, keyTypeId)
	h.push(complexFrame{isMap: true, valuePhase: true, uniform: true, uniformType: keyTypeId})
}

func (h *WritingHandler) BeginUniformMap(pos int32, count int32, keyTypeId int32, valueTypeId int32) {
	h.beginComplex(pos, TUniformMap, count, keyTypeId, valueTypeId)
	h.push(complexFrame{isMap: true, valuePhase: true, uniform: true, uniformType: keyTypeId,
		valueUniform: true, valueType: valueTypeId})
}

func (h *WritingHandler) BeginUserType(pos int32, identity int32, typeId int32, versionId int32) {
	if identity >= 0 {
		h.RegisterIdentity(identity)
	}
	h.encodePosition(pos)
	if h.isTypeIdEncoded(typeId) {
		h.out.WritePackedInt32(typeId)
	}
	h.out.WritePackedInt32(versionId)
	h.push(complexFrame{sparse: true, skipDefaults: true, terminate: true})
}

func (h *WritingHandler) EndComplexValue() {
	f := h.top()
	if f == nil {
		protocolPanicf("end of complex value without matching begin")
	}
	if f.terminate {
		h.out.WritePackedInt32(sparseTerminator)
	}
	h.frames = h.frames[:len(h.frames)-1]
}
