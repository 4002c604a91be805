package pof

import (
	"fmt"
	"io"
	"math/big"
	"strings"
)

// --------------------------------------------------------------------------
// Handler Interface
// --------------------------------------------------------------------------

// IPofHandler receives the events of a POF value stream. pos is the property
// index inside a user type, the element index inside an array or
// collection, the entry counter inside a map, or -1 for a top level value.
// Every Begin* call is matched by exactly one EndComplexValue call.
type IPofHandler interface {
	// RegisterIdentity announces that the next value carries identity id
	RegisterIdentity(id int32)
	OnNullReference(pos int32)
	OnIdentityReference(pos int32, id int32)

	OnInt16(pos int32, n int16)
	OnInt32(pos int32, n int32)
	OnInt64(pos int32, n int64)
	OnInt128(pos int32, n *big.Int)
	OnFloat32(pos int32, f float32)
	OnFloat64(pos int32, f float64)
	OnDecimal(pos int32, d Decimal)
	OnBoolean(pos int32, b bool)
	OnOctet(pos int32, b byte)
	OnOctetString(pos int32, b []byte)
	OnChar(pos int32, ch Char)
	OnCharString(pos int32, s string)
	OnDate(pos int32, d Date)
	OnYearMonthInterval(pos int32, iv YearMonthInterval)
	OnTime(pos int32, t Time)
	OnTimeInterval(pos int32, iv TimeInterval)
	OnDateTime(pos int32, d Date, t Time)
	OnDayTimeInterval(pos int32, days, hours, minutes, seconds, nanos int32)

	BeginCollection(pos int32, count int32)
	BeginUniformCollection(pos int32, count int32, typeId int32)
	BeginArray(pos int32, count int32)
	BeginUniformArray(pos int32, count int32, typeId int32)
	BeginSparseArray(pos int32, count int32)
	BeginUniformSparseArray(pos int32, count int32, typeId int32)
	BeginMap(pos int32, count int32)
	BeginUniformKeysMap(pos int32, count int32, keyTypeId int32)
	BeginUniformMap(pos int32, count int32, keyTypeId int32, valueTypeId int32)
	// BeginUserType starts a user type value; identity is -1 if the value has none
	BeginUserType(pos int32, identity int32, typeId int32, versionId int32)

	EndComplexValue()
}

// --------------------------------------------------------------------------
// Null Handler
// --------------------------------------------------------------------------

// NullHandler ignores every event. It is used to skip values and can be
// embedded by handlers that only care about a few events.
type NullHandler struct{}

func (NullHandler) RegisterIdentity(int32)                                     {}
func (NullHandler) OnNullReference(int32)                                      {}
func (NullHandler) OnIdentityReference(int32, int32)                           {}
func (NullHandler) OnInt16(int32, int16)                                       {}
func (NullHandler) OnInt32(int32, int32)                                       {}
func (NullHandler) OnInt64(int32, int64)                                       {}
func (NullHandler) OnInt128(int32, *big.Int)                                   {}
func (NullHandler) OnFloat32(int32, float32)                                   {}
func (NullHandler) OnFloat64(int32, float64)                                   {}
func (NullHandler) OnDecimal(int32, Decimal)                                   {}
func (NullHandler) OnBoolean(int32, bool)                                      {}
func (NullHandler) OnOctet(int32, byte)                                        {}
func (NullHandler) OnOctetString(int32, []byte)                                {}
func (NullHandler) OnChar(int32, Char)                                         {}
func (NullHandler) OnCharString(int32, string)                                 {}
func (NullHandler) OnDate(int32, Date)                                         {}
func (NullHandler) OnYearMonthInterval(int32, YearMonthInterval)               {}
func (NullHandler) OnTime(int32, Time)                                         {}
func (NullHandler) OnTimeInterval(int32, TimeInterval)                         {}
func (NullHandler) OnDateTime(int32, Date, Time)                               {}
func (NullHandler) OnDayTimeInterval(int32, int32, int32, int32, int32, int32) {}
func (NullHandler) BeginCollection(int32, int32)                               {}
func (NullHandler) BeginUniformCollection(int32, int32, int32)                 {}
func (NullHandler) BeginArray(int32, int32)                                    {}
func (NullHandler) BeginUniformArray(int32, int32, int32)                      {}
func (NullHandler) BeginSparseArray(int32, int32)                              {}
func (NullHandler) BeginUniformSparseArray(int32, int32, int32)                {}
func (NullHandler) BeginMap(int32, int32)                                      {}
func (NullHandler) BeginUniformKeysMap(int32, int32, int32)                    {}
func (NullHandler) BeginUniformMap(int32, int32, int32, int32)                 {}
func (NullHandler) BeginUserType(int32, int32, int32, int32)                   {}
func (NullHandler) EndComplexValue()                                           {}

// --------------------------------------------------------------------------
// Duplex Handler (tee)
// --------------------------------------------------------------------------

// NewDuplexHandler returns a handler that forwards every event to a and then to b
func NewDuplexHandler(a, b IPofHandler) IPofHandler {
	return &duplexHandlerImpl{a: a, b: b}
}

type duplexHandlerImpl struct {
	a, b IPofHandler
}

func (h *duplexHandlerImpl) RegisterIdentity(id int32) {
	h.a.RegisterIdentity(id)
	h.b.RegisterIdentity(id)
}
func (h *duplexHandlerImpl) OnNullReference(pos int32) {
	h.a.OnNullReference(pos)
	h.b.OnNullReference(pos)
}
func (h *duplexHandlerImpl) OnIdentityReference(pos, id int32) {
	h.a.OnIdentityReference(pos, id)
	h.b.OnIdentityReference(pos, id)
}
func (h *duplexHandlerImpl) OnInt16(pos int32, n int16) {
	h.a.OnInt16(pos, n)
	h.b.OnInt16(pos, n)
}
func (h *duplexHandlerImpl) OnInt32(pos int32, n int32) {
	h.a.OnInt32(pos, n)
	h.b.OnInt32(pos, n)
}
func (h *duplexHandlerImpl) OnInt64(pos int32, n int64) {
	h.a.OnInt64(pos, n)
	h.b.OnInt64(pos, n)
}
func (h *duplexHandlerImpl) OnInt128(pos int32, n *big.Int) {
	h.a.OnInt128(pos, n)
	h.b.OnInt128(pos, n)
}
func (h *duplexHandlerImpl) OnFloat32(pos int32, f float32) {
	h.a.OnFloat32(pos, f)
	h.b.OnFloat32(pos, f)
}
func (h *duplexHandlerImpl) OnFloat64(pos int32, f float64) {
	h.a.OnFloat64(pos, f)
	h.b.OnFloat64(pos, f)
}
func (h *duplexHandlerImpl) OnDecimal(pos int32, d Decimal) {
	h.a.OnDecimal(pos, d)
	h.b.OnDecimal(pos, d)
}
func (h *duplexHandlerImpl) OnBoolean(pos int32, b bool) {
	h.a.OnBoolean(pos, b)
	h.b.OnBoolean(pos, b)
}
func (h *duplexHandlerImpl) OnOctet(pos int32, b byte) {
	h.a.OnOctet(pos, b)
	h.b.OnOctet(pos, b)
}
func (h *duplexHandlerImpl) OnOctetString(pos int32, b []byte) {
	h.a.OnOctetString(pos, b)
	h.b.OnOctetString(pos, b)
}
func (h *duplexHandlerImpl) OnChar(pos int32, ch Char) {
	h.a.OnChar(pos, ch)
	h.b.OnChar(pos, ch)
}
func (h *duplexHandlerImpl) OnCharString(pos int32, s string) {
	h.a.OnCharString(pos, s)
	h.b.OnCharString(pos, s)
}
func (h *duplexHandlerImpl) OnDate(pos int32, d Date) {
	h.a.OnDate(pos, d)
	h.b.OnDate(pos, d)
}
func (h *duplexHandlerImpl) OnYearMonthInterval(pos int32, iv YearMonthInterval) {
	h.a.OnYearMonthInterval(pos, iv)
	h.b.OnYearMonthInterval(pos, iv)
}
func (h *duplexHandlerImpl) OnTime(pos int32, t Time) {
	h.a.OnTime(pos, t)
	h.b.OnTime(pos, t)
}
func (h *duplexHandlerImpl) OnTimeInterval(pos int32, iv TimeInterval) {
	h.a.OnTimeInterval(pos, iv)
	h.b.OnTimeInterval(pos, iv)
}
func (h *duplexHandlerImpl) OnDateTime(pos int32, d Date, t Time) {
	h.a.OnDateTime(pos, d, t)
	h.b.OnDateTime(pos, d, t)
}
func (h *duplexHandlerImpl) OnDayTimeInterval(pos int32, days, hours, minutes, seconds, nanos int32) {
	h.a.OnDayTimeInterval(pos, days, hours, minutes, seconds, nanos)
	h.b.OnDayTimeInterval(pos, days, hours, minutes, seconds, nanos)
}
func (h *duplexHandlerImpl) BeginCollection(pos, count int32) {
	h.a.BeginCollection(pos, count)
	h.b.BeginCollection(pos, count)
}
func (h *duplexHandlerImpl) BeginUniformCollection(pos, count, typeId int32) {
	h.a.BeginUniformCollection(pos, count, typeId)
	h.b.BeginUniformCollection(pos, count, typeId)
}
func (h *duplexHandlerImpl) BeginArray(pos, count int32) {
	h.a.BeginArray(pos, count)
	h.b.BeginArray(pos, count)
}
func (h *duplexHandlerImpl) BeginUniformArray(pos, count, typeId int32) {
	h.a.BeginUniformArray(pos, count, typeId)
	h.b.BeginUniformArray(pos, count, typeId)
}
func (h *duplexHandlerImpl) BeginSparseArray(pos, count int32) {
	h.a.BeginSparseArray(pos, count)
	h.b.BeginSparseArray(pos, count)
}
func (h *duplexHandlerImpl) BeginUniformSparseArray(pos, count, typeId int32) {
	h.a.BeginUniformSparseArray(pos, count, typeId)
	h.b.BeginUniformSparseArray(pos, count, typeId)
}
func (h *duplexHandlerImpl) BeginMap(pos, count int32) {
	h.a.BeginMap(pos, count)
	h.b.BeginMap(pos, count)
}
func (h *duplexHandlerImpl) BeginUniformKeysMap(pos, count, keyTypeId int32) {
	h.a.BeginUniformKeysMap(pos, count, keyTypeId)
	h.b.BeginUniformKeysMap(pos, count, keyTypeId)
}
func (h *duplexHandlerImpl) BeginUniformMap(pos, count, keyTypeId, valueTypeId int32) {
	h.a.BeginUniformMap(pos, count, keyTypeId, valueTypeId)
	h.b.BeginUniformMap(pos, count, keyTypeId, valueTypeId)
}
func (h *duplexHandlerImpl) BeginUserType(pos, identity, typeId, versionId int32) {
	h.a.BeginUserType(pos, identity, typeId, versionId)
	h.b.BeginUserType(pos, identity, typeId, versionId)
}
func (h *duplexHandlerImpl) EndComplexValue() {
	h.a.EndComplexValue()
	h.b.EndComplexValue()
}

// --------------------------------------------------------------------------
// Validating Handler
// --------------------------------------------------------------------------

// ValidatingHandler checks the structural contract of an event stream:
// balanced Begin*/EndComplexValue calls and strictly increasing positions
// inside sparse frames. Violations panic with a *ProtocolError.
type ValidatingHandler struct {
	frames []validatingFrame
	begins int
	ends   int
}

type validatingFrame struct {
	sparse bool
	last   int32
}

// NewValidatingHandler creates an empty validating handler
func NewValidatingHandler() *ValidatingHandler {
	return &ValidatingHandler{}
}

// Depth returns the number of open complex values
func (h *ValidatingHandler) Depth() int { return len(h.frames) }

// Balanced reports whether every begin has been matched by an end
func (h *ValidatingHandler) Balanced() bool { return len(h.frames) == 0 && h.begins == h.ends }

func (h *ValidatingHandler) value(pos int32) {
	if len(h.frames) == 0 {
		return
	}
	f := &h.frames[len(h.frames)-1]
	if f.sparse {
		if pos <= f.last {
			protocolPanicf("sparse position %d does not follow %d", pos, f.last)
		}
		f.last = pos
	}
}

func (h *ValidatingHandler) begin(pos int32, sparse bool) {
	h.value(pos)
	h.begins++
	h.frames = append(h.frames, validatingFrame{sparse: sparse, last: -1})
}

func (h *ValidatingHandler) RegisterIdentity(int32)                 {}
func (h *ValidatingHandler) OnNullReference(pos int32)              { h.value(pos) }
func (h *ValidatingHandler) OnIdentityReference(pos int32, _ int32) { h.value(pos) }
func (h *ValidatingHandler) OnInt16(pos int32, _ int16)             { h.value(pos) }
func (h *ValidatingHandler) OnInt32(pos int32, _ int32)             { h.value(pos) }
func (h *ValidatingHandler) OnInt64(pos int32, _ int64)             { h.value(pos) }
func (h *ValidatingHandler) OnInt128(pos int32, _ *big.Int)         { h.value(pos) }
func (h *ValidatingHandler) OnFloat32(pos int32, _ float32)         { h.value(pos) }
func (h *ValidatingHandler) OnFloat64(pos int32, _ float64)         { h.value(pos) }
func (h *ValidatingHandler) OnDecimal(pos int32, _ Decimal)         { h.value(pos) }
func (h *ValidatingHandler) OnBoolean(pos int32, _ bool)            { h.value(pos) }
func (h *ValidatingHandler) OnOctet(pos int32, _ byte)              { h.value(pos) }
func (h *ValidatingHandler) OnOctetString(pos int32, _ []byte)      { h.value(pos) }
func (h *ValidatingHandler) OnChar(pos int32, _ Char)               { h.value(pos) }
func (h *ValidatingHandler) OnCharString(pos int32, _ string)       { h.value(pos) }
func (h *ValidatingHandler) OnDate(pos int32, _ Date)               { h.value(pos) }
func (h *ValidatingHandler) OnYearMonthInterval(pos int32, _ YearMonthInterval) {
	h.value(pos)
}
func (h *ValidatingHandler) OnTime(pos int32, _ Time)                 { h.value(pos) }
func (h *ValidatingHandler) OnTimeInterval(pos int32, _ TimeInterval) { h.value(pos) }
func (h *ValidatingHandler) OnDateTime(pos int32, _ Date, _ Time)     { h.value(pos) }
func (h *ValidatingHandler) OnDayTimeInterval(pos int32, _, _, _, _, _ int32) {
	h.value(pos)
}
func (h *ValidatingHandler) BeginCollection(pos, _ int32)            { h.begin(pos, false) }
func (h *ValidatingHandler) BeginUniformCollection(pos, _, _ int32)  { h.begin(pos, false) }
func (h *ValidatingHandler) BeginArray(pos, _ int32)                 { h.begin(pos, false) }
func (h *ValidatingHandler) BeginUniformArray(pos, _, _ int32)       { h.begin(pos, false) }
func (h *ValidatingHandler) BeginSparseArray(pos, _ int32)           { h.begin(pos, true) }
func (h *ValidatingHandler) BeginUniformSparseArray(pos, _, _ int32) { h.begin(pos, true) }
func (h *ValidatingHandler) BeginMap(pos, _ int32)                   { h.begin(pos, false) }
func (h *ValidatingHandler) BeginUniformKeysMap(pos, _, _ int32)     { h.begin(pos, false) }
func (h *ValidatingHandler) BeginUniformMap(pos, _, _, _ int32)      { h.begin(pos, false) }
func (h *ValidatingHandler) BeginUserType(pos, _, _, _ int32)        { h.begin(pos, true) }

func (h *ValidatingHandler) EndComplexValue() {
	if len(h.frames) == 0 {
		protocolPanicf("end of complex value without matching begin")
	}
	h.frames = h.frames[:len(h.frames)-1]
	h.ends++
}

// --------------------------------------------------------------------------
// Printing Handler
// --------------------------------------------------------------------------

// NewPrintingHandler returns a handler that writes one indented line per event to w.
// Write errors are ignored so that dumping never interrupts parsing.
func NewPrintingHandler(w io.Writer) IPofHandler {
	return &printingHandlerImpl{w: w}
}

type printingHandlerImpl struct {
	w        io.Writer
	depth    int
	identity int32
	pending  bool
}

func (h *printingHandlerImpl) line(pos int32, format string, args ...any) {
	var buf strings.Builder
	buf.WriteString(strings.Repeat("  ", h.depth))
	if pos >= 0 {
		fmt.Fprintf(&buf, "[%d] ", pos)
	}
	if h.pending {
		fmt.Fprintf(&buf, "#%d ", h.identity)
		h.pending = false
	}
	fmt.Fprintf(&buf, format, args...)
	buf.WriteByte('\n')
	_, _ = io.WriteString(h.w, buf.String())
}

func (h *printingHandlerImpl) open(pos int32, format string, args ...any) {
	h.line(pos, format, args...)
	h.depth++
}

func (h *printingHandlerImpl) RegisterIdentity(id int32) {
	h.identity = id
	h.pending = true
}
func (h *printingHandlerImpl) OnNullReference(pos int32) { h.line(pos, "null") }
func (h *printingHandlerImpl) OnIdentityReference(pos, id int32) {
	h.line(pos, "reference -> #%d", id)
}
func (h *printingHandlerImpl) OnInt16(pos int32, n int16)     { h.line(pos, "int16 %d", n) }
func (h *printingHandlerImpl) OnInt32(pos int32, n int32)     { h.line(pos, "int32 %d", n) }
func (h *printingHandlerImpl) OnInt64(pos int32, n int64)     { h.line(pos, "int64 %d", n) }
func (h *printingHandlerImpl) OnInt128(pos int32, n *big.Int) { h.line(pos, "int128 %s", n) }
func (h *printingHandlerImpl) OnFloat32(pos int32, f float32) { h.line(pos, "float32 %g", f) }
func (h *printingHandlerImpl) OnFloat64(pos int32, f float64) { h.line(pos, "float64 %g", f) }
func (h *printingHandlerImpl) OnDecimal(pos int32, d Decimal) { h.line(pos, "decimal %s", d) }
func (h *printingHandlerImpl) OnBoolean(pos int32, b bool)    { h.line(pos, "boolean %t", b) }
func (h *printingHandlerImpl) OnOctet(pos int32, b byte)      { h.line(pos, "octet 0x%02x", b) }
func (h *printingHandlerImpl) OnOctetString(pos int32, b []byte) {
	h.line(pos, "octet-string (%d) %x", len(b), b)
}
func (h *printingHandlerImpl) OnChar(pos int32, ch Char)        { h.line(pos, "char %q", rune(ch)) }
func (h *printingHandlerImpl) OnCharString(pos int32, s string) { h.line(pos, "string %q", s) }
func (h *printingHandlerImpl) OnDate(pos int32, d Date)         { h.line(pos, "date %s", d) }
func (h *printingHandlerImpl) OnYearMonthInterval(pos int32, iv YearMonthInterval) {
	h.line(pos, "year-month-interval %dy%dm", iv.Years, iv.Months)
}
func (h *printingHandlerImpl) OnTime(pos int32, t Time) { h.line(pos, "time %s", t) }
func (h *printingHandlerImpl) OnTimeInterval(pos int32, iv TimeInterval) {
	h.line(pos, "time-interval %s", iv.Duration())
}
func (h *printingHandlerImpl) OnDateTime(pos int32, d Date, t Time) {
	h.line(pos, "datetime %sT%s", d, t)
}
func (h *printingHandlerImpl) OnDayTimeInterval(pos int32, days, hours, minutes, seconds, nanos int32) {
	iv := dayTimeInterval{days, hours, minutes, seconds, nanos}
	h.line(pos, "day-time-interval %s", iv.duration())
}
func (h *printingHandlerImpl) BeginCollection(pos, count int32) {
	h.open(pos, "collection (%d)", count)
}
func (h *printingHandlerImpl) BeginUniformCollection(pos, count, typeId int32) {
	h.open(pos, "collection<%s> (%d)", TypeName(typeId), count)
}
func (h *printingHandlerImpl) BeginArray(pos, count int32) { h.open(pos, "array (%d)", count) }
func (h *printingHandlerImpl) BeginUniformArray(pos, count, typeId int32) {
	h.open(pos, "array<%s> (%d)", TypeName(typeId), count)
}
func (h *printingHandlerImpl) BeginSparseArray(pos, count int32) {
	h.open(pos, "sparse-array (%d)", count)
}
func (h *printingHandlerImpl) BeginUniformSparseArray(pos, count, typeId int32) {
	h.open(pos, "sparse-array<%s> (%d)", TypeName(typeId), count)
}
func (h *printingHandlerImpl) BeginMap(pos, count int32) { h.open(pos, "map (%d)", count) }
func (h *printingHandlerImpl) BeginUniformKeysMap(pos, count, keyTypeId int32) {
	h.open(pos, "map<%s,*> (%d)", TypeName(keyTypeId), count)
}
func (h *printingHandlerImpl) BeginUniformMap(pos, count, keyTypeId, valueTypeId int32) {
	h.open(pos, "map<%s,%s> (%d)", TypeName(keyTypeId), TypeName(valueTypeId), count)
}
func (h *printingHandlerImpl) BeginUserType(pos, identity, typeId, versionId int32) {
	if identity >= 0 {
		h.RegisterIdentity(identity)
	}
	h.open(pos, "user-type %d v%d", typeId, versionId)
}
func (h *printingHandlerImpl) EndComplexValue() {
	if h.depth > 0 {
		h.depth--
	}
}
