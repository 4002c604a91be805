package pof

import (
	"math"
)

// DefaultMaxDepth limits the nesting of complex values accepted by the decoder
const DefaultMaxDepth = 512

// maxBigIntBytes bounds the packed encoding of int128 and decimal values
const maxBigIntBytes = 20

// --------------------------------------------------------------------------
// Parser
// --------------------------------------------------------------------------

// Parser walks a POF stream and reports every value to a handler. It is the
// decoding counterpart of WritingHandler: parsing the output of a
// WritingHandler into another WritingHandler reproduces the input bytes.
type Parser struct {
	in       *ReadBuffer
	handler  IPofHandler
	depth    int
	maxDepth int
}

// NewParser creates a parser that reads from in and reports to handler
func NewParser(in *ReadBuffer, handler IPofHandler) *Parser {
	return &Parser{in: in, handler: handler, maxDepth: DefaultMaxDepth}
}

// Parse decodes one complete top level value from data
func Parse(data []byte, handler IPofHandler) error {
	p := NewParser(NewReadBuffer(data), handler)
	if err := p.ParseValue(noPosition); err != nil {
		return err
	}
	if rem := p.in.Remaining(); rem != 0 {
		return streamErrf(data, p.in.Offset(), ErrInvalidLength, "%d trailing bytes after value", rem)
	}
	return nil
}

// SetMaxDepth changes the nesting limit
func (p *Parser) SetMaxDepth(n int) { p.maxDepth = n }

// ParseValue reads a tagged value (optionally preceded by an identity) at pos
func (p *Parser) ParseValue(pos int32) error {
	tag, err := p.in.ReadPackedInt32()
	if err != nil {
		return err
	}
	if tag == TIdentity {
		id, err := p.in.ReadPackedInt32()
		if err != nil {
			return err
		}
		p.handler.RegisterIdentity(id)
		if tag, err = p.in.ReadPackedInt32(); err != nil {
			return err
		}
	}
	return p.ParseUniformValue(pos, tag)
}

// ParseUniformValue reads a value whose type tag has already been consumed
// or is implied by an enclosing uniform frame
func (p *Parser) ParseUniformValue(pos int32, tag int32) error {
	in, h := p.in, p.handler
	switch {
	case tag >= 0:
		return p.parseUserType(pos, tag)
	case isTinyIntTag(tag):
		h.OnInt32(pos, DecodeTinyInt(tag))
		return nil
	}

	switch tag {
	case TInt16:
		n, err := in.ReadPackedInt32()
		if err != nil {
			return err
		}
		if n < math.MinInt16 || n > math.MaxInt16 {
			return streamErrf(in.Data(), in.Offset(), ErrOverflow, "int16 out of range (%d)", n)
		}
		h.OnInt16(pos, int16(n))
	case TInt32:
		n, err := in.ReadPackedInt32()
		if err != nil {
			return err
		}
		h.OnInt32(pos, n)
	case TInt64:
		n, err := in.ReadPackedInt64()
		if err != nil {
			return err
		}
		h.OnInt64(pos, n)
	case TInt128:
		n, err := in.ReadPackedBigInt(maxBigIntBytes)
		if err != nil {
			return err
		}
		h.OnInt128(pos, n)
	case TFloat32:
		f, err := in.ReadFloat32()
		if err != nil {
			return err
		}
		h.OnFloat32(pos, f)
	case TFloat64:
		f, err := in.ReadFloat64()
		if err != nil {
			return err
		}
		h.OnFloat64(pos, f)
	case TFloat128:
		return streamErrf(in.Data(), in.Offset(), ErrUnsupportedType, "float128 values are not supported")
	case TDecimal32, TDecimal64, TDecimal128:
		d, err := readDecimal(in)
		if err != nil {
			return err
		}
		h.OnDecimal(pos, d)
	case TBoolean:
		n, err := in.ReadPackedInt32()
		if err != nil {
			return err
		}
		h.OnBoolean(pos, n != 0)
	case TOctet:
		b, err := in.ReadByte()
		if err != nil {
			return err
		}
		h.OnOctet(pos, b)
	case TOctetString:
		b, err := in.ReadBinary()
		if err != nil {
			return err
		}
		h.OnOctetString(pos, b)
	case TChar:
		ch, err := in.ReadChar()
		if err != nil {
			return err
		}
		h.OnChar(pos, Char(ch))
	case TCharString:
		s, err := in.ReadString()
		if err != nil {
			return err
		}
		h.OnCharString(pos, s)
	case TDate:
		d, err := readDate(in)
		if err != nil {
			return err
		}
		h.OnDate(pos, d)
	case TYearMonthInterval:
		v, err := readInts(in, 2)
		if err != nil {
			return err
		}
		h.OnYearMonthInterval(pos, YearMonthInterval{Years: v[0], Months: v[1]})
	case TTime:
		t, err := readTime(in)
		if err != nil {
			return err
		}
		h.OnTime(pos, t)
	case TTimeInterval:
		v, err := readInts(in, 4)
		if err != nil {
			return err
		}
		h.OnTimeInterval(pos, TimeInterval{Hours: v[0], Minutes: v[1], Seconds: v[2], Nanos: v[3]})
	case TDateTime:
		d, err := readDate(in)
		if err != nil {
			return err
		}
		t, err := readTime(in)
		if err != nil {
			return err
		}
		h.OnDateTime(pos, d, t)
	case TDayTimeInterval:
		v, err := readInts(in, 5)
		if err != nil {
			return err
		}
		h.OnDayTimeInterval(pos, v[0], v[1], v[2], v[3], v[4])
	case TCollection, TArray:
		return p.parseDense(pos, tag)
	case TUniformCollection, TUniformArray:
		return p.parseUniformDense(pos, tag)
	case TSparseArray, TUniformSparseArray:
		return p.parseSparse(pos, tag)
	case TMap, TUniformKeysMap, TUniformMap:
		return p.parseMap(pos, tag)
	case TReference:
		id, err := in.ReadPackedInt32()
		if err != nil {
			return err
		}
		h.OnIdentityReference(pos, id)
	case VBooleanFalse:
		h.OnBoolean(pos, false)
	case VBooleanTrue:
		h.OnBoolean(pos, true)
	case VStringZeroLength:
		h.OnCharString(pos, "")
	case VCollectionEmpty:
		h.BeginCollection(pos, 0)
		h.EndComplexValue()
	case VReferenceNull:
		h.OnNullReference(pos)
	case VFPPosInfinity:
		h.OnFloat64(pos, math.Inf(1))
	case VFPNegInfinity:
		h.OnFloat64(pos, math.Inf(-1))
	case VFPNaN:
		h.OnFloat64(pos, math.NaN())
	default:
		return streamErrf(in.Data(), in.Offset(), ErrUnknownTag, "unknown type tag %d", tag)
	}
	return nil
}

func (p *Parser) enter() error {
	p.depth++
	if p.depth > p.maxDepth {
		return streamErrf(p.in.Data(), p.in.Offset(), ErrDepthExceeded, "nesting deeper than %d", p.maxDepth)
	}
	return nil
}

func (p *Parser) leave() {
	p.depth--
	p.handler.EndComplexValue()
}

// readCount reads an element count and rejects counts the input cannot hold
func (p *Parser) readCount() (int32, error) {
	return readCount(p.in)
}

func (p *Parser) parseDense(pos, tag int32) error {
	count, err := p.readCount()
	if err != nil {
		return err
	}
	if err := p.enter(); err != nil {
		return err
	}
	if tag == TArray {
		p.handler.BeginArray(pos, count)
	} else {
		p.handler.BeginCollection(pos, count)
	}
	for i := int32(0); i < count; i++ {
		if err := p.ParseValue(i); err != nil {
			return err
		}
	}
	p.leave()
	return nil
}

func (p *Parser) parseUniformDense(pos, tag int32) error {
	elemType, err := p.in.ReadPackedInt32()
	if err != nil {
		return err
	}
	count, err := p.readCount()
	if err != nil {
		return err
	}
	if err := p.enter(); err != nil {
		return err
	}
	if tag == TUniformArray {
		p.handler.BeginUniformArray(pos, count, elemType)
	} else {
		p.handler.BeginUniformCollection(pos, count, elemType)
	}
	for i := int32(0); i < count; i++ {
		if err := p.ParseUniformValue(i, elemType); err != nil {
			return err
		}
	}
	p.leave()
	return nil
}

func (p *Parser) parseSparse(pos, tag int32) error {
	elemType := TUnknown
	if tag == TUniformSparseArray {
		var err error
		if elemType, err = p.in.ReadPackedInt32(); err != nil {
			return err
		}
	}
	count, err := p.in.ReadPackedInt32()
	if err != nil {
		return err
	}
	if count < 0 {
		return streamErrf(p.in.Data(), p.in.Offset(), ErrInvalidLength, "negative sparse array size %d", count)
	}
	if err := p.enter(); err != nil {
		return err
	}
	if tag == TUniformSparseArray {
		p.handler.BeginUniformSparseArray(pos, count, elemType)
	} else {
		p.handler.BeginSparseArray(pos, count)
	}
	last := int32(-1)
	for {
		i, err := p.in.ReadPackedInt32()
		if err != nil {
			return err
		}
		if i < 0 {
			break
		}
		if i <= last || i >= count {
			return streamErrf(p.in.Data(), p.in.Offset(), ErrInvalidLength, "sparse array position %d out of order or range", i)
		}
		last = i
		if tag == TUniformSparseArray {
			err = p.ParseUniformValue(i, elemType)
		} else {
			err = p.ParseValue(i)
		}
		if err != nil {
			return err
		}
	}
	p.leave()
	return nil
}

func (p *Parser) parseMap(pos, tag int32) error {
	keyType, valueType := TUnknown, TUnknown
	var err error
	if tag == TUniformKeysMap || tag == TUniformMap {
		if keyType, err = p.in.ReadPackedInt32(); err != nil {
			return err
		}
	}
	if tag == TUniformMap {
		if valueType, err = p.in.ReadPackedInt32(); err != nil {
			return err
		}
	}
	count, err := p.readCount()
	if err != nil {
		return err
	}
	if err := p.enter(); err != nil {
		return err
	}
	switch tag {
	case TUniformKeysMap:
		p.handler.BeginUniformKeysMap(pos, count, keyType)
	case TUniformMap:
		p.handler.BeginUniformMap(pos, count, keyType, valueType)
	default:
		p.handler.BeginMap(pos, count)
	}
	for i := int32(0); i < count; i++ {
		if keyType != TUnknown {
			err = p.ParseUniformValue(i, keyType)
		} else {
			err = p.ParseValue(i)
		}
		if err != nil {
			return err
		}
		if valueType != TUnknown {
			err = p.ParseUniformValue(i, valueType)
		} else {
			err = p.ParseValue(i)
		}
		if err != nil {
			return err
		}
	}
	p.leave()
	return nil
}

func (p *Parser) parseUserType(pos, typeId int32) error {
	version, err := p.in.ReadPackedInt32()
	if err != nil {
		return err
	}
	if version < 0 {
		return streamErrf(p.in.Data(), p.in.Offset(), ErrInvalidLength, "negative version id %d for type %d", version, typeId)
	}
	if err := p.enter(); err != nil {
		return err
	}
	p.handler.BeginUserType(pos, noIdentity, typeId, version)
	last := int32(-1)
	for {
		prop, err := p.in.ReadPackedInt32()
		if err != nil {
			return locate(err, typeId, last)
		}
		if prop < 0 {
			break
		}
		if prop <= last {
			return locate(streamErrf(p.in.Data(), p.in.Offset(), ErrInvalidLength, "property %d follows %d", prop, last), typeId, prop)
		}
		last = prop
		if err := p.ParseValue(prop); err != nil {
			return locate(err, typeId, prop)
		}
	}
	p.leave()
	return nil
}

// --------------------------------------------------------------------------
// Skipping
// --------------------------------------------------------------------------

// skipValue advances in past one tagged value
func skipValue(in *ReadBuffer, maxDepth int) error {
	p := &Parser{in: in, handler: discard, maxDepth: maxDepth}
	return p.ParseValue(noPosition)
}

// skipUniformValue advances in past one value of the given implied type
func skipUniformValue(in *ReadBuffer, tag int32, maxDepth int) error {
	p := &Parser{in: in, handler: discard, maxDepth: maxDepth}
	return p.ParseUniformValue(noPosition, tag)
}

// --------------------------------------------------------------------------
// Shared Readers
// --------------------------------------------------------------------------

func readCount(in *ReadBuffer) (int32, error) {
	start := in.Offset()
	n, err := in.ReadPackedInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 || int(n) > in.Remaining() {
		return 0, streamErrf(in.Data(), start, ErrInvalidLength, "element count %d exceeds input", n)
	}
	return n, nil
}

func readInts(in *ReadBuffer, n int) ([]int32, error) {
	out := make([]int32, n)
	for i := range out {
		v, err := in.ReadPackedInt32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func readDate(in *ReadBuffer) (Date, error) {
	v, err := readInts(in, 3)
	if err != nil {
		return Date{}, err
	}
	return Date{Year: v[0], Month: v[1], Day: v[2]}, nil
}

func readTime(in *ReadBuffer) (Time, error) {
	v, err := readInts(in, 5)
	if err != nil {
		return Time{}, err
	}
	t := Time{Hour: v[0], Minute: v[1], Second: v[2], Zone: ZoneType(v[4])}
	switch frac := v[3]; {
	case frac > 0:
		t.Nano = frac * 1_000_000
	case frac < 0:
		t.Nano = -frac
	}
	switch t.Zone {
	case ZoneNone, ZoneUTC:
	case ZoneOffset:
		off, err := readInts(in, 2)
		if err != nil {
			return Time{}, err
		}
		t.HourOffset, t.MinuteOffset = off[0], off[1]
	default:
		return Time{}, streamErrf(in.Data(), in.Offset(), ErrUnknownTag, "unknown time zone type %d", t.Zone)
	}
	return t, nil
}

func readDecimal(in *ReadBuffer) (Decimal, error) {
	unscaled, err := in.ReadPackedBigInt(maxBigIntBytes)
	if err != nil {
		return Decimal{}, err
	}
	scale, err := in.ReadPackedInt32()
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{Unscaled: unscaled, Scale: scale}, nil
}

var discard IPofHandler = NullHandler{}
