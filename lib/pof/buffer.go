package pof

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"unicode/utf8"
)

// --------------------------------------------------------------------------
// WriteBuffer (byte sink)
// --------------------------------------------------------------------------

// MaxLength is the largest string or binary length a length prefix can carry
const MaxLength = math.MaxInt32

// checkLength rejects lengths that do not fit the 32-bit length prefix
func checkLength(n int) error {
	if n > MaxLength {
		return fmt.Errorf("%w: length %d exceeds %d", ErrInvalidLength, n, MaxLength)
	}
	return nil
}

// WriteBuffer is a growable byte sink with the primitive writes used by the
// POF grammar. Writes never fail, except that strings and binaries longer than
// MaxLength panic with a *ProtocolError; the zero value is ready to use.
type WriteBuffer struct {
	buf []byte
}

// NewWriteBuffer creates a write buffer that appends to buf
func NewWriteBuffer(buf []byte) *WriteBuffer {
	return &WriteBuffer{buf: buf[:0]}
}

// Bytes returns the written bytes. The slice aliases the buffer until the next write.
func (w *WriteBuffer) Bytes() []byte { return w.buf }

// Len returns the number of written bytes
func (w *WriteBuffer) Len() int { return len(w.buf) }

// Reset discards all written bytes but keeps the allocated capacity
func (w *WriteBuffer) Reset() { w.buf = w.buf[:0] }

// WriteByte appends a single raw byte
func (w *WriteBuffer) WriteByte(b byte) error {
	w.buf = append(w.buf, b)
	return nil
}

// Write appends p verbatim
func (w *WriteBuffer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// WritePackedInt32 appends n in the POF variable length format: the first
// byte carries a sign bit (0x40) and 6 value bits, every following byte 7
// value bits; 0x80 marks a continuation
func (w *WriteBuffer) WritePackedInt32(n int32) {
	w.WritePackedInt64(int64(n))
}

// WritePackedInt64 is the 64 bit variant of WritePackedInt32
func (w *WriteBuffer) WritePackedInt64(n int64) {
	var b byte
	if n < 0 {
		b = 0x40
		n = ^n
	}
	b |= byte(n & 0x3F)
	n >>= 6
	for n != 0 {
		w.buf = append(w.buf, b|0x80)
		b = byte(n & 0x7F)
		n >>= 7
	}
	w.buf = append(w.buf, b)
}

// WritePackedBigInt appends an arbitrary precision integer using the same
// packed format as WritePackedInt64
func (w *WriteBuffer) WritePackedBigInt(n *big.Int) {
	if n.IsInt64() {
		w.WritePackedInt64(n.Int64())
		return
	}
	var b byte
	v := new(big.Int).Set(n)
	if v.Sign() < 0 {
		b = 0x40
		v.Not(v)
	}
	b |= byte(v.Uint64() & 0x3F)
	v.Rsh(v, 6)
	for v.Sign() != 0 {
		w.buf = append(w.buf, b|0x80)
		b = byte(v.Uint64() & 0x7F)
		v.Rsh(v, 7)
	}
	w.buf = append(w.buf, b)
}

// WriteFloat32 appends the IEEE 754 bits of f in big endian order
func (w *WriteBuffer) WriteFloat32(f float32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, math.Float32bits(f))
}

// WriteFloat64 appends the IEEE 754 bits of f in big endian order
func (w *WriteBuffer) WriteFloat64(f float64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(f))
}

// WriteChar appends the UTF-8 encoding of ch
func (w *WriteBuffer) WriteChar(ch rune) {
	w.buf = utf8.AppendRune(w.buf, ch)
}

// WriteString appends a packed byte length followed by the UTF-8 bytes of s
func (w *WriteBuffer) WriteString(s string) {
	w.writeLength(len(s))
	w.buf = append(w.buf, s...)
}

// WriteBinary appends a packed length followed by b
func (w *WriteBuffer) WriteBinary(b []byte) {
	w.writeLength(len(b))
	w.buf = append(w.buf, b...)
}

func (w *WriteBuffer) writeLength(n int) {
	if err := checkLength(n); err != nil {
		protocolPanicf("%v", err)
	}
	w.WritePackedInt32(int32(n))
}

// --------------------------------------------------------------------------
// ReadBuffer (byte source)
// --------------------------------------------------------------------------

// ReadBuffer is a bounds checked cursor over an immutable byte slice
type ReadBuffer struct {
	data []byte
	off  int
}

// NewReadBuffer creates a cursor positioned at the start of data
func NewReadBuffer(data []byte) *ReadBuffer {
	return &ReadBuffer{data: data}
}

// Offset returns the current cursor position
func (r *ReadBuffer) Offset() int { return r.off }

// Remaining returns the number of unread bytes
func (r *ReadBuffer) Remaining() int { return len(r.data) - r.off }

// Data returns the complete underlying slice
func (r *ReadBuffer) Data() []byte { return r.data }

// seek moves the cursor to an offset previously returned by Offset
func (r *ReadBuffer) seek(off int) { r.off = off }

// ReadByte reads one raw byte
func (r *ReadBuffer) ReadByte() (byte, error) {
	if r.off >= len(r.data) {
		return 0, streamErrf(r.data, r.off, ErrTruncated, "reading byte")
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

// ReadBytes returns the next n bytes without copying
func (r *ReadBuffer) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, streamErrf(r.data, r.off, ErrInvalidLength, "reading %d bytes", n)
	}
	if n > r.Remaining() {
		return nil, streamErrf(r.data, r.off, ErrTruncated, "reading %d bytes, %d remaining", n, r.Remaining())
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

// ReadPackedInt32 reads a packed integer that must fit into 32 bits
func (r *ReadBuffer) ReadPackedInt32() (int32, error) {
	start := r.off
	n, err := r.readPacked(maxPackedInt32Size)
	if err != nil {
		return 0, err
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, streamErrf(r.data, start, ErrOverflow, "packed int32 out of range (%d)", n)
	}
	return int32(n), nil
}

// ReadPackedInt64 reads a packed integer that must fit into 64 bits
func (r *ReadBuffer) ReadPackedInt64() (int64, error) {
	return r.readPacked(maxPackedInt64Size)
}

func (r *ReadBuffer) readPacked(maxLen int) (int64, error) {
	start := r.off
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	neg := b&0x40 != 0
	n := uint64(b & 0x3F)
	shift := uint(6)
	for i := 1; b&0x80 != 0; i++ {
		if i >= maxLen {
			return 0, streamErrf(r.data, start, ErrOverflow, "packed integer longer than %d bytes", maxLen)
		}
		if b, err = r.ReadByte(); err != nil {
			return 0, err
		}
		chunk := uint64(b & 0x7F)
		if shift > 57 && chunk>>(64-shift) != 0 {
			return 0, streamErrf(r.data, start, ErrOverflow, "packed int64 out of range")
		}
		n |= chunk << shift
		shift += 7
	}
	if n > math.MaxInt64 {
		return 0, streamErrf(r.data, start, ErrOverflow, "packed int64 out of range")
	}
	v := int64(n)
	if neg {
		v = ^v
	}
	return v, nil
}

// ReadPackedBigInt reads an arbitrary precision packed integer, limited to
// maxBytes encoded bytes
func (r *ReadBuffer) ReadPackedBigInt(maxBytes int) (*big.Int, error) {
	start := r.off
	b, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	neg := b&0x40 != 0
	n := big.NewInt(int64(b & 0x3F))
	shift := uint(6)
	chunk := new(big.Int)
	for i := 1; b&0x80 != 0; i++ {
		if i >= maxBytes {
			return nil, streamErrf(r.data, start, ErrOverflow, "packed big integer longer than %d bytes", maxBytes)
		}
		if b, err = r.ReadByte(); err != nil {
			return nil, err
		}
		chunk.SetInt64(int64(b & 0x7F))
		n.Or(n, chunk.Lsh(chunk, shift))
		shift += 7
	}
	if neg {
		n.Not(n)
	}
	return n, nil
}

// ReadFloat32 reads 4 big endian bytes as IEEE 754 float
func (r *ReadBuffer) ReadFloat32() (float32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}

// ReadFloat64 reads 8 big endian bytes as IEEE 754 float
func (r *ReadBuffer) ReadFloat64() (float64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// ReadChar reads one UTF-8 encoded character
func (r *ReadBuffer) ReadChar() (rune, error) {
	if r.off >= len(r.data) {
		return 0, streamErrf(r.data, r.off, ErrTruncated, "reading char")
	}
	ch, size := utf8.DecodeRune(r.data[r.off:])
	if ch == utf8.RuneError && size <= 1 {
		return 0, streamErrf(r.data, r.off, ErrInvalidLength, "invalid UTF-8 char")
	}
	r.off += size
	return ch, nil
}

// ReadLength reads a packed length and checks that it fits the remaining input
func (r *ReadBuffer) ReadLength() (int, error) {
	start := r.off
	n, err := r.ReadPackedInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, streamErrf(r.data, start, ErrInvalidLength, "negative length %d", n)
	}
	if int(n) > r.Remaining() {
		return 0, streamErrf(r.data, start, ErrTruncated, "length %d exceeds %d remaining bytes", n, r.Remaining())
	}
	return int(n), nil
}

// ReadString reads a length prefixed UTF-8 string
func (r *ReadBuffer) ReadString() (string, error) {
	n, err := r.ReadLength()
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBinary reads a length prefixed octet string into a freshly allocated slice
func (r *ReadBuffer) ReadBinary() ([]byte, error) {
	n, err := r.ReadLength()
	if err != nil {
		return nil, err
	}
	b, err := r.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}
