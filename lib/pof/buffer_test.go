package pof

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackedIntEncoding(t *testing.T) {
	tests := []struct {
		n    int64
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{63, []byte{0x3F}},
		{64, []byte{0x80, 0x01}},
		{-1, []byte{0x40}},
		{-64, []byte{0x7F}},
		{-65, []byte{0xC0, 0x01}},
		{1001, []byte{0xA9, 0x0F}},
	}
	for _, tt := range tests {
		w := NewWriteBuffer(nil)
		w.WritePackedInt64(tt.n)
		assert.Equal(t, tt.want, w.Bytes(), "encoding of %d", tt.n)

		r := NewReadBuffer(w.Bytes())
		got, err := r.ReadPackedInt64()
		require.NoError(t, err)
		assert.Equal(t, tt.n, got)
		assert.Zero(t, r.Remaining())
	}
}

func TestPackedIntRoundTrip(t *testing.T) {
	values := []int64{
		math.MinInt64, math.MinInt64 + 1, math.MinInt32 - 1, math.MinInt32,
		-1 << 20, -129, -128, -1, 0, 1, 127, 128, 1 << 20,
		math.MaxInt32, math.MaxInt32 + 1, math.MaxInt64 - 1, math.MaxInt64,
	}
	w := NewWriteBuffer(nil)
	for _, n := range values {
		w.WritePackedInt64(n)
	}
	r := NewReadBuffer(w.Bytes())
	for _, n := range values {
		got, err := r.ReadPackedInt64()
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
	assert.Zero(t, r.Remaining())
}

func TestPackedInt32Overflow(t *testing.T) {
	w := NewWriteBuffer(nil)
	w.WritePackedInt64(math.MaxInt32 + 1)
	_, err := NewReadBuffer(w.Bytes()).ReadPackedInt32()
	assert.ErrorIs(t, err, ErrOverflow)

	w.Reset()
	w.WritePackedInt64(math.MinInt32)
	n, err := NewReadBuffer(w.Bytes()).ReadPackedInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(math.MinInt32), n)
}

func TestPackedInt64Overflow(t *testing.T) {
	// 2^63 encoded as a packed unsigned value does not fit int64
	w := NewWriteBuffer(nil)
	w.WritePackedBigInt(new(big.Int).Lsh(big.NewInt(1), 63))
	_, err := NewReadBuffer(w.Bytes()).ReadPackedInt64()
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestPackedBigIntRoundTrip(t *testing.T) {
	huge, _ := new(big.Int).SetString("-170141183460469231731687303715884105728", 10) // -2^127
	values := []*big.Int{
		big.NewInt(0),
		big.NewInt(-1),
		new(big.Int).SetUint64(math.MaxUint64),
		new(big.Int).Lsh(big.NewInt(1), 126),
		huge,
	}
	for _, n := range values {
		w := NewWriteBuffer(nil)
		w.WritePackedBigInt(n)
		got, err := NewReadBuffer(w.Bytes()).ReadPackedBigInt(maxBigIntBytes)
		require.NoError(t, err)
		assert.Zero(t, n.Cmp(got), "want %s, got %s", n, got)
	}
}

func TestReadBufferTruncation(t *testing.T) {
	tests := map[string]func(r *ReadBuffer) error{
		"byte": func(r *ReadBuffer) error {
			_, err := r.ReadByte()
			return err
		},
		"float32": func(r *ReadBuffer) error {
			_, err := r.ReadFloat32()
			return err
		},
		"float64": func(r *ReadBuffer) error {
			_, err := r.ReadFloat64()
			return err
		},
		"char": func(r *ReadBuffer) error {
			_, err := r.ReadChar()
			return err
		},
		"packed": func(r *ReadBuffer) error {
			_, err := r.ReadPackedInt32()
			return err
		},
	}
	for name, read := range tests {
		t.Run(name, func(t *testing.T) {
			err := read(NewReadBuffer([]byte{}))
			assert.ErrorIs(t, err, ErrTruncated)
		})
	}
}

func TestStringAndBinary(t *testing.T) {
	w := NewWriteBuffer(nil)
	w.WriteString("héllo")
	w.WriteBinary([]byte{0xDE, 0xAD})
	w.WriteChar('€')

	r := NewReadBuffer(w.Bytes())
	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "héllo", s)

	b, err := r.ReadBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD}, b)

	ch, err := r.ReadChar()
	require.NoError(t, err)
	assert.Equal(t, '€', ch)

	_, err = NewReadBuffer([]byte{0x41}).ReadLength()
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestFloatsAreBigEndian(t *testing.T) {
	w := NewWriteBuffer(nil)
	w.WriteFloat32(1)
	w.WriteFloat64(-2)
	assert.Equal(t, []byte{0x3F, 0x80, 0x00, 0x00, 0xC0, 0x00, 0, 0, 0, 0, 0, 0}, w.Bytes())
}

func TestStreamErrorMessage(t *testing.T) {
	_, err := NewReadBuffer([]byte{0x81}).ReadPackedInt32()
	require.Error(t, err)
	var se *StreamError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Off)
	assert.Contains(t, err.Error(), "81")

	located := locate(err, 42, 3)
	assert.Contains(t, located.Error(), "type 42, property 3")
}
