package pof

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagHelpers(t *testing.T) {
	assert.Equal(t, VInt0, EncodeTinyInt(0))
	assert.Equal(t, VIntNeg1, EncodeTinyInt(-1))
	assert.Equal(t, VInt22, EncodeTinyInt(22))
	for n := int32(-1); n <= 22; n++ {
		assert.Equal(t, n, DecodeTinyInt(EncodeTinyInt(n)))
		assert.True(t, IsTinyInt(int64(n)))
	}
	assert.False(t, IsTinyInt(-2))
	assert.False(t, IsTinyInt(23))

	assert.True(t, IsUserTypeId(0))
	assert.False(t, IsUserTypeId(TInt16))
	assert.True(t, IsIntrinsic(TCharString))
	assert.True(t, IsIntrinsic(VInt22))
	assert.False(t, IsIntrinsic(TCollection))
	assert.False(t, IsIntrinsic(TReference))

	assert.Equal(t, "char-string", TypeName(TCharString))
	assert.Equal(t, "tiny(5)", TypeName(EncodeTinyInt(5)))
	assert.Equal(t, "user-type(1001)", TypeName(1001))
	assert.Equal(t, "tag(-99)", TypeName(-99))
}

func TestWritingHandlerUserType(t *testing.T) {
	out := NewWriteBuffer(nil)
	h := NewWritingHandler(out)
	h.BeginUserType(noPosition, noIdentity, personTypeId, 0)
	h.OnCharString(0, "ada")
	h.OnInt32(1, 30)
	h.OnInt32(2, 0) // default, omitted
	h.EndComplexValue()

	assert.Equal(t, []byte{0xA9, 0x0F, 0x00, 0x00, 0x4E, 0x03, 'a', 'd', 'a', 0x01, 0x41, 0x1E, 0x40}, out.Bytes())
	assert.Zero(t, h.Depth())
}

func TestWritingHandlerIdentityDisablesCompaction(t *testing.T) {
	out := NewWriteBuffer(nil)
	h := NewWritingHandler(out)
	h.BeginSparseArray(noPosition, 4)
	h.RegisterIdentity(1)
	h.OnInt32(2, 0)
	h.EndComplexValue()

	data := append([]byte(nil), out.Bytes()...)
	tags := NewReadBuffer(data)
	tag, err := tags.ReadPackedInt32()
	require.NoError(t, err)
	assert.Equal(t, TSparseArray, tag)

	// count, position, identity marker, identity, full int32 tag, value, terminator
	rest := data[tags.Offset():]
	assert.Equal(t, []byte{0x04, 0x02, 0x5E, 0x01, 0x41, 0x00, 0x40}, rest)
}

func TestWritingHandlerDiscipline(t *testing.T) {
	t.Run("unmatched end", func(t *testing.T) {
		h := NewWritingHandler(NewWriteBuffer(nil))
		requireProtocolPanic(t, func() { h.EndComplexValue() })
	})
	t.Run("uniform mismatch", func(t *testing.T) {
		h := NewWritingHandler(NewWriteBuffer(nil))
		h.BeginUniformArray(noPosition, 1, TInt32)
		requireProtocolPanic(t, func() { h.OnCharString(0, "x") })
	})
	t.Run("uniform map value mismatch", func(t *testing.T) {
		h := NewWritingHandler(NewWriteBuffer(nil))
		h.BeginUniformMap(noPosition, 1, TCharString, TInt32)
		h.OnCharString(0, "key")
		requireProtocolPanic(t, func() { h.OnBoolean(0, true) })
	})
	t.Run("pending identity", func(t *testing.T) {
		h := NewWritingHandler(NewWriteBuffer(nil))
		h.RegisterIdentity(1)
		requireProtocolPanic(t, func() { h.RegisterIdentity(2) })
	})
}

func TestParserReencodesIdentically(t *testing.T) {
	ctx := newTestContext(t, WithReferenceTracking(true))
	cyclic := &person{Name: "ouroboros"}
	cyclic.Friend = cyclic
	shared := &person{Name: "bob", Age: 40}

	values := map[string]any{
		"person":       &person{Name: "ada", Age: 36, Tags: []string{"math", "engines"}, Friend: &person{Name: "charles"}},
		"cycle":        cyclic,
		"shared":       []any{shared, shared},
		"string map":   map[string]string{"a": "1", "b": ""},
		"mixed map":    map[string]any{"n": int64(1 << 40), "f": 2.5, "nil": nil},
		"uniform ints": []int32{1, 200, -7},
		"sparse":       SparseArray{1: "x", 9: int32(30)},
		"empty":        []any{},
		"nested":       []any{[]any{true, false}, map[any]any{int32(1): "one"}},
	}
	for name, v := range values {
		t.Run(name, func(t *testing.T) {
			data, err := Serialize(ctx, v)
			require.NoError(t, err)

			out := NewWriteBuffer(nil)
			validator := NewValidatingHandler()
			require.NoError(t, Parse(data, NewDuplexHandler(NewWritingHandler(out), validator)))
			assert.Equal(t, data, out.Bytes())
			assert.True(t, validator.Balanced())
		})
	}
}

func TestParseRejectsTrailingBytes(t *testing.T) {
	err := Parse([]byte{0x69, 0x69}, NullHandler{})
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestParserMaxDepth(t *testing.T) {
	data, err := Serialize(NewSimpleContext(), []any{[]any{[]any{int32(1)}}})
	require.NoError(t, err)

	p := NewParser(NewReadBuffer(data), NullHandler{})
	p.SetMaxDepth(2)
	assert.ErrorIs(t, p.ParseValue(noPosition), ErrDepthExceeded)
}

func TestPrintingHandler(t *testing.T) {
	ctx := newTestContext(t)
	data, err := Serialize(ctx, &person{Name: "ada", Age: 30})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Parse(data, NewPrintingHandler(&buf)))
	assert.Equal(t, "user-type 1001 v0\n  [0] string \"ada\"\n  [1] int32 30\n", buf.String())
}

func TestPrintingHandlerShowsIdentities(t *testing.T) {
	ctx := newTestContext(t, WithReferenceTracking(true))
	p := &person{Name: "loop"}
	p.Friend = p
	data, err := Serialize(ctx, p)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Parse(data, NewPrintingHandler(&buf)))
	assert.Contains(t, buf.String(), "#1 user-type 1001 v0")
	assert.Contains(t, buf.String(), "[2] reference -> #1")
}
