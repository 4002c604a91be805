package pof

import (
	"errors"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Round Trips
// --------------------------------------------------------------------------

// TestRoundTrip checks that intrinsic values survive an encode/decode cycle.
// Compact markers lose the original Go type, so want lists the decoded value.
func TestRoundTrip(t *testing.T) {
	maxUint := new(big.Int).SetUint64(math.MaxUint64)

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"true", true, true},
		{"false", false, false},
		{"tiny octet", byte(7), int32(7)},
		{"octet", byte(200), byte(200)},
		{"char", Char('x'), Char('x')},
		{"unicode char", Char('λ'), Char('λ')},
		{"tiny int16", int16(5), int32(5)},
		{"int16", int16(-1000), int16(-1000)},
		{"int32 -1", int32(-1), int32(-1)},
		{"int32 22", int32(22), int32(22)},
		{"int32 23", int32(23), int32(23)},
		{"int32 min", int32(math.MinInt32), int32(math.MinInt32)},
		{"int64", int64(1) << 40, int64(1) << 40},
		{"int64 min", int64(math.MinInt64), int64(math.MinInt64)},
		{"int", 42, int64(42)},
		{"uint64 max", uint64(math.MaxUint64), maxUint},
		{"big int", new(big.Int).Lsh(big.NewInt(1), 100), new(big.Int).Lsh(big.NewInt(1), 100)},
		{"float32", float32(2.5), float32(2.5)},
		{"float64", 1.25, 1.25},
		{"integral float", 3.0, int32(3)},
		{"+inf", math.Inf(1), math.Inf(1)},
		{"-inf", math.Inf(-1), math.Inf(-1)},
		{"decimal", NewDecimal(12345, 2), NewDecimal(12345, 2)},
		{"string", "hello", "hello"},
		{"empty string", "", ""},
		{"binary", []byte{1, 2, 3}, []byte{1, 2, 3}},
		{"date", Date{Year: 2024, Month: 2, Day: 29}, Date{Year: 2024, Month: 2, Day: 29}},
		{"time", Time{Hour: 13, Minute: 5, Second: 7, Nano: 1500}, Time{Hour: 13, Minute: 5, Second: 7, Nano: 1500}},
		{"time with offset", Time{Hour: 1, Zone: ZoneOffset, HourOffset: -5, MinuteOffset: -30},
			Time{Hour: 1, Zone: ZoneOffset, HourOffset: -5, MinuteOffset: -30}},
		{"duration", 26*time.Hour + 3*time.Second + 9, 26*time.Hour + 3*time.Second + 9},
		{"negative duration", -90 * time.Minute, -90 * time.Minute},
		{"year month interval", YearMonthInterval{Years: 2, Months: 3}, YearMonthInterval{Years: 2, Months: 3}},
		{"time interval", TimeInterval{Hours: 1, Minutes: 2, Seconds: 3, Nanos: 4}, TimeInterval{Hours: 1, Minutes: 2, Seconds: 3, Nanos: 4}},
		{"bool array", []bool{true, false, true}, []bool{true, false, true}},
		{"int16 array", []int16{-1, 0, 300}, []int16{-1, 0, 300}},
		{"int32 array", []int32{1, 2, 3}, []int32{1, 2, 3}},
		{"int64 array", []int64{math.MaxInt64, 0}, []int64{math.MaxInt64, 0}},
		{"float32 array", []float32{1, 0.5}, []float32{1, 0.5}},
		{"float64 array", []float64{1.5, 2}, []float64{1.5, 2}},
		{"string array", []string{"a", "", "c"}, []string{"a", "", "c"}},
		{"empty array", []int32{}, []any{}},
		{"collection", []any{int32(1), "x", nil, true}, []any{int32(1), "x", nil, true}},
		{"nested collection", []any{[]any{"a"}, []any{}}, []any{[]any{"a"}, []any{}}},
		{"generic slice", []int{1, 2}, []any{int32(1), int32(2)}},
		{"sparse array", SparseArray{2: "x", 5: int32(40)}, SparseArray{2: "x", 5: int32(40)}},
		{"sparse array with defaults", SparseArray{1: "x", 3: int32(0), 4: false, 6: ""}, SparseArray{1: "x", 3: int32(0), 4: false, 6: ""}},
		{"sparse array with null", SparseArray{2: nil}, SparseArray{2: nil}},
		{"empty sparse array", SparseArray{}, SparseArray{}},
		{"string map", map[string]string{"a": "b", "c": ""}, map[string]string{"a": "b", "c": ""}},
		{"string keys map", map[string]any{"a": int32(1), "b": nil}, map[string]any{"a": int32(1), "b": nil}},
		{"generic map", map[any]any{int32(1): "one", "two": int32(2)}, map[any]any{int32(1): "one", "two": int32(2)}},
	}

	ctx := NewSimpleContext()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Serialize(ctx, tt.in)
			require.NoError(t, err)

			got, err := Deserialize(ctx, data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoundTripDateTime(t *testing.T) {
	ctx := NewSimpleContext()
	tests := []time.Time{
		time.Date(2024, 3, 1, 12, 30, 15, 0, time.UTC),
		time.Date(1999, 12, 31, 23, 59, 59, 999_000_000, time.UTC),
		time.Date(2024, 3, 1, 12, 30, 15, 123, time.FixedZone("", 5*3600+30*60)),
		time.Date(2024, 3, 1, 12, 30, 15, 0, time.FixedZone("", -8*3600)),
	}
	for _, in := range tests {
		data, err := Serialize(ctx, in)
		require.NoError(t, err)

		got, err := DeserializeAs[time.Time](ctx, data)
		require.NoError(t, err)
		assert.True(t, in.Equal(got), "want %v, got %v", in, got)
		_, wantOff := in.Zone()
		_, gotOff := got.Zone()
		assert.Equal(t, wantOff, gotOff)
	}
}

func TestRoundTripFloatSpecials(t *testing.T) {
	ctx := NewSimpleContext()

	canonicalNaN := math.Float64frombits(0x7FF8000000000000)
	data, err := Serialize(ctx, canonicalNaN)
	require.NoError(t, err)
	assert.Len(t, data, 1)

	got, err := DeserializeAs[float64](ctx, data)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got))

	data, err = Serialize(ctx, math.Copysign(0, -1))
	require.NoError(t, err)
	got, err = DeserializeAs[float64](ctx, data)
	require.NoError(t, err)
	assert.True(t, math.Signbit(got), "negative zero must keep its sign")
}

func TestRoundTripDecimalPrecision(t *testing.T) {
	ctx := NewSimpleContext()
	huge, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)

	for _, in := range []Decimal{
		NewDecimal(0, 0),
		NewDecimal(-9999999, 3),
		NewDecimal(1234567890123456, 8),
		{Unscaled: huge, Scale: 10},
	} {
		data, err := Serialize(ctx, in)
		require.NoError(t, err)

		got, err := DeserializeAs[Decimal](ctx, data)
		require.NoError(t, err)
		assert.True(t, in.Equal(got), "want %s, got %s", in, got)
	}
}

func TestDeserializeAsConvertsCompactValues(t *testing.T) {
	ctx := NewSimpleContext()

	data, err := Serialize(ctx, byte(7))
	require.NoError(t, err)
	b, err := DeserializeAs[byte](ctx, data)
	require.NoError(t, err)
	assert.Equal(t, byte(7), b)

	data, err = Serialize(ctx, int64(3))
	require.NoError(t, err)
	n, err := DeserializeAs[int64](ctx, data)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	data, err = Serialize(ctx, []int{4, 5})
	require.NoError(t, err)
	a, err := DeserializeAs[[]int](ctx, data)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, a)

	_, err = DeserializeAs[string](ctx, data)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	data, err = Serialize(ctx, []byte{})
	require.NoError(t, err)
	empty, err := DeserializeAs[[]byte](ctx, data)
	require.NoError(t, err)
	assert.Equal(t, []byte{}, empty)
}

// --------------------------------------------------------------------------
// Compaction
// --------------------------------------------------------------------------

func TestTinyIntBoundaries(t *testing.T) {
	ctx := NewSimpleContext()
	tests := []struct {
		n    int32
		want []byte
	}{
		{-1, []byte{0x68}},
		{0, []byte{0x69}},
		{22, []byte{0x7F}},
		{23, []byte{0x41, 0x17}},
		{-2, []byte{0x41, 0x41}},
	}
	for _, tt := range tests {
		data, err := Serialize(ctx, tt.n)
		require.NoError(t, err)
		assert.Equal(t, tt.want, data, "encoding of %d", tt.n)
	}
}

func TestCompactMarkers(t *testing.T) {
	ctx := NewSimpleContext()
	tests := []struct {
		name string
		in   any
		tag  int32
	}{
		{"true", true, VBooleanTrue},
		{"false", false, VBooleanFalse},
		{"empty string", "", VStringZeroLength},
		{"empty binary", []byte{}, VStringZeroLength},
		{"empty collection", []any{}, VCollectionEmpty},
		{"empty map", map[any]any{}, VCollectionEmpty},
		{"null", nil, VReferenceNull},
		{"+inf", math.Inf(1), VFPPosInfinity},
		{"-inf", math.Inf(-1), VFPNegInfinity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Serialize(ctx, tt.in)
			require.NoError(t, err)

			want := NewWriteBuffer(nil)
			want.WritePackedInt32(tt.tag)
			assert.Equal(t, want.Bytes(), data)
		})
	}
}

// TestSparseSkipLaw checks that default values produce no bytes inside a
// user type and read back as defaults
func TestSparseSkipLaw(t *testing.T) {
	withDefaults := funcContext(t, 7, func(w IPofWriter) error {
		w.WriteInt32(0, 0)
		w.WriteBool(1, false)
		w.WriteFloat64(2, 0)
		w.WriteOctet(3, 0)
		w.WriteChar(4, 0)
		w.WriteDecimal(5, NewDecimal(0, 0))
		w.WriteBigInt(6, new(big.Int))
		w.WriteInt64(7, 5)
		return w.WriteObject(8, nil)
	}, nil)
	withoutDefaults := funcContext(t, 7, func(w IPofWriter) error {
		w.WriteInt64(7, 5)
		return nil
	}, nil)

	a, err := Serialize(withDefaults, funcMarker{})
	require.NoError(t, err)
	b, err := Serialize(withoutDefaults, funcMarker{})
	require.NoError(t, err)
	assert.Equal(t, b, a)

	read := funcContext(t, 7, nil, func(r IPofReader) error {
		n, err := r.ReadInt32(0)
		require.NoError(t, err)
		assert.Zero(t, n)
		ok, err := r.ReadBool(1)
		require.NoError(t, err)
		assert.False(t, ok)
		f, err := r.ReadFloat64(2)
		require.NoError(t, err)
		assert.Zero(t, f)
		d, err := r.ReadDecimal(5)
		require.NoError(t, err)
		assert.True(t, d.IsZero())
		v, err := r.ReadInt64(7)
		require.NoError(t, err)
		assert.Equal(t, int64(5), v)
		return nil
	})
	_, err = Deserialize(read, a)
	require.NoError(t, err)
}

func TestDefaultUserTypeEncoding(t *testing.T) {
	ctx := newTestContext(t)
	data, err := Serialize(ctx, &person{})
	require.NoError(t, err)
	// type id 1001, version 0, property 0 empty string, terminator
	assert.Equal(t, []byte{0xA9, 0x0F, 0x00, 0x00, 0x62, 0x40}, data)
}

// --------------------------------------------------------------------------
// User Types
// --------------------------------------------------------------------------

func TestPortableObjectRoundTrip(t *testing.T) {
	ctx := newTestContext(t)
	in := &person{
		Name:   "Ada",
		Age:    36,
		Friend: &person{Name: "Charles", Age: 0, Tags: []string{}},
		Tags:   []string{"math", "engines"},
	}
	data, err := Serialize(ctx, in)
	require.NoError(t, err)

	got, err := DeserializeAs[*person](ctx, data)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestUniformCollectionOfUserTypes(t *testing.T) {
	shared := &person{Name: "same"}
	w := funcContext(t, 3, func(w IPofWriter) error {
		return w.WriteUniformCollection(0, []any{shared, &person{Name: "other"}, shared})
	}, nil)
	require.NoError(t, w.RegisterPortable(personTypeId, &person{}))

	data, err := Serialize(w, funcMarker{}, WithReferences(true))
	require.NoError(t, err)

	var got []any
	r := funcContext(t, 3, nil, func(r IPofReader) (err error) {
		got, err = r.ReadCollection(0)
		return err
	})
	require.NoError(t, r.RegisterPortable(personTypeId, &person{}))
	_, err = Deserialize(r, data, WithReferences(true))
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "same", got[0].(*person).Name)
	assert.Equal(t, "other", got[1].(*person).Name)
	// identities are not written inside uniform collections
	assert.NotSame(t, got[0], got[2])
}

func TestUniformCollectionTypeMismatch(t *testing.T) {
	ctx := funcContext(t, 3, func(w IPofWriter) error {
		return w.WriteUniformCollection(0, []any{int32(1), "two"})
	}, nil)
	_, err := Serialize(ctx, funcMarker{})
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestNestedWriterAndReader(t *testing.T) {
	w := funcContext(t, 4, func(w IPofWriter) error {
		w.WriteString(0, "outer")
		nw := w.CreateNestedWriterWithType(1, 44)
		nw.SetVersionId(3)
		nw.WriteInt32(0, 100)
		nw.WriteRemainder(nil)
		w.WriteInt32(5, 55)
		return nil
	}, nil)
	data, err := Serialize(w, funcMarker{})
	require.NoError(t, err)

	r := funcContext(t, 4, nil, func(r IPofReader) error {
		s, err := r.ReadString(0)
		require.NoError(t, err)
		assert.Equal(t, "outer", s)

		nr, err := r.CreateNestedReader(1)
		require.NoError(t, err)
		assert.Equal(t, int32(44), nr.UserTypeId())
		assert.Equal(t, int32(3), nr.VersionId())
		n, err := nr.ReadInt32(0)
		require.NoError(t, err)
		assert.Equal(t, int32(100), n)
		assert.Equal(t, int32(-1), nr.NextPropertyIndex())
		rem, err := nr.ReadRemainder()
		require.NoError(t, err)
		assert.Empty(t, rem)

		// absent property: the nested reader is empty
		empty, err := r.CreateNestedReader(2)
		require.NoError(t, err)
		assert.Equal(t, int32(-1), empty.NextPropertyIndex())
		rem, err = empty.ReadRemainder()
		require.NoError(t, err)
		assert.Nil(t, rem)

		assert.Equal(t, int32(5), r.NextPropertyIndex())
		n, err = r.ReadInt32(5)
		require.NoError(t, err)
		assert.Equal(t, int32(55), n)
		return nil
	})
	_, err = Deserialize(r, data)
	require.NoError(t, err)
}

func TestSkipUnrequestedProperties(t *testing.T) {
	w := funcContext(t, 5, func(w IPofWriter) error {
		w.WriteInt32(0, 1)
		if err := w.WriteObject(1, []any{"a", []any{int32(99)}, map[string]any{"k": "v"}}); err != nil {
			return err
		}
		w.WriteString(2, "skipped")
		w.WriteInt32(3, 4)
		return nil
	}, nil)
	data, err := Serialize(w, funcMarker{})
	require.NoError(t, err)

	r := funcContext(t, 5, nil, func(r IPofReader) error {
		n, err := r.ReadInt32(3)
		require.NoError(t, err)
		assert.Equal(t, int32(4), n)
		assert.Equal(t, int32(3), r.PreviousPropertyIndex())
		return nil
	})
	_, err = Deserialize(r, data)
	require.NoError(t, err)
}

// --------------------------------------------------------------------------
// Evolvable Types
// --------------------------------------------------------------------------

// TestRemainderFidelity reads a newer version with an older type and
// checks that the unknown property is written back unchanged
func TestRemainderFidelity(t *testing.T) {
	v1 := NewSimpleContext()
	require.NoError(t, v1.RegisterPortable(recordTypeId, &recordV1{}))
	v2 := NewSimpleContext()
	require.NoError(t, v2.RegisterPortable(recordTypeId, &recordV2{}))

	data, err := Serialize(v2, &recordV2{A: "a", B: "b", C: "c"})
	require.NoError(t, err)

	old, err := DeserializeAs[*recordV1](v1, data)
	require.NoError(t, err)
	assert.Equal(t, "a", old.A)
	assert.Equal(t, "b", old.B)
	assert.Equal(t, int32(2), old.DataVersion())
	// property 3, char string of length 1
	assert.Equal(t, []byte{0x03, 0x4E, 0x01, 'c'}, old.FutureData())

	again, err := Serialize(v1, old)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	latest, err := DeserializeAs[*recordV2](v2, again)
	require.NoError(t, err)
	assert.Equal(t, "c", latest.C)
}

func TestRemainderReplayOnFreshOccurrence(t *testing.T) {
	var captured []byte
	read := funcContext(t, 6, nil, func(r IPofReader) (err error) {
		if _, err = r.ReadInt32(1); err != nil {
			return err
		}
		if _, err = r.ReadInt32(2); err != nil {
			return err
		}
		captured, err = r.ReadRemainder()
		return err
	})
	full := funcContext(t, 6, func(w IPofWriter) error {
		w.WriteInt32(1, 10)
		w.WriteInt32(2, 20)
		w.WriteString(3, "third")
		return nil
	}, nil)
	onlyThird := funcContext(t, 6, func(w IPofWriter) error {
		w.WriteString(3, "third")
		return nil
	}, nil)
	replay := funcContext(t, 6, func(w IPofWriter) error {
		w.WriteRemainder(captured)
		return nil
	}, nil)

	data, err := Serialize(full, funcMarker{})
	require.NoError(t, err)
	_, err = Deserialize(read, data)
	require.NoError(t, err)

	want, err := Serialize(onlyThird, funcMarker{})
	require.NoError(t, err)
	got, err := Serialize(replay, funcMarker{})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// TestPolymorphicHierarchy writes a two level hierarchy and reads it with a
// registry that only knows the base level
func TestPolymorphicHierarchy(t *testing.T) {
	full := NewSimpleContext()
	require.NoError(t, full.RegisterPortableType(dogTypeId, &dog{},
		TypeLevel{TypeId: dogTypeId, ImplVersion: 1}, TypeLevel{TypeId: animalLevel, ImplVersion: 1}))
	base := NewSimpleContext()
	require.NoError(t, base.RegisterPortableType(dogTypeId, &animal{},
		TypeLevel{TypeId: animalLevel, ImplVersion: 1}))

	data, err := Serialize(full, &dog{Name: "Rex", Breed: "Beagle"})
	require.NoError(t, err)

	a, err := DeserializeAs[*animal](base, data)
	require.NoError(t, err)
	assert.Equal(t, "Rex", a.Name)
	assert.Equal(t, []int32{dogTypeId, animalLevel}, a.holder.TypeIds())

	level, ok := a.holder.Get(dogTypeId)
	require.True(t, ok)
	assert.Equal(t, int32(1), level.Version)
	// property 0 of the dog level: "Beagle"
	assert.Equal(t, append([]byte{0x00, 0x4E, 0x06}, "Beagle"...), level.FutureData)

	again, err := Serialize(base, a)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	d, err := DeserializeAs[*dog](full, again)
	require.NoError(t, err)
	assert.Equal(t, "Rex", d.Name)
	assert.Equal(t, "Beagle", d.Breed)
}

// --------------------------------------------------------------------------
// References
// --------------------------------------------------------------------------

func TestReferenceCycle(t *testing.T) {
	ctx := newTestContext(t)
	a := &person{Name: "A"}
	b := &person{Name: "B", Friend: a}
	a.Friend = b

	data, err := Serialize(ctx, a, WithReferences(true))
	require.NoError(t, err)

	got, err := DeserializeAs[*person](ctx, data, WithReferences(true))
	require.NoError(t, err)
	require.NotNil(t, got.Friend)
	assert.Equal(t, "B", got.Friend.Name)
	assert.Same(t, got, got.Friend.Friend)

	_, err = Serialize(ctx, a, WithReferences(false))
	assert.ErrorIs(t, err, ErrCyclicGraph)

	_, err = Deserialize(ctx, data, WithReferences(false))
	assert.ErrorIs(t, err, ErrReferencesDisabled)
}

func TestSharedReferences(t *testing.T) {
	ctx := newTestContext(t, WithReferenceTracking(true))
	shared := &person{Name: "shared"}
	m := map[string]any{"x": int32(1)}

	data, err := Serialize(ctx, []any{shared, shared, m, m})
	require.NoError(t, err)

	got, err := DeserializeAs[[]any](ctx, data)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Same(t, got[0], got[1])
	assert.Equal(t, got[2], got[3])

	// without references the graph is a tree of copies
	ctx.SetReferenceEnabled(false)
	data, err = Serialize(ctx, []any{shared, shared})
	require.NoError(t, err)
	got, err = DeserializeAs[[]any](ctx, data)
	require.NoError(t, err)
	assert.NotSame(t, got[0], got[1])
	assert.Equal(t, got[0], got[1])
}

// --------------------------------------------------------------------------
// Protocol Violations
// --------------------------------------------------------------------------

func TestWriterDiscipline(t *testing.T) {
	tests := map[string]func(w IPofWriter) error{
		"repeated property": func(w IPofWriter) error {
			w.WriteInt32(1, 1)
			w.WriteInt32(1, 2)
			return nil
		},
		"decreasing property": func(w IPofWriter) error {
			w.WriteInt32(3, 1)
			w.WriteInt32(2, 2)
			return nil
		},
		"negative property": func(w IPofWriter) error {
			w.WriteInt32(-2, 1)
			return nil
		},
		"parent used while nested open": func(w IPofWriter) error {
			w.CreateNestedWriter(0)
			w.WriteInt32(1, 5)
			return nil
		},
		"second nested writer": func(w IPofWriter) error {
			w.CreateNestedWriter(0)
			w.CreateNestedWriter(1)
			return nil
		},
		"closed nested writer": func(w IPofWriter) error {
			nw := w.CreateNestedWriter(0)
			nw.WriteRemainder(nil)
			nw.WriteInt32(1, 1)
			return nil
		},
		"version after header": func(w IPofWriter) error {
			w.WriteInt32(0, 1)
			w.SetVersionId(2)
			return nil
		},
		"nested writer left open": func(w IPofWriter) error {
			w.CreateNestedWriter(0)
			return nil
		},
	}
	for name, write := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := funcContext(t, 8, write, nil)
			requireProtocolPanic(t, func() { _, _ = Serialize(ctx, funcMarker{}) })
		})
	}
}

// TestReaderMonotonicOrder reads index 3 twice from a stream holding 1, 3, 7
func TestReaderMonotonicOrder(t *testing.T) {
	w := funcContext(t, 9, func(w IPofWriter) error {
		w.WriteInt32(1, 1)
		w.WriteInt32(3, 3)
		w.WriteInt32(7, 7)
		return nil
	}, nil)
	data, err := Serialize(w, funcMarker{})
	require.NoError(t, err)

	r := funcContext(t, 9, nil, func(r IPofReader) error {
		if _, err := r.ReadInt32(1); err != nil {
			return err
		}
		if _, err := r.ReadInt32(3); err != nil {
			return err
		}
		_, err := r.ReadInt32(3)
		return err
	})
	requireProtocolPanic(t, func() { _, _ = Deserialize(r, data) })
}

func TestReaderUsedWhileNestedOpen(t *testing.T) {
	w := funcContext(t, 9, func(w IPofWriter) error {
		nw := w.CreateNestedWriter(1)
		nw.WriteInt32(0, 1)
		nw.WriteRemainder(nil)
		w.WriteInt32(2, 2)
		return nil
	}, nil)
	data, err := Serialize(w, funcMarker{})
	require.NoError(t, err)

	r := funcContext(t, 9, nil, func(r IPofReader) error {
		if _, err := r.CreateNestedReader(1); err != nil {
			return err
		}
		_, err := r.ReadInt32(2)
		return err
	})
	requireProtocolPanic(t, func() { _, _ = Deserialize(r, data) })
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

func TestMalformedStreams(t *testing.T) {
	ctx := newTestContext(t)
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", []byte{}, ErrTruncated},
		{"missing int payload", []byte{0x41}, ErrTruncated},
		{"unterminated packed int", []byte{0x41, 0x80}, ErrTruncated},
		{"overlong packed int", []byte{0x41, 0x80, 0x80, 0x80, 0x80, 0x80, 0x01}, ErrOverflow},
		{"unknown tag", []byte{0xC5, 0x01}, ErrUnknownTag},
		{"float128", []byte{0x46}, ErrUnsupportedType},
		{"trailing bytes", []byte{0x69, 0x69}, ErrInvalidLength},
		{"string length beyond input", []byte{0x4E, 0x05, 'a'}, ErrTruncated},
		{"collection count beyond input", []byte{0x55, 0x10}, ErrInvalidLength},
		{"dangling reference", []byte{0x5F, 0x01}, ErrReferencesDisabled},
		{"unknown user type", []byte{0x07, 0x00, 0x40}, ErrUnknownType},
		{"negative version", []byte{0xA9, 0x0F, 0x41, 0x40}, ErrInvalidLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize(ctx, tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUnresolvedIdentity(t *testing.T) {
	ctx := NewSimpleContext()
	_, err := Deserialize(ctx, []byte{0x5F, 0x05}, WithReferences(true))
	assert.ErrorIs(t, err, ErrUnresolvedIdentity)
}

func TestStreamErrorIsLocated(t *testing.T) {
	ctx := newTestContext(t)
	data, err := Serialize(ctx, &person{Name: "hello", Age: 40})
	require.NoError(t, err)

	// cut the stream in the middle of the name
	_, err = Deserialize(ctx, data[:6])
	require.Error(t, err)
	var se *StreamError
	require.True(t, errors.As(err, &se), "expected a StreamError, got %v", err)
	assert.Equal(t, int32(personTypeId), se.TypeId)
	assert.Equal(t, int32(0), se.Property)

	var ser *SerializationError
	require.True(t, errors.As(err, &ser))
	assert.Equal(t, "deserialize", ser.Op)
	assert.Equal(t, int32(personTypeId), ser.TypeId)
	assert.Contains(t, ser.ClassName, "person")
}

func TestTypeMismatchOnRead(t *testing.T) {
	w := funcContext(t, 11, func(w IPofWriter) error {
		w.WriteString(0, "not a number")
		w.WriteInt64(1, math.MaxInt32+1)
		return nil
	}, nil)
	data, err := Serialize(w, funcMarker{})
	require.NoError(t, err)

	r := funcContext(t, 11, nil, func(r IPofReader) error {
		_, err := r.ReadInt32(0)
		assert.ErrorIs(t, err, ErrTypeMismatch)
		_, err = r.ReadInt32(1)
		assert.ErrorIs(t, err, ErrOverflow)
		return nil
	})
	_, err = Deserialize(r, data)
	require.NoError(t, err)
}

func TestUnregisteredTypeOnWrite(t *testing.T) {
	ctx := NewSimpleContext()
	_, err := Serialize(ctx, struct{ X int }{1})
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestSerializerErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	ctx := funcContext(t, 12, func(w IPofWriter) error { return boom }, nil)

	out := NewWriteBuffer(nil)
	out.WritePackedInt32(1)
	err := SerializeTo(ctx, out, funcMarker{})
	require.ErrorIs(t, err, boom)

	var se *SerializationError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "serialize", se.Op)
	assert.Equal(t, int32(12), se.TypeId)
	assert.Equal(t, "pof.funcMarker", se.RuntimeType)
	// nothing of the failed value is left in the buffer
	assert.Equal(t, 1, out.Len())
}

func TestMaxDepth(t *testing.T) {
	ctx := NewSimpleContext()
	var v any = "leaf"
	for i := 0; i < 10; i++ {
		v = []any{v}
	}

	_, err := Serialize(ctx, v, WithMaxDepth(5))
	assert.ErrorIs(t, err, ErrDepthExceeded)

	data, err := Serialize(ctx, v)
	require.NoError(t, err)
	_, err = Deserialize(ctx, data, WithMaxDepth(5))
	assert.ErrorIs(t, err, ErrDepthExceeded)

	_, err = Deserialize(ctx, data)
	require.NoError(t, err)
}

func TestEmptySparseArrayKeepsItsTag(t *testing.T) {
	data, err := Serialize(NewSimpleContext(), SparseArray{})
	require.NoError(t, err)

	want := NewWriteBuffer(nil)
	want.WritePackedInt32(TSparseArray)
	want.WritePackedInt32(0)
	want.WritePackedInt32(-1)
	assert.Equal(t, want.Bytes(), data)
}

func TestWriteObjectKeepsDefaults(t *testing.T) {
	w := funcContext(t, 8, func(w IPofWriter) error {
		for i, v := range []any{int64(0), false, Char(0), byte(0), nil} {
			if err := w.WriteObject(int32(i), v); err != nil {
				return err
			}
		}
		// typed writes still omit defaults
		w.WriteInt32(5, 0)
		return nil
	}, nil)
	data, err := Serialize(w, funcMarker{})
	require.NoError(t, err)

	r := funcContext(t, 8, nil, func(r IPofReader) error {
		var got []any
		for i := int32(0); i < 5; i++ {
			v, err := r.ReadObject(i)
			require.NoError(t, err)
			got = append(got, v)
		}
		assert.Equal(t, []any{int32(0), false, Char(0), int32(0), nil}, got)
		remainder, err := r.ReadRemainder()
		require.NoError(t, err)
		assert.Empty(t, remainder)
		return nil
	})
	_, err = Deserialize(r, data)
	require.NoError(t, err)
}

func TestUniformCollectionOfWideNumbers(t *testing.T) {
	wide := new(big.Int).Lsh(big.NewInt(1), 100)
	w := funcContext(t, 9, func(w IPofWriter) error {
		if err := w.WriteUniformCollection(0, []any{uint64(7), uint64(math.MaxUint64), wide}); err != nil {
			return err
		}
		return w.WriteUniformCollection(1, []any{NewDecimal(15, 1), NewDecimal(-123456789012345678, 3)})
	}, nil)
	data, err := Serialize(w, funcMarker{})
	require.NoError(t, err)

	r := funcContext(t, 9, nil, func(r IPofReader) error {
		ints, err := r.ReadCollection(0)
		require.NoError(t, err)
		require.Len(t, ints, 3)
		assert.Equal(t, "7", ints[0].(*big.Int).String())
		assert.Equal(t, "18446744073709551615", ints[1].(*big.Int).String())
		assert.Equal(t, wide.String(), ints[2].(*big.Int).String())

		decimals, err := r.ReadCollection(1)
		require.NoError(t, err)
		require.Len(t, decimals, 2)
		assert.Equal(t, NewDecimal(15, 1).String(), decimals[0].(Decimal).String())
		assert.Equal(t, NewDecimal(-123456789012345678, 3).String(), decimals[1].(Decimal).String())
		return nil
	})
	_, err = Deserialize(r, data)
	require.NoError(t, err)
}

func TestOverlongLengthsAreRejected(t *testing.T) {
	assert.NoError(t, checkLength(MaxLength))
	assert.ErrorIs(t, checkLength(MaxLength+1), ErrInvalidLength)
}
