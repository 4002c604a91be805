package pof

import "fmt"

// --------------------------------------------------------------------------
// Type Tags
// --------------------------------------------------------------------------

// Primitive and complex type tags. Negative values are reserved for the
// format itself, non-negative values identify user types.
const (
	TInt16              int32 = -1
	TInt32              int32 = -2
	TInt64              int32 = -3
	TInt128             int32 = -4
	TFloat32            int32 = -5
	TFloat64            int32 = -6
	TFloat128           int32 = -7
	TDecimal32          int32 = -8
	TDecimal64          int32 = -9
	TDecimal128         int32 = -10
	TBoolean            int32 = -11
	TOctet              int32 = -12
	TOctetString        int32 = -13
	TChar               int32 = -14
	TCharString         int32 = -15
	TDate               int32 = -16
	TYearMonthInterval  int32 = -17
	TTime               int32 = -18
	TTimeInterval       int32 = -19
	TDateTime           int32 = -20
	TDayTimeInterval    int32 = -21
	TCollection         int32 = -22
	TUniformCollection  int32 = -23
	TArray              int32 = -24
	TUniformArray       int32 = -25
	TSparseArray        int32 = -26
	TUniformSparseArray int32 = -27
	TMap                int32 = -28
	TUniformKeysMap     int32 = -29
	TUniformMap         int32 = -30
	TIdentity           int32 = -31
	TReference          int32 = -32
)

// Compact value markers. A marker stands for both the type and the value,
// no payload follows.
const (
	VBooleanFalse      int32 = -33
	VBooleanTrue       int32 = -34
	VStringZeroLength  int32 = -35
	VCollectionEmpty   int32 = -36
	VReferenceNull     int32 = -37
	VFPPosInfinity     int32 = -38
	VFPNegInfinity     int32 = -39
	VFPNaN             int32 = -40
	VIntNeg1           int32 = -41
	VInt0              int32 = -42
	VInt22             int32 = -64
	TUnknown           int32 = -65
	minTinyInt         int32 = -1
	maxTinyInt         int32 = 22
	sparseTerminator   int32 = -1
	noPosition         int32 = -1
	noIdentity         int32 = -1
	defaultVersionId   int32 = 0
	maxPackedInt32Size       = 5
	maxPackedInt64Size       = 10
)

// --------------------------------------------------------------------------
// Tag Helpers
// --------------------------------------------------------------------------

// IsTinyInt reports whether n can be written as a single tiny int marker
func IsTinyInt(n int64) bool {
	return n >= int64(minTinyInt) && n <= int64(maxTinyInt)
}

// EncodeTinyInt returns the marker for n. n must satisfy IsTinyInt.
func EncodeTinyInt(n int32) int32 {
	return VInt0 - n
}

// DecodeTinyInt returns the integer carried by a tiny int marker
func DecodeTinyInt(tag int32) int32 {
	return VInt0 - tag
}

// isTinyIntTag reports whether tag is one of VIntNeg1 ... VInt22
func isTinyIntTag(tag int32) bool {
	return tag <= VIntNeg1 && tag >= VInt22
}

// IsUserTypeId reports whether tag identifies a user type
func IsUserTypeId(tag int32) bool {
	return tag >= 0
}

// IsIntrinsic reports whether tag denotes a primitive value (as opposed to
// a complex value, a reference marker or a user type)
func IsIntrinsic(tag int32) bool {
	switch {
	case tag >= TDayTimeInterval && tag <= TInt16:
		return true
	case tag == VBooleanFalse, tag == VBooleanTrue, tag == VStringZeroLength:
		return true
	case tag <= VFPPosInfinity && tag >= VInt22:
		return true
	}
	return false
}

var tagNames = map[int32]string{
	TInt16:              "int16",
	TInt32:              "int32",
	TInt64:              "int64",
	TInt128:             "int128",
	TFloat32:            "float32",
	TFloat64:            "float64",
	TFloat128:           "float128",
	TDecimal32:          "decimal32",
	TDecimal64:          "decimal64",
	TDecimal128:         "decimal128",
	TBoolean:            "boolean",
	TOctet:              "octet",
	TOctetString:        "octet-string",
	TChar:               "char",
	TCharString:         "char-string",
	TDate:               "date",
	TYearMonthInterval:  "year-month-interval",
	TTime:               "time",
	TTimeInterval:       "time-interval",
	TDateTime:           "datetime",
	TDayTimeInterval:    "day-time-interval",
	TCollection:         "collection",
	TUniformCollection:  "uniform-collection",
	TArray:              "array",
	TUniformArray:       "uniform-array",
	TSparseArray:        "sparse-array",
	TUniformSparseArray: "uniform-sparse-array",
	TMap:                "map",
	TUniformKeysMap:     "uniform-keys-map",
	TUniformMap:         "uniform-map",
	TIdentity:           "identity",
	TReference:          "reference",
	VBooleanFalse:       "false",
	VBooleanTrue:        "true",
	VStringZeroLength:   "empty-string",
	VCollectionEmpty:    "empty-collection",
	VReferenceNull:      "null",
	VFPPosInfinity:      "+inf",
	VFPNegInfinity:      "-inf",
	VFPNaN:              "nan",
	TUnknown:            "unknown",
}

// TypeName returns a readable name for a tag, used in errors and dumps
func TypeName(tag int32) string {
	if name, ok := tagNames[tag]; ok {
		return name
	}
	if isTinyIntTag(tag) {
		return fmt.Sprintf("tiny(%d)", DecodeTinyInt(tag))
	}
	if tag >= 0 {
		return fmt.Sprintf("user-type(%d)", tag)
	}
	return fmt.Sprintf("tag(%d)", tag)
}
