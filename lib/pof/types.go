package pof

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Char is a single character value (T_CHAR). It is distinct from int32 so
// that characters and 32 bit integers survive a round trip as different types.
type Char rune

// SparseArray is an array in which only the present positions are stored (T_SPARSE_ARRAY)
type SparseArray map[int32]any

// --------------------------------------------------------------------------
// Decimal
// --------------------------------------------------------------------------

// Decimal is an arbitrary precision decimal number: Unscaled * 10^-Scale
type Decimal struct {
	Unscaled *big.Int
	Scale    int32
}

// NewDecimal creates a decimal from an int64 unscaled value
func NewDecimal(unscaled int64, scale int32) Decimal {
	return Decimal{Unscaled: big.NewInt(unscaled), Scale: scale}
}

// Precision returns the number of decimal digits of the unscaled value
func (d Decimal) Precision() int {
	if d.Unscaled == nil || d.Unscaled.Sign() == 0 {
		return 1
	}
	return len(strings.TrimPrefix(d.Unscaled.String(), "-"))
}

// IsZero reports whether d is the zero decimal with scale 0
func (d Decimal) IsZero() bool {
	return (d.Unscaled == nil || d.Unscaled.Sign() == 0) && d.Scale == 0
}

// Equal reports whether d and o have the same unscaled value and scale
func (d Decimal) Equal(o Decimal) bool {
	return d.unscaled().Cmp(o.unscaled()) == 0 && d.Scale == o.Scale
}

func (d Decimal) unscaled() *big.Int {
	if d.Unscaled == nil {
		return new(big.Int)
	}
	return d.Unscaled
}

// decimalTag selects the narrowest decimal tag that can hold d
func (d Decimal) decimalTag() int32 {
	switch p := d.Precision(); {
	case p <= 7:
		return TDecimal32
	case p <= 16:
		return TDecimal64
	default:
		return TDecimal128
	}
}

func (d Decimal) String() string {
	s := d.unscaled().String()
	if d.Scale <= 0 {
		return s + strings.Repeat("0", int(-d.Scale))
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if len(s) <= int(d.Scale) {
		s = strings.Repeat("0", int(d.Scale)-len(s)+1) + s
	}
	i := len(s) - int(d.Scale)
	s = s[:i] + "." + s[i:]
	if neg {
		s = "-" + s
	}
	return s
}

// --------------------------------------------------------------------------
// Date and Time
// --------------------------------------------------------------------------

// ZoneType describes how a Time carries its time zone
type ZoneType int32

const (
	ZoneNone   ZoneType = 0
	ZoneUTC    ZoneType = 1
	ZoneOffset ZoneType = 2
)

// Date is a calendar date (T_DATE)
type Date struct {
	Year, Month, Day int32
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Time is a time of day with optional zone (T_TIME)
type Time struct {
	Hour, Minute, Second, Nano int32
	Zone                       ZoneType
	HourOffset, MinuteOffset   int32
}

func (t Time) String() string {
	s := fmt.Sprintf("%02d:%02d:%02d.%09d", t.Hour, t.Minute, t.Second, t.Nano)
	switch t.Zone {
	case ZoneUTC:
		s += "Z"
	case ZoneOffset:
		sign := "+"
		h, m := t.HourOffset, t.MinuteOffset
		if h < 0 || m < 0 {
			sign = "-"
			h, m = -h, -m
		}
		s += fmt.Sprintf("%s%02d:%02d", sign, h, m)
	}
	return s
}

// location returns the time.Location described by the zone fields
func (t Time) location() *time.Location {
	switch t.Zone {
	case ZoneUTC:
		return time.UTC
	case ZoneOffset:
		return time.FixedZone("", int(t.HourOffset)*3600+int(t.MinuteOffset)*60)
	default:
		return time.Local
	}
}

// splitTime converts a time.Time into the date and time components of T_DATETIME
func splitTime(v time.Time) (Date, Time) {
	d := Date{Year: int32(v.Year()), Month: int32(v.Month()), Day: int32(v.Day())}
	t := Time{Hour: int32(v.Hour()), Minute: int32(v.Minute()), Second: int32(v.Second()), Nano: int32(v.Nanosecond())}
	if v.Location() == time.UTC {
		t.Zone = ZoneUTC
	} else {
		_, offset := v.Zone()
		t.Zone = ZoneOffset
		t.HourOffset = int32(offset / 3600)
		t.MinuteOffset = int32(offset % 3600 / 60)
	}
	return d, t
}

// joinTime is the inverse of splitTime
func joinTime(d Date, t Time) time.Time {
	return time.Date(int(d.Year), time.Month(d.Month), int(d.Day),
		int(t.Hour), int(t.Minute), int(t.Second), int(t.Nano), t.location())
}

// --------------------------------------------------------------------------
// Intervals
// --------------------------------------------------------------------------

// YearMonthInterval is a period of years and months (T_YEAR_MONTH_INTERVAL)
type YearMonthInterval struct {
	Years, Months int32
}

// TimeInterval is a period within a day (T_TIME_INTERVAL)
type TimeInterval struct {
	Hours, Minutes, Seconds, Nanos int32
}

// Duration converts the interval into a time.Duration
func (i TimeInterval) Duration() time.Duration {
	return time.Duration(i.Hours)*time.Hour + time.Duration(i.Minutes)*time.Minute +
		time.Duration(i.Seconds)*time.Second + time.Duration(i.Nanos)
}

// dayTimeInterval holds the components of a T_DAY_TIME_INTERVAL value
type dayTimeInterval struct {
	days, hours, minutes, seconds, nanos int32
}

func splitDuration(d time.Duration) dayTimeInterval {
	neg := d < 0
	if neg {
		d = -d
	}
	iv := dayTimeInterval{
		days:    int32(d / (24 * time.Hour)),
		hours:   int32(d / time.Hour % 24),
		minutes: int32(d / time.Minute % 60),
		seconds: int32(d / time.Second % 60),
		nanos:   int32(d % time.Second),
	}
	if neg {
		iv.days, iv.hours, iv.minutes, iv.seconds, iv.nanos = -iv.days, -iv.hours, -iv.minutes, -iv.seconds, -iv.nanos
	}
	return iv
}

func (iv dayTimeInterval) duration() time.Duration {
	return time.Duration(iv.days)*24*time.Hour + time.Duration(iv.hours)*time.Hour +
		time.Duration(iv.minutes)*time.Minute + time.Duration(iv.seconds)*time.Second + time.Duration(iv.nanos)
}
