package records

import (
	"fmt"
	"math"
	"time"
)

// LengthForDIF returns the data length encoded in the lower nibble of the DIF
// byte. The boolean is false for variable length data (0x0D) and special
// functions (0x0F), which the caller handles separately.
func LengthForDIF(dif byte) (int, bool) {
	switch dif & 0x0F {
	case 0x00, 0x08:
		return 0, true
	case 0x01, 0x09:
		return 1, true
	case 0x02, 0x0A:
		return 2, true
	case 0x03, 0x0B:
		return 3, true
	case 0x04, 0x05, 0x0C:
		return 4, true
	case 0x06, 0x0E:
		return 6, true
	case 0x07:
		return 8, true
	default:
		return 0, false
	}
}

// DecodeBCDLittleEndian converts a BCD payload (little endian nibble order) to
// an integer. A high nibble of 0xF in the most significant byte marks a
// negative number.
func DecodeBCDLittleEndian(b []byte) (int64, error) {
	var value int64
	multiplier := int64(1)
	negative := false
	for i, by := range b {
		low := int64(by & 0x0F)
		high := int64((by >> 4) & 0x0F)
		if i == len(b)-1 && high == 0x0F {
			negative = true
			high = 0
		}
		if low > 9 || high > 9 {
			return 0, fmt.Errorf("invalid BCD byte: 0x%02X", by)
		}
		value += low * multiplier
		multiplier *= 10
		value += high * multiplier
		multiplier *= 10
	}
	if negative {
		value = -value
	}
	return value, nil
}

// DecodeIntLittleEndian sign-extends a little endian two's complement integer
// of up to eight bytes.
func DecodeIntLittleEndian(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	var u uint64
	for i := len(b) - 1; i >= 0; i-- {
		u = u<<8 | uint64(b[i])
	}
	shift := uint(64 - 8*len(b))
	return int64(u<<shift) >> shift
}

// DecodeReal32 decodes an IEEE 754 single precision value.
func DecodeReal32(b []byte) float64 {
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return float64(math.Float32frombits(bits))
}

// DecodeTypeFDateTime decodes the four-byte Type F timestamp used by many
// M-Bus meters.
func DecodeTypeFDateTime(b []byte) (time.Time, error) {
	if len(b) != 4 {
		return time.Time{}, fmt.Errorf("type F datetime requires 4 bytes, got %d", len(b))
	}
	minute := int(b[0] & 0x3F)
	hour := int(b[1] & 0x1F)
	day := int(b[2] & 0x1F)
	month := int(b[3] & 0x0F)
	yearBitsHigh := (b[3] >> 4) & 0x0F
	yearBitsLow := (b[2] >> 5) & 0x07
	year := 2000 + int(yearBitsHigh<<3|yearBitsLow)
	if minute > 59 || hour > 23 || day == 0 || day > 31 || month == 0 || month > 12 {
		return time.Time{}, fmt.Errorf("invalid type F datetime encoding: %02X%02X%02X%02X", b[0], b[1], b[2], b[3])
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC), nil
}

// DecodeTypeGDate decodes the two-byte Type G date.
func DecodeTypeGDate(b []byte) (time.Time, error) {
	if len(b) != 2 {
		return time.Time{}, fmt.Errorf("type G date requires 2 bytes, got %d", len(b))
	}
	day := int(b[0] & 0x1F)
	month := int(b[1] & 0x0F)
	year := 2000 + int((b[1]&0xF0)>>1|(b[0]&0xE0)>>5)
	if day == 0 || day > 31 || month == 0 || month > 12 {
		return time.Time{}, fmt.Errorf("invalid type G date encoding: %02X%02X", b[0], b[1])
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// DecodeTypeIDateTime decodes the six-byte Type I timestamp (with seconds).
func DecodeTypeIDateTime(b []byte) (time.Time, error) {
	if len(b) != 6 {
		return time.Time{}, fmt.Errorf("type I datetime requires 6 bytes, got %d", len(b))
	}
	second := int(b[0] & 0x3F)
	minute := int(b[1] & 0x3F)
	hour := int(b[2] & 0x1F)
	day := int(b[3] & 0x1F)
	month := int(b[4] & 0x0F)
	year := 2000 + int((b[4]&0xF0)>>1|(b[3]&0xE0)>>5)
	if second > 59 || minute > 59 || hour > 23 || day == 0 || day > 31 || month == 0 || month > 12 {
		return time.Time{}, fmt.Errorf("invalid type I datetime encoding: %X", b)
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), nil
}

func reversedString(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return string(out)
}
