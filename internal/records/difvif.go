package records

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrMalformed is returned when a record cannot be decoded from the buffer.
var ErrMalformed = errors.New("malformed data record")

// maxExtensions bounds DIFE and VIFE chains (EN 13757-3 allows ten).
const maxExtensions = 10

// ValueType identifies the Go type stored in Record.Value.
type ValueType int

const (
	ValueNone ValueType = iota
	ValueLong
	ValueBCD
	ValueDouble
	ValueDate
	ValueString
	ValueBytes
)

func (v ValueType) String() string {
	switch v {
	case ValueNone:
		return "NONE"
	case ValueLong:
		return "LONG"
	case ValueBCD:
		return "BCD"
	case ValueDouble:
		return "DOUBLE"
	case ValueDate:
		return "DATE"
	case ValueString:
		return "STRING"
	case ValueBytes:
		return "BYTES"
	default:
		return fmt.Sprintf("ValueType(%d)", int(v))
	}
}

// Function is the DIF function field.
type Function byte

const (
	FunctionInstantaneous Function = iota
	FunctionMaximum
	FunctionMinimum
	FunctionError
)

func (f Function) String() string {
	switch f {
	case FunctionInstantaneous:
		return "INST_VAL"
	case FunctionMaximum:
		return "MAX_VAL"
	case FunctionMinimum:
		return "MIN_VAL"
	default:
		return "ERROR_VAL"
	}
}

// Record represents a decoded DIF/VIF entry from the application payload.
//
// Value holds int64 for LONG and BCD, float64 for DOUBLE, time.Time for DATE,
// string for STRING and []byte for BYTES. It is nil for NONE.
type Record struct {
	DIB []byte
	VIB []byte
	Raw []byte

	// DataLength counts the data bytes following the VIB, including the LVAR
	// byte of variable length records.
	DataLength int

	ValueType ValueType
	Value     any

	Function      Function
	StorageNumber uint64
	Tariff        int
	Subunit       int

	Description            Description
	UserDefinedDescription string
	Unit                   Unit
	Multiplier             int
}

// DataField returns the data field nibble of the DIF, the coding and length
// selector of the value (for example 0x0C for an 8 digit BCD).
func (r Record) DataField() byte {
	if len(r.DIB) == 0 {
		return 0
	}
	return r.DIB[0] & 0x0F
}

// ScaledValue applies the VIF multiplier to numeric values.
func (r Record) ScaledValue() (float64, bool) {
	var v float64
	switch x := r.Value.(type) {
	case int64:
		v = float64(x)
	case float64:
		v = x
	default:
		return 0, false
	}
	// Divide for negative exponents so 99999988e-3 stays 99999.988.
	if r.Multiplier < 0 {
		return v / math.Pow10(-r.Multiplier), true
	}
	return v * math.Pow10(r.Multiplier), true
}

func (r Record) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DIB:%X, VIB:%X -> descr:%s", r.DIB, r.VIB, r.Description)
	if r.UserDefinedDescription != "" {
		fmt.Fprintf(&b, " (%s)", r.UserDefinedDescription)
	}
	fmt.Fprintf(&b, ", function:%s", r.Function)
	if r.StorageNumber > 0 {
		fmt.Fprintf(&b, ", storage:%d", r.StorageNumber)
	}
	if r.Tariff > 0 {
		fmt.Fprintf(&b, ", tariff:%d", r.Tariff)
	}
	if r.Subunit > 0 {
		fmt.Fprintf(&b, ", subunit:%d", r.Subunit)
	}
	switch v := r.Value.(type) {
	case nil:
		b.WriteString(", no value")
	case []byte:
		fmt.Fprintf(&b, ", value:%X", v)
	default:
		fmt.Fprintf(&b, ", value:%v", v)
	}
	if scaled, ok := r.ScaledValue(); ok && r.Multiplier != 0 {
		fmt.Fprintf(&b, ", scaled value:%g", scaled)
	}
	if r.Unit != UnitNone {
		fmt.Fprintf(&b, ", unit:%s", r.Unit)
	}
	return b.String()
}
