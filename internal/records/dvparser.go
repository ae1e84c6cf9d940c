package records

import "fmt"

// Decoder decodes one record at a time. The zero value is ready to use.
type Decoder struct{}

// Decode implements the record decoding contract used by the variable data
// structure decoder.
func (Decoder) Decode(buf []byte, offset int) (Record, int, error) {
	return Decode(buf, offset)
}

// Decode parses the record starting at offset and returns it together with the
// offset of the next record. All returned slices are copies.
func Decode(buf []byte, offset int) (Record, int, error) {
	if offset < 0 || offset >= len(buf) {
		return Record{}, offset, fmt.Errorf("%w: no data at offset %d", ErrMalformed, offset)
	}
	i := offset
	dif := buf[i]
	i++
	if dif&0x0F == 0x0F {
		return Record{}, offset, fmt.Errorf("%w: special function DIF 0x%02X", ErrMalformed, dif)
	}

	rec := Record{
		DIB:           []byte{dif},
		Function:      Function((dif >> 4) & 0x03),
		StorageNumber: uint64((dif >> 6) & 0x01),
	}
	hasDIFE := dif&0x80 != 0
	for difenr := 0; hasDIFE; difenr++ {
		if difenr == maxExtensions {
			return Record{}, offset, fmt.Errorf("%w: too many DIFE bytes", ErrMalformed)
		}
		if i >= len(buf) {
			return Record{}, offset, fmt.Errorf("%w: unexpected end of payload while reading DIFE", ErrMalformed)
		}
		dife := buf[i]
		i++
		rec.DIB = append(rec.DIB, dife)
		rec.StorageNumber |= uint64(dife&0x0F) << (1 + 4*difenr)
		rec.Tariff |= int((dife>>4)&0x03) << (2 * difenr)
		rec.Subunit |= int((dife>>6)&0x01) << difenr
		hasDIFE = dife&0x80 != 0
	}

	if i >= len(buf) {
		return Record{}, offset, fmt.Errorf("%w: unexpected end of payload before VIF", ErrMalformed)
	}
	vif := buf[i]
	i++
	rec.VIB = []byte{vif}
	if vif&0x7F == 0x7C {
		if i >= len(buf) {
			return Record{}, offset, fmt.Errorf("%w: plain text VIF without length", ErrMalformed)
		}
		n := int(buf[i])
		if i+1+n > len(buf) {
			return Record{}, offset, fmt.Errorf("%w: plain text VIF truncated", ErrMalformed)
		}
		rec.VIB = append(rec.VIB, buf[i:i+1+n]...)
		rec.UserDefinedDescription = reversedString(buf[i+1 : i+1+n])
		i += 1 + n
	}
	var vifes []byte
	hasVIFE := vif&0x80 != 0
	for n := 0; hasVIFE; n++ {
		if n == maxExtensions {
			return Record{}, offset, fmt.Errorf("%w: too many VIFE bytes", ErrMalformed)
		}
		if i >= len(buf) {
			return Record{}, offset, fmt.Errorf("%w: unexpected end of payload while reading VIFE", ErrMalformed)
		}
		vife := buf[i]
		i++
		rec.VIB = append(rec.VIB, vife)
		vifes = append(vifes, vife)
		hasVIFE = vife&0x80 != 0
	}
	rec.describe(vif, vifes)

	next, err := rec.decodeData(buf, i, dif)
	if err != nil {
		return Record{}, offset, err
	}
	return rec, next, nil
}

func (r *Record) decodeData(buf []byte, i int, dif byte) (int, error) {
	if dif&0x0F == 0x0D {
		return r.decodeVariable(buf, i)
	}
	length, _ := LengthForDIF(dif)
	if i+length > len(buf) {
		return i, fmt.Errorf("%w: payload truncated for DIF 0x%02X", ErrMalformed, dif)
	}
	r.DataLength = length
	r.Raw = append([]byte(nil), buf[i:i+length]...)
	i += length

	switch dif & 0x0F {
	case 0x00, 0x08:
		r.ValueType = ValueNone
	case 0x05:
		r.ValueType = ValueDouble
		r.Value = DecodeReal32(r.Raw)
	case 0x09, 0x0A, 0x0B, 0x0C, 0x0E:
		r.setBCD(r.Raw)
	default:
		r.setInteger()
	}
	return i, nil
}

func (r *Record) setInteger() {
	switch {
	case r.Description == DescDate && len(r.Raw) == 2:
		if t, err := DecodeTypeGDate(r.Raw); err == nil {
			r.ValueType, r.Value = ValueDate, t
			return
		}
	case r.Description == DescDateTime && len(r.Raw) == 4:
		if t, err := DecodeTypeFDateTime(r.Raw); err == nil {
			r.ValueType, r.Value = ValueDate, t
			return
		}
	case r.Description == DescDateTime && len(r.Raw) == 6:
		if t, err := DecodeTypeIDateTime(r.Raw); err == nil {
			r.ValueType, r.Value = ValueDate, t
			return
		}
	}
	r.ValueType = ValueLong
	r.Value = DecodeIntLittleEndian(r.Raw)
}

func (r *Record) setBCD(b []byte) {
	v, err := DecodeBCDLittleEndian(b)
	if err != nil {
		r.ValueType = ValueBytes
		r.Value = append([]byte(nil), b...)
		return
	}
	r.ValueType = ValueBCD
	r.Value = v
}

// decodeVariable handles DIF data field 0x0D where an LVAR byte announces the
// encoding and length of the value.
func (r *Record) decodeVariable(buf []byte, i int) (int, error) {
	if i >= len(buf) {
		return i, fmt.Errorf("%w: missing LVAR byte", ErrMalformed)
	}
	lvar := buf[i]
	var n int
	switch {
	case lvar < 0xC0:
		n = int(lvar)
	case lvar <= 0xC9:
		n = int(lvar - 0xC0)
	case lvar >= 0xD0 && lvar <= 0xD9:
		n = int(lvar - 0xD0)
	case lvar >= 0xE0 && lvar <= 0xEF:
		n = int(lvar - 0xE0)
	case lvar >= 0xF0 && lvar <= 0xF4:
		n = 4 * int(lvar-0xEC)
	case lvar == 0xF5:
		n = 48
	case lvar == 0xF6:
		n = 64
	default:
		return i, fmt.Errorf("%w: unsupported LVAR 0x%02X", ErrMalformed, lvar)
	}
	if i+1+n > len(buf) {
		return i, fmt.Errorf("%w: variable length data truncated", ErrMalformed)
	}
	data := buf[i+1 : i+1+n]
	r.DataLength = 1 + n
	r.Raw = append([]byte(nil), buf[i:i+1+n]...)

	switch {
	case lvar < 0xC0:
		r.ValueType = ValueString
		r.Value = reversedString(data)
	case lvar <= 0xC9:
		r.setBCD(data)
	case lvar <= 0xD9:
		r.setBCD(data)
		if v, ok := r.Value.(int64); ok {
			r.Value = -v
		}
	case lvar <= 0xEF && n <= 8:
		r.ValueType = ValueLong
		r.Value = DecodeIntLittleEndian(data)
	default:
		r.ValueType = ValueBytes
		r.Value = append([]byte(nil), data...)
	}
	return i + 1 + n, nil
}
