package address

import (
	"errors"
	"fmt"
)

// Size is the number of bytes a secondary address occupies on the wire.
const Size = 8

// ErrTruncated is returned when the buffer cannot hold a full address.
var ErrTruncated = errors.New("address: buffer too short for secondary address")

// SecondaryAddress is the protocol level identity of a meter.
//
// The address is read either from a long transport header (identification first)
// or from the wireless link layer (manufacturer first). LongHeader records which
// of the two layouts the bytes came from since IV construction depends on it.
type SecondaryAddress struct {
	Manufacturer uint16
	DeviceID     [4]byte
	Version      byte
	DeviceType   byte
	LongHeader   bool
}

// FromLongHeader reads ID(4) MAN(2) VER TYPE starting at off.
func FromLongHeader(buf []byte, off int) (SecondaryAddress, error) {
	if off < 0 || len(buf) < off+Size {
		return SecondaryAddress{}, ErrTruncated
	}
	var a SecondaryAddress
	copy(a.DeviceID[:], buf[off:off+4])
	a.Manufacturer = uint16(buf[off+4]) | uint16(buf[off+5])<<8
	a.Version = buf[off+6]
	a.DeviceType = buf[off+7]
	a.LongHeader = true
	return a, nil
}

// FromLinkLayer reads MAN(2) ID(4) VER TYPE starting at off, the wireless M-Bus
// link layer order.
func FromLinkLayer(buf []byte, off int) (SecondaryAddress, error) {
	if off < 0 || len(buf) < off+Size {
		return SecondaryAddress{}, ErrTruncated
	}
	var a SecondaryAddress
	a.Manufacturer = uint16(buf[off]) | uint16(buf[off+1])<<8
	copy(a.DeviceID[:], buf[off+2:off+6])
	a.Version = buf[off+6]
	a.DeviceType = buf[off+7]
	return a, nil
}

// Bytes returns the address in the layout it was read from.
func (a SecondaryAddress) Bytes() []byte {
	out := make([]byte, Size)
	if a.LongHeader {
		copy(out[0:4], a.DeviceID[:])
		out[4] = byte(a.Manufacturer)
		out[5] = byte(a.Manufacturer >> 8)
	} else {
		out[0] = byte(a.Manufacturer)
		out[1] = byte(a.Manufacturer >> 8)
		copy(out[2:6], a.DeviceID[:])
	}
	out[6] = a.Version
	out[7] = a.DeviceType
	return out
}

// ManufacturerID decodes the three letter manufacturer code.
func (a SecondaryAddress) ManufacturerID() string {
	m := a.Manufacturer
	return string([]byte{
		byte((m>>10)&0x1F) + 64,
		byte((m>>5)&0x1F) + 64,
		byte(m&0x1F) + 64,
	})
}

// DeviceIDString returns the identification number in display order (MSB first).
func (a SecondaryAddress) DeviceIDString() string {
	return fmt.Sprintf("%02X%02X%02X%02X", a.DeviceID[3], a.DeviceID[2], a.DeviceID[1], a.DeviceID[0])
}

// Key identifies the device independently of the wire layout.
func (a SecondaryAddress) Key() string {
	return fmt.Sprintf("%s-%s-%02X-%02X", a.ManufacturerID(), a.DeviceIDString(), a.Version, a.DeviceType)
}

// Medium returns the device type in words.
func (a SecondaryAddress) Medium() string {
	return MediumName(a.DeviceType)
}

func (a SecondaryAddress) String() string {
	return fmt.Sprintf("manufacturer ID: %s, device ID: %s, device version: %d, device type: %s",
		a.ManufacturerID(), a.DeviceIDString(), a.Version, a.Medium())
}

var media = map[byte]string{
	0x00: "other",
	0x01: "oil",
	0x02: "electricity",
	0x03: "gas",
	0x04: "heat (outlet)",
	0x05: "steam",
	0x06: "warm water",
	0x07: "water",
	0x08: "heat cost allocator",
	0x09: "compressed air",
	0x0A: "cooling load (outlet)",
	0x0B: "cooling load (inlet)",
	0x0C: "heat (inlet)",
	0x0D: "heat/cooling load",
	0x0E: "bus/system component",
	0x0F: "unknown",
	0x15: "hot water",
	0x16: "cold water",
	0x17: "dual register water",
	0x18: "pressure",
	0x19: "A/D converter",
	0x1A: "smoke detector",
	0x1B: "room sensor",
	0x1C: "gas detector",
	0x20: "breaker",
	0x21: "valve",
	0x25: "customer unit",
	0x28: "waste water",
	0x29: "garbage",
	0x31: "communication controller",
	0x32: "unidirectional repeater",
	0x33: "bidirectional repeater",
	0x36: "radio converter (system side)",
	0x37: "radio converter (meter side)",
}

// MediumName maps a device type byte to its name.
func MediumName(deviceType byte) string {
	if name, ok := media[deviceType]; ok {
		return name
	}
	return fmt.Sprintf("reserved (0x%02X)", deviceType)
}
