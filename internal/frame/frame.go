package frame

import (
	"errors"
	"fmt"

	"github.com/qvest-digital/jmbus/internal/address"
)

var (
	ErrTooShort = errors.New("telegram too short")
	ErrLength   = errors.New("declared length does not match telegram")
	ErrFraming  = errors.New("invalid long frame framing")
	ErrChecksum = errors.New("long frame checksum mismatch")
)

const (
	wirelessCIOffset = 10

	longFrameStart   = 0x68
	longFrameStop    = 0x16
	longFrameCIIndex = 6
)

// Telegram represents a link-layer frame stripped from transport details. The
// application layer starts at APLOffset (the CI byte) and spans APLLength
// bytes of Raw.
type Telegram struct {
	Raw     []byte
	Length  byte
	Control byte

	// Address is the wireless link-layer address. Wired frames carry a
	// primary address only and leave it nil.
	Address        *address.SecondaryAddress
	PrimaryAddress byte
	Wired          bool

	CI        byte
	APLOffset int
	APLLength int

	// Trailer holds bytes after the declared length, typically an RSSI byte
	// appended by the receiver.
	Trailer []byte
}

// Parse extracts the wireless M-Bus link layer L C MAN(2) ID(4) VER TYPE CI.
// Format A CRC blocks must already be removed.
func Parse(raw []byte) (Telegram, error) {
	if len(raw) < wirelessCIOffset+1 {
		return Telegram{}, fmt.Errorf("%w: %d bytes", ErrTooShort, len(raw))
	}
	length := raw[0]
	if int(length) < wirelessCIOffset || int(length)+1 > len(raw) {
		return Telegram{}, fmt.Errorf("%w: declared %d, actual %d", ErrLength, length, len(raw)-1)
	}
	addr, err := address.FromLinkLayer(raw, 2)
	if err != nil {
		return Telegram{}, err
	}
	t := Telegram{
		Raw:       raw,
		Length:    length,
		Control:   raw[1],
		Address:   &addr,
		CI:        raw[wirelessCIOffset],
		APLOffset: wirelessCIOffset,
		APLLength: int(length) + 1 - wirelessCIOffset,
	}
	if int(length)+1 < len(raw) {
		t.Trailer = raw[length+1:]
	}
	return t, nil
}

// ParseWired extracts a wired M-Bus long frame 68 L L 68 C A CI ... CS 16 and
// verifies its arithmetic checksum.
func ParseWired(raw []byte) (Telegram, error) {
	if len(raw) < longFrameCIIndex+3 {
		return Telegram{}, fmt.Errorf("%w: %d bytes", ErrTooShort, len(raw))
	}
	if raw[0] != longFrameStart || raw[3] != longFrameStart {
		return Telegram{}, fmt.Errorf("%w: start bytes %02X %02X", ErrFraming, raw[0], raw[3])
	}
	if raw[1] != raw[2] {
		return Telegram{}, fmt.Errorf("%w: length bytes %d and %d differ", ErrLength, raw[1], raw[2])
	}
	length := int(raw[1])
	if length < 3 || len(raw) != length+6 {
		return Telegram{}, fmt.Errorf("%w: declared %d, actual %d", ErrLength, length, len(raw)-6)
	}
	if raw[len(raw)-1] != longFrameStop {
		return Telegram{}, fmt.Errorf("%w: stop byte %02X", ErrFraming, raw[len(raw)-1])
	}
	var sum byte
	for _, b := range raw[4 : 4+length] {
		sum += b
	}
	if cs := raw[4+length]; cs != sum {
		return Telegram{}, fmt.Errorf("%w: got %02X, want %02X", ErrChecksum, cs, sum)
	}
	return Telegram{
		Raw:            raw,
		Length:         raw[1],
		Control:        raw[4],
		PrimaryAddress: raw[5],
		Wired:          true,
		CI:             raw[longFrameCIIndex],
		APLOffset:      longFrameCIIndex,
		APLLength:      length - 2,
	}, nil
}

// MeterIDString returns the EN 13757 display format (MSB first), or the
// primary address for wired frames.
func (t Telegram) MeterIDString() string {
	if t.Address == nil {
		return fmt.Sprintf("primary %d", t.PrimaryAddress)
	}
	return t.Address.DeviceIDString()
}

// APL returns the application layer window starting at the CI byte.
func (t Telegram) APL() []byte {
	return t.Raw[t.APLOffset : t.APLOffset+t.APLLength]
}
