package frame

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	raw := decodeHex(t, "4E44B4098686868613077AF00040052F2F0C1366380000046D27287E2A0F150E00000000C10000D10000E60000FD00000C01002F0100410100540100680100890000A00000B30000002F2F2F2F2F2F")
	tg, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tg.Address.Manufacturer != 0x09B4 {
		t.Fatalf("manufacturer mismatch: %04X", tg.Address.Manufacturer)
	}
	if got := tg.MeterIDString(); got != "86868686" {
		t.Fatalf("meter id mismatch: %s", got)
	}
	if tg.CI != 0x7A {
		t.Fatalf("unexpected CI 0x%02X", tg.CI)
	}
	require.Equal(t, 10, tg.APLOffset)
	require.Len(t, tg.APL(), 69)
	require.Equal(t, byte(0x7A), tg.APL()[0])
	require.Empty(t, tg.Trailer)
}

func TestParseKeepsTrailer(t *testing.T) {
	raw := decodeHex(t, "2644333003000000011B72030000003330011B542000002F2F02FD1701002F2F2F2F2F2F2F2F2F80")
	tg, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "LAS", tg.Address.ManufacturerID())
	require.Equal(t, "00000003", tg.Address.DeviceIDString())
	require.Equal(t, byte(0x72), tg.CI)
	require.Equal(t, 29, tg.APLLength)
	require.Equal(t, []byte{0x80}, tg.Trailer)
	require.Equal(t, byte(0x2F), tg.APL()[len(tg.APL())-1])
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(decodeHex(t, "0A44B409"))
	require.ErrorIs(t, err, ErrTooShort)

	_, err = Parse(decodeHex(t, "4E44B4098686868613077AF0"))
	require.ErrorIs(t, err, ErrLength)

	_, err = Parse(decodeHex(t, "0544B4098686868613077AF0"))
	require.ErrorIs(t, err, ErrLength)
}

func TestParseWired(t *testing.T) {
	raw := decodeHex(t, "6821216808017202376200a8150002070000008c100409040000c4002a0000000001fd17008c16")
	tg, err := ParseWired(raw)
	require.NoError(t, err)
	require.True(t, tg.Wired)
	require.Nil(t, tg.Address)
	require.Equal(t, byte(0x08), tg.Control)
	require.Equal(t, byte(0x01), tg.PrimaryAddress)
	require.Equal(t, byte(0x72), tg.CI)
	require.Equal(t, 6, tg.APLOffset)
	require.Equal(t, 31, tg.APLLength)
	require.Equal(t, "primary 1", tg.MeterIDString())
	apl := tg.APL()
	require.Equal(t, byte(0x72), apl[0])
	require.Equal(t, byte(0x00), apl[len(apl)-1])
}

func TestParseWiredErrors(t *testing.T) {
	good := "6821216808017202376200a8150002070000008c100409040000c4002a0000000001fd17008c16"

	cases := []struct {
		name string
		in   string
		want error
	}{
		{"short", "682121", ErrTooShort},
		{"start", "6921216808017202376200a8150002070000008c100409040000c4002a0000000001fd17008c16", ErrFraming},
		{"length mismatch", "6821226808017202376200a8150002070000008c100409040000c4002a0000000001fd17008c16", ErrLength},
		{"truncated", good[:len(good)-4], ErrLength},
		{"stop", good[:len(good)-2] + "17", ErrFraming},
		{"checksum", good[:len(good)-4] + "8d16", ErrChecksum},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseWired(decodeHex(t, tc.in))
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func decodeHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("hex decode: %v", err)
	}
	return b
}
