package address

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromLinkLayer(t *testing.T) {
	raw, _ := hex.DecodeString("47447916618151614037")
	a, err := FromLinkLayer(raw, 2)
	require.NoError(t, err)
	require.Equal(t, "ESY", a.ManufacturerID())
	require.Equal(t, "61518161", a.DeviceIDString())
	require.Equal(t, byte(0x40), a.Version)
	require.Equal(t, byte(0x37), a.DeviceType)
	require.False(t, a.LongHeader)
	require.Equal(t, raw[2:10], a.Bytes())
}

func TestFromLongHeader(t *testing.T) {
	raw, _ := hex.DecodeString("4901276179161102")
	a, err := FromLongHeader(raw, 0)
	require.NoError(t, err)
	require.Equal(t, "ESY", a.ManufacturerID())
	require.Equal(t, "61270149", a.DeviceIDString())
	require.Equal(t, "electricity", a.Medium())
	require.True(t, a.LongHeader)
	require.Equal(t, raw, a.Bytes())
}

func TestKeyIgnoresLayout(t *testing.T) {
	long, err := FromLongHeader([]byte{0x78, 0x56, 0x34, 0x12, 0x93, 0x15, 0x33, 0x03}, 0)
	require.NoError(t, err)
	link, err := FromLinkLayer([]byte{0x93, 0x15, 0x78, 0x56, 0x34, 0x12, 0x33, 0x03}, 0)
	require.NoError(t, err)
	require.NotEqual(t, long.Bytes(), link.Bytes())
	require.Equal(t, long.Key(), link.Key())
	require.Equal(t, "ELS-12345678-33-03", link.Key())
}

func TestTruncated(t *testing.T) {
	_, err := FromLinkLayer(make([]byte, 7), 0)
	require.ErrorIs(t, err, ErrTruncated)
	_, err = FromLongHeader(make([]byte, 9), 2)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestString(t *testing.T) {
	a := SecondaryAddress{Manufacturer: 0x1679, DeviceID: [4]byte{0x49, 0x01, 0x27, 0x61}, Version: 0x11, DeviceType: 0x02}
	require.Equal(t, "manufacturer ID: ESY, device ID: 61270149, device version: 17, device type: electricity", a.String())
	require.Equal(t, "reserved (0x7F)", MediumName(0x7F))
}
