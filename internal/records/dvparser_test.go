package records

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func decodeHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("hex decode: %v", err)
	}
	return b
}

func mustDecode(t *testing.T, s string) Record {
	t.Helper()
	buf := decodeHex(t, s)
	rec, next, err := Decode(buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(buf), next, "record should consume the whole buffer")
	return rec
}

func TestDecodeIntegers(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0704FFFFFFFFFFFFFFFF", -1},
		{"07041223344556677812", 1330927310113874706},
		{"0403e4050000", 1508},
		{"0403ffffffff", -1},
	}
	for _, tc := range cases {
		rec := mustDecode(t, tc.in)
		require.Equal(t, ValueLong, rec.ValueType, tc.in)
		require.Equal(t, tc.want, rec.Value, tc.in)
	}
}

func TestDecodeEnergyUnits(t *testing.T) {
	cases := []struct {
		in   string
		unit Unit
		mult int
	}{
		{"0407c81e0000", UnitWattHour, 4},
		{"04fb01c81e0000", UnitWattHour, 6},
		{"040fc81e0000", UnitJoule, 7},
		{"04fb09c81e0000", UnitJoule, 9},
		{"04fb0dc81e0000", UnitCalorie, 6},
	}
	for _, tc := range cases {
		rec := mustDecode(t, tc.in)
		require.Equal(t, DescEnergy, rec.Description, tc.in)
		require.Equal(t, tc.unit, rec.Unit, tc.in)
		require.Equal(t, tc.mult, rec.Multiplier, tc.in)
		require.Equal(t, int64(7880), rec.Value, tc.in)
	}
}

func TestDecodeExternalTemperature(t *testing.T) {
	rec := mustDecode(t, "0265A5FA")
	require.Equal(t, DescExternalTemperature, rec.Description)
	require.Equal(t, FunctionInstantaneous, rec.Function)
	scaled, ok := rec.ScaledValue()
	require.True(t, ok)
	require.InDelta(t, -13.71, scaled, 0.001)
}

func TestDecodeBCDVolume(t *testing.T) {
	rec := mustDecode(t, "0C1388999999")
	require.Equal(t, []byte{0x0C}, rec.DIB)
	require.Equal(t, []byte{0x13}, rec.VIB)
	require.Equal(t, ValueBCD, rec.ValueType)
	require.Equal(t, 4, rec.DataLength)
	require.Equal(t, int64(99999988), rec.Value)
	scaled, ok := rec.ScaledValue()
	require.True(t, ok)
	require.InDelta(t, 99999.988, scaled, 1e-6)
}

func TestDecodeNegativeBCD(t *testing.T) {
	rec := mustDecode(t, "0A1321F3")
	require.Equal(t, int64(-321), rec.Value)
}

func TestDecodeInvalidBCDKeepsBytes(t *testing.T) {
	rec := mustDecode(t, "0B3BDDBDEB")
	require.Equal(t, ValueBytes, rec.ValueType)
	require.Equal(t, []byte{0xDD, 0xBD, 0xEB}, rec.Value)
}

func TestDecodeStorageTariffSubunit(t *testing.T) {
	rec := mustDecode(t, "CC101311000000")
	require.Equal(t, uint64(1), rec.StorageNumber)
	require.Equal(t, 1, rec.Tariff)
	require.Equal(t, 0, rec.Subunit)
	require.Equal(t, int64(11), rec.Value)

	rec = mustDecode(t, "84411300000000")
	require.Equal(t, uint64(2), rec.StorageNumber)
	require.Equal(t, 0, rec.Tariff)
	require.Equal(t, 1, rec.Subunit)
}

func TestDecodeDates(t *testing.T) {
	rec := mustDecode(t, "426C1F2C")
	require.Equal(t, ValueDate, rec.ValueType)
	require.Equal(t, time.Date(2016, 12, 31, 0, 0, 0, 0, time.UTC), rec.Value)
	require.Equal(t, uint64(1), rec.StorageNumber)

	rec = mustDecode(t, "046D32371F15")
	require.Equal(t, time.Date(2008, 5, 31, 23, 50, 0, 0, time.UTC), rec.Value)
}

func TestDecodeInvalidDateFallsBackToLong(t *testing.T) {
	rec := mustDecode(t, "046D00000000")
	require.Equal(t, ValueLong, rec.ValueType)
	require.Equal(t, int64(0), rec.Value)
}

func TestDecodeVariableString(t *testing.T) {
	rec := mustDecode(t, "0DFD0F05312E302E31")
	require.Equal(t, DescOtherSoftwareVersion, rec.Description)
	require.Equal(t, ValueString, rec.ValueType)
	require.Equal(t, "1.0.1", rec.Value)
	require.Equal(t, 6, rec.DataLength)
}

func TestDecodePlainTextVIF(t *testing.T) {
	rec := mustDecode(t, "047C0343424101000000")
	require.Equal(t, DescUserDefined, rec.Description)
	require.Equal(t, "ABC", rec.UserDefinedDescription)
	require.Equal(t, int64(1), rec.Value)
	require.Equal(t, []byte{0x7C, 0x03, 0x43, 0x42, 0x41}, rec.VIB)
}

func TestDecodeManufacturerVIFE(t *testing.T) {
	rec := mustDecode(t, "04A9FF011E8F0700")
	require.Equal(t, DescPower, rec.Description)
	require.Equal(t, -2, rec.Multiplier)
	require.Equal(t, []byte{0xA9, 0xFF, 0x01}, rec.VIB)
	require.Equal(t, int64(0x078F1E), rec.Value)
}

func TestDecodeErrorFlags(t *testing.T) {
	rec := mustDecode(t, "02FD170100")
	require.Equal(t, DescErrorFlags, rec.Description)
	require.Equal(t, int64(1), rec.Value)
}

func TestDecodeAtOffset(t *testing.T) {
	buf := decodeHex(t, "2F2F0C1388999999")
	rec, next, err := Decode(buf, 2)
	require.NoError(t, err)
	require.Equal(t, 8, next)
	require.Equal(t, int64(99999988), rec.Value)
}

func TestDecodeMalformed(t *testing.T) {
	for _, in := range []string{
		"0C13889999",
		"0F",
		"1F0102",
		"84",
		"04",
		"04FD",
		"0D13",
		"0D1305414243",
		"047C05414243",
	} {
		_, _, err := Decode(decodeHex(t, in), 0)
		require.ErrorIs(t, err, ErrMalformed, in)
	}
	_, _, err := Decode(nil, 0)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeCopiesInput(t *testing.T) {
	buf := decodeHex(t, "0C1388999999")
	rec, _, err := Decode(buf, 0)
	require.NoError(t, err)
	buf[0], buf[2] = 0x00, 0x00
	require.Equal(t, []byte{0x0C}, rec.DIB)
	require.Equal(t, []byte{0x88, 0x99, 0x99, 0x99}, rec.Raw)
}

func TestRecordString(t *testing.T) {
	rec := mustDecode(t, "0C1388999999")
	require.Equal(t, "DIB:0C, VIB:13 -> descr:volume, function:INST_VAL, value:99999988, scaled value:99999.988, unit:m^3", rec.String())
}
