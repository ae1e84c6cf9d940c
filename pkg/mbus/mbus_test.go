package mbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qvest-digital/jmbus/internal/frame"
	"github.com/qvest-digital/jmbus/internal/records"
	"github.com/qvest-digital/jmbus/internal/testutil"
)

type goldenCase struct {
	Name         string  `json:"name"`
	Key          string  `json:"key"`
	Wired        bool    `json:"wired"`
	Manufacturer string  `json:"manufacturer"`
	Mode         string  `json:"mode"`
	Records      int     `json:"records"`
	Index        int     `json:"index"`
	Description  string  `json:"description"`
	Value        float64 `json:"value"`
	MoreRecords  bool    `json:"more_records_follow"`
}

func manufacturerOf(r Result) string {
	if r.Data != nil && r.Data.SecondaryAddress != nil {
		return r.Data.SecondaryAddress.ManufacturerID()
	}
	if r.Telegram != nil && r.Telegram.Address != nil {
		return r.Telegram.Address.ManufacturerID()
	}
	return ""
}

func TestGoldenTelegrams(t *testing.T) {
	var cases []goldenCase
	testutil.LoadJSON(t, "telegrams/golden.json", &cases)
	require.NotEmpty(t, cases)

	d := NewDecoder(WithLogger(quietLogger()))
	for _, tc := range cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			raw := testutil.LoadHex(t, "telegrams/"+tc.Name+".hex")
			res, err := d.DecodeHex(context.Background(), raw, DecodeOptions{KeyHex: tc.Key, Wired: tc.Wired})
			require.NoError(t, err)
			require.True(t, res.Data.Decoded)
			require.Equal(t, tc.Manufacturer, manufacturerOf(res))
			require.Equal(t, tc.Mode, res.Data.EncryptionMode.String())
			require.Len(t, res.Data.Records, tc.Records)
			require.Equal(t, tc.MoreRecords, res.Data.MoreRecordsFollow)

			rec := res.Data.Records[tc.Index]
			require.Equal(t, records.Description(tc.Description), rec.Description)
			got, ok := rec.ScaledValue()
			require.True(t, ok)
			require.InDelta(t, tc.Value, got, 1e-6)
			require.NotEmpty(t, res.Fields)
		})
	}
}

func TestDecodeHexWiredManufacturerData(t *testing.T) {
	d := NewDecoder(WithLogger(quietLogger()))

	res, err := d.DecodeHex(context.Background(), testutil.LoadHex(t, "telegrams/wired_nzr.hex"), DecodeOptions{Wired: true})
	require.NoError(t, err)
	require.Equal(t, []byte{0x0E}, res.Data.ManufacturerData)
	require.False(t, res.Data.MoreRecordsFollow)
	require.Equal(t, "primary 5", res.Telegram.MeterIDString())

	res, err = d.DecodeHex(context.Background(), testutil.LoadHex(t, "telegrams/wired_more_records.hex"), DecodeOptions{Wired: true})
	require.NoError(t, err)
	require.True(t, res.Data.MoreRecordsFollow)
	require.True(t, strings.HasPrefix(fmt.Sprintf("%x", res.Data.ManufacturerData), "e80301"))
	require.Contains(t, res.String(), `"more_records_follow": true`)
}

func TestDecodeHexCleansInput(t *testing.T) {
	d := NewDecoder(WithLogger(quietLogger()))
	raw := testutil.LoadHex(t, "telegrams/las.hex")

	var spaced strings.Builder
	spaced.WriteString("0x")
	for i := 0; i < len(raw); i += 2 {
		spaced.WriteString(strings.ToLower(raw[i : i+2]))
		if i%8 == 6 {
			spaced.WriteString(" | ")
		} else {
			spaced.WriteString(" ")
		}
	}

	res, err := d.DecodeHex(context.Background(), spaced.String(), DecodeOptions{})
	require.NoError(t, err)
	require.Equal(t, len(raw)/2, res.ByteCount)
	require.Equal(t, strings.ToUpper(raw), res.RawHex)
	require.Equal(t, "LAS", manufacturerOf(res))

	v, err := res.FieldSet().Int("error_flags")
	require.NoError(t, err)
	require.Equal(t, int64(1), v)
}

func TestDecodeHexErrors(t *testing.T) {
	d := NewDecoder(WithLogger(quietLogger()))
	ctx := context.Background()

	_, err := d.DecodeHex(ctx, "ABC", DecodeOptions{})
	require.ErrorContains(t, err, "even number")

	_, err = d.DecodeHex(ctx, "ZZZZ", DecodeOptions{})
	require.ErrorContains(t, err, "decode hex")

	_, err = d.DecodeHex(ctx, "0102", DecodeOptions{})
	require.ErrorIs(t, err, frame.ErrTooShort)

	_, err = d.DecodeHex(ctx, testutil.LoadHex(t, "telegrams/las.hex"), DecodeOptions{KeyHex: "0011"})
	require.ErrorContains(t, err, "32 hex digits")

	_, err = d.DecodeHex(ctx, testutil.LoadHex(t, "telegrams/wired_emh.hex"), DecodeOptions{})
	require.Error(t, err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = d.DecodeHex(canceled, testutil.LoadHex(t, "telegrams/las.hex"), DecodeOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDecodeHexKeyOverride(t *testing.T) {
	d := NewDecoder(WithLogger(quietLogger()))
	raw := testutil.LoadHex(t, "telegrams/esy.hex")

	res, err := d.DecodeHex(context.Background(), raw, DecodeOptions{})
	require.ErrorIs(t, err, ErrMissingKey)
	require.NotNil(t, res.Telegram)
	require.NotNil(t, res.Data)
	require.False(t, res.Data.Decoded)
	require.Empty(t, res.Fields)

	res, err = d.DecodeHex(context.Background(), raw, DecodeOptions{KeyHex: "7840A86F F6C79266 DE07A879 C4373BB2"})
	require.NoError(t, err)
	power, err := res.FieldSet().Float("power")
	require.NoError(t, err)
	require.InDelta(t, 13557.93, power, 1e-6)

	// the override does not leak into the decoder
	_, err = d.DecodeHex(context.Background(), raw, DecodeOptions{})
	require.ErrorIs(t, err, ErrMissingKey)
}

func TestResultString(t *testing.T) {
	d := NewDecoder(WithLogger(quietLogger()))
	res, err := d.DecodeHex(context.Background(), testutil.LoadHex(t, "telegrams/las.hex"), DecodeOptions{})
	require.NoError(t, err)

	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.String()), &summary))
	require.Equal(t, "LAS", summary["manufacturer"])
	require.Equal(t, "0x72", summary["ci"])
	require.Equal(t, "NONE", summary["encryption_mode"])
	fields, ok := summary["fields"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, float64(1), fields["error_flags"])
}

func TestFieldName(t *testing.T) {
	cases := []struct {
		rec  DataRecord
		want string
	}{
		{DataRecord{Description: records.DescVolume}, "volume"},
		{DataRecord{Description: records.DescVolume, StorageNumber: 1}, "volume_s1"},
		{DataRecord{Description: records.DescEnergy, Tariff: 2, Subunit: 1, Function: records.FunctionMaximum}, "energy_t2_u1_max"},
		{DataRecord{Description: records.DescPower, Function: records.FunctionMinimum}, "power_min"},
		{DataRecord{Description: records.DescErrorFlags, Function: records.FunctionError}, "error_flags_err"},
		{DataRecord{Description: "user_defined", UserDefinedDescription: "Pulse In"}, "user_defined_pulse_in"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, FieldName(tc.rec))
	}
}

func TestFieldsOfDisambiguates(t *testing.T) {
	date := time.Date(2019, 12, 31, 0, 0, 0, 0, time.UTC)
	fields := fieldsOf([]DataRecord{
		{Description: records.DescVolume, Value: int64(1250), Multiplier: -2},
		{Description: records.DescVolume, Value: int64(7)},
		{Description: records.DescVolume, Value: []byte{0xDD, 0xBD}},
		{Description: records.DescDate, Value: date},
		{Description: "model_version", Value: "1.0.1"},
	})
	require.Equal(t, map[string]any{
		"volume":        12.5,
		"volume_2":      float64(7),
		"volume_3":      "DDBD",
		"date":          "2019-12-31T00:00:00Z",
		"model_version": "1.0.1",
	}, fields)
	require.Nil(t, fieldsOf(nil))
}

func TestFieldSet(t *testing.T) {
	fs := Result{Fields: map[string]any{
		"volume":  12.5,
		"count":   int64(3),
		"whole":   float64(4),
		"text":    "42",
		"flag":    true,
		"flagstr": "true",
		"date":    "2019-12-31T00:00:00Z",
		"blob":    []byte{1},
	}}.FieldSet()

	require.Equal(t, []string{"blob", "count", "date", "flag", "flagstr", "text", "volume", "whole"}, fs.Names())

	f, err := fs.Float("count")
	require.NoError(t, err)
	require.Equal(t, 3.0, f)
	f, err = fs.Float("text")
	require.NoError(t, err)
	require.Equal(t, 42.0, f)
	_, err = fs.Float("blob")
	require.ErrorContains(t, err, "unsupported type")

	i, err := fs.Int("whole")
	require.NoError(t, err)
	require.Equal(t, int64(4), i)
	_, err = fs.Int("volume")
	require.ErrorContains(t, err, "not integer")

	s, err := fs.String("volume")
	require.NoError(t, err)
	require.Equal(t, "12.5", s)

	b, err := fs.Bool("flagstr")
	require.NoError(t, err)
	require.True(t, b)
	_, err = fs.Bool("count")
	require.Error(t, err)

	ts, err := fs.Time("date")
	require.NoError(t, err)
	require.Equal(t, time.Date(2019, 12, 31, 0, 0, 0, 0, time.UTC), ts)
	_, err = fs.Time("text")
	require.ErrorContains(t, err, "not a date")

	_, ok := fs.Raw("missing")
	require.False(t, ok)
	_, lookupErr := fs.Float("missing")
	require.ErrorContains(t, lookupErr, `"missing" missing`)

	require.Empty(t, FieldSet{}.Names())
}
