package mbus

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/qvest-digital/jmbus/internal/frame"
	internalopts "github.com/qvest-digital/jmbus/internal/options"
	"github.com/qvest-digital/jmbus/internal/records"
)

// DecodeOptions configures DecodeHex.
type DecodeOptions struct {
	// KeyHex is used for this telegram in place of the decoder's key lookup.
	KeyHex string
	// Wired selects the wired long frame format (68 L L 68 ...).
	Wired bool
}

// Result captures the outcome of DecodeHex.
type Result struct {
	RawHex    string
	ByteCount int
	Telegram  *frame.Telegram
	Data      *VariableDataStructure
	Fields    map[string]any
}

// String renders a JSON summary of the result.
func (r Result) String() string {
	summary := map[string]any{
		"byte_count": r.ByteCount,
		"raw_hex":    r.RawHex,
	}
	if r.Telegram != nil {
		summary["meter_id"] = r.Telegram.MeterIDString()
		if r.Telegram.Address != nil {
			summary["manufacturer"] = r.Telegram.Address.ManufacturerID()
			summary["medium"] = r.Telegram.Address.Medium()
		}
		summary["ci"] = fmt.Sprintf("0x%02X", r.Telegram.CI)
	}
	if r.Data != nil {
		if r.Data.SecondaryAddress != nil {
			summary["secondary_address"] = r.Data.SecondaryAddress.Key()
		}
		summary["access_number"] = r.Data.AccessNumber
		summary["encryption_mode"] = r.Data.EncryptionMode.String()
		if flags := r.Data.StatusFlags(); len(flags) > 0 {
			summary["status"] = flags
		}
		if len(r.Data.ManufacturerData) > 0 {
			summary["manufacturer_data"] = fmt.Sprintf("%X", r.Data.ManufacturerData)
		}
		if r.Data.MoreRecordsFollow {
			summary["more_records_follow"] = true
		}
	}
	if len(r.Fields) > 0 {
		summary["fields"] = r.Fields
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Sprintf("bytes:%d raw:%s (marshal error: %v)", r.ByteCount, r.RawHex, err)
	}
	return string(data)
}

// DecodeHex parses a hex encoded frame and decodes its variable data
// structure. The result is returned alongside the error whenever the frame
// itself could be parsed.
func (d *Decoder) DecodeHex(ctx context.Context, raw string, opts DecodeOptions) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	key, err := internalopts.ParseKeyHex(opts.KeyHex)
	if err != nil {
		return Result{}, err
	}
	data, err := decodeHex(raw)
	if err != nil {
		return Result{}, err
	}
	var telegram frame.Telegram
	if opts.Wired {
		telegram, err = frame.ParseWired(data)
	} else {
		telegram, err = frame.Parse(data)
	}
	if err != nil {
		return Result{}, err
	}

	result := Result{
		RawHex:    fmt.Sprintf("%X", data),
		ByteCount: len(data),
		Telegram:  &telegram,
	}

	dec := d
	if key != nil {
		dec = d.withKey(key)
	}
	vds, err := dec.Decode(telegram.Raw, telegram.APLOffset, telegram.APLLength, telegram.Address)
	result.Data = vds
	result.Fields = fieldsOf(vds.Records)
	return result, err
}

// withKey returns a copy sharing history and logger that uses key for every
// device.
func (d *Decoder) withKey(key []byte) *Decoder {
	c := *d
	c.keys = func(SecondaryAddress) ([]byte, bool) { return key, true }
	return &c
}

func fieldsOf(recs []records.Record) map[string]any {
	if len(recs) == 0 {
		return nil
	}
	fields := make(map[string]any, len(recs))
	for _, rec := range recs {
		name := FieldName(rec)
		if _, taken := fields[name]; taken {
			for n := 2; ; n++ {
				alt := fmt.Sprintf("%s_%d", name, n)
				if _, taken := fields[alt]; !taken {
					name = alt
					break
				}
			}
		}
		fields[name] = fieldValue(rec)
	}
	return fields
}

// FieldName derives the result field name of a record: its description
// followed by storage, tariff, subunit and function qualifiers.
func FieldName(rec DataRecord) string {
	var b strings.Builder
	b.WriteString(string(rec.Description))
	if rec.UserDefinedDescription != "" {
		b.WriteString("_")
		b.WriteString(strings.ToLower(strings.ReplaceAll(rec.UserDefinedDescription, " ", "_")))
	}
	if rec.StorageNumber > 0 {
		fmt.Fprintf(&b, "_s%d", rec.StorageNumber)
	}
	if rec.Tariff > 0 {
		fmt.Fprintf(&b, "_t%d", rec.Tariff)
	}
	if rec.Subunit > 0 {
		fmt.Fprintf(&b, "_u%d", rec.Subunit)
	}
	switch rec.Function {
	case records.FunctionMaximum:
		b.WriteString("_max")
	case records.FunctionMinimum:
		b.WriteString("_min")
	case records.FunctionError:
		b.WriteString("_err")
	}
	return b.String()
}

func fieldValue(rec DataRecord) any {
	if v, ok := rec.ScaledValue(); ok {
		return v
	}
	switch v := rec.Value.(type) {
	case time.Time:
		return v.Format(time.RFC3339)
	case []byte:
		return fmt.Sprintf("%X", v)
	default:
		return v
	}
}

func decodeHex(input string) ([]byte, error) {
	clean := stripWhitespace(input)
	if strings.HasPrefix(clean, "0X") || strings.HasPrefix(clean, "0x") {
		clean = clean[2:]
	}
	if len(clean)%2 != 0 {
		return nil, fmt.Errorf("hex telegram must contain an even number of digits, got %d", len(clean))
	}
	decoded := make([]byte, len(clean)/2)
	if _, err := hex.Decode(decoded, []byte(clean)); err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return decoded, nil
}

func stripWhitespace(s string) string {
	builder := strings.Builder{}
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || r == '|' || r == '_' {
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
