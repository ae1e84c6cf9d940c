package mbus

import (
	"fmt"
	"strings"

	"github.com/qvest-digital/jmbus/internal/address"
	"github.com/qvest-digital/jmbus/internal/records"
)

// SecondaryAddress is the structured identity of a meter.
type SecondaryAddress = address.SecondaryAddress

// DataRecord is one decoded measurement record.
type DataRecord = records.Record

// SecondaryAddressFromLinkLayer reads a wireless link-layer address
// (MAN ID VER TYPE) at off.
func SecondaryAddressFromLinkLayer(buf []byte, off int) (SecondaryAddress, error) {
	return address.FromLinkLayer(buf, off)
}

// SecondaryAddressFromLongHeader reads a long transport header address
// (ID MAN VER TYPE) at off.
func SecondaryAddressFromLongHeader(buf []byte, off int) (SecondaryAddress, error) {
	return address.FromLongHeader(buf, off)
}

// EncryptionMode is the resolved payload protection of a telegram.
type EncryptionMode int

const (
	EncryptionNone EncryptionMode = iota
	// EncryptionAESCBCIV is transport layer security mode 5.
	EncryptionAESCBCIV
	// EncryptionAESCBCIV0 is mode 7: zero IV with a CMAC derived key.
	EncryptionAESCBCIV0
	// EncryptionAES128CTR is the extended link layer session encryption.
	EncryptionAES128CTR
)

func (m EncryptionMode) String() string {
	switch m {
	case EncryptionNone:
		return "NONE"
	case EncryptionAESCBCIV:
		return "AES_CBC_IV"
	case EncryptionAESCBCIV0:
		return "AES_CBC_IV_0"
	case EncryptionAES128CTR:
		return "AES_128_CTR"
	default:
		return fmt.Sprintf("EncryptionMode(%d)", int(m))
	}
}

// tplMode maps the security mode nibble of the configuration field.
func tplMode(code byte) (EncryptionMode, bool) {
	switch code {
	case 0:
		return EncryptionNone, true
	case 5:
		return EncryptionAESCBCIV, true
	case 7:
		return EncryptionAESCBCIV0, true
	default:
		return EncryptionNone, false
	}
}

// ellMode maps the top three bits of the session number.
func ellMode(bits byte) (EncryptionMode, bool) {
	switch bits {
	case 0:
		return EncryptionNone, true
	case 1:
		return EncryptionAES128CTR, true
	default:
		return EncryptionNone, false
	}
}

// AFLHeader is the authentication and fragmentation layer. The MAC is kept but
// not verified.
type AFLHeader struct {
	Length               byte
	FragmentationControl [2]byte
	MessageControl       byte
	MessageCounter       [4]byte
	MAC                  [8]byte
}

// VariableDataStructure is the decoded application layer of one telegram.
type VariableDataStructure struct {
	// CI is the CI field that selected the transport layer header.
	CI byte
	// SecondaryAddress is set when a long header carried the meter identity.
	SecondaryAddress *SecondaryAddress

	AccessNumber            byte
	Status                  byte
	EncryptionMode          EncryptionMode
	NumberOfEncryptedBlocks int
	// KeyID is only meaningful for EncryptionAESCBCIV0.
	KeyID byte

	// HeaderBytes are the extended link layer bytes (CI through session
	// number) when such a layer is present.
	HeaderBytes []byte
	// HeaderLength is the offset of the first payload byte within the
	// decoded window.
	HeaderLength int

	CommunicationControl byte
	SessionNumber        []byte
	AFL                  *AFLHeader

	Records           []DataRecord
	ManufacturerData  []byte
	MoreRecordsFollow bool
	ShortFrame        bool
	Decoded           bool

	raw []byte
}

var statusFlagDefs = []struct {
	mask byte
	key  string
}{
	{0x04, "power_low"},
	{0x08, "permanent_error"},
	{0x10, "temporary_error"},
	{0x20, "manufacturer_specific_1"},
	{0x40, "manufacturer_specific_2"},
	{0x80, "manufacturer_specific_3"},
}

var applicationStatus = [4]string{"", "application_busy", "application_error", "abnormal_condition"}

// StatusFlags decodes the status byte of the transport layer header.
func (v *VariableDataStructure) StatusFlags() map[string]bool {
	flags := make(map[string]bool)
	if s := applicationStatus[v.Status&0x03]; s != "" {
		flags[s] = true
	}
	for _, def := range statusFlagDefs {
		if v.Status&def.mask != 0 {
			flags[def.key] = true
		}
	}
	return flags
}

// String renders a diagnostic dump for operators.
func (v *VariableDataStructure) String() string {
	var b strings.Builder
	if !v.Decoded {
		if len(v.Records) == 0 {
			return fmt.Sprintf("variable data structure has not been decoded, bytes:\n%X", v.raw)
		}
		fmt.Fprintf(&b, "variable data structure has not been fully decoded, %d data records decoded\n", len(v.Records))
	}
	if v.SecondaryAddress != nil {
		fmt.Fprintf(&b, "secondary address: {%s}\n", v.SecondaryAddress)
	}
	fmt.Fprintf(&b, "short header: {access no.: %d, status: %d, encryption mode: %s, number of encrypted blocks: %d}",
		v.AccessNumber, v.Status, v.EncryptionMode, v.NumberOfEncryptedBlocks)
	for _, rec := range v.Records {
		b.WriteString("\n")
		b.WriteString(rec.String())
	}
	if len(v.ManufacturerData) > 0 {
		fmt.Fprintf(&b, "\nmanufacturer specific bytes:\n%X", v.ManufacturerData)
	}
	if v.MoreRecordsFollow {
		b.WriteString("\nmore records follow ...")
	}
	return b.String()
}
