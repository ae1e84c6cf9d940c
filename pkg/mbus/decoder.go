package mbus

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qvest-digital/jmbus/internal/address"
	"github.com/qvest-digital/jmbus/internal/crc"
	"github.com/qvest-digital/jmbus/internal/crypto"
	"github.com/qvest-digital/jmbus/internal/history"
	"github.com/qvest-digital/jmbus/internal/records"
)

const (
	ciLongHeader     = 0x72
	ciNoHeader       = 0x78
	ciShortFrame     = 0x79
	ciShortHeader    = 0x7A
	ciELLShort       = 0x8C
	ciELLLong        = 0x8D
	ciAFL            = 0x90
	ciNotImplemented = 0x33

	fillByte = 0x2F
	// mode 7 carries one key id byte after the configuration field
	tplModeKeyID = 7

	aflSize           = 16
	aflMessageControl = 0x25
	shortFrameSkip    = 4
)

var aflFragmentationControl = [2]byte{0x00, 0x2C}

// History is the per-device record layout store used by short frames.
type History = history.Store

// NewHistory returns a history bounded to size devices and ttl age. See
// history.New for the defaults.
func NewHistory(size int, ttl time.Duration) *History {
	return history.New(size, ttl)
}

// KeyLookup returns the pre-shared AES key of a device.
type KeyLookup func(SecondaryAddress) ([]byte, bool)

// RecordDecoder decodes one data record starting at offset and returns the
// offset of the following record.
type RecordDecoder interface {
	Decode(buf []byte, offset int) (records.Record, int, error)
}

// Decoder decodes variable data structures. It is safe for concurrent use;
// decodes of the same device are serialized through its history.
type Decoder struct {
	keys    KeyLookup
	history *History
	records RecordDecoder
	log     logrus.FieldLogger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithKeys sets the key lookup used for encrypted payloads.
func WithKeys(lookup KeyLookup) Option {
	return func(d *Decoder) { d.keys = lookup }
}

// WithHistory shares a history between decoders.
func WithHistory(h *History) Option {
	return func(d *Decoder) { d.history = h }
}

// WithRecordDecoder replaces the data record decoder.
func WithRecordDecoder(rd RecordDecoder) Option {
	return func(d *Decoder) { d.records = rd }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Decoder) { d.log = l }
}

// NewDecoder builds a decoder with its own history unless WithHistory is given.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		opt(d)
	}
	if d.history == nil {
		d.history = history.New(0, 0)
	}
	if d.records == nil {
		d.records = records.Decoder{}
	}
	if d.log == nil {
		d.log = logrus.StandardLogger()
	}
	return d
}

// History returns the decoder's device history.
func (d *Decoder) History() *History {
	return d.history
}

// Decode decodes the variable data structure in buf[offset:offset+length],
// starting at its CI field. link is the link-layer address of the sender and
// may be nil for wired frames.
//
// The returned structure is never nil. On error it holds the records decoded
// before the failure and Decoded is false.
func (d *Decoder) Decode(buf []byte, offset, length int, link *SecondaryAddress) (vds *VariableDataStructure, err error) {
	vds = &VariableDataStructure{}
	if offset < 0 || length < 0 || offset+length > len(buf) {
		return vds, truncatedf("window %d+%d exceeds buffer of %d bytes", offset, length, len(buf))
	}
	window := buf[offset : offset+length]
	vds.raw = append([]byte(nil), window...)

	st := &decodeState{d: d, vds: vds, link: link, log: d.log}
	if link != nil {
		st.log = d.log.WithField("device", link.Key())
	}

	defer func() {
		if r := recover(); r != nil {
			vds.Decoded = false
			err = newError(KindTruncated, fmt.Errorf("%v", r), "runtime fault while decoding")
			st.log.WithError(err).Debug("decoding aborted")
		}
	}()

	if err := st.dispatch(window, 0); err != nil {
		st.log.WithError(err).Debug("decoding failed")
		return vds, err
	}
	if st.store && !st.manufacturerStop && link != nil {
		d.history.Put(link.Key(), vds.Records)
	}
	vds.Decoded = true
	return vds, nil
}

type decodeState struct {
	d    *Decoder
	vds  *VariableDataStructure
	link *SecondaryAddress
	log  logrus.FieldLogger

	counter          []byte
	store            bool
	manufacturerStop bool
}

func (st *decodeState) dispatch(w []byte, pos int) error {
	if pos >= len(w) {
		return truncatedf("missing CI field at offset %d", pos)
	}
	ci := w[pos]
	st.vds.CI = ci
	st.log.WithField("ci", fmt.Sprintf("0x%02X", ci)).Debug("decoding variable data structure")

	switch {
	case ci == ciLongHeader:
		return st.longHeader(w, pos)
	case ci == ciNoHeader:
		st.vds.EncryptionMode = EncryptionNone
		st.vds.HeaderLength = pos + 1
		return st.records(w[pos+1:])
	case ci == ciShortHeader:
		return st.shortHeader(w, pos)
	case ci == ciELLShort:
		return st.extendedLinkLayerShort(w, pos)
	case ci == ciELLLong:
		return st.extendedLinkLayerLong(w, pos)
	case ci == ciNotImplemented:
		return unsupportedf("received telegram with CI 0x33, decoding not implemented (device serial: %s, manufacturer: %s)",
			st.deviceID(), st.manufacturerID())
	case ci >= 0xA0 && ci <= 0xB7:
		return unsupportedf("manufacturer specific CI 0x%02X", ci)
	default:
		return unsupportedf("unable to decode message with CI 0x%02X", ci)
	}
}

func (st *decodeState) longHeader(w []byte, pos int) error {
	a, err := address.FromLongHeader(w, pos+1)
	if err != nil {
		return newError(KindTruncated, err, "long header")
	}
	st.vds.SecondaryAddress = &a
	return st.transportLayer(w, pos+1+address.Size)
}

func (st *decodeState) shortHeader(w []byte, pos int) error {
	return st.transportLayer(w, pos+1)
}

// transportLayer parses access number, status and configuration field at i and
// decodes the payload that follows.
func (st *decodeState) transportLayer(w []byte, i int) error {
	if i+4 > len(w) {
		return truncatedf("short header at offset %d", i)
	}
	v := st.vds
	v.AccessNumber = w[i]
	v.Status = w[i+1]
	v.NumberOfEncryptedBlocks = int(w[i+2]&0xF0) >> 4
	code := w[i+3] & 0x0F
	i += 4
	if code == tplModeKeyID {
		if i >= len(w) {
			return truncatedf("missing key id byte")
		}
		v.KeyID = w[i] & 0x0F
		i++
	}
	v.HeaderLength = i

	mode, known := tplMode(code)
	if plaintextFill(w, i) || v.NumberOfEncryptedBlocks == 0 {
		mode, known = EncryptionNone, true
	}
	if !known {
		return unsupportedf("unsupported encryption mode %d", code)
	}
	v.EncryptionMode = mode

	payload := w[i:]
	switch mode {
	case EncryptionNone:
		return st.records(payload)
	default:
		return st.decryptCBC(payload)
	}
}

// plaintextFill reports whether the payload starts with 2F 02, which some
// meters send unencrypted despite announcing encryption.
func plaintextFill(w []byte, i int) bool {
	return i+1 < len(w) && w[i] == fillByte && w[i+1] == 0x02
}

func (st *decodeState) decryptCBC(payload []byte) error {
	v := st.vds
	n := v.NumberOfEncryptedBlocks * 16
	if n > len(payload) {
		return truncatedf("%d encrypted blocks exceed payload of %d bytes", v.NumberOfEncryptedBlocks, len(payload))
	}
	key, err := st.key()
	if err != nil {
		return err
	}

	var iv []byte
	switch v.EncryptionMode {
	case EncryptionAESCBCIV0:
		if st.counter == nil {
			return unsupportedf("encryption mode 7 requires an AFL message counter")
		}
		id := st.identification()
		if id == nil {
			return unsupportedf("encryption mode 7 requires a device address")
		}
		key, err = crypto.DeriveKey(key, crypto.DeriveEncryption, st.counter, id)
		if err != nil {
			return newError(KindWrongKey, err, "key derivation")
		}
		iv = crypto.ZeroIV()
	default:
		a := st.ivAddress()
		if a == nil {
			return unsupportedf("AES-CBC requires a device address for the IV")
		}
		iv = crypto.CBCIV(*a, v.AccessNumber)
	}

	plain, err := crypto.DecryptCBC(key, iv, payload[:n])
	if err != nil {
		return newError(KindWrongKey, err, "%s", st.decryptionFailed())
	}
	if !crypto.HasVerificationBytes(plain) {
		return newError(KindWrongKey, crypto.ErrInvalidKey, "%s", st.decryptionFailed())
	}
	st.log.WithField("mode", v.EncryptionMode.String()).Debug("payload decrypted")

	if err := st.records(plain); err != nil {
		return err
	}
	if len(payload) > n {
		return st.records(payload[n:])
	}
	return nil
}

func (st *decodeState) extendedLinkLayerShort(w []byte, pos int) error {
	if pos+4 > len(w) {
		return truncatedf("extended link layer at offset %d", pos)
	}
	v := st.vds
	v.CommunicationControl = w[pos+1]
	v.AccessNumber = w[pos+2]
	v.HeaderBytes = append([]byte(nil), w[pos:pos+3]...)

	switch inner := w[pos+3]; inner {
	case ciNoHeader:
		v.HeaderLength = pos + 4
		return st.records(w[pos+4:])
	case ciShortFrame:
		v.HeaderLength = pos + 4
		return st.shortFrame(w[pos+4:])
	case ciAFL:
		n, err := st.afl(w, pos+4)
		if err != nil {
			return err
		}
		return st.dispatch(w, pos+4+n)
	default:
		return unsupportedf("extended link layer 0x8C followed by CI 0x%02X", inner)
	}
}

func (st *decodeState) afl(w []byte, i int) (int, error) {
	if i+aflSize > len(w) {
		return 0, truncatedf("AFL header at offset %d", i)
	}
	h := &AFLHeader{Length: w[i], MessageControl: w[i+3]}
	copy(h.FragmentationControl[:], w[i+1:i+3])
	copy(h.MessageCounter[:], w[i+4:i+8])
	copy(h.MAC[:], w[i+8:i+16])
	if h.FragmentationControl != aflFragmentationControl {
		return 0, unsupportedf("only AFL with FCL 0x002C is supported, got 0x%02X%02X",
			h.FragmentationControl[0], h.FragmentationControl[1])
	}
	if h.MessageControl != aflMessageControl {
		return 0, unsupportedf("only AFL with MCL 0x25 is supported, got 0x%02X", h.MessageControl)
	}
	st.vds.AFL = h
	st.counter = h.MessageCounter[:]
	return aflSize, nil
}

func (st *decodeState) extendedLinkLayerLong(w []byte, pos int) error {
	if pos+10 > len(w) {
		return truncatedf("extended link layer at offset %d", pos)
	}
	v := st.vds
	v.CommunicationControl = w[pos+1]
	v.AccessNumber = w[pos+2]
	v.SessionNumber = append([]byte(nil), w[pos+3:pos+7]...)
	v.HeaderBytes = append([]byte(nil), w[pos:pos+7]...)

	mode, known := ellMode(v.SessionNumber[3] >> 5)
	if crc.Match(w[pos+7:pos+9], w[pos+9:]) {
		mode, known = EncryptionNone, true
	}
	if !known {
		return unsupportedf("unsupported extended link layer encryption %d", v.SessionNumber[3]>>5)
	}
	v.EncryptionMode = mode

	vdr := w[pos+7:]
	if mode == EncryptionAES128CTR {
		plain, err := st.decryptCTR(vdr)
		if err != nil {
			return err
		}
		vdr = plain
	}

	v.HeaderLength = pos + 10
	switch inner := vdr[2]; inner {
	case ciNoHeader:
		return st.records(vdr[3:])
	case ciShortFrame:
		return st.shortFrame(vdr[3:])
	default:
		return unsupportedf("extended link layer 0x8D followed by CI 0x%02X", inner)
	}
}

func (st *decodeState) decryptCTR(vdr []byte) ([]byte, error) {
	if st.link == nil {
		return nil, unsupportedf("AES-CTR requires the link-layer address")
	}
	key, err := st.key()
	if err != nil {
		return nil, err
	}
	iv := crypto.CTRIV(*st.link, st.vds.CommunicationControl, st.vds.SessionNumber)
	plain, err := crypto.DecryptCTR(key, iv, vdr)
	if err != nil {
		return nil, newError(KindWrongKey, err, "%s", st.decryptionFailed())
	}
	if !crc.Match(plain[0:2], plain[2:]) {
		return nil, newError(KindWrongKey, crypto.ErrInvalidKey, "%s", st.decryptionFailed())
	}
	st.log.WithField("mode", EncryptionAES128CTR.String()).Debug("payload decrypted")
	return plain, nil
}

// records decodes data records until fewer than two bytes remain.
func (st *decodeState) records(data []byte) error {
	v := st.vds
	st.store = true
	i := 0
	for len(data)-i >= 2 {
		b := data[i]
		if b&0xEF == 0x0F {
			v.MoreRecordsFollow = b&0x10 != 0
			v.ManufacturerData = append([]byte(nil), data[i+1:]...)
			st.manufacturerStop = true
			return nil
		}
		if b == fillByte {
			i++
			continue
		}
		rec, next, err := st.d.records.Decode(data, i)
		if err != nil {
			return newError(KindMalformedRecord, err, "data record %d at offset %d", len(v.Records), i)
		}
		if next <= i {
			return newError(KindMalformedRecord, nil, "data record %d at offset %d consumed no bytes", len(v.Records), i)
		}
		v.Records = append(v.Records, rec)
		i = next
	}
	return nil
}

// shortFrame rebuilds the records of a 0x79 frame from the layout stored for
// the device. Without a stored layout the frame yields no records.
func (st *decodeState) shortFrame(data []byte) error {
	v := st.vds
	v.ShortFrame = true
	if len(data) < shortFrameSkip {
		return truncatedf("short frame header")
	}
	values := data[shortFrameSkip:]
	if st.link == nil {
		st.log.Debug("short frame without link-layer address, no history available")
		return nil
	}

	var rebuilt []records.Record
	err := st.d.history.Update(st.link.Key(), func(prev []records.Record, ok bool) ([]records.Record, error) {
		if !ok {
			st.log.Debug("short frame without stored layout")
		}
		pos := 0
		for i, r := range prev {
			n := r.DataLength
			if pos+n > len(values) {
				return nil, truncatedf("short frame ends before record %d (%d of %d value bytes)", i, len(values), pos+n)
			}
			b := make([]byte, 0, len(r.DIB)+len(r.VIB)+n)
			b = append(b, r.DIB...)
			b = append(b, r.VIB...)
			b = append(b, values[pos:pos+n]...)
			rec, _, err := st.d.records.Decode(b, 0)
			if err != nil {
				return nil, newError(KindMalformedRecord, err, "short frame record %d", i)
			}
			prev[i] = rec
			pos += n
		}
		rebuilt = prev
		return prev, nil
	})
	if err != nil {
		return err
	}
	v.Records = rebuilt
	st.log.WithField("records", len(rebuilt)).Debug("short frame reconstructed")
	return nil
}

// keyAddress is the address keys are registered for: the link-layer address,
// or the long header address for wired frames.
func (st *decodeState) keyAddress() *SecondaryAddress {
	if st.link != nil {
		return st.link
	}
	return st.vds.SecondaryAddress
}

// ivAddress prefers the long header address over the link-layer address.
func (st *decodeState) ivAddress() *SecondaryAddress {
	if st.vds.SecondaryAddress != nil {
		return st.vds.SecondaryAddress
	}
	return st.link
}

func (st *decodeState) identification() []byte {
	a := st.ivAddress()
	if a == nil {
		return nil
	}
	return a.DeviceID[:]
}

func (st *decodeState) key() ([]byte, error) {
	a := st.keyAddress()
	if a == nil {
		return nil, newError(KindMissingKey, crypto.ErrKeyRequired, "encrypted payload from unknown device")
	}
	if st.d.keys != nil {
		if key, ok := st.d.keys(*a); ok && len(key) > 0 {
			return key, nil
		}
	}
	return nil, newError(KindMissingKey, crypto.ErrKeyRequired, "no key registered for secondary address {%s}", a)
}

func (st *decodeState) deviceID() string {
	if a := st.keyAddress(); a != nil {
		return a.DeviceIDString()
	}
	return "unknown"
}

func (st *decodeState) manufacturerID() string {
	if a := st.keyAddress(); a != nil {
		return a.ManufacturerID()
	}
	return "unknown"
}

func (st *decodeState) decryptionFailed() string {
	return fmt.Sprintf("%s - %s - decryption unsuccessful, wrong AES key?", st.deviceID(), st.manufacturerID())
}
