package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"github.com/aead/cmac"

	"github.com/qvest-digital/jmbus/internal/address"
)

var (
	ErrKeyRequired = errors.New("encrypted telegram: AES key required")
	ErrInvalidKey  = errors.New("encrypted telegram: AES key rejected (bad plaintext)")
	ErrBlockSize   = errors.New("encrypted section is not a multiple of the AES block size")
)

const (
	// Filler pads the key derivation input to the block size.
	kdfFiller = 0x07

	// DeriveEncryption is the derivation constant for the encryption key (Kenc).
	DeriveEncryption = 0x00

	verificationByte = 0x2F
)

// DecryptCBC decrypts data in AES-CBC mode without padding and returns a new
// slice. data must be a whole number of blocks.
func DecryptCBC(key, iv, data []byte) ([]byte, error) {
	if len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBlockSize, len(data))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid AES key: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("invalid IV length %d", len(iv))
	}
	plaintext := make([]byte, len(data))
	copy(plaintext, data)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, plaintext)
	return plaintext, nil
}

// DecryptCTR decrypts data in AES-CTR mode and returns a new slice.
func DecryptCTR(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid AES key: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("invalid IV length %d", len(iv))
	}
	plaintext := make([]byte, len(data))
	cipher.NewCTR(block, iv).XORKeyStream(plaintext, data)
	return plaintext, nil
}

// DeriveKey computes an AES-CMAC over constant || counter || id, padded with
// 0x07 up to a multiple of the block size, keyed with the master key.
func DeriveKey(master []byte, constant byte, counter, id []byte) ([]byte, error) {
	block, err := aes.NewCipher(master)
	if err != nil {
		return nil, fmt.Errorf("invalid AES master key: %w", err)
	}
	input := make([]byte, 0, aes.BlockSize)
	input = append(input, constant)
	input = append(input, counter...)
	input = append(input, id...)
	for len(input)%aes.BlockSize != 0 {
		input = append(input, kdfFiller)
	}
	mac, err := cmac.New(block)
	if err != nil {
		return nil, err
	}
	mac.Write(input)
	return mac.Sum(nil), nil
}

// HasVerificationBytes reports whether plaintext starts with 2F 2F.
func HasVerificationBytes(plaintext []byte) bool {
	return len(plaintext) >= 2 && plaintext[0] == verificationByte && plaintext[1] == verificationByte
}

// CBCIV builds the mode 5 IV: manufacturer, identification, version and device
// type followed by eight copies of the access number.
func CBCIV(a address.SecondaryAddress, accessNumber byte) []byte {
	iv := make([]byte, aes.BlockSize)
	raw := a.Bytes()
	if a.LongHeader {
		copy(iv[0:2], raw[4:6])
		copy(iv[2:6], raw[0:4])
		copy(iv[6:8], raw[6:8])
	} else {
		copy(iv[0:8], raw)
	}
	for i := 8; i < aes.BlockSize; i++ {
		iv[i] = accessNumber
	}
	return iv
}

// ZeroIV is used by mode 7, where the key rather than the IV is diversified.
func ZeroIV() []byte {
	return make([]byte, aes.BlockSize)
}

// CTRIV builds the extended link layer IV: link address, communication control
// with the hop count bit cleared, session number and three zero bytes.
func CTRIV(link address.SecondaryAddress, communicationControl byte, sessionNumber []byte) []byte {
	iv := make([]byte, 0, aes.BlockSize)
	iv = append(iv, link.Bytes()...)
	iv = append(iv, communicationControl&^(1<<4))
	iv = append(iv, sessionNumber...)
	for len(iv) < aes.BlockSize {
		iv = append(iv, 0x00)
	}
	return iv[:aes.BlockSize]
}
