package options

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/qvest-digital/jmbus/internal/address"
)

// ErrKeyFile is returned for key files that cannot be used.
var ErrKeyFile = errors.New("invalid key file")

const anyManufacturer = "*"

// KeyFile is the YAML layout of a pre-shared key file.
type KeyFile struct {
	Keys []KeyEntry `yaml:"keys"`
}

// KeyEntry binds an AES key to a device. An empty manufacturer matches every
// manufacturer for the given identification number.
type KeyEntry struct {
	Manufacturer string `yaml:"manufacturer,omitempty"`
	ID           string `yaml:"id"`
	Key          string `yaml:"key"`
}

// KeyStore maps device identities to AES keys. It is safe for concurrent use.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

// NewKeyStore returns an empty store.
func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[string][]byte)}
}

// LoadKeyFile reads and parses a YAML key file.
func LoadKeyFile(path string) (*KeyStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	store, err := ParseKeyFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return store, nil
}

// ParseKeyFile parses the YAML key file contents.
func ParseKeyFile(data []byte) (*KeyStore, error) {
	var file KeyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFile, err)
	}
	store := NewKeyStore()
	for i, entry := range file.Keys {
		key, err := ParseKeyHex(entry.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrKeyFile, i, err)
		}
		if key == nil {
			return nil, fmt.Errorf("%w: entry %d: missing key", ErrKeyFile, i)
		}
		if err := store.Add(entry.Manufacturer, entry.ID, key); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrKeyFile, i, err)
		}
	}
	return store, nil
}

// Add registers key for the device. id is the eight digit identification
// number in display order.
func (s *KeyStore) Add(manufacturer, id string, key []byte) error {
	id = strings.ToUpper(stripWhitespace(id))
	if len(id) != 8 {
		return fmt.Errorf("device id %q must have 8 digits", id)
	}
	manufacturer = strings.ToUpper(strings.TrimSpace(manufacturer))
	if manufacturer == "" {
		manufacturer = anyManufacturer
	} else if len(manufacturer) != 3 {
		return fmt.Errorf("manufacturer %q must have 3 letters", manufacturer)
	}
	s.mu.Lock()
	s.keys[manufacturer+"-"+id] = append([]byte(nil), key...)
	s.mu.Unlock()
	return nil
}

// AddAddress registers key for an exact device address.
func (s *KeyStore) AddAddress(a address.SecondaryAddress, key []byte) {
	s.mu.Lock()
	s.keys[a.ManufacturerID()+"-"+a.DeviceIDString()] = append([]byte(nil), key...)
	s.mu.Unlock()
}

// Lookup returns the key for the device, preferring an exact manufacturer match.
func (s *KeyStore) Lookup(a address.SecondaryAddress) ([]byte, bool) {
	id := a.DeviceIDString()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if key, ok := s.keys[a.ManufacturerID()+"-"+id]; ok {
		return key, true
	}
	key, ok := s.keys[anyManufacturer+"-"+id]
	return key, ok
}

// Len reports the number of registered keys.
func (s *KeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}
