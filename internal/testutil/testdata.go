package testutil

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// LoadJSON decodes a JSON fixture from the repository testdata directory.
func LoadJSON(t testing.TB, rel string, v any) {
	t.Helper()
	if err := json.Unmarshal(readTestdata(t, rel), v); err != nil {
		t.Fatalf("decode %s: %v", rel, err)
	}
}

// LoadHex returns a hex telegram fixture with surrounding whitespace removed.
func LoadHex(t testing.TB, rel string) string {
	t.Helper()
	return strings.TrimSpace(string(readTestdata(t, rel)))
}

// LoadHexBytes returns the decoded bytes of a hex telegram fixture.
func LoadHexBytes(t testing.TB, rel string) []byte {
	t.Helper()
	b, err := hex.DecodeString(LoadHex(t, rel))
	if err != nil {
		t.Fatalf("decode hex %s: %v", rel, err)
	}
	return b
}

func readTestdata(t testing.TB, rel string) []byte {
	t.Helper()
	root, err := moduleRoot()
	if err != nil {
		t.Fatalf("locate module root: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "testdata", rel))
	if err != nil {
		t.Fatalf("read testdata %s: %v", rel, err)
	}
	return data
}

// moduleRoot walks up from the working directory to the directory holding go.mod.
func moduleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
