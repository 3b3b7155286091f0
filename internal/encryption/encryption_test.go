package encryption

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSealAndOpen(t *testing.T) {
	enc, key, err := NewEncryptor("")
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	sealed, err := enc.Encrypt("emby-api-key")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(sealed, sealedPrefix) || strings.Contains(sealed, "emby-api-key") {
		t.Errorf("sealed = %q", sealed)
	}
	if other, _ := enc.Encrypt("emby-api-key"); other == sealed {
		t.Error("nonce reused")
	}

	// The returned key reopens the value in a new process.
	reopened, _, err := NewEncryptor(key)
	if err != nil {
		t.Fatalf("NewEncryptor(key): %v", err)
	}
	if got, err := reopened.Decrypt(sealed); err != nil || got != "emby-api-key" {
		t.Errorf("Decrypt = %q, %v", got, err)
	}
}

func TestDecrypt_Corrupt(t *testing.T) {
	enc, _, _ := NewEncryptor("")
	stranger, _, _ := NewEncryptor("")
	sealed, _ := enc.Encrypt("secret")
	flipped := sealed[:len(sealed)-2] + "AA"

	for name, value := range map[string]string{
		"other key":     sealed,
		"no prefix":     strings.TrimPrefix(sealed, sealedPrefix),
		"not base64":    sealedPrefix + "!!!",
		"too short":     sealedPrefix + "AAAA",
		"tampered body": flipped,
	} {
		dec := enc
		if name == "other key" {
			dec = stranger
		}
		if _, err := dec.Decrypt(value); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}

func TestNewEncryptor_Keys(t *testing.T) {
	tests := []struct {
		key string
		ok  bool
	}{
		{strings.Repeat("k", KeySize), true},
		{"a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2U=", true}, // base64 of 32 bytes
		{"short", false},
		{"c2hvcnQ=", false},
	}
	for _, tt := range tests {
		if _, _, err := NewEncryptor(tt.key); (err == nil) != tt.ok {
			t.Errorf("NewEncryptor(%q) err = %v", tt.key, err)
		}
	}
}

func TestLoadOrCreateKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "encryption.key")

	key, created, err := LoadOrCreateKeyFile(path)
	if err != nil || !created {
		t.Fatalf("first load: created=%v err=%v", created, err)
	}
	if info, err := os.Stat(path); err != nil || info.Mode().Perm() != 0o600 {
		t.Fatalf("key file: %v %v", info, err)
	}

	again, created, err := LoadOrCreateKeyFile(path)
	if err != nil || created || again != key {
		t.Fatalf("second load: key changed=%v created=%v err=%v", again != key, created, err)
	}

	if err := os.WriteFile(path, []byte("garbage\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadOrCreateKeyFile(path); err == nil {
		t.Error("corrupt key file accepted")
	}
}
