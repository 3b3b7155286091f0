// Package encryption seals media server API keys at rest with AES-256-GCM.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sydlexius/artbrowser/internal/filesystem"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// sealedPrefix versions the stored format: "v1:" + base64(nonce || ciphertext).
const sealedPrefix = "v1:"

// ErrCorrupt is returned for sealed values that are not ours or were
// tampered with, including values sealed under another key.
var ErrCorrupt = errors.New("sealed value is corrupt or was sealed with another key")

// Encryptor seals and opens short secrets.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor builds an Encryptor from key, given as base64 or as 32 raw
// characters. An empty key generates a fresh one; the key in use is
// returned base64-encoded so callers can persist it.
func NewEncryptor(key string) (*Encryptor, string, error) {
	var raw []byte
	if key == "" {
		raw = make([]byte, KeySize)
		if _, err := rand.Read(raw); err != nil {
			return nil, "", fmt.Errorf("generating encryption key: %w", err)
		}
	} else {
		var err error
		if raw, err = decodeKey(key); err != nil {
			return nil, "", err
		}
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, "", fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, "", fmt.Errorf("creating cipher: %w", err)
	}
	return &Encryptor{aead: aead}, base64.StdEncoding.EncodeToString(raw), nil
}

func decodeKey(key string) ([]byte, error) {
	if raw, err := base64.StdEncoding.DecodeString(key); err == nil && len(raw) == KeySize {
		return raw, nil
	}
	if len(key) == KeySize {
		return []byte(key), nil
	}
	return nil, fmt.Errorf("encryption key must be %d bytes, raw or base64", KeySize)
}

// LoadOrCreateKeyFile returns the key stored at path, generating and
// writing one (mode 0600) when the file does not exist yet. created
// reports whether a new key was written.
func LoadOrCreateKeyFile(path string) (key string, created bool, err error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config
	switch {
	case err == nil:
		key = strings.TrimSpace(string(data))
		if _, err := decodeKey(key); err != nil {
			return "", false, fmt.Errorf("key file %s: %w", path, err)
		}
		return key, false, nil
	case !errors.Is(err, os.ErrNotExist):
		return "", false, fmt.Errorf("reading key file: %w", err)
	}

	if _, key, err = NewEncryptor(""); err != nil {
		return "", false, err
	}
	if err := filesystem.WriteFileAtomic(path, []byte(key+"\n"), 0o600); err != nil {
		return "", false, fmt.Errorf("writing key file: %w", err)
	}
	return key, true, nil
}

// Encrypt seals plaintext under a random nonce.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(plaintext)+e.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.
func (e *Encryptor) Decrypt(sealed string) (string, error) {
	body, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return "", ErrCorrupt
	}
	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil || len(data) < e.aead.NonceSize() {
		return "", ErrCorrupt
	}
	n := e.aead.NonceSize()
	plain, err := e.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", ErrCorrupt
	}
	return string(plain), nil
}
