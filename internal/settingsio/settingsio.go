// Package settingsio moves connections and stored settings between
// instances. Exports are sealed with a passphrase so API keys never leave
// the database in the clear.
package settingsio

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/sydlexius/artbrowser/internal/connection"
	"github.com/sydlexius/artbrowser/internal/database"
	"github.com/sydlexius/artbrowser/internal/version"
)

const (
	formatVersion    = "1"
	pbkdf2Iterations = 600_000
	saltSize         = 16
)

// ErrWrongPassphrase means the envelope could not be opened.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted export")

// Envelope is the JSON document written to disk.
type Envelope struct {
	Version    string `json:"version"`
	AppVersion string `json:"app_version"`
	CreatedAt  string `json:"created_at"`
	Salt       string `json:"salt"`
	Data       string `json:"data"`
}

// Payload is the sealed content of an Envelope.
type Payload struct {
	Settings    map[string]string  `json:"settings"`
	Connections []ConnectionExport `json:"connections"`
}

// ConnectionExport is a connection with its API key in plain text. The ID
// is kept so browse links that name a server_id survive a move.
type ConnectionExport struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	URL     string `json:"url"`
	APIKey  string `json:"api_key"` //nolint:gosec // G101: exported field, sealed before writing
	Enabled bool   `json:"enabled"`
}

// Result counts what Import applied.
type Result struct {
	Settings           int `json:"settings"`
	ConnectionsCreated int `json:"connections_created"`
	ConnectionsUpdated int `json:"connections_updated"`
}

// Service exports and imports.
type Service struct {
	db          *sql.DB
	connections *connection.Service
	now         func() time.Time
}

// NewService creates a Service.
func NewService(db *sql.DB, connections *connection.Service) *Service {
	return &Service{db: db, connections: connections, now: time.Now}
}

// Export seals every setting and connection with passphrase.
func (s *Service) Export(ctx context.Context, passphrase string) (*Envelope, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase is required")
	}

	settings, err := database.AllSettings(ctx, s.db)
	if err != nil {
		return nil, err
	}
	payload := Payload{Settings: settings}

	conns, err := s.connections.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	for _, c := range conns {
		payload.Connections = append(payload.Connections, ConnectionExport{
			ID:      c.ID,
			Name:    c.Name,
			Type:    c.Type,
			URL:     c.URL,
			APIKey:  c.APIKey,
			Enabled: c.Enabled,
		})
	}

	plain, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}
	data, salt, err := seal(plain, passphrase)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Version:    formatVersion,
		AppVersion: version.Version,
		CreatedAt:  s.now().UTC().Format(time.RFC3339),
		Salt:       salt,
		Data:       data,
	}, nil
}

// Import opens env and applies it. Connections are matched by type and
// URL; a match is updated in place, anything else is created.
func (s *Service) Import(ctx context.Context, env *Envelope, passphrase string) (*Result, error) {
	if env.Version != formatVersion {
		return nil, fmt.Errorf("unsupported export version %q", env.Version)
	}
	plain, err := open(env.Data, env.Salt, passphrase)
	if err != nil {
		return nil, err
	}
	var payload Payload
	if err := json.Unmarshal(plain, &payload); err != nil {
		return nil, fmt.Errorf("parsing payload: %w", err)
	}

	res := &Result{}
	for k, v := range payload.Settings {
		if err := database.SetSetting(ctx, s.db, k, v); err != nil {
			return nil, err
		}
		res.Settings++
	}

	for _, ce := range payload.Connections {
		cur, err := s.connections.FindByTypeAndURL(ctx, ce.Type, ce.URL)
		if err != nil {
			return nil, err
		}
		if cur != nil {
			cur.Name = ce.Name
			cur.APIKey = ce.APIKey
			cur.Enabled = ce.Enabled
			if err := s.connections.Update(ctx, cur); err != nil {
				return nil, fmt.Errorf("updating connection %q: %w", ce.Name, err)
			}
			res.ConnectionsUpdated++
			continue
		}

		c := &connection.Connection{
			Name:    ce.Name,
			Type:    ce.Type,
			URL:     ce.URL,
			APIKey:  ce.APIKey,
			Enabled: ce.Enabled,
		}
		// Keep the exported ID unless another server already uses it here.
		if _, err := s.connections.GetByID(ctx, ce.ID); errors.Is(err, connection.ErrNotFound) {
			c.ID = ce.ID
		}
		if err := s.connections.Create(ctx, c); err != nil {
			return nil, fmt.Errorf("creating connection %q: %w", ce.Name, err)
		}
		res.ConnectionsCreated++
	}
	return res, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, 32, sha256.New)
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// seal returns base64 nonce+ciphertext and base64 salt.
func seal(plain []byte, passphrase string) (data, salt string, err error) {
	saltBytes := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, saltBytes); err != nil {
		return "", "", fmt.Errorf("generating salt: %w", err)
	}
	gcm, err := newGCM(passphrase, saltBytes)
	if err != nil {
		return "", "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", "", fmt.Errorf("generating nonce: %w", err)
	}
	out := gcm.Seal(nonce, nonce, plain, nil)
	return base64.StdEncoding.EncodeToString(out), base64.StdEncoding.EncodeToString(saltBytes), nil
}

func open(data, salt, passphrase string) ([]byte, error) {
	saltBytes, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return nil, fmt.Errorf("decoding salt: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decoding data: %w", err)
	}
	gcm, err := newGCM(passphrase, saltBytes)
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, ErrWrongPassphrase
	}
	nonce, ct := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plain, nil
}
