// Package auth manages local accounts, OIDC sign-in and login sessions.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const sessionDuration = 24 * time.Hour

// Account roles. Only the first account is an admin.
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

var (
	// ErrInvalidCredentials is returned for an unknown user or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidSession is returned for unknown or expired session tokens.
	ErrInvalidSession = errors.New("invalid session")
)

// Service provides authentication operations.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

// NewService creates an auth service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Setup creates the admin account on a fresh install. It reports false,
// without error, once any account exists.
func (s *Service) Setup(ctx context.Context, username, password string) (bool, error) {
	hash, err := bcrypt.GenerateFromPassword(stretch(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hashing password: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role)
		SELECT ?, ?, ?, ? WHERE NOT EXISTS (SELECT 1 FROM users)`,
		uuid.NewString(), username, string(hash), RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("creating admin user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("creating admin user: %w", err)
	}
	return n == 1, nil
}

// Login checks a username and password and opens a session.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	var userID, hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, password_hash FROM users WHERE username = ?", username).Scan(&userID, &hash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", ErrInvalidCredentials
	case err != nil:
		return "", fmt.Errorf("looking up user: %w", err)
	case hash == "":
		// OIDC-only account.
		return "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), stretch(password)) != nil {
		return "", ErrInvalidCredentials
	}
	return s.openSession(ctx, userID)
}

// LoginExternal signs in a user authenticated by an OIDC provider. Users
// are keyed on the provider subject and created on first sign-in.
func (s *Service) LoginExternal(ctx context.Context, id Identity) (string, error) {
	if id.Subject == "" {
		return "", ErrInvalidCredentials
	}
	var userID string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM users WHERE oidc_subject = ?", id.Subject).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		userID, err = s.provision(ctx, id)
	}
	if err != nil {
		return "", fmt.Errorf("resolving oidc user: %w", err)
	}
	return s.openSession(ctx, userID)
}

// provision inserts an OIDC account. The display name becomes the username
// unless a local account already has it, in which case the subject is used.
func (s *Service) provision(ctx context.Context, id Identity) (string, error) {
	userID, name := uuid.NewString(), id.DisplayName()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, oidc_subject)
		SELECT ?,
		       CASE WHEN EXISTS (SELECT 1 FROM users WHERE username = ?) THEN ? ELSE ? END,
		       '',
		       CASE WHEN EXISTS (SELECT 1 FROM users) THEN ? ELSE ? END,
		       ?`,
		userID, name, id.Subject, name, RoleViewer, RoleAdmin, id.Subject)
	if err != nil {
		return "", err
	}
	return userID, nil
}

// openSession stores a new session and returns its bearer token. Only a
// digest of the token is written to the database.
func (s *Service) openSession(ctx context.Context, userID string) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	expires := s.now().Add(sessionDuration).UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)",
		sessionKey(token), userID, expires); err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return token, nil
}

// ValidateSession returns the user behind a session token. Expired sessions
// are deleted on sight.
func (s *Service) ValidateSession(ctx context.Context, token string) (string, error) {
	var userID, expiresAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM sessions WHERE id = ?", sessionKey(token)).Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidSession
	}
	if err != nil {
		return "", fmt.Errorf("looking up session: %w", err)
	}
	expires, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return "", fmt.Errorf("parsing session expiry: %w", err)
	}
	if !s.now().Before(expires) {
		_ = s.Logout(ctx, token)
		return "", ErrInvalidSession
	}
	return userID, nil
}

// Logout ends a session. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionKey(token))
	return err
}

// CleanExpiredSessions removes all expired sessions.
func (s *Service) CleanExpiredSessions(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at <= ?", s.now().UTC().Format(time.RFC3339))
	return err
}

// ResetCredentials removes every user account and session, and blanks the
// stored connection API keys. The next visit goes through setup again.
func (s *Service) ResetCredentials(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning reset: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, q := range []struct{ what, stmt string }{
		{"sessions", "DELETE FROM sessions"},
		{"user accounts", "DELETE FROM users"},
		{"connection API keys", "UPDATE connections SET encrypted_api_key = ''"},
	} {
		if _, err := tx.ExecContext(ctx, q.stmt); err != nil {
			return fmt.Errorf("clearing %s: %w", q.what, err)
		}
	}
	return tx.Commit()
}

// HasUsers reports whether setup has been completed.
func (s *Service) HasUsers(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM users)").Scan(&exists)
	return exists, err
}

// stretch maps a password of any length to 64 bytes, under bcrypt's
// 72-byte input limit.
func stretch(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return []byte(hex.EncodeToString(sum[:]))
}

func sessionKey(token string) string {
	sum := sha256.Sum256([]byte("session:" + token))
	return hex.EncodeToString(sum[:])
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
