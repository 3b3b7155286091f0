package connection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/artbrowser/internal/encryption"
)

const connectionColumns = `id, name, type, url, encrypted_api_key, enabled, status, status_message, last_checked_at, created_at, updated_at`

// Service stores media server connections. API keys are sealed with the
// encryptor before they reach the database.
type Service struct {
	db        *sql.DB
	encryptor *encryption.Encryptor
	now       func() time.Time
}

// NewService creates a connection service.
func NewService(db *sql.DB, enc *encryption.Encryptor) *Service {
	return &Service{db: db, encryptor: enc, now: time.Now}
}

// Create validates and inserts c, assigning an ID when c has none.
func (s *Service) Create(ctx context.Context, c *Connection) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating connection: %w", err)
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = StatusUnknown
	}
	c.CreatedAt = s.now().UTC().Truncate(time.Second)
	c.UpdatedAt = c.CreatedAt

	sealed, err := s.seal(c.APIKey)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO connections (`+connectionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Type, c.URL, sealed, c.Enabled, c.Status, c.StatusMessage,
		timeOrNull(c.LastCheckedAt), c.CreatedAt.Format(time.RFC3339), c.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating connection: %w", err)
	}
	return nil
}

// GetByID returns the connection with its API key opened, or ErrNotFound.
func (s *Service) GetByID(ctx context.Context, id string) (*Connection, error) {
	conns, err := s.query(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(conns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &conns[0], nil
}

// FindByTypeAndURL returns the connection to the same server, or nil when
// there is none.
func (s *Service) FindByTypeAndURL(ctx context.Context, connType, url string) (*Connection, error) {
	conns, err := s.query(ctx, `WHERE type = ? AND url = ? ORDER BY created_at LIMIT 1`, connType, url)
	if err != nil || len(conns) == 0 {
		return nil, err
	}
	return &conns[0], nil
}

// List returns every connection ordered by name.
func (s *Service) List(ctx context.Context) ([]Connection, error) {
	return s.query(ctx, `ORDER BY name, id`)
}

// Update rewrites every editable field of c.
func (s *Service) Update(ctx context.Context, c *Connection) error {
	sealed, err := s.seal(c.APIKey)
	if err != nil {
		return err
	}
	c.UpdatedAt = s.now().UTC().Truncate(time.Second)
	return s.exec(ctx, c.ID, "updating connection", `
		UPDATE connections
		SET name = ?, type = ?, url = ?, encrypted_api_key = ?, enabled = ?, status = ?, status_message = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, c.Type, c.URL, sealed, c.Enabled, c.Status, c.StatusMessage, c.UpdatedAt.Format(time.RFC3339), c.ID,
	)
}

// Delete removes a connection.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.exec(ctx, id, "deleting connection", `DELETE FROM connections WHERE id = ?`, id)
}

// UpdateStatus records the outcome of a connection test.
func (s *Service) UpdateStatus(ctx context.Context, id, status, statusMessage string) error {
	stamp := s.now().UTC().Format(time.RFC3339)
	return s.exec(ctx, id, "updating connection status", `
		UPDATE connections SET status = ?, status_message = ?, last_checked_at = ?, updated_at = ?
		WHERE id = ?`,
		status, statusMessage, stamp, stamp, id,
	)
}

// exec runs a single-row statement and maps "no row touched" to ErrNotFound.
func (s *Service) exec(ctx context.Context, id, what, stmt string, args ...any) error {
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *Service) query(ctx context.Context, tail string, args ...any) ([]Connection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+connectionColumns+` FROM connections `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("querying connections: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []Connection
	for rows.Next() {
		c, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating connections: %w", err)
	}
	return out, nil
}

func (s *Service) scan(rows *sql.Rows) (Connection, error) {
	var (
		c                    Connection
		sealed               string
		lastChecked          sql.NullString
		createdAt, updatedAt string
	)
	if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.URL, &sealed, &c.Enabled,
		&c.Status, &c.StatusMessage, &lastChecked, &createdAt, &updatedAt); err != nil {
		return c, fmt.Errorf("scanning connection: %w", err)
	}

	// reset-credentials blanks keys; such a connection simply has none.
	if sealed != "" {
		key, err := s.encryptor.Decrypt(sealed)
		if err != nil {
			return c, fmt.Errorf("decrypting api key for connection %s: %w", c.ID, err)
		}
		c.APIKey = key
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	if lastChecked.Valid {
		t := parseTime(lastChecked.String)
		c.LastCheckedAt = &t
	}
	return c, nil
}

func (s *Service) seal(apiKey string) (string, error) {
	if apiKey == "" {
		return "", nil
	}
	sealed, err := s.encryptor.Encrypt(apiKey)
	if err != nil {
		return "", fmt.Errorf("encrypting api key: %w", err)
	}
	return sealed, nil
}

func timeOrNull(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// parseTime accepts RFC 3339 and SQLite's datetime() layout.
func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, time.DateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
