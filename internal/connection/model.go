package connection

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Supported media server types.
const (
	TypeEmby     = "emby"
	TypeJellyfin = "jellyfin"
)

// Status values, recorded by the last probe.
const (
	StatusUnknown = "unknown"
	StatusOK      = "ok"
	StatusError   = "error"
)

var (
	// ErrNotFound is returned when no connection has the requested ID.
	ErrNotFound = errors.New("connection not found")
	// ErrDisabled is returned when browsing against a disabled connection.
	ErrDisabled = errors.New("connection is disabled")
)

// Connection is a configured media server. Its ID is the "server id" a
// browse session is opened against.
type Connection struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Type          string     `json:"type"`
	URL           string     `json:"url"`
	APIKey        string     `json:"api_key,omitempty"`
	Enabled       bool       `json:"enabled"`
	Status        string     `json:"status"`
	StatusMessage string     `json:"status_message,omitempty"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ValidationError names the field that made a Connection unusable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

// Validate reports the first field that is missing or malformed. The API
// key is required: both server types reject anonymous RemoteImages calls.
func (c *Connection) Validate() error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return &ValidationError{"name", "is required"}
	case c.Type != TypeJellyfin && c.Type != TypeEmby:
		return &ValidationError{"type", fmt.Sprintf("must be %s or %s, got %q", TypeJellyfin, TypeEmby, c.Type)}
	case c.URL == "":
		return &ValidationError{"url", "is required"}
	}
	u, err := url.ParseRequestURI(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{"url", "must be an absolute http or https URL"}
	}
	if c.APIKey == "" {
		return &ValidationError{"api_key", "is required"}
	}
	return nil
}
