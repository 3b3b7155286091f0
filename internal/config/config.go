// Package config loads artbrowser configuration from YAML, .env files and
// AB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sydlexius/artbrowser/internal/logging"
	"github.com/sydlexius/artbrowser/internal/webhook"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AB_"

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Logging    logging.Config   `yaml:"logging"`
	Browser    BrowserConfig    `yaml:"browser"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	I18n       I18nConfig       `yaml:"i18n"`
	Webhooks   []webhook.Hook   `yaml:"webhooks"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	BasePath string `yaml:"base_path"`
	TLSCert  string `yaml:"tls_cert"`
	TLSKey   string `yaml:"tls_key"`
	// StaticDir holds the CSS and JS served under /static.
	StaticDir string `yaml:"static_dir"`
	// HTTP3 also serves over QUIC on the same port. Requires TLS.
	HTTP3 bool `yaml:"http3"`
}

// TLSEnabled reports whether both TLS files are configured.
func (s ServerConfig) TLSEnabled() bool {
	return s.TLSCert != "" && s.TLSKey != ""
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
	// BackupDir receives snapshots. Empty means a backups directory next
	// to the database file.
	BackupDir       string `yaml:"backup_dir"`
	BackupRetention int    `yaml:"backup_retention"`
	// MaintenanceInterval schedules optimize plus a snapshot. Zero disables.
	MaintenanceInterval time.Duration `yaml:"maintenance_interval"`
}

// BackupPath resolves the snapshot directory.
func (d DatabaseConfig) BackupPath() string {
	if d.BackupDir != "" {
		return d.BackupDir
	}
	return filepath.Join(filepath.Dir(d.Path), "backups")
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// Disabled skips login entirely. Only for trusted networks.
	Disabled bool       `yaml:"disabled"`
	OIDC     OIDCConfig `yaml:"oidc"`
}

// OIDCConfig configures optional single sign-on.
type OIDCConfig struct {
	Issuer       string   `yaml:"issuer"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
}

// Enabled reports whether OIDC login is configured.
func (o OIDCConfig) Enabled() bool {
	return o.Issuer != "" && o.ClientID != ""
}

// EncryptionConfig holds encryption key settings.
type EncryptionConfig struct {
	Key string `yaml:"key"`
	// KeyFile is used when Key is empty. It is created on first start.
	KeyFile string `yaml:"key_file"`
}

// BrowserConfig tunes browse sessions.
type BrowserConfig struct {
	PageSize         int           `yaml:"page_size"`
	SlowPageSize     int           `yaml:"slow_page_size"`
	SessionTTL       time.Duration `yaml:"session_ttl"`
	DefaultLayout    string        `yaml:"default_layout"`
	PreviewMaxWidth  int           `yaml:"preview_max_width"`
	PreviewMaxHeight int           `yaml:"preview_max_height"`
}

// UpstreamConfig limits outbound calls to media servers.
type UpstreamConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// I18nConfig points at an optional string catalog override.
type I18nConfig struct {
	CatalogPath string `yaml:"catalog_path"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      8080,
			BasePath:  "/",
			StaticDir: "web/static",
		},
		Database: DatabaseConfig{
			Path:                "/data/artbrowser.db",
			BackupRetention:     7,
			MaintenanceInterval: 24 * time.Hour,
		},
		Encryption: EncryptionConfig{
			KeyFile: "/data/encryption.key",
		},
		Logging: logging.DefaultConfig(),
		Browser: BrowserConfig{
			PageSize:         30,
			SlowPageSize:     6,
			SessionTTL:       30 * time.Minute,
			DefaultLayout:    "desktop",
			PreviewMaxWidth:  400,
			PreviewMaxHeight: 600,
		},
		Upstream: UpstreamConfig{
			RequestsPerSecond: 5,
		},
	}
}

// Load reads config from a YAML file (if it exists), then applies
// environment variables. Variables from a .env file in the working
// directory are loaded first and never override the real environment.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the command line
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() error {
	var errs []error

	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	flag := func(name string, dst *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	num("PORT", &c.Server.Port)
	str("BASE_PATH", &c.Server.BasePath)
	str("TLS_CERT", &c.Server.TLSCert)
	str("TLS_KEY", &c.Server.TLSKey)
	str("STATIC_DIR", &c.Server.StaticDir)
	flag("HTTP3", &c.Server.HTTP3)
	str("DB_PATH", &c.Database.Path)
	str("BACKUP_DIR", &c.Database.BackupDir)
	num("BACKUP_RETENTION", &c.Database.BackupRetention)
	str("ENCRYPTION_KEY", &c.Encryption.Key)
	str("ENCRYPTION_KEY_FILE", &c.Encryption.KeyFile)
	flag("AUTH_DISABLED", &c.Auth.Disabled)
	str("OIDC_ISSUER", &c.Auth.OIDC.Issuer)
	str("OIDC_CLIENT_ID", &c.Auth.OIDC.ClientID)
	str("OIDC_CLIENT_SECRET", &c.Auth.OIDC.ClientSecret)
	str("OIDC_REDIRECT_URL", &c.Auth.OIDC.RedirectURL)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("LOG_FILE", &c.Logging.FilePath)
	num("PAGE_SIZE", &c.Browser.PageSize)
	num("SLOW_PAGE_SIZE", &c.Browser.SlowPageSize)
	str("DEFAULT_LAYOUT", &c.Browser.DefaultLayout)
	str("I18N_CATALOG", &c.I18n.CatalogPath)

	if v := os.Getenv(EnvPrefix + "SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSESSION_TTL: %w", EnvPrefix, err))
		} else {
			c.Browser.SessionTTL = d
		}
	}
	if v := os.Getenv(EnvPrefix + "UPSTREAM_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sUPSTREAM_RPS: %w", EnvPrefix, err))
		} else {
			c.Upstream.RequestsPerSecond = f
		}
	}
	return errors.Join(errs...)
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	for _, h := range c.Webhooks {
		if err := h.Validate(); err != nil {
			return err
		}
	}
	if c.Database.BackupRetention < 1 {
		return fmt.Errorf("backup_retention must be at least 1")
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return fmt.Errorf("tls_cert and tls_key must be set together")
	}
	if c.Server.HTTP3 && !c.Server.TLSEnabled() {
		return fmt.Errorf("http3 requires tls_cert and tls_key")
	}
	if c.Auth.OIDC.Enabled() && c.Auth.OIDC.RedirectURL == "" {
		return fmt.Errorf("oidc redirect_url is required when oidc is enabled")
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	if !logging.ValidFormat(c.Logging.Format) {
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	if c.Browser.PageSize < 1 || c.Browser.SlowPageSize < 1 {
		return fmt.Errorf("browser page sizes must be positive")
	}
	if c.Browser.SessionTTL < time.Minute {
		return fmt.Errorf("browser session_ttl must be at least 1m, got %s", c.Browser.SessionTTL)
	}
	if c.Upstream.RequestsPerSecond <= 0 {
		return fmt.Errorf("upstream requests_per_second must be positive")
	}

	c.Server.BasePath = strings.TrimRight(c.Server.BasePath, "/")
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		c.Server.BasePath = "/" + c.Server.BasePath
	}
	return nil
}
