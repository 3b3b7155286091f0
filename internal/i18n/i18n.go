// Package i18n provides the string catalog used by the web UI.
package i18n

import (
	"embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var locales embed.FS

const defaultLocale = "en"

// Catalog is a thread-safe key/value string table. An optional override file
// is layered on top of the embedded defaults and can be reloaded at runtime.
type Catalog struct {
	mu           sync.RWMutex
	messages     map[string]string
	overridePath string
}

// New loads the embedded English catalog and, if overridePath is set, the
// override file on top of it.
func New(overridePath string) (*Catalog, error) {
	c := &Catalog{overridePath: overridePath}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustDefault returns the embedded catalog without overrides. It panics if
// the embedded file is malformed.
func MustDefault() *Catalog {
	c, err := New("")
	if err != nil {
		panic(err)
	}
	return c
}

// OverridePath returns the override file path, or "" when none is configured.
func (c *Catalog) OverridePath() string {
	return c.overridePath
}

// Reload re-reads the embedded catalog and the override file. A missing
// override file is not an error.
func (c *Catalog) Reload() error {
	base, err := locales.ReadFile("locales/" + defaultLocale + ".yaml")
	if err != nil {
		return fmt.Errorf("reading embedded catalog: %w", err)
	}
	messages := make(map[string]string)
	if err := yaml.Unmarshal(base, &messages); err != nil {
		return fmt.Errorf("parsing embedded catalog: %w", err)
	}

	if c.overridePath != "" {
		data, err := os.ReadFile(c.overridePath)
		switch {
		case err == nil:
			overrides := make(map[string]string)
			if err := yaml.Unmarshal(data, &overrides); err != nil {
				return fmt.Errorf("parsing catalog %s: %w", c.overridePath, err)
			}
			for k, v := range overrides {
				messages[k] = v
			}
		case !os.IsNotExist(err):
			return fmt.Errorf("reading catalog %s: %w", c.overridePath, err)
		}
	}

	c.mu.Lock()
	c.messages = messages
	c.mu.Unlock()
	return nil
}

// T returns the message for key with {N} placeholders replaced by args[N].
// Unknown keys are returned unchanged.
func (c *Catalog) T(key string, args ...any) string {
	c.mu.RLock()
	msg, ok := c.messages[key]
	c.mu.RUnlock()
	if !ok {
		msg = key
	}
	if len(args) == 0 {
		return msg
	}

	pairs := make([]string, 0, len(args)*2)
	for i, a := range args {
		pairs = append(pairs, "{"+strconv.Itoa(i)+"}", fmt.Sprint(a))
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}
