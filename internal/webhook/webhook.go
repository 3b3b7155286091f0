// Package webhook posts browse events to external endpoints such as chat
// channels or automation tools.
package webhook

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/sydlexius/artbrowser/internal/event"
)

// Payload formats.
const (
	FormatGeneric = "generic"
	FormatDiscord = "discord"
	FormatSlack   = "slack"
	FormatGotify  = "gotify"
)

// Hook is one configured endpoint. An empty Events list matches every event.
type Hook struct {
	Name   string   `yaml:"name"`
	URL    string   `yaml:"url"`
	Format string   `yaml:"format"`
	Events []string `yaml:"events"`
}

// Validate checks the URL, format and event names.
func (h Hook) Validate() error {
	if h.Name == "" {
		return fmt.Errorf("webhook name is required")
	}
	u, err := url.ParseRequestURI(h.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("webhook %s: url must be an http or https URL", h.Name)
	}
	switch h.Format {
	case "", FormatGeneric, FormatDiscord, FormatSlack, FormatGotify:
	default:
		return fmt.Errorf("webhook %s: unknown format %q", h.Name, h.Format)
	}
	known := event.AllTypes()
	for _, e := range h.Events {
		if !slices.Contains(known, event.Type(e)) {
			return fmt.Errorf("webhook %s: unknown event %q", h.Name, e)
		}
	}
	return nil
}

// Matches reports whether the hook wants events of type t.
func (h Hook) Matches(t event.Type) bool {
	return len(h.Events) == 0 || slices.Contains(h.Events, string(t))
}

// payload renders e in the hook's format.
func (h Hook) payload(e event.Event) ([]byte, error) {
	title := "artbrowser: " + string(e.Type)
	var v any
	switch h.Format {
	case FormatDiscord:
		v = map[string]any{
			"embeds": []map[string]any{{
				"title":       title,
				"description": describe(e),
				"color":       3447003,
				"timestamp":   e.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
			}},
		}
	case FormatSlack:
		v = map[string]any{"text": "*" + title + "*\n" + describe(e)}
	case FormatGotify:
		v = map[string]any{"title": title, "message": describe(e)}
	default:
		v = map[string]any{"event": string(e.Type), "timestamp": e.Timestamp, "data": e.Data}
	}
	return json.Marshal(v)
}

// describe builds a one-line summary for chat formats.
func describe(e event.Event) string {
	item, _ := e.Data["item_id"].(string)
	switch e.Type {
	case event.ImageDownloaded:
		typ, _ := e.Data["type"].(string)
		provider, _ := e.Data["provider"].(string)
		return fmt.Sprintf("%s image from %s applied to item %s", typ, provider, item)
	case event.FetchFailed, event.DownloadFailed:
		msg, _ := e.Data["error"].(string)
		return fmt.Sprintf("item %s: %s", item, msg)
	}
	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Data[k]))
	}
	return strings.Join(parts, " ")
}
