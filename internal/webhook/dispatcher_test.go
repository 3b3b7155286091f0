package webhook

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sydlexius/artbrowser/internal/event"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func downloadedEvent() event.Event {
	return event.Event{
		Type:      event.ImageDownloaded,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Data: map[string]any{
			"item_id":  "item-7",
			"type":     "Primary",
			"provider": "TheMovieDb",
		},
	}
}

func TestDispatcher_Formats(t *testing.T) {
	tests := []struct {
		format string
		check  func(t *testing.T, got map[string]any)
	}{
		{FormatGeneric, func(t *testing.T, got map[string]any) {
			if got["event"] != "image.downloaded" {
				t.Errorf("event = %v", got["event"])
			}
			data, _ := got["data"].(map[string]any)
			if data["item_id"] != "item-7" {
				t.Errorf("data = %v", data)
			}
		}},
		{FormatDiscord, func(t *testing.T, got map[string]any) {
			embeds, _ := got["embeds"].([]any)
			if len(embeds) != 1 {
				t.Fatalf("embeds = %v", got["embeds"])
			}
			desc, _ := embeds[0].(map[string]any)["description"].(string)
			if desc != "Primary image from TheMovieDb applied to item item-7" {
				t.Errorf("description = %q", desc)
			}
		}},
		{FormatSlack, func(t *testing.T, got map[string]any) {
			text, _ := got["text"].(string)
			if !strings.HasPrefix(text, "*artbrowser: image.downloaded*") {
				t.Errorf("text = %q", text)
			}
		}},
		{FormatGotify, func(t *testing.T, got map[string]any) {
			if got["title"] != "artbrowser: image.downloaded" {
				t.Errorf("title = %v", got["title"])
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var mu sync.Mutex
			var got map[string]any
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				defer mu.Unlock()
				if !strings.HasPrefix(r.Header.Get("User-Agent"), "artbrowser-webhook/") {
					t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
				}
				_ = json.NewDecoder(r.Body).Decode(&got)
			}))
			defer srv.Close()

			d := NewDispatcher([]Hook{{Name: "h", URL: srv.URL, Format: tt.format}}, srv.Client(), testLogger())
			d.HandleEvent(downloadedEvent())
			d.Wait()

			mu.Lock()
			defer mu.Unlock()
			if got == nil {
				t.Fatal("no payload received")
			}
			tt.check(t, got)
		})
	}
}

func TestDispatcher_EventFilter(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	d := NewDispatcher([]Hook{{Name: "h", URL: srv.URL, Events: []string{"browse.closed"}}}, srv.Client(), testLogger())
	d.HandleEvent(downloadedEvent())
	d.HandleEvent(event.Event{Type: event.BrowseClosed, Data: map[string]any{"outcome": "changed"}})
	d.Wait()

	if n := hits.Load(); n != 1 {
		t.Errorf("deliveries = %d, want 1", n)
	}
}

func TestDispatcher_Retries(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	d := NewDispatcher([]Hook{{Name: "h", URL: srv.URL}}, srv.Client(), testLogger())
	d.backoff = time.Millisecond
	d.HandleEvent(downloadedEvent())
	d.Wait()

	if n := attempts.Load(); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
}

func TestHook_Validate(t *testing.T) {
	tests := []struct {
		name    string
		hook    Hook
		wantErr bool
	}{
		{"ok", Hook{Name: "a", URL: "https://hooks.example/x", Format: FormatSlack, Events: []string{"image.downloaded"}}, false},
		{"default format", Hook{Name: "a", URL: "http://n8n:5678/hook"}, false},
		{"missing name", Hook{URL: "https://hooks.example/x"}, true},
		{"bad scheme", Hook{Name: "a", URL: "ftp://hooks.example/x"}, true},
		{"bad format", Hook{Name: "a", URL: "https://hooks.example/x", Format: "teams"}, true},
		{"bad event", Hook{Name: "a", URL: "https://hooks.example/x", Events: []string{"scan.completed"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.hook.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
