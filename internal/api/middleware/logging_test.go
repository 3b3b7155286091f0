package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRedactQuery(t *testing.T) {
	tests := map[string]string{
		"":                                        "",
		"image_url=http%3A%2F%2Ftmdb%2Fp.jpg":     "image_url=http%3A%2F%2Ftmdb%2Fp.jpg",
		"page=3&X-Emby-Token=abc":                 "page=3&X-Emby-Token=REDACTED",
		"state=s&code=xyz&provider=":              "state=s&code=REDACTED&provider=",
		"include_all_languages":                   "include_all_languages",
		"ApiKey=k&api_key=k2&client_secret=shh&a": "ApiKey=REDACTED&api_key=REDACTED&client_secret=REDACTED&a",
	}
	for in, want := range tests {
		if got := redactQuery(in); got != want {
			t.Errorf("redactQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLogging(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		requestID string
		status    int
		body      string
		want      []string
		silent    bool
	}{
		{
			name:   "upstream failure logs at error",
			path:   "/api/v1/browse/s1?token=t",
			status: http.StatusBadGateway,
			body:   "upstream down",
			want:   []string{"level=ERROR", "status=502", "bytes=13", "path=/api/v1/browse/s1", `query="token=REDACTED"`},
		},
		{
			name:      "caller request id kept",
			path:      "/api/v1/connections",
			requestID: "req-42",
			want:      []string{"level=INFO", "status=200", "request_id=req-42"},
		},
		{name: "static asset is quiet", path: "/static/js/htmx.min.js", silent: true},
		{name: "health probe is quiet", path: "/art/api/v1/health", silent: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

			var seen string
			h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
				_, _ = w.Write([]byte(tt.body))
			}))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.requestID != "" {
				req.Header.Set("X-Request-Id", tt.requestID)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if seen == "" || w.Header().Get("X-Request-Id") != seen {
				t.Errorf("request id ctx=%q header=%q", seen, w.Header().Get("X-Request-Id"))
			}
			if tt.silent {
				if buf.Len() != 0 {
					t.Errorf("logged at info: %s", buf.String())
				}
				return
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("log missing %q: %s", want, buf.String())
				}
			}
		})
	}
}
