package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name     string
		setup    func(*http.Request)
		wantHSTS bool
	}{
		{"plain http", func(*http.Request) {}, false},
		{"forwarded https", func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "https") }, true},
		{"direct tls", func(r *http.Request) { r.TLS = &tls.ConnectionState{} }, true},
		{"forwarded http", func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "http") }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://artbrowser.local/", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			for header, want := range map[string]string{
				"X-Content-Type-Options": "nosniff",
				"X-Frame-Options":        "DENY",
				"Referrer-Policy":        "strict-origin-when-cross-origin",
				"X-XSS-Protection":       "0",
			} {
				if got := w.Header().Get(header); got != want {
					t.Errorf("%s = %q, want %q", header, got, want)
				}
			}

			hsts := w.Header().Get("Strict-Transport-Security")
			if tt.wantHSTS != (hsts != "") {
				t.Errorf("HSTS = %q, want present=%v", hsts, tt.wantHSTS)
			}
		})
	}
}

// Preview images are proxied, so the policy must not open img-src or
// script-src to remote hosts.
func TestContentSecurityPolicy(t *testing.T) {
	for _, directive := range []string{
		"default-src 'self'",
		"script-src 'self'",
		"img-src 'self' data:",
		"frame-ancestors 'none'",
		"object-src 'none'",
	} {
		if !strings.Contains(contentSecurityPolicy, directive) {
			t.Errorf("CSP missing %q", directive)
		}
	}
	if strings.Contains(contentSecurityPolicy, "https:") || strings.Contains(contentSecurityPolicy, "*") {
		t.Errorf("CSP allows remote sources: %s", contentSecurityPolicy)
	}
}
