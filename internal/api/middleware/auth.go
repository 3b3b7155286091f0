package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const userIDKey contextKey = "userID"

// SessionCookie is the name of the login session cookie.
const SessionCookie = "session"

// SessionValidator resolves a session token to a user ID.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (string, error)
}

// AnonymousUser is the user ID attached to requests when auth is disabled.
const AnonymousUser = "anonymous"

// OptionalAuth attaches the user when the request carries a valid session
// and otherwise passes it through untouched. Pages that render a login form
// sit behind it.
func OptionalAuth(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, ok := authenticate(sessions, r); ok {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Auth rejects requests without a valid session with 401.
func Auth(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := authenticate(sessions, r)
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// NoAuth attaches AnonymousUser to every request. It stands in for Auth
// when authentication is turned off in the configuration.
func NoAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), AnonymousUser)))
	})
}

// WithUserID returns a context carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the authenticated user ID from the context.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// authenticate resolves the session cookie, or a bearer token for API
// clients, to a user ID.
func authenticate(sessions SessionValidator, r *http.Request) (string, bool) {
	token := ""
	if c, err := r.Cookie(SessionCookie); err == nil {
		token = c.Value
	} else if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		token = strings.TrimSpace(bearer)
	}
	if token == "" {
		return "", false
	}
	userID, err := sessions.ValidateSession(r.Context(), token)
	return userID, err == nil && userID != ""
}
