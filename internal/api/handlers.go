package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/sydlexius/artbrowser/internal/api/middleware"
	"github.com/sydlexius/artbrowser/internal/auth"
	"github.com/sydlexius/artbrowser/internal/version"
	"github.com/sydlexius/artbrowser/web/components"
	"github.com/sydlexius/artbrowser/web/templates"
)

const sessionMaxAge = 86400

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
		"commit":  version.Commit,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus reports the browser's live counters.
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) {
	resp := map[string]any{
		"open_sessions": r.browser.Len(),
		"busy":          false,
		"in_flight":     int64(0),
	}
	if r.busy != nil {
		resp["busy"] = r.busy.Busy()
		resp["in_flight"] = r.busy.InFlight()
	}
	writeJSON(w, http.StatusOK, resp)
}

// assets returns cache-busted asset paths for templates.
func (r *Router) assets() templates.AssetPaths {
	return templates.AssetPaths{
		CSS:  r.staticAssets.Path("/css/styles.css"),
		HTMX: r.staticAssets.Path("/js/htmx.min.js"),
		App:  r.staticAssets.Path("/js/app.js"),
	}
}

func (r *Router) pageMeta(req *http.Request, title string) templates.PageMeta {
	return templates.PageMeta{
		Title:     title,
		BasePath:  r.basePath,
		CSRFToken: middleware.CSRFTokenFromContext(req.Context()),
		Assets:    r.assets(),
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"` //nolint:gosec // G117: not a hardcoded secret, this is a request field
}

// decodeCredentials reads a JSON body or, for htmx forms, form fields.
func decodeCredentials(req *http.Request) (credentials, error) {
	var body credentials
	if strings.HasPrefix(req.Header.Get("Content-Type"), "application/json") {
		err := json.NewDecoder(req.Body).Decode(&body)
		return body, err
	}
	if err := req.ParseForm(); err != nil {
		return body, err
	}
	body.Username = req.FormValue("username")
	body.Password = req.FormValue("password")
	return body, nil
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	body, err := decodeCredentials(req)
	if err != nil {
		writeError(w, req, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := r.authService.Login(req.Context(), body.Username, body.Password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			r.logger.Error("login failed", "error", err)
		}
		writeError(w, req, http.StatusUnauthorized, "invalid credentials")
		return
	}

	r.setSessionCookie(w, req, token)
	if isHTMXRequest(req) {
		w.Header().Set("HX-Redirect", r.afterLoginTarget(req))
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) setSessionCookie(w http.ResponseWriter, req *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     r.cookiePath(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https",
		MaxAge:   sessionMaxAge,
	})
}

// afterLoginTarget returns the page the login form was shown on, so a
// visitor sent to sign in from a browse page lands back on it. Only local
// paths under the base path are honored.
func (r *Router) afterLoginTarget(req *http.Request) string {
	home := r.basePath + "/"
	cur, err := url.Parse(req.Header.Get("HX-Current-URL"))
	if err != nil || cur.Path == "" || !strings.HasPrefix(cur.Path, home) {
		return home
	}
	if cur.Host != "" && cur.Host != req.Host {
		return home
	}
	target := cur.EscapedPath()
	if cur.RawQuery != "" {
		target += "?" + cur.RawQuery
	}
	return target
}

func (r *Router) cookiePath() string {
	if r.basePath == "" {
		return "/"
	}
	return r.basePath + "/"
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if cookie, err := req.Cookie(middleware.SessionCookie); err == nil {
		if logoutErr := r.authService.Logout(req.Context(), cookie.Value); logoutErr != nil {
			r.logger.Warn("failed to delete session", "error", logoutErr)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     r.cookiePath(),
		HttpOnly: true,
		MaxAge:   -1,
	})

	if isHTMXRequest(req) {
		w.Header().Set("HX-Redirect", r.basePath+"/")
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleMe(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": userID})
}

func (r *Router) handleSetup(w http.ResponseWriter, req *http.Request) {
	hasUsers, err := r.authService.HasUsers(req.Context())
	if err != nil {
		writeError(w, req, http.StatusInternalServerError, "internal error")
		return
	}
	if hasUsers {
		writeError(w, req, http.StatusConflict, "admin account already exists")
		return
	}

	body, err := decodeCredentials(req)
	if err != nil {
		writeError(w, req, http.StatusBadRequest, "invalid request body")
		return
	}

	if body.Username == "" || body.Password == "" {
		writeError(w, req, http.StatusBadRequest, "username and password are required")
		return
	}

	if len(body.Password) < 8 {
		writeError(w, req, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	created, err := r.authService.Setup(req.Context(), body.Username, body.Password)
	if err != nil {
		r.logger.Error("failed to create admin account", "error", err)
		writeError(w, req, http.StatusInternalServerError, "internal error")
		return
	}

	if !created {
		writeError(w, req, http.StatusConflict, "admin account already exists")
		return
	}

	if isHTMXRequest(req) {
		w.Header().Set("HX-Redirect", r.basePath+"/")
		w.WriteHeader(http.StatusCreated)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "admin account created"})
}

func (r *Router) handleIndex(w http.ResponseWriter, req *http.Request) {
	if r.needsLogin(w, req) {
		return
	}
	renderTempl(w, req, templates.IndexPage(r.pageMeta(req, "artbrowser")))
}

// needsLogin renders the setup or login page for anonymous visitors and
// reports whether it did.
func (r *Router) needsLogin(w http.ResponseWriter, req *http.Request) bool {
	if middleware.UserIDFromContext(req.Context()) != "" {
		return false
	}

	hasUsers, err := r.authService.HasUsers(req.Context())
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return true
	}
	if !hasUsers && r.oidc == nil {
		renderTempl(w, req, templates.SetupPage(r.pageMeta(req, "Set up artbrowser")))
		return true
	}
	renderTempl(w, req, templates.LoginPage(r.pageMeta(req, "Sign in"), r.oidc != nil))
	return true
}

func renderTempl(w http.ResponseWriter, r *http.Request, component templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(r.Context(), w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func isHTMXRequest(req *http.Request) bool {
	return req.Header.Get("HX-Request") == "true"
}

// writeError sends an error response. For htmx requests, it renders an error
// toast HTML fragment. For API requests, it returns JSON.
func writeError(w http.ResponseWriter, req *http.Request, status int, message string) {
	if isHTMXRequest(req) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		// htmx only swaps 2xx responses by default; retarget the toast.
		w.Header().Set("HX-Retarget", "#toast")
		w.Header().Set("HX-Reswap", "innerHTML")
		w.WriteHeader(status)
		_ = components.ErrorToast("error", message).Render(req.Context(), w)
		return
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}
