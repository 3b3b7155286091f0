package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/sydlexius/artbrowser/internal/auth"
)

const (
	oidcStateCookie = "oidc_state"
	oidcNonceCookie = "oidc_nonce"
	oidcCookieAge   = 600
)

// handleOIDCLogin starts the authorization code flow.
func (r *Router) handleOIDCLogin(w http.ResponseWriter, req *http.Request) {
	if r.oidc == nil {
		http.NotFound(w, req)
		return
	}

	state, err := auth.NewState()
	if err != nil {
		r.logger.Error("generating oidc state", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	nonce, err := auth.NewState()
	if err != nil {
		r.logger.Error("generating oidc nonce", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	r.setFlowCookie(w, req, oidcStateCookie, state, oidcCookieAge)
	r.setFlowCookie(w, req, oidcNonceCookie, nonce, oidcCookieAge)
	http.Redirect(w, req, r.oidc.AuthCodeURL(state, nonce), http.StatusFound)
}

// handleOIDCCallback completes the flow and signs the user in.
func (r *Router) handleOIDCCallback(w http.ResponseWriter, req *http.Request) {
	if r.oidc == nil {
		http.NotFound(w, req)
		return
	}

	if e := req.URL.Query().Get("error"); e != "" {
		r.logger.Warn("oidc provider returned error", "error", e)
		http.Error(w, "sign-in was rejected by the identity provider", http.StatusUnauthorized)
		return
	}

	stateCookie, err := req.Cookie(oidcStateCookie)
	if err != nil {
		http.Error(w, "missing sign-in state", http.StatusBadRequest)
		return
	}
	nonceCookie, err := req.Cookie(oidcNonceCookie)
	if err != nil {
		http.Error(w, "missing sign-in state", http.StatusBadRequest)
		return
	}
	state := req.URL.Query().Get("state")
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(stateCookie.Value)) != 1 {
		http.Error(w, "sign-in state mismatch", http.StatusBadRequest)
		return
	}

	// One-shot cookies.
	r.setFlowCookie(w, req, oidcStateCookie, "", -1)
	r.setFlowCookie(w, req, oidcNonceCookie, "", -1)

	identity, err := r.oidc.Exchange(req.Context(), req.URL.Query().Get("code"), nonceCookie.Value)
	if err != nil {
		r.logger.Warn("oidc exchange failed", "error", err)
		http.Error(w, "sign-in failed", http.StatusUnauthorized)
		return
	}

	token, err := r.authService.LoginExternal(req.Context(), identity)
	if err != nil {
		r.logger.Error("mapping oidc identity", "subject", identity.Subject, "error", err)
		http.Error(w, "sign-in failed", http.StatusInternalServerError)
		return
	}

	r.logger.Info("oidc sign-in", "user", identity.DisplayName())
	r.setSessionCookie(w, req, token)
	http.Redirect(w, req, r.basePath+"/", http.StatusFound)
}

func (r *Router) setFlowCookie(w http.ResponseWriter, req *http.Request, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     r.cookiePath(),
		HttpOnly: true,
		// Lax so the cookie survives the cross-site redirect back from the provider.
		SameSite: http.SameSiteLaxMode,
		Secure:   req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https",
		MaxAge:   maxAge,
	})
}
